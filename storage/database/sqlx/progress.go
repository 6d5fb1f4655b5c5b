package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/progress"
)

type progressRepository struct {
	db core.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db core.DB) *progressRepository {
	return &progressRepository{db: db}
}

func (repo progressRepository) LatestAndHighestPerQuiz(ctx context.Context, studentID int) ([]progress.QuizProgress, error) {
	q := `
		SELECT quiz_id,
		       (ARRAY_AGG(score ORDER BY attempt_number DESC))[1] AS latest_score,
		       MAX(score) AS highest_score,
		       COUNT(*) AS attempts
		FROM quiz_attempts
		WHERE student_id = $1
		GROUP BY quiz_id
		ORDER BY quiz_id`
	quizzes := make([]progress.QuizProgress, 0)
	err := repo.db.SelectContext(ctx, &quizzes, q, studentID)
	return quizzes, wrapErr(err, "aggregating quiz attempts")
}

func (repo progressRepository) QuizWeekdayBuckets(ctx context.Context, studentID int, since time.Time) ([]progress.DayBucket, error) {
	q := `
		SELECT EXTRACT(DOW FROM attempt_date AT TIME ZONE 'UTC')::INT AS weekday,
		       AVG(score) AS average_score,
		       COUNT(*) AS attempts
		FROM quiz_attempts
		WHERE student_id = $1 AND attempt_date >= $2
		GROUP BY weekday`
	buckets := make([]progress.DayBucket, 0, 7)
	err := repo.db.SelectContext(ctx, &buckets, q, studentID, since.UTC())
	return buckets, wrapErr(err, "aggregating weekly quiz attempts")
}

func (repo progressRepository) GameSubjectStats(ctx context.Context, studentIDs ...int) ([]progress.SubjectStats, error) {
	if len(studentIDs) == 0 {
		return []progress.SubjectStats{}, nil
	}
	q, args, err := sqlx.In(`
		SELECT student_id, subject_id,
		       SUM(score) AS total_score,
		       MAX(score) AS highest_score,
		       COUNT(*) AS attempts
		FROM game_scores
		WHERE student_id IN (?)
		GROUP BY student_id, subject_id
		ORDER BY student_id, subject_id`, studentIDs)
	if err != nil {
		return nil, wrapErr(err, "binding student ids")
	}
	stats := make([]progress.SubjectStats, 0)
	err = repo.db.SelectContext(ctx, &stats, repo.db.Rebind(q), args...)
	return stats, wrapErr(err, "aggregating game scores")
}

func (repo progressRepository) GameMonthlyAverages(ctx context.Context, studentID int, since time.Time) ([]progress.SubjectMonth, error) {
	q := `
		SELECT subject_id,
		       TO_CHAR(DATE_TRUNC('month', attempt_timestamp AT TIME ZONE 'UTC'), 'YYYY-MM') AS month,
		       AVG(score) AS average_score
		FROM game_scores
		WHERE student_id = $1 AND attempt_timestamp >= $2
		GROUP BY subject_id, month
		ORDER BY subject_id, month`
	months := make([]progress.SubjectMonth, 0)
	err := repo.db.SelectContext(ctx, &months, q, studentID, since.UTC())
	return months, wrapErr(err, "aggregating monthly game scores")
}
