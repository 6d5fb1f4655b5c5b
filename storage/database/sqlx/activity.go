package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/activity"
)

type activityRepository struct {
	db core.DB
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db core.DB) *activityRepository {
	return &activityRepository{db: db}
}

// inSerializableTx runs fn in a SERIALIZABLE transaction.
// Serialization failures and unique violations are reported as activity.ErrDuplicateAttempt.
func (repo activityRepository) inSerializableTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := repo.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return wrapErr(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return mapAttemptErr(err)
	}
	if err = tx.Commit(); err != nil {
		return mapAttemptErr(wrapErr(err, "committing transaction"))
	}
	return nil
}

func mapAttemptErr(err error) error {
	switch pqCode(err) {
	case uniqueViolation, serializationFailure:
		return activity.ErrDuplicateAttempt
	}
	return err
}

func (repo activityRepository) InsertQuizAttempt(ctx context.Context, attempt activity.QuizAttempt) (activity.QuizAttempt, error) {
	q := `
		INSERT INTO quiz_attempts (student_id, quiz_id, attempt_number, score, attempt_date)
		SELECT $1::INT, $2::INT, COALESCE(MAX(attempt_number), 0) + 1, $3::DOUBLE PRECISION, $4::TIMESTAMPTZ
		FROM quiz_attempts WHERE student_id = $1 AND quiz_id = $2
		RETURNING id, student_id, quiz_id, attempt_number, score, attempt_date`

	var inserted activity.QuizAttempt
	err := repo.inSerializableTx(ctx, func(tx *sqlx.Tx) error {
		return wrapErr(
			tx.GetContext(ctx, &inserted, q, attempt.StudentID, attempt.QuizID, attempt.Score, attempt.AttemptDate),
			"inserting quiz attempt",
		)
	})
	return inserted, err
}

func (repo activityRepository) InsertGameScore(ctx context.Context, score activity.GameScore) (activity.GameScore, error) {
	q := `
		INSERT INTO game_scores (student_id, subject_id, game_id, score, attempt_number, attempt_timestamp)
		SELECT $1::INT, $2::INT, $3::INT, $4::DOUBLE PRECISION, COALESCE(MAX(attempt_number), 0) + 1, $5::TIMESTAMPTZ
		FROM game_scores WHERE student_id = $1 AND subject_id = $2 AND game_id = $3
		RETURNING id, student_id, subject_id, game_id, score, attempt_number, attempt_timestamp`

	var inserted activity.GameScore
	err := repo.inSerializableTx(ctx, func(tx *sqlx.Tx) error {
		return wrapErr(
			tx.GetContext(ctx, &inserted, q,
				score.StudentID, score.SubjectID, score.GameID, score.Score, score.AttemptTimestamp),
			"inserting game score",
		)
	})
	return inserted, err
}

func (repo activityRepository) AddTrackDuration(ctx context.Context, track activity.Track) (activity.Track, bool, error) {
	q := `
		INSERT INTO tracks (student_id, audiobook_id, duration, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, audiobook_id)
		DO UPDATE SET duration = tracks.duration + EXCLUDED.duration, updated_at = EXCLUDED.updated_at
		RETURNING student_id, audiobook_id, duration, updated_at, (xmax = 0) AS created`

	var row struct {
		activity.Track
		Created bool `db:"created"`
	}
	err := repo.db.GetContext(ctx, &row, q, track.StudentID, track.AudiobookID, track.Duration, track.UpdatedAt)
	if err != nil {
		return activity.Track{}, false, wrapErr(err, "upserting track")
	}
	return row.Track, row.Created, nil
}

func (repo activityRepository) QueryTracks(ctx context.Context, studentID int) ([]activity.Track, error) {
	tracks := make([]activity.Track, 0)
	err := repo.db.SelectContext(ctx, &tracks, `
		SELECT student_id, audiobook_id, duration, updated_at FROM tracks
		WHERE student_id = $1 ORDER BY audiobook_id`, studentID)
	return tracks, wrapErr(err, "selecting tracks")
}

func (repo activityRepository) InsertBookmark(ctx context.Context, bookmark activity.Bookmark) (activity.Bookmark, error) {
	q := `
		INSERT INTO bookmarks (audiobook_id, student_id, label, time_offset, created_at)
		VALUES (:audiobook_id, :student_id, :label, :time_offset, :created_at)
		RETURNING id, audiobook_id, student_id, label, time_offset, created_at`
	q, args, err := repo.db.BindNamed(q, bookmark)
	if err != nil {
		return activity.Bookmark{}, wrapErr(err, "binding bookmark")
	}
	var bm activity.Bookmark
	if err = repo.db.GetContext(ctx, &bm, q, args...); err != nil {
		return activity.Bookmark{}, wrapErr(err, "inserting bookmark")
	}
	return bm, nil
}

func (repo activityRepository) QueryBookmarks(ctx context.Context, studentID, audiobookID int) ([]activity.Bookmark, error) {
	bookmarks := make([]activity.Bookmark, 0)
	err := repo.db.SelectContext(ctx, &bookmarks, `
		SELECT id, audiobook_id, student_id, label, time_offset, created_at FROM bookmarks
		WHERE student_id = $1 AND audiobook_id = $2
		ORDER BY created_at DESC, id DESC`, studentID, audiobookID)
	return bookmarks, wrapErr(err, "selecting bookmarks")
}

func (repo activityRepository) GetBookmark(ctx context.Context, id int) (activity.Bookmark, error) {
	var bm activity.Bookmark
	err := repo.db.GetContext(ctx, &bm, `
		SELECT id, audiobook_id, student_id, label, time_offset, created_at FROM bookmarks WHERE id = $1`, id)
	if err != nil {
		return activity.Bookmark{}, trapNoRowsErr(err, activity.ErrBookmarkNotFound, "selecting bookmark")
	}
	return bm, nil
}

func (repo activityRepository) DeleteBookmark(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM bookmarks WHERE id = $1", id)
	if err != nil {
		return wrapErr(err, "deleting bookmark")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err, "deleting bookmark")
	}
	if n == 0 {
		return activity.ErrBookmarkNotFound
	}
	return nil
}
