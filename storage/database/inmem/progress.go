package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/jifunze/core/progress"
)

type progressRepository struct {
	db *activityTables
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) *progressRepository {
	return &progressRepository{db: db.activity}
}

func (repo *progressRepository) LatestAndHighestPerQuiz(_ context.Context, studentID int) ([]progress.QuizProgress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	latest := make(map[int]int) // quiz_id: latest attempt_number
	byQuiz := make(map[int]*progress.QuizProgress)
	for _, a := range repo.db.quizzes {
		if a.StudentID != studentID {
			continue
		}
		qp, ok := byQuiz[a.QuizID]
		if !ok {
			qp = &progress.QuizProgress{QuizID: a.QuizID, HighestScore: a.Score}
			byQuiz[a.QuizID] = qp
		}
		qp.Attempts++
		if a.Score > qp.HighestScore {
			qp.HighestScore = a.Score
		}
		if a.AttemptNumber > latest[a.QuizID] {
			latest[a.QuizID] = a.AttemptNumber
			qp.LatestScore = a.Score
		}
	}

	quizzes := make([]progress.QuizProgress, 0, len(byQuiz))
	for _, qp := range byQuiz {
		quizzes = append(quizzes, *qp)
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].QuizID < quizzes[j].QuizID })
	return quizzes, nil
}

func (repo *progressRepository) QuizWeekdayBuckets(_ context.Context, studentID int, since time.Time) ([]progress.DayBucket, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var totals [7]float64
	var counts [7]int
	for _, a := range repo.db.quizzes {
		if a.StudentID != studentID || a.AttemptDate.Before(since) {
			continue
		}
		day := a.AttemptDate.UTC().Weekday()
		totals[day] += a.Score
		counts[day]++
	}

	buckets := make([]progress.DayBucket, 0, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		if counts[day] == 0 {
			continue
		}
		buckets = append(buckets, progress.DayBucket{
			Weekday:      day,
			AverageScore: totals[day] / float64(counts[day]),
			Attempts:     counts[day],
		})
	}
	return buckets, nil
}

func (repo *progressRepository) GameSubjectStats(_ context.Context, studentIDs ...int) ([]progress.SubjectStats, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[int]bool, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = true
	}

	type key struct{ studentID, subjectID int }
	byKey := make(map[key]*progress.SubjectStats)
	for _, s := range repo.db.games {
		if !wanted[s.StudentID] {
			continue
		}
		k := key{s.StudentID, s.SubjectID}
		st, ok := byKey[k]
		if !ok {
			st = &progress.SubjectStats{StudentID: s.StudentID, SubjectID: s.SubjectID, HighestScore: s.Score}
			byKey[k] = st
		}
		st.TotalScore += s.Score
		st.Attempts++
		if s.Score > st.HighestScore {
			st.HighestScore = s.Score
		}
	}

	stats := make([]progress.SubjectStats, 0, len(byKey))
	for _, st := range byKey {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].StudentID != stats[j].StudentID {
			return stats[i].StudentID < stats[j].StudentID
		}
		return stats[i].SubjectID < stats[j].SubjectID
	})
	return stats, nil
}

func (repo *progressRepository) GameMonthlyAverages(_ context.Context, studentID int, since time.Time) ([]progress.SubjectMonth, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	type key struct {
		subjectID int
		month     string
	}
	totals := make(map[key]float64)
	counts := make(map[key]int)
	for _, s := range repo.db.games {
		if s.StudentID != studentID || s.AttemptTimestamp.Before(since) {
			continue
		}
		k := key{s.SubjectID, s.AttemptTimestamp.UTC().Format(progress.MonthLayout)}
		totals[k] += s.Score
		counts[k]++
	}

	months := make([]progress.SubjectMonth, 0, len(totals))
	for k, total := range totals {
		months = append(months, progress.SubjectMonth{
			SubjectID:    k.subjectID,
			Month:        k.month,
			AverageScore: total / float64(counts[k]),
		})
	}
	sort.Slice(months, func(i, j int) bool {
		if months[i].SubjectID != months[j].SubjectID {
			return months[i].SubjectID < months[j].SubjectID
		}
		return months[i].Month < months[j].Month
	})
	return months, nil
}
