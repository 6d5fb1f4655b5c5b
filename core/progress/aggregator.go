// Package progress folds recorded activity into the summaries shown on dashboards.
// Every view is gated: students see themselves only, parents see the children they own.
package progress

import (
	"context"
	"sort"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/account"
)

const (
	weekWindow    = 7 * 24 * time.Hour
	historyMonths = 6
	MonthLayout   = "2006-01" // history month keys
)

var NowFunc = time.Now // mockable

type (
	Repository interface {
		// LatestAndHighestPerQuiz returns one row per attempted quiz, ordered by quiz id.
		LatestAndHighestPerQuiz(ctx context.Context, studentID int) ([]QuizProgress, error)
		// QuizWeekdayBuckets groups the attempts made since `since` by UTC weekday. Empty days are absent.
		QuizWeekdayBuckets(ctx context.Context, studentID int, since time.Time) ([]DayBucket, error)
		// GameSubjectStats returns one row per (student, subject) with at least one score.
		GameSubjectStats(ctx context.Context, studentIDs ...int) ([]SubjectStats, error)
		// GameMonthlyAverages groups the scores made since `since` by subject and UTC month.
		GameMonthlyAverages(ctx context.Context, studentID int, since time.Time) ([]SubjectMonth, error)
	}

	StudentSource interface {
		GetStudent(ctx context.Context, id int) (account.Student, error)
		Children(ctx context.Context, parentID int) ([]account.Student, error)
	}

	Aggregator struct {
		repo     Repository
		students StudentSource
	}
)

func NewAggregator(repo Repository, students StudentSource) *Aggregator {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(students, "students"),
	).CheckAndPanic()

	return &Aggregator{repo: repo, students: students}
}

// authorize checks that the viewer may read the student's progress.
// Unknown students are reported as forbidden, like students of another parent.
func (a *Aggregator) authorize(ctx context.Context, viewer Viewer, studentID int) error {
	switch viewer.Role {
	case account.RoleStudent:
		if viewer.ID == studentID {
			return nil
		}
	case account.RoleParent:
		student, err := a.students.GetStudent(ctx, studentID)
		if err != nil {
			if errors.Cause(err) == account.ErrNotFound {
				return core.ErrForbidden
			}
			return errors.Wrap(err, "finding student")
		}
		if student.ParentID == viewer.ID {
			return nil
		}
	}
	return core.ErrForbidden
}

func (a *Aggregator) LatestAndHighestPerQuiz(ctx context.Context, viewer Viewer, studentID int) ([]QuizProgress, error) {
	if err := a.authorize(ctx, viewer, studentID); err != nil {
		return nil, err
	}
	quizzes, err := a.repo.LatestAndHighestPerQuiz(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying quiz progress")
	}
	if quizzes == nil {
		quizzes = []QuizProgress{}
	}
	return quizzes, nil
}

// WeeklyQuizProgress averages the last 7 days of quiz attempts per weekday.
// The result always holds 7 entries, Sunday first.
func (a *Aggregator) WeeklyQuizProgress(ctx context.Context, viewer Viewer, studentID int) ([]DayProgress, error) {
	if err := a.authorize(ctx, viewer, studentID); err != nil {
		return nil, err
	}
	buckets, err := a.repo.QuizWeekdayBuckets(ctx, studentID, NowFunc().UTC().Add(-weekWindow))
	if err != nil {
		return nil, errors.Wrap(err, "querying weekly quiz progress")
	}

	week := make([]DayProgress, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		week[day] = DayProgress{Day: day.String()}
	}
	for _, b := range buckets {
		if b.Weekday < time.Sunday || b.Weekday > time.Saturday {
			continue
		}
		week[b.Weekday].AverageScore = b.AverageScore
		week[b.Weekday].Attempts = b.Attempts
	}
	return week, nil
}

// historyStart returns the first instant of the oldest month kept in game histories.
func historyStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()-(historyMonths-1), 1, 0, 0, 0, 0, time.UTC)
}

// GameScoresBySubject sums up game scores per subject, with a monthly history of the last 6 months.
// Months without scores are left out of the history.
func (a *Aggregator) GameScoresBySubject(ctx context.Context, viewer Viewer, studentID int) ([]SubjectProgress, error) {
	if err := a.authorize(ctx, viewer, studentID); err != nil {
		return nil, err
	}

	stats, err := a.repo.GameSubjectStats(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying game subject stats")
	}
	months, err := a.repo.GameMonthlyAverages(ctx, studentID, historyStart(NowFunc()))
	if err != nil {
		return nil, errors.Wrap(err, "querying game monthly averages")
	}

	history := make(map[int][]MonthAverage)
	for _, m := range months {
		history[m.SubjectID] = append(history[m.SubjectID], MonthAverage{Month: m.Month, AverageScore: m.AverageScore})
	}

	subjects := make([]SubjectProgress, 0, len(stats))
	for _, s := range stats {
		h := history[s.SubjectID]
		if h == nil {
			h = []MonthAverage{}
		}
		sort.Slice(h, func(i, j int) bool { return h[i].Month < h[j].Month })
		subjects = append(subjects, SubjectProgress{
			SubjectID:    s.SubjectID,
			AverageScore: s.Average(),
			HighestScore: s.HighestScore,
			Attempts:     s.Attempts,
			History:      h,
		})
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].SubjectID < subjects[j].SubjectID })
	return subjects, nil
}

// CrossChildComparison compares the game results of the parent's children.
// When studentIDs is empty every child is compared; otherwise each id must belong to the parent.
// Children without scores report zero averages.
func (a *Aggregator) CrossChildComparison(ctx context.Context, viewer Viewer, studentIDs ...int) ([]ChildComparison, error) {
	if viewer.Role != account.RoleParent {
		return nil, core.ErrForbidden
	}

	children, err := a.students.Children(ctx, viewer.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	if len(studentIDs) > 0 {
		owned := make(map[int]account.Student, len(children))
		for _, c := range children {
			owned[c.ID] = c
		}
		selected := make([]account.Student, 0, len(studentIDs))
		seen := make(map[int]bool, len(studentIDs))
		for _, id := range studentIDs {
			child, ok := owned[id]
			if !ok {
				return nil, core.ErrForbidden
			}
			if !seen[id] {
				seen[id] = true
				selected = append(selected, child)
			}
		}
		children = selected
	}

	ids := make([]int, 0, len(children))
	for _, c := range children {
		ids = append(ids, c.ID)
	}

	var stats []SubjectStats
	if len(ids) > 0 {
		if stats, err = a.repo.GameSubjectStats(ctx, ids...); err != nil {
			return nil, errors.Wrap(err, "querying game subject stats")
		}
	}
	byStudent := make(map[int][]SubjectStats, len(ids))
	for _, s := range stats {
		byStudent[s.StudentID] = append(byStudent[s.StudentID], s)
	}

	comparison := make([]ChildComparison, 0, len(children))
	for _, c := range children {
		cmp := ChildComparison{
			StudentID: c.ID,
			Name:      c.Name,
			Grade:     c.Grade,
			Subjects:  []SubjectSummary{},
		}
		var total float64
		for _, s := range byStudent[c.ID] {
			total += s.TotalScore
			cmp.Attempts += s.Attempts
			cmp.Subjects = append(cmp.Subjects, SubjectSummary{
				SubjectID:    s.SubjectID,
				AverageScore: s.Average(),
				Attempts:     s.Attempts,
			})
		}
		if cmp.Attempts > 0 {
			cmp.AverageScore = total / float64(cmp.Attempts)
		}
		sort.Slice(cmp.Subjects, func(i, j int) bool { return cmp.Subjects[i].SubjectID < cmp.Subjects[j].SubjectID })
		comparison = append(comparison, cmp)
	}
	return comparison, nil
}
