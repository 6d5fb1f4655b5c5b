package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/account"
	"github.com/trezcool/jifunze/core/activity"
	"github.com/trezcool/jifunze/core/progress"
	"github.com/trezcool/jifunze/services/cache"
	"github.com/trezcool/jifunze/services/email"
	"github.com/trezcool/jifunze/storage/database/inmem"
	"github.com/trezcool/jifunze/tests"
)

// a Wednesday
var now = time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)

type fixture struct {
	agg      *progress.Aggregator
	rec      *activity.Recorder
	ann, dan account.Student
	fay      account.Student
	bea, eve account.Parent
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	accRepo := inmemdb.NewAccountRepository(db)
	accSvc := account.NewService(accRepo, cache.NewMemoryStore(), emailsvc.NewConsoleServiceMock(conf), conf)

	f := fixture{
		agg: progress.NewAggregator(inmemdb.NewProgressRepository(db), accSvc),
		rec: activity.NewRecorder(inmemdb.NewActivityRepository(db), accSvc),
		bea: testutil.CreateParent(t, accRepo, "Bea", "b@x.com", ""),
		eve: testutil.CreateParent(t, accRepo, "Eve", "e@x.com", ""),
	}
	f.ann = testutil.CreateStudent(t, accRepo, "Ann", "a@x.com", "p1", 9, 3, f.bea.ID)
	f.dan = testutil.CreateStudent(t, accRepo, "Dan", "d@x.com", "p1", 7, 2, f.bea.ID)
	f.fay = testutil.CreateStudent(t, accRepo, "Fay", "f@x.com", "p1", 8, 3, f.eve.ID)

	progress.NowFunc = func() time.Time { return now }
	t.Cleanup(func() {
		progress.NowFunc = time.Now
		activity.NowFunc = time.Now
	})
	return f
}

func (f fixture) quiz(t *testing.T, at time.Time, quizID int, score float64) {
	t.Helper()
	activity.NowFunc = func() time.Time { return at }
	if _, err := f.rec.RecordQuizAttempt(context.Background(), activity.NewQuizAttempt{
		StudentID: f.ann.ID, QuizID: quizID, Score: &score,
	}); err != nil {
		t.Fatalf("RecordQuizAttempt() failed: %v", err)
	}
}

func (f fixture) game(t *testing.T, at time.Time, studentID, subjectID int, score float64) {
	t.Helper()
	activity.NowFunc = func() time.Time { return at }
	if _, err := f.rec.RecordGameScore(context.Background(), activity.NewGameScore{
		StudentID: studentID, SubjectID: subjectID, GameID: 1, Score: &score,
	}); err != nil {
		t.Fatalf("RecordGameScore() failed: %v", err)
	}
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 10, 0, 0, 0, time.UTC) }

func TestAggregator_Authorization(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	tests := []struct {
		name      string
		viewer    progress.Viewer
		studentID int
		wantErr   error
	}{
		{name: "self", viewer: progress.Viewer{ID: f.ann.ID, Role: account.RoleStudent}, studentID: f.ann.ID},
		{name: "sibling", viewer: progress.Viewer{ID: f.ann.ID, Role: account.RoleStudent}, studentID: f.dan.ID, wantErr: core.ErrForbidden},
		{name: "parent", viewer: progress.Viewer{ID: f.bea.ID, Role: account.RoleParent}, studentID: f.ann.ID},
		{name: "other parent", viewer: progress.Viewer{ID: f.eve.ID, Role: account.RoleParent}, studentID: f.ann.ID, wantErr: core.ErrForbidden},
		{name: "unknown student", viewer: progress.Viewer{ID: f.bea.ID, Role: account.RoleParent}, studentID: 999, wantErr: core.ErrForbidden},
		{name: "no role", viewer: progress.Viewer{ID: f.ann.ID}, studentID: f.ann.ID, wantErr: core.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.agg.LatestAndHighestPerQuiz(ctx, tt.viewer, tt.studentID)
			assert.Equal(t, tt.wantErr, err)
			_, err = f.agg.WeeklyQuizProgress(ctx, tt.viewer, tt.studentID)
			assert.Equal(t, tt.wantErr, err)
			_, err = f.agg.GameScoresBySubject(ctx, tt.viewer, tt.studentID)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestAggregator_QuizProgress(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	viewer := progress.Viewer{ID: f.ann.ID, Role: account.RoleStudent}

	quizzes, err := f.agg.LatestAndHighestPerQuiz(ctx, viewer, f.ann.ID)
	if assert.NoError(t, err) {
		assert.Equal(t, []progress.QuizProgress{}, quizzes)
	}

	f.quiz(t, day(2026, 3, 5), 5, 10) // outside the week
	f.quiz(t, day(2026, 3, 16), 6, 90)
	f.quiz(t, now.Add(-2*time.Hour), 5, 80)
	f.quiz(t, now.Add(-time.Hour), 5, 60)

	quizzes, err = f.agg.LatestAndHighestPerQuiz(ctx, viewer, f.ann.ID)
	if assert.NoError(t, err) {
		assert.Equal(t, []progress.QuizProgress{
			{QuizID: 5, LatestScore: 60, HighestScore: 80, Attempts: 3},
			{QuizID: 6, LatestScore: 90, HighestScore: 90, Attempts: 1},
		}, quizzes)
	}

	week, err := f.agg.WeeklyQuizProgress(ctx, viewer, f.ann.ID)
	if assert.NoError(t, err) {
		assert.Equal(t, []progress.DayProgress{
			{Day: "Sunday"},
			{Day: "Monday", AverageScore: 90, Attempts: 1},
			{Day: "Tuesday"},
			{Day: "Wednesday", AverageScore: 70, Attempts: 2},
			{Day: "Thursday"},
			{Day: "Friday"},
			{Day: "Saturday"},
		}, week)
	}
}

// the window is the last 7*24h: a week-old attempt later in the day than now shares today's bucket
func TestAggregator_WeeklyQuizProgressWindow(t *testing.T) {
	f := setup(t)
	weekAgo := now.AddDate(0, 0, -7)

	f.quiz(t, weekAgo.Add(-time.Minute), 1, 100) // just outside
	f.quiz(t, weekAgo, 1, 40)                    // boundary is inclusive
	f.quiz(t, weekAgo.Add(time.Hour), 1, 50)
	f.quiz(t, now.Add(-time.Hour), 1, 90)

	week, err := f.agg.WeeklyQuizProgress(context.Background(), progress.Viewer{ID: f.ann.ID, Role: account.RoleStudent}, f.ann.ID)
	if assert.NoError(t, err) && assert.Len(t, week, 7) {
		assert.Equal(t, progress.DayProgress{Day: "Wednesday", AverageScore: 60, Attempts: 3}, week[time.Wednesday])
		for day, d := range week {
			if time.Weekday(day) != time.Wednesday {
				assert.Zero(t, d.Attempts, d.Day)
			}
		}
	}
}

func TestAggregator_WeeklyQuizProgressEmpty(t *testing.T) {
	f := setup(t)
	week, err := f.agg.WeeklyQuizProgress(context.Background(), progress.Viewer{ID: f.bea.ID, Role: account.RoleParent}, f.dan.ID)
	if assert.NoError(t, err) && assert.Len(t, week, 7) {
		for _, d := range week {
			assert.Zero(t, d.Attempts)
			assert.Zero(t, d.AverageScore)
		}
		assert.Equal(t, "Sunday", week[0].Day)
		assert.Equal(t, "Saturday", week[6].Day)
	}
}

func TestAggregator_GameScoresBySubject(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	f.game(t, day(2025, 9, 15), f.ann.ID, 1, 100) // before the history window
	f.game(t, day(2025, 11, 10), f.ann.ID, 1, 40)
	f.game(t, day(2025, 11, 20), f.ann.ID, 1, 60)
	f.game(t, day(2026, 3, 1), f.ann.ID, 1, 80)
	f.game(t, day(2026, 2, 2), f.ann.ID, 2, 30)
	f.game(t, day(2026, 2, 2), f.dan.ID, 2, 99)

	subjects, err := f.agg.GameScoresBySubject(ctx, progress.Viewer{ID: f.bea.ID, Role: account.RoleParent}, f.ann.ID)
	if !assert.NoError(t, err) || !assert.Len(t, subjects, 2) {
		return
	}

	math := subjects[0]
	assert.Equal(t, 1, math.SubjectID)
	assert.Equal(t, 4, math.Attempts)
	assert.InDelta(t, 70, math.AverageScore, 1e-9)
	assert.InDelta(t, 100, math.HighestScore, 1e-9)
	assert.Equal(t, []progress.MonthAverage{
		{Month: "2025-11", AverageScore: 50},
		{Month: "2026-03", AverageScore: 80},
	}, math.History)

	reading := subjects[1]
	assert.Equal(t, 2, reading.SubjectID)
	assert.Equal(t, 1, reading.Attempts)
	assert.Equal(t, []progress.MonthAverage{{Month: "2026-02", AverageScore: 30}}, reading.History)
}

func TestAggregator_CrossChildComparison(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	bea := progress.Viewer{ID: f.bea.ID, Role: account.RoleParent}

	f.game(t, day(2026, 3, 1), f.ann.ID, 1, 80)
	f.game(t, day(2026, 3, 2), f.ann.ID, 1, 60)
	f.game(t, day(2026, 3, 3), f.ann.ID, 2, 40)
	f.game(t, day(2026, 3, 3), f.fay.ID, 2, 100)

	children, err := f.agg.CrossChildComparison(ctx, bea)
	if assert.NoError(t, err) && assert.Len(t, children, 2) {
		ann, dan := children[0], children[1]
		assert.Equal(t, f.ann.ID, ann.StudentID)
		assert.Equal(t, "Ann", ann.Name)
		assert.Equal(t, 3, ann.Grade)
		assert.Equal(t, 3, ann.Attempts)
		assert.InDelta(t, 60, ann.AverageScore, 1e-9)
		assert.Equal(t, []progress.SubjectSummary{
			{SubjectID: 1, AverageScore: 70, Attempts: 2},
			{SubjectID: 2, AverageScore: 40, Attempts: 1},
		}, ann.Subjects)

		assert.Equal(t, progress.ChildComparison{
			StudentID: f.dan.ID,
			Name:      "Dan",
			Grade:     2,
			Subjects:  []progress.SubjectSummary{},
		}, dan)
	}

	children, err = f.agg.CrossChildComparison(ctx, bea, f.dan.ID, f.dan.ID)
	if assert.NoError(t, err) && assert.Len(t, children, 1) {
		assert.Equal(t, f.dan.ID, children[0].StudentID)
	}

	_, err = f.agg.CrossChildComparison(ctx, bea, f.ann.ID, f.fay.ID)
	assert.Equal(t, core.ErrForbidden, err)

	_, err = f.agg.CrossChildComparison(ctx, progress.Viewer{ID: f.ann.ID, Role: account.RoleStudent})
	assert.Equal(t, core.ErrForbidden, err)

	// a parent without children
	noKids, err := f.agg.CrossChildComparison(ctx, progress.Viewer{ID: 999, Role: account.RoleParent})
	if assert.NoError(t, err) {
		assert.Empty(t, noKids)
	}
}
