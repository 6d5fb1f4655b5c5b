package activity_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/account"
	"github.com/trezcool/jifunze/core/activity"
	"github.com/trezcool/jifunze/services/cache"
	"github.com/trezcool/jifunze/services/email"
	"github.com/trezcool/jifunze/storage/database/inmem"
	"github.com/trezcool/jifunze/tests"
)

type fixture struct {
	rec *activity.Recorder
	ann account.Student
	dan account.Student
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	accRepo := inmemdb.NewAccountRepository(db)
	accSvc := account.NewService(accRepo, cache.NewMemoryStore(), emailsvc.NewConsoleServiceMock(conf), conf)

	bea := testutil.CreateParent(t, accRepo, "Bea", "b@x.com", "")
	return fixture{
		rec: activity.NewRecorder(inmemdb.NewActivityRepository(db), accSvc),
		ann: testutil.CreateStudent(t, accRepo, "Ann", "a@x.com", "p1", 9, 3, bea.ID),
		dan: testutil.CreateStudent(t, accRepo, "Dan", "d@x.com", "p1", 7, 2, bea.ID),
	}
}

func score(f float64) *float64 { return &f }

func validationFields(err error) []core.FieldError {
	if vErr, ok := errors.Cause(err).(*core.ValidationError); ok {
		return vErr.Fields
	}
	return nil
}

func TestRecorder_RecordQuizAttempt(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	activity.NowFunc = func() time.Time { return now }
	defer func() { activity.NowFunc = time.Now }()

	for want := 1; want <= 3; want++ {
		a, err := f.rec.RecordQuizAttempt(ctx, activity.NewQuizAttempt{StudentID: f.ann.ID, QuizID: 5, Score: score(80)})
		if assert.NoError(t, err) {
			assert.Equal(t, want, a.AttemptNumber)
			assert.Equal(t, now, a.AttemptDate)
		}
	}

	// numbering is per (student, quiz)
	a, err := f.rec.RecordQuizAttempt(ctx, activity.NewQuizAttempt{StudentID: f.ann.ID, QuizID: 6, Score: score(0)})
	if assert.NoError(t, err) {
		assert.Equal(t, 1, a.AttemptNumber)
	}
	a, err = f.rec.RecordQuizAttempt(ctx, activity.NewQuizAttempt{StudentID: f.dan.ID, QuizID: 5, Score: score(50)})
	if assert.NoError(t, err) {
		assert.Equal(t, 1, a.AttemptNumber)
	}
}

func TestRecorder_RecordQuizAttemptInvalid(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	tests := []struct {
		name      string
		attempt   activity.NewQuizAttempt
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing student",
			attempt:   activity.NewQuizAttempt{QuizID: 5, Score: score(1)},
			wantField: "student_id",
			wantMsg:   "student_id is required",
		},
		{
			name:      "unknown student",
			attempt:   activity.NewQuizAttempt{StudentID: 999, QuizID: 5, Score: score(1)},
			wantField: "student_id",
			wantMsg:   activity.ErrStudentNotFound.Error(),
		},
		{
			name:      "missing score",
			attempt:   activity.NewQuizAttempt{StudentID: f.ann.ID, QuizID: 5},
			wantField: "score",
			wantMsg:   activity.ErrInvalidScore.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.rec.RecordQuizAttempt(ctx, tt.attempt)
			assert.Equal(t, []core.FieldError{{Field: tt.wantField, Error: tt.wantMsg}}, validationFields(err))
		})
	}
}

func TestRecorder_ConcurrentAttemptsAreDistinct(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	const n = 10
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got = make(map[int]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gs, err := f.rec.RecordGameScore(ctx, activity.NewGameScore{StudentID: f.ann.ID, SubjectID: 1, GameID: 2, Score: score(10)})
			if err != nil {
				t.Errorf("RecordGameScore() failed: %v", err)
				return
			}
			mu.Lock()
			got[gs.AttemptNumber] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, got, n)
	for i := 1; i <= n; i++ {
		assert.True(t, got[i], "missing attempt number %d", i)
	}
}

func TestRecorder_RecordTrackDuration(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	track, created, err := f.rec.RecordTrackDuration(ctx, f.ann.ID, 4, 30)
	if assert.NoError(t, err) {
		assert.True(t, created)
		assert.Equal(t, int64(30), track.Duration)
	}
	track, created, err = f.rec.RecordTrackDuration(ctx, f.ann.ID, 4, 25)
	if assert.NoError(t, err) {
		assert.False(t, created)
		assert.Equal(t, int64(55), track.Duration)
	}
	track, _, err = f.rec.RecordTrackDuration(ctx, f.ann.ID, 4, 0)
	if assert.NoError(t, err) {
		assert.Equal(t, int64(55), track.Duration)
	}

	_, _, err = f.rec.RecordTrackDuration(ctx, f.ann.ID, 4, -1)
	assert.Equal(t, []core.FieldError{{Field: "duration", Error: activity.ErrInvalidDuration.Error()}}, validationFields(err))

	_, _, _ = f.rec.RecordTrackDuration(ctx, f.ann.ID, 9, 5)
	_, _, _ = f.rec.RecordTrackDuration(ctx, f.dan.ID, 4, 100)

	tracks, err := f.rec.Tracks(ctx, f.ann.ID)
	if assert.NoError(t, err) && assert.Len(t, tracks, 2) {
		total := map[int]int64{}
		for _, tr := range tracks {
			assert.Equal(t, f.ann.ID, tr.StudentID)
			total[tr.AudiobookID] = tr.Duration
		}
		assert.Equal(t, map[int]int64{4: 55, 9: 5}, total)
	}
}

func TestRecorder_Bookmarks(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	base := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	tick := 0
	activity.NowFunc = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }
	defer func() { activity.NowFunc = time.Now }()

	offset := 120
	first, err := f.rec.AddBookmark(ctx, f.ann.ID, 4, activity.NewBookmark{Label: "chapter 2", TimeOffset: &offset})
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "chapter 2", first.Label.String)
	assert.Equal(t, 120, first.TimeOffset)

	second, err := f.rec.AddBookmark(ctx, f.ann.ID, 4, activity.NewBookmark{TimeOffset: &offset})
	if assert.NoError(t, err) {
		assert.False(t, second.Label.Valid)
	}
	danBM, _ := f.rec.AddBookmark(ctx, f.dan.ID, 4, activity.NewBookmark{TimeOffset: &offset})

	bookmarks, err := f.rec.Bookmarks(ctx, f.ann.ID, 4)
	if assert.NoError(t, err) && assert.Len(t, bookmarks, 2) {
		assert.Equal(t, second.ID, bookmarks[0].ID, "newest first")
		assert.Equal(t, first.ID, bookmarks[1].ID)
	}

	assert.Equal(t, core.ErrForbidden, f.rec.DeleteBookmark(ctx, f.ann.ID, danBM.ID))
	assert.Equal(t, activity.ErrBookmarkNotFound, errors.Cause(f.rec.DeleteBookmark(ctx, f.ann.ID, 999)))
	assert.NoError(t, f.rec.DeleteBookmark(ctx, f.ann.ID, first.ID))
	assert.Equal(t, activity.ErrBookmarkNotFound, errors.Cause(f.rec.DeleteBookmark(ctx, f.ann.ID, first.ID)))

	bookmarks, _ = f.rec.Bookmarks(ctx, f.ann.ID, 4)
	assert.Len(t, bookmarks, 1)
}
