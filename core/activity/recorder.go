package activity

import (
	"context"
	"math"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/account"
)

var (
	// errors
	ErrDuplicateAttempt = errors.New("this attempt was recorded concurrently, please retry")
	ErrBookmarkNotFound = errors.New("bookmark not found")
	ErrStudentNotFound  = errors.New("student not found")
	ErrStudentRequired  = errors.New("student_id is required")
	ErrInvalidScore     = errors.New("score must be a finite number")
	ErrInvalidDuration  = errors.New("duration must not be negative")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// InsertQuizAttempt numbers the attempt as 1 + the highest number of the (student, quiz) pair.
		// A numbering conflict with a concurrent writer is reported as ErrDuplicateAttempt.
		InsertQuizAttempt(ctx context.Context, attempt QuizAttempt) (QuizAttempt, error)
		// InsertGameScore numbers the score per (student, subject, game), like InsertQuizAttempt.
		InsertGameScore(ctx context.Context, score GameScore) (GameScore, error)
		// AddTrackDuration adds delta to the stored duration, creating the track when absent.
		AddTrackDuration(ctx context.Context, track Track) (stored Track, created bool, err error)
		QueryTracks(ctx context.Context, studentID int) ([]Track, error)
		InsertBookmark(ctx context.Context, bookmark Bookmark) (Bookmark, error)
		// QueryBookmarks returns newest first.
		QueryBookmarks(ctx context.Context, studentID, audiobookID int) ([]Bookmark, error)
		GetBookmark(ctx context.Context, id int) (Bookmark, error)
		DeleteBookmark(ctx context.Context, id int) error
	}

	StudentGetter interface {
		GetStudent(ctx context.Context, id int) (account.Student, error)
	}

	Recorder struct {
		repo     Repository
		students StudentGetter
	}
)

func NewRecorder(repo Repository, students StudentGetter) *Recorder {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(students, "students"),
	).CheckAndPanic()

	return &Recorder{repo: repo, students: students}
}

func checkScore(score *float64) error {
	if score == nil || math.IsNaN(*score) || math.IsInf(*score, 0) {
		return core.NewFieldError("score", ErrInvalidScore.Error())
	}
	return nil
}

// RecordQuizAttempt appends a quiz attempt for the student named in the submission.
func (r *Recorder) RecordQuizAttempt(ctx context.Context, na NewQuizAttempt) (QuizAttempt, error) {
	if na.StudentID <= 0 {
		return QuizAttempt{}, core.NewFieldError("student_id", ErrStudentRequired.Error())
	}
	if err := checkScore(na.Score); err != nil {
		return QuizAttempt{}, err
	}
	if _, err := r.students.GetStudent(ctx, na.StudentID); err != nil {
		if errors.Cause(err) == account.ErrNotFound {
			return QuizAttempt{}, core.NewFieldError("student_id", ErrStudentNotFound.Error())
		}
		return QuizAttempt{}, errors.Wrap(err, "finding student")
	}

	attempt, err := r.repo.InsertQuizAttempt(ctx, QuizAttempt{
		StudentID:   na.StudentID,
		QuizID:      na.QuizID,
		Score:       *na.Score,
		AttemptDate: NowFunc().UTC(),
	})
	if err != nil && errors.Cause(err) != ErrDuplicateAttempt {
		return QuizAttempt{}, errors.Wrap(err, "inserting quiz attempt")
	}
	return attempt, err
}

// RecordGameScore appends a game score for the student.
func (r *Recorder) RecordGameScore(ctx context.Context, ng NewGameScore) (GameScore, error) {
	if err := checkScore(ng.Score); err != nil {
		return GameScore{}, err
	}

	score, err := r.repo.InsertGameScore(ctx, GameScore{
		StudentID:        ng.StudentID,
		SubjectID:        ng.SubjectID,
		GameID:           ng.GameID,
		Score:            *ng.Score,
		AttemptTimestamp: NowFunc().UTC(),
	})
	if err != nil && errors.Cause(err) != ErrDuplicateAttempt {
		return GameScore{}, errors.Wrap(err, "inserting game score")
	}
	return score, err
}

// RecordTrackDuration adds delta seconds to the student's listening total for the audiobook.
// created reports whether the track did not exist before.
func (r *Recorder) RecordTrackDuration(ctx context.Context, studentID, audiobookID int, delta int64) (Track, bool, error) {
	if delta < 0 {
		return Track{}, false, core.NewFieldError("duration", ErrInvalidDuration.Error())
	}
	track, created, err := r.repo.AddTrackDuration(ctx, Track{
		StudentID:   studentID,
		AudiobookID: audiobookID,
		Duration:    delta,
		UpdatedAt:   NowFunc().UTC(),
	})
	if err != nil {
		return Track{}, false, errors.Wrap(err, "adding track duration")
	}
	return track, created, nil
}

func (r *Recorder) Tracks(ctx context.Context, studentID int) ([]Track, error) {
	return r.repo.QueryTracks(ctx, studentID)
}

func (r *Recorder) AddBookmark(ctx context.Context, studentID, audiobookID int, nb NewBookmark) (Bookmark, error) {
	bm := Bookmark{
		AudiobookID: audiobookID,
		StudentID:   studentID,
		Label:       null.NewString(nb.Label, nb.Label != ""),
		CreatedAt:   NowFunc().UTC(),
	}
	if nb.TimeOffset != nil {
		bm.TimeOffset = *nb.TimeOffset
	}
	return r.repo.InsertBookmark(ctx, bm)
}

func (r *Recorder) Bookmarks(ctx context.Context, studentID, audiobookID int) ([]Bookmark, error) {
	return r.repo.QueryBookmarks(ctx, studentID, audiobookID)
}

// DeleteBookmark removes one of the student's bookmarks.
// Bookmarks of other students are reported as core.ErrForbidden.
func (r *Recorder) DeleteBookmark(ctx context.Context, studentID, bookmarkID int) error {
	bm, err := r.repo.GetBookmark(ctx, bookmarkID)
	if err != nil {
		return err
	}
	if bm.StudentID != studentID {
		return core.ErrForbidden
	}
	return r.repo.DeleteBookmark(ctx, bookmarkID)
}
