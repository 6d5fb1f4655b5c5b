package activity

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/jifunze/core"
)

type QuizAttempt struct {
	ID            int       `json:"id" db:"id"`
	StudentID     int       `json:"student_id" db:"student_id"`
	QuizID        int       `json:"quiz_id" db:"quiz_id"`
	AttemptNumber int       `json:"attempt_number" db:"attempt_number"`
	Score         float64   `json:"score" db:"score"`
	AttemptDate   time.Time `json:"attempt_date" db:"attempt_date"` // UTC
}

type GameScore struct {
	ID               int       `json:"id" db:"id"`
	StudentID        int       `json:"student_id" db:"student_id"`
	SubjectID        int       `json:"subject_id" db:"subject_id"`
	GameID           int       `json:"game_id" db:"game_id"`
	Score            float64   `json:"score" db:"score"`
	AttemptNumber    int       `json:"attempt_number" db:"attempt_number"`
	AttemptTimestamp time.Time `json:"attempt_timestamp" db:"attempt_timestamp"` // UTC
}

// Track holds the cumulative listening time of a student on an audiobook.
type Track struct {
	StudentID   int       `json:"student_id" db:"student_id"`
	AudiobookID int       `json:"audiobook_id" db:"audiobook_id"`
	Duration    int64     `json:"duration" db:"duration"` // seconds
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Bookmark struct {
	ID          int         `json:"id" db:"id"`
	AudiobookID int         `json:"audiobook_id" db:"audiobook_id"`
	StudentID   int         `json:"student_id" db:"student_id"`
	Label       null.String `json:"label" db:"label"`
	TimeOffset  int         `json:"time_offset" db:"time_offset"` // seconds
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

type NewQuizAttempt struct {
	StudentID int      `json:"student_id" validate:"required"`
	QuizID    int      `json:"quiz_id" validate:"required"`
	Score     *float64 `json:"score" validate:"required,finite"`
}

// Validate reports a missing student first, with its own message.
func (na *NewQuizAttempt) Validate(validate *validator.Validate) error {
	if na.StudentID <= 0 {
		return core.NewFieldError("student_id", ErrStudentRequired.Error())
	}
	return validate.Struct(na)
}

type NewGameScore struct {
	StudentID int      `json:"student_id" validate:"required"`
	SubjectID int      `json:"subject_id" validate:"required"`
	GameID    int      `json:"game_id" validate:"required"`
	Score     *float64 `json:"score" validate:"required,finite"`
}

func (ng *NewGameScore) Validate(validate *validator.Validate) error { return validate.Struct(ng) }

type TrackDuration struct {
	Duration *int64 `json:"duration" validate:"required,min=0"`
}

func (td *TrackDuration) Validate(validate *validator.Validate) error { return validate.Struct(td) }

type NewBookmark struct {
	Label      string `json:"label" validate:"max=255"`
	TimeOffset *int   `json:"time_offset" validate:"required,min=0"`
}

func (nb *NewBookmark) Validate(validate *validator.Validate) error {
	nb.Label = core.CleanString(nb.Label)
	return validate.Struct(nb)
}
