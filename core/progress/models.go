package progress

import (
	"time"

	"github.com/trezcool/jifunze/core/account"
)

// Viewer is the authenticated principal asking for a progress view.
type Viewer struct {
	ID   int
	Role account.Role
}

// QuizProgress sums up the attempts of one quiz.
type QuizProgress struct {
	QuizID       int     `json:"quiz_id" db:"quiz_id"`
	LatestScore  float64 `json:"latest_score" db:"latest_score"`
	HighestScore float64 `json:"highest_score" db:"highest_score"`
	Attempts     int     `json:"attempts" db:"attempts"`
}

type DayProgress struct {
	Day          string  `json:"day"`
	AverageScore float64 `json:"average_score"`
	Attempts     int     `json:"attempts"`
}

// DayBucket is the raw aggregate of one weekday, as returned by the store.
type DayBucket struct {
	Weekday      time.Weekday `db:"weekday"`
	AverageScore float64      `db:"average_score"`
	Attempts     int          `db:"attempts"`
}

type SubjectProgress struct {
	SubjectID    int            `json:"subject_id"`
	AverageScore float64        `json:"average_score"`
	HighestScore float64        `json:"highest_score"`
	Attempts     int            `json:"attempts"`
	History      []MonthAverage `json:"history"`
}

type MonthAverage struct {
	Month        string  `json:"month"` // YYYY-MM
	AverageScore float64 `json:"average_score"`
}

// SubjectStats is the raw game-score aggregate of one (student, subject) pair.
type SubjectStats struct {
	StudentID    int     `db:"student_id"`
	SubjectID    int     `db:"subject_id"`
	TotalScore   float64 `db:"total_score"`
	HighestScore float64 `db:"highest_score"`
	Attempts     int     `db:"attempts"`
}

func (ss SubjectStats) Average() float64 {
	if ss.Attempts == 0 {
		return 0
	}
	return ss.TotalScore / float64(ss.Attempts)
}

// SubjectMonth is the raw monthly game-score average of one subject.
type SubjectMonth struct {
	SubjectID    int     `db:"subject_id"`
	Month        string  `db:"month"`
	AverageScore float64 `db:"average_score"`
}

type ChildComparison struct {
	StudentID    int              `json:"student_id"`
	Name         string           `json:"name"`
	Grade        int              `json:"grade"`
	AverageScore float64          `json:"average_score"`
	Attempts     int              `json:"attempts"`
	Subjects     []SubjectSummary `json:"subjects"`
}

type SubjectSummary struct {
	SubjectID    int     `json:"subject_id"`
	AverageScore float64 `json:"average_score"`
	Attempts     int     `json:"attempts"`
}
