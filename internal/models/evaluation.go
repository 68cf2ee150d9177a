package models

import (
	"strconv"
	"time"
)

type Evaluation struct {
	ID             int64    `db:"id" json:"-"`
	StudentID      int64    `db:"student_id" json:"-"`
	Subject        string   `db:"subject" json:"subject" validate:"required"`
	Score          *float64 `db:"score" json:"score" validate:"omitempty,score"`
	EvaluationDate string   `db:"evaluation_date" json:"evaluation_date" validate:"iso_date"`
	Notes          string   `db:"notes" json:"notes"`
}

// ScoreText renders the score in its shortest form ("85.5", "90"), or ""
// when the row carries no score.
func (e *Evaluation) ScoreText() string {
	return FormatScore(e.Score)
}

func FormatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return strconv.FormatFloat(*score, 'f', -1, 64)
}

// ExportRow is one line of the students LEFT JOIN evaluations view.
// EvaluationID is nil for students without evaluations.
type ExportRow struct {
	StudentNumber  string    `db:"student_number"`
	Name           string    `db:"name"`
	CreatedAt      time.Time `db:"created_at"`
	LastModified   time.Time `db:"last_modified"`
	EvaluationID   *int64    `db:"evaluation_id"`
	Subject        string    `db:"subject"`
	Score          *float64  `db:"score"`
	EvaluationDate string    `db:"evaluation_date"`
	Notes          string    `db:"notes"`
}
