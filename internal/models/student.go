package models

import (
	"time"

	"github.com/shrimpsizemoose/gradebook/internal/ident"
)

// TimestampLayout is the text form of created_at/last_modified in exports.
const TimestampLayout = "2006-01-02 15:04:05"

type Student struct {
	ID            int64     `db:"id" json:"-"`
	StudentNumber string    `db:"student_number" json:"student_number" validate:"required"`
	Name          string    `db:"name" json:"name" validate:"person_name"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	LastModified  time.Time `db:"last_modified" json:"last_modified"`
}

// Year is the four character prefix of the student number, or "" for
// numbers shorter than that.
func (s *Student) Year() string {
	return ident.Year(s.StudentNumber)
}

type Stats struct {
	Students     int     `db:"student_count" json:"student_count"`
	Evaluations  int     `db:"evaluation_count" json:"evaluation_count"`
	AverageScore float64 `db:"average_score" json:"average_score"`
}
