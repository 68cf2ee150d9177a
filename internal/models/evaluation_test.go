package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreText(t *testing.T) {
	score := func(v float64) *float64 { return &v }

	tests := []struct {
		name  string
		score *float64
		want  string
	}{
		{"fraction", score(85.5), "85.5"},
		{"whole", score(90), "90"},
		{"zero", score(0), "0"},
		{"null", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Evaluation{Score: tt.score}
			assert.Equal(t, tt.want, ev.ScoreText())
		})
	}
}

func TestStudentYear(t *testing.T) {
	s := Student{StudentNumber: "20240001"}
	assert.Equal(t, "2024", s.Year())

	s.StudentNumber = "123"
	assert.Equal(t, "", s.Year())
}
