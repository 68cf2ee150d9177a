package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidDate(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"2024-01-20", true},
		{"2024-02-29", true},
		{"1999-12-31", true},
		{"2023-02-29", false},
		{"2024-13-01", false},
		{"2024-01-32", false},
		{"2024-00-10", false},
		{"2024/01/20", false},
		{"2024-1-20", false},
		{" 2024-01-20", false},
		{"2024-01-20T00:00:00", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidDate(tt.input))
		})
	}
}

func TestIsValidStudentNumber(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"0001", true},
		{"1234567890", true},
		{"123", false},
		{"12345678901", false},
		{"12a4", false},
		{"-1234", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidStudentNumber(tt.input))
		})
	}
}

func TestIsValidScore(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"0", true},
		{"100", true},
		{"85.5", true},
		{" 42 ", true},
		{"1e1", true},
		{"-0.1", false},
		{"100.01", false},
		{"abc", false},
		{"NaN", false},
		{"Inf", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidScore(tt.input))
		})
	}
}

func TestParseScore(t *testing.T) {
	v, ok := ParseScore("85.5")
	assert.True(t, ok)
	assert.Equal(t, 85.5, v)

	v, ok = ParseScore("150")
	assert.False(t, ok)
	assert.Equal(t, 150.0, v)
}

func TestIsValidName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"korean", "홍길동", true},
		{"latin with space", "John Smith", true},
		{"digits", "Student 2", true},
		{"cyrillic", "Иван", true},
		{"twenty runes", "가나다라마바사아자차카타파하가나다라마바", true},
		{"twenty one runes", "가나다라마바사아자차카타파하가나다라마바사", false},
		{"punctuation", "O'Brien", false},
		{"hyphen", "Kim-Lee", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidName(tt.input))
		})
	}
}

func TestIsValidYear(t *testing.T) {
	assert.True(t, IsValidYear("2024"))
	assert.False(t, IsValidYear("24"))
	assert.False(t, IsValidYear("20245"))
	assert.False(t, IsValidYear("20a4"))
}

func TestStructTags(t *testing.T) {
	type form struct {
		Year   string  `db:"year" validate:"year4"`
		Suffix string  `db:"suffix" validate:"student_suffix"`
		Name   string  `db:"name" validate:"person_name"`
		Date   string  `db:"evaluation_date" validate:"iso_date"`
		Score  float64 `db:"score" validate:"score"`
	}

	ok := form{Year: "2024", Suffix: "0001", Name: "홍길동", Date: "2024-01-20", Score: 85.5}
	require.NoError(t, Struct(ok))

	bad := form{Year: "24", Suffix: "1", Name: "", Date: "2024-13-01", Score: 101}
	err := Struct(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "year must be a four digit year")
	assert.Contains(t, err.Error(), "suffix must be 4 to 10 digits")
	assert.Contains(t, err.Error(), "name must be 1 to 20 letters, digits or spaces")
	assert.Contains(t, err.Error(), "evaluation_date must be a real date in YYYY-MM-DD form")
	assert.Contains(t, err.Error(), "score must be a number between 0 and 100")
}
