// Package validate holds the pure input checks for student and evaluation
// records. The same checks are registered as validator/v10 tags so models
// and configuration can be validated with struct tags.
package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	DateLayout    = "2006-01-02"
	MaxNameLength = 20
	MinScore      = 0.0
	MaxScore      = 100.0
)

var (
	dateRegex          = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	studentSuffixRegex = regexp.MustCompile(`^\d{4,10}$`)
	yearRegex          = regexp.MustCompile(`^\d{4}$`)
)

// IsValidDate accepts YYYY-MM-DD strings that denote a real calendar date.
func IsValidDate(s string) bool {
	if s == "" || !dateRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// IsValidStudentNumber checks the user-entered suffix (4-10 digits), not the
// composed identifier.
func IsValidStudentNumber(s string) bool {
	return s != "" && studentSuffixRegex.MatchString(s)
}

func IsValidScore(s string) bool {
	_, ok := ParseScore(s)
	return ok
}

// ParseScore parses s as a float and reports whether it lies in [0, 100].
func ParseScore(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, ScoreInRange(v)
}

func ScoreInRange(v float64) bool {
	return v >= MinScore && v <= MaxScore
}

// IsValidName allows 1-20 letters (any script), digits and whitespace.
func IsValidName(s string) bool {
	n := utf8.RuneCountInString(s)
	if n == 0 || n > MaxNameLength {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func IsValidYear(s string) bool {
	return yearRegex.MatchString(s)
}
