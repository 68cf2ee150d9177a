package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompose(t *testing.T) {
	assert.Equal(t, "20240001", Compose("2024", "0001"))
	assert.Equal(t, "0001", Compose("", "0001"))
}

func TestDecompose(t *testing.T) {
	tests := []struct {
		full       string
		wantYear   string
		wantSuffix string
	}{
		{"20240001", "2024", "0001"},
		{"2024", "2024", ""},
		{"202", "", "202"},
		{"", "", ""},
		{"2024001234567", "2024", "001234567"},
	}

	for _, tt := range tests {
		t.Run(tt.full, func(t *testing.T) {
			year, suffix := Decompose(tt.full)
			assert.Equal(t, tt.wantYear, year)
			assert.Equal(t, tt.wantSuffix, suffix)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	year, suffix := Decompose(Compose("2023", "123456"))
	assert.Equal(t, "2023", year)
	assert.Equal(t, "123456", suffix)
	assert.Equal(t, "2023", Year("2023123456"))
}
