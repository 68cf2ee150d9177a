package apperr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := Duplicate("add student", "student number %s already exists", "20240001")

	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.False(t, errors.Is(err, ErrNotFound))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, errors.Is(wrapped, ErrDuplicate))
	assert.Equal(t, KindDuplicate, KindOf(wrapped))
}

func TestIOKeepsClassifiedErrors(t *testing.T) {
	nf := NotFound("delete student", "no student %s", "x")
	assert.Same(t, nf, IO("delete student", nf))

	err := IO("export", io.ErrUnexpectedEOF)
	assert.True(t, errors.Is(err, ErrIO))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

	assert.NoError(t, IO("noop", nil))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		lang string
		want string
	}{
		{
			name: "korean duplicate",
			err:  Duplicate("add student", "20240001"),
			lang: LangKo,
			want: "이미 존재하는 학번입니다: 20240001",
		},
		{
			name: "english not found",
			err:  NotFound("delete student", "20240001"),
			lang: LangEn,
			want: "student or evaluation not found: 20240001",
		},
		{
			name: "wrapped cause",
			err:  Wrap(KindIO, "export", io.ErrShortWrite),
			lang: LangEn,
			want: "file or database failure: short write",
		},
		{
			name: "bare sentinel",
			err:  ErrFormatMismatch,
			lang: LangEn,
			want: "CSV columns do not match",
		},
		{
			name: "unknown language falls back",
			err:  ErrInvalid,
			lang: "fr",
			want: "입력값이 올바르지 않습니다",
		},
		{
			name: "unclassified",
			err:  errors.New("boom"),
			lang: LangEn,
			want: "unexpected error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err, tt.lang))
		})
	}
}
