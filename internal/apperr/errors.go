// Package apperr classifies the errors surfaced to the presentation layer.
//
// Every failure that leaves the record store, the CSV exchange or the backup
// code is an *Error carrying one Kind. Callers branch on the kind with
// errors.Is against the sentinels below, and render a single line for the
// user with Message.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindInvalid
	KindDuplicate
	KindNotFound
	KindFormatMismatch
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindDuplicate:
		return "duplicate"
	case KindNotFound:
		return "not_found"
	case KindFormatMismatch:
		return "format_mismatch"
	case KindIO:
		return "io_failure"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalid        = &Error{Kind: KindInvalid}
	ErrDuplicate      = &Error{Kind: KindDuplicate}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrFormatMismatch = &Error{Kind: KindFormatMismatch}
	ErrIO             = &Error{Kind: KindIO}
)

type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "add student"
	Msg  string // detail for the user
	Err  error  // underlying cause, if any
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Op != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Invalid(op, format string, args ...any) *Error {
	return New(KindInvalid, op, format, args...)
}

func Duplicate(op, format string, args ...any) *Error {
	return New(KindDuplicate, op, format, args...)
}

func NotFound(op, format string, args ...any) *Error {
	return New(KindNotFound, op, format, args...)
}

// IO wraps an unexpected driver or filesystem failure. Errors that are
// already classified pass through untouched.
func IO(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return Wrap(KindIO, op, err)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}
