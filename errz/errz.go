// Package errz defines the structured error types shared across the toolchain.
package errz

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of an error.
type ErrorKind int

const (
	// ErrSyntax indicates a structural error in the source, detected before
	// either engine runs. Always carries a source line.
	ErrSyntax ErrorKind = iota
	// ErrBounds indicates the interpreter moved the cursor below index 0 or
	// at/past the configured maximum tape size. Fatal to the run.
	ErrBounds
	// ErrIO indicates an unreadable input or unwritable output artifact.
	ErrIO
	// ErrBackend indicates an internal inconsistency during lowering or
	// object emission. A defect, not a user error.
	ErrBackend
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrSyntax:
		return "syntax error"
	case ErrBounds:
		return "bounds error"
	case ErrIO:
		return "io error"
	case ErrBackend:
		return "backend error"
	default:
		return "error"
	}
}

// Error is a structured error carrying its kind and, for syntax errors, the
// 1-based source line it was detected on. No error kind is retried; every
// kind halts the current run.
type Error struct {
	Kind    ErrorKind
	Message string
	Line    int // 1-based; 0 if not applicable
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Kind, e.Message, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause of the error, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCause wraps the error with a cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// New creates an Error of the given kind.
func New(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewSyntax creates a syntax error located on the given 1-based line.
func NewSyntax(line int, message string) *Error {
	return &Error{Kind: ErrSyntax, Message: message, Line: line}
}

// KindOf returns the kind of the first *Error in err's chain, and whether
// one was found.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
