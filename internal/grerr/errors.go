// Package grerr defines the sentinel error taxonomy shared across the rule
// engine, modeled on the teacher's internal/common/errors package: a small
// set of wrapped sentinels callers inspect with errors.Is, rather than a
// hierarchy of exported error types.
package grerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers actions, rules, and entities missing at execution
	// time. Surfaced as a failure result, not propagated as a panic/fatal.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists covers duplicate rule-name registration.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput covers parse and validation failures raised to an
	// uploader.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPreconditionFailed marks a precondition that evaluated falsy.
	// Callers should prefer the ON_FAILURE text carried alongside it.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrTimeout is the taxonomy's timeout sentinel. The batch executor
	// does not wrap a task's per-item deadline error in it.
	ErrTimeout = errors.New("operation timed out")

	// ErrStore covers a failure from the underlying relational store.
	ErrStore = errors.New("store error")

	// ErrCascadeOverflow marks a rule-engine cascade that exceeded the
	// configured depth limit. The triggering action still succeeds.
	ErrCascadeOverflow = errors.New("cascade depth exceeded")

	// ErrListener marks an error returned from inside an event listener,
	// aborting the remainder of that emit's fan-out. Listener panics are
	// not recovered and do not become ErrListener.
	ErrListener = errors.New("listener error")
)

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Invalidf wraps ErrInvalidInput with a formatted message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidInput)...)
}

// Storef wraps ErrStore with a formatted message.
func Storef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrStore)...)
}

// ParseError is a structured parse failure carrying position information,
// per spec.md §4.1's error model: "structured error containing line/column
// and expected-token set."
type ParseError struct {
	Line     int
	Column   int
	Message  string
	Expected []string
}

func (e *ParseError) Error() string {
	if len(e.Expected) == 0 {
		return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d:%d: %s (expected one of %v)", e.Line, e.Column, e.Message, e.Expected)
}

func (e *ParseError) Unwrap() error { return ErrInvalidInput }
