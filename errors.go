package rerun

import (
	"errors"
	"fmt"
	"strings"
)

// RuntimeError represents an operational error that should lead to exit code 2
// Examples include an unreadable report directory or a robot binary that
// cannot be started.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError is returned when tests are still failing after the last
// attempt (exit code 1)
type TestFailureError struct {
	Failed   []string
	Attempts int
}

func (e *TestFailureError) Error() string {
	names := e.Failed
	more := ""
	if len(names) > 5 {
		more = fmt.Sprintf(" and %d more", len(names)-5)
		names = names[:5]
	}
	return fmt.Sprintf("test failure: %d %s still failing after %d %s: %s%s",
		len(e.Failed), pluralize(len(e.Failed), "test", "tests"),
		e.Attempts, pluralize(e.Attempts, "attempt", "attempts"),
		strings.Join(names, ", "), more)
}

// NewTestFailureError creates a new TestFailureError
func NewTestFailureError(failed []string, attempts int) *TestFailureError {
	return &TestFailureError{Failed: failed, Attempts: attempts}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
