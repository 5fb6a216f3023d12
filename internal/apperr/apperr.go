// Package apperr defines the error taxonomy shared by the study core.
//
// Callers classify failures with errors.Is against the sentinels below;
// the helpers attach context while keeping the sentinel in the chain.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a user, item, session or record that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState reports an operation that the current lifecycle state
	// does not permit, e.g. answering a completed session.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation reports malformed input rejected before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrStore reports a persistence failure. These are expected at runtime
	// and usually transient.
	ErrStore = errors.New("store error")
)

// NotFound returns an error wrapping ErrNotFound.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidState returns an error wrapping ErrInvalidState.
func InvalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// Validation returns an error wrapping ErrValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StoreError wraps a persistence failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is makes every StoreError match ErrStore.
func (e *StoreError) Is(target error) bool { return target == ErrStore }

// Store classifies err as a persistence failure. It returns nil for a nil
// err and leaves errors that are already classified untouched.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStore) || errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &StoreError{Op: op, Err: err}
}
