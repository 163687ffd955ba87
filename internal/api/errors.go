package api

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by readers and mutations addressing a missing entity.
var ErrNotFound = errors.New("not found")

// TransientFetchError wraps a network or server failure. Callers retry on
// the next natural refresh.
type TransientFetchError struct {
	Op  string
	Err error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// ValidationError is a local, non-fatal rejection of user input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// TerminalTaskError carries the failure a background job reported about itself.
type TerminalTaskError struct {
	Kind    ResourceKind
	Message string
}

func (e *TerminalTaskError) Error() string {
	if e.Kind == "" {
		return "task failed: " + e.Message
	}
	return fmt.Sprintf("%s processing failed: %s", e.Kind, e.Message)
}

// Transient wraps err as a TransientFetchError unless it already is one or is
// a validation error.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) || IsValidation(err) {
		return err
	}
	return &TransientFetchError{Op: op, Err: err}
}

func IsTransient(err error) bool {
	var t *TransientFetchError
	return errors.As(err, &t)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ValidationMessage returns the user-facing text of a validation error.
func ValidationMessage(err error) (string, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Message, true
	}
	return "", false
}
