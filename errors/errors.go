package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrCancelled indicates that a generation was stopped by its caller or timed out
	ErrCancelled = errors.New("generation cancelled")

	// ErrEmptyCompletion indicates that the text service returned no usable text
	ErrEmptyCompletion = errors.New("empty completion")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")
)

// StepError records a failure of one pipeline step. Fatal is set when the
// pipeline could not continue past the step.
type StepError struct {
	Step  string
	Fatal bool
	Err   error
}

func (e *StepError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("step %s failed (fatal): %v", e.Step, e.Err)
	}
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// IsCancelled reports whether err stems from cancellation or a deadline.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
