// Package apierr classifies collaborator errors for the retry machinery.
//
// Transient errors (network failures, 429/5xx responses) are recovered
// locally by the poll loop. Non-retryable errors (malformed responses,
// rejected requests) abort the current operation: retrying cannot fix a
// schema mismatch.
package apierr

import (
	"errors"
	"fmt"
)

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// Transient wraps err as recoverable by backoff-and-retry.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Transientf is Transient over a formatted error.
func Transientf(format string, v ...any) error {
	return Transient(fmt.Errorf(format, v...))
}

// NonRetryable wraps err as fatal for the current operation.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// NonRetryablef is NonRetryable over a formatted error.
func NonRetryablef(format string, v ...any) error {
	return NonRetryable(fmt.Errorf(format, v...))
}

func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

func IsNonRetryable(err error) bool {
	var n *nonRetryableError
	return errors.As(err, &n)
}
