// Package errors provides error types and handling for ferry copy operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a copy operation error with context about the operation
// and the URL it was acting on. It wraps the underlying backend error.
type Error struct {
	// Op is the operation that failed (e.g., "stat", "openRead", "writePart")
	Op string

	// URL is the source or destination URL the operation was acting on
	URL string

	// Err is the underlying error from the storage backend or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("ferry.%s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("ferry.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithURL adds URL context to an existing error.
func (e *Error) WithURL(url string) *Error {
	e.URL = url
	return e
}

// New creates a new Error with the given operation and underlying error.
func New(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// Sentinel errors forming the shared taxonomy every backend normalizes into.
// These can be used with errors.Is() for error checking.
var (
	// ErrUnsupportedScheme indicates that no backend is registered for a URL scheme
	ErrUnsupportedScheme = errors.New("ferry: unsupported scheme")

	// ErrNotFound indicates that the source object vanished or the
	// destination parent is missing
	ErrNotFound = errors.New("ferry: not found")

	// ErrPermissionDenied indicates that access to the object was denied
	ErrPermissionDenied = errors.New("ferry: permission denied")

	// ErrTransient indicates a transient I/O failure surfaced by a backend
	// after its own retries were exhausted
	ErrTransient = errors.New("ferry: transient i/o error")

	// ErrPartSizeMismatch indicates that a committed part's size disagrees
	// with its planned size
	ErrPartSizeMismatch = errors.New("ferry: part size mismatch")

	// ErrInvalidTransfer indicates a malformed transfer request, such as a
	// request carrying both "to" and "into" destinations
	ErrInvalidTransfer = errors.New("ferry: invalid transfer")
)

// IsNotFound checks if an error indicates that an object was not found.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPermissionDenied checks if an error indicates access was denied.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsTransient checks if an error indicates a transient backend failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsUnsupportedScheme checks if an error indicates an unknown URL scheme.
func IsUnsupportedScheme(err error) bool {
	return errors.Is(err, ErrUnsupportedScheme)
}
