package storage

import (
	"errors"
	"fmt"
)

// Errors returned by storage operations.
var (
	// ErrNotFound indicates no document exists under the name.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidName indicates a document name that is empty or contains
	// path elements.
	ErrInvalidName = errors.New("invalid document name")

	// ErrUnknownFormat indicates an unsupported file format.
	ErrUnknownFormat = errors.New("unknown document format")
)

// DocumentError records a failed operation on a stored document.
type DocumentError struct {
	Op   string
	Name string
	Err  error
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *DocumentError) Unwrap() error {
	return e.Err
}
