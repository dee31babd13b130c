package scene

import (
	"errors"
	"fmt"
)

// Scene errors.
var (
	// ErrObjectNotFound indicates no object has the requested id.
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidObject indicates an object failed validation.
	ErrInvalidObject = errors.New("invalid object")

	// ErrMalformedSnapshot indicates a snapshot could not be decoded.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrUnsupportedVersion indicates a snapshot from a newer format.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

// ObjectError describes a failure involving one object.
type ObjectError struct {
	Op    string // add, modify, move, remove, decode
	ID    string
	Index int
	Err   error
}

func (e *ObjectError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s object %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s object #%d: %v", e.Op, e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *ObjectError) Unwrap() error {
	return e.Err
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidObject, err)
}
