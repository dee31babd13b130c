package script

import (
	"errors"
	"fmt"
)

// Errors for script execution.
var (
	// ErrEngineClosed is returned when running on a closed engine.
	ErrEngineClosed = errors.New("script engine is closed")

	// ErrTimeout is returned when a script exceeds its time budget.
	ErrTimeout = errors.New("script execution timeout")
)

// Error reports a failed script run.
type Error struct {
	// Name is the chunk name, usually the script path.
	Name string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("script %s: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
