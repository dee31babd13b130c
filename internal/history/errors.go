package history

import "errors"

// Common errors for history operations.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrClosed is returned by operations on a closed Manager.
	ErrClosed = errors.New("history manager closed")
)
