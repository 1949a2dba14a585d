package history

import (
	"errors"

	"github.com/google/uuid"
)

// Common errors for history operations.
var (
	// ErrNilScene is returned by New when no scene is given.
	ErrNilScene = errors.New("history requires a scene")
)

// NavigationError reports a failed undo or redo. The stacks have already
// been rolled back when it is returned.
type NavigationError struct {
	Direction  Direction
	SnapshotID uuid.UUID

	// Reverted is true when the scene had been cleared and was successfully
	// reloaded from the current snapshot.
	Reverted bool

	// RevertErr is set when reloading the current snapshot also failed; the
	// scene no longer matches the history in that case.
	RevertErr error

	Err error
}

// Error implements the error interface.
func (e *NavigationError) Error() string {
	msg := e.Direction.String() + " to " + e.SnapshotID.String() + " failed: " + e.Err.Error()
	if e.RevertErr != nil {
		msg += " (revert failed: " + e.RevertErr.Error() + ")"
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *NavigationError) Unwrap() error {
	return e.Err
}
