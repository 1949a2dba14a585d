package codec

import (
	"errors"

	"github.com/google/uuid"
)

// Errors returned by Codec.
var (
	// ErrNilScene is returned when encoding or decoding without a scene.
	ErrNilScene = errors.New("scene is nil")

	// ErrInvalidSnapshot is returned when a snapshot is missing or is not a
	// well-formed document.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrIncompatibleSnapshot is returned when a snapshot was written with a
	// different schema version.
	ErrIncompatibleSnapshot = errors.New("incompatible snapshot version")
)

// DecodeError reports a failed restore. The scene may have been cleared
// before the failure.
type DecodeError struct {
	SnapshotID uuid.UUID

	// SceneCleared is true when the scene was cleared before the failure.
	SceneCleared bool

	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return "decoding snapshot " + e.SnapshotID.String() + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
