package codec

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Snapshot is an immutable serialized scene. Only Codec creates snapshots.
type Snapshot struct {
	id        uuid.UUID
	data      []byte
	createdAt time.Time
}

func newSnapshot(data []byte) *Snapshot {
	return &Snapshot{
		id:        uuid.New(),
		data:      data,
		createdAt: time.Now(),
	}
}

// ID returns the snapshot's unique identifier.
func (s *Snapshot) ID() uuid.UUID {
	return s.id
}

// CreatedAt returns when the snapshot was captured.
func (s *Snapshot) CreatedAt() time.Time {
	return s.createdAt
}

// Len returns the size of the serialized document in bytes.
func (s *Snapshot) Len() int {
	return len(s.data)
}

// Bytes returns a copy of the serialized document.
func (s *Snapshot) Bytes() []byte {
	return bytes.Clone(s.data)
}

// SameContent reports whether both snapshots hold identical documents.
func (s *Snapshot) SameContent(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return bytes.Equal(s.data, other.data)
}

// String implements fmt.Stringer.
func (s *Snapshot) String() string {
	if s == nil {
		return "<nil snapshot>"
	}
	return fmt.Sprintf("snapshot %s (%d bytes)", s.id, len(s.data))
}

// FromBytes wraps raw document bytes as a snapshot without encoding a
// scene. It exists for tests and for Codec wrappers that build snapshots
// themselves. The document is only validated when decoded.
func FromBytes(data []byte) *Snapshot {
	return newSnapshot(bytes.Clone(data))
}
