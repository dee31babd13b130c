package history

import "bytes"

// Snapshot is an immutable serialized capture of the scene.
type Snapshot struct {
	data []byte
}

// NewSnapshot creates a snapshot holding a private copy of data.
func NewSnapshot(data []byte) Snapshot {
	return Snapshot{data: bytes.Clone(data)}
}

// Bytes returns a copy of the serialized scene.
func (s Snapshot) Bytes() []byte {
	return bytes.Clone(s.data)
}

// Len returns the size of the serialized scene in bytes.
func (s Snapshot) Len() int {
	return len(s.data)
}

// IsZero reports whether the snapshot holds no data.
func (s Snapshot) IsZero() bool {
	return len(s.data) == 0
}

// Equal reports whether two snapshots hold the same bytes.
func (s Snapshot) Equal(other Snapshot) bool {
	return bytes.Equal(s.data, other.data)
}

// String returns the serialized scene as text.
func (s Snapshot) String() string {
	return string(s.data)
}
