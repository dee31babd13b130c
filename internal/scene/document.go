package scene

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/sketchpad/internal/history"
)

// DocumentVersion is the current snapshot format version.
const DocumentVersion = 1

// Document is the serialized form of a canvas. Snapshots hold its JSON
// encoding.
type Document struct {
	Version int      `json:"version" yaml:"version"`
	Width   float64  `json:"width" yaml:"width"`
	Height  float64  `json:"height" yaml:"height"`
	Objects []Object `json:"objects" yaml:"objects"`
}

// EncodeDocument returns the snapshot form of doc.
func EncodeDocument(doc Document) (history.Snapshot, error) {
	if doc.Objects == nil {
		doc.Objects = []Object{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return history.Snapshot{}, fmt.Errorf("encode document: %w", err)
	}
	return history.NewSnapshot(data), nil
}

// DecodeDocument parses a snapshot. An empty snapshot or "{}" decodes to an
// empty document.
func DecodeDocument(snap history.Snapshot) (Document, error) {
	var doc Document
	if snap.IsZero() {
		return Document{Version: DocumentVersion}, nil
	}
	if err := json.Unmarshal(snap.Bytes(), &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if doc.Version == 0 {
		doc.Version = DocumentVersion
	}
	if doc.Version > DocumentVersion {
		return Document{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	for i, obj := range doc.Objects {
		if err := obj.Validate(); err != nil {
			return Document{}, &ObjectError{Op: "decode", ID: obj.ID, Index: i, Err: invalid(err)}
		}
	}
	return doc, nil
}
