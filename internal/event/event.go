// Package event provides the synchronous event bus that connects the scene,
// the history manager and the front-ends.
//
// Events use hierarchical topics with dot notation:
//
//	scene.object.added      - An object was added to the scene
//	scene.object.modified   - An object was changed (moved, restyled)
//	scene.object.removed    - An object was removed
//	scene.cleared           - All content was removed
//	history.undo            - Undo was requested (payload carries the status)
//	config.reloaded         - The configuration file changed on disk
//
// Subscriptions accept wildcard patterns ("scene.object.*", "history.**").
// Delivery is synchronous in the publisher's goroutine, in priority order.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/dshills/sketchpad/internal/event/topic"
)

// Event represents an event in the system.
// Events are immutable once created.
type Event[T any] struct {
	// Type is the hierarchical event type (e.g., "scene.object.added").
	Type topic.Topic

	// Payload contains the event-specific data.
	Payload T

	// Metadata contains standard event information.
	Metadata Metadata
}

// Metadata contains standard information attached to every event.
type Metadata struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Timestamp is when the event was created.
	Timestamp time.Time

	// Source identifies the component that published the event.
	Source string
}

// NewEvent creates a new event with the given type and payload.
func NewEvent[T any](eventType topic.Topic, payload T, source string) Event[T] {
	return Event[T]{
		Type:    eventType,
		Payload: payload,
		Metadata: Metadata{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Source:    source,
		},
	}
}

// EventTopic returns the event's topic for type-erased handling.
func (e Event[T]) EventTopic() topic.Topic {
	return e.Type
}

// EventMetadata returns the event's metadata for type-erased handling.
func (e Event[T]) EventMetadata() Metadata {
	return e.Metadata
}

// EventPayload returns the payload for type-erased handling.
func (e Event[T]) EventPayload() any {
	return e.Payload
}

// PayloadProvider is implemented by events that expose their payload.
type PayloadProvider interface {
	EventPayload() any
}

// TopicProvider is implemented by types that can provide their topic.
type TopicProvider interface {
	EventTopic() topic.Topic
}
