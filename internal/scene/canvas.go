// Package scene provides the drawing surface: an ordered set of content
// objects with JSON snapshots, asynchronous restore and change events.
package scene

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/sketchpad/internal/event"
	"github.com/dshills/sketchpad/internal/event/topic"
	"github.com/dshills/sketchpad/internal/history"
)

// Canvas defaults.
const (
	DefaultWidth    = 800
	DefaultHeight   = 600
	DefaultGridSize = 50
	DefaultSnap     = 10
)

// Change event topics.
const (
	TopicObjectAdded    topic.Topic = "scene.object.added"
	TopicObjectModified topic.Topic = "scene.object.modified"
	TopicObjectRemoved  topic.Topic = "scene.object.removed"
	TopicCleared        topic.Topic = "scene.cleared"
	TopicRestored       topic.Topic = "scene.restored"
)

// Change is the payload of scene events.
type Change struct {
	ObjectID string
	Object   Object

	// Programmatic is set on events emitted while a snapshot is loaded.
	Programmatic bool
}

// IsProgrammatic implements history.Programmatic.
func (c Change) IsProgrammatic() bool {
	return c.Programmatic
}

// Option configures a Canvas.
type Option func(*Canvas)

// WithSize sets the canvas dimensions.
func WithSize(width, height float64) Option {
	return func(c *Canvas) {
		if width > 0 && height > 0 {
			c.width, c.height = width, height
		}
	}
}

// WithGrid sets the spacing of the background grid guides. Zero disables
// the guides.
func WithGrid(size float64) Option {
	return func(c *Canvas) {
		if size >= 0 {
			c.grid = size
		}
	}
}

// WithSnap sets the step moved objects snap to. Zero disables snapping.
func WithSnap(step float64) Option {
	return func(c *Canvas) {
		if step >= 0 {
			c.snap = step
		}
	}
}

// WithBus sets the bus change events are published on.
func WithBus(bus *event.Bus) Option {
	return func(c *Canvas) {
		c.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Canvas) {
		if l != nil {
			c.logger = l
		}
	}
}

// Canvas is the in-memory scene. It implements history.Scene.
//
// Mutations publish their change event after the lock is released, so
// subscribers may read the canvas (history serializes it) from the handler.
type Canvas struct {
	mu      sync.RWMutex
	objects []Object

	width, height float64
	grid          float64
	snap          float64

	bus    *event.Bus
	logger *slog.Logger
}

var _ history.Scene = (*Canvas)(nil)

// New creates an empty canvas.
func New(opts ...Option) *Canvas {
	c := &Canvas{
		width:  DefaultWidth,
		height: DefaultHeight,
		grid:   DefaultGridSize,
		snap:   DefaultSnap,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() (float64, float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width, c.height
}

// Add validates obj, assigns it an id and appends it on top of the stack.
func (c *Canvas) Add(ctx context.Context, obj Object) (string, error) {
	style, err := normalizeStyle(obj.Style)
	if err != nil {
		return "", &ObjectError{Op: "add", Err: invalid(err)}
	}
	obj.Style = style
	if err := obj.Validate(); err != nil {
		return "", &ObjectError{Op: "add", Err: invalid(err)}
	}
	obj = obj.clone()
	obj.ID = uuid.NewString()

	c.mu.Lock()
	c.objects = append(c.objects, obj)
	c.mu.Unlock()

	c.publish(ctx, TopicObjectAdded, Change{ObjectID: obj.ID, Object: obj})
	return obj.ID, nil
}

// Modify applies fn to a copy of the object and stores the result if it
// is still valid. The id and kind cannot be changed.
func (c *Canvas) Modify(ctx context.Context, id string, fn func(*Object)) error {
	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return &ObjectError{Op: "modify", ID: id, Err: ErrObjectNotFound}
	}
	updated := c.objects[idx].clone()
	fn(&updated)
	updated.ID = c.objects[idx].ID
	updated.Kind = c.objects[idx].Kind

	style, err := normalizeStyle(updated.Style)
	if err == nil {
		updated.Style = style
		err = updated.Validate()
	}
	if err != nil {
		c.mu.Unlock()
		return &ObjectError{Op: "modify", ID: id, Err: invalid(err)}
	}
	c.objects[idx] = updated
	c.mu.Unlock()

	c.publish(ctx, TopicObjectModified, Change{ObjectID: id, Object: updated})
	return nil
}

// Move translates an object by (dx, dy) and snaps its origin to the
// configured step.
func (c *Canvas) Move(ctx context.Context, id string, dx, dy float64) error {
	c.mu.RLock()
	step := c.snap
	c.mu.RUnlock()

	err := c.Modify(ctx, id, func(o *Object) {
		o.Left = snapTo(o.Left+dx, step)
		o.Top = snapTo(o.Top+dy, step)
	})
	if err != nil {
		var oe *ObjectError
		if errors.As(err, &oe) {
			oe.Op = "move"
		}
	}
	return err
}

// Remove deletes an object.
func (c *Canvas) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return &ObjectError{Op: "remove", ID: id, Err: ErrObjectNotFound}
	}
	removed := c.objects[idx]
	c.objects = append(c.objects[:idx:idx], c.objects[idx+1:]...)
	c.mu.Unlock()

	c.publish(ctx, TopicObjectRemoved, Change{ObjectID: id, Object: removed})
	return nil
}

// Object returns a copy of the object with the given id.
func (c *Canvas) Object(id string) (Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx := c.indexLocked(id)
	if idx < 0 {
		return Object{}, false
	}
	return c.objects[idx].clone(), true
}

// ObjectAt returns the topmost object whose bounds contain p.
func (c *Canvas) ObjectAt(p Point) (Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.objects) - 1; i >= 0; i-- {
		if c.objects[i].Contains(p) {
			return c.objects[i].clone(), true
		}
	}
	return Object{}, false
}

// Objects returns copies of all objects, bottom first.
func (c *Canvas) Objects() []Object {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyLocked()
}

// Len returns the number of objects.
func (c *Canvas) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}

// Document returns the canvas content as a document.
func (c *Canvas) Document() Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Document{
		Version: DocumentVersion,
		Width:   c.width,
		Height:  c.height,
		Objects: c.copyLocked(),
	}
}

// Serialize implements history.Scene.
func (c *Canvas) Serialize() (history.Snapshot, error) {
	return EncodeDocument(c.Document())
}

// Restore implements history.Scene. The snapshot is decoded and loaded on
// a separate goroutine; an object.added event marked Programmatic is
// published for every loaded object, then scene.restored, then onComplete
// is called. A malformed snapshot leaves the content untouched.
func (c *Canvas) Restore(snap history.Snapshot, onComplete func(error)) {
	go func() {
		err := c.load(snap)
		if err != nil {
			c.logger.Error("restore failed", "error", err)
		}
		if onComplete != nil {
			onComplete(err)
		}
	}()
}

func (c *Canvas) load(snap history.Snapshot) error {
	doc, err := DecodeDocument(snap)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.objects = make([]Object, len(doc.Objects))
	for i, o := range doc.Objects {
		c.objects[i] = o.clone()
	}
	loaded := c.copyLocked()
	c.mu.Unlock()

	ctx := context.Background()
	for _, o := range loaded {
		c.publish(ctx, TopicObjectAdded, Change{ObjectID: o.ID, Object: o, Programmatic: true})
	}
	c.publish(ctx, TopicRestored, Change{Programmatic: true})
	c.logger.Debug("snapshot restored", "objects", len(loaded))
	return nil
}

func (c *Canvas) copyLocked() []Object {
	out := make([]Object, len(c.objects))
	for i, o := range c.objects {
		out[i] = o.clone()
	}
	return out
}

// Clear implements history.Scene. It publishes scene.cleared, never
// object.removed.
func (c *Canvas) Clear() error {
	_, err := c.ClearSnapshot()
	return err
}

// ClearSnapshot implements history.SnapshotClearer: the content is removed
// and the empty document encoded under one lock, so a concurrent restore
// cannot load in between.
func (c *Canvas) ClearSnapshot() (history.Snapshot, error) {
	c.mu.Lock()
	c.objects = nil
	doc := Document{Version: DocumentVersion, Width: c.width, Height: c.height}
	c.mu.Unlock()

	snap, err := EncodeDocument(doc)
	if err != nil {
		return history.Snapshot{}, err
	}
	c.publish(context.Background(), TopicCleared, Change{})
	return snap, nil
}

func (c *Canvas) indexLocked(id string) int {
	for i := range c.objects {
		if c.objects[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Canvas) publish(ctx context.Context, t topic.Topic, ch Change) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(ctx, event.NewEvent(t, ch, "scene")); err != nil {
		c.logger.Warn("scene event handler failed", "topic", t.String(), "error", err)
	}
}
