package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dshills/sketchpad/internal/event"
	"github.com/dshills/sketchpad/internal/event/topic"
)

// DefaultMaxEntries bounds the history stack when no limit is configured.
const DefaultMaxEntries = 1000

// ChangeTopic is the pattern of scene events that trigger a recording.
const ChangeTopic topic.Topic = "scene.object.*"

// Scene is the drawing surface the manager snapshots and restores.
type Scene interface {
	// Serialize captures the complete current content.
	Serialize() (Snapshot, error)

	// Restore replaces the content with snap. It may return before the
	// content has been replaced; onComplete is called exactly once when it
	// has, with any decoding error.
	Restore(snap Snapshot, onComplete func(error))

	// Clear removes all content.
	Clear() error
}

// SnapshotClearer is implemented by scenes that can clear their content and
// serialize the result in one step. ClearAll prefers it over Clear followed
// by Serialize, which a restore completing in between could interleave.
type SnapshotClearer interface {
	ClearSnapshot() (Snapshot, error)
}

// Programmatic is implemented by change event payloads that know whether
// they were emitted while a snapshot was being loaded.
type Programmatic interface {
	IsProgrammatic() bool
}

// ClearPolicy selects what history holds after ClearAll.
type ClearPolicy int

const (
	// ClearReseed restarts history from a snapshot of the cleared scene.
	ClearReseed ClearPolicy = iota

	// ClearEmpty leaves history empty until the next recording.
	ClearEmpty
)

// String returns the policy name used in configuration.
func (p ClearPolicy) String() string {
	if p == ClearEmpty {
		return "empty"
	}
	return "reseed"
}

// ParseClearPolicy parses "reseed" or "empty".
func ParseClearPolicy(s string) (ClearPolicy, error) {
	switch s {
	case "", "reseed":
		return ClearReseed, nil
	case "empty":
		return ClearEmpty, nil
	default:
		return ClearReseed, fmt.Errorf("unknown clear policy %q", s)
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxEntries limits the number of history entries kept.
func WithMaxEntries(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// WithClearPolicy sets the ClearAll policy.
func WithClearPolicy(p ClearPolicy) Option {
	return func(m *Manager) {
		m.clearPolicy = p
	}
}

// WithNotifier sets the receiver of operation statuses.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Manager owns the undo and redo stacks for one scene.
type Manager struct {
	mu sync.Mutex

	scene   Scene
	history []Snapshot
	redo    []Snapshot

	// empty stands in for the tail when history is empty.
	empty Snapshot

	// Restore bookkeeping
	restoring  bool
	pending    Snapshot
	hasPending bool
	idle       chan struct{}
	restoreErr error

	// Configuration
	maxEntries  int
	clearPolicy ClearPolicy
	notifier    Notifier
	logger      *slog.Logger

	bus    *event.Bus
	sub    event.Subscription
	closed bool
}

// New creates a manager whose history is seeded with the scene's current
// state.
func New(scene Scene, opts ...Option) (*Manager, error) {
	m := &Manager{
		scene:      scene,
		maxEntries: DefaultMaxEntries,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}

	seed, err := scene.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serialize initial scene: %w", err)
	}
	m.history = []Snapshot{seed}
	m.empty = seed

	return m, nil
}

// Attach subscribes the manager to scene change events on bus. Every
// scene.object.added, modified or removed event records one snapshot,
// except events whose payload reports itself as programmatic. Edits that
// arrive while a restore is in flight are recorded and restored after it.
func (m *Manager) Attach(bus *event.Bus) error {
	sub, err := bus.SubscribeFunc(ChangeTopic, func(_ context.Context, ev any) error {
		if isProgrammatic(ev) {
			return nil
		}
		return m.record(true)
	}, event.WithPriority(event.PriorityCritical))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ChangeTopic, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sub != nil {
		_ = m.bus.Unsubscribe(m.sub)
	}
	m.bus = bus
	m.sub = sub
	return nil
}

// Detach removes the change event subscription, if any.
func (m *Manager) Detach() {
	m.mu.Lock()
	bus, sub := m.bus, m.sub
	m.bus, m.sub = nil, nil
	m.mu.Unlock()

	if sub != nil {
		_ = bus.Unsubscribe(sub)
	}
}

// Record appends the scene's current state to history and clears the redo
// stack. It does nothing while a restore is in flight.
func (m *Manager) Record() error {
	return m.record(false)
}

// record captures the scene. An edit made while a restore is in flight is
// recorded anyway and becomes the pending restore target, so the scene
// ends on the recorded state even if the restore loads over it.
func (m *Manager) record(edit bool) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.restoring && !edit {
		m.mu.Unlock()
		m.logger.Debug("recording suppressed during restore")
		return nil
	}
	m.mu.Unlock()

	snap, err := m.scene.Serialize()
	if err != nil {
		return fmt.Errorf("serialize scene: %w", err)
	}

	m.mu.Lock()
	if m.restoring {
		if !edit {
			m.mu.Unlock()
			m.logger.Debug("recording dropped, restore started")
			return nil
		}
		m.pending = snap
		m.hasPending = true
	}
	m.redo = nil
	m.history = append(m.history, snap)
	m.trimLocked()
	status := m.statusLocked(ActionRecord, nil)
	m.mu.Unlock()

	m.logger.Debug("snapshot recorded", "history", status.HistoryLen, "bytes", snap.Len())
	m.notify(status)
	return nil
}

func isProgrammatic(ev any) bool {
	if pp, ok := ev.(event.PayloadProvider); ok {
		ev = pp.EventPayload()
	}
	p, ok := ev.(Programmatic)
	return ok && p.IsProgrammatic()
}

// Undo moves the current state to the redo stack and restores the previous
// one. It returns ErrNothingToUndo when history holds one entry or fewer.
func (m *Manager) Undo() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if len(m.history) <= 1 {
		status := m.statusLocked(ActionUndo, ErrNothingToUndo)
		m.mu.Unlock()
		m.logger.Info("no more states to undo")
		m.notify(status)
		return ErrNothingToUndo
	}

	current := m.history[len(m.history)-1]
	m.history = m.history[:len(m.history)-1]
	m.redo = append(m.redo, current)
	target := m.tailLocked()
	start := m.requestRestoreLocked(target)
	status := m.statusLocked(ActionUndo, nil)
	m.mu.Unlock()

	if start {
		m.scene.Restore(target, m.onRestored)
	}
	m.logger.Debug("undo", "history", status.HistoryLen, "redo", status.RedoLen)
	m.notify(status)
	return nil
}

// Redo moves the most recently undone state back onto history and restores
// it. It returns ErrNothingToRedo when the redo stack is empty.
func (m *Manager) Redo() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if len(m.redo) == 0 {
		status := m.statusLocked(ActionRedo, ErrNothingToRedo)
		m.mu.Unlock()
		m.logger.Info("no more states to redo")
		m.notify(status)
		return ErrNothingToRedo
	}

	next := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.history = append(m.history, next)
	start := m.requestRestoreLocked(next)
	status := m.statusLocked(ActionRedo, nil)
	m.mu.Unlock()

	if start {
		m.scene.Restore(next, m.onRestored)
	}
	m.logger.Debug("redo", "history", status.HistoryLen, "redo", status.RedoLen)
	m.notify(status)
	return nil
}

// ClearAll clears the scene and both stacks. What history holds afterwards
// depends on the ClearPolicy.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	wasRestoring := m.restoring
	m.mu.Unlock()

	cleared, err := m.clearScene()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.empty = cleared
	m.redo = nil
	if m.clearPolicy == ClearEmpty {
		m.history = nil
	} else {
		m.history = []Snapshot{cleared}
	}
	// A restore in flight, or one that finished while the scene was being
	// cleared, may have loaded pre-clear content.
	start := false
	if wasRestoring || m.restoring {
		start = m.requestRestoreLocked(cleared)
	}
	status := m.statusLocked(ActionClear, nil)
	m.mu.Unlock()

	if start {
		m.scene.Restore(cleared, m.onRestored)
	}
	m.logger.Info("history cleared", "policy", m.clearPolicy.String())
	m.notify(status)
	return nil
}

func (m *Manager) clearScene() (Snapshot, error) {
	if sc, ok := m.scene.(SnapshotClearer); ok {
		cleared, err := sc.ClearSnapshot()
		if err != nil {
			return Snapshot{}, fmt.Errorf("clear scene: %w", err)
		}
		return cleared, nil
	}
	if err := m.scene.Clear(); err != nil {
		return Snapshot{}, fmt.Errorf("clear scene: %w", err)
	}
	cleared, err := m.scene.Serialize()
	if err != nil {
		return Snapshot{}, fmt.Errorf("serialize cleared scene: %w", err)
	}
	return cleared, nil
}

// Reset replaces the scene content with snap and restarts history from it.
// Loading a saved document goes through Reset.
func (m *Manager) Reset(snap Snapshot) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.history = []Snapshot{snap}
	m.redo = nil
	start := m.requestRestoreLocked(snap)
	status := m.statusLocked(ActionReset, nil)
	m.mu.Unlock()

	if start {
		m.scene.Restore(snap, m.onRestored)
	}
	m.notify(status)
	return nil
}

// requestRestoreLocked marks target for restoring. It returns true when
// the caller must start the restore after releasing the lock; otherwise
// target is queued behind the restore in flight.
func (m *Manager) requestRestoreLocked(target Snapshot) bool {
	if m.restoring {
		m.pending = target
		m.hasPending = true
		return false
	}
	m.restoring = true
	m.restoreErr = nil
	m.idle = make(chan struct{})
	return true
}

// onRestored is the completion callback passed to Scene.Restore.
func (m *Manager) onRestored(err error) {
	m.mu.Lock()
	if err != nil {
		m.restoreErr = err
		m.logger.Error("scene restore failed", "error", err)
	}
	if m.hasPending {
		next := m.pending
		m.pending = Snapshot{}
		m.hasPending = false
		m.mu.Unlock()
		m.scene.Restore(next, m.onRestored)
		return
	}
	m.restoring = false
	close(m.idle)
	m.mu.Unlock()
}

// Wait blocks until no restore is in flight and returns the error of the
// most recent failed restore, if any. A restore error is reported once.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	if !m.restoring {
		err := m.restoreErr
		m.restoreErr = nil
		m.mu.Unlock()
		return err
	}
	idle := m.idle
	m.mu.Unlock()

	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.restoreErr
	m.restoreErr = nil
	return err
}

// Restoring reports whether a scene restore is in flight.
func (m *Manager) Restoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restoring
}

// CanUndo returns true if undo is available.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history) > 1
}

// CanRedo returns true if redo is available.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// UndoCount returns the number of undo operations available.
func (m *Manager) UndoCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return 0
	}
	return len(m.history) - 1
}

// RedoCount returns the number of redo operations available.
func (m *Manager) RedoCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo)
}

// History returns a copy of the history stack, oldest first.
func (m *Manager) History() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Snapshot(nil), m.history...)
}

// RedoStack returns a copy of the redo stack; the next redo is last.
func (m *Manager) RedoStack() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Snapshot(nil), m.redo...)
}

// Current returns the tail of history, or the empty-scene snapshot when
// history is empty.
func (m *Manager) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tailLocked()
}

// SetMaxEntries changes the maximum number of history entries.
// If the current stack is larger, oldest entries are removed.
func (m *Manager) SetMaxEntries(max int) {
	if max <= 0 {
		max = DefaultMaxEntries
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.maxEntries = max
	m.trimLocked()
}

// MaxEntries returns the maximum number of history entries.
func (m *Manager) MaxEntries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxEntries
}

// SetClearPolicy changes the policy applied by later ClearAll calls.
func (m *Manager) SetClearPolicy(p ClearPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearPolicy = p
}

// Close detaches the manager and drops both stacks.
func (m *Manager) Close() {
	m.Detach()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.history = nil
	m.redo = nil
}

func (m *Manager) tailLocked() Snapshot {
	if len(m.history) == 0 {
		return m.empty
	}
	return m.history[len(m.history)-1]
}

// trimLocked drops the oldest entries beyond maxEntries.
func (m *Manager) trimLocked() {
	if len(m.history) > m.maxEntries {
		excess := len(m.history) - m.maxEntries
		m.history = append([]Snapshot(nil), m.history[excess:]...)
	}
}

func (m *Manager) statusLocked(action Action, err error) Status {
	return Status{
		Action:     action,
		Err:        err,
		HistoryLen: len(m.history),
		RedoLen:    len(m.redo),
	}
}

func (m *Manager) notify(s Status) {
	if m.notifier != nil {
		m.notifier.Notify(s)
	}
}
