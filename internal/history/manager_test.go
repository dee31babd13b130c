package history

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/sketchpad/internal/event"
)

// fakeScene stores shape names and serializes them as a comma list.
// In async mode restores wait until complete is called.
type fakeScene struct {
	mu          sync.Mutex
	shapes      []string
	async       bool
	completions []func()
	restores    int
	restoreErr  error

	// onLoad runs after content is replaced and before completion, the
	// way a real scene emits change events while loading.
	onLoad func()
}

func (s *fakeScene) add(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shapes = append(s.shapes, name)
}

func (s *fakeScene) content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.shapes, ",")
}

func (s *fakeScene) Serialize() (Snapshot, error) {
	return NewSnapshot([]byte(s.content())), nil
}

func (s *fakeScene) Restore(snap Snapshot, onComplete func(error)) {
	apply := func() {
		s.mu.Lock()
		s.restores++
		s.shapes = nil
		if str := snap.String(); str != "" {
			s.shapes = strings.Split(str, ",")
		}
		err := s.restoreErr
		s.mu.Unlock()

		if s.onLoad != nil {
			s.onLoad()
		}
		onComplete(err)
	}

	if s.async {
		s.mu.Lock()
		s.completions = append(s.completions, apply)
		s.mu.Unlock()
		return
	}
	apply()
}

func (s *fakeScene) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shapes = nil
	return nil
}

// complete finishes the oldest outstanding async restore.
func (s *fakeScene) complete(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	require.NotEmpty(t, s.completions, "no restore in flight")
	next := s.completions[0]
	s.completions = s.completions[1:]
	s.mu.Unlock()
	next()
}

func (s *fakeScene) restoreCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restores
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *fakeScene) {
	t.Helper()
	scene := &fakeScene{}
	m, err := New(scene, opts...)
	require.NoError(t, err)
	return m, scene
}

func edit(t *testing.T, m *Manager, s *fakeScene, shape string) {
	t.Helper()
	s.add(shape)
	require.NoError(t, m.Record())
}

// clearingScene clears and serializes in one step, then runs onClear the
// way a real scene publishes its cleared event.
type clearingScene struct {
	*fakeScene
	onClear func()
}

func (s *clearingScene) ClearSnapshot() (Snapshot, error) {
	s.mu.Lock()
	s.shapes = nil
	s.mu.Unlock()
	if s.onClear != nil {
		s.onClear()
	}
	return NewSnapshot([]byte("")), nil
}

// change is a scene event payload.
type change struct {
	programmatic bool
}

func (c change) IsProgrammatic() bool { return c.programmatic }

func strs(snaps []Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.String()
	}
	return out
}

func TestNewSeedsHistory(t *testing.T) {
	m, _ := newTestManager(t)

	assert.Equal(t, []string{""}, strs(m.History()))
	assert.Empty(t, m.RedoStack())
	assert.False(t, m.CanUndo())
	assert.False(t, m.CanRedo())
	assert.Equal(t, DefaultMaxEntries, m.MaxEntries())
}

func TestRecordAppendsAndClearsRedo(t *testing.T) {
	m, scene := newTestManager(t)

	for _, shape := range []string{"A", "B", "C", "D"} {
		edit(t, m, scene, shape)
	}

	assert.Len(t, m.History(), 5)
	assert.Equal(t, 4, m.UndoCount())
	assert.Zero(t, m.RedoCount())
}

func TestUndoShrinksHistory(t *testing.T) {
	m, scene := newTestManager(t)
	for _, shape := range []string{"A", "B", "C"} {
		edit(t, m, scene, shape)
	}

	for i := 1; m.CanUndo(); i++ {
		before := len(m.History())
		require.NoError(t, m.Undo())

		hist := m.History()
		assert.Len(t, hist, before-1)
		assert.Equal(t, i, m.RedoCount())
		assert.Equal(t, hist[len(hist)-1].String(), scene.content())
	}

	assert.Equal(t, "", scene.content())
	assert.Equal(t, 3, m.RedoCount())
}

func TestUndoRedoRoundTrip(t *testing.T) {
	m, scene := newTestManager(t)
	edit(t, m, scene, "A")
	edit(t, m, scene, "B")

	before := scene.content()
	require.NoError(t, m.Undo())
	assert.Equal(t, "A", scene.content())
	require.NoError(t, m.Redo())

	assert.Equal(t, before, scene.content())
	assert.Equal(t, []string{"", "A", "A,B"}, strs(m.History()))
	assert.Empty(t, m.RedoStack())
}

func TestRecordAfterUndoClearsDeepRedo(t *testing.T) {
	m, scene := newTestManager(t)
	for _, shape := range []string{"A", "B", "C"} {
		edit(t, m, scene, shape)
	}
	require.NoError(t, m.Undo())
	require.NoError(t, m.Undo())
	require.Equal(t, 2, m.RedoCount())

	edit(t, m, scene, "X")

	assert.Zero(t, m.RedoCount())
	assert.False(t, m.CanRedo())
}

func TestUndoWithSingleEntryIsNoop(t *testing.T) {
	var statuses []Status
	m, scene := newTestManager(t, WithNotifier(NotifierFunc(func(s Status) {
		statuses = append(statuses, s)
	})))
	scene.add("pre-existing")

	err := m.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)
	assert.Len(t, m.History(), 1)
	assert.Empty(t, m.RedoStack())
	assert.Equal(t, "pre-existing", scene.content())
	assert.Zero(t, scene.restoreCount())

	require.Len(t, statuses, 1)
	assert.Equal(t, ActionUndo, statuses[0].Action)
	assert.False(t, statuses[0].OK())
	assert.Equal(t, "nothing to undo", statuses[0].Message())
}

func TestRedoWithEmptyStackIsNoop(t *testing.T) {
	var statuses []Status
	m, scene := newTestManager(t, WithNotifier(NotifierFunc(func(s Status) {
		statuses = append(statuses, s)
	})))
	edit(t, m, scene, "A")

	err := m.Redo()
	assert.ErrorIs(t, err, ErrNothingToRedo)
	assert.Equal(t, []string{"", "A"}, strs(m.History()))
	assert.Empty(t, m.RedoStack())
	assert.Zero(t, scene.restoreCount())

	last := statuses[len(statuses)-1]
	assert.Equal(t, ActionRedo, last.Action)
	assert.Equal(t, "nothing to redo", last.Message())
}

func TestTimelineScenario(t *testing.T) {
	m, scene := newTestManager(t)

	edit(t, m, scene, "A")
	edit(t, m, scene, "B")
	assert.Equal(t, []string{"", "A", "A,B"}, strs(m.History()))
	assert.Empty(t, m.RedoStack())

	require.NoError(t, m.Undo())
	assert.Equal(t, "A", scene.content())
	assert.Equal(t, []string{"", "A"}, strs(m.History()))
	assert.Equal(t, []string{"A,B"}, strs(m.RedoStack()))

	require.NoError(t, m.Undo())
	assert.Equal(t, "", scene.content())
	assert.Equal(t, []string{""}, strs(m.History()))
	assert.Equal(t, []string{"A,B", "A"}, strs(m.RedoStack()))

	require.NoError(t, m.Redo())
	assert.Equal(t, "A", scene.content())
	assert.Equal(t, []string{"", "A"}, strs(m.History()))
	assert.Equal(t, []string{"A,B"}, strs(m.RedoStack()))

	edit(t, m, scene, "C")
	assert.Equal(t, []string{"", "A", "A,C"}, strs(m.History()))
	assert.Empty(t, m.RedoStack())
	assert.ErrorIs(t, m.Redo(), ErrNothingToRedo)
}

func TestRestoreEventsDoNotRecord(t *testing.T) {
	m, scene := newTestManager(t)
	scene.onLoad = func() {
		// The scene reports every loaded object as added.
		require.NoError(t, m.Record())
	}

	edit(t, m, scene, "A")
	edit(t, m, scene, "B")
	edit(t, m, scene, "C")

	require.NoError(t, m.Undo())
	require.NoError(t, m.Undo())

	assert.Equal(t, []string{"", "A"}, strs(m.History()))
	assert.Equal(t, []string{"A,B,C", "A,B"}, strs(m.RedoStack()))
	assert.Equal(t, "A", scene.content())
	assert.False(t, m.Restoring())
}

func TestAttachRecordsSceneEvents(t *testing.T) {
	bus := event.NewBus()
	m, scene := newTestManager(t)
	require.NoError(t, m.Attach(bus))

	ctx := context.Background()
	publish := func(topic string) {
		require.NoError(t, bus.Publish(ctx, event.NewEvent(ChangeTopic.Parent().Child(topic), change{}, "test")))
	}
	scene.onLoad = func() {
		require.NoError(t, bus.Publish(ctx, event.NewEvent(ChangeTopic.Parent().Child("added"), change{programmatic: true}, "test")))
	}

	scene.add("A")
	publish("added")
	scene.add("B")
	publish("modified")
	publish("removed")
	require.NoError(t, bus.Publish(ctx, event.NewEvent("scene.cleared", struct{}{}, "test")))

	assert.Len(t, m.History(), 4)

	require.NoError(t, m.Undo())
	assert.Len(t, m.History(), 3)
	assert.Equal(t, 1, m.RedoCount())

	m.Detach()
	publish("added")
	assert.Len(t, m.History(), 3)
}

func TestAsyncRestoreCoalesces(t *testing.T) {
	m, scene := newTestManager(t)
	for _, shape := range []string{"A", "B", "C", "D"} {
		edit(t, m, scene, shape)
	}
	scene.async = true

	require.NoError(t, m.Undo())
	require.NoError(t, m.Undo())
	require.NoError(t, m.Undo())

	// Stacks move synchronously.
	assert.Equal(t, []string{"", "A"}, strs(m.History()))
	assert.Equal(t, 3, m.RedoCount())
	assert.True(t, m.Restoring())
	assert.Equal(t, "A,B,C,D", scene.content())

	scene.complete(t)
	assert.Equal(t, "A,B,C", scene.content())
	assert.True(t, m.Restoring())

	scene.complete(t)
	assert.Equal(t, "A", scene.content())
	assert.False(t, m.Restoring())
	assert.Equal(t, 2, scene.restoreCount())
}

func TestRecordSuppressedWhileRestoring(t *testing.T) {
	m, scene := newTestManager(t)
	edit(t, m, scene, "A")
	edit(t, m, scene, "B")
	scene.async = true

	require.NoError(t, m.Undo())
	scene.add("stray")
	require.NoError(t, m.Record())

	assert.Equal(t, []string{"", "A"}, strs(m.History()))
	assert.Equal(t, 1, m.RedoCount())

	scene.complete(t)
	edit(t, m, scene, "C")
	assert.Equal(t, []string{"", "A", "A,C"}, strs(m.History()))
	assert.Zero(t, m.RedoCount())
}

func TestWaitBlocksUntilRestored(t *testing.T) {
	m, scene := newTestManager(t)
	edit(t, m, scene, "A")
	scene.async = true

	require.NoError(t, m.Undo())
	scene.mu.Lock()
	require.Len(t, scene.completions, 1)
	finish := scene.completions[0]
	scene.completions = nil
	scene.mu.Unlock()

	go func() {
		time.Sleep(10 * time.Millisecond)
		finish()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))
	assert.Equal(t, "", scene.content())
}

func TestWaitHonoursContext(t *testing.T) {
	m, scene := newTestManager(t)
	edit(t, m, scene, "A")
	scene.async = true
	require.NoError(t, m.Undo())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Wait(ctx), context.Canceled)
}

func TestWaitReportsRestoreError(t *testing.T) {
	m, scene := newTestManager(t)
	edit(t, m, scene, "A")
	bad := errors.New("malformed snapshot")
	scene.restoreErr = bad

	require.NoError(t, m.Undo())
	assert.ErrorIs(t, m.Wait(context.Background()), bad)

	// The failure is reported once; later waits see a healthy manager.
	assert.NoError(t, m.Wait(context.Background()))
	scene.restoreErr = nil
	require.NoError(t, m.ClearAll())
	assert.NoError(t, m.Wait(context.Background()))
}

func TestEditDuringRestoreIsRecorded(t *testing.T) {
	bus := event.NewBus()
	m, scene := newTestManager(t)
	require.NoError(t, m.Attach(bus))

	ctx := context.Background()
	userEdit := func(shape string) {
		t.Helper()
		scene.add(shape)
		require.NoError(t, bus.Publish(ctx, event.NewEvent(ChangeTopic.Parent().Child("added"), change{}, "test")))
	}
	userEdit("A")
	userEdit("B")
	scene.async = true

	require.NoError(t, m.Undo())
	require.True(t, m.Restoring())

	// The scene has not loaded the undo target yet.
	userEdit("C")
	assert.Equal(t, []string{"", "A", "A,B,C"}, strs(m.History()))
	assert.Zero(t, m.RedoCount())

	scene.complete(t)
	assert.Equal(t, "A", scene.content())
	assert.True(t, m.Restoring())

	scene.complete(t)
	assert.False(t, m.Restoring())
	assert.Equal(t, "A,B,C", scene.content())
	assert.Equal(t, scene.content(), m.Current().String())
}

func TestEditAfterRestoreLoadIsRecorded(t *testing.T) {
	bus := event.NewBus()
	m, scene := newTestManager(t)
	require.NoError(t, m.Attach(bus))

	ctx := context.Background()
	publish := func(c change) {
		t.Helper()
		require.NoError(t, bus.Publish(ctx, event.NewEvent(ChangeTopic.Parent().Child("added"), c, "test")))
	}
	for _, shape := range []string{"A", "B"} {
		scene.add(shape)
		publish(change{})
	}
	scene.async = true

	require.NoError(t, m.Undo())
	scene.mu.Lock()
	next := scene.completions[0]
	scene.completions = nil
	scene.mu.Unlock()

	// Load the undo target, then edit before the restore reports back.
	scene.onLoad = func() {
		scene.onLoad = nil
		scene.add("C")
		publish(change{})
	}
	next()

	assert.Equal(t, []string{"", "A", "A,C"}, strs(m.History()))
	scene.complete(t)
	assert.False(t, m.Restoring())
	assert.Equal(t, "A,C", scene.content())
	assert.Equal(t, scene.content(), m.Current().String())

	require.NoError(t, m.Undo())
	scene.complete(t)
	assert.Equal(t, "A", scene.content())
}

func TestClearAllReseeds(t *testing.T) {
	var last Status
	m, scene := newTestManager(t, WithNotifier(NotifierFunc(func(s Status) { last = s })))
	edit(t, m, scene, "A")
	edit(t, m, scene, "B")
	require.NoError(t, m.Undo())

	require.NoError(t, m.ClearAll())

	assert.Equal(t, "", scene.content())
	assert.Equal(t, []string{""}, strs(m.History()))
	assert.Empty(t, m.RedoStack())
	assert.Equal(t, ActionClear, last.Action)
	assert.ErrorIs(t, m.Undo(), ErrNothingToUndo)

	edit(t, m, scene, "C")
	require.NoError(t, m.Undo())
	assert.Equal(t, "", scene.content())
}

func TestClearAllEmptyPolicy(t *testing.T) {
	m, scene := newTestManager(t, WithClearPolicy(ClearEmpty))
	edit(t, m, scene, "A")

	require.NoError(t, m.ClearAll())
	assert.Empty(t, m.History())
	assert.Zero(t, m.UndoCount())
	assert.Equal(t, "", m.Current().String())

	edit(t, m, scene, "B")
	assert.Equal(t, []string{"B"}, strs(m.History()))
	assert.ErrorIs(t, m.Undo(), ErrNothingToUndo)
	assert.Equal(t, "B", scene.content())
}

func TestClearAllDuringRestore(t *testing.T) {
	m, scene := newTestManager(t)
	edit(t, m, scene, "A")
	edit(t, m, scene, "B")
	scene.async = true

	require.NoError(t, m.Undo())
	require.NoError(t, m.ClearAll())

	scene.complete(t)
	assert.Equal(t, "A", scene.content())
	scene.complete(t)
	assert.Equal(t, "", scene.content())
	assert.False(t, m.Restoring())
}

func TestClearAllWhileRestoreChainFinishes(t *testing.T) {
	base := &fakeScene{}
	scene := &clearingScene{fakeScene: base}
	m, err := New(scene)
	require.NoError(t, err)
	for _, shape := range []string{"A", "B", "C"} {
		edit(t, m, base, shape)
	}
	base.async = true

	require.NoError(t, m.Undo())
	require.NoError(t, m.Undo())

	// Both queued restores land after the content was removed and before
	// ClearAll updates the stacks.
	scene.onClear = func() {
		base.complete(t)
		base.complete(t)
		assert.Equal(t, "A", base.content())
		assert.False(t, m.Restoring())
	}
	require.NoError(t, m.ClearAll())

	assert.Equal(t, []string{""}, strs(m.History()))
	assert.Empty(t, m.RedoStack())
	require.True(t, m.Restoring())

	base.complete(t)
	assert.Equal(t, "", base.content())
	assert.False(t, m.Restoring())
	assert.ErrorIs(t, m.Undo(), ErrNothingToUndo)
}

func TestMaxEntriesTrimsOldest(t *testing.T) {
	m, scene := newTestManager(t, WithMaxEntries(3))
	for _, shape := range []string{"A", "B", "C", "D"} {
		edit(t, m, scene, shape)
	}
	assert.Equal(t, []string{"A,B", "A,B,C", "A,B,C,D"}, strs(m.History()))

	m.SetMaxEntries(1)
	assert.Equal(t, []string{"A,B,C,D"}, strs(m.History()))
	assert.ErrorIs(t, m.Undo(), ErrNothingToUndo)

	m.SetMaxEntries(0)
	assert.Equal(t, DefaultMaxEntries, m.MaxEntries())
}

func TestResetRestartsHistory(t *testing.T) {
	m, scene := newTestManager(t)
	edit(t, m, scene, "A")
	require.NoError(t, m.Undo())

	require.NoError(t, m.Reset(NewSnapshot([]byte("X,Y"))))
	assert.Equal(t, "X,Y", scene.content())
	assert.Equal(t, []string{"X,Y"}, strs(m.History()))
	assert.Empty(t, m.RedoStack())
}

func TestClosedManager(t *testing.T) {
	m, _ := newTestManager(t)
	m.Close()

	assert.ErrorIs(t, m.Record(), ErrClosed)
	assert.ErrorIs(t, m.Undo(), ErrClosed)
	assert.ErrorIs(t, m.Redo(), ErrClosed)
	assert.ErrorIs(t, m.ClearAll(), ErrClosed)
}

func TestParseClearPolicy(t *testing.T) {
	p, err := ParseClearPolicy("empty")
	require.NoError(t, err)
	assert.Equal(t, ClearEmpty, p)

	p, err = ParseClearPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ClearReseed, p)
	assert.Equal(t, "reseed", p.String())

	_, err = ParseClearPolicy("tree")
	assert.Error(t, err)
}

func TestSnapshotIsImmutable(t *testing.T) {
	data := []byte("A,B")
	snap := NewSnapshot(data)
	data[0] = 'Z'
	assert.Equal(t, "A,B", snap.String())

	out := snap.Bytes()
	out[0] = 'Q'
	assert.Equal(t, "A,B", snap.String())
	assert.True(t, snap.Equal(NewSnapshot([]byte("A,B"))))
	assert.False(t, snap.IsZero())
	assert.True(t, Snapshot{}.IsZero())
}
