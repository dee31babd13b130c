package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/sketchpad/internal/config"
	"github.com/dshills/sketchpad/internal/event"
	"github.com/dshills/sketchpad/internal/history"
	"github.com/dshills/sketchpad/internal/scene"
	"github.com/dshills/sketchpad/internal/storage"
)

// writeConfig writes a config file whose storage lives in dir, followed
// by extra TOML.
func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	body := fmt.Sprintf("[storage]\ndir = %q\n\n%s", filepath.Join(dir, "docs"), extra)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestApp(t *testing.T, extra string, mutate ...func(*Options)) (*Application, *bytes.Buffer) {
	t.Helper()
	logs := &bytes.Buffer{}
	opts := Options{
		ConfigPath: writeConfig(t, t.TempDir(), extra),
		LogOutput:  &syncWriter{w: logs},
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	app, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app, logs
}

type syncWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func waitIdle(t *testing.T, app *Application) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, app.History().Wait(ctx))
}

func addRect(t *testing.T, app *Application, left float64) string {
	t.Helper()
	id, err := app.Canvas().Add(context.Background(), scene.NewRect(left, 10, 40, 40, scene.Style{}))
	require.NoError(t, err)
	return id
}

func TestNewAppliesConfig(t *testing.T) {
	app, _ := newTestApp(t, `
[canvas]
width = 1024.0
height = 768.0

[history]
max_entries = 5
clear_policy = "empty"
`)
	w, h := app.Canvas().Size()
	assert.Equal(t, 1024.0, w)
	assert.Equal(t, 768.0, h)
	assert.Equal(t, 5, app.History().MaxEntries())
	assert.Equal(t, DefaultDocument, app.Document())
	assert.DirExists(t, app.Store().Dir())

	addRect(t, app, 10)
	require.NoError(t, app.ClearAll())
	waitIdle(t, app)
	assert.Empty(t, app.History().History())
}

func TestNewRejectsBadOptions(t *testing.T) {
	dir := t.TempDir()
	_, err := New(Options{ConfigPath: writeConfig(t, dir, ""), LogLevel: "verbose"})
	require.Error(t, err)

	var ie *InitError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "config", ie.Component)
	assert.ErrorIs(t, err, config.ErrValidationFailed)
}

func TestNewRejectsMalformedConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[history\n"), 0o644))

	_, err := New(Options{ConfigPath: path, LogOutput: &bytes.Buffer{}})
	var pe *config.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestHistoryStatusPublished(t *testing.T) {
	app, _ := newTestApp(t, "")

	var (
		mu   sync.Mutex
		seen []string
	)
	_, err := app.Bus().Subscribe(history.StatusTopics, event.TypedHandlerFunc[history.Status](
		func(_ context.Context, ev event.Event[history.Status]) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, ev.Payload.Action.String()+":"+ev.Payload.Message())
			return nil
		}))
	require.NoError(t, err)

	addRect(t, app, 10)
	require.NoError(t, app.Undo())
	waitIdle(t, app)
	assert.ErrorIs(t, app.Undo(), history.ErrNothingToUndo)

	mu.Lock()
	got := append([]string(nil), seen...)
	mu.Unlock()
	require.Len(t, got, 3)
	assert.True(t, strings.HasPrefix(got[0], "record:"))
	assert.Equal(t, "undo:undone", got[1])
	assert.Equal(t, "undo:nothing to undo", got[2])

	snap := app.Metrics().Snapshot()
	assert.Equal(t, uint64(1), snap.Records)
	assert.Equal(t, uint64(1), snap.Undos)
	assert.Equal(t, uint64(1), snap.Exhausted)
	assert.Equal(t, 2, snap.MaxDepth)
}

func TestSaveAndOpenRestartHistory(t *testing.T) {
	app, _ := newTestApp(t, "")
	ctx := context.Background()

	addRect(t, app, 10)
	addRect(t, app, 100)
	path, err := app.SaveAs("drawing")
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, "drawing", app.Document())

	require.NoError(t, app.ClearAll())
	waitIdle(t, app)
	require.Empty(t, app.Canvas().Objects())

	require.NoError(t, app.Open(ctx, "drawing"))
	assert.Len(t, app.Canvas().Objects(), 2)
	assert.Equal(t, 0, app.History().UndoCount())
	assert.Equal(t, 0, app.History().RedoCount())
	assert.ErrorIs(t, app.Undo(), history.ErrNothingToUndo)

	docs, err := app.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "drawing", docs[0].Name)
	assert.Equal(t, 2, docs[0].Objects)

	// Edits after opening are undoable back to the loaded document.
	addRect(t, app, 200)
	require.NoError(t, app.Undo())
	waitIdle(t, app)
	assert.Len(t, app.Canvas().Objects(), 2)

	snap := app.Metrics().Snapshot()
	assert.Equal(t, uint64(1), snap.Saves)
	assert.Equal(t, uint64(1), snap.Resets)
}

func TestSaveUsesCurrentDocument(t *testing.T) {
	app, _ := newTestApp(t, "", func(o *Options) { o.Document = "notes" })
	addRect(t, app, 10)

	path, err := app.Save()
	require.NoError(t, err)
	assert.Equal(t, "notes.json", filepath.Base(path))

	_, err = app.SaveAs("")
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestOpenErrors(t *testing.T) {
	app, _ := newTestApp(t, "")
	ctx := context.Background()

	err := app.Open(ctx, "missing")
	require.Error(t, err)
	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "open", oe.Op)
	assert.Equal(t, "missing", oe.Target)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"version":1,"objects":[{"kind":"blob"}]}`), 0o644))
	assert.Error(t, app.OpenFile(ctx, bad))
	assert.Empty(t, app.Canvas().Objects())
}

func TestOpenFile(t *testing.T) {
	app, _ := newTestApp(t, "")
	addRect(t, app, 10)
	path, err := app.SaveAs("first")
	require.NoError(t, err)

	other, _ := newTestApp(t, `
[storage]
format = "yaml"
`)
	require.NoError(t, other.OpenFile(context.Background(), path))
	assert.Len(t, other.Canvas().Objects(), 1)
	assert.Equal(t, DefaultDocument, other.Document())
}

func TestRunScript(t *testing.T) {
	app, _ := newTestApp(t, "")
	path := filepath.Join(t.TempDir(), "draw.lua")
	require.NoError(t, os.WriteFile(path, []byte(`
		sketch.rect(0, 0, 50, 50)
		sketch.circle(100, 100, 20)
		sketch.undo()
		print(sketch.count(), sketch.history())
	`), 0o644))

	out := &bytes.Buffer{}
	require.NoError(t, app.RunScript(context.Background(), path, out))
	assert.Equal(t, "1\t1\t1\n", out.String())
	assert.Len(t, app.Canvas().Objects(), 1)

	err := app.RunScript(context.Background(), filepath.Join(t.TempDir(), "none.lua"), out)
	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "script", oe.Op)
}

func TestApplyConfigLive(t *testing.T) {
	app, logs := newTestApp(t, "")

	reloaded := make(chan *config.Config, 1)
	_, err := app.Bus().Subscribe(TopicConfigReloaded, event.TypedHandlerFunc[*config.Config](
		func(_ context.Context, ev event.Event[*config.Config]) error {
			reloaded <- ev.Payload
			return nil
		}))
	require.NoError(t, err)

	cfg := app.Config().Clone()
	cfg.History.MaxEntries = 3
	cfg.History.ClearPolicy = "empty"
	cfg.Logging.Level = "debug"
	app.applyConfig(cfg)

	assert.Equal(t, 3, app.History().MaxEntries())
	assert.Equal(t, slog.LevelDebug, app.levelVar.Level())
	assert.Equal(t, uint64(1), app.Metrics().Snapshot().Reloads)
	assert.Same(t, cfg, <-reloaded)
	assert.Contains(t, logs.String(), "configuration reloaded")

	for i := 0; i < 5; i++ {
		addRect(t, app, float64(i*50))
	}
	assert.Len(t, app.History().History(), 3)
}

func TestApplyConfigKeepsLevelOverride(t *testing.T) {
	app, _ := newTestApp(t, "", func(o *Options) { o.LogLevel = "error" })
	require.Equal(t, slog.LevelError, app.levelVar.Level())

	cfg := app.Config().Clone()
	cfg.Logging.Level = "debug"
	app.applyConfig(cfg)
	assert.Equal(t, slog.LevelError, app.levelVar.Level())
}

func TestWatchReloadsConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "[history]\nmax_entries = 50\n")
	app, err := New(Options{ConfigPath: path, LogOutput: &syncWriter{w: &bytes.Buffer{}}, Watch: true})
	require.NoError(t, err)
	defer app.Close()
	require.NotNil(t, app.watcher)

	writeConfig(t, dir, "[history]\nmax_entries = 7\n")
	assert.Eventually(t, func() bool {
		return app.History().MaxEntries() == 7
	}, 3*time.Second, 20*time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	app, _ := newTestApp(t, "")
	app.Close()
	app.Close()

	_, err := app.SaveAs("late")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, app.Open(context.Background(), "late"), ErrClosed)
	assert.ErrorIs(t, app.Undo(), history.ErrClosed)
}

func TestRunUIStopsOnContext(t *testing.T) {
	app, _ := newTestApp(t, "")
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	defer screen.Fini()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunUI(ctx, screen) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunUI did not return")
	}
}

func TestOperationError(t *testing.T) {
	err := NewOperationError("save", "doc", errors.New("disk full"))
	assert.Equal(t, "save doc: disk full", err.Error())
	assert.Equal(t, "open: boom", NewOperationError("open", "", errors.New("boom")).Error())

	ie := &InitError{Component: "storage", Err: os.ErrPermission}
	assert.Equal(t, "init storage: permission denied", ie.Error())
	assert.ErrorIs(t, ie, os.ErrPermission)
}
