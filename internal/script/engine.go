// Package script drives the canvas from Lua.
//
// Scripts run in a sandboxed gopher-lua state with only the base, table,
// string and math libraries. Drawing and history commands live in the
// global "sketch" table:
//
//	local r = sketch.rect(10, 10, 100, 50, {stroke = "red"})
//	sketch.move(r, 13, 0)   -- snaps to the grid
//	sketch.undo()           -- waits for the restore to finish
//	print(sketch.count())
package script

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/sketchpad/internal/scene"
)

// DefaultTimeout bounds a single script run.
const DefaultTimeout = 30 * time.Second

// Canvas is the drawing surface a script edits.
type Canvas interface {
	Add(ctx context.Context, obj scene.Object) (string, error)
	Move(ctx context.Context, id string, dx, dy float64) error
	Remove(ctx context.Context, id string) error
	Len() int
}

// History is the undo/redo surface a script drives.
type History interface {
	Undo() error
	Redo() error
	ClearAll() error
	Wait(ctx context.Context) error
	UndoCount() int
	RedoCount() int
}

// Engine runs Lua scripts against a canvas and its history.
//
// gopher-lua's LState is not goroutine-safe; the mutex serializes runs.
type Engine struct {
	mu sync.Mutex

	L       *lua.LState
	canvas  Canvas
	history History

	logger  *slog.Logger
	out     io.Writer
	timeout time.Duration

	// ctx is the context of the run in progress.
	ctx    context.Context
	closed bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithOutput sets where print writes.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) {
		e.out = w
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTimeout sets the per-run time budget. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// New creates an engine with a fresh sandboxed state.
func New(canvas Canvas, history History, opts ...Option) *Engine {
	e := &Engine{
		canvas:  canvas,
		history: history,
		logger:  slog.New(slog.DiscardHandler),
		out:     io.Discard,
		timeout: DefaultTimeout,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(e.L)
	e.install()
	return e
}

// openSafeLibraries opens only the Lua libraries without host access.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "module", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Run executes code. name labels errors.
func (e *Engine) Run(ctx context.Context, name, code string) error {
	return e.run(ctx, name, func(L *lua.LState) error {
		return L.DoString(code)
	})
}

// RunFile executes the Lua file at path.
func (e *Engine) RunFile(ctx context.Context, path string) error {
	return e.run(ctx, path, func(L *lua.LState) error {
		return L.DoFile(path)
	})
}

func (e *Engine) run(ctx context.Context, name string, fn func(*lua.LState) error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	e.ctx = ctx
	e.L.SetContext(ctx)
	defer func() {
		e.L.RemoveContext()
		e.ctx = context.Background()
	}()

	defer func() {
		if r := recover(); r != nil {
			err = &Error{Name: name, Err: fmt.Errorf("lua panic: %v", r)}
		}
	}()

	start := time.Now()
	if runErr := fn(e.L); runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			runErr = fmt.Errorf("%w: %w", ErrTimeout, ctxErr)
		}
		e.logger.Warn("script failed", "script", name, "error", runErr)
		return &Error{Name: name, Err: runErr}
	}
	e.logger.Debug("script finished", "script", name, "duration", time.Since(start))
	return nil
}

// Close releases the Lua state.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.L.Close()
}

// IsClosed reports whether Close was called.
func (e *Engine) IsClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// raise converts a Go error into a Lua error.
func raise(L *lua.LState, err error) int {
	L.RaiseError("%s", err.Error())
	return 0
}

