// Package app wires sketchpad together: configuration, logging, the event
// bus, the canvas with its undo/redo history and document storage. Front
// ends (the terminal editor and the script runner) drive the canvas
// through an Application.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/dshills/sketchpad/internal/config"
	"github.com/dshills/sketchpad/internal/event"
	"github.com/dshills/sketchpad/internal/event/topic"
	"github.com/dshills/sketchpad/internal/history"
	"github.com/dshills/sketchpad/internal/scene"
	"github.com/dshills/sketchpad/internal/storage"
)

// DefaultDocument is the name Save uses before a document is opened or
// saved under another name.
const DefaultDocument = "untitled"

// TopicConfigReloaded is published with the new *config.Config after a
// live reload.
const TopicConfigReloaded topic.Topic = "config.reloaded"

// Options configures the application.
type Options struct {
	// ConfigPath is the TOML configuration file. Empty skips the file.
	ConfigPath string

	// LogLevel and LogFormat override the configuration when set.
	LogLevel  string
	LogFormat string

	// LogOutput receives log output. Defaults to logging.file or stderr.
	LogOutput io.Writer

	// Document is the name Save writes to.
	Document string

	// Watch reloads the configuration file when it changes.
	Watch bool

	// Interactive discards log output that would otherwise go to stderr
	// underneath the terminal editor.
	Interactive bool
}

// Application is the composition root.
type Application struct {
	mu sync.RWMutex

	opts     Options
	cfg      *config.Config
	logger   *slog.Logger
	levelVar *slog.LevelVar
	logFile  *os.File

	bus     *event.Bus
	canvas  *scene.Canvas
	history *history.Manager
	store   *storage.Store
	watcher *config.Watcher
	metrics *Metrics

	document string
	closed   bool
}

// New creates an Application with the given options.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts:     opts,
		metrics:  NewMetrics(),
		document: opts.Document,
	}
	if app.document == "" {
		app.document = DefaultDocument
	}

	if err := app.bootstrap(); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap() error {
	// 1. Config
	cfg, err := config.Load(app.opts.ConfigPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	if app.opts.LogLevel != "" {
		cfg.Logging.Level = app.opts.LogLevel
	}
	if app.opts.LogFormat != "" {
		cfg.Logging.Format = app.opts.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return &InitError{Component: "config", Err: err}
	}
	app.cfg = cfg

	// 2. Logger
	out := app.opts.LogOutput
	if out == nil {
		out = os.Stderr
		if app.opts.Interactive {
			out = io.Discard
		}
		if cfg.Logging.File != "" {
			f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return &InitError{Component: "logger", Err: err}
			}
			app.logFile = f
			out = f
		}
	}
	app.logger, app.levelVar, err = NewLogger(cfg.Logging.Level, cfg.Logging.Format, out)
	if err != nil {
		return &InitError{Component: "logger", Err: err}
	}

	// 3. Event bus
	busLog := component(app.logger, "event")
	app.bus = event.NewBus(event.WithPanicHandler(func(ev any, recovered any) {
		busLog.Error("event handler panic", "event", fmt.Sprintf("%T", ev), "panic", recovered)
	}))

	// 4. Canvas
	app.canvas = scene.New(
		scene.WithSize(cfg.Canvas.Width, cfg.Canvas.Height),
		scene.WithGrid(cfg.Canvas.Grid),
		scene.WithSnap(cfg.Canvas.Snap),
		scene.WithBus(app.bus),
		scene.WithLogger(component(app.logger, "scene")),
	)

	// 5. History
	policy, err := history.ParseClearPolicy(cfg.History.ClearPolicy)
	if err != nil {
		return &InitError{Component: "history", Err: err}
	}
	app.history, err = history.New(app.canvas,
		history.WithMaxEntries(cfg.History.MaxEntries),
		history.WithClearPolicy(policy),
		history.WithNotifier(history.NotifierFunc(app.onStatus)),
		history.WithLogger(component(app.logger, "history")),
	)
	if err != nil {
		return &InitError{Component: "history", Err: err}
	}
	if err := app.history.Attach(app.bus); err != nil {
		return &InitError{Component: "history", Err: err}
	}

	// 6. Storage
	format, err := storage.ParseFormat(cfg.Storage.Format)
	if err != nil {
		return &InitError{Component: "storage", Err: err}
	}
	app.store, err = storage.New(cfg.Storage.Dir,
		storage.WithFormat(format),
		storage.WithLogger(component(app.logger, "storage")),
	)
	if err != nil {
		return &InitError{Component: "storage", Err: err}
	}

	// 7. Config watcher (non-fatal)
	if app.opts.Watch && app.opts.ConfigPath != "" {
		app.startWatcher()
	}

	app.logger.Debug("application initialized",
		"canvas", fmt.Sprintf("%gx%g", cfg.Canvas.Width, cfg.Canvas.Height),
		"max_entries", app.history.MaxEntries(),
		"clear_policy", policy.String(),
		"storage", app.store.Dir())
	return nil
}

func (app *Application) startWatcher() {
	log := component(app.logger, "config")
	if _, err := os.Stat(app.opts.ConfigPath); errors.Is(err, fs.ErrNotExist) {
		log.Debug("config file absent, not watching", "path", app.opts.ConfigPath)
		return
	}
	w, err := config.NewWatcher(app.opts.ConfigPath, app.cfg)
	if err != nil {
		log.Warn("config watcher unavailable", "error", err)
		return
	}
	w.OnChange(app.applyConfig)
	w.OnError(func(err error) {
		log.Warn("config reload failed", "error", err)
	})
	app.watcher = w
}

// applyConfig applies the settings that can change while running.
func (app *Application) applyConfig(cfg *config.Config) {
	app.mu.Lock()
	if app.closed {
		app.mu.Unlock()
		return
	}
	if app.opts.LogLevel != "" {
		cfg.Logging.Level = app.opts.LogLevel
	}
	app.cfg = cfg
	app.mu.Unlock()

	app.history.SetMaxEntries(cfg.History.MaxEntries)
	if policy, err := history.ParseClearPolicy(cfg.History.ClearPolicy); err == nil {
		app.history.SetClearPolicy(policy)
	}
	if lvl, err := ParseLogLevel(cfg.Logging.Level); err == nil {
		app.levelVar.Set(lvl)
	}
	app.metrics.RecordReload()

	app.logger.Info("configuration reloaded",
		"max_entries", app.history.MaxEntries(),
		"level", cfg.Logging.Level)
	if err := app.bus.Publish(context.Background(), event.NewEvent(TopicConfigReloaded, cfg, "config")); err != nil {
		app.logger.Warn("config reload handlers failed", "error", err)
	}
}

// onStatus counts, logs and publishes every history status.
func (app *Application) onStatus(st history.Status) {
	app.metrics.RecordStatus(st)
	if st.Action != history.ActionRecord {
		app.logger.Debug("history", "action", st.Action.String(), "result", st.Message(),
			"history", st.HistoryLen, "redo", st.RedoLen)
	}
	if err := app.bus.Publish(context.Background(), event.NewEvent(st.Action.Topic(), st, "history")); err != nil {
		app.logger.Warn("history status handlers failed", "error", err)
	}
}

// Config returns the current configuration.
func (app *Application) Config() *config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Bus returns the event bus.
func (app *Application) Bus() *event.Bus { return app.bus }

// Canvas returns the drawing surface.
func (app *Application) Canvas() *scene.Canvas { return app.canvas }

// History returns the undo/redo manager.
func (app *Application) History() *history.Manager { return app.history }

// Store returns the document store.
func (app *Application) Store() *storage.Store { return app.store }

// Metrics returns the operation counters.
func (app *Application) Metrics() *Metrics { return app.metrics }

// Document returns the name Save writes to.
func (app *Application) Document() string {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.document
}

// Close shuts every component down. It is safe to call more than once.
func (app *Application) Close() {
	app.mu.Lock()
	if app.closed {
		app.mu.Unlock()
		return
	}
	app.closed = true
	app.mu.Unlock()

	if app.watcher != nil {
		_ = app.watcher.Close()
	}
	if app.history != nil {
		app.history.Close()
	}
	if app.bus != nil {
		app.bus.Close()
	}
	if app.logger != nil {
		app.logger.Debug("application closed", app.metrics.Snapshot().Attrs()...)
	}
	if app.logFile != nil {
		_ = app.logFile.Close()
	}
}
