package app

import (
	"context"
	"io"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/sketchpad/internal/scene"
	"github.com/dshills/sketchpad/internal/script"
	"github.com/dshills/sketchpad/internal/storage"
	"github.com/dshills/sketchpad/internal/ui"
)

// Undo reverts the last edit.
func (app *Application) Undo() error {
	return app.history.Undo()
}

// Redo reapplies the last undone edit.
func (app *Application) Redo() error {
	return app.history.Redo()
}

// ClearAll empties the canvas and its history.
func (app *Application) ClearAll() error {
	return app.history.ClearAll()
}

// Save writes the canvas under the current document name.
func (app *Application) Save() (string, error) {
	return app.SaveAs(app.Document())
}

// SaveAs writes the canvas under name and makes it the current document.
func (app *Application) SaveAs(name string) (string, error) {
	if app.isClosed() {
		return "", NewOperationError("save", name, ErrClosed)
	}
	if name == "" {
		return "", NewOperationError("save", "", ErrNoDocument)
	}
	path, err := app.store.Save(name, app.canvas.Document())
	if err != nil {
		return "", NewOperationError("save", name, err)
	}

	app.mu.Lock()
	app.document = name
	app.mu.Unlock()

	app.metrics.RecordSave()
	app.logger.Info("document saved", "name", name, "path", path)
	return path, nil
}

// Open loads the stored document name onto the canvas and restarts
// history from it.
func (app *Application) Open(ctx context.Context, name string) error {
	if app.isClosed() {
		return NewOperationError("open", name, ErrClosed)
	}
	doc, err := app.store.Load(name)
	if err != nil {
		return NewOperationError("open", name, err)
	}
	if err := app.load(ctx, doc); err != nil {
		return NewOperationError("open", name, err)
	}

	app.mu.Lock()
	app.document = name
	app.mu.Unlock()

	app.logger.Info("document opened", "name", name, "objects", len(doc.Objects))
	return nil
}

// OpenFile loads a document from an explicit path.
func (app *Application) OpenFile(ctx context.Context, path string) error {
	if app.isClosed() {
		return NewOperationError("open", path, ErrClosed)
	}
	doc, err := storage.LoadFile(path)
	if err != nil {
		return NewOperationError("open", path, err)
	}
	if err := app.load(ctx, doc); err != nil {
		return NewOperationError("open", path, err)
	}
	app.logger.Info("document opened", "path", path, "objects", len(doc.Objects))
	return nil
}

func (app *Application) load(ctx context.Context, doc scene.Document) error {
	snap, err := scene.EncodeDocument(doc)
	if err != nil {
		return err
	}
	if err := app.history.Reset(snap); err != nil {
		return err
	}
	return app.history.Wait(ctx)
}

func (app *Application) isClosed() bool {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.closed
}

// Documents lists the stored documents, newest first.
func (app *Application) Documents() ([]storage.Info, error) {
	return app.store.List()
}

// RunScript executes the Lua script at path against the canvas. print
// output goes to out.
func (app *Application) RunScript(ctx context.Context, path string, out io.Writer) error {
	if app.isClosed() {
		return NewOperationError("script", path, ErrClosed)
	}
	engine := script.New(app.canvas, app.history,
		script.WithOutput(out),
		script.WithLogger(component(app.logger, "script")),
	)
	defer engine.Close()

	if err := engine.RunFile(ctx, path); err != nil {
		return NewOperationError("script", path, err)
	}
	return app.history.Wait(ctx)
}

// RunUI runs the interactive editor on an initialized screen until the
// user quits or ctx is done.
func (app *Application) RunUI(ctx context.Context, screen tcell.Screen) error {
	cfg := app.Config()
	ed := ui.New(screen, app.canvas, app,
		ui.WithBus(app.bus),
		ui.WithLogger(component(app.logger, "ui")),
		ui.WithStatusTimeout(cfg.UI.StatusTimeout()),
		ui.WithStroke(cfg.UI.Stroke),
		ui.WithBrush(scene.Brush(cfg.UI.Brush)),
		ui.WithNudge(cfg.Canvas.Snap),
	)
	return ed.Run(ctx)
}
