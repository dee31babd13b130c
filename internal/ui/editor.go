// Package ui is the terminal front-end: a toolbar row, the canvas area and
// a status line drawn with tcell.
//
// Drawing happens on the goroutine running Run. Scene and history events
// arriving from other goroutines only post a redraw request to the screen.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/sketchpad/internal/event"
	"github.com/dshills/sketchpad/internal/history"
	"github.com/dshills/sketchpad/internal/scene"
)

// DefaultStatusTimeout is how long status messages stay visible.
const DefaultStatusTimeout = 3 * time.Second

// Scene is the canvas the editor draws and edits.
type Scene interface {
	Add(ctx context.Context, obj scene.Object) (string, error)
	Move(ctx context.Context, id string, dx, dy float64) error
	Remove(ctx context.Context, id string) error
	Objects() []scene.Object
	ObjectAt(p scene.Point) (scene.Object, bool)
	Guides() []scene.Guide
	Size() (float64, float64)
}

// Controller runs the toolbar commands.
type Controller interface {
	Undo() error
	Redo() error
	ClearAll() error
	Save() (string, error)
}

type redraw struct{}

type quit struct{}

// toolbarItem is a clickable toolbar span.
type toolbarItem struct {
	x0, x1 int
	action func()
}

// Editor is the interactive drawing front-end.
type Editor struct {
	screen tcell.Screen
	scene  Scene
	ctl    Controller
	bus    *event.Bus
	subs   []event.Subscription
	logger *slog.Logger

	statusTimeout time.Duration
	nudge         float64
	now           func() time.Time

	mu          sync.Mutex
	status      string
	statusUntil time.Time

	// UI goroutine state.
	tool     Tool
	brush    scene.Brush
	stroke   string
	width    float64
	selected string
	dragging bool
	start    scene.Point
	end      scene.Point
	path     []scene.Point
	toolbar  []toolbarItem
}

// Option configures an Editor.
type Option func(*Editor)

// WithBus subscribes the editor to scene and history events.
func WithBus(bus *event.Bus) Option {
	return func(e *Editor) {
		e.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStatusTimeout sets how long status messages stay visible.
func WithStatusTimeout(d time.Duration) Option {
	return func(e *Editor) {
		e.statusTimeout = d
	}
}

// WithStroke sets the initial stroke color.
func WithStroke(color string) Option {
	return func(e *Editor) {
		if c, err := scene.NormalizeColor(color); err == nil && c != "" {
			e.stroke = c
		}
	}
}

// WithBrush sets the initial brush.
func WithBrush(b scene.Brush) Option {
	return func(e *Editor) {
		if b.Valid() {
			e.brush = b
		}
	}
}

// WithNudge sets the distance arrow keys move the selection.
func WithNudge(step float64) Option {
	return func(e *Editor) {
		if step > 0 {
			e.nudge = step
		}
	}
}

// New creates an editor drawing on an initialized screen.
func New(screen tcell.Screen, sc Scene, ctl Controller, opts ...Option) *Editor {
	e := &Editor{
		screen:        screen,
		scene:         sc,
		ctl:           ctl,
		logger:        slog.New(slog.DiscardHandler),
		statusTimeout: DefaultStatusTimeout,
		nudge:         scene.DefaultSnap,
		now:           time.Now,
		tool:          ToolRect,
		brush:         scene.BrushPencil,
		stroke:        scene.DefaultStroke,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run draws and handles events until the user quits, the screen is
// finalized or ctx is done.
func (e *Editor) Run(ctx context.Context) error {
	if err := e.subscribe(); err != nil {
		return err
	}
	defer e.unsubscribe()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = e.screen.PostEvent(tcell.NewEventInterrupt(quit{}))
		case <-done:
		}
	}()

	e.screen.EnableMouse()
	e.Draw()
	for {
		ev := e.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if !e.HandleEvent(ev) {
			return nil
		}
		e.Draw()
	}
}

func (e *Editor) subscribe() error {
	if e.bus == nil {
		return nil
	}
	sub, err := e.bus.SubscribeFunc("scene.**", func(context.Context, any) error {
		e.requestRedraw()
		return nil
	}, event.WithPriority(event.PriorityLow))
	if err != nil {
		return err
	}
	e.subs = append(e.subs, sub)

	sub, err = e.bus.Subscribe(history.StatusTopics,
		event.TypedHandlerFunc[history.Status](func(_ context.Context, ev event.Event[history.Status]) error {
			e.Notify(ev.Payload)
			return nil
		}), event.WithPriority(event.PriorityLow))
	if err != nil {
		return err
	}
	e.subs = append(e.subs, sub)
	return nil
}

func (e *Editor) unsubscribe() {
	for _, sub := range e.subs {
		_ = e.bus.Unsubscribe(sub)
	}
	e.subs = nil
}

// Notify implements history.Notifier. Recorded edits are not announced.
func (e *Editor) Notify(st history.Status) {
	if st.Action == history.ActionRecord {
		return
	}
	e.SetStatus(st.Message())
}

// SetStatus shows msg on the status line. Safe for concurrent use.
func (e *Editor) SetStatus(msg string) {
	e.mu.Lock()
	e.status = msg
	e.statusUntil = e.now().Add(e.statusTimeout)
	e.mu.Unlock()
	e.requestRedraw()
}

// Status returns the visible status message, if any.
func (e *Editor) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == "" || (e.statusTimeout > 0 && e.now().After(e.statusUntil)) {
		return ""
	}
	return e.status
}

func (e *Editor) requestRedraw() {
	_ = e.screen.PostEvent(tcell.NewEventInterrupt(redraw{}))
}

// Tool returns the active tool.
func (e *Editor) Tool() Tool {
	return e.tool
}

// Selected returns the id of the selected object, if any.
func (e *Editor) Selected() string {
	return e.selected
}

// HandleEvent applies one event. It returns false when the editor should
// exit.
func (e *Editor) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return e.handleKey(ev)
	case *tcell.EventMouse:
		e.handleMouse(ev)
	case *tcell.EventResize:
		e.screen.Sync()
	case *tcell.EventInterrupt:
		if _, ok := ev.Data().(quit); ok {
			return false
		}
	}
	return true
}

func (e *Editor) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyCtrlC:
		return false
	case tcell.KeyEscape:
		e.dragging = false
		e.path = nil
		e.selected = ""
	case tcell.KeyCtrlZ:
		e.undo()
	case tcell.KeyCtrlY:
		e.redo()
	case tcell.KeyUp:
		e.moveSelected(0, -e.nudge)
	case tcell.KeyDown:
		e.moveSelected(0, e.nudge)
	case tcell.KeyLeft:
		e.moveSelected(-e.nudge, 0)
	case tcell.KeyRight:
		e.moveSelected(e.nudge, 0)
	case tcell.KeyDelete, tcell.KeyBackspace, tcell.KeyBackspace2:
		e.removeSelected()
	case tcell.KeyRune:
		return e.handleRune(ev.Rune())
	}
	return true
}

func (e *Editor) handleRune(r rune) bool {
	switch r {
	case 'q':
		return false
	case 'u':
		e.undo()
	case 'y':
		e.redo()
	case 'x':
		e.clear()
	case 'w':
		e.save()
	case '+':
		e.width = e.effectiveWidth() + 1
	case '-':
		if w := e.effectiveWidth() - 1; w >= 1 {
			e.width = w
		}
	default:
		if r >= '1' && int(r-'1') < len(palette) {
			e.setColor(palette[r-'1'])
			return true
		}
		for _, tk := range toolKeys {
			if tk.key == r {
				e.selectTool(tk.tool)
			}
		}
	}
	return true
}

// selectTool activates t. Choosing the brush while it is active cycles
// through the brush types.
func (e *Editor) selectTool(t Tool) {
	if t == ToolBrush && e.tool == ToolBrush {
		e.cycleBrush()
		return
	}
	e.tool = t
	e.selected = ""
	e.dragging = false
}

func (e *Editor) cycleBrush() {
	for i, b := range scene.Brushes {
		if b == e.brush {
			e.brush = scene.Brushes[(i+1)%len(scene.Brushes)]
			e.width = 0
			return
		}
	}
	e.brush = scene.BrushPencil
}

func (e *Editor) setColor(name string) {
	c, err := scene.NormalizeColor(name)
	if err != nil {
		e.report(err)
		return
	}
	e.stroke = c
}

// effectiveWidth is the width new objects get: the explicit width or the
// brush default.
func (e *Editor) effectiveWidth() float64 {
	if e.width > 0 {
		return e.width
	}
	if e.tool == ToolBrush {
		return e.brush.DefaultWidth()
	}
	return 1
}

func (e *Editor) style() scene.Style {
	st := scene.Style{Stroke: e.stroke, Width: e.width}
	if e.tool == ToolBrush {
		st.Brush = e.brush
	}
	return st
}

func (e *Editor) handleMouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	vp := e.viewport()
	cell := Cell{Col: x, Row: y - 1}
	pressed := ev.Buttons()&tcell.Button1 != 0

	switch {
	case pressed && !e.dragging:
		if y == 0 {
			e.clickToolbar(x)
			return
		}
		if !vp.Valid() || !vp.Contains(cell) {
			return
		}
		p := vp.ToPoint(cell)
		e.dragging = true
		e.start, e.end = p, p
		e.path = []scene.Point{p}
		if e.tool == ToolSelect {
			e.selected = ""
			if obj, ok := e.scene.ObjectAt(p); ok {
				e.selected = obj.ID
			}
		}

	case pressed && e.dragging:
		if !vp.Valid() {
			return
		}
		cell.Col = min(max(cell.Col, 0), vp.Cols-1)
		cell.Row = min(max(cell.Row, 0), vp.Rows-1)
		p := vp.ToPoint(cell)
		if p != e.end {
			e.end = p
			e.path = append(e.path, p)
		}

	case !pressed && e.dragging:
		e.dragging = false
		e.finishDrag()
	}
}

func (e *Editor) finishDrag() {
	ctx := context.Background()
	if e.tool == ToolSelect {
		dx, dy := e.end.X-e.start.X, e.end.Y-e.start.Y
		if e.selected != "" && (dx != 0 || dy != 0) {
			if err := e.scene.Move(ctx, e.selected, dx, dy); err != nil {
				e.report(err)
			}
		}
		return
	}

	obj, ok := shape(e.tool, e.start, e.end, e.path, e.style())
	e.path = nil
	if !ok {
		return
	}
	if _, err := e.scene.Add(ctx, obj); err != nil {
		e.report(err)
	}
}

func (e *Editor) clickToolbar(x int) {
	for _, item := range e.toolbar {
		if x >= item.x0 && x < item.x1 {
			item.action()
			return
		}
	}
}

func (e *Editor) moveSelected(dx, dy float64) {
	if e.selected == "" {
		return
	}
	if err := e.scene.Move(context.Background(), e.selected, dx, dy); err != nil {
		e.report(err)
	}
}

func (e *Editor) removeSelected() {
	if e.selected == "" {
		return
	}
	err := e.scene.Remove(context.Background(), e.selected)
	e.selected = ""
	if err != nil {
		e.report(err)
	}
}

func (e *Editor) undo() {
	if err := e.ctl.Undo(); err != nil && !errors.Is(err, history.ErrNothingToUndo) {
		e.report(err)
	}
}

func (e *Editor) redo() {
	if err := e.ctl.Redo(); err != nil && !errors.Is(err, history.ErrNothingToRedo) {
		e.report(err)
	}
}

func (e *Editor) clear() {
	e.selected = ""
	if err := e.ctl.ClearAll(); err != nil {
		e.report(err)
	}
}

func (e *Editor) save() {
	path, err := e.ctl.Save()
	if err != nil {
		e.report(err)
		return
	}
	e.SetStatus(fmt.Sprintf("saved %s", path))
}

func (e *Editor) report(err error) {
	e.logger.Warn("command failed", "error", err)
	e.SetStatus(err.Error())
}
