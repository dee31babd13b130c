package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/sketchpad/internal/scene"
)

var (
	styleToolbar = tcell.StyleDefault.Background(tcell.ColorNavy).Foreground(tcell.ColorWhite)
	styleActive  = styleToolbar.Reverse(true)
	styleStatus  = tcell.StyleDefault.Background(tcell.ColorDarkSlateGray).Foreground(tcell.ColorWhite)
	styleGuide   = tcell.StyleDefault.Foreground(tcell.GetColor(scene.GuideColor)).Dim(true)
)

// viewport returns the canvas area: every row between the toolbar and the
// status line.
func (e *Editor) viewport() Viewport {
	w, h := e.screen.Size()
	cw, ch := e.scene.Size()
	return Viewport{Width: cw, Height: ch, Cols: w, Rows: h - 2}
}

// Draw renders the whole screen.
func (e *Editor) Draw() {
	e.screen.Clear()
	vp := e.viewport()
	if vp.Valid() {
		e.drawGuides(vp)
		for _, obj := range e.scene.Objects() {
			st := objectStyle(obj)
			if obj.ID == e.selected {
				st = st.Reverse(true)
			}
			e.plot(vp.Rasterize(obj), glyph(obj), st)
		}
		e.drawPreview(vp)
	}
	e.drawToolbar()
	e.drawStatus()
	e.screen.Show()
}

func (e *Editor) drawGuides(vp Viewport) {
	for _, g := range e.scene.Guides() {
		ch := '┄'
		if g.Vertical {
			ch = '┊'
		}
		for i, c := range vp.Segment(g.From, g.To) {
			if i%2 == 0 {
				e.screen.SetContent(c.Col, c.Row+1, ch, nil, styleGuide)
			}
		}
	}
}

func (e *Editor) drawPreview(vp Viewport) {
	if !e.dragging || e.tool == ToolSelect {
		return
	}
	obj, ok := shape(e.tool, e.start, e.end, e.path, e.style())
	if !ok {
		return
	}
	if obj.Style.Stroke == "" {
		obj.Style.Stroke = scene.DefaultStroke
	}
	e.plot(vp.Rasterize(obj), glyph(obj), objectStyle(obj).Dim(true))
}

func (e *Editor) plot(cells []Cell, ch rune, st tcell.Style) {
	for _, c := range cells {
		e.screen.SetContent(c.Col, c.Row+1, ch, nil, st)
	}
}

func objectStyle(obj scene.Object) tcell.Style {
	return tcell.StyleDefault.Foreground(tcell.GetColor(obj.Style.Stroke))
}

// drawToolbar renders the toolbar row and records the clickable spans.
func (e *Editor) drawToolbar() {
	w, _ := e.screen.Size()
	for x := 0; x < w; x++ {
		e.screen.SetContent(x, 0, ' ', nil, styleToolbar)
	}
	e.toolbar = e.toolbar[:0]

	x := 0
	item := func(label string, active bool, action func()) {
		st := styleToolbar
		if active {
			st = styleActive
		}
		x0 := x
		x = e.text(x, 0, " "+label+" ", st)
		if action != nil {
			e.toolbar = append(e.toolbar, toolbarItem{x0: x0, x1: x, action: action})
		}
	}

	for _, tk := range toolKeys {
		label := fmt.Sprintf("%c:%s", tk.key, tk.tool)
		if tk.tool == ToolBrush {
			label = fmt.Sprintf("%c:%s(%s)", tk.key, tk.tool, e.brush)
		}
		t := tk.tool
		item(label, e.tool == t, func() { e.selectTool(t) })
	}
	x = e.text(x, 0, "│", styleToolbar)
	item("u:undo", false, e.undo)
	item("y:redo", false, e.redo)
	item("x:clear", false, e.clear)
	item("w:save", false, e.save)
	x = e.text(x, 0, "│", styleToolbar)

	_, bg, _ := styleToolbar.Decompose()
	swatch := tcell.StyleDefault.Background(bg).Foreground(tcell.GetColor(e.stroke))
	x = e.text(x, 0, " ■", swatch)
	item(fmt.Sprintf("%s w:%g", e.stroke, e.effectiveWidth()), false, nil)
}

func (e *Editor) drawStatus() {
	w, h := e.screen.Size()
	if h < 2 {
		return
	}
	y := h - 1
	for x := 0; x < w; x++ {
		e.screen.SetContent(x, y, ' ', nil, styleStatus)
	}
	e.text(0, y, " "+e.Status(), styleStatus)

	right := fmt.Sprintf("%d objects │ %s ", len(e.scene.Objects()), e.tool)
	if x := w - len([]rune(right)); x > 0 {
		e.text(x, y, right, styleStatus)
	}
}

// text writes s at (x, y) and returns the column after it.
func (e *Editor) text(x, y int, s string, st tcell.Style) int {
	for _, r := range s {
		e.screen.SetContent(x, y, r, nil, st)
		x++
	}
	return x
}
