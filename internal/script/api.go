package script

import (
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/sketchpad/internal/history"
	"github.com/dshills/sketchpad/internal/scene"
)

// install registers the sketch table and replaces print.
func (e *Engine) install() {
	L := e.L
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"rect":    e.luaRect,
		"circle":  e.luaCircle,
		"line":    e.luaLine,
		"stroke":  e.luaStroke,
		"move":    e.luaMove,
		"remove":  e.luaRemove,
		"undo":    e.luaUndo,
		"redo":    e.luaRedo,
		"clear":   e.luaClear,
		"count":   e.luaCount,
		"history": e.luaHistory,
	})
	L.SetGlobal("sketch", mod)
	L.SetGlobal("print", L.NewFunction(e.luaPrint))
}

func (e *Engine) add(L *lua.LState, obj scene.Object) int {
	id, err := e.canvas.Add(e.ctx, obj)
	if err != nil {
		return raise(L, err)
	}
	L.Push(lua.LString(id))
	return 1
}

// sketch.rect(left, top, width, height [, style]) -> id
func (e *Engine) luaRect(L *lua.LState) int {
	style := checkStyle(L, 5)
	return e.add(L, scene.NewRect(
		float64(L.CheckNumber(1)), float64(L.CheckNumber(2)),
		float64(L.CheckNumber(3)), float64(L.CheckNumber(4)), style))
}

// sketch.circle(cx, cy, radius [, style]) -> id
func (e *Engine) luaCircle(L *lua.LState) int {
	style := checkStyle(L, 4)
	return e.add(L, scene.NewCircle(
		float64(L.CheckNumber(1)), float64(L.CheckNumber(2)),
		float64(L.CheckNumber(3)), style))
}

// sketch.line(x1, y1, x2, y2 [, style]) -> id
func (e *Engine) luaLine(L *lua.LState) int {
	style := checkStyle(L, 5)
	return e.add(L, scene.NewLine(
		float64(L.CheckNumber(1)), float64(L.CheckNumber(2)),
		float64(L.CheckNumber(3)), float64(L.CheckNumber(4)), style))
}

// sketch.stroke({{x, y}, ...} [, style]) -> id
func (e *Engine) luaStroke(L *lua.LState) int {
	points := checkPoints(L, 1)
	style := checkStyle(L, 2)
	return e.add(L, scene.NewStroke(points, style))
}

// sketch.move(id, dx, dy)
func (e *Engine) luaMove(L *lua.LState) int {
	id := L.CheckString(1)
	if err := e.canvas.Move(e.ctx, id, float64(L.CheckNumber(2)), float64(L.CheckNumber(3))); err != nil {
		return raise(L, err)
	}
	return 0
}

// sketch.remove(id)
func (e *Engine) luaRemove(L *lua.LState) int {
	if err := e.canvas.Remove(e.ctx, L.CheckString(1)); err != nil {
		return raise(L, err)
	}
	return 0
}

// sketch.undo() -> ok [, message]
func (e *Engine) luaUndo(L *lua.LState) int {
	return e.step(L, e.history.Undo, history.ErrNothingToUndo)
}

// sketch.redo() -> ok [, message]
func (e *Engine) luaRedo(L *lua.LState) int {
	return e.step(L, e.history.Redo, history.ErrNothingToRedo)
}

// step runs an undo or redo and waits for the scene to settle. An
// exhausted stack is reported as false plus a message, not an error.
func (e *Engine) step(L *lua.LState, fn func() error, exhausted error) int {
	if err := fn(); err != nil {
		if errors.Is(err, exhausted) {
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		return raise(L, err)
	}
	if err := e.history.Wait(e.ctx); err != nil {
		return raise(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

// sketch.clear()
func (e *Engine) luaClear(L *lua.LState) int {
	if err := e.history.ClearAll(); err != nil {
		return raise(L, err)
	}
	if err := e.history.Wait(e.ctx); err != nil {
		return raise(L, err)
	}
	return 0
}

// sketch.count() -> number of objects
func (e *Engine) luaCount(L *lua.LState) int {
	L.Push(lua.LNumber(e.canvas.Len()))
	return 1
}

// sketch.history() -> undo count, redo count
func (e *Engine) luaHistory(L *lua.LState) int {
	L.Push(lua.LNumber(e.history.UndoCount()))
	L.Push(lua.LNumber(e.history.RedoCount()))
	return 2
}

func (e *Engine) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	line := strings.Join(parts, "\t")
	e.logger.Debug("script output", "line", line)
	fmt.Fprintln(e.out, line)
	return 0
}

// checkStyle reads an optional {stroke=, fill=, width=, brush=} table.
func checkStyle(L *lua.LState, idx int) scene.Style {
	var st scene.Style
	if L.Get(idx) == lua.LNil {
		return st
	}
	tbl := L.CheckTable(idx)
	if v, ok := tbl.RawGetString("stroke").(lua.LString); ok {
		st.Stroke = string(v)
	}
	if v, ok := tbl.RawGetString("fill").(lua.LString); ok {
		st.Fill = string(v)
	}
	if v, ok := tbl.RawGetString("width").(lua.LNumber); ok {
		st.Width = float64(v)
	}
	if v, ok := tbl.RawGetString("brush").(lua.LString); ok {
		st.Brush = scene.Brush(v)
	}
	return st
}

// checkPoints reads a list of points, each {x, y} or {x=, y=}.
func checkPoints(L *lua.LState, idx int) []scene.Point {
	tbl := L.CheckTable(idx)
	points := make([]scene.Point, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		pt, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			L.ArgError(idx, fmt.Sprintf("point %d is not a table", i))
			return nil
		}
		x, y := pt.RawGetString("x"), pt.RawGetString("y")
		if x == lua.LNil {
			x, y = pt.RawGetInt(1), pt.RawGetInt(2)
		}
		xn, okx := x.(lua.LNumber)
		yn, oky := y.(lua.LNumber)
		if !okx || !oky {
			L.ArgError(idx, fmt.Sprintf("point %d needs numeric x and y", i))
			return nil
		}
		points = append(points, scene.Point{X: float64(xn), Y: float64(yn)})
	}
	return points
}
