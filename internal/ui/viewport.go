package ui

import (
	"math"

	"github.com/dshills/sketchpad/internal/scene"
)

// Cell is a terminal cell position inside the canvas area.
type Cell struct {
	Col, Row int
}

// Viewport maps canvas coordinates onto a grid of terminal cells.
type Viewport struct {
	// Canvas size in canvas units.
	Width, Height float64
	// Cols and Rows of the canvas area.
	Cols, Rows int
}

// Valid reports whether the viewport has a drawable area.
func (v Viewport) Valid() bool {
	return v.Cols > 0 && v.Rows > 0 && v.Width > 0 && v.Height > 0
}

// ToCell maps a canvas point to the cell containing it.
func (v Viewport) ToCell(p scene.Point) Cell {
	return Cell{
		Col: int(math.Floor(p.X * float64(v.Cols) / v.Width)),
		Row: int(math.Floor(p.Y * float64(v.Rows) / v.Height)),
	}
}

// ToPoint maps a cell to the canvas point at its center.
func (v Viewport) ToPoint(c Cell) scene.Point {
	return scene.Point{
		X: (float64(c.Col) + 0.5) * v.Width / float64(v.Cols),
		Y: (float64(c.Row) + 0.5) * v.Height / float64(v.Rows),
	}
}

// Contains reports whether c lies inside the canvas area.
func (v Viewport) Contains(c Cell) bool {
	return c.Col >= 0 && c.Col < v.Cols && c.Row >= 0 && c.Row < v.Rows
}

// Rasterize returns the outline cells of obj, clipped to the viewport.
func (v Viewport) Rasterize(obj scene.Object) []Cell {
	var cells []Cell
	switch obj.Kind {
	case scene.KindRect:
		lo, hi := obj.Bounds()
		corners := []scene.Point{lo, {X: hi.X, Y: lo.Y}, hi, {X: lo.X, Y: hi.Y}, lo}
		cells = v.polyline(corners)
	case scene.KindCircle:
		cells = v.circle(scene.Point{X: obj.Left, Y: obj.Top}, obj.Radius)
	case scene.KindLine, scene.KindStroke:
		cells = v.polyline(obj.AbsPoints())
	}
	return v.clip(cells)
}

// Segment returns the cells of a straight line between two canvas points.
func (v Viewport) Segment(a, b scene.Point) []Cell {
	return v.clip(v.line(v.ToCell(a), v.ToCell(b)))
}

func (v Viewport) polyline(pts []scene.Point) []Cell {
	if len(pts) == 1 {
		return []Cell{v.ToCell(pts[0])}
	}
	var out []Cell
	for i := 1; i < len(pts); i++ {
		out = append(out, v.line(v.ToCell(pts[i-1]), v.ToCell(pts[i]))...)
	}
	return out
}

// line walks the cells between a and b with Bresenham's algorithm.
func (v Viewport) line(a, b Cell) []Cell {
	dx := abs(b.Col - a.Col)
	dy := -abs(b.Row - a.Row)
	sx, sy := sign(b.Col-a.Col), sign(b.Row-a.Row)
	e := dx + dy

	out := make([]Cell, 0, max(dx, -dy)+1)
	for c := a; ; {
		out = append(out, c)
		if c == b {
			return out
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			c.Col += sx
		}
		if e2 <= dx {
			e += dx
			c.Row += sy
		}
	}
}

func (v Viewport) circle(center scene.Point, r float64) []Cell {
	// Enough samples to touch every cell on the circumference.
	cellW := v.Width / float64(v.Cols)
	cellH := v.Height / float64(v.Rows)
	steps := max(16, int(4*math.Pi*r/math.Min(cellW, cellH)))

	out := make([]Cell, 0, steps)
	var last Cell
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		c := v.ToCell(scene.Point{X: center.X + r*math.Cos(a), Y: center.Y + r*math.Sin(a)})
		if i > 0 && c == last {
			continue
		}
		out = append(out, c)
		last = c
	}
	return out
}

func (v Viewport) clip(cells []Cell) []Cell {
	out := cells[:0]
	for _, c := range cells {
		if v.Contains(c) {
			out = append(out, c)
		}
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}
