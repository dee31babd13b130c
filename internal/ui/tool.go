package ui

import (
	"math"

	"github.com/dshills/sketchpad/internal/scene"
)

// Tool is the active toolbar tool.
type Tool int

const (
	ToolSelect Tool = iota
	ToolRect
	ToolCircle
	ToolLine
	ToolBrush
)

// String returns the toolbar label.
func (t Tool) String() string {
	switch t {
	case ToolSelect:
		return "select"
	case ToolRect:
		return "rect"
	case ToolCircle:
		return "circle"
	case ToolLine:
		return "line"
	case ToolBrush:
		return "brush"
	default:
		return "unknown"
	}
}

// toolKeys binds toolbar runes to tools, in toolbar order.
var toolKeys = []struct {
	key  rune
	tool Tool
}{
	{'s', ToolSelect},
	{'r', ToolRect},
	{'c', ToolCircle},
	{'l', ToolLine},
	{'b', ToolBrush},
}

// palette is the color swatch row, selected with 1..7.
var palette = []string{"black", "red", "green", "blue", "yellow", "gray", "white"}

// shape builds the object a drag from a to b produces with tool t. It
// reports false when the drag is too small to make a valid object.
func shape(t Tool, a, b scene.Point, path []scene.Point, style scene.Style) (scene.Object, bool) {
	var obj scene.Object
	switch t {
	case ToolRect:
		obj = scene.NewRect(math.Min(a.X, b.X), math.Min(a.Y, b.Y), math.Abs(b.X-a.X), math.Abs(b.Y-a.Y), style)
	case ToolCircle:
		obj = scene.NewCircle(a.X, a.Y, math.Hypot(b.X-a.X, b.Y-a.Y), style)
	case ToolLine:
		if a == b {
			return obj, false
		}
		obj = scene.NewLine(a.X, a.Y, b.X, b.Y, style)
	case ToolBrush:
		obj = scene.NewStroke(path, style)
	default:
		return obj, false
	}
	return obj, obj.Validate() == nil
}

// glyph picks the rune an object is drawn with. Shapes use a block whose
// density follows the stroke lightness so pale colors stay visible.
func glyph(obj scene.Object) rune {
	if obj.Kind == scene.KindStroke {
		switch obj.Style.Brush {
		case scene.BrushMarker:
			return '█'
		case scene.BrushCalligraphy:
			return '╱'
		case scene.BrushSpray:
			return '∴'
		default:
			return '•'
		}
	}
	l := scene.Luminance(obj.Style.Stroke)
	switch {
	case l > 0.85:
		return '░'
	case l > 0.6:
		return '▒'
	case l > 0.35:
		return '▓'
	default:
		return '█'
	}
}
