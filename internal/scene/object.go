package scene

import (
	"fmt"
	"math"
)

// Kind identifies an object's shape. The set is closed; every switch over
// Kind handles all four values.
type Kind string

const (
	KindRect   Kind = "rect"
	KindCircle Kind = "circle"
	KindLine   Kind = "line"
	KindStroke Kind = "stroke"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindRect, KindCircle, KindLine, KindStroke:
		return true
	default:
		return false
	}
}

// Brush selects how a freehand stroke is drawn.
type Brush string

const (
	BrushPencil      Brush = "pencil"
	BrushMarker      Brush = "marker"
	BrushCalligraphy Brush = "calligraphy"
	BrushSpray       Brush = "spray"
)

// Brushes lists the brush types in toolbar order.
var Brushes = []Brush{BrushPencil, BrushMarker, BrushCalligraphy, BrushSpray}

// Valid reports whether b is a known brush.
func (b Brush) Valid() bool {
	switch b {
	case BrushPencil, BrushMarker, BrushCalligraphy, BrushSpray:
		return true
	default:
		return false
	}
}

// DefaultWidth returns the stroke width a brush starts with.
func (b Brush) DefaultWidth() float64 {
	switch b {
	case BrushMarker:
		return 8
	case BrushCalligraphy:
		return 5
	case BrushSpray:
		return 12
	default:
		return 2
	}
}

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Style holds an object's paint settings. Colors are normalized "#rrggbb".
type Style struct {
	Stroke string  `json:"stroke" yaml:"stroke"`
	Fill   string  `json:"fill,omitempty" yaml:"fill,omitempty"`
	Width  float64 `json:"width" yaml:"width"`
	Brush  Brush   `json:"brush,omitempty" yaml:"brush,omitempty"`
}

// Object is one content object on the canvas.
//
// Left/Top is the object origin: the top-left corner of a rect, the center
// of a circle, and the translation applied to the Points of lines and
// strokes.
type Object struct {
	ID     string  `json:"id" yaml:"id"`
	Kind   Kind    `json:"kind" yaml:"kind"`
	Left   float64 `json:"left" yaml:"left"`
	Top    float64 `json:"top" yaml:"top"`
	Width  float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Height float64 `json:"height,omitempty" yaml:"height,omitempty"`
	Radius float64 `json:"radius,omitempty" yaml:"radius,omitempty"`
	Points []Point `json:"points,omitempty" yaml:"points,omitempty"`
	Style  Style   `json:"style" yaml:"style"`
}

// NewRect creates a rectangle with its top-left corner at (left, top).
func NewRect(left, top, width, height float64, style Style) Object {
	return Object{Kind: KindRect, Left: left, Top: top, Width: width, Height: height, Style: style}
}

// NewCircle creates a circle centered at (cx, cy).
func NewCircle(cx, cy, radius float64, style Style) Object {
	return Object{Kind: KindCircle, Left: cx, Top: cy, Radius: radius, Style: style}
}

// NewLine creates a straight line between two points.
func NewLine(x1, y1, x2, y2 float64, style Style) Object {
	return Object{
		Kind:   KindLine,
		Left:   x1,
		Top:    y1,
		Points: []Point{{0, 0}, {x2 - x1, y2 - y1}},
		Style:  style,
	}
}

// NewStroke creates a freehand stroke through absolute points.
func NewStroke(points []Point, style Style) Object {
	if len(points) == 0 {
		return Object{Kind: KindStroke, Style: style}
	}
	origin := points[0]
	rel := make([]Point, len(points))
	for i, p := range points {
		rel[i] = Point{X: p.X - origin.X, Y: p.Y - origin.Y}
	}
	if style.Brush == "" {
		style.Brush = BrushPencil
	}
	return Object{Kind: KindStroke, Left: origin.X, Top: origin.Y, Points: rel, Style: style}
}

// Validate checks the geometry required by the object's kind.
func (o Object) Validate() error {
	switch o.Kind {
	case KindRect:
		if o.Width <= 0 || o.Height <= 0 {
			return fmt.Errorf("rect needs positive size, got %gx%g", o.Width, o.Height)
		}
	case KindCircle:
		if o.Radius <= 0 {
			return fmt.Errorf("circle needs positive radius, got %g", o.Radius)
		}
	case KindLine:
		if len(o.Points) != 2 {
			return fmt.Errorf("line needs 2 points, got %d", len(o.Points))
		}
	case KindStroke:
		if len(o.Points) == 0 {
			return fmt.Errorf("stroke needs at least one point")
		}
		if o.Style.Brush != "" && !o.Style.Brush.Valid() {
			return fmt.Errorf("unknown brush %q", o.Style.Brush)
		}
	default:
		return fmt.Errorf("unknown kind %q", o.Kind)
	}
	if o.Style.Width < 0 {
		return fmt.Errorf("negative stroke width %g", o.Style.Width)
	}
	return nil
}

// AbsPoints returns the points of a line or stroke in canvas coordinates.
func (o Object) AbsPoints() []Point {
	out := make([]Point, len(o.Points))
	for i, p := range o.Points {
		out[i] = Point{X: p.X + o.Left, Y: p.Y + o.Top}
	}
	return out
}

// Bounds returns the axis-aligned bounding box as min and max corners.
func (o Object) Bounds() (Point, Point) {
	switch o.Kind {
	case KindRect:
		return Point{o.Left, o.Top}, Point{o.Left + o.Width, o.Top + o.Height}
	case KindCircle:
		return Point{o.Left - o.Radius, o.Top - o.Radius}, Point{o.Left + o.Radius, o.Top + o.Radius}
	default:
		pts := o.AbsPoints()
		if len(pts) == 0 {
			return Point{o.Left, o.Top}, Point{o.Left, o.Top}
		}
		lo, hi := pts[0], pts[0]
		for _, p := range pts[1:] {
			lo.X, lo.Y = math.Min(lo.X, p.X), math.Min(lo.Y, p.Y)
			hi.X, hi.Y = math.Max(hi.X, p.X), math.Max(hi.Y, p.Y)
		}
		return lo, hi
	}
}

// Contains reports whether p lies inside the object's bounding box.
func (o Object) Contains(p Point) bool {
	lo, hi := o.Bounds()
	return p.X >= lo.X && p.X <= hi.X && p.Y >= lo.Y && p.Y <= hi.Y
}

func (o Object) clone() Object {
	o.Points = append([]Point(nil), o.Points...)
	return o
}

// snapTo rounds v to the nearest multiple of step.
func snapTo(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}
