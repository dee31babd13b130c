package scene

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultStroke is used when an object has no stroke color.
const DefaultStroke = "#000000"

// namedColors are the swatches offered by the toolbar color picker.
var namedColors = map[string]string{
	"black":  "#000000",
	"white":  "#ffffff",
	"red":    "#ef4444",
	"green":  "#22c55e",
	"blue":   "#3b82f6",
	"yellow": "#eab308",
	"gray":   "#dddddd",
}

// NormalizeColor parses a swatch name, "#rgb" or "#rrggbb" color and returns
// it as lower-case "#rrggbb". An empty string stays empty.
func NormalizeColor(s string) (string, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "", nil
	}
	if hex, ok := namedColors[s]; ok {
		return hex, nil
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if len(s) != 4 && len(s) != 7 {
		return "", fmt.Errorf("invalid color %q: want #rgb or #rrggbb", s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return "", fmt.Errorf("invalid color %q: %w", s, err)
	}
	return c.Hex(), nil
}

// normalizeStyle fills defaults and canonicalizes colors.
func normalizeStyle(st Style) (Style, error) {
	stroke, err := NormalizeColor(st.Stroke)
	if err != nil {
		return st, err
	}
	if stroke == "" {
		stroke = DefaultStroke
	}
	fill, err := NormalizeColor(st.Fill)
	if err != nil {
		return st, err
	}
	st.Stroke, st.Fill = stroke, fill
	if st.Width == 0 {
		st.Width = 1
		if st.Brush != "" {
			st.Width = st.Brush.DefaultWidth()
		}
	}
	return st, nil
}

// Luminance returns the perceived lightness of a normalized color in
// [0, 1]. Front-ends use it to pick a glyph density.
func Luminance(hex string) float64 {
	c, err := colorful.Hex(hex)
	if err != nil {
		return 0
	}
	l, _, _ := c.Lab()
	return l
}
