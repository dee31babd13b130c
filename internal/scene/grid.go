package scene

// GuideColor is the stroke of the background grid.
const GuideColor = "#dddddd"

// Guide is one dashed background grid line. Guides are not content: they
// are never serialized, selected or reported through events.
type Guide struct {
	From, To Point
	Vertical bool
	Dash     [2]float64
}

// Guides returns the grid lines for the current size and grid spacing,
// vertical lines first.
func (c *Canvas) Guides() []Guide {
	c.mu.RLock()
	w, h, g := c.width, c.height, c.grid
	c.mu.RUnlock()

	if g <= 0 {
		return nil
	}

	var out []Guide
	for i := 0; float64(i) < w/g; i++ {
		x := float64(i) * g
		out = append(out, Guide{From: Point{x, 0}, To: Point{x, h}, Vertical: true, Dash: [2]float64{4, 4}})
	}
	for i := 0; float64(i) < h/g; i++ {
		y := float64(i) * g
		out = append(out, Guide{From: Point{0, y}, To: Point{w, y}, Dash: [2]float64{4, 4}})
	}
	return out
}
