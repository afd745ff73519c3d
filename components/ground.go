package components

// Ground is a band of two equal segments that tile the field while scrolling.
type Ground struct {
	Y      float64
	Width  float64 // Segment width
	X1, X2 float64
}

// NewGround places the two segments side by side starting at x = 0.
func NewGround(y, segmentWidth float64) Ground {
	return Ground{
		Y:     y,
		Width: segmentWidth,
		X1:    0,
		X2:    segmentWidth,
	}
}

// Advance scrolls both segments and wraps whichever left the field behind the other.
func (g *Ground) Advance(velocity float64) {
	g.X1 -= velocity
	g.X2 -= velocity

	if g.X1+g.Width < 0 {
		g.X1 = g.X2 + g.Width
	}
	if g.X2+g.Width < 0 {
		g.X2 = g.X1 + g.Width
	}
}

// Covers reports whether the two segments span [0, width] without a gap.
func (g Ground) Covers(width float64) bool {
	lo, hi := g.X1, g.X2
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo > 0 || hi > lo+g.Width {
		return false
	}
	return hi+g.Width >= width
}
