package components

import (
	"math"

	"github.com/pthm-cable/flap/config"
)

// GapSource draws gap lines. *rand.Rand from math/rand/v2 satisfies it.
type GapSource interface {
	IntN(n int) int
}

// ObstacleParams holds obstacle geometry.
type ObstacleParams struct {
	Gap         float64
	PieceWidth  float64
	PieceHeight float64
	GapMin      int
	GapMax      int
}

// ObstacleParamsFrom extracts geometry from the obstacle config.
func ObstacleParamsFrom(cfg config.ObstacleConfig) ObstacleParams {
	return ObstacleParams{
		Gap:         cfg.Gap,
		PieceWidth:  cfg.PieceWidth,
		PieceHeight: cfg.PieceHeight,
		GapMin:      cfg.GapMin,
		GapMax:      cfg.GapMax,
	}
}

// Obstacle is a top/bottom piece pair. The top piece ends at GapCenter and the
// bottom piece starts Gap below it.
type Obstacle struct {
	X         float64
	GapCenter float64 // Lower edge of the top piece
	Top       float64 // Y of the top piece's upper-left corner
	Bottom    float64 // Y of the bottom piece's upper-left corner
	Width     float64
	Passed    bool
}

// NewObstacle creates an obstacle at x with a gap line drawn uniformly from
// [GapMin, GapMax).
func NewObstacle(x float64, src GapSource, p ObstacleParams) *Obstacle {
	gap := p.GapMin + src.IntN(p.GapMax-p.GapMin)
	return NewObstacleAt(x, float64(gap), p)
}

// NewObstacleAt creates an obstacle with an explicit gap line.
func NewObstacleAt(x, gapCenter float64, p ObstacleParams) *Obstacle {
	return &Obstacle{
		X:         x,
		GapCenter: gapCenter,
		Top:       gapCenter - p.PieceHeight,
		Bottom:    gapCenter + p.Gap,
		Width:     p.PieceWidth,
	}
}

// Advance scrolls the obstacle left.
func (o *Obstacle) Advance(velocity float64) {
	o.X -= velocity
}

// OffScreen reports whether the obstacle has fully left the field on the left.
func (o *Obstacle) OffScreen() bool {
	return o.X+o.Width < 0
}

// MarkPassed sets the traversal flag and reports whether it was newly set.
func (o *Obstacle) MarkPassed() bool {
	if o.Passed {
		return false
	}
	o.Passed = true
	return true
}

// CollidesWith tests both pieces against the footprint of the agent's
// current wing frame.
func (o *Obstacle) CollidesWith(a *Agent, s Silhouettes) bool {
	ax, ay := int(math.Round(a.X)), int(math.Round(a.Y))
	dx := int(math.Round(o.X)) - ax
	body := s.AgentFrame(a.Frame)

	if Overlap(body, s.Bottom, dx, int(math.Round(o.Bottom))-ay) {
		return true
	}
	return Overlap(body, s.Top, dx, int(math.Round(o.Top))-ay)
}
