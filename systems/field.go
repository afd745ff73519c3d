package systems

import (
	"github.com/pthm-cable/flap/components"
	"github.com/pthm-cable/flap/config"
)

// ObstacleField owns the obstacles of one episode, oldest first.
// Obstacles are retired from the front and appended at the back only.
type ObstacleField struct {
	params   components.ObstacleParams
	src      components.GapSource
	velocity float64
	spawnX   float64

	obstacles []*components.Obstacle
}

// NewObstacleField creates a field holding one obstacle at cfg.FirstX.
func NewObstacleField(cfg config.ObstacleConfig, src components.GapSource) *ObstacleField {
	f := &ObstacleField{
		params:   components.ObstacleParamsFrom(cfg),
		src:      src,
		velocity: cfg.Velocity,
		spawnX:   cfg.SpawnX,
	}
	f.obstacles = append(f.obstacles, components.NewObstacle(cfg.FirstX, src, f.params))
	return f
}

// Len returns the number of obstacles on the field.
func (f *ObstacleField) Len() int { return len(f.obstacles) }

// At returns the i-th obstacle, oldest first.
func (f *ObstacleField) At(i int) *components.Obstacle { return f.obstacles[i] }

// Obstacles returns the live obstacle slice. Callers must not modify it.
func (f *ObstacleField) Obstacles() []*components.Obstacle { return f.obstacles }

// ActiveIndex returns which obstacle governs observations this tick: the
// second one once the reference x has cleared the first one's trailing edge.
func (f *ObstacleField) ActiveIndex(refX float64) int {
	if len(f.obstacles) > 1 && refX > f.obstacles[0].X+f.obstacles[0].Width {
		return 1
	}
	return 0
}

// Active returns the obstacle at ActiveIndex, or nil on an empty field.
func (f *ObstacleField) Active(refX float64) *components.Obstacle {
	if len(f.obstacles) == 0 {
		return nil
	}
	return f.obstacles[f.ActiveIndex(refX)]
}

// Advance moves every obstacle one tick, flags traversals against the given
// agent positions, retires obstacles that left the field and spawns one new
// obstacle if anything was traversed. It reports whether a traversal happened.
func (f *ObstacleField) Advance(liveXs []float64) bool {
	traversed := false
	for _, o := range f.obstacles {
		o.Advance(f.velocity)
		if o.Passed {
			continue
		}
		for _, x := range liveXs {
			if o.X < x {
				traversed = o.MarkPassed() || traversed
				break
			}
		}
	}

	n := 0
	for n < len(f.obstacles) && f.obstacles[n].OffScreen() {
		n++
	}
	if n > 0 {
		f.obstacles = append(f.obstacles[:0], f.obstacles[n:]...)
	}

	if traversed {
		f.obstacles = append(f.obstacles, components.NewObstacle(f.spawnX, f.src, f.params))
	}
	return traversed
}
