package systems

import (
	"math/rand/v2"
	"testing"

	"github.com/pthm-cable/flap/components"
	"github.com/pthm-cable/flap/config"
)

type fixedGap int

func (g fixedGap) IntN(n int) int { return min(int(g), n-1) }

func TestNewObstacleField(t *testing.T) {
	cfg := config.Default().Obstacle
	f := NewObstacleField(cfg, fixedGap(0))

	if f.Len() != 1 {
		t.Fatalf("initial obstacles = %d, want 1", f.Len())
	}
	if f.At(0).X != cfg.FirstX {
		t.Errorf("first obstacle x = %v, want %v", f.At(0).X, cfg.FirstX)
	}
	if f.ActiveIndex(230) != 0 {
		t.Error("single obstacle must be active")
	}
}

func TestFieldAdvanceTraversal(t *testing.T) {
	cfg := config.Default().Obstacle
	cfg.Velocity = 10
	cfg.FirstX = 260
	f := NewObstacleField(cfg, fixedGap(100))

	// 260 -> 250 -> 240 -> 230 -> 220: traversal on the fourth tick.
	for i := 1; i <= 3; i++ {
		if f.Advance([]float64{230}) {
			t.Fatalf("tick %d: unexpected traversal at x=%v", i, f.At(0).X)
		}
	}
	if !f.Advance([]float64{230}) {
		t.Fatal("expected traversal once the obstacle is behind the agent")
	}
	if f.Len() != 2 {
		t.Fatalf("obstacles after traversal = %d, want 2", f.Len())
	}
	if f.At(1).X != cfg.SpawnX {
		t.Errorf("spawned obstacle x = %v, want %v", f.At(1).X, cfg.SpawnX)
	}

	for i := 0; i < 5; i++ {
		if f.Advance([]float64{230}) {
			t.Fatal("a passed obstacle must not be traversed twice")
		}
	}
}

func TestFieldNoTraversalWithoutAgents(t *testing.T) {
	cfg := config.Default().Obstacle
	f := NewObstacleField(cfg, fixedGap(0))
	for i := 0; i < 500; i++ {
		if f.Advance(nil) {
			t.Fatal("traversal without live agents")
		}
	}
	if f.Len() != 0 {
		t.Errorf("obstacles = %d, want the first one retired", f.Len())
	}
	if f.Active(230) != nil {
		t.Error("empty field should have no active obstacle")
	}
}

func TestFieldRetiresFromFront(t *testing.T) {
	cfg := config.Default().Obstacle
	cfg.Velocity = 15
	f := NewObstacleField(cfg, rand.New(rand.NewPCG(7, 0)))

	lastX := -1e9
	for i := 0; i < 400; i++ {
		f.Advance([]float64{230})
		for j := 0; j < f.Len(); j++ {
			o := f.At(j)
			if o.OffScreen() {
				t.Fatalf("tick %d: off-screen obstacle %d still on the field", i, j)
			}
			if j > 0 && o.X <= f.At(j-1).X {
				t.Fatalf("tick %d: obstacles out of order", i)
			}
			if o.GapCenter < float64(cfg.GapMin) || o.GapCenter >= float64(cfg.GapMax) {
				t.Fatalf("gap center %v outside [%d, %d)", o.GapCenter, cfg.GapMin, cfg.GapMax)
			}
		}
		if f.Len() > 0 {
			lastX = f.At(f.Len() - 1).X
		}
	}
	if lastX < 0 {
		t.Error("field should keep spawning while an agent keeps passing obstacles")
	}
}

func TestActiveIndexSwitchesAfterTrailingEdge(t *testing.T) {
	cfg := config.Default().Obstacle
	cfg.Velocity = 1
	cfg.FirstX = 231
	f := NewObstacleField(cfg, fixedGap(0))

	f.Advance([]float64{230}) // x=230, not yet behind
	f.Advance([]float64{230}) // x=229, traversal spawns a second obstacle
	if f.Len() != 2 {
		t.Fatalf("obstacles = %d, want 2", f.Len())
	}
	if got := f.ActiveIndex(230); got != 0 {
		t.Errorf("active index with the first still overlapping = %d, want 0", got)
	}

	for f.At(0).X+f.At(0).Width >= 230 {
		f.Advance([]float64{230})
	}
	if got := f.ActiveIndex(230); got != 1 {
		t.Errorf("active index after the trailing edge = %d, want 1", got)
	}
}

func TestObserve(t *testing.T) {
	p := components.ObstacleParams{Gap: 200, PieceWidth: 104, PieceHeight: 640}
	o := components.NewObstacleAt(400, 300, p)
	a := components.NewAgent(0, 230, 350)

	obs := Observe(&a, o)
	want := Observation{Y: 350, GapCenterDist: 50, GapBottomDist: 150}
	if obs != want {
		t.Errorf("Observe = %+v, want %+v", obs, want)
	}
	if arr := obs.Array(); arr != [NumObservations]float64{350, 50, 150} {
		t.Errorf("Array = %v", arr)
	}

	if empty := Observe(&a, nil); empty != (Observation{Y: 350}) {
		t.Errorf("Observe(nil) = %+v", empty)
	}
}
