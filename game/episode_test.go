package game

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/systems"
)

type fixedGap int

func (g fixedGap) IntN(n int) int { return min(int(g), n-1) }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func newEpisode(t *testing.T, cfg *config.Config, opts Options) *Episode {
	t.Helper()
	ep, err := NewEpisode(cfg, opts)
	if err != nil {
		t.Fatalf("NewEpisode: %v", err)
	}
	return ep
}

func addAgent(t *testing.T, ep *Episode, p Policy, fitness *float64) int {
	t.Helper()
	id, err := ep.AddAgent(p, fitness)
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	return id
}

// hover jumps whenever the agent sinks below y=450.
var hover = PolicyFunc(func(obs systems.Observation) float64 {
	if obs.Y > 450 {
		return 1
	}
	return 0
})

// TestFallBeforeObstacle covers an agent that never jumps and drops out of the
// playfield long before reaching the first obstacle.
func TestFallBeforeObstacle(t *testing.T) {
	cfg := config.Default()
	ep := newEpisode(t, cfg, Options{Gaps: fixedGap(0)})

	var fitness float64
	id := addAgent(t, ep, ConstantPolicy(0), &fitness)

	if err := Run(context.Background(), ep, Limits{MaxTicks: 1000}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if ep.State() != Finished {
		t.Fatalf("state = %v, want finished", ep.State())
	}
	if ep.Ticks() != 23 {
		t.Errorf("eliminated after %d ticks, want 23", ep.Ticks())
	}
	if !approx(fitness, 23*cfg.Fitness.Survival) {
		t.Errorf("fitness = %v, want survival only (%v)", fitness, 23*cfg.Fitness.Survival)
	}
	a, ok := ep.Agent(id)
	if !ok || a.Alive {
		t.Fatalf("agent should be recorded as eliminated, got %+v", a)
	}
	if a.Y != 691 {
		t.Errorf("final y = %v, want 691", a.Y)
	}
	if ep.Score() != 0 {
		t.Errorf("score = %d, want 0", ep.Score())
	}
}

// TestClimbOutOfTop covers an agent that jumps every tick and leaves through
// the top edge before the first obstacle arrives.
func TestClimbOutOfTop(t *testing.T) {
	cfg := config.Default()
	ep := newEpisode(t, cfg, Options{Gaps: fixedGap(0)})

	var fitness float64
	id := addAgent(t, ep, ConstantPolicy(1), &fitness)

	if err := Run(context.Background(), ep, Limits{MaxTicks: 1000}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if ep.State() != Finished {
		t.Fatalf("state = %v, want finished", ep.State())
	}
	// Tick 1 falls 1.5 before the first jump, then every tick climbs 11.
	if ep.Ticks() != 33 {
		t.Errorf("eliminated after %d ticks, want 33", ep.Ticks())
	}
	a, ok := ep.Agent(id)
	if !ok || a.Alive {
		t.Fatalf("agent should be recorded as eliminated, got %+v", a)
	}
	if a.Y >= 0 {
		t.Errorf("final y = %v, want above the top edge", a.Y)
	}
	if !approx(a.Y, -0.5) {
		t.Errorf("final y = %v, want -0.5", a.Y)
	}
	if !approx(fitness, float64(ep.Ticks())*cfg.Fitness.Survival) {
		t.Errorf("fitness = %v, want survival only (%v)", fitness, float64(ep.Ticks())*cfg.Fitness.Survival)
	}
	if ep.Score() != 0 {
		t.Errorf("score = %d, want 0", ep.Score())
	}
}

// TestCollisionThenTraversal runs two agents at one obstacle: one collides on
// tick 12, the other clears it on tick 15.
func TestCollisionThenTraversal(t *testing.T) {
	cfg := config.Default()
	cfg.Obstacle.Velocity = 15
	cfg.Obstacle.FirstX = 450
	ep := newEpisode(t, cfg, Options{Gaps: fixedGap(310)}) // gap [350, 550)

	var fallFit, hoverFit float64
	faller := addAgent(t, ep, ConstantPolicy(0), &fallFit)
	addAgent(t, ep, hover, &hoverFit)

	for tick := 1; tick <= 20; tick++ {
		ep.Tick()

		switch {
		case tick < 12:
			if ep.Alive() != 2 {
				t.Fatalf("tick %d: alive = %d, want 2", tick, ep.Alive())
			}
		case tick == 12:
			if ep.Alive() != 1 {
				t.Fatalf("tick 12: alive = %d, want 1", ep.Alive())
			}
			if !approx(fallFit, 12*cfg.Fitness.Survival-cfg.Fitness.CollisionPenalty) {
				t.Errorf("tick 12: collided fitness = %v", fallFit)
			}
			if a, _ := ep.Agent(faller); a.Alive || a.Y != 515 {
				t.Errorf("tick 12: collided agent = %+v", a)
			}
		}

		if tick < 15 && ep.Score() != 0 {
			t.Fatalf("tick %d: score = %d before traversal", tick, ep.Score())
		}
		if tick == 14 && !approx(hoverFit, 14*cfg.Fitness.Survival) {
			t.Errorf("tick 14: survivor fitness = %v", hoverFit)
		}
		if tick == 15 {
			if ep.Score() != 1 {
				t.Errorf("tick 15: score = %d, want 1", ep.Score())
			}
			if !approx(hoverFit, 15*cfg.Fitness.Survival+cfg.Fitness.TraversalBonus) {
				t.Errorf("tick 15: survivor fitness = %v, want %v", hoverFit,
					15*cfg.Fitness.Survival+cfg.Fitness.TraversalBonus)
			}
		}
	}

	if ep.Alive() != 1 || ep.State() != Running {
		t.Errorf("survivor should still be flying: alive=%d state=%v", ep.Alive(), ep.State())
	}
	if !approx(fallFit, 12*cfg.Fitness.Survival-cfg.Fitness.CollisionPenalty) {
		t.Errorf("eliminated agent fitness changed after elimination: %v", fallFit)
	}
}

func TestSimultaneousCollisions(t *testing.T) {
	cfg := config.Default()
	cfg.Obstacle.Velocity = 15
	cfg.Obstacle.FirstX = 450
	ep := newEpisode(t, cfg, Options{Gaps: fixedGap(310)})

	fits := make([]float64, 4)
	for i := range fits {
		addAgent(t, ep, ConstantPolicy(0), &fits[i])
	}
	for ep.State() == Running {
		ep.Tick()
	}

	if ep.Ticks() != 12 {
		t.Errorf("finished after %d ticks, want 12", ep.Ticks())
	}
	for i, f := range fits {
		if !approx(f, 12*cfg.Fitness.Survival-cfg.Fitness.CollisionPenalty) {
			t.Errorf("agent %d fitness = %v, want one penalty", i, f)
		}
	}
}

func TestNonFiniteDecisionNeverJumps(t *testing.T) {
	cfg := config.Default()
	decisions := []float64{math.NaN(), math.Inf(1), math.Inf(-1)}

	for _, d := range decisions {
		ep := newEpisode(t, cfg, Options{Gaps: fixedGap(0)})
		addAgent(t, ep, ConstantPolicy(d), nil)
		for ep.State() == Running {
			ep.Tick()
		}
		if ep.Ticks() != 23 {
			t.Errorf("decision %v: eliminated after %d ticks, want 23 (free fall)", d, ep.Ticks())
		}
	}
}

func TestNewEpisodeRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Obstacle.Gap = -1
	if _, err := NewEpisode(cfg, Options{}); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("NewEpisode error = %v, want ErrInvalid", err)
	}
	if _, err := NewEpisode(nil, Options{}); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("NewEpisode(nil) error = %v, want ErrInvalid", err)
	}
}

func TestNewEpisodeIgnoresRunSections(t *testing.T) {
	cfg := config.Default()
	cfg.Observer.ClientBuffer = 0
	cfg.Population.Size = 0
	cfg.Storage.Kind = "redis"
	if _, err := NewEpisode(cfg, Options{}); err != nil {
		t.Errorf("NewEpisode rejected settings it does not read: %v", err)
	}
}

func TestAddAgentAfterStart(t *testing.T) {
	ep := newEpisode(t, config.Default(), Options{})
	addAgent(t, ep, ConstantPolicy(0), nil)
	ep.Tick()

	if _, err := ep.AddAgent(ConstantPolicy(0), nil); !errors.Is(err, ErrEpisodeStarted) {
		t.Errorf("AddAgent after tick error = %v, want ErrEpisodeStarted", err)
	}
	if _, err := newEpisode(t, config.Default(), Options{}).AddAgent(nil, nil); err == nil {
		t.Error("nil policy should be rejected")
	}
}

func TestEmptyEpisodeFinishes(t *testing.T) {
	ep := newEpisode(t, config.Default(), Options{})
	ep.Tick()
	if ep.State() != Finished {
		t.Errorf("state = %v, want finished", ep.State())
	}
}

// scripted replays a pre-recorded decision per tick.
func scripted(decisions []bool) Policy {
	i := 0
	return PolicyFunc(func(systems.Observation) float64 {
		d := i < len(decisions) && decisions[i]
		i++
		if d {
			return 1
		}
		return 0
	})
}

func TestDeterminism(t *testing.T) {
	const agents, ticks = 8, 600
	rng := rand.New(rand.NewPCG(99, 0))
	script := make([][]bool, agents)
	for i := range script {
		script[i] = make([]bool, ticks)
		for j := range script[i] {
			script[i][j] = rng.IntN(9) == 0
		}
	}

	build := func() (*Episode, []float64) {
		ep := newEpisode(t, config.Default(), Options{Seed: 42})
		fits := make([]float64, agents)
		for i := range script {
			addAgent(t, ep, scripted(script[i]), &fits[i])
		}
		return ep, fits
	}

	a, fitsA := build()
	b, fitsB := build()
	for i := 0; i < ticks; i++ {
		a.Tick()
		b.Tick()
		if !reflect.DeepEqual(a.Snapshot(), b.Snapshot()) {
			t.Fatalf("tick %d: snapshots diverged", i+1)
		}
		if !reflect.DeepEqual(fitsA, fitsB) {
			t.Fatalf("tick %d: fitness diverged: %v vs %v", i+1, fitsA, fitsB)
		}
	}
	if !reflect.DeepEqual(a.Agents(), b.Agents()) {
		t.Error("final agent records differ")
	}
}

func TestTerminalStateIsStable(t *testing.T) {
	ep := newEpisode(t, config.Default(), Options{Seed: 3})
	fits := make([]float64, 3)
	for i := range fits {
		addAgent(t, ep, ConstantPolicy(0), &fits[i])
	}
	for ep.State() == Running {
		ep.Tick()
	}

	before := ep.Snapshot()
	fitsBefore := append([]float64(nil), fits...)
	for i := 0; i < 10; i++ {
		ep.Tick()
	}

	if !reflect.DeepEqual(ep.Snapshot(), before) {
		t.Error("snapshot changed after finish")
	}
	if !reflect.DeepEqual(fits, fitsBefore) {
		t.Error("fitness changed after finish")
	}
	if ep.Alive() != 0 {
		t.Errorf("alive = %d after finish", ep.Alive())
	}
}

func TestScoreMonotonic(t *testing.T) {
	cfg := config.Default()
	ep := newEpisode(t, cfg, Options{Gaps: fixedGap(290)}) // gap [330, 530)
	var fitness float64
	addAgent(t, ep, hover, &fitness)

	prev := 0
	for i := 0; i < 2000; i++ {
		ep.Tick()
		s := ep.Score()
		if s < prev || s > prev+1 {
			t.Fatalf("tick %d: score went from %d to %d", i+1, prev, s)
		}
		prev = s
	}

	if ep.Alive() != 1 {
		t.Fatal("hovering agent should survive a field of identical gaps")
	}
	if prev < 10 {
		t.Errorf("score = %d, want at least 10 traversals", prev)
	}
	want := 2000*cfg.Fitness.Survival + float64(prev)*cfg.Fitness.TraversalBonus
	if math.Abs(fitness-want) > 1e-6 {
		t.Errorf("fitness = %v, want %v", fitness, want)
	}
}

func TestRunHonorsLimitsAndContext(t *testing.T) {
	cfg := config.Default()
	ep := newEpisode(t, cfg, Options{Gaps: fixedGap(290)})
	addAgent(t, ep, hover, nil)

	var frames int
	sink := SinkFunc(func(Snapshot) { frames++ })
	if err := Run(context.Background(), ep, Limits{MaxTicks: 50}, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ep.Ticks() != 50 || frames != 50 {
		t.Errorf("ticks = %d, frames = %d, want 50", ep.Ticks(), frames)
	}

	if err := Run(context.Background(), ep, Limits{ScoreCap: 1}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ep.Score() != 2 {
		t.Errorf("score = %d, want run to stop once score exceeds the cap", ep.Score())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, ep, Limits{}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Run with cancelled context = %v, want context.Canceled", err)
	}
}

func TestSnapshotCopiesState(t *testing.T) {
	ep := newEpisode(t, config.Default(), Options{Generation: 4, Seed: 1})
	addAgent(t, ep, ConstantPolicy(0), nil)
	ep.Tick()

	s := ep.Snapshot()
	if s.Generation != 4 || s.Tick != 1 || s.Alive != 1 {
		t.Errorf("snapshot header = %+v", s)
	}
	if len(s.Agents) != 1 || len(s.Obstacles) != 1 {
		t.Fatalf("snapshot has %d agents, %d obstacles", len(s.Agents), len(s.Obstacles))
	}
	s.Agents[0].Y = -1
	if a, _ := ep.Agent(0); a.Y == -1 {
		t.Error("mutating the snapshot changed episode state")
	}
}

// TestSnapshotReportsWingFrame follows a climbing agent through one wing
// cycle. The frame advances after collisions, once per tick.
func TestSnapshotReportsWingFrame(t *testing.T) {
	ep := newEpisode(t, config.Default(), Options{Gaps: fixedGap(0)})
	id := addAgent(t, ep, ConstantPolicy(1), nil)

	want := map[int]int{1: 0, 4: 0, 5: 1, 10: 2, 15: 1}
	for tick := 1; tick <= 15; tick++ {
		ep.Tick()
		w, ok := want[tick]
		if !ok {
			continue
		}
		if got := ep.Snapshot().Agents[0].Frame; got != w {
			t.Errorf("tick %d: snapshot frame = %d, want %d", tick, got, w)
		}
		if a, _ := ep.Agent(id); a.Frame != w {
			t.Errorf("tick %d: agent frame = %d, want %d", tick, a.Frame, w)
		}
	}
}

func BenchmarkTick(b *testing.B) {
	cfg := config.Default()
	for i := 0; i < b.N; i++ {
		ep, _ := NewEpisode(cfg, Options{Gaps: fixedGap(290)})
		for j := 0; j < 50; j++ {
			ep.AddAgent(hover, nil)
		}
		for j := 0; j < 200; j++ {
			ep.Tick()
		}
	}
}
