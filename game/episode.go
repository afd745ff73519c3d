// Package game runs episodes: one scrolling world, one obstacle field and a
// cohort of agents, each driven by its own policy.
package game

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/flap/components"
	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/systems"
)

// ErrEpisodeStarted is returned when agents are added after the first tick.
var ErrEpisodeStarted = errors.New("episode already started")

// State is the episode lifecycle state.
type State uint8

const (
	Running State = iota
	Finished
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "running":
		*s = Running
	case "finished":
		*s = Finished
	default:
		return fmt.Errorf("unknown episode state %q", b)
	}
	return nil
}

// Options configures a new episode.
type Options struct {
	Seed       uint64
	Generation int

	// Silhouettes overrides the bounding-box collision footprints, e.g. with
	// sprite masks. Nil uses boxes sized from the config.
	Silhouettes *components.Silhouettes

	// Gaps overrides the gap-line source. Nil uses a PCG seeded with Seed.
	Gaps components.GapSource
}

// Episode advances the simulation one tick at a time. It is not safe for
// concurrent use; sinks receive copies.
type Episode struct {
	cfg  *config.Config
	kin  components.Kinematics
	sils components.Silhouettes
	gen  int

	world      *ecs.World
	agentMap   *ecs.Map2[components.Agent, Controller]
	entities   []ecs.Entity       // by agent ID
	final      []components.Agent // state at elimination, by agent ID
	order      []ecs.Entity       // live agents in creation order
	spare      []ecs.Entity
	liveXs     []float64
	eliminated []ecs.Entity

	field  *systems.ObstacleField
	ground components.Ground

	state State
	score int
	tick  int
}

// NewEpisode validates the simulation sections of cfg and builds an episode
// with no agents.
func NewEpisode(cfg *config.Config, opts Options) (*Episode, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalid)
	}
	if err := cfg.ValidateSimulation(); err != nil {
		return nil, err
	}

	gaps := opts.Gaps
	if gaps == nil {
		gaps = rand.New(rand.NewPCG(opts.Seed, 0))
	}

	sils := components.BoxSilhouettes(cfg.Agent.Width, cfg.Agent.Height,
		cfg.Obstacle.PieceWidth, cfg.Obstacle.PieceHeight)
	if opts.Silhouettes != nil {
		sils = *opts.Silhouettes
	}

	world := ecs.NewWorld()
	return &Episode{
		cfg:      cfg,
		kin:      components.KinematicsFrom(cfg.Agent),
		sils:     sils,
		gen:      opts.Generation,
		world:    world,
		agentMap: ecs.NewMap2[components.Agent, Controller](world),
		field:    systems.NewObstacleField(cfg.Obstacle, gaps),
		ground:   components.NewGround(cfg.Ground.Y, cfg.Ground.SegmentWidth),
	}, nil
}

// AddAgent spawns an agent at the configured start position and returns its ID.
// fitness may be nil when the caller does not track it.
func (e *Episode) AddAgent(policy Policy, fitness *float64) (int, error) {
	if e.tick > 0 || e.state == Finished {
		return 0, ErrEpisodeStarted
	}
	if policy == nil {
		return 0, errors.New("agent policy is nil")
	}
	if fitness == nil {
		fitness = new(float64)
	}

	id := len(e.entities)
	agent := components.NewAgent(id, e.cfg.Agent.StartX, e.cfg.Agent.StartY)
	ctrl := Controller{Policy: policy, Fitness: fitness}
	entity := e.agentMap.NewEntity(&agent, &ctrl)

	e.entities = append(e.entities, entity)
	e.final = append(e.final, components.Agent{})
	e.order = append(e.order, entity)
	return id, nil
}

// Tick advances the episode by one step. Ticks after Finished are no-ops.
// An episode that starts with no agents finishes on its first tick.
func (e *Episode) Tick() {
	if e.state == Finished {
		return
	}
	e.tick++

	fit := e.cfg.Fitness
	refX := 0.0
	if len(e.order) > 0 {
		a, _ := e.agentMap.Get(e.order[0])
		refX = a.X
	}
	active := e.field.Active(refX)

	// Move, reward survival, consult policies.
	for _, entity := range e.order {
		a, ctrl := e.agentMap.Get(entity)
		a.Integrate(e.kin)
		*ctrl.Fitness += fit.Survival

		d := ctrl.Policy.Decide(systems.Observe(a, active))
		if !math.IsNaN(d) && !math.IsInf(d, 0) && d > fit.JumpThreshold {
			a.Jump(e.kin)
		}
	}

	// Scroll obstacles, then collide.
	e.liveXs = e.liveXs[:0]
	for _, entity := range e.order {
		a, _ := e.agentMap.Get(entity)
		e.liveXs = append(e.liveXs, a.X)
	}
	traversed := e.field.Advance(e.liveXs)

	e.sweep(func(a *components.Agent, ctrl *Controller) bool {
		for _, o := range e.field.Obstacles() {
			if o.CollidesWith(a, e.sils) {
				*ctrl.Fitness -= fit.CollisionPenalty
				return true
			}
		}
		return false
	})

	if traversed {
		e.score++
		for _, entity := range e.order {
			_, ctrl := e.agentMap.Get(entity)
			*ctrl.Fitness += fit.TraversalBonus
		}
	}

	// Leaving the playfield is not penalized beyond lost survival ticks.
	e.sweep(func(a *components.Agent, _ *Controller) bool {
		return a.Y+e.cfg.Agent.Height >= e.ground.Y || a.Y < 0
	})

	e.ground.Advance(e.cfg.Ground.Velocity)

	// The frame shown this tick is the footprint tested on the next.
	for _, entity := range e.order {
		a, _ := e.agentMap.Get(entity)
		a.Animate()
	}

	if len(e.order) == 0 {
		e.state = Finished
	}
}

// sweep eliminates every live agent for which dead returns true. Survivors are
// collected first and removed afterwards so no agent is skipped or visited twice.
func (e *Episode) sweep(dead func(a *components.Agent, ctrl *Controller) bool) {
	e.spare = e.spare[:0]
	e.eliminated = e.eliminated[:0]
	for _, entity := range e.order {
		a, ctrl := e.agentMap.Get(entity)
		if dead(a, ctrl) {
			a.Alive = false
			e.final[a.ID] = *a
			e.eliminated = append(e.eliminated, entity)
			continue
		}
		e.spare = append(e.spare, entity)
	}
	e.order, e.spare = e.spare, e.order

	for _, entity := range e.eliminated {
		e.world.RemoveEntity(entity)
	}
}

// State returns the lifecycle state.
func (e *Episode) State() State { return e.state }

// Score returns the number of obstacles traversed by the cohort.
func (e *Episode) Score() int { return e.score }

// Ticks returns the number of ticks run.
func (e *Episode) Ticks() int { return e.tick }

// Generation returns the generation label passed at construction.
func (e *Episode) Generation() int { return e.gen }

// Alive returns the number of live agents.
func (e *Episode) Alive() int { return len(e.order) }

// Size returns the number of agents ever added.
func (e *Episode) Size() int { return len(e.entities) }

// Field exposes the obstacle field for read-only inspection.
func (e *Episode) Field() *systems.ObstacleField { return e.field }

// Ground returns the ground state.
func (e *Episode) Ground() components.Ground { return e.ground }

// Agent returns a copy of the agent with the given ID, live or eliminated.
func (e *Episode) Agent(id int) (components.Agent, bool) {
	if id < 0 || id >= len(e.entities) {
		return components.Agent{}, false
	}
	if entity := e.entities[id]; e.world.Alive(entity) {
		a, _ := e.agentMap.Get(entity)
		return *a, true
	}
	return e.final[id], true
}

// Agents returns copies of all agents in ID order.
func (e *Episode) Agents() []components.Agent {
	out := make([]components.Agent, len(e.entities))
	for id := range e.entities {
		out[id], _ = e.Agent(id)
	}
	return out
}

// Snapshot copies the render-facing state.
func (e *Episode) Snapshot() Snapshot {
	s := Snapshot{
		Tick:       e.tick,
		Generation: e.gen,
		Score:      e.score,
		State:      e.state,
		Alive:      len(e.order),
		Agents:     make([]AgentView, 0, len(e.order)),
		Obstacles:  make([]ObstacleView, 0, e.field.Len()),
		Ground:     GroundView{Y: e.ground.Y, X1: e.ground.X1, X2: e.ground.X2},
	}
	for _, entity := range e.order {
		a, _ := e.agentMap.Get(entity)
		s.Agents = append(s.Agents, AgentView{ID: a.ID, X: a.X, Y: a.Y, Tilt: a.Tilt, Ticks: a.Ticks, Frame: a.Frame})
	}
	for _, o := range e.field.Obstacles() {
		s.Obstacles = append(s.Obstacles, ObstacleView{
			X:         o.X,
			Top:       o.Top,
			Bottom:    o.Bottom,
			GapCenter: o.GapCenter,
			Passed:    o.Passed,
		})
	}
	return s
}
