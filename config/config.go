// Package config provides configuration loading and validation for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all simulation configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Agent      AgentConfig      `yaml:"agent"`
	Obstacle   ObstacleConfig   `yaml:"obstacle"`
	Ground     GroundConfig     `yaml:"ground"`
	Fitness    FitnessConfig    `yaml:"fitness"`
	Population PopulationConfig `yaml:"population"`
	Mutation   MutationConfig   `yaml:"mutation"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Storage    StorageConfig    `yaml:"storage"`
	Observer   ObserverConfig   `yaml:"observer"`
	Optimize   OptimizeConfig   `yaml:"optimize"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds playfield and display settings.
// The playfield is the simulated area; the window is sized to match it.
type ScreenConfig struct {
	Width          int `yaml:"width"`
	Height         int `yaml:"height"`
	TargetFPS      int `yaml:"target_fps"`
	TicksPerSecond int `yaml:"ticks_per_second"` // Fixed simulation cadence for play/replay
}

// AgentConfig holds agent spawn and kinematic parameters.
type AgentConfig struct {
	StartX           float64 `yaml:"start_x"`
	StartY           float64 `yaml:"start_y"`
	Width            float64 `yaml:"width"`             // Silhouette width in pixels
	Height           float64 `yaml:"height"`            // Silhouette height in pixels
	JumpVelocity     float64 `yaml:"jump_velocity"`     // Negative = upward
	Gravity          float64 `yaml:"gravity"`           // d = v*t + 0.5*gravity*t^2
	TerminalVelocity float64 `yaml:"terminal_velocity"` // Max downward displacement per tick
	UpwardBoost      float64 `yaml:"upward_boost"`      // Extra lift applied while moving up
	MaxTilt          float64 `yaml:"max_tilt"`          // Degrees, nose up
	MinTilt          float64 `yaml:"min_tilt"`          // Degrees, nose down floor
	TiltDecay        float64 `yaml:"tilt_decay"`        // Degrees per tick while falling
	TiltHoldMargin   float64 `yaml:"tilt_hold_margin"`  // Hold max tilt while above jump origin + margin
}

// ObstacleConfig holds obstacle geometry and spawning parameters.
type ObstacleConfig struct {
	Gap         float64 `yaml:"gap"`      // Vertical space between pieces
	Velocity    float64 `yaml:"velocity"` // Horizontal scroll per tick
	GapMin      int     `yaml:"gap_min"`  // Gap line drawn from [gap_min, gap_max)
	GapMax      int     `yaml:"gap_max"`
	PieceWidth  float64 `yaml:"piece_width"`
	PieceHeight float64 `yaml:"piece_height"`
	FirstX      float64 `yaml:"first_x"` // X of the obstacle present at episode start
	SpawnX      float64 `yaml:"spawn_x"` // X of every obstacle spawned after a traversal
}

// GroundConfig holds scrolling ground parameters.
type GroundConfig struct {
	Y            float64 `yaml:"y"` // Ground line; agents touching it are out of bounds
	Velocity     float64 `yaml:"velocity"`
	SegmentWidth float64 `yaml:"segment_width"`
}

// FitnessConfig holds per-tick fitness shaping.
type FitnessConfig struct {
	Survival         float64 `yaml:"survival"`          // Added to every live agent each tick
	CollisionPenalty float64 `yaml:"collision_penalty"` // Subtracted on obstacle collision
	TraversalBonus   float64 `yaml:"traversal_bonus"`   // Added to every survivor per traversal
	JumpThreshold    float64 `yaml:"jump_threshold"`    // Decisions above this jump
}

// PopulationConfig holds generational search parameters.
type PopulationConfig struct {
	Size           int `yaml:"size"`
	Generations    int `yaml:"generations"`
	Elite          int `yaml:"elite"`           // Top genomes copied unchanged
	TournamentSize int `yaml:"tournament_size"` // Parent selection pressure
	ScoreCap       int `yaml:"score_cap"`       // Stop a generation once score exceeds this (0 = none)
	MaxTicks       int `yaml:"max_ticks"`       // Stop a generation after N ticks (0 = none)
	HallOfFameSize int `yaml:"hall_of_fame_size"`
}

// MutationConfig holds sparse mutation parameters.
type MutationConfig struct {
	Rate     float64 `yaml:"rate"`
	Sigma    float64 `yaml:"sigma"`
	BigRate  float64 `yaml:"big_rate"`
	BigSigma float64 `yaml:"big_sigma"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	LogEvery int `yaml:"log_every"` // Log generation stats every N generations
}

// StorageConfig selects the run store backend.
type StorageConfig struct {
	Kind string `yaml:"kind"` // memory | sqlite
	Path string `yaml:"path"`
}

// ObserverConfig holds live spectator stream settings.
type ObserverConfig struct {
	Addr         string `yaml:"addr"` // Empty disables the server
	ClientBuffer int    `yaml:"client_buffer"`
}

// OptimizeConfig holds CMA-ES weight search parameters.
type OptimizeConfig struct {
	Seeds        int     `yaml:"seeds"`
	MaxEvals     int     `yaml:"max_evals"`
	Population   int     `yaml:"population"` // 0 = auto
	InitStepSize float64 `yaml:"init_step_size"`
	MaxTicks     int     `yaml:"max_ticks"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	TickInterval time.Duration // 1s / TicksPerSecond
	FieldWidth   float64       // Screen.Width as float64
	FieldHeight  float64       // Screen.Height as float64
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Clone returns a deep copy; the config has no reference fields so a value copy suffices.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.TickInterval = time.Second / time.Duration(c.Screen.TicksPerSecond)
	c.Derived.FieldWidth = float64(c.Screen.Width)
	c.Derived.FieldHeight = float64(c.Screen.Height)
}

// checker collects ErrInvalid-wrapped problems.
type checker []error

func (c *checker) check(ok bool, format string, args ...any) {
	if !ok {
		*c = append(*c, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
}

// Validate rejects configurations a run cannot start with: the simulation
// sections plus population, mutation, storage, observer and optimize.
// Values are never clamped; every problem found is reported.
func (c *Config) Validate() error {
	var errs checker
	c.simulation(&errs)
	check := errs.check

	p := c.Population
	check(p.Size > 0, "population.size must be positive, got %d", p.Size)
	check(p.Generations >= 0, "population.generations must not be negative, got %d", p.Generations)
	check(p.Elite >= 0 && p.Elite <= p.Size, "population.elite %d outside [0, %d]", p.Elite, p.Size)
	check(p.TournamentSize > 0, "population.tournament_size must be positive, got %d", p.TournamentSize)
	check(p.ScoreCap >= 0 && p.MaxTicks >= 0, "population caps must not be negative")
	check(p.HallOfFameSize >= 0, "population.hall_of_fame_size must not be negative")

	m := c.Mutation
	check(m.Rate >= 0 && m.Rate <= 1 && m.BigRate >= 0 && m.BigRate <= 1, "mutation rates must be within [0, 1]")
	check(m.Sigma >= 0 && m.BigSigma >= 0, "mutation sigmas must not be negative")

	switch c.Storage.Kind {
	case "", "memory":
	case "sqlite":
		check(c.Storage.Path != "", "storage.path is required for sqlite")
	default:
		check(false, "unsupported storage.kind %q", c.Storage.Kind)
	}

	check(c.Observer.ClientBuffer > 0, "observer.client_buffer must be positive")
	check(c.Optimize.Seeds > 0 && c.Optimize.MaxEvals > 0, "optimize seeds and max_evals must be positive")

	return errors.Join(errs...)
}

// ValidateSimulation checks only the sections an episode reads: screen,
// agent, obstacle, ground and fitness.
func (c *Config) ValidateSimulation() error {
	var errs checker
	c.simulation(&errs)
	return errors.Join(errs...)
}

func (c *Config) simulation(errs *checker) {
	check := errs.check

	check(c.Screen.Width > 0, "screen.width must be positive, got %d", c.Screen.Width)
	check(c.Screen.Height > 0, "screen.height must be positive, got %d", c.Screen.Height)
	check(c.Screen.TicksPerSecond > 0, "screen.ticks_per_second must be positive, got %d", c.Screen.TicksPerSecond)

	a := c.Agent
	check(finite(a.StartX, a.StartY, a.JumpVelocity, a.Gravity, a.TerminalVelocity,
		a.UpwardBoost, a.MaxTilt, a.MinTilt, a.TiltDecay, a.TiltHoldMargin), "agent values must be finite")
	check(a.Width > 0 && a.Height > 0, "agent size must be positive, got %vx%v", a.Width, a.Height)
	check(a.StartX >= 0 && a.StartX < float64(c.Screen.Width), "agent.start_x %v outside playfield", a.StartX)
	check(a.StartY >= 0 && a.StartY+a.Height < c.Ground.Y, "agent.start_y %v must sit above the ground line", a.StartY)
	check(a.TerminalVelocity > 0, "agent.terminal_velocity must be positive, got %v", a.TerminalVelocity)
	check(a.UpwardBoost >= 0, "agent.upward_boost must not be negative, got %v", a.UpwardBoost)
	check(a.MinTilt <= a.MaxTilt, "agent.min_tilt %v exceeds max_tilt %v", a.MinTilt, a.MaxTilt)
	check(a.TiltDecay >= 0, "agent.tilt_decay must not be negative, got %v", a.TiltDecay)

	o := c.Obstacle
	check(finite(o.Gap, o.Velocity, o.PieceWidth, o.PieceHeight, o.FirstX, o.SpawnX), "obstacle values must be finite")
	check(o.Gap > 0, "obstacle.gap must be positive, got %v", o.Gap)
	check(o.Velocity > 0, "obstacle.velocity must be positive, got %v", o.Velocity)
	check(o.GapMin >= 0 && o.GapMax > o.GapMin, "obstacle gap range [%d, %d) is empty", o.GapMin, o.GapMax)
	check(o.PieceWidth > 0 && o.PieceHeight > 0, "obstacle piece size must be positive, got %vx%v", o.PieceWidth, o.PieceHeight)

	g := c.Ground
	check(finite(g.Y, g.Velocity, g.SegmentWidth), "ground values must be finite")
	check(g.Y > 0 && g.Y <= float64(c.Screen.Height), "ground.y %v outside playfield", g.Y)
	check(g.Velocity > 0, "ground.velocity must be positive, got %v", g.Velocity)
	check(g.SegmentWidth >= float64(c.Screen.Width)+g.Velocity,
		"ground.segment_width %v cannot tile a %d wide field", g.SegmentWidth, c.Screen.Width)

	f := c.Fitness
	check(finite(f.Survival, f.CollisionPenalty, f.TraversalBonus, f.JumpThreshold), "fitness values must be finite")
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
