// Package population evolves agent networks across generations. Each
// generation is one episode: every network flies, fitness is harvested and the
// next generation is bred by elitism, tournament selection and sparse mutation.
package population

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/flap/components"
	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/neural"
	"github.com/pthm-cable/flap/replay"
	"github.com/pthm-cable/flap/storage"
	"github.com/pthm-cable/flap/telemetry"
)

// Options wires a driver to its collaborators. Every field is optional.
type Options struct {
	Seed   uint64
	Logger *slog.Logger

	Output *telemetry.OutputManager
	Store  storage.Store // Must already be initialized
	Sink   game.RenderSink

	// Silhouettes overrides collision footprints for every episode.
	Silhouettes *components.Silhouettes

	// Initial networks, e.g. from a hall of fame. The rest are random.
	Initial []neural.BrainWeights

	// RecordDir receives one decision log per generation when set.
	RecordDir string
}

// Result describes one finished generation.
type Result struct {
	Stats   telemetry.GenerationStats
	Fitness []float64
	BestID  int
}

// Driver runs generations. It is not safe for concurrent use.
type Driver struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger
	rng    *rand.Rand

	nets       []*neural.FFNN
	generation int
	hof        *telemetry.HallOfFame
	perf       *telemetry.PerfCollector
	runID      string
	bestEver   float64
	haveBest   bool
}

// New creates a driver with a fresh population.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Driver{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		rng:    rand.New(rand.NewPCG(opts.Seed, 1)),
		hof:    telemetry.NewHallOfFame(cfg.Population.HallOfFameSize),
		perf:   telemetry.NewPerfCollector(max(cfg.Telemetry.LogEvery, 1)),
	}

	d.nets = make([]*neural.FFNN, cfg.Population.Size)
	for i := range d.nets {
		nn := neural.NewFFNN(d.rng)
		if i < len(opts.Initial) {
			if err := nn.UnmarshalWeights(opts.Initial[i]); err != nil {
				return nil, fmt.Errorf("initial network %d: %w", i, err)
			}
		}
		d.nets[i] = nn
	}

	if opts.RecordDir != "" {
		if err := os.MkdirAll(opts.RecordDir, 0755); err != nil {
			return nil, fmt.Errorf("creating record directory: %w", err)
		}
	}

	if opts.Store != nil {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling config: %w", err)
		}
		run := storage.NewRun(opts.Seed, string(data))
		if err := opts.Store.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("saving run: %w", err)
		}
		d.runID = run.ID
	}

	return d, nil
}

// Generation returns the index of the next generation to run.
func (d *Driver) Generation() int { return d.generation }

// RunID returns the stored run ID, or "" without a store.
func (d *Driver) RunID() string { return d.runID }

// HallOfFame returns the best networks seen so far.
func (d *Driver) HallOfFame() *telemetry.HallOfFame { return d.hof }

// Perf returns generation timings over the logging window.
func (d *Driver) Perf() telemetry.PerfStats { return d.perf.Stats() }

// Population returns the networks of the next generation.
func (d *Driver) Population() []*neural.FFNN { return d.nets }

// Run executes the configured number of generations, or runs until ctx ends
// when the count is zero.
func (d *Driver) Run(ctx context.Context) error {
	for n := d.cfg.Population.Generations; n == 0 || d.generation < n; {
		if _, err := d.RunGeneration(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunGeneration flies the current population once and breeds the next one.
func (d *Driver) RunGeneration(ctx context.Context) (Result, error) {
	start := time.Now()
	gen := d.generation
	seed := d.opts.Seed + uint64(gen)
	d.perf.StartStep()
	d.perf.StartPhase(telemetry.PhaseEpisode)

	ep, err := game.NewEpisode(d.cfg, game.Options{
		Seed:        seed,
		Generation:  gen,
		Silhouettes: d.opts.Silhouettes,
	})
	if err != nil {
		return Result{}, err
	}

	rec, err := d.recorder(gen, seed)
	if err != nil {
		return Result{}, err
	}

	fitness := make([]float64, len(d.nets))
	for i, nn := range d.nets {
		var p game.Policy = neural.NewPolicy(nn, d.cfg.Derived.FieldHeight)
		if rec != nil {
			p = rec.Wrap(i, p)
		}
		if _, err := ep.AddAgent(p, &fitness[i]); err != nil {
			return Result{}, err
		}
	}

	sink := game.MultiSink{d.opts.Sink}
	if rec != nil {
		sink = append(sink, rec)
	}
	limits := game.Limits{MaxTicks: d.cfg.Population.MaxTicks, ScoreCap: d.cfg.Population.ScoreCap}
	runErr := game.Run(ctx, ep, limits, sink)
	if rec != nil {
		if err := rec.Close(); err != nil && runErr == nil {
			runErr = fmt.Errorf("closing decision log: %w", err)
		}
	}
	if runErr != nil {
		return Result{}, runErr
	}

	stats := telemetry.GenerationStats{
		Generation: gen,
		Seed:       seed,
		Ticks:      ep.Ticks(),
		Score:      ep.Score(),
		Survivors:  ep.Alive(),
	}
	stats.FitnessSummary(fitness)

	d.perf.StartPhase(telemetry.PhaseSelect)
	ranked := rank(fitness)
	best := ranked[0]
	bestWeights := d.nets[best].MarshalWeights()
	d.hof.Consider(telemetry.HallEntry{
		Generation: gen,
		AgentID:    best,
		Fitness:    fitness[best],
		Score:      ep.Score(),
		Weights:    bestWeights,
	})

	d.perf.StartPhase(telemetry.PhaseBreed)
	stats.MutationDelta = d.breed(fitness, ranked)
	stats.DurationMs = time.Since(start).Milliseconds()
	d.generation++

	d.perf.StartPhase(telemetry.PhasePersist)
	if err := d.persist(ctx, stats, fitness[best], bestWeights); err != nil {
		return Result{}, err
	}

	if err := d.opts.Output.WriteGeneration(stats); err != nil {
		return Result{}, err
	}
	if err := d.opts.Output.WriteHallOfFame(d.hof); err != nil {
		return Result{}, err
	}
	d.perf.EndStep()

	if every := d.cfg.Telemetry.LogEvery; every > 0 && gen%every == 0 {
		d.logger.Info("generation", "stats", stats, "perf", d.perf.Stats())
	}

	return Result{Stats: stats, Fitness: fitness, BestID: best}, nil
}

func (d *Driver) recorder(gen int, seed uint64) (*replay.Recorder, error) {
	if d.opts.RecordDir == "" {
		return nil, nil
	}
	path := filepath.Join(d.opts.RecordDir, fmt.Sprintf("generation-%04d.jsonl.zst", gen))
	return replay.Create(path, replay.Header{
		Seed:       seed,
		Generation: gen,
		Agents:     len(d.nets),
		Threshold:  d.cfg.Fitness.JumpThreshold,
		Masks:      d.opts.Silhouettes != nil,
	})
}

func (d *Driver) persist(ctx context.Context, stats telemetry.GenerationStats, best float64, w neural.BrainWeights) error {
	store := d.opts.Store
	if store == nil {
		return nil
	}
	if err := store.SaveGeneration(ctx, storage.NewGenerationRecord(d.runID, stats)); err != nil {
		return fmt.Errorf("saving generation %d: %w", stats.Generation, err)
	}
	if d.haveBest && best <= d.bestEver {
		return nil
	}
	d.bestEver, d.haveBest = best, true
	if err := store.SaveChampion(ctx, storage.NewChampion(d.runID, stats.Generation, best, stats.Score, w)); err != nil {
		return fmt.Errorf("saving champion: %w", err)
	}
	return nil
}

// rank returns agent indices ordered by fitness, best first. Ties keep ID order.
func rank(fitness []float64) []int {
	idx := make([]int, len(fitness))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(fitness[b], fitness[a])
	})
	return idx
}

// breed replaces the population with the next generation and returns the mean
// mutation magnitude applied to offspring.
func (d *Driver) breed(fitness []float64, ranked []int) float64 {
	pc := d.cfg.Population
	mc := d.cfg.Mutation

	next := make([]*neural.FFNN, 0, len(d.nets))
	for _, i := range ranked[:pc.Elite] {
		next = append(next, d.nets[i].Clone())
	}

	var total float64
	var children int
	for len(next) < len(d.nets) {
		child := d.nets[d.tournament(fitness, pc.TournamentSize)].Clone()
		total += float64(child.MutateSparse(d.rng,
			float32(mc.Rate), float32(mc.Sigma), float32(mc.BigRate), float32(mc.BigSigma)))
		children++
		next = append(next, child)
	}

	d.nets = next
	if children == 0 {
		return 0
	}
	return total / float64(children)
}

// tournament picks k agents at random and returns the fittest.
func (d *Driver) tournament(fitness []float64, k int) int {
	best := d.rng.IntN(len(fitness))
	for i := 1; i < k; i++ {
		if c := d.rng.IntN(len(fitness)); fitness[c] > fitness[best] {
			best = c
		}
	}
	return best
}
