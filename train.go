package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/neural"
	"github.com/pthm-cable/flap/population"
	"github.com/pthm-cable/flap/storage"
	"github.com/pthm-cable/flap/telemetry"
	"github.com/pthm-cable/flap/ui"
)

func runTrain(ctx context.Context, cfg *config.Config, opts options, sink game.RenderSink, logger *slog.Logger) error {
	store, err := storage.NewStore(cfg.Storage.Kind, cfg.Storage.Path)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer store.Close()

	out, err := telemetry.NewOutputManager(opts.outputDir)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	var initial []neural.BrainWeights
	if opts.hof != "" {
		hof, err := telemetry.LoadHallOfFameFromFile(opts.hof)
		if err != nil {
			return err
		}
		for _, e := range hof.Entries() {
			initial = append(initial, e.Weights)
		}
		slog.Info("seeding population", "hall_of_fame", opts.hof, "networks", len(initial))
	}

	dopts := population.Options{
		Seed:      opts.seed,
		Logger:    logger,
		Output:    out,
		Store:     store,
		Sink:      sink,
		Initial:   initial,
		RecordDir: opts.recordDir,
	}

	var d *population.Driver
	if opts.headless {
		d, err = population.New(ctx, cfg, dopts)
		if err != nil {
			return err
		}
		err = d.Run(ctx)
	} else {
		d, err = trainWindow(ctx, cfg, opts, dopts)
	}

	if d != nil {
		if best, ok := d.HallOfFame().Best(); ok {
			slog.Info("training finished",
				"generations", d.Generation(),
				"run_id", d.RunID(),
				"best_fitness", best.Fitness,
				"best_score", best.Score,
				"best_generation", best.Generation,
			)
		}
	}
	return err
}

// trainWindow runs the driver on a worker goroutine while the main goroutine
// draws the latest snapshot. The pacer throttles ticks to the selected speed.
func trainWindow(ctx context.Context, cfg *config.Config, opts options, dopts population.Options) (*population.Driver, error) {
	v, err := openView(cfg, opts, "Flap - training")
	if err != nil {
		return nil, err
	}
	defer v.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	latest := &game.LatestSink{}
	p := newPacer(ctx, cfg.Screen.TicksPerSecond)
	dopts.Sink = game.MultiSink{dopts.Sink, latest, p}
	dopts.Silhouettes = v.silhouettes()

	d, err := population.New(ctx, cfg, dopts)
	if err != nil {
		return nil, err
	}

	var best atomic.Uint64
	errc := make(chan error, 1)
	go func() {
		for n := cfg.Population.Generations; n == 0 || d.Generation() < n; {
			if _, err := d.RunGeneration(ctx); err != nil {
				errc <- err
				return
			}
			best.Store(math.Float64bits(d.HallOfFame().TopFitness()))
		}
		errc <- nil
	}()

	for !rl.WindowShouldClose() {
		select {
		case err := <-errc:
			return d, err
		default:
		}
		v.controls.HandleKeys()
		p.set(v.controls.Paused, v.controls.Speed())

		snap, _ := latest.Latest()
		v.draw(snap, ui.HUDData{
			Mode:       "train",
			Generation: snap.Generation,
			Population: cfg.Population.Size,
			Best:       math.Float64frombits(best.Load()),
		})
	}

	cancel()
	return d, <-errc
}

// pacer is a render sink that holds the simulation back to a target rate.
type pacer struct {
	ctx    context.Context
	tps    int
	paused atomic.Bool
	speed  atomic.Int64
	last   time.Time
}

func newPacer(ctx context.Context, tps int) *pacer {
	p := &pacer{ctx: ctx, tps: max(tps, 1)}
	p.speed.Store(1)
	return p
}

func (p *pacer) set(paused bool, speed int) {
	p.paused.Store(paused)
	p.speed.Store(int64(speed))
}

// Render blocks while paused and sleeps off the rest of the tick interval.
// The fastest speed runs unthrottled.
func (p *pacer) Render(game.Snapshot) {
	for p.paused.Load() && p.ctx.Err() == nil {
		time.Sleep(10 * time.Millisecond)
	}
	speed := p.speed.Load()
	if speed >= int64(ui.Speeds[len(ui.Speeds)-1]) {
		return
	}
	interval := time.Second / time.Duration(int64(p.tps)*speed)
	if d := time.Until(p.last.Add(interval)); d > 0 {
		time.Sleep(d)
	}
	p.last = time.Now()
}
