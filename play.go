package main

import (
	"context"
	"errors"
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flap/components"
	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/replay"
	"github.com/pthm-cable/flap/ui"
)

// runPlay flies one agent from the keyboard. R restarts after a crash.
func runPlay(ctx context.Context, cfg *config.Config, opts options, sink game.RenderSink) error {
	if opts.headless {
		return errors.New("play mode needs a window")
	}
	v, err := openView(cfg, opts, "Flap")
	if err != nil {
		return err
	}
	defer v.close()
	v.legend = "[Space] flap  [R] restart  [P] pause  [-/=] speed"

	kb := &ui.KeyboardPolicy{}
	newEpisode := func(round int) (*game.Episode, error) {
		ep, err := game.NewEpisode(cfg, game.Options{Seed: opts.seed + uint64(round), Silhouettes: v.silhouettes()})
		if err != nil {
			return nil, err
		}
		if _, err := ep.AddAgent(kb, nil); err != nil {
			return nil, err
		}
		return ep, nil
	}
	limits := game.Limits{MaxTicks: cfg.Population.MaxTicks}
	return episodeLoop(ctx, v, sink, "play", limits, newEpisode, kb.Poll)
}

// runReplay flies every agent of a decision log. Headless replays log the
// outcome; windowed replays can be restarted with R.
func runReplay(ctx context.Context, cfg *config.Config, opts options, sink game.RenderSink, logger *slog.Logger) error {
	if opts.replay == "" {
		return errors.New("replay mode needs -replay")
	}
	script, err := replay.LoadFile(opts.replay)
	if err != nil {
		return err
	}
	h := script.Header

	cfg = cfg.Clone()
	cfg.Fitness.JumpThreshold = h.Threshold
	limits := game.Limits{MaxTicks: script.Ticks}

	build := func(sil *components.Silhouettes) (*game.Episode, []float64, error) {
		ep, err := game.NewEpisode(cfg, game.Options{Seed: h.Seed, Generation: h.Generation, Silhouettes: sil})
		if err != nil {
			return nil, nil, err
		}
		fitness := make([]float64, h.Agents)
		for i := range fitness {
			if _, err := ep.AddAgent(script.Policy(i), &fitness[i]); err != nil {
				return nil, nil, err
			}
		}
		return ep, fitness, nil
	}

	if opts.headless {
		if h.Masks {
			return errors.New("log was recorded with sprite masks; replay it in a window")
		}
		ep, fitness, err := build(nil)
		if err != nil {
			return err
		}
		if err := game.Run(ctx, ep, limits, sink); err != nil {
			return err
		}
		logger.Info("replay finished",
			"seed", h.Seed,
			"generation", h.Generation,
			"ticks", ep.Ticks(),
			"score", ep.Score(),
			"alive", ep.Alive(),
			"fitness", fitness,
		)
		return nil
	}

	v, err := openView(cfg, opts, "Flap - replay")
	if err != nil {
		return err
	}
	defer v.close()
	v.legend = "[R] restart  [P] pause  [-/=] speed"

	sil := v.silhouettes()
	if h.Masks != (sil != nil) {
		return errors.New("replay needs the same collision footprints it was recorded with; check -assets")
	}
	newEpisode := func(int) (*game.Episode, error) {
		ep, _, err := build(sil)
		return ep, err
	}
	return episodeLoop(ctx, v, sink, "replay", limits, newEpisode, nil)
}

// episodeLoop ticks episodes at the configured rate times the selected speed
// until the window closes. poll runs once per frame before ticking.
func episodeLoop(ctx context.Context, v *view, sink game.RenderSink, mode string, limits game.Limits,
	newEpisode func(round int) (*game.Episode, error), poll func()) error {
	round := 0
	ep, err := newEpisode(round)
	if err != nil {
		return err
	}
	step := game.NewFixedStep(v.cfg.Screen.TicksPerSecond)

	for !rl.WindowShouldClose() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if poll != nil {
			poll()
		}
		v.controls.HandleKeys()

		if limits.Done(ep) && rl.IsKeyPressed(rl.KeyR) {
			round++
			if ep, err = newEpisode(round); err != nil {
				return err
			}
		}

		if !v.controls.Paused {
			speed := v.controls.Speed()
			step.SetTPS(v.cfg.Screen.TicksPerSecond * speed)
			for n := step.Steps(speed * 2); n > 0 && !limits.Done(ep); n-- {
				ep.Tick()
				if sink != nil {
					sink.Render(ep.Snapshot())
				}
			}
		}

		v.draw(ep.Snapshot(), ui.HUDData{
			Mode:       mode,
			Generation: ep.Generation(),
			Population: ep.Size(),
			Finished:   limits.Done(ep),
		})
	}
	return nil
}
