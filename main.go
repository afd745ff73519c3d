package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/observer"
)

// options collects command-line settings that are not part of the config file.
type options struct {
	mode      string
	headless  bool
	outputDir string
	recordDir string
	replay    string
	hof       string
	assets    string
	seed      uint64

	observer *observer.Server // Set when snapshots are served
}

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	mode := flag.String("mode", "train", "train | play | replay")
	headless := flag.Bool("headless", false, "Run without a window")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = time-based)")
	generations := flag.Int("generations", -1, "Generations to train (0 = until interrupted, -1 = use config)")
	maxTicks := flag.Int("max-ticks", -1, "Stop an episode after N ticks (0 = unlimited, -1 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config and hall of fame")
	storeKind := flag.String("store", "", "Run store backend: memory | sqlite (empty = use config)")
	storePath := flag.String("store-path", "", "SQLite database path")
	observe := flag.String("observe", "", "Serve snapshots on this address, e.g. :8080")
	recordDir := flag.String("record", "", "Write one decision log per generation into this directory")
	replayPath := flag.String("replay", "", "Decision log to replay (mode replay)")
	hofPath := flag.String("hof", "", "Seed the population from a hall_of_fame.json")
	assetsDir := flag.String("assets", "imgs", "Sprite directory (missing = draw shapes)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *generations >= 0 {
		cfg.Population.Generations = *generations
	}
	if *maxTicks >= 0 {
		cfg.Population.MaxTicks = *maxTicks
	}
	if *storeKind != "" {
		cfg.Storage.Kind = *storeKind
	}
	if *storePath != "" {
		cfg.Storage.Path = *storePath
	}
	if *observe != "" {
		cfg.Observer.Addr = *observe
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	opts := options{
		mode:      *mode,
		headless:  *headless,
		outputDir: *outputDir,
		recordDir: *recordDir,
		replay:    *replayPath,
		hof:       *hofPath,
		assets:    *assetsDir,
		seed:      *seed,
	}
	if opts.seed == 0 {
		opts.seed = uint64(time.Now().UnixNano())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// run starts the observer, if configured, alongside the selected mode. The
// mode runs on the calling goroutine because raylib must own the main thread.
func run(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var sink game.RenderSink
	if cfg.Observer.Addr != "" {
		srv := observer.NewServer(cfg.Observer.Addr, cfg.Observer.ClientBuffer, logger)
		g.Go(func() error { return srv.Serve(ctx) })
		sink = srv
		opts.observer = srv
	}

	slog.Info("starting", "mode", opts.mode, "seed", opts.seed, "headless", opts.headless)

	var err error
	switch opts.mode {
	case "train":
		err = runTrain(ctx, cfg, opts, sink, logger)
	case "play":
		err = runPlay(ctx, cfg, opts, sink)
	case "replay":
		err = runReplay(ctx, cfg, opts, sink, logger)
	default:
		err = fmt.Errorf("unknown mode %q", opts.mode)
	}
	cancel()

	if werr := g.Wait(); werr != nil && (err == nil || errors.Is(err, context.Canceled)) {
		err = werr
	}
	return err
}
