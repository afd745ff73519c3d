// Package main searches network weights directly with CMA-ES: each candidate
// flies one agent per seed and is scored by its mean fitness.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/neural"
	"github.com/pthm-cable/flap/telemetry"
)

// EvalRecord is one row of optimize_log.csv.
type EvalRecord struct {
	Eval      int     `csv:"eval"`
	Objective float64 `csv:"objective"`
	MeanScore float64 `csv:"mean_score"`
	Best      float64 `csv:"best"`
	ElapsedMs int64   `csv:"elapsed_ms"`
}

// formatDuration formats a duration as 1h02m03s or 2m03s.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxTicks := flag.Int("max-ticks", 0, "Tick cap per episode (0 = optimize.max_ticks)")
	seeds := flag.Int("seeds", 0, "Episodes per evaluation (0 = optimize.seeds)")
	maxEvals := flag.Int("max-evals", 0, "Maximum evaluations (0 = optimize.max_evals)")
	population := flag.Int("population", 0, "CMA-ES population size (0 = optimize.population, then auto)")
	limit := flag.Float64("limit", 8, "Absolute bound on every weight")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	oc := &cfg.Optimize
	if *maxTicks > 0 {
		oc.MaxTicks = *maxTicks
	}
	if *seeds > 0 {
		oc.Seeds = *seeds
	}
	if *maxEvals > 0 {
		oc.MaxEvals = *maxEvals
	}
	if *population > 0 {
		oc.Population = *population
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	evalSeeds := make([]uint64, oc.Seeds)
	for i := range evalSeeds {
		evalSeeds[i] = uint64(i*1000 + 42)
	}

	space := WeightSpace{Limit: *limit}
	evaluator := NewEvaluator(space, cfg, evalSeeds)
	dim := space.Dim()

	popSize := oc.Population
	if popSize == 0 {
		popSize = 4 + int(3*math.Log(float64(dim)))
	}

	logFile, err := os.Create(filepath.Join(*outputDir, "optimize_log.csv"))
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	var (
		evalCount int
		evalErr   error
		start     = time.Now()
	)
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if evalErr != nil {
				return math.Inf(1)
			}
			objective, err := evaluator.Evaluate(ctx, x)
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			evalCount++

			best, _, _ := evaluator.Best()
			elapsed := time.Since(start)
			rec := []EvalRecord{{
				Eval:      evalCount,
				Objective: objective,
				MeanScore: evaluator.LastScore(),
				Best:      best,
				ElapsedMs: elapsed.Milliseconds(),
			}}
			if evalCount == 1 {
				err = gocsv.Marshal(rec, logFile)
			} else {
				err = gocsv.MarshalWithoutHeaders(rec, logFile)
			}
			if err != nil {
				log.Printf("failed to write eval log: %v", err)
			}

			remaining := time.Duration(oc.MaxEvals-evalCount) * (elapsed / time.Duration(evalCount))
			fmt.Printf("Eval %d/%d: fitness=%.2f score=%.1f (best=%.2f) | elapsed: %s, ETA: %s\n",
				evalCount, oc.MaxEvals, -objective, evaluator.LastScore(), -best,
				formatDuration(elapsed), formatDuration(remaining))
			return objective
		},
	}

	settings := &optimize.Settings{FuncEvaluations: oc.MaxEvals}
	method := &optimize.CmaEsChol{
		InitStepSize: oc.InitStepSize,
		Population:   popSize,
	}

	fmt.Printf("Starting CMA-ES over %d weights, population=%d, max_evals=%d\n", dim, popSize, oc.MaxEvals)
	fmt.Printf("Seeds per evaluation: %d, ticks per episode: %d\n", oc.Seeds, oc.MaxTicks)

	if _, err := optimize.Minimize(problem, space.Initial(1), settings, method); err != nil {
		log.Printf("optimization ended: %v", err)
	}
	if evalErr != nil {
		log.Printf("evaluation stopped: %v", evalErr)
	}

	best, bestX, bestScore := evaluator.Best()
	if bestX == nil {
		log.Fatal("no evaluation completed")
	}
	fmt.Printf("\nOptimization complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(start)))
	fmt.Printf("Best fitness: %.2f (mean score %.1f)\n", -best, bestScore)

	nn, err := space.Network(bestX)
	if err != nil {
		log.Fatalf("rebuilding best network: %v", err)
	}
	if err := writeResults(*outputDir, cfg, nn, -best, bestScore); err != nil {
		log.Fatalf("writing results: %v", err)
	}
	fmt.Printf("Results saved to: %s\n", *outputDir)
}

// writeResults saves the effective config and the best network as a
// one-entry hall of fame that the main binary can fly with -hof.
func writeResults(dir string, cfg *config.Config, nn *neural.FFNN, fitness, score float64) error {
	if err := cfg.WriteYAML(filepath.Join(dir, "config.yaml")); err != nil {
		return err
	}
	hof := telemetry.NewHallOfFame(1)
	hof.Consider(telemetry.HallEntry{
		Fitness: fitness,
		Score:   int(math.Round(score)),
		Weights: nn.MarshalWeights(),
	})
	data, err := hof.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "hall_of_fame.json"), data, 0644)
}
