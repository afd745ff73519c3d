package main

import (
	"context"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/neural"
)

// Evaluator flies one agent per seed and scores a weight vector.
type Evaluator struct {
	space WeightSpace
	cfg   *config.Config
	seeds []uint64

	mu          sync.Mutex
	bestFitness float64
	bestX       []float64
	bestScore   float64
	lastScore   float64
}

// NewEvaluator creates an evaluator over the given episode seeds.
func NewEvaluator(space WeightSpace, cfg *config.Config, seeds []uint64) *Evaluator {
	return &Evaluator{
		space:       space,
		cfg:         cfg,
		seeds:       seeds,
		bestFitness: math.Inf(1),
	}
}

// seedResult holds one episode's outcome.
type seedResult struct {
	fitness float64
	score   int
}

// Evaluate returns the negated mean agent fitness across seeds (lower is
// better). Seeds run in parallel; each episode is independent.
func (e *Evaluator) Evaluate(ctx context.Context, x []float64) (float64, error) {
	nn, err := e.space.Network(x)
	if err != nil {
		return 0, err
	}

	results := make([]seedResult, len(e.seeds))
	g, ctx := errgroup.WithContext(ctx)
	for i, seed := range e.seeds {
		g.Go(func() error {
			r, err := e.runEpisode(ctx, nn, seed)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var fitness, score float64
	for _, r := range results {
		fitness += r.fitness
		score += float64(r.score)
	}
	n := float64(len(results))
	objective := -fitness / n

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastScore = score / n
	if objective < e.bestFitness {
		e.bestFitness = objective
		e.bestX = e.space.Clamp(x)
		e.bestScore = e.lastScore
	}
	return objective, nil
}

// runEpisode flies a private copy of nn; Forward is read-only but the copy
// keeps episodes free of shared state.
func (e *Evaluator) runEpisode(ctx context.Context, nn *neural.FFNN, seed uint64) (seedResult, error) {
	ep, err := game.NewEpisode(e.cfg, game.Options{Seed: seed})
	if err != nil {
		return seedResult{}, err
	}
	var fitness float64
	if _, err := ep.AddAgent(neural.NewPolicy(nn.Clone(), e.cfg.Derived.FieldHeight), &fitness); err != nil {
		return seedResult{}, err
	}
	limits := game.Limits{MaxTicks: e.cfg.Optimize.MaxTicks, ScoreCap: e.cfg.Population.ScoreCap}
	if err := game.Run(ctx, ep, limits, nil); err != nil {
		return seedResult{}, err
	}
	return seedResult{fitness: fitness, score: ep.Score()}, nil
}

// Best returns the best objective and clamped weights seen so far.
func (e *Evaluator) Best() (float64, []float64, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bestFitness, e.bestX, e.bestScore
}

// LastScore returns the mean score from the most recent evaluation.
func (e *Evaluator) LastScore() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastScore
}
