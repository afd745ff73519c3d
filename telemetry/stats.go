// Package telemetry aggregates per-generation statistics and writes run output.
package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GenerationStats summarizes one finished generation.
type GenerationStats struct {
	Generation int    `csv:"generation"`
	Seed       uint64 `csv:"seed"`
	Ticks      int    `csv:"ticks"`
	Score      int    `csv:"score"`
	Agents     int    `csv:"agents"`
	Survivors  int    `csv:"survivors"` // Alive when the generation stopped

	FitnessMax  float64 `csv:"fitness_max"`
	FitnessMean float64 `csv:"fitness_mean"`
	FitnessStd  float64 `csv:"fitness_std"`
	FitnessP10  float64 `csv:"fitness_p10"`
	FitnessP50  float64 `csv:"fitness_p50"`
	FitnessP90  float64 `csv:"fitness_p90"`

	MutationDelta float64 `csv:"mutation_delta"` // Mean |delta| applied breeding the next generation
	DurationMs    int64   `csv:"duration_ms"`
}

// FitnessSummary fills the fitness columns from raw per-agent fitness values.
func (s *GenerationStats) FitnessSummary(fitness []float64) {
	s.Agents = len(fitness)
	if len(fitness) == 0 {
		return
	}

	sorted := slices.Clone(fitness)
	slices.Sort(sorted)

	s.FitnessMax = floats.Max(sorted)
	s.FitnessMean = stat.Mean(sorted, nil)
	if len(sorted) > 1 {
		s.FitnessStd = stat.StdDev(sorted, nil)
	}
	s.FitnessP10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	s.FitnessP50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	s.FitnessP90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.Uint64("seed", s.Seed),
		slog.Int("ticks", s.Ticks),
		slog.Int("score", s.Score),
		slog.Int("agents", s.Agents),
		slog.Int("survivors", s.Survivors),
		slog.Float64("fitness_max", s.FitnessMax),
		slog.Float64("fitness_mean", s.FitnessMean),
		slog.Float64("fitness_std", s.FitnessStd),
		slog.Float64("fitness_p50", s.FitnessP50),
		slog.Float64("mutation_delta", s.MutationDelta),
		slog.Int64("duration_ms", s.DurationMs),
	)
}
