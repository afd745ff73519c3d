// Package storage persists training runs: run metadata, per-generation
// statistics and the champion network.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/flap/neural"
	"github.com/pthm-cable/flap/telemetry"
)

// ErrNotInitialized is returned by stores used before Init.
var ErrNotInitialized = errors.New("store is not initialized")

// VersionedRecord tags every persisted record with its encoding versions.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

func currentVersion() VersionedRecord {
	return VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

// Run describes one training run.
type Run struct {
	VersionedRecord
	ID         string    `json:"id"`
	Seed       uint64    `json:"seed"`
	StartedAt  time.Time `json:"started_at"`
	ConfigYAML string    `json:"config_yaml"`
}

// NewRun creates a run record with a fresh ID.
func NewRun(seed uint64, configYAML string) Run {
	return Run{
		VersionedRecord: currentVersion(),
		ID:              uuid.NewString(),
		Seed:            seed,
		StartedAt:       time.Now().UTC(),
		ConfigYAML:      configYAML,
	}
}

// GenerationRecord is the stored summary of one generation.
type GenerationRecord struct {
	VersionedRecord
	RunID string                    `json:"run_id"`
	Stats telemetry.GenerationStats `json:"stats"`
}

// NewGenerationRecord wraps stats for storage.
func NewGenerationRecord(runID string, stats telemetry.GenerationStats) GenerationRecord {
	return GenerationRecord{VersionedRecord: currentVersion(), RunID: runID, Stats: stats}
}

// Champion is the best network of a run so far.
type Champion struct {
	VersionedRecord
	RunID      string              `json:"run_id"`
	Generation int                 `json:"generation"`
	Fitness    float64             `json:"fitness"`
	Score      int                 `json:"score"`
	Weights    neural.BrainWeights `json:"weights"`
}

// NewChampion builds a champion record.
func NewChampion(runID string, generation int, fitness float64, score int, w neural.BrainWeights) Champion {
	return Champion{
		VersionedRecord: currentVersion(),
		RunID:           runID,
		Generation:      generation,
		Fitness:         fitness,
		Score:           score,
		Weights:         w,
	}
}

// Store defines persistence operations for training runs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	SaveGeneration(ctx context.Context, rec GenerationRecord) error
	ListGenerations(ctx context.Context, runID string) ([]GenerationRecord, error)
	SaveChampion(ctx context.Context, c Champion) error
	GetChampion(ctx context.Context, runID string) (Champion, bool, error)
	Close() error
}
