package storage

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]Run
	generations map[string][]GenerationRecord
	champions   map[string]Champion
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.runs = make(map[string]Run)
	s.generations = make(map[string][]GenerationRecord)
	s.champions = make(map[string]Champion)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return Run{}, false, ErrNotInitialized
	}
	run, ok := s.runs[id]
	return run, ok, nil
}

// SaveGeneration upserts by (run, generation).
func (s *MemoryStore) SaveGeneration(_ context.Context, rec GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	recs := s.generations[rec.RunID]
	for i := range recs {
		if recs[i].Stats.Generation == rec.Stats.Generation {
			recs[i] = rec
			return nil
		}
	}
	recs = append(recs, rec)
	sort.Slice(recs, func(i, j int) bool { return recs[i].Stats.Generation < recs[j].Stats.Generation })
	s.generations[rec.RunID] = recs
	return nil
}

func (s *MemoryStore) ListGenerations(_ context.Context, runID string) ([]GenerationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return append([]GenerationRecord(nil), s.generations[runID]...), nil
}

func (s *MemoryStore) SaveChampion(_ context.Context, c Champion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.champions[c.RunID] = c
	return nil
}

func (s *MemoryStore) GetChampion(_ context.Context, runID string) (Champion, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return Champion{}, false, ErrNotInitialized
	}
	c, ok := s.champions[runID]
	return c, ok, nil
}

func (s *MemoryStore) Close() error { return nil }
