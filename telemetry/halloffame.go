package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/pthm-cable/flap/neural"
)

// HallEntry is a network that earned a place in the hall of fame.
type HallEntry struct {
	Generation int                 `json:"generation"`
	AgentID    int                 `json:"agent_id"`
	Fitness    float64             `json:"fitness"`
	Score      int                 `json:"score"`
	Weights    neural.BrainWeights `json:"brain"`
}

// HallOfFame keeps the best networks seen across a run, highest fitness first.
type HallOfFame struct {
	entries []HallEntry
	maxSize int
}

// NewHallOfFame creates an empty hall with the given capacity.
func NewHallOfFame(maxSize int) *HallOfFame {
	return &HallOfFame{
		entries: make([]HallEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Consider inserts e if it beats the weakest entry or the hall has room.
// Returns true if the entry was added.
func (hof *HallOfFame) Consider(e HallEntry) bool {
	if hof.maxSize <= 0 {
		return false
	}

	// Ties keep the earlier entry ahead.
	idx := sort.Search(len(hof.entries), func(i int) bool {
		return hof.entries[i].Fitness < e.Fitness
	})
	if idx >= hof.maxSize {
		return false
	}

	hof.entries = append(hof.entries, HallEntry{})
	copy(hof.entries[idx+1:], hof.entries[idx:])
	hof.entries[idx] = e

	if len(hof.entries) > hof.maxSize {
		hof.entries = hof.entries[:hof.maxSize]
	}
	return true
}

// Best returns the top entry.
func (hof *HallOfFame) Best() (HallEntry, bool) {
	if len(hof.entries) == 0 {
		return HallEntry{}, false
	}
	return hof.entries[0], true
}

// Entries returns a copy of all entries, best first.
func (hof *HallOfFame) Entries() []HallEntry {
	return append([]HallEntry(nil), hof.entries...)
}

// Len returns the number of entries.
func (hof *HallOfFame) Len() int { return len(hof.entries) }

// TopFitness returns the highest fitness, or 0 if the hall is empty.
func (hof *HallOfFame) TopFitness() float64 {
	if len(hof.entries) == 0 {
		return 0
	}
	return hof.entries[0].Fitness
}

// MarshalJSON serializes the entries, best first.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(hof.entries, "", "  ")
}

// LoadHallOfFameFromFile reads a hall written by OutputManager.WriteHallOfFame.
func LoadHallOfFameFromFile(path string) (*HallOfFame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hall of fame: %w", err)
	}

	var entries []HallEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing hall of fame JSON: %w", err)
	}

	hof := NewHallOfFame(len(entries))
	for _, e := range entries {
		hof.Consider(e)
	}
	return hof, nil
}
