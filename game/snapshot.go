package game

import "sync"

// AgentView is the render-facing state of one live agent.
type AgentView struct {
	ID    int     `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Tilt  float64 `json:"tilt"`
	Ticks int     `json:"ticks"` // Ticks since the last jump
	Frame int     `json:"frame"` // Wing frame
}

// ObstacleView is the render-facing state of one obstacle.
type ObstacleView struct {
	X         float64 `json:"x"`
	Top       float64 `json:"top"`
	Bottom    float64 `json:"bottom"`
	GapCenter float64 `json:"gap_center"`
	Passed    bool    `json:"passed"`
}

// GroundView holds the two ground segment offsets.
type GroundView struct {
	Y  float64 `json:"y"`
	X1 float64 `json:"x1"`
	X2 float64 `json:"x2"`
}

// Snapshot is an immutable copy of the episode state after a tick.
type Snapshot struct {
	Tick       int            `json:"tick"`
	Generation int            `json:"generation"`
	Score      int            `json:"score"`
	State      State          `json:"state"`
	Alive      int            `json:"alive"`
	Agents     []AgentView    `json:"agents"`
	Obstacles  []ObstacleView `json:"obstacles"`
	Ground     GroundView     `json:"ground"`
}

// RenderSink consumes snapshots. Implementations must not retain references
// into core state; snapshots are already copies.
type RenderSink interface {
	Render(s Snapshot)
}

// SinkFunc adapts a function to RenderSink.
type SinkFunc func(s Snapshot)

// Render calls f.
func (f SinkFunc) Render(s Snapshot) { f(s) }

// MultiSink fans one snapshot out to several sinks in order.
type MultiSink []RenderSink

// Render forwards s to every non-nil sink.
func (m MultiSink) Render(s Snapshot) {
	for _, sink := range m {
		if sink != nil {
			sink.Render(s)
		}
	}
}

// LatestSink keeps the most recent snapshot for pull-style consumers such as a
// window loop running on its own goroutine.
type LatestSink struct {
	mu   sync.Mutex
	snap Snapshot
	ok   bool
}

// Render stores s.
func (l *LatestSink) Render(s Snapshot) {
	l.mu.Lock()
	l.snap, l.ok = s, true
	l.mu.Unlock()
}

// Latest returns the last stored snapshot.
func (l *LatestSink) Latest() (Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap, l.ok
}
