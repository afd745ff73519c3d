package game

import (
	"testing"
	"time"
)

func TestFixedStep(t *testing.T) {
	now := time.Unix(0, 0)
	f := NewFixedStep(10)
	f.now = func() time.Time { return now }

	tests := []struct {
		name    string
		advance time.Duration
		limit   int
		want    int
	}{
		{"first call ticks once", 0, 5, 1},
		{"nothing due", 50 * time.Millisecond, 5, 0},
		{"carries remainder", 60 * time.Millisecond, 5, 1},
		{"two due", 200 * time.Millisecond, 5, 2},
		{"stall is capped", time.Second, 3, 3},
		{"owed time dropped", 0, 5, 0},
	}
	for _, tt := range tests {
		now = now.Add(tt.advance)
		if got := f.Steps(tt.limit); got != tt.want {
			t.Errorf("%s: Steps = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestFixedStepDefaultRate(t *testing.T) {
	f := NewFixedStep(0)
	if f.step != time.Second/30 {
		t.Errorf("step = %v, want 1/30s", f.step)
	}
}
