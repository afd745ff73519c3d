package game

import "time"

// FixedStep paces episode ticks at a steady rate from a faster frame loop.
type FixedStep struct {
	step        time.Duration
	accumulator time.Duration
	last        time.Time
	now         func() time.Time
}

// NewFixedStep targets tps ticks per second. Non-positive rates use 30.
func NewFixedStep(tps int) *FixedStep {
	f := &FixedStep{now: time.Now}
	f.SetTPS(tps)
	f.accumulator = f.step
	return f
}

// SetTPS changes the tick rate.
func (f *FixedStep) SetTPS(tps int) {
	if tps <= 0 {
		tps = 30
	}
	f.step = time.Second / time.Duration(tps)
}

// Steps returns how many ticks are due since the last call, at most limit.
// Time owed beyond the limit is dropped so a stalled frame does not cause a
// burst of catch-up ticks.
func (f *FixedStep) Steps(limit int) int {
	now := f.now()
	if f.last.IsZero() {
		f.last = now
	}
	f.accumulator += now.Sub(f.last)
	f.last = now

	n := 0
	for f.accumulator >= f.step && n < limit {
		f.accumulator -= f.step
		n++
	}
	if n == limit {
		f.accumulator %= f.step
	}
	return n
}
