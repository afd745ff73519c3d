package game

import "context"

// Limits bounds how long Run drives an episode. Zero fields are unlimited.
type Limits struct {
	MaxTicks int
	ScoreCap int // Stop once the score exceeds this
}

// Done reports whether the episode has finished or hit a limit.
func (l Limits) Done(e *Episode) bool {
	if e.State() == Finished {
		return true
	}
	if l.MaxTicks > 0 && e.Ticks() >= l.MaxTicks {
		return true
	}
	return l.ScoreCap > 0 && e.Score() > l.ScoreCap
}

// Run ticks e until it is done, rendering a snapshot to sink after every tick.
// Cancellation is checked between ticks; the episode is left as it was when
// ctx ended.
func Run(ctx context.Context, e *Episode, limits Limits, sink RenderSink) error {
	for !limits.Done(e) {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.Tick()
		if sink != nil {
			sink.Render(e.Snapshot())
		}
	}
	return nil
}
