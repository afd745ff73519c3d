package components

import (
	"math"
	"testing"

	"github.com/pthm-cable/flap/config"
)

func defaultKinematics(t *testing.T) Kinematics {
	t.Helper()
	return KinematicsFrom(config.Default().Agent)
}

// TestIntegrateFreeFall checks ten ticks of free fall against the closed form.
func TestIntegrateFreeFall(t *testing.T) {
	k := defaultKinematics(t)
	a := NewAgent(0, 230, 350)

	want := 350.0
	for i := 1; i <= 10; i++ {
		d := a.Integrate(k)
		step := math.Min(0.5*k.Gravity*float64(i*i), k.TerminalVelocity)
		want += step
		if d != step {
			t.Errorf("tick %d: displacement = %v, want %v", i, d, step)
		}
	}

	if a.Y != want {
		t.Errorf("y after 10 ticks = %v, want %v", a.Y, want)
	}
	if a.Y != 483 {
		t.Errorf("y after 10 ticks = %v, want 483", a.Y)
	}
}

func TestJumpResetsIntegrator(t *testing.T) {
	k := defaultKinematics(t)
	a := NewAgent(0, 230, 400)
	for i := 0; i < 5; i++ {
		a.Integrate(k)
	}

	a.Jump(k)
	if a.Ticks != 0 {
		t.Errorf("ticks after jump = %d, want 0", a.Ticks)
	}
	if a.Vel != k.JumpVelocity {
		t.Errorf("velocity after jump = %v, want %v", a.Vel, k.JumpVelocity)
	}
	if a.Origin != a.Y {
		t.Errorf("origin = %v, want current y %v", a.Origin, a.Y)
	}

	before := a.Y
	d := a.Integrate(k)
	// -10.5 + 1.5 = -9, boosted by 2
	if d != -11 {
		t.Errorf("first displacement after jump = %v, want -11", d)
	}
	if a.Y != before-11 {
		t.Errorf("y = %v, want %v", a.Y, before-11)
	}
	if a.Tilt != k.MaxTilt {
		t.Errorf("tilt while rising = %v, want %v", a.Tilt, k.MaxTilt)
	}
}

// TestBoundsClamp drives an agent through mixed jump patterns and checks the
// displacement and tilt envelopes on every tick.
func TestBoundsClamp(t *testing.T) {
	k := defaultKinematics(t)
	patterns := []struct {
		name  string
		every int
	}{
		{"never", 0},
		{"every tick", 1},
		{"every 7", 7},
		{"every 19", 19},
	}

	for _, p := range patterns {
		t.Run(p.name, func(t *testing.T) {
			a := NewAgent(0, 230, 350)
			for i := 1; i <= 300; i++ {
				if p.every > 0 && i%p.every == 0 {
					a.Jump(k)
				}
				d := a.Integrate(k)
				if d > k.TerminalVelocity {
					t.Fatalf("tick %d: displacement %v exceeds terminal velocity", i, d)
				}
				if a.Tilt > k.MaxTilt || a.Tilt < k.MinTilt {
					t.Fatalf("tick %d: tilt %v outside [%v, %v]", i, a.Tilt, k.MinTilt, k.MaxTilt)
				}
			}
		})
	}
}

func TestTiltFloorClamps(t *testing.T) {
	k := defaultKinematics(t)
	k.TiltDecay = 35 // does not divide the range evenly
	a := NewAgent(0, 230, 0)

	for i := 0; i < 20; i++ {
		a.Integrate(k)
	}
	if a.Tilt != k.MinTilt {
		t.Errorf("tilt = %v, want floor %v", a.Tilt, k.MinTilt)
	}
	if !Diving(a.Tilt) {
		t.Error("agent at tilt floor should be diving")
	}
}

func TestDivingThreshold(t *testing.T) {
	tests := []struct {
		tilt float64
		want bool
	}{
		{25, false},
		{-79.5, false},
		{DivingTilt, true},
		{-90, true},
	}
	for _, tt := range tests {
		if got := Diving(tt.tilt); got != tt.want {
			t.Errorf("Diving(%v) = %v, want %v", tt.tilt, got, tt.want)
		}
	}
}

type fixedGap int

func (g fixedGap) IntN(n int) int { return min(int(g), n-1) }

func TestObstacleGeometry(t *testing.T) {
	p := ObstacleParamsFrom(config.Default().Obstacle)
	o := NewObstacle(600, fixedGap(160), p)

	if o.GapCenter != 200 {
		t.Fatalf("gap center = %v, want 200", o.GapCenter)
	}
	if o.Top != 200-p.PieceHeight {
		t.Errorf("top = %v, want %v", o.Top, 200-p.PieceHeight)
	}
	if o.Bottom != 400 {
		t.Errorf("bottom = %v, want 400", o.Bottom)
	}

	for i := 0; i < 40; i++ {
		o.Advance(15)
	}
	if o.X != 0 {
		t.Errorf("x after 40 ticks = %v, want 0", o.X)
	}
	if o.OffScreen() {
		t.Error("obstacle at x=0 is still visible")
	}

	for i := 0; i < 7; i++ {
		o.Advance(15)
	}
	if !o.OffScreen() {
		t.Errorf("obstacle at x=%v should be off screen", o.X)
	}
}

func TestObstacleGapRange(t *testing.T) {
	p := ObstacleParamsFrom(config.Default().Obstacle)

	lo := NewObstacle(0, fixedGap(0), p)
	if lo.GapCenter != float64(p.GapMin) {
		t.Errorf("lowest gap = %v, want %d", lo.GapCenter, p.GapMin)
	}
	hi := NewObstacle(0, fixedGap(1<<30), p)
	if hi.GapCenter != float64(p.GapMax-1) {
		t.Errorf("highest gap = %v, want %d", hi.GapCenter, p.GapMax-1)
	}
}

func TestMarkPassedOnce(t *testing.T) {
	o := NewObstacleAt(100, 200, ObstacleParams{Gap: 200, PieceWidth: 104, PieceHeight: 640})
	if !o.MarkPassed() {
		t.Fatal("first MarkPassed should report a new traversal")
	}
	if o.MarkPassed() {
		t.Error("second MarkPassed should be a no-op")
	}
}

func TestCollidesWith(t *testing.T) {
	cfg := config.Default()
	p := ObstacleParamsFrom(cfg.Obstacle)
	s := BoxSilhouettes(cfg.Agent.Width, cfg.Agent.Height, p.PieceWidth, p.PieceHeight)

	tests := []struct {
		name    string
		ox      float64
		agentY  float64
		collide bool
	}{
		{"in gap", 200, 300, false},
		{"touching top piece", 200, 249, true},
		{"touching bottom piece", 200, 403, true},
		{"just clear of bottom", 200, 402, false},
		{"obstacle ahead", 298, 100, false},
		{"obstacle overlapping horizontally", 297, 100, true},
		{"obstacle behind", 126, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewObstacleAt(tt.ox, 250, p) // gap [250, 450)
			a := NewAgent(0, 230, tt.agentY)
			if got := o.CollidesWith(&a, s); got != tt.collide {
				t.Errorf("CollidesWith = %v, want %v", got, tt.collide)
			}
		})
	}
}

func TestCollidesWithWingFrame(t *testing.T) {
	cfg := config.Default()
	p := ObstacleParamsFrom(cfg.Obstacle)
	s := BoxSilhouettes(cfg.Agent.Width, cfg.Agent.Height, p.PieceWidth, p.PieceHeight)
	s.Wings[0] = NewMask(int(cfg.Agent.Width), int(cfg.Agent.Height)) // no solid pixels
	s.Wings[1] = Rect{W: int(cfg.Agent.Width), H: int(cfg.Agent.Height)}

	o := NewObstacleAt(200, 250, p)
	a := NewAgent(0, 230, 249) // box touches the top piece

	for frame, want := range []bool{false, true, true} {
		a.Frame = frame
		if got := o.CollidesWith(&a, s); got != want {
			t.Errorf("frame %d: CollidesWith = %v, want %v", frame, got, want)
		}
	}
	if s.AgentFrame(2) != s.Agent {
		t.Error("unset wing frame should fall back to the agent footprint")
	}
}

func TestAnimateCycle(t *testing.T) {
	want := []int{
		0, 0, 0, 0,
		1, 1, 1, 1, 1,
		2, 2, 2, 2, 2,
		1, 1, 1, 1, 1,
		1, // end of cycle holds the last frame
		0, 0,
	}
	a := NewAgent(0, 230, 350)
	for i, w := range want {
		a.Animate()
		if a.Frame != w {
			t.Fatalf("tick %d: frame = %d, want %d", i+1, a.Frame, w)
		}
	}
}

func TestAnimateDiving(t *testing.T) {
	a := NewAgent(0, 230, 350)
	a.Tilt = -90
	for i := 0; i < 3; i++ {
		a.Animate()
		if a.Frame != 1 {
			t.Fatalf("diving tick %d: frame = %d, want 1", i+1, a.Frame)
		}
	}
	a.Tilt = 25
	a.Animate()
	if a.Frame != 2 {
		t.Errorf("frame after dive = %d, want 2 (resume mid-cycle)", a.Frame)
	}
}

func TestOverlapMask(t *testing.T) {
	// Diagonal mask: only (i, i) is solid.
	diag := NewMask(4, 4)
	for i := 0; i < 4; i++ {
		diag.Set(i, i)
	}
	if diag.Count() != 4 {
		t.Fatalf("mask count = %d, want 4", diag.Count())
	}

	dot := Rect{W: 1, H: 1}
	if !Overlap(diag, dot, 2, 2) {
		t.Error("dot on the diagonal should overlap")
	}
	if Overlap(diag, dot, 2, 1) {
		t.Error("dot off the diagonal should not overlap")
	}
	if Overlap(diag, dot, 4, 4) {
		t.Error("dot outside the bounds should not overlap")
	}

	flipped := diag.FlipVertical()
	if !flipped.Solid(0, 3) || flipped.Solid(0, 0) {
		t.Error("FlipVertical did not mirror rows")
	}
}

func TestMaskFromAlpha(t *testing.T) {
	m := MaskFromAlpha(3, 2, func(x, y int) uint8 {
		if x == 1 {
			return 255
		}
		return 100
	}, 127)
	if m.Count() != 2 {
		t.Errorf("solid pixels = %d, want 2", m.Count())
	}
	if !m.Solid(1, 0) || !m.Solid(1, 1) || m.Solid(0, 0) {
		t.Error("unexpected mask contents")
	}
}

func TestGroundTiling(t *testing.T) {
	cfg := config.Default()
	g := NewGround(cfg.Ground.Y, cfg.Ground.SegmentWidth)
	width := float64(cfg.Screen.Width)

	for i := 0; i < 2000; i++ {
		g.Advance(cfg.Ground.Velocity)
		if d := math.Abs(g.X2 - g.X1); d != g.Width {
			t.Fatalf("tick %d: segment spacing = %v, want %v", i, d, g.Width)
		}
		if !g.Covers(width) {
			t.Fatalf("tick %d: segments at %v, %v leave a gap", i, g.X1, g.X2)
		}
	}
}

func BenchmarkOverlapMask(b *testing.B) {
	a := MaskFromAlpha(68, 48, func(x, y int) uint8 { return uint8((x + y) * 3) }, 127)
	pipe := MaskFromAlpha(104, 640, func(x, y int) uint8 { return 255 }, 127)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Overlap(a, pipe, 20, 10)
	}
}
