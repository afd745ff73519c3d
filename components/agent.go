// Package components defines the entities of the side-scroller simulation.
// Components are plain data with small per-tick methods; ordering and
// orchestration live in systems and game.
package components

import (
	"math"

	"github.com/pthm-cable/flap/config"
)

// Kinematics holds the tunables of the agent integrator.
type Kinematics struct {
	JumpVelocity     float64
	Gravity          float64
	TerminalVelocity float64
	UpwardBoost      float64
	MaxTilt          float64
	MinTilt          float64
	TiltDecay        float64
	TiltHoldMargin   float64
}

// KinematicsFrom extracts integrator parameters from the agent config.
func KinematicsFrom(cfg config.AgentConfig) Kinematics {
	return Kinematics{
		JumpVelocity:     cfg.JumpVelocity,
		Gravity:          cfg.Gravity,
		TerminalVelocity: cfg.TerminalVelocity,
		UpwardBoost:      cfg.UpwardBoost,
		MaxTilt:          cfg.MaxTilt,
		MinTilt:          cfg.MinTilt,
		TiltDecay:        cfg.TiltDecay,
		TiltHoldMargin:   cfg.TiltHoldMargin,
	}
}

// Agent is one flying entity. X never changes after creation; the world
// scrolls under it.
type Agent struct {
	ID     int
	X, Y   float64
	Vel    float64 // Vertical velocity set by the last jump
	Ticks  int     // Ticks since the last jump
	Origin float64 // Height at the last jump
	Tilt   float64 // Degrees, cosmetic
	Frame  int     // Wing frame, selects the collision footprint
	Alive  bool

	wing int // Ticks into the wing cycle
}

// NewAgent creates a live agent at rest.
func NewAgent(id int, x, y float64) Agent {
	return Agent{
		ID:     id,
		X:      x,
		Y:      y,
		Origin: y,
		Alive:  true,
	}
}

// Jump applies the upward impulse and restarts the integrator clock.
func (a *Agent) Jump(k Kinematics) {
	a.Vel = k.JumpVelocity
	a.Ticks = 0
	a.Origin = a.Y
}

// Integrate advances the agent by one tick and returns the displacement applied.
// Displacement follows d = v*t + 0.5*g*t^2, capped at terminal velocity, with an
// extra boost while moving up.
func (a *Agent) Integrate(k Kinematics) float64 {
	a.Ticks++
	t := float64(a.Ticks)

	d := a.Vel*t + 0.5*k.Gravity*t*t
	if d >= k.TerminalVelocity {
		d = k.TerminalVelocity
	}
	if d < 0 {
		d -= k.UpwardBoost
	}
	a.Y += d

	if d < 0 || a.Y < a.Origin+k.TiltHoldMargin {
		if a.Tilt < k.MaxTilt {
			a.Tilt = k.MaxTilt
		}
	} else if a.Tilt > k.MinTilt {
		a.Tilt = math.Max(a.Tilt-k.TiltDecay, k.MinTilt)
	}

	return d
}

const (
	// WingFrames is the number of frames in the wing cycle.
	WingFrames = 3
	// WingTicks is how long each wing frame is held.
	WingTicks = 5
	// DivingTilt is the tilt at or below which the wings stay still.
	DivingTilt = -80
)

// Diving reports whether tilt is steep enough that the wings stay still.
func Diving(tilt float64) bool {
	return tilt <= DivingTilt
}

// Animate advances the wing cycle by one tick. Frames run 0, 1, 2, 1 for
// WingTicks each; the tick after the cycle keeps the previous frame. A diving
// agent holds frame 1 and resumes mid-cycle.
func (a *Agent) Animate() {
	a.wing++
	switch {
	case a.wing < WingTicks:
		a.Frame = 0
	case a.wing < WingTicks*2:
		a.Frame = 1
	case a.wing < WingTicks*3:
		a.Frame = 2
	case a.wing < WingTicks*4:
		a.Frame = 1
	case a.wing == WingTicks*4+1:
		a.Frame = 0
		a.wing = 0
	}
	if Diving(a.Tilt) {
		a.Frame = 1
		a.wing = WingTicks * 2
	}
}
