package game

import "github.com/pthm-cable/flap/systems"

// Policy decides whether an agent jumps. Decide is called once per live agent
// per tick; a result above the configured jump threshold triggers a jump and
// non-finite results never do.
type Policy interface {
	Decide(obs systems.Observation) float64
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(obs systems.Observation) float64

// Decide calls f.
func (f PolicyFunc) Decide(obs systems.Observation) float64 { return f(obs) }

// ConstantPolicy returns the same decision every tick.
type ConstantPolicy float64

// Decide returns p.
func (p ConstantPolicy) Decide(systems.Observation) float64 { return float64(p) }

// Controller pairs an agent with its policy and the caller-owned fitness accumulator.
type Controller struct {
	Policy  Policy
	Fitness *float64
}
