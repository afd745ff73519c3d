package neural

import "github.com/pthm-cable/flap/systems"

// Policy drives an agent with a network. Observations are divided by Scale
// (the playfield height) so inputs stay near [0, 1].
type Policy struct {
	Net   *FFNN
	Scale float64
}

// NewPolicy wraps nn for a playfield of the given height.
func NewPolicy(nn *FFNN, fieldHeight float64) *Policy {
	return &Policy{Net: nn, Scale: fieldHeight}
}

// Decide returns the network output for obs.
func (p *Policy) Decide(obs systems.Observation) float64 {
	s := p.Scale
	if s <= 0 {
		s = 1
	}
	in := [NumInputs]float32{
		float32(obs.Y / s),
		float32(obs.GapCenterDist / s),
		float32(obs.GapBottomDist / s),
	}
	return float64(p.Net.Forward(in))
}
