package main

import (
	"math/rand/v2"

	"github.com/pthm-cable/flap/neural"
)

// WeightSpace is the search space: every network parameter, box-bounded.
type WeightSpace struct {
	Limit float64 // Parameters are clamped to [-Limit, Limit]
}

// Dim returns the number of searched parameters.
func (ws WeightSpace) Dim() int { return neural.NumParams }

// Initial returns a randomly initialized network as a starting point.
func (ws WeightSpace) Initial(seed uint64) []float64 {
	return ws.Clamp(neural.NewFFNN(rand.New(rand.NewPCG(seed, 0))).Vector())
}

// Clamp returns a copy of x with every parameter inside the bounds.
func (ws WeightSpace) Clamp(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = max(-ws.Limit, min(ws.Limit, v))
	}
	return out
}

// Network builds the network for a candidate.
func (ws WeightSpace) Network(x []float64) (*neural.FFNN, error) {
	return neural.FromVector(ws.Clamp(x))
}
