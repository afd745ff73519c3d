// Package neural provides the feedforward network used as an agent policy.
package neural

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Network dimensions (compile-time constants for array sizing).
// NumInputs matches systems.NumObservations.
const (
	NumInputs  = 3 // y, distance to gap line, distance to bottom piece
	NumHidden  = 6
	NumOutputs = 1 // jump
)

// NumParams is the length of the flat parameter vector.
const NumParams = NumHidden*NumInputs + NumHidden + NumOutputs*NumHidden + NumOutputs

// FFNN is a simple two-layer feedforward neural network.
type FFNN struct {
	W1 [NumHidden][NumInputs]float32  // input -> hidden weights
	B1 [NumHidden]float32             // hidden biases
	W2 [NumOutputs][NumHidden]float32 // hidden -> output weights
	B2 [NumOutputs]float32            // output biases
}

// NewFFNN creates a randomly initialized network.
func NewFFNN(rng *rand.Rand) *FFNN {
	nn := &FFNN{}
	// Xavier initialization
	scale1 := float32(math.Sqrt(2.0 / float64(NumInputs)))
	scale2 := float32(math.Sqrt(2.0 / float64(NumHidden)))

	for i := range nn.W1 {
		for j := range nn.W1[i] {
			nn.W1[i][j] = float32(rng.NormFloat64()) * scale1
		}
	}
	for i := range nn.W2 {
		for j := range nn.W2[i] {
			nn.W2[i][j] = float32(rng.NormFloat64()) * scale2
		}
	}
	return nn
}

// Forward computes the jump output in [-1, 1].
func (nn *FFNN) Forward(inputs [NumInputs]float32) float32 {
	var hidden [NumHidden]float32
	for i := 0; i < NumHidden; i++ {
		sum := nn.B1[i]
		for j := 0; j < NumInputs; j++ {
			sum += nn.W1[i][j] * inputs[j]
		}
		hidden[i] = tanh(sum)
	}

	sum := nn.B2[0]
	for j := 0; j < NumHidden; j++ {
		sum += nn.W2[0][j] * hidden[j]
	}
	return tanh(sum)
}

// MutateSparse applies sparse per-weight mutation for stable lineages.
// rate: probability each weight mutates (biases mutate at half the rate)
// sigma: standard deviation of normal perturbation
// bigRate: probability a mutation uses bigSigma instead
// Returns the average absolute delta of the applied mutations.
func (nn *FFNN) MutateSparse(rng *rand.Rand, rate, sigma, bigRate, bigSigma float32) float32 {
	m := mutator{rng: rng, sigma: sigma, bigRate: bigRate, bigSigma: bigSigma}

	for i := range nn.W1 {
		for j := range nn.W1[i] {
			m.maybe(&nn.W1[i][j], rate)
		}
		m.maybe(&nn.B1[i], rate*0.5)
	}
	for i := range nn.W2 {
		for j := range nn.W2[i] {
			m.maybe(&nn.W2[i][j], rate)
		}
		m.maybe(&nn.B2[i], rate*0.5)
	}

	if m.count == 0 {
		return 0
	}
	return m.total / float32(m.count)
}

type mutator struct {
	rng      *rand.Rand
	sigma    float32
	bigRate  float32
	bigSigma float32

	total float32
	count int
}

func (m *mutator) maybe(w *float32, rate float32) {
	if m.rng.Float32() >= rate {
		return
	}
	s := m.sigma
	if m.rng.Float32() < m.bigRate {
		s = m.bigSigma
	}
	delta := float32(m.rng.NormFloat64()) * s
	*w += delta
	if delta < 0 {
		delta = -delta
	}
	m.total += delta
	m.count++
}

// Clone creates a deep copy of the network.
func (nn *FFNN) Clone() *FFNN {
	clone := *nn
	return &clone
}

// tanh uses a fast rational approximation avoiding float64 conversion.
func tanh(x float32) float32 {
	if x > 4 {
		return 1
	}
	if x < -4 {
		return -1
	}
	x2 := x * x
	return x * (27 + x2) / (27 + 9*x2)
}

// Vector flattens all parameters in W1, B1, W2, B2 order.
func (nn *FFNN) Vector() []float64 {
	v := make([]float64, 0, NumParams)
	for i := range nn.W1 {
		for _, w := range nn.W1[i] {
			v = append(v, float64(w))
		}
	}
	for _, b := range nn.B1 {
		v = append(v, float64(b))
	}
	for i := range nn.W2 {
		for _, w := range nn.W2[i] {
			v = append(v, float64(w))
		}
	}
	for _, b := range nn.B2 {
		v = append(v, float64(b))
	}
	return v
}

// SetVector restores parameters flattened by Vector.
func (nn *FFNN) SetVector(v []float64) error {
	if len(v) != NumParams {
		return fmt.Errorf("parameter vector has %d values, want %d", len(v), NumParams)
	}
	k := 0
	next := func() float32 {
		x := float32(v[k])
		k++
		return x
	}
	for i := range nn.W1 {
		for j := range nn.W1[i] {
			nn.W1[i][j] = next()
		}
	}
	for i := range nn.B1 {
		nn.B1[i] = next()
	}
	for i := range nn.W2 {
		for j := range nn.W2[i] {
			nn.W2[i][j] = next()
		}
	}
	for i := range nn.B2 {
		nn.B2[i] = next()
	}
	return nil
}

// FromVector builds a network from a flat parameter vector.
func FromVector(v []float64) (*FFNN, error) {
	nn := &FFNN{}
	if err := nn.SetVector(v); err != nil {
		return nil, err
	}
	return nn, nil
}

// BrainWeights holds flattened network weights for serialization.
type BrainWeights struct {
	W1 []float32 `json:"w1"` // [NumHidden * NumInputs]
	B1 []float32 `json:"b1"` // [NumHidden]
	W2 []float32 `json:"w2"` // [NumOutputs * NumHidden]
	B2 []float32 `json:"b2"` // [NumOutputs]
}

// MarshalWeights flattens the network weights for JSON serialization.
func (nn *FFNN) MarshalWeights() BrainWeights {
	bw := BrainWeights{
		W1: make([]float32, 0, NumHidden*NumInputs),
		B1: append([]float32(nil), nn.B1[:]...),
		W2: make([]float32, 0, NumOutputs*NumHidden),
		B2: append([]float32(nil), nn.B2[:]...),
	}
	for i := range nn.W1 {
		bw.W1 = append(bw.W1, nn.W1[i][:]...)
	}
	for i := range nn.W2 {
		bw.W2 = append(bw.W2, nn.W2[i][:]...)
	}
	return bw
}

// UnmarshalWeights restores network weights from flattened form.
// Weights of a different shape are rejected.
func (nn *FFNN) UnmarshalWeights(bw BrainWeights) error {
	if len(bw.W1) != NumHidden*NumInputs || len(bw.B1) != NumHidden ||
		len(bw.W2) != NumOutputs*NumHidden || len(bw.B2) != NumOutputs {
		return fmt.Errorf("weights shape %d/%d/%d/%d does not match network %d/%d/%d/%d",
			len(bw.W1), len(bw.B1), len(bw.W2), len(bw.B2),
			NumHidden*NumInputs, NumHidden, NumOutputs*NumHidden, NumOutputs)
	}
	for i := range nn.W1 {
		copy(nn.W1[i][:], bw.W1[i*NumInputs:])
	}
	copy(nn.B1[:], bw.B1)
	for i := range nn.W2 {
		copy(nn.W2[i][:], bw.W2[i*NumHidden:])
	}
	copy(nn.B2[:], bw.B2)
	return nil
}
