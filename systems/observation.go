// Package systems contains the per-tick logic that acts on components:
// observation building and the scrolling obstacle field.
package systems

import (
	"math"

	"github.com/pthm-cable/flap/components"
)

// NumObservations is the length of the observation vector.
const NumObservations = 3

// Observation is what a policy sees on one tick.
type Observation struct {
	Y             float64 `json:"y"`
	GapCenterDist float64 `json:"gap_center_dist"` // |y - lower edge of top piece|
	GapBottomDist float64 `json:"gap_bottom_dist"` // |y - upper edge of bottom piece|
}

// Observe builds the observation of a against obstacle o.
// A nil obstacle yields zero distances.
func Observe(a *components.Agent, o *components.Obstacle) Observation {
	obs := Observation{Y: a.Y}
	if o == nil {
		return obs
	}
	obs.GapCenterDist = math.Abs(a.Y - o.GapCenter)
	obs.GapBottomDist = math.Abs(a.Y - o.Bottom)
	return obs
}

// Array returns the observation as a fixed-size vector.
func (o Observation) Array() [NumObservations]float64 {
	return [NumObservations]float64{o.Y, o.GapCenterDist, o.GapBottomDist}
}
