package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flap/systems"
)

// KeyboardPolicy lets a person fly an agent. Poll runs once per frame and
// latches a press; the next decision consumes it.
type KeyboardPolicy struct {
	pending bool
}

// Poll reads Space and Up.
func (k *KeyboardPolicy) Poll() {
	if rl.IsKeyPressed(rl.KeySpace) || rl.IsKeyPressed(rl.KeyUp) {
		k.pending = true
	}
}

// Decide returns 1 for a latched press and 0 otherwise.
func (k *KeyboardPolicy) Decide(systems.Observation) float64 {
	if k.pending {
		k.pending = false
		return 1
	}
	return 0
}
