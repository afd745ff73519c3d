package ui

import (
	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
)

// Speeds are the selectable ticks-per-frame multipliers.
var Speeds = []int{1, 2, 4, 8, 16, 64}

// Controls holds pause and speed state driven by buttons and keys.
type Controls struct {
	Paused   bool
	speedIdx int
}

// Speed returns the current multiplier.
func (c *Controls) Speed() int { return Speeds[c.speedIdx] }

// Faster selects the next speed, if any.
func (c *Controls) Faster() { c.speedIdx = min(c.speedIdx+1, len(Speeds)-1) }

// Slower selects the previous speed, if any.
func (c *Controls) Slower() { c.speedIdx = max(c.speedIdx-1, 0) }

// HandleKeys applies P (pause), = (faster) and - (slower).
func (c *Controls) HandleKeys() {
	if rl.IsKeyPressed(rl.KeyP) {
		c.Paused = !c.Paused
	}
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		c.Faster()
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		c.Slower()
	}
}

// Draw renders the pause and speed buttons at the top right.
func (c *Controls) Draw(screenWidth int32) {
	const w, h, gap = 64, 24, 6
	x := float32(screenWidth) - 3*w - 3*gap
	y := float32(10)

	label := "Pause"
	if c.Paused {
		label = "Resume"
	}
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: h}, label) {
		c.Paused = !c.Paused
	}
	x += w + gap
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: h}, "Slower") {
		c.Slower()
	}
	x += w + gap
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: h}, "Faster") {
		c.Faster()
	}
}
