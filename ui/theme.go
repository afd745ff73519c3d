// Package ui draws the heads-up display and reads human input.
package ui

import rl "github.com/gen2brain/raylib-go/raylib"

// Theme holds UI styling constants.
type Theme struct {
	PanelBg       rl.Color
	PanelBorder   rl.Color
	SectionHeader rl.Color
	LabelColor    rl.Color
	ValueColor    rl.Color
	ScoreColor    rl.Color
	ScoreShadow   rl.Color

	Padding       int32
	LineHeight    int32
	LabelWidth    int32
	FontSize      int32
	ScoreFontSize int32
}

// DefaultTheme returns the default UI theme.
func DefaultTheme() Theme {
	return Theme{
		PanelBg:       rl.Color{R: 20, G: 25, B: 30, A: 200},
		PanelBorder:   rl.Color{R: 60, G: 70, B: 80, A: 255},
		SectionHeader: rl.Yellow,
		LabelColor:    rl.LightGray,
		ValueColor:    rl.White,
		ScoreColor:    rl.White,
		ScoreShadow:   rl.Color{R: 0, G: 0, B: 0, A: 160},
		Padding:       8,
		LineHeight:    18,
		LabelWidth:    84,
		FontSize:      14,
		ScoreFontSize: 48,
	}
}

// Renderer handles UI drawing with consistent styling.
type Renderer struct {
	Theme Theme
}

// NewRenderer creates a renderer with the default theme.
func NewRenderer() *Renderer {
	return &Renderer{Theme: DefaultTheme()}
}

// DrawPanel draws a panel background with border.
func (r *Renderer) DrawPanel(x, y, width, height int32) {
	rl.DrawRectangle(x, y, width, height, r.Theme.PanelBg)
	rl.DrawRectangleLines(x, y, width, height, r.Theme.PanelBorder)
}

// DrawLabelValue draws a label and value on the same line and returns the next Y.
func (r *Renderer) DrawLabelValue(x, y int32, label, value string) int32 {
	rl.DrawText(label, x, y, r.Theme.FontSize, r.Theme.LabelColor)
	rl.DrawText(value, x+r.Theme.LabelWidth, y, r.Theme.FontSize, r.Theme.ValueColor)
	return y + r.Theme.LineHeight
}

// DrawCentered draws text horizontally centered on cx with a drop shadow.
func (r *Renderer) DrawCentered(text string, cx, y, size int32) {
	w := rl.MeasureText(text, size)
	rl.DrawText(text, cx-w/2+2, y+2, size, r.Theme.ScoreShadow)
	rl.DrawText(text, cx-w/2, y, size, r.Theme.ScoreColor)
}
