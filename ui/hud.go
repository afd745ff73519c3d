package ui

import (
	"fmt"

	"github.com/dustin/go-humanize"
	rl "github.com/gen2brain/raylib-go/raylib"
)

// HUDData holds everything the heads-up display shows.
type HUDData struct {
	Mode       string
	Generation int
	Tick       int
	Score      int
	Alive      int
	Population int
	Best       float64 // Best fitness so far; shown when Population > 1
	Speed      int
	FPS        int32
	Paused     bool
	Finished   bool

	Observers int
	Dropped   uint64

	ScreenWidth  int32
	ScreenHeight int32
}

// HUD renders the score and the stats panel.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{renderer: NewRenderer()}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	r := h.renderer
	t := r.Theme

	r.DrawCentered(humanize.Comma(int64(data.Score)), data.ScreenWidth/2, 40, t.ScoreFontSize)

	lines := 4
	if data.Population > 1 {
		lines += 2
	}
	if data.Observers > 0 {
		lines++
	}
	width := int32(200)
	r.DrawPanel(t.Padding, t.Padding, width, int32(lines)*t.LineHeight+t.Padding*2)

	x, y := t.Padding*2, t.Padding*2
	y = r.DrawLabelValue(x, y, "Mode", data.Mode)
	if data.Population > 1 {
		y = r.DrawLabelValue(x, y, "Generation", humanize.Comma(int64(data.Generation)))
		y = r.DrawLabelValue(x, y, "Best", humanize.FormatFloat("#,###.##", data.Best))
	}
	y = r.DrawLabelValue(x, y, "Alive", fmt.Sprintf("%d / %d", data.Alive, max(data.Population, 1)))
	y = r.DrawLabelValue(x, y, "Tick", humanize.Comma(int64(data.Tick)))
	y = r.DrawLabelValue(x, y, "Speed", fmt.Sprintf("%dx  %d fps", data.Speed, data.FPS))
	if data.Observers > 0 {
		r.DrawLabelValue(x, y, "Observers", fmt.Sprintf("%d (%s dropped)", data.Observers, humanize.Comma(int64(data.Dropped))))
	}

	switch {
	case data.Finished:
		r.DrawCentered("GAME OVER", data.ScreenWidth/2, data.ScreenHeight/2-40, 32)
	case data.Paused:
		r.DrawCentered("PAUSED", data.ScreenWidth/2, data.ScreenHeight/2-40, 32)
	}
}

// DrawControls renders the key legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-22, 14, rl.DarkGray)
}
