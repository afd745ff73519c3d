package main

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flap/components"
	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/observer"
	"github.com/pthm-cable/flap/renderer"
	"github.com/pthm-cable/flap/ui"
)

// view owns the window and everything drawn into it.
type view struct {
	cfg      *config.Config
	assets   *renderer.Assets
	rend     *renderer.Renderer
	hud      *ui.HUD
	controls ui.Controls
	legend   string
	obs      *observer.Server
}

func openView(cfg *config.Config, opts options, title string) (*view, error) {
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), title)
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	assets, err := renderer.LoadAssets(opts.assets, cfg)
	if err != nil {
		rl.CloseWindow()
		return nil, err
	}
	return &view{
		cfg:    cfg,
		assets: assets,
		rend:   renderer.New(cfg, assets),
		hud:    ui.NewHUD(),
		legend: "[P] pause  [-/=] speed",
		obs:    opts.observer,
	}, nil
}

func (v *view) close() {
	v.assets.Unload()
	rl.CloseWindow()
}

// silhouettes returns sprite masks when sprites were loaded and nil otherwise,
// which keeps episodes on bounding boxes.
func (v *view) silhouettes() *components.Silhouettes {
	if !v.assets.Textured() {
		return nil
	}
	s := v.assets.Silhouettes()
	return &s
}

// draw renders one frame. Fields of data that the snapshot already carries
// are filled in here.
func (v *view) draw(s game.Snapshot, data ui.HUDData) {
	data.Tick = s.Tick
	data.Score = s.Score
	data.Alive = s.Alive
	data.Speed = v.controls.Speed()
	data.Paused = v.controls.Paused
	data.FPS = rl.GetFPS()
	data.ScreenWidth = int32(v.cfg.Screen.Width)
	data.ScreenHeight = int32(v.cfg.Screen.Height)
	if v.obs != nil {
		data.Observers = v.obs.Clients()
		data.Dropped = v.obs.Dropped()
	}

	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)
	v.rend.Draw(s)
	v.hud.Draw(data)
	v.controls.Draw(data.ScreenWidth)
	v.hud.DrawControls(data.ScreenHeight, v.legend)
	rl.EndDrawing()
}
