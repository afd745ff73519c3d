package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flap/components"
	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
)

var (
	skyColor    = rl.Color{R: 78, G: 192, B: 202, A: 255}
	pipeColor   = rl.Color{R: 84, G: 168, B: 48, A: 255}
	pipeEdge    = rl.Color{R: 36, G: 92, B: 20, A: 255}
	groundColor = rl.Color{R: 222, G: 216, B: 148, A: 255}
	grassColor  = rl.Color{R: 112, G: 190, B: 48, A: 255}
	birdColor   = rl.Color{R: 250, G: 200, B: 40, A: 255}
)

// Renderer draws snapshots. Wing frames come from the snapshot, so drawing
// the same snapshot twice holds the pose.
type Renderer struct {
	assets *Assets
	agentW float32
	agentH float32
	pieceW float32
	pieceH float32
	width  int32
	height int32
}

// New creates a renderer for the configured field.
func New(cfg *config.Config, assets *Assets) *Renderer {
	if assets == nil {
		assets = &Assets{}
	}
	return &Renderer{
		assets: assets,
		agentW: float32(cfg.Agent.Width),
		agentH: float32(cfg.Agent.Height),
		pieceW: float32(cfg.Obstacle.PieceWidth),
		pieceH: float32(cfg.Obstacle.PieceHeight),
		width:  int32(cfg.Screen.Width),
		height: int32(cfg.Screen.Height),
	}
}

// Draw renders s.
func (r *Renderer) Draw(s game.Snapshot) {
	r.drawBackground()
	for _, o := range s.Obstacles {
		r.drawObstacle(o)
	}
	r.drawGround(s.Ground)
	for _, a := range s.Agents {
		r.drawAgent(a)
	}
}

func (r *Renderer) drawBackground() {
	if r.assets.textured {
		rl.DrawTexture(r.assets.Background, 0, 0, rl.White)
		return
	}
	rl.ClearBackground(skyColor)
}

func (r *Renderer) drawObstacle(o game.ObstacleView) {
	if r.assets.textured {
		rl.DrawTexture(r.assets.PipeTop, int32(o.X), int32(o.Top), rl.White)
		rl.DrawTexture(r.assets.PipeBottom, int32(o.X), int32(o.Bottom), rl.White)
		return
	}
	top := rl.Rectangle{X: float32(o.X), Y: float32(o.Top), Width: r.pieceW, Height: r.pieceH}
	bottom := rl.Rectangle{X: float32(o.X), Y: float32(o.Bottom), Width: r.pieceW, Height: r.pieceH}
	for _, rect := range []rl.Rectangle{top, bottom} {
		rl.DrawRectangleRec(rect, pipeColor)
		rl.DrawRectangleLinesEx(rect, 3, pipeEdge)
	}
}

func (r *Renderer) drawGround(g game.GroundView) {
	if r.assets.textured {
		rl.DrawTexture(r.assets.Base, int32(g.X1), int32(g.Y), rl.White)
		rl.DrawTexture(r.assets.Base, int32(g.X2), int32(g.Y), rl.White)
		return
	}
	y := int32(g.Y)
	rl.DrawRectangle(0, y, r.width, r.height-y, groundColor)
	rl.DrawRectangle(0, y, r.width, 12, grassColor)
}

// drawAgent rotates the sprite about its center. Tilt is counterclockwise.
func (r *Renderer) drawAgent(a game.AgentView) {
	center := rl.Vector2{X: float32(a.X) + r.agentW/2, Y: float32(a.Y) + r.agentH/2}
	dst := rl.Rectangle{X: center.X, Y: center.Y, Width: r.agentW, Height: r.agentH}
	origin := rl.Vector2{X: r.agentW / 2, Y: r.agentH / 2}
	rotation := float32(-a.Tilt)

	if r.assets.textured {
		tex := r.assets.Bird[min(max(a.Frame, 0), components.WingFrames-1)]
		src := rl.Rectangle{Width: float32(tex.Width), Height: float32(tex.Height)}
		rl.DrawTexturePro(tex, src, dst, origin, rotation, rl.White)
		return
	}
	rl.DrawRectanglePro(dst, origin, rotation, birdColor)
	eye := rl.Vector2{X: center.X + r.agentW/4, Y: center.Y - r.agentH/6}
	rl.DrawCircleV(eye, 4, rl.Black)
}
