// Package renderer draws episode snapshots with raylib.
//
// Nothing here feeds back into the simulation except Assets.Silhouettes,
// which turns sprite alpha into collision masks before an episode starts.
package renderer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flap/components"
	"github.com/pthm-cable/flap/config"
)

// Sprite file names inside an asset directory.
var birdFiles = [components.WingFrames]string{"bird1.png", "bird2.png", "bird3.png"}

const (
	pipeFile       = "pipe.png"
	baseFile       = "base.png"
	backgroundFile = "bg.png"

	spriteScale    = 2
	alphaThreshold = 127
)

// Assets holds loaded textures. The zero value draws primitive shapes.
type Assets struct {
	Bird       [components.WingFrames]rl.Texture2D
	PipeBottom rl.Texture2D
	PipeTop    rl.Texture2D
	Base       rl.Texture2D
	Background rl.Texture2D

	textured    bool
	silhouettes components.Silhouettes
}

// LoadAssets loads sprites from dir, scaled 2x. An empty dir or a directory
// without sprites yields primitive assets with bounding-box silhouettes.
// Must be called after the window is created.
func LoadAssets(dir string, cfg *config.Config) (*Assets, error) {
	a := &Assets{silhouettes: components.BoxSilhouettes(
		cfg.Agent.Width, cfg.Agent.Height, cfg.Obstacle.PieceWidth, cfg.Obstacle.PieceHeight)}
	if dir == "" {
		return a, nil
	}
	if _, err := os.Stat(filepath.Join(dir, pipeFile)); errors.Is(err, os.ErrNotExist) {
		return a, nil
	}

	var wings [components.WingFrames]components.Silhouette
	for i, name := range birdFiles {
		img, err := loadScaled(filepath.Join(dir, name))
		if err != nil {
			a.Unload()
			return nil, err
		}
		wings[i] = maskOf(img)
		a.Bird[i] = rl.LoadTextureFromImage(img)
		rl.UnloadImage(img)
	}

	pipe, err := loadScaled(filepath.Join(dir, pipeFile))
	if err != nil {
		a.Unload()
		return nil, err
	}
	bottomMask := maskOf(pipe)
	a.PipeBottom = rl.LoadTextureFromImage(pipe)
	rl.ImageFlipVertical(pipe)
	a.PipeTop = rl.LoadTextureFromImage(pipe)
	rl.UnloadImage(pipe)

	for _, t := range []struct {
		name string
		dst  *rl.Texture2D
	}{
		{baseFile, &a.Base},
		{backgroundFile, &a.Background},
	} {
		img, err := loadScaled(filepath.Join(dir, t.name))
		if err != nil {
			a.Unload()
			return nil, err
		}
		*t.dst = rl.LoadTextureFromImage(img)
		rl.UnloadImage(img)
	}

	a.textured = true
	a.silhouettes = components.Silhouettes{
		Agent:  wings[0],
		Wings:  wings,
		Top:    bottomMask.FlipVertical(),
		Bottom: bottomMask,
	}
	return a, nil
}

// Textured reports whether sprites were loaded.
func (a *Assets) Textured() bool { return a.textured }

// Silhouettes returns collision footprints matching the loaded sprites.
func (a *Assets) Silhouettes() components.Silhouettes { return a.silhouettes }

// Unload frees any loaded textures.
func (a *Assets) Unload() {
	for _, t := range []rl.Texture2D{a.Bird[0], a.Bird[1], a.Bird[2], a.PipeBottom, a.PipeTop, a.Base, a.Background} {
		if t.ID != 0 {
			rl.UnloadTexture(t)
		}
	}
	*a = Assets{silhouettes: a.silhouettes}
}

func loadScaled(path string) (*rl.Image, error) {
	img := rl.LoadImage(path)
	if img == nil || img.Width == 0 || img.Height == 0 {
		return nil, fmt.Errorf("loading sprite %s", path)
	}
	rl.ImageResizeNN(img, img.Width*spriteScale, img.Height*spriteScale)
	return img, nil
}

func maskOf(img *rl.Image) *components.Mask {
	w, h := int(img.Width), int(img.Height)
	colors := rl.LoadImageColors(img)
	defer rl.UnloadImageColors(colors)
	return components.MaskFromAlpha(w, h, func(x, y int) uint8 {
		return colors[y*w+x].A
	}, alphaThreshold)
}
