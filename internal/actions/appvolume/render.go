package appvolume

import (
	"image"
	"image/color"
	"strconv"

	"github.com/phinze/mixdeck/internal/action"
	"github.com/phinze/mixdeck/internal/render"
)

var (
	colorLevel = color.RGBA{0, 255, 0, 255}
	colorMuted = color.RGBA{255, 0, 0, 255}
	colorText  = color.RGBA{255, 255, 255, 255}
)

const (
	iconSize = 36
	textSize = 16

	// Baseline of the level text in the band below the icon.
	textBaseline = 68
)

const fallbackTitle = "No App"

// label is the text drawn under the icon.
func label(level int, muted bool) string {
	if muted {
		return "MUTE"
	}
	return strconv.Itoa(level)
}

func (a *Action) renderTile(s snapshot) (action.Frame, error) {
	img := image.NewRGBA(image.Rect(0, 0, render.KeySize, render.KeySize))

	if !s.Available {
		// Same face as a muted app at zero, without an icon.
		if err := render.DrawTextCentered(img, label(0, true), render.KeySize, textBaseline, textSize, colorText); err != nil {
			return action.Frame{}, err
		}
		return action.WithTitle(render.NewBitmap(img), fallbackTitle), nil
	}

	bar := colorLevel
	if s.Muted {
		bar = colorMuted
	}
	render.LevelBar(img, s.Level, bar)

	off := (render.KeySize - iconSize) / 2
	render.Overlay(img, a.icons.Icon(s.App, iconSize), image.Pt(off, off))

	if err := render.DrawTextCentered(img, label(s.Level, s.Muted), render.KeySize, textBaseline, textSize, colorText); err != nil {
		return action.Frame{}, err
	}

	// The level is drawn into the image, so any fallback title is cleared.
	return action.WithTitle(render.NewBitmap(img), ""), nil
}
