package volume

import (
	"fmt"
	"image"
	"image/color"

	"github.com/phinze/mixdeck/internal/action"
	"github.com/phinze/mixdeck/internal/render"
)

var (
	colorLevel = color.RGBA{0, 255, 0, 255}
	colorMuted = color.RGBA{255, 0, 0, 255}
	colorIcon  = color.RGBA{255, 255, 255, 230}
	colorOff   = color.RGBA{128, 128, 128, 200}
)

const iconSize = 24

// Title returns the label for a level: MUTE, MAX, a zero padded single
// digit, or the plain percentage.
func Title(level int, muted bool) string {
	switch {
	case muted:
		return "MUTE"
	case level >= 100:
		return "MAX"
	case level < 10:
		return fmt.Sprintf("0%d", max(level, 0))
	default:
		return fmt.Sprintf("%d", level)
	}
}

func renderTile(s snapshot) (action.Frame, error) {
	img := image.NewRGBA(image.Rect(0, 0, render.KeySize, render.KeySize))

	if !s.Available {
		icon, err := render.SVG(render.IconMutedSVG, iconSize, colorOff)
		if err != nil {
			return action.Frame{}, err
		}
		render.Overlay(img, icon, image.Pt((render.KeySize-iconSize)/2, 6))
		return action.WithTitle(render.NewBitmap(img), "No Out"), nil
	}

	bar := colorLevel
	svg := render.IconVolumeSVG
	if s.Muted {
		bar = colorMuted
		svg = render.IconMutedSVG
	}
	render.LevelBar(img, s.Level, bar)

	icon, err := render.SVG(svg, iconSize, colorIcon)
	if err != nil {
		return action.Frame{}, err
	}
	render.Overlay(img, icon, image.Pt((render.KeySize-iconSize)/2, 6))

	return action.WithTitle(render.NewBitmap(img), Title(s.Level, s.Muted)), nil
}
