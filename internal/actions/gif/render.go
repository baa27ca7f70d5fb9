package gif

import (
	"image"
	"image/color"

	"github.com/phinze/mixdeck/internal/action"
	"github.com/phinze/mixdeck/internal/render"
)

const fallbackTitle = "No GIF"

var colorPlaceholder = color.RGBA{128, 128, 128, 220}

// renderTile returns a prepared frame of the current sequence, or the
// placeholder. Frames carry no title except to clear the placeholder's.
func (a *Action) renderTile(s snapshot) (action.Frame, error) {
	if !s.Available || a.seq == nil || s.Index >= len(a.seq.Frames) {
		return placeholder()
	}
	return action.Frame{Bitmap: a.seq.Frames[s.Index], HasTitle: s.ClearTitle}, nil
}

func placeholder() (action.Frame, error) {
	const size = 36
	img := image.NewRGBA(image.Rect(0, 0, render.KeySize, render.KeySize))
	icon, err := render.SVG(render.IconNoImageSVG, size, colorPlaceholder)
	if err != nil {
		return action.Frame{}, err
	}
	off := (render.KeySize - size) / 2
	render.Overlay(img, icon, image.Pt(off, off-6))
	return action.WithTitle(render.NewBitmap(img), fallbackTitle), nil
}
