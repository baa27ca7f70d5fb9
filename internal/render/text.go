package render

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	boldOnce sync.Once
	boldFont *opentype.Font
	boldErr  error

	facesMu sync.Mutex
	faces   = map[float64]font.Face{}
)

// BoldFace returns the bold face at the given point size. Faces are cached
// and shared; font.Face is not safe for concurrent use, so callers draw
// through DrawText which serializes access.
func BoldFace(size float64) (font.Face, error) {
	boldOnce.Do(func() {
		boldFont, boldErr = opentype.Parse(gobold.TTF)
	})
	if boldErr != nil {
		return nil, fmt.Errorf("parse bold font: %w", boldErr)
	}

	facesMu.Lock()
	defer facesMu.Unlock()

	if f, ok := faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(boldFont, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	faces[size] = f
	return f, nil
}

var drawMu sync.Mutex

// DrawText draws text with its baseline at (x, y).
func DrawText(img *image.RGBA, text string, x, y int, size float64, col color.Color) error {
	face, err := BoldFace(size)
	if err != nil {
		return err
	}

	drawMu.Lock()
	defer drawMu.Unlock()

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
	return nil
}

// DrawTextCentered draws text horizontally centered within width, with its
// baseline at y.
func DrawTextCentered(img *image.RGBA, text string, width, y int, size float64, col color.Color) error {
	w, err := MeasureText(text, size)
	if err != nil {
		return err
	}
	return DrawText(img, text, img.Bounds().Min.X+(width-w)/2, y, size, col)
}

// MeasureText returns the advance width of text in pixels.
func MeasureText(text string, size float64) (int, error) {
	face, err := BoldFace(size)
	if err != nil {
		return 0, err
	}

	drawMu.Lock()
	defer drawMu.Unlock()

	return font.MeasureString(face, text).Ceil(), nil
}
