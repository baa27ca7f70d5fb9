package render

import (
	"image"
	"image/color"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/image/draw"
)

// Fit scales src to a size x size image, preserving aspect ratio and
// centering it on a transparent background.
func Fit(src image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	sb := src.Bounds()
	if sb.Empty() {
		return dst
	}

	w, h := size, size
	if sb.Dx() > sb.Dy() {
		h = size * sb.Dy() / sb.Dx()
	} else if sb.Dy() > sb.Dx() {
		w = size * sb.Dx() / sb.Dy()
	}
	x := (size - w) / 2
	y := (size - h) / 2

	draw.CatmullRom.Scale(dst, image.Rect(x, y, x+w, y+h), src, sb, draw.Over, nil)
	return dst
}

// Fill paints rect on img with col.
func Fill(img *image.RGBA, rect image.Rectangle, col color.Color) {
	draw.Draw(img, rect, &image.Uniform{col}, image.Point{}, draw.Src)
}

// Overlay draws src onto dst at the given point with alpha blending.
func Overlay(dst *image.RGBA, src image.Image, at image.Point) {
	r := src.Bounds().Sub(src.Bounds().Min).Add(at)
	draw.Draw(dst, r, src, src.Bounds().Min, draw.Over)
}

// LevelBar fills the bottom percent of a size x size tile with col, the way
// a volume meter rises from the bottom edge.
func LevelBar(img *image.RGBA, percent int, col color.Color) {
	b := img.Bounds()
	if percent <= 0 {
		return
	}
	if percent > 100 {
		percent = 100
	}
	fill := b.Dy() * percent / 100
	Fill(img, image.Rect(b.Min.X, b.Max.Y-fill, b.Max.X, b.Max.Y), col)
}

var badgeColors = []color.RGBA{
	{66, 133, 244, 255},
	{219, 68, 55, 255},
	{244, 160, 0, 255},
	{15, 157, 88, 255},
	{171, 71, 188, 255},
	{0, 172, 193, 255},
}

// Badge renders a rounded letter badge for name, used when no real icon is
// available. The color is derived from name so it stays stable.
func Badge(name string, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	var sum int
	for _, r := range name {
		sum += int(r)
	}
	bg := badgeColors[sum%len(badgeColors)]

	radius := size / 5
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if insideRounded(x, y, size, radius) {
				img.Set(x, y, bg)
			}
		}
	}

	letter := "?"
	trimmed := strings.TrimSpace(name)
	if r, _ := utf8.DecodeRuneInString(trimmed); r != utf8.RuneError {
		letter = string(unicode.ToUpper(r))
	}
	textSize := float64(size) * 0.6
	_ = DrawTextCentered(img, letter, size, size/2+int(textSize*0.36), textSize, color.White)

	return img
}

func insideRounded(x, y, size, r int) bool {
	cx, cy := x, y
	switch {
	case x < r:
		cx = r
	case x >= size-r:
		cx = size - r - 1
	}
	switch {
	case y < r:
		cy = r
	case y >= size-r:
		cy = size - r - 1
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}
