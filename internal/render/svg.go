package render

import (
	_ "embed"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
)

//go:embed icons/volume.svg
var IconVolumeSVG string

//go:embed icons/volume-x.svg
var IconMutedSVG string

//go:embed icons/image-off.svg
var IconNoImageSVG string

// SVG rasterizes an SVG document into a size x size image, replacing
// currentColor with col.
func SVG(svg string, size int, col color.Color) (*image.RGBA, error) {
	r, g, b, _ := col.RGBA()
	hex := fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
	return SVGReader(strings.NewReader(strings.ReplaceAll(svg, "currentColor", hex)), size)
}

// SVGReader rasterizes an SVG stream into a size x size image.
func SVGReader(r io.Reader, size int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(r, oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.Transparent}, image.Point{}, draw.Src)

	icon.SetTarget(0, 0, float64(size), float64(size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	return img, nil
}
