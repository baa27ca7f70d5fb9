// Package render draws tile bitmaps and encodes them for the host.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"sync"
)

// KeySize is the edge length in pixels of a key tile.
const KeySize = 72

// Bitmap is a rendered tile face. The PNG data URL the host protocol needs is
// computed once, on first use.
type Bitmap struct {
	img image.Image

	once    sync.Once
	dataURL string
	err     error
}

// NewBitmap wraps img.
func NewBitmap(img image.Image) *Bitmap {
	return &Bitmap{img: img}
}

// Image returns the underlying image.
func (b *Bitmap) Image() image.Image {
	return b.img
}

// DataURL returns the bitmap as a base64 PNG data URL.
func (b *Bitmap) DataURL() (string, error) {
	b.once.Do(func() {
		data, err := EncodePNG(b.img)
		if err != nil {
			b.err = err
			return
		}
		b.dataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	})
	return b.dataURL, b.err
}

// Prepare encodes the bitmap eagerly so later DataURL calls are free.
func (b *Bitmap) Prepare() error {
	_, err := b.DataURL()
	return err
}

var encoder = png.Encoder{CompressionLevel: png.BestSpeed}

// EncodePNG encodes img as PNG. Identical images encode to identical bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
