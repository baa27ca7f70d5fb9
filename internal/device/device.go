// Package device abstracts a directly attached Stream Deck so deck mode can
// drive either real hardware or the on-screen emulator.
package device

import (
	"image"
	"time"
)

// Device is a Stream Deck with keys and, optionally, dials and a touch strip.
type Device interface {
	Open() error
	Close() error

	ModelName() string
	KeyCount() int
	DialCount() int
	KeyRect() (image.Rectangle, error)

	// StripRect returns the touch strip bounds, or an empty rectangle when
	// the device has no strip.
	StripRect() image.Rectangle

	SetBrightness(percent byte) error
	SetKeyImage(key KeyID, img image.Image) error
	SetStripImage(img image.Image) error
	ClearKey(key KeyID) error

	OnKey(key KeyID, fn PressHandler) error
	OnDialPress(dial DialID, fn PressHandler) error
	OnDialRotate(dial DialID, fn RotateHandler) error
	OnStripTouch(fn TouchHandler) error

	// Listen blocks delivering input until the device closes or fails.
	// Handler errors are sent to errCh when it is non-nil.
	Listen(errCh chan error) error
}

// KeyID is a 1-based key index, row-major from the top left.
type KeyID byte

// DialID is a 1-based dial index, left to right.
type DialID byte

// Press is a held key or dial.
type Press interface {
	// WaitForRelease blocks until the input is released and returns how
	// long it was held.
	WaitForRelease() time.Duration
}

type (
	PressHandler  func(p Press) error
	RotateHandler func(delta int8) error
	TouchHandler  func(p image.Point) error
)

// Keys returns every key ID of d.
func Keys(d Device) []KeyID {
	ids := make([]KeyID, d.KeyCount())
	for i := range ids {
		ids[i] = KeyID(i + 1)
	}
	return ids
}

// Dials returns every dial ID of d.
func Dials(d Device) []DialID {
	ids := make([]DialID, d.DialCount())
	for i := range ids {
		ids[i] = DialID(i + 1)
	}
	return ids
}

// DialAt maps a strip position to the dial below it. The strip is divided
// into equal segments, one per dial.
func DialAt(strip image.Rectangle, dials int, p image.Point) (DialID, bool) {
	if dials <= 0 || strip.Empty() || !p.In(strip) {
		return 0, false
	}
	seg := strip.Dx() / dials
	if seg <= 0 {
		return 0, false
	}
	i := (p.X - strip.Min.X) / seg
	if i >= dials {
		i = dials - 1
	}
	return DialID(i + 1), true
}

// Segment returns the strip area above dial.
func Segment(strip image.Rectangle, dials int, dial DialID) image.Rectangle {
	if dials <= 0 || dial == 0 || int(dial) > dials {
		return image.Rectangle{}
	}
	seg := strip.Dx() / dials
	x := strip.Min.X + (int(dial)-1)*seg
	return image.Rect(x, strip.Min.Y, x+seg, strip.Max.Y)
}
