// Package devicetest provides an in-memory device.Device for tests.
package devicetest

import (
	"errors"
	"image"
	"sync"
	"time"

	"github.com/phinze/mixdeck/internal/device"
)

// Fake is a Stream Deck Plus shaped device driven by test code.
type Fake struct {
	mu sync.Mutex

	Keys, Dials int
	Strip       image.Rectangle

	open       bool
	brightness byte
	keyImages  map[device.KeyID]image.Image
	keyWrites  map[device.KeyID]int
	strip      image.Image
	stripSets  int

	onKey    map[device.KeyID]device.PressHandler
	onPress  map[device.DialID]device.PressHandler
	onRotate map[device.DialID]device.RotateHandler
	onTouch  device.TouchHandler

	closed chan struct{}
}

// NewFake returns a device with 8 keys, 4 dials and an 800x100 strip.
func NewFake() *Fake {
	return &Fake{
		Keys:      8,
		Dials:     4,
		Strip:     image.Rect(0, 0, 800, 100),
		keyImages: make(map[device.KeyID]image.Image),
		keyWrites: make(map[device.KeyID]int),
		onKey:     make(map[device.KeyID]device.PressHandler),
		onPress:   make(map[device.DialID]device.PressHandler),
		onRotate:  make(map[device.DialID]device.RotateHandler),
		closed:    make(chan struct{}),
	}
}

func (f *Fake) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = true
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return errors.New("not open")
	}
	f.open = false
	close(f.closed)
	return nil
}

func (f *Fake) ModelName() string { return "Fake" }
func (f *Fake) KeyCount() int     { return f.Keys }
func (f *Fake) DialCount() int    { return f.Dials }

func (f *Fake) KeyRect() (image.Rectangle, error) {
	return image.Rect(0, 0, 72, 72), nil
}

func (f *Fake) StripRect() image.Rectangle { return f.Strip }

func (f *Fake) SetBrightness(percent byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.brightness = percent
	return nil
}

func (f *Fake) SetKeyImage(key device.KeyID, img image.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keyImages[key] = img
	f.keyWrites[key]++
	return nil
}

func (f *Fake) SetStripImage(img image.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strip = img
	f.stripSets++
	return nil
}

func (f *Fake) ClearKey(key device.KeyID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keyImages, key)
	return nil
}

func (f *Fake) OnKey(key device.KeyID, fn device.PressHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onKey[key] = fn
	return nil
}

func (f *Fake) OnDialPress(dial device.DialID, fn device.PressHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onPress[dial] = fn
	return nil
}

func (f *Fake) OnDialRotate(dial device.DialID, fn device.RotateHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onRotate[dial] = fn
	return nil
}

func (f *Fake) OnStripTouch(fn device.TouchHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTouch = fn
	return nil
}

// Listen blocks until Close.
func (f *Fake) Listen(chan error) error {
	<-f.closed
	return nil
}

// Brightness returns the last brightness set.
func (f *Fake) Brightness() byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.brightness
}

// KeyImage returns the image last written to key.
func (f *Fake) KeyImage(key device.KeyID) image.Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keyImages[key]
}

// KeyWrites returns how many times key was written.
func (f *Fake) KeyWrites(key device.KeyID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keyWrites[key]
}

// StripImage returns the last strip image and how many were written.
func (f *Fake) StripImage() (image.Image, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.strip, f.stripSets
}

// PressKey presses and immediately releases key. It reports false when no
// handler is registered.
func (f *Fake) PressKey(key device.KeyID) (bool, error) {
	f.mu.Lock()
	fn := f.onKey[key]
	f.mu.Unlock()
	if fn == nil {
		return false, nil
	}
	return true, fn(released{})
}

// PressDial presses and immediately releases dial.
func (f *Fake) PressDial(dial device.DialID) (bool, error) {
	f.mu.Lock()
	fn := f.onPress[dial]
	f.mu.Unlock()
	if fn == nil {
		return false, nil
	}
	return true, fn(released{})
}

// RotateDial turns dial by delta.
func (f *Fake) RotateDial(dial device.DialID, delta int8) (bool, error) {
	f.mu.Lock()
	fn := f.onRotate[dial]
	f.mu.Unlock()
	if fn == nil {
		return false, nil
	}
	return true, fn(delta)
}

// Touch taps the strip at p.
func (f *Fake) Touch(p image.Point) (bool, error) {
	f.mu.Lock()
	fn := f.onTouch
	f.mu.Unlock()
	if fn == nil {
		return false, nil
	}
	return true, fn(p)
}

// released is a press that has already ended.
type released struct{}

func (released) WaitForRelease() time.Duration { return 0 }
