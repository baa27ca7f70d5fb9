package device

import (
	"fmt"
	"image"
	"time"

	"rafaelmartins.com/p/streamdeck"
)

// Hardware adapts a USB Stream Deck.
type Hardware struct {
	dev *streamdeck.Device
}

// NewHardware wraps dev.
func NewHardware(dev *streamdeck.Device) *Hardware {
	return &Hardware{dev: dev}
}

// Find returns the device with the given serial number, or the first one
// found when serial is empty. The device is opened.
func Find(serial string, timeout time.Duration) (*Hardware, error) {
	type result struct {
		dev *streamdeck.Device
		err error
	}
	ch := make(chan result, 1)

	// Enumeration can hang when the USB stack is in a bad state.
	go func() {
		dev, err := streamdeck.GetDevice(serial)
		if err == nil {
			err = dev.Open()
		}
		ch <- result{dev, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("find stream deck: %w", r.err)
		}
		return NewHardware(r.dev), nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("find stream deck: timed out after %s", timeout)
	}
}

func (h *Hardware) Open() error {
	if h.dev.IsOpen() {
		return nil
	}
	return h.dev.Open()
}

func (h *Hardware) Close() error { return h.dev.Close() }

func (h *Hardware) ModelName() string { return h.dev.GetModelName() }

func (h *Hardware) KeyCount() int { return int(h.dev.GetKeyCount()) }

func (h *Hardware) DialCount() int { return int(h.dev.GetDialCount()) }

func (h *Hardware) KeyRect() (image.Rectangle, error) {
	return h.dev.GetKeyImageRectangle()
}

func (h *Hardware) StripRect() image.Rectangle {
	if !h.dev.GetTouchStripSupported() {
		return image.Rectangle{}
	}
	r, err := h.dev.GetTouchStripImageRectangle()
	if err != nil {
		return image.Rectangle{}
	}
	return r
}

func (h *Hardware) SetBrightness(percent byte) error {
	return h.dev.SetBrightness(percent)
}

func (h *Hardware) SetKeyImage(key KeyID, img image.Image) error {
	return h.dev.SetKeyImage(streamdeck.KeyID(key), img)
}

func (h *Hardware) SetStripImage(img image.Image) error {
	return h.dev.SetTouchStripImage(img)
}

func (h *Hardware) ClearKey(key KeyID) error {
	return h.dev.ClearKey(streamdeck.KeyID(key))
}

func (h *Hardware) OnKey(key KeyID, fn PressHandler) error {
	return h.dev.AddKeyHandler(streamdeck.KeyID(key), func(_ *streamdeck.Device, k *streamdeck.Key) error {
		return fn(k)
	})
}

func (h *Hardware) OnDialPress(dial DialID, fn PressHandler) error {
	return h.dev.AddDialSwitchHandler(streamdeck.DialID(dial), func(_ *streamdeck.Device, d *streamdeck.Dial) error {
		return fn(d)
	})
}

func (h *Hardware) OnDialRotate(dial DialID, fn RotateHandler) error {
	return h.dev.AddDialRotateHandler(streamdeck.DialID(dial), func(_ *streamdeck.Device, _ *streamdeck.Dial, delta int8) error {
		return fn(delta)
	})
}

func (h *Hardware) OnStripTouch(fn TouchHandler) error {
	return h.dev.AddTouchStripTouchHandler(func(_ *streamdeck.Device, _ streamdeck.TouchStripTouchType, p image.Point) error {
		return fn(p)
	})
}

func (h *Hardware) Listen(errCh chan error) error {
	return h.dev.Listen(errCh)
}
