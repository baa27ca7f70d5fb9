// Package emulator draws a Stream Deck Plus in a window so deck mode can run
// without hardware.
package emulator

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/phinze/mixdeck/internal/device"
)

var errClosed = errors.New("emulator: device is not open")

// Emulator implements device.Device on an ebiten window.
type Emulator struct {
	mu sync.RWMutex

	open       bool
	brightness byte
	keys       [keyCount]*ebiten.Image
	keyPixels  [keyCount]*image.RGBA
	strip      *ebiten.Image
	stripDirty *image.RGBA

	keyHandlers    [keyCount][]device.PressHandler
	pressHandlers  [dialCount][]device.PressHandler
	rotateHandlers [dialCount][]device.RotateHandler
	touchHandlers  []device.TouchHandler

	errCh chan error
	stop  chan struct{}
	done  chan struct{}

	// held is the release channel of the key or dial under the mouse.
	held chan struct{}
}

// New returns a closed emulator.
func New() *Emulator {
	return &Emulator{
		brightness: 80,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (e *Emulator) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open {
		return errors.New("emulator: device is already open")
	}
	e.open = true
	return nil
}

func (e *Emulator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return errClosed
	}
	e.open = false
	close(e.stop)
	return nil
}

func (e *Emulator) ModelName() string { return "Stream Deck Plus (Emulator)" }

func (e *Emulator) KeyCount() int { return keyCount }

func (e *Emulator) DialCount() int { return dialCount }

func (e *Emulator) KeyRect() (image.Rectangle, error) {
	return image.Rect(0, 0, keySize, keySize), nil
}

func (e *Emulator) StripRect() image.Rectangle {
	return image.Rect(0, 0, stripWidth, stripHeight)
}

func (e *Emulator) SetBrightness(percent byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.brightness = min(percent, 100)
	return nil
}

func (e *Emulator) SetKeyImage(key device.KeyID, img image.Image) error {
	i, err := keyIndex(key)
	if err != nil {
		return err
	}
	rgba := image.NewRGBA(image.Rect(0, 0, keySize, keySize))
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)

	e.mu.Lock()
	defer e.mu.Unlock()
	// ebiten images are created on the game goroutine in Draw.
	e.keyPixels[i] = rgba
	return nil
}

func (e *Emulator) SetStripImage(img image.Image) error {
	rgba := image.NewRGBA(image.Rect(0, 0, stripWidth, stripHeight))
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stripDirty = rgba
	return nil
}

func (e *Emulator) ClearKey(key device.KeyID) error {
	return e.SetKeyImage(key, image.NewUniform(color.Black))
}

func (e *Emulator) OnKey(key device.KeyID, fn device.PressHandler) error {
	i, err := keyIndex(key)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keyHandlers[i] = append(e.keyHandlers[i], fn)
	return nil
}

func (e *Emulator) OnDialPress(dial device.DialID, fn device.PressHandler) error {
	i, err := dialIndex(dial)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pressHandlers[i] = append(e.pressHandlers[i], fn)
	return nil
}

func (e *Emulator) OnDialRotate(dial device.DialID, fn device.RotateHandler) error {
	i, err := dialIndex(dial)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rotateHandlers[i] = append(e.rotateHandlers[i], fn)
	return nil
}

func (e *Emulator) OnStripTouch(fn device.TouchHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touchHandlers = append(e.touchHandlers, fn)
	return nil
}

// Listen blocks until the window closes. Input is delivered by RunGUI.
func (e *Emulator) Listen(errCh chan error) error {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return errClosed
	}
	e.errCh = errCh
	e.mu.Unlock()

	<-e.done
	return nil
}

// RunGUI runs the window loop. It must be called from the main goroutine
// and blocks until the window is closed or the emulator is closed.
func (e *Emulator) RunGUI() error {
	e.mu.RLock()
	open := e.open
	e.mu.RUnlock()
	if !open {
		return errClosed
	}

	ebiten.SetWindowSize(windowWidth, windowHeight)
	ebiten.SetWindowTitle("mixdeck emulator")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeDisabled)

	err := ebiten.RunGame(&game{emu: e})
	close(e.done)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// report forwards a handler error without blocking.
func (e *Emulator) report(err error) {
	if err == nil {
		return
	}
	e.mu.RLock()
	ch := e.errCh
	e.mu.RUnlock()
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

func (e *Emulator) press(handlers []device.PressHandler) {
	release := make(chan struct{})
	e.held = release
	p := &hold{start: time.Now(), release: release}
	for _, h := range handlers {
		go func() { e.report(h(p)) }()
	}
}

func (e *Emulator) release() {
	if e.held != nil {
		close(e.held)
		e.held = nil
	}
}

// hold is a mouse-held key or dial.
type hold struct {
	start   time.Time
	release chan struct{}
}

func (h *hold) WaitForRelease() time.Duration {
	<-h.release
	return time.Since(h.start)
}

func keyIndex(key device.KeyID) (int, error) {
	i := int(key) - 1
	if i < 0 || i >= keyCount {
		return 0, fmt.Errorf("emulator: invalid key %d", key)
	}
	return i, nil
}

func dialIndex(dial device.DialID) (int, error) {
	i := int(dial) - 1
	if i < 0 || i >= dialCount {
		return 0, fmt.Errorf("emulator: invalid dial %d", dial)
	}
	return i, nil
}

// game implements ebiten.Game.
type game struct {
	emu  *Emulator
	dial *ebiten.Image
}

func (g *game) Update() error {
	select {
	case <-g.emu.stop:
		return ebiten.Termination
	default:
	}

	e := g.emu
	mx, my := ebiten.CursorPosition()
	cursor := image.Pt(mx, my)

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		e.mu.RLock()
		switch {
		case keyAt(cursor) > 0:
			e.press(e.keyHandlers[keyAt(cursor)-1])
		case dialAt(cursor) > 0:
			e.press(e.pressHandlers[dialAt(cursor)-1])
		case cursor.In(stripBounds):
			p := cursor.Sub(stripBounds.Min)
			for _, h := range e.touchHandlers {
				go func() { e.report(h(p)) }()
			}
		}
		e.mu.RUnlock()
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		e.release()
	}

	if _, wy := ebiten.Wheel(); wy != 0 {
		if d := dialAt(cursor); d > 0 {
			delta := int8(max(-5, min(5, int(wy))))
			if delta == 0 {
				delta = 1
				if wy < 0 {
					delta = -1
				}
			}
			e.mu.RLock()
			for _, h := range e.rotateHandlers[d-1] {
				go func() { e.report(h(delta)) }()
			}
			e.mu.RUnlock()
		}
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	e := g.emu
	screen.Fill(color.RGBA{30, 30, 30, 255})

	e.mu.Lock()
	for i, px := range e.keyPixels {
		if px != nil {
			e.keys[i] = ebiten.NewImageFromImage(px)
			e.keyPixels[i] = nil
		}
	}
	if e.stripDirty != nil {
		e.strip = ebiten.NewImageFromImage(e.stripDirty)
		e.stripDirty = nil
	}
	scale := float32(e.brightness) / 100
	e.mu.Unlock()

	ebitenutil.DebugPrintAt(screen, "mixdeck emulator", windowWidth/2-48, 8)

	for i := range keyCount {
		r := keyBounds(i)
		fillRect(screen, r.Inset(-2), colorFrame)
		if img := e.keys[i]; img != nil {
			op := &ebiten.DrawImageOptions{Filter: ebiten.FilterNearest}
			op.GeoM.Scale(keyDisplaySize/keySize, keyDisplaySize/keySize)
			op.GeoM.Translate(float64(r.Min.X), float64(r.Min.Y))
			op.ColorScale.Scale(scale, scale, scale, 1)
			screen.DrawImage(img, op)
		}
	}

	fillRect(screen, stripBounds.Inset(-2), colorFrame)
	if e.strip != nil {
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(float64(stripBounds.Min.X), float64(stripBounds.Min.Y))
		op.ColorScale.Scale(scale, scale, scale, 1)
		screen.DrawImage(e.strip, op)
	}

	if g.dial == nil {
		g.dial = dialFace()
	}
	for i := range dialCount {
		c := dialCenter(i)
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(float64(c.X-dialSize/2), float64(c.Y-dialSize/2))
		screen.DrawImage(g.dial, op)
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("D%d", i+1), c.X-8, c.Y-6)
	}

	ebitenutil.DebugPrintAt(screen, "click keys and dials, scroll over dials, tap the strip", 10, windowHeight-18)
}

func (g *game) Layout(int, int) (int, int) {
	return windowWidth, windowHeight
}

var colorFrame = color.RGBA{60, 60, 60, 255}

func fillRect(dst *ebiten.Image, r image.Rectangle, c color.Color) {
	dst.SubImage(r).(*ebiten.Image).Fill(c)
}

// dialFace draws a knob as two concentric discs.
func dialFace() *ebiten.Image {
	img := image.NewRGBA(image.Rect(0, 0, dialSize, dialSize))
	r := dialSize / 2
	for y := range dialSize {
		for x := range dialSize {
			dx, dy := x-r, y-r
			switch d := dx*dx + dy*dy; {
			case d <= (r-10)*(r-10):
				img.Set(x, y, color.RGBA{55, 55, 55, 255})
			case d <= r*r:
				img.Set(x, y, color.RGBA{80, 80, 80, 255})
			}
		}
	}
	return ebiten.NewImageFromImage(img)
}
