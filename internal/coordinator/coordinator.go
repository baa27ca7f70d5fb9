// Package coordinator runs actions directly on an attached device: it places
// them on keys and dials, routes input to them and draws what they publish.
package coordinator

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/phinze/mixdeck/internal/action"
	"github.com/phinze/mixdeck/internal/config"
	"github.com/phinze/mixdeck/internal/device"
	"github.com/phinze/mixdeck/internal/logger"
	"github.com/phinze/mixdeck/internal/render"
)

// RenderInterval is how often dirty tiles are flushed to the device.
const RenderInterval = 40 * time.Millisecond

// Creator makes an action from its name.
type Creator interface {
	Create(name string) (action.Action, error)
}

// Coordinator owns the actions placed on one device.
type Coordinator struct {
	dev     device.Device
	creator Creator
	layout  config.DeckConfig
	log     *zerolog.Logger

	keys  map[device.KeyID]*slot
	dials map[device.DialID]*slot

	stripRect image.Rectangle
	keySize   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stop   sync.Once
}

// New creates a coordinator for dev. Nothing runs until Start.
func New(dev device.Device, creator Creator, layout config.DeckConfig) *Coordinator {
	return &Coordinator{
		dev:     dev,
		creator: creator,
		layout:  layout,
		log:     logger.WithComponent("coordinator"),
		keys:    make(map[device.KeyID]*slot),
		dials:   make(map[device.DialID]*slot),
	}
}

// Start sets up the deck and runs it until ctx is cancelled or the device
// stops listening.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.Setup(ctx); err != nil {
		return err
	}
	return c.Run()
}

// Setup initializes every configured action and wires device input.
func (c *Coordinator) Setup(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	rect, err := c.dev.KeyRect()
	if err != nil {
		return fmt.Errorf("key size: %w", err)
	}
	c.keySize = rect.Dx()
	c.stripRect = c.dev.StripRect()

	if err := c.dev.SetBrightness(byte(c.layout.Brightness)); err != nil {
		c.log.Warn().Err(err).Msg("set brightness")
	}
	for _, key := range device.Keys(c.dev) {
		_ = c.dev.ClearKey(key)
	}

	c.place(c.ctx)
	if err := c.wire(); err != nil {
		return err
	}
	c.log.Info().Int("keys", len(c.keys)).Int("dials", len(c.dials)).Str("model", c.dev.ModelName()).Msg("deck ready")
	return nil
}

// Run listens to the device and flushes tiles until the context given to
// Setup is cancelled or the device stops listening.
func (c *Coordinator) Run() error {
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- c.dev.Listen(nil)
	}()

	c.wg.Add(1)
	go c.renderLoop(c.ctx)

	select {
	case <-c.ctx.Done():
		return nil
	case err := <-listenErr:
		return err
	}
}

// place creates and initializes the action of every configured slot. A slot
// whose action fails to start stays blank.
func (c *Coordinator) place(ctx context.Context) {
	for i, s := range c.layout.Keys {
		key := device.KeyID(i + 1)
		if int(key) > c.dev.KeyCount() {
			c.log.Warn().Int("key", int(key)).Msg("layout has more keys than the device")
			break
		}
		if sl := c.start(ctx, s, fmt.Sprintf("key-%d", key)); sl != nil {
			sl.key = key
			c.keys[key] = sl
		}
	}

	for i, s := range c.layout.Dials {
		dial := device.DialID(i + 1)
		if int(dial) > c.dev.DialCount() {
			c.log.Warn().Int("dial", int(dial)).Msg("layout has more dials than the device")
			break
		}
		if sl := c.start(ctx, s, fmt.Sprintf("dial-%d", dial)); sl != nil {
			sl.dial = dial
			c.dials[dial] = sl
		}
	}
}

func (c *Coordinator) start(ctx context.Context, s config.Slot, id string) *slot {
	if s.Action == "" {
		return nil
	}
	log := logger.WithContext("coordinator", id)

	a, err := c.creator.Create(s.Action)
	if err != nil {
		log.Error().Err(err).Msg("create action")
		return nil
	}

	sl := &slot{id: action.ContextID(id), act: a, log: log}
	if err := a.Init(ctx, sl.id, sl, action.Settings(s.Settings).Clone()); err != nil {
		log.Error().Err(err).Str("action", s.Action).Msg("init action")
		_ = a.Teardown()
		return nil
	}
	return sl
}

// wire routes device input to the slot actions.
func (c *Coordinator) wire() error {
	for key, sl := range c.keys {
		err := c.dev.OnKey(key, func(p device.Press) error {
			sl.input(action.InputEvent{Kind: action.KeyDown})
			p.WaitForRelease()
			sl.input(action.InputEvent{Kind: action.KeyUp})
			return nil
		})
		if err != nil {
			return fmt.Errorf("key %d: %w", key, err)
		}
	}

	for dial, sl := range c.dials {
		err := c.dev.OnDialPress(dial, func(p device.Press) error {
			sl.input(action.InputEvent{Kind: action.DialDown})
			p.WaitForRelease()
			sl.input(action.InputEvent{Kind: action.DialUp})
			return nil
		})
		if err != nil {
			return fmt.Errorf("dial %d: %w", dial, err)
		}
		err = c.dev.OnDialRotate(dial, func(delta int8) error {
			sl.input(action.InputEvent{Kind: action.DialRotate, Ticks: int(delta)})
			return nil
		})
		if err != nil {
			return fmt.Errorf("dial %d: %w", dial, err)
		}
	}

	if c.stripRect.Empty() || len(c.dials) == 0 {
		return nil
	}
	// A tap on the strip presses the dial below it.
	return c.dev.OnStripTouch(func(p image.Point) error {
		dial, ok := device.DialAt(c.stripRect, c.dev.DialCount(), p)
		if !ok {
			return nil
		}
		if sl := c.dials[dial]; sl != nil {
			sl.input(action.InputEvent{Kind: action.DialDown})
			sl.input(action.InputEvent{Kind: action.DialUp})
		}
		return nil
	})
}

// Refresh forces every action to resync and redraw.
func (c *Coordinator) Refresh() {
	for _, sl := range c.slots() {
		if err := sl.act.Refresh(); err != nil {
			sl.log.Error().Err(err).Msg("refresh")
		}
	}
}

// Stop tears down every action and waits for the render loop. Only the
// first call has any effect.
func (c *Coordinator) Stop() {
	c.stop.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		for _, sl := range c.slots() {
			if err := sl.act.Teardown(); err != nil {
				sl.log.Error().Err(err).Msg("teardown")
			}
		}
		c.wg.Wait()
	})
}

func (c *Coordinator) slots() []*slot {
	out := make([]*slot, 0, len(c.keys)+len(c.dials))
	for _, sl := range c.keys {
		out = append(out, sl)
	}
	for _, sl := range c.dials {
		out = append(out, sl)
	}
	return out
}

func (c *Coordinator) renderLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(RenderInterval)
	defer ticker.Stop()

	c.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Flush()
		}
	}
}

// Flush draws every tile that changed since the last flush.
func (c *Coordinator) Flush() {
	for key, sl := range c.keys {
		face, ok := sl.take()
		if !ok {
			continue
		}
		img, err := composeKey(face, c.keySize)
		if err != nil {
			sl.log.Warn().Err(err).Msg("compose key")
		}
		if err := c.dev.SetKeyImage(key, img); err != nil {
			sl.log.Error().Err(err).Msg("set key image")
		}
	}

	if c.stripRect.Empty() {
		return
	}
	changed := false
	faces := make(map[device.DialID]face, len(c.dials))
	for dial, sl := range c.dials {
		f, ok := sl.take()
		changed = changed || ok
		faces[dial] = f
	}
	if !changed {
		return
	}
	strip := image.NewRGBA(c.stripRect)
	for dial, f := range faces {
		seg := device.Segment(c.stripRect, c.dev.DialCount(), dial)
		if err := composeDial(strip, seg, f); err != nil {
			c.log.Warn().Err(err).Int("dial", int(dial)).Msg("compose dial")
		}
	}
	if err := c.dev.SetStripImage(strip); err != nil {
		c.log.Error().Err(err).Msg("set strip image")
	}
}

// face is what an action last published to its slot.
type face struct {
	img   image.Image
	title string
}

// slot is one placed action. It is the action's Tile.
type slot struct {
	id   action.ContextID
	act  action.Action
	log  *zerolog.Logger
	key  device.KeyID
	dial device.DialID

	mu    sync.Mutex
	face  face
	dirty bool
}

func (s *slot) SetImage(b *render.Bitmap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.face.img = b.Image()
	s.dirty = true
	return nil
}

func (s *slot) SetTitle(title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.face.title = title
	s.dirty = true
	return nil
}

// SendToPropertyInspector drops the message; deck mode has no
// configuration UI.
func (s *slot) SendToPropertyInspector(any) error {
	return nil
}

// take returns the current face, reporting whether it changed since the
// last call.
func (s *slot) take() (face, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dirty := s.dirty
	s.dirty = false
	return s.face, dirty
}

func (s *slot) input(ev action.InputEvent) {
	if err := s.act.HandleInput(ev); err != nil {
		s.log.Error().Err(err).Stringer("input", ev.Kind).Msg("handle input")
	}
}

var colorTitle = color.White

// composeKey draws the face scaled to the key with its title along the
// bottom edge.
func composeKey(f face, size int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	if f.img != nil {
		render.Overlay(img, render.Fit(f.img, size), image.Point{})
	}
	if f.title == "" {
		return img, nil
	}
	return img, render.DrawTextCentered(img, f.title, size, size-4, 12, colorTitle)
}

// composeDial draws the face on the left of seg and the title to its right.
func composeDial(strip *image.RGBA, seg image.Rectangle, f face) error {
	if seg.Empty() {
		return nil
	}
	iconSize := min(seg.Dy()-16, seg.Dx()/2)
	if f.img != nil && iconSize > 0 {
		at := image.Pt(seg.Min.X+8, seg.Min.Y+(seg.Dy()-iconSize)/2)
		render.Overlay(strip, render.Fit(f.img, iconSize), at)
	}
	if f.title == "" {
		return nil
	}
	return render.DrawText(strip, f.title, seg.Min.X+iconSize+16, seg.Min.Y+seg.Dy()/2+7, 20, colorTitle)
}
