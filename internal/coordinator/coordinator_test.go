package coordinator

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/phinze/mixdeck/internal/action"
	"github.com/phinze/mixdeck/internal/config"
	"github.com/phinze/mixdeck/internal/device"
	"github.com/phinze/mixdeck/internal/device/devicetest"
	"github.com/phinze/mixdeck/internal/render"
)

// recorder is an action that paints a solid tile and records its input.
type recorder struct {
	action.BaseAction

	mu       sync.Mutex
	inputs   []action.InputEvent
	refresh  int
	torn     int
	settings action.Settings
}

func (r *recorder) Init(ctx context.Context, id action.ContextID, tile action.Tile, settings action.Settings) error {
	r.BaseAction.Init(ctx, id, tile, settings)
	r.mu.Lock()
	r.settings = settings
	r.mu.Unlock()
	img := image.NewRGBA(image.Rect(0, 0, render.KeySize, render.KeySize))
	render.Fill(img, img.Bounds(), color.RGBA{0, 0, 255, 255})
	if err := tile.SetTitle("42"); err != nil {
		return err
	}
	return tile.SetImage(render.NewBitmap(img))
}

func (r *recorder) HandleInput(ev action.InputEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, ev)
	return nil
}

func (r *recorder) Refresh() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh++
	return nil
}

func (r *recorder) Teardown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.torn++
	return nil
}

func (r *recorder) events() []action.InputEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]action.InputEvent(nil), r.inputs...)
}

// creator hands out recorders by name and remembers them.
type creator struct {
	mu      sync.Mutex
	created map[string][]*recorder
	failing string
}

func (c *creator) Create(name string) (action.Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == c.failing {
		return nil, errors.New("no such action")
	}
	r := &recorder{}
	c.created[name] = append(c.created[name], r)
	return r, nil
}

func setup(t *testing.T, layout config.DeckConfig) (*Coordinator, *devicetest.Fake, *creator) {
	t.Helper()
	dev := devicetest.NewFake()
	if err := dev.Open(); err != nil {
		t.Fatal(err)
	}
	cr := &creator{created: make(map[string][]*recorder), failing: "broken"}
	c := New(dev, cr, layout)
	if err := c.Setup(context.Background()); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(c.Stop)
	c.Flush()
	return c, dev, cr
}

func TestStart_PlacesAndDraws(t *testing.T) {
	layout := config.DeckConfig{
		Brightness: 40,
		Keys: []config.Slot{
			{Action: "volume"},
			{},
			{Action: "broken"},
			{Action: "app_volume", Settings: map[string]any{"selected_app": "spotify"}},
		},
		Dials: []config.Slot{{Action: "volume"}},
	}
	_, dev, cr := setup(t, layout)

	if dev.Brightness() != 40 {
		t.Errorf("brightness = %d", dev.Brightness())
	}
	if len(cr.created["volume"]) != 2 {
		t.Errorf("expected a key and a dial volume action, got %d", len(cr.created["volume"]))
	}
	app := cr.created["app_volume"]
	if len(app) != 1 || app[0].settings.String("selected_app") != "spotify" {
		t.Fatalf("app_volume not placed with its settings")
	}

	img := dev.KeyImage(1)
	if img == nil {
		t.Fatal("key 1 was never drawn")
	}
	if r, g, b, _ := img.At(36, 20).RGBA(); r != 0 || g != 0 || b>>8 != 255 {
		t.Errorf("key 1 pixel = %v %v %v, want blue", r, g, b)
	}
	if dev.KeyWrites(2) != 0 || dev.KeyWrites(3) != 0 {
		t.Error("blank and failed slots should not be drawn")
	}

	strip, n := dev.StripImage()
	if strip == nil || n == 0 {
		t.Fatal("strip was never drawn")
	}
	if _, _, b, _ := strip.At(50, 50).RGBA(); b>>8 != 255 {
		t.Error("dial face should be drawn in the first strip segment")
	}
	if _, _, b, _ := strip.At(500, 50).RGBA(); b != 0 {
		t.Error("unassigned strip segment should stay blank")
	}
}

func TestInputRouting(t *testing.T) {
	layout := config.DeckConfig{
		Keys:  []config.Slot{{Action: "gif"}},
		Dials: []config.Slot{{Action: "volume"}, {Action: "app_volume"}},
	}
	_, dev, cr := setup(t, layout)

	if ok, err := dev.PressKey(1); !ok || err != nil {
		t.Fatalf("key 1 not wired: %v %v", ok, err)
	}
	if ok, _ := dev.PressKey(2); ok {
		t.Error("unassigned key should have no handler")
	}
	dev.RotateDial(1, -2)
	dev.PressDial(1)
	dev.Touch(image.Pt(300, 50))

	got := cr.created["gif"][0].events()
	if len(got) != 2 || got[0].Kind != action.KeyDown || got[1].Kind != action.KeyUp {
		t.Errorf("key events = %v", got)
	}

	got = cr.created["volume"][0].events()
	want := []action.InputEvent{
		{Kind: action.DialRotate, Ticks: -2},
		{Kind: action.DialDown},
		{Kind: action.DialUp},
	}
	if len(got) != len(want) {
		t.Fatalf("dial 1 events = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dial 1 event %d = %v, want %v", i, got[i], want[i])
		}
	}

	got = cr.created["app_volume"][0].events()
	if len(got) != 2 || got[0].Kind != action.DialDown {
		t.Errorf("strip tap should press dial 2, got %v", got)
	}
}

func TestRefreshAndStop(t *testing.T) {
	layout := config.DeckConfig{Keys: []config.Slot{{Action: "volume"}}}
	c, _, cr := setup(t, layout)
	r := cr.created["volume"][0]

	c.Refresh()
	c.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refresh != 1 {
		t.Errorf("refresh = %d", r.refresh)
	}
	if r.torn != 1 {
		t.Errorf("teardown = %d", r.torn)
	}
}

func TestFlush_OnlyDirty(t *testing.T) {
	layout := config.DeckConfig{Keys: []config.Slot{{Action: "volume"}}}
	c, dev, _ := setup(t, layout)

	n := dev.KeyWrites(1)
	c.Flush()
	c.Flush()
	if dev.KeyWrites(1) != n {
		t.Errorf("clean key was redrawn: %d -> %d", n, dev.KeyWrites(1))
	}
}

func TestComposeKey_Title(t *testing.T) {
	img, err := composeKey(face{title: "MUTE"}, 72)
	if err != nil {
		t.Fatal(err)
	}
	lit := false
	for x := 0; x < 72 && !lit; x++ {
		for y := 56; y < 72; y++ {
			if _, _, _, a := img.At(x, y).RGBA(); a > 0 {
				lit = true
				break
			}
		}
	}
	if !lit {
		t.Error("title should be drawn along the bottom edge")
	}
}

func TestLayoutLargerThanDevice(t *testing.T) {
	keys := make([]config.Slot, 10)
	for i := range keys {
		keys[i] = config.Slot{Action: "volume"}
	}
	_, _, cr := setup(t, config.DeckConfig{Keys: keys})
	if n := len(cr.created["volume"]); n != 8 {
		t.Errorf("placed %d actions on an 8 key device", n)
	}
}

var _ device.Device = (*devicetest.Fake)(nil)

func TestRun_FlushesUntilDeviceCloses(t *testing.T) {
	dev := devicetest.NewFake()
	dev.Open()
	cr := &creator{created: make(map[string][]*recorder)}
	c := New(dev, cr, config.DeckConfig{Keys: []config.Slot{{Action: "volume"}}})

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for dev.KeyWrites(1) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("render loop never drew key 1")
		}
		time.Sleep(5 * time.Millisecond)
	}

	dev.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after the device closed")
	}
	c.Stop()
}
