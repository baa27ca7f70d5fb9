package gif

import (
	"context"
	"image"
	"image/color/palette"
	stdgif "image/gif"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phinze/mixdeck/internal/action"
	"github.com/phinze/mixdeck/internal/action/actiontest"
	"github.com/phinze/mixdeck/internal/media"
	"github.com/phinze/mixdeck/internal/scheduler"
	"github.com/phinze/mixdeck/internal/scheduler/schedulertest"
)

var (
	frameKey  = scheduler.Key{Context: "ctx", Purpose: scheduler.Frame}
	switchKey = scheduler.Key{Context: "ctx", Purpose: scheduler.Switch}
	retryKey  = scheduler.Key{Context: "ctx", Purpose: scheduler.Poll}
)

// library writes a.gif (1 frame, 100ms), b.gif (2 frames, 200ms) and c.gif
// (3 frames, 300ms), so the frame timer period tells which one is loaded.
func library(t *testing.T) *media.Library {
	t.Helper()
	dir := t.TempDir()
	for i, name := range []string{"a.gif", "b.gif", "c.gif"} {
		g := &stdgif.GIF{}
		for f := 0; f <= i; f++ {
			p := image.NewPaletted(image.Rect(0, 0, 8, 8), palette.WebSafe)
			p.Pix[f] = uint8(10 * (f + 1))
			g.Image = append(g.Image, p)
			g.Delay = append(g.Delay, 10*(i+1))
		}
		out, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if err := stdgif.EncodeAll(out, g); err != nil {
			t.Fatal(err)
		}
		out.Close()
	}
	return media.NewLibrary(dir)
}

type fixture struct {
	a     *Action
	sched *schedulertest.Manual
	tile  *actiontest.Tile
}

func setup(t *testing.T, lib *media.Library, settings action.Settings) *fixture {
	t.Helper()
	f := &fixture{sched: schedulertest.NewManual(), tile: &actiontest.Tile{}}
	f.a = New(lib, f.sched, Config{SwitchInterval: 30 * time.Second, Seed: 7})
	if err := f.a.Init(context.Background(), "ctx", f.tile, settings); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return f
}

func (f *fixture) loaded(t *testing.T) string {
	t.Helper()
	r, ok := f.sched.Lookup(frameKey)
	if !ok {
		return ""
	}
	switch r.Period {
	case 100 * time.Millisecond:
		return "a.gif"
	case 200 * time.Millisecond:
		return "b.gif"
	case 300 * time.Millisecond:
		return "c.gif"
	}
	t.Fatalf("unexpected frame period %v", r.Period)
	return ""
}

func TestInit_RandomStartsBothTimers(t *testing.T) {
	f := setup(t, library(t), nil)

	if f.loaded(t) == "" {
		t.Fatal("no frame timer registered")
	}
	r, ok := f.sched.Lookup(switchKey)
	if !ok || r.Period != 30*time.Second {
		t.Errorf("expected 30s switch timer, got %+v (ok=%v)", r, ok)
	}
	if f.tile.Images() != 1 {
		t.Errorf("expected first frame published, got %d", f.tile.Images())
	}
}

func TestFrames_WrapAround(t *testing.T) {
	f := setup(t, library(t), action.Settings{settingMode: "static", settingSelected: "c.gif"})
	first := f.tile.LastImage()

	for i := 0; i < 3; i++ {
		f.sched.Fire(frameKey)
	}
	if f.tile.Images() != 4 {
		t.Fatalf("expected 4 published frames, got %d", f.tile.Images())
	}
	if f.tile.LastImage() != first {
		t.Error("expected the animation to wrap back to frame 0")
	}
}

func TestFrames_SingleFrameIdempotent(t *testing.T) {
	f := setup(t, library(t), action.Settings{settingMode: "static", settingSelected: "a.gif"})
	for i := 0; i < 5; i++ {
		f.sched.Fire(frameKey)
	}
	if f.tile.Images() != 1 {
		t.Errorf("single frame gif republished: %d images", f.tile.Images())
	}
}

func TestStatic_Stability(t *testing.T) {
	f := setup(t, library(t), action.Settings{settingMode: "static", settingSelected: "b.gif"})

	if f.sched.Active(switchKey) {
		t.Error("static mode must not register a switch timer")
	}
	f.a.HandleInput(action.InputEvent{Kind: action.KeyDown})
	f.a.rotate()
	if got := f.loaded(t); got != "b.gif" {
		t.Errorf("static selection drifted to %s", got)
	}
}

func TestSequential_KeyPressAdvancesAndWraps(t *testing.T) {
	f := setup(t, library(t), action.Settings{settingMode: "order"})
	if got := f.loaded(t); got != "a.gif" {
		t.Fatalf("first gif = %s, want a.gif", got)
	}

	want := []string{"b.gif", "c.gif", "a.gif", "b.gif"}
	for _, w := range want {
		sets := f.sched.Sets()
		f.a.HandleInput(action.InputEvent{Kind: action.KeyDown})
		if got := f.loaded(t); got != w {
			t.Errorf("after key press got %s, want %s", got, w)
		}
		if f.sched.Sets() < sets+2 {
			t.Error("key press should reload frames and restart the switch timer")
		}
	}
}

func TestSwitchTimerRotates(t *testing.T) {
	f := setup(t, library(t), action.Settings{settingMode: "sequential"})
	f.sched.Fire(switchKey)
	if got := f.loaded(t); got != "b.gif" {
		t.Errorf("switch timer loaded %s, want b.gif", got)
	}
}

func TestShuffle_ExhaustsBeforeRepeat(t *testing.T) {
	f := setup(t, library(t), action.Settings{settingMode: "shuffle"})
	seen := map[string]bool{f.loaded(t): true}
	for i := 0; i < 2; i++ {
		f.sched.Fire(switchKey)
		seen[f.loaded(t)] = true
	}
	if len(seen) != 3 {
		t.Errorf("shuffle repeated before exhausting: %v", seen)
	}
}

func TestSettings_ToStaticCancelsSwitch(t *testing.T) {
	f := setup(t, library(t), nil)

	f.a.HandleSettings(action.Settings{settingMode: "static", settingSelected: "c.gif"})
	if f.sched.Active(switchKey) {
		t.Error("switch timer should be cancelled in static mode")
	}
	if got := f.loaded(t); got != "c.gif" {
		t.Errorf("loaded %s, want c.gif", got)
	}

	// Changing only the selection reloads.
	f.a.HandleSettings(action.Settings{settingMode: "static", settingSelected: "b.gif"})
	if got := f.loaded(t); got != "b.gif" {
		t.Errorf("loaded %s, want b.gif", got)
	}

	// Same settings again do nothing.
	n := f.tile.Images()
	f.a.HandleSettings(action.Settings{settingMode: "static", settingSelected: "b.gif"})
	if f.tile.Images() != n {
		t.Error("unchanged static settings should not reload")
	}
}

func TestSettings_ModeChangeResetsRotation(t *testing.T) {
	f := setup(t, library(t), action.Settings{settingMode: "order"})
	f.a.HandleInput(action.InputEvent{Kind: action.KeyDown})

	f.a.HandleSettings(action.Settings{settingMode: "static", settingSelected: "c.gif"})
	f.a.HandleSettings(action.Settings{settingMode: "order"})
	if got := f.loaded(t); got != "a.gif" {
		t.Errorf("sequence should restart at a.gif, got %s", got)
	}
	if !f.sched.Active(switchKey) {
		t.Error("switch timer should be restarted")
	}

	// Same non-static mode is a no-op.
	n := f.tile.Images()
	f.a.HandleSettings(action.Settings{settingMode: "order"})
	if f.tile.Images() != n {
		t.Error("unchanged mode should not reload")
	}
}

func TestFallback_MissingFolderOnce(t *testing.T) {
	lib := media.NewLibrary(filepath.Join(t.TempDir(), "missing"))
	f := setup(t, lib, nil)

	if f.tile.LastTitle() != fallbackTitle {
		t.Errorf("expected %q title, got %q", fallbackTitle, f.tile.LastTitle())
	}
	for i := 0; i < 3; i++ {
		f.sched.Fire(switchKey)
		f.a.HandleInput(action.InputEvent{Kind: action.KeyDown})
	}
	if f.tile.Images() != 1 {
		t.Errorf("fallback published %d times, want 1", f.tile.Images())
	}
	if f.sched.Active(frameKey) {
		t.Error("no frame timer without frames")
	}
}

func TestFallback_RecoveryClearsTitle(t *testing.T) {
	lib := library(t)
	f := setup(t, lib, action.Settings{settingMode: "static", settingSelected: "gone.gif"})
	if f.tile.LastTitle() != fallbackTitle {
		t.Fatalf("expected fallback, got %q", f.tile.LastTitle())
	}

	f.a.HandleSettings(action.Settings{settingMode: "static", settingSelected: "a.gif"})
	if f.tile.LastTitle() != "" {
		t.Errorf("expected title cleared, got %q", f.tile.LastTitle())
	}
}

// copyGIF makes dst an alias of src inside the library folder.
func copyGIF(t *testing.T, lib *media.Library, src, dst string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(lib.Dir, src))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(lib.Dir, dst), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStatic_RetriesUntilSelectionAppears(t *testing.T) {
	lib := library(t)
	f := setup(t, lib, action.Settings{settingMode: "static", settingSelected: "late.gif"})
	if f.tile.LastTitle() != fallbackTitle {
		t.Fatalf("expected fallback, got %q", f.tile.LastTitle())
	}
	r, ok := f.sched.Lookup(retryKey)
	if !ok {
		t.Fatal("no retry timer while the selection is missing")
	}
	if r.Period != DefaultConfig().RetryInterval {
		t.Errorf("retry period = %v, want %v", r.Period, DefaultConfig().RetryInterval)
	}

	f.sched.Fire(retryKey)
	if f.tile.Images() != 1 {
		t.Errorf("fallback republished while still missing: %d images", f.tile.Images())
	}

	copyGIF(t, lib, "a.gif", "late.gif")
	f.sched.Fire(retryKey)
	if got := f.loaded(t); got != "a.gif" {
		t.Errorf("frame timer for %q, want the late GIF's 100ms timer", got)
	}
	if f.tile.Images() != 2 {
		t.Errorf("expected frame 0 published, got %d images", f.tile.Images())
	}
	if f.tile.LastTitle() != "" {
		t.Errorf("expected title cleared, got %q", f.tile.LastTitle())
	}
	if f.sched.Active(retryKey) {
		t.Error("retry timer left after recovery")
	}
}

func TestStatic_SameSettingsReloadWhileUnavailable(t *testing.T) {
	lib := library(t)
	settings := action.Settings{settingMode: "static", settingSelected: "late.gif"}
	f := setup(t, lib, settings)

	copyGIF(t, lib, "c.gif", "late.gif")
	f.a.HandleSettings(settings)
	if got := f.loaded(t); got != "c.gif" {
		t.Errorf("frame timer for %q, want the late GIF's 300ms timer", got)
	}
	if f.tile.LastTitle() != "" {
		t.Errorf("expected title cleared, got %q", f.tile.LastTitle())
	}
	if f.sched.Active(retryKey) {
		t.Error("retry timer left after recovery")
	}
}

func TestStatic_LeavingStaticStopsRetry(t *testing.T) {
	f := setup(t, library(t), action.Settings{settingMode: "static", settingSelected: "late.gif"})
	f.a.HandleSettings(action.Settings{settingMode: "order"})
	if f.sched.Active(retryKey) {
		t.Error("retry timer should stop outside static mode")
	}
	if got := f.loaded(t); got != "a.gif" {
		t.Errorf("loaded %s, want a.gif", got)
	}
}

func TestRenderTile_Deterministic(t *testing.T) {
	f := setup(t, library(t), action.Settings{settingMode: "static", settingSelected: "b.gif"})

	for _, tt := range []struct {
		s         snapshot
		wantTitle bool
		title     string
	}{
		{snapshot{}, true, fallbackTitle},
		{snapshot{Generation: 1, Index: 1, Available: true, ClearTitle: true}, true, ""},
		{snapshot{Generation: 1, Index: 1, Available: true}, false, ""},
	} {
		for range 2 {
			fr, err := f.a.renderTile(tt.s)
			if err != nil {
				t.Fatal(err)
			}
			if fr.HasTitle != tt.wantTitle || fr.Title != tt.title {
				t.Errorf("renderTile(%+v) title = %v/%q, want %v/%q", tt.s, fr.HasTitle, fr.Title, tt.wantTitle, tt.title)
			}
		}
	}
}

func TestPropertyInspectorAppeared(t *testing.T) {
	f := setup(t, library(t), action.Settings{settingMode: "order"})
	if err := f.a.PropertyInspectorAppeared(); err != nil {
		t.Fatal(err)
	}
	msg, err := f.tile.LastMessage()
	if err != nil {
		t.Fatal(err)
	}
	if msg["event"] != "updateGifList" || msg["gif_mode"] != "order" || msg["selected_gif"] != nil {
		t.Errorf("unexpected message %v", msg)
	}
	files := msg["gif_files"].([]any)
	if len(files) != 3 {
		t.Fatalf("expected 3 gifs, got %v", files)
	}
	if first := files[0].(map[string]any); first["value"] != "a.gif" || first["label"] != "a" {
		t.Errorf("unexpected entry %v", first)
	}
}

func TestTeardown(t *testing.T) {
	f := setup(t, library(t), nil)
	if err := f.a.Teardown(); err != nil {
		t.Fatal(err)
	}
	if err := f.a.Teardown(); err != nil {
		t.Fatal(err)
	}
	if len(f.sched.Keys()) != 0 {
		t.Errorf("timers left after teardown: %v", f.sched.Keys())
	}

	n := f.tile.Images()
	f.a.advance()
	f.a.rotate()
	f.a.HandleInput(action.InputEvent{Kind: action.KeyDown})
	if f.tile.Images() != n {
		t.Error("callbacks after teardown must be no-ops")
	}

	fresh := New(library(t), f.sched, Config{})
	if err := fresh.Teardown(); err != nil {
		t.Errorf("teardown before init: %v", err)
	}
}

func TestRefresh_Republishes(t *testing.T) {
	f := setup(t, library(t), action.Settings{settingMode: "static", settingSelected: "a.gif"})
	f.a.Refresh()
	if f.tile.Images() != 2 {
		t.Errorf("expected forced republish, got %d", f.tile.Images())
	}
}
