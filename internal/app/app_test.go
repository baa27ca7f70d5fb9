package app

import (
	"path/filepath"
	"testing"

	"github.com/phinze/mixdeck/internal/audio"
	"github.com/phinze/mixdeck/internal/config"
)

func TestNew_RegistersEveryAction(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.Backend = config.BackendMemory
	cfg.GIF.Folder = filepath.Join(t.TempDir(), "gifs")

	a := New(cfg)
	defer a.Close()

	want := []string{"app_volume", "gif", "volume"}
	got := a.Registry.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	for _, uuid := range []string{"com.example.mixdeck.volume", "app_volume", "gif"} {
		if _, err := a.Registry.Create(uuid); err != nil {
			t.Errorf("Create(%q): %v", uuid, err)
		}
	}
	if a.Library.DefaultDelay != cfg.GIF.DefaultDelay {
		t.Errorf("library delay = %v", a.Library.DefaultDelay)
	}
}

func TestNewMixer(t *testing.T) {
	if _, ok := NewMixer(config.AudioConfig{Backend: config.BackendMemory}).(*audio.Memory); !ok {
		t.Error("memory backend should build a Memory mixer")
	}
	if _, ok := NewMixer(config.AudioConfig{Backend: config.BackendPulse}).(*audio.Pulse); !ok {
		t.Error("pulse backend should build a Pulse mixer")
	}
}
