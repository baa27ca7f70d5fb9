package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFile_MissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Volume.PollInterval != 200*time.Millisecond || cfg.Volume.Step != 5 {
		t.Errorf("volume defaults = %+v", cfg.Volume)
	}
	if cfg.AppVolume.PollInterval != 300*time.Millisecond {
		t.Errorf("app volume poll = %v", cfg.AppVolume.PollInterval)
	}
	if cfg.GIF.SwitchInterval != 30*time.Second || cfg.GIF.DefaultDelay != 100*time.Millisecond {
		t.Errorf("gif defaults = %+v", cfg.GIF)
	}
	if !strings.HasSuffix(cfg.GIF.Folder, filepath.Join("static", "gifs")) {
		t.Errorf("gif folder = %q", cfg.GIF.Folder)
	}
	if cfg.Audio.Backend != BackendPulse {
		t.Errorf("backend = %q", cfg.Audio.Backend)
	}
	if len(cfg.Deck.Keys) != 2 || cfg.Deck.Keys[0].Action != "volume" {
		t.Errorf("deck keys = %+v", cfg.Deck.Keys)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
log:
  level: debug
volume:
  poll_interval: 500ms
  step: 10
gif:
  folder: /srv/gifs
  switch_interval: 1m
deck:
  keys:
    - action: app_volume
      settings:
        selected_app: spotify
    - action: ""
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level = %q", cfg.Log.Level)
	}
	if cfg.Volume.PollInterval != 500*time.Millisecond || cfg.Volume.Step != 10 {
		t.Errorf("volume = %+v", cfg.Volume)
	}
	if cfg.GIF.Folder != "/srv/gifs" || cfg.GIF.SwitchInterval != time.Minute {
		t.Errorf("gif = %+v", cfg.GIF)
	}
	// Untouched keys keep their defaults.
	if cfg.AppVolume.Step != 5 {
		t.Errorf("app volume step = %d", cfg.AppVolume.Step)
	}
	if len(cfg.Deck.Keys) != 2 {
		t.Fatalf("keys = %+v", cfg.Deck.Keys)
	}
	if k := cfg.Deck.Keys[0]; k.Action != "app_volume" || k.Settings["selected_app"] != "spotify" {
		t.Errorf("first key = %+v", k)
	}
	if cfg.Deck.Keys[1].Action != "" {
		t.Errorf("second key should be blank")
	}
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("volume:\n  step: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MIXDECK_VOLUME_STEP", "2")
	t.Setenv("MIXDECK_AUDIO_BACKEND", "memory")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Volume.Step != 2 {
		t.Errorf("env should override file, step = %d", cfg.Volume.Step)
	}
	if cfg.Audio.Backend != BackendMemory {
		t.Errorf("backend = %q", cfg.Audio.Backend)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":     "volume: [",
		"zero step":    "volume:\n  step: 0\n",
		"backend":      "audio:\n  backend: alsa\n",
		"brightness":   "deck:\n  brightness: 150\n",
		"negative gif": "gif:\n  switch_interval: -1s\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDefaultConfigPath_Env(t *testing.T) {
	t.Setenv("MIXDECK_CONFIG", "/tmp/custom.yaml")
	if got := DefaultConfigPath(); got != "/tmp/custom.yaml" {
		t.Errorf("DefaultConfigPath() = %q", got)
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.Volume.Step = 7
	cfg.GIF.SwitchInterval = 45 * time.Second
	cfg.Deck.Dials = []Slot{{Action: "app_volume", Settings: map[string]any{"selected_app": "firefox"}}}

	if err := WriteFile(path, cfg); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "switch_interval: 45s") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.Volume.Step != 7 || got.GIF.SwitchInterval != 45*time.Second {
		t.Errorf("round trip lost values: %+v", got)
	}
	if len(got.Deck.Dials) != 1 || got.Deck.Dials[0].Settings["selected_app"] != "firefox" {
		t.Errorf("dials = %+v", got.Deck.Dials)
	}
}
