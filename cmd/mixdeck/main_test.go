package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/phinze/mixdeck/internal/audio"
	"github.com/phinze/mixdeck/internal/config"
	"github.com/phinze/mixdeck/internal/media"
)

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{
			in:   []string{"-port", "28196", "-pluginUUID", "abc", "-registerEvent", "registerPlugin", "-info", "{}"},
			want: []string{"--port", "28196", "--pluginUUID", "abc", "--registerEvent", "registerPlugin", "--info", "{}"},
		},
		{
			in:   []string{"--port", "1", "deck", "-v"},
			want: []string{"--port", "1", "deck", "-v"},
		},
		{
			in:   []string{"-", "status"},
			want: []string{"-", "status"},
		},
		{
			in:   nil,
			want: []string{},
		},
	}
	for _, tt := range tests {
		got := normalizeArgs(tt.in)
		if !slices.Equal(got, tt.want) {
			t.Errorf("normalizeArgs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPromptConfig_Defaults(t *testing.T) {
	existing := config.Default()
	existing.GIF.Folder = "/tmp/gifs"

	var out bytes.Buffer
	cfg, err := promptConfig(bufio.NewReader(strings.NewReader(strings.Repeat("\n", 7))), &out, existing)
	if err != nil {
		t.Fatalf("promptConfig: %v", err)
	}
	if cfg.Audio.Backend != existing.Audio.Backend || cfg.Volume.Step != existing.Volume.Step ||
		cfg.GIF.Folder != "/tmp/gifs" || cfg.GIF.SwitchInterval != existing.GIF.SwitchInterval ||
		cfg.Deck.Brightness != existing.Deck.Brightness {
		t.Errorf("defaults not kept: %+v", cfg)
	}
	if !strings.Contains(out.String(), "GIF folder [/tmp/gifs]") {
		t.Errorf("prompt output missing default:\n%s", out.String())
	}
}

func TestPromptConfig_Answers(t *testing.T) {
	input := strings.Join([]string{
		"memory",
		"ten", // retried
		"10",
		"2",
		"/srv/gifs",
		"1m",
		"80",
	}, "\n") + "\n"

	var out bytes.Buffer
	cfg, err := promptConfig(bufio.NewReader(strings.NewReader(input)), &out, config.Default())
	if err != nil {
		t.Fatalf("promptConfig: %v", err)
	}
	if cfg.Audio.Backend != config.BackendMemory {
		t.Errorf("backend = %q", cfg.Audio.Backend)
	}
	if cfg.Volume.Step != 10 || cfg.AppVolume.Step != 2 {
		t.Errorf("steps = %d, %d", cfg.Volume.Step, cfg.AppVolume.Step)
	}
	if cfg.GIF.Folder != "/srv/gifs" || cfg.GIF.SwitchInterval != time.Minute {
		t.Errorf("gif = %+v", cfg.GIF)
	}
	if cfg.Deck.Brightness != 80 {
		t.Errorf("brightness = %d", cfg.Deck.Brightness)
	}
	if !strings.Contains(out.String(), `not a number: "ten"`) {
		t.Errorf("expected retry message:\n%s", out.String())
	}
}

func TestPromptConfig_Invalid(t *testing.T) {
	input := "alsa\n\n\n\n\n\n\n"
	_, err := promptConfig(bufio.NewReader(strings.NewReader(input)), &bytes.Buffer{}, config.Default())
	if err == nil {
		t.Fatal("expected validation error for unknown backend")
	}
}

func TestReportMixer(t *testing.T) {
	m := audio.NewMemory(0.42)
	m.AddSession("spotify.exe", 0.5, false)

	var out bytes.Buffer
	if !reportMixer(context.Background(), &out, m, "memory") {
		t.Errorf("healthy mixer reported failure:\n%s", out.String())
	}
	for _, want := range []string{"Default output: 42%", "Session: spotify"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	m.Fail(errors.New("daemon gone"))
	out.Reset()
	if reportMixer(context.Background(), &out, m, "memory") {
		t.Errorf("failing mixer reported healthy:\n%s", out.String())
	}
}

func TestGIFSummary(t *testing.T) {
	tests := []struct {
		names []string
		err   error
		want  string
	}{
		{nil, media.ErrNotFound, "  Status: no GIFs found"},
		{nil, errors.New("permission denied"), "  Status: permission denied"},
		{[]string{"a.gif"}, nil, "  Status: 1 GIF"},
		{[]string{"a.gif", "b.gif"}, nil, "  Status: 2 GIFs"},
	}
	for _, tt := range tests {
		if got := gifSummary(tt.names, tt.err); got != tt.want {
			t.Errorf("gifSummary(%v, %v) = %q, want %q", tt.names, tt.err, got, tt.want)
		}
	}
}
