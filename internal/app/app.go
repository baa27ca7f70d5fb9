// Package app assembles the shared pieces every run mode needs: the
// scheduler, the mixer, the GIF library and the action registry.
package app

import (
	"github.com/phinze/mixdeck/internal/actions/appvolume"
	"github.com/phinze/mixdeck/internal/actions/gif"
	"github.com/phinze/mixdeck/internal/actions/volume"
	"github.com/phinze/mixdeck/internal/audio"
	"github.com/phinze/mixdeck/internal/config"
	"github.com/phinze/mixdeck/internal/media"
	"github.com/phinze/mixdeck/internal/plugin"
	"github.com/phinze/mixdeck/internal/scheduler"
)

// App is one process's wiring.
type App struct {
	Config    *config.Config
	Scheduler *scheduler.Scheduler
	Mixer     audio.Mixer
	Library   *media.Library
	Registry  *plugin.Registry
}

// New wires the actions described by cfg.
func New(cfg *config.Config) *App {
	a := &App{
		Config:    cfg,
		Scheduler: scheduler.New(),
		Mixer:     NewMixer(cfg.Audio),
		Library:   media.NewLibrary(cfg.GIF.Folder),
		Registry:  plugin.NewRegistry(),
	}
	a.Library.DefaultDelay = cfg.GIF.DefaultDelay

	a.Registry.Register(volume.UUIDSuffix, volume.Factory(a.Mixer, a.Scheduler, volume.Config{
		PollInterval: cfg.Volume.PollInterval,
		Step:         cfg.Volume.Step,
	}))
	a.Registry.Register(appvolume.UUIDSuffix, appvolume.Factory(a.Mixer, a.Scheduler, appvolume.NewThemeIcons(), appvolume.Config{
		PollInterval: cfg.AppVolume.PollInterval,
		Step:         cfg.AppVolume.Step,
	}))
	a.Registry.Register(gif.UUIDSuffix, gif.Factory(a.Library, a.Scheduler, gif.Config{
		SwitchInterval: cfg.GIF.SwitchInterval,
	}))
	return a
}

// NewMixer returns the mixer backend named in cfg.
func NewMixer(cfg config.AudioConfig) audio.Mixer {
	if cfg.Backend == config.BackendMemory {
		return audio.NewMemory(0.5)
	}
	return audio.NewPulse(audio.WithTimeout(cfg.Timeout))
}

// Close stops every timer.
func (a *App) Close() {
	a.Scheduler.Stop()
}
