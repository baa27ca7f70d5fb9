// Package volume provides the system output volume tile.
package volume

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/phinze/mixdeck/internal/action"
	"github.com/phinze/mixdeck/internal/audio"
	"github.com/phinze/mixdeck/internal/logger"
	"github.com/phinze/mixdeck/internal/scheduler"
)

// UUIDSuffix is the last element of the action identifier this package
// serves.
const UUIDSuffix = "volume"

// Config holds the tunables for the volume tile.
type Config struct {
	PollInterval time.Duration
	Step         int
}

// DefaultConfig returns the standard 200ms poll and 5% step.
func DefaultConfig() Config {
	return Config{PollInterval: 200 * time.Millisecond, Step: 5}
}

// snapshot is everything the tile shows.
type snapshot struct {
	Level     int
	Muted     bool
	Available bool
}

// Action shows the default output's volume as a bar and toggles mute on
// press.
type Action struct {
	action.BaseAction

	mixer audio.Mixer
	sched action.Scheduler
	cfg   Config

	mu     sync.Mutex
	ctx    context.Context
	log    *zerolog.Logger
	pub    *action.Publisher[snapshot]
	closed bool
}

// New creates an uninitialized volume action.
func New(mixer audio.Mixer, sched action.Scheduler, cfg Config) *Action {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultConfig().Step
	}
	return &Action{mixer: mixer, sched: sched, cfg: cfg}
}

// Factory returns a constructor for the action registry.
func Factory(mixer audio.Mixer, sched action.Scheduler, cfg Config) action.Factory {
	return func() action.Action { return New(mixer, sched, cfg) }
}

func (a *Action) key() scheduler.Key {
	return scheduler.Key{Context: string(a.ID()), Purpose: scheduler.Poll}
}

// Init renders the current volume and starts polling.
func (a *Action) Init(ctx context.Context, id action.ContextID, tile action.Tile, settings action.Settings) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.BaseAction.Init(ctx, id, tile, settings); err != nil {
		return err
	}
	a.ctx = ctx
	a.log = logger.WithContext("volume", string(id))
	a.pub = action.NewPublisher(tile, renderTile)
	a.closed = false

	a.syncLocked()
	a.sched.SetInterval(a.key(), a.cfg.PollInterval, a.poll)

	a.log.Info().Dur("interval", a.cfg.PollInterval).Msg("volume tile initialized")
	return nil
}

// poll is the timer callback.
func (a *Action) poll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.pub == nil {
		return
	}
	a.syncLocked()
}

// syncLocked reads the output and publishes the result if it changed.
func (a *Action) syncLocked() {
	s, err := a.read()
	switch audio.Classify(err) {
	case audio.KindNone:
	case audio.KindUnavailable:
		s = snapshot{}
	default:
		// Keep the last known tile on transient failures.
		a.log.Warn().Err(err).Msg("read output volume")
		if _, ok := a.pub.Last(); ok {
			return
		}
		s = snapshot{}
	}

	if _, err := a.pub.Publish(s); err != nil {
		a.log.Error().Err(err).Msg("publish volume tile")
	}
}

func (a *Action) read() (snapshot, error) {
	out, err := a.mixer.DefaultOutput(a.ctx)
	if err != nil {
		return snapshot{}, err
	}
	v, err := out.Volume(a.ctx)
	if err != nil {
		return snapshot{}, err
	}
	muted, err := out.Muted(a.ctx)
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{Level: action.ScalarToPercent(v), Muted: muted, Available: true}, nil
}

// HandleInput toggles mute on key or dial press and steps the volume on
// rotation.
func (a *Action) HandleInput(event action.InputEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.pub == nil {
		return nil
	}

	var err error
	switch event.Kind {
	case action.KeyDown, action.DialDown:
		err = a.toggleMute()
	case action.DialRotate:
		if event.Ticks == 0 {
			return nil
		}
		err = a.changeVolume(event.Ticks * a.cfg.Step)
	default:
		return nil
	}

	a.syncLocked()
	if audio.Classify(err) == audio.KindUnavailable {
		return nil
	}
	return err
}

func (a *Action) toggleMute() error {
	out, err := a.mixer.DefaultOutput(a.ctx)
	if err != nil {
		return err
	}
	muted, err := out.Muted(a.ctx)
	if err != nil {
		return err
	}
	return out.SetMuted(a.ctx, !muted)
}

// changeVolume applies delta percent, computed on the rounded current level.
func (a *Action) changeVolume(delta int) error {
	out, err := a.mixer.DefaultOutput(a.ctx)
	if err != nil {
		return err
	}
	v, err := out.Volume(a.ctx)
	if err != nil {
		return err
	}
	next := action.ClampPercent(action.ScalarToPercent(v) + delta)
	return out.SetVolume(a.ctx, float64(next)/100)
}

// Refresh forces a re-render of the current state.
func (a *Action) Refresh() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.pub == nil {
		return nil
	}
	a.pub.Invalidate()
	a.syncLocked()
	return nil
}

// Teardown stops polling.
func (a *Action) Teardown() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.ID() != "" {
		a.sched.ClearInterval(a.key())
	}
	if a.log != nil {
		a.log.Info().Msg("volume tile removed")
	}
	return nil
}
