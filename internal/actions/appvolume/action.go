// Package appvolume provides the per-application volume tile.
package appvolume

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
const UUIDSuffix = "app_volume"

// Settings keys and configuration UI messages.
const (
	settingApp       = "selected_app"
	eventForceUpdate = "forceVolumeUpdate"
	eventAppList     = "updateAppList"
)

// Config holds the tunables for the app volume tile.
type Config struct {
	PollInterval time.Duration
	Step         int
}

// DefaultConfig returns the standard 300ms poll and 5% step.
func DefaultConfig() Config {
	return Config{PollInterval: 300 * time.Millisecond, Step: 5}
}

type snapshot struct {
	App       string
	Level     int
	Muted     bool
	Available bool
}

// appListMessage is sent to the configuration UI when it opens.
type appListMessage struct {
	Event       string            `json:"event"`
	AppList     []audio.Candidate `json:"app_list"`
	SelectedApp *string           `json:"selected_app"`
}

// Action controls every playback session of one application.
type Action struct {
	action.BaseAction

	mixer audio.Mixer
	sched action.Scheduler
	icons IconSource
	cfg   Config

	mu       sync.Mutex
	ctx      context.Context
	log      *zerolog.Logger
	pub      *action.Publisher[snapshot]
	selected string
	closed   bool
}

// New creates an uninitialized app volume action. A nil icon source uses
// letter badges only.
func New(mixer audio.Mixer, sched action.Scheduler, icons IconSource, cfg Config) *Action {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultConfig().Step
	}
	if icons == nil {
		icons = BadgeIcons{}
	}
	return &Action{mixer: mixer, sched: sched, icons: icons, cfg: cfg}
}

// Factory returns a constructor for the action registry.
func Factory(mixer audio.Mixer, sched action.Scheduler, icons IconSource, cfg Config) action.Factory {
	return func() action.Action { return New(mixer, sched, icons, cfg) }
}

func (a *Action) key() scheduler.Key {
	return scheduler.Key{Context: string(a.ID()), Purpose: scheduler.Poll}
}

// Init reads the selected app from settings, renders and starts polling.
func (a *Action) Init(ctx context.Context, id action.ContextID, tile action.Tile, settings action.Settings) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.BaseAction.Init(ctx, id, tile, settings); err != nil {
		return err
	}
	a.ctx = ctx
	a.log = logger.WithContext("app_volume", string(id))
	a.pub = action.NewPublisher(tile, a.renderTile)
	a.selected = settings.String(settingApp)
	a.closed = false

	a.syncLocked()
	a.sched.SetInterval(a.key(), a.cfg.PollInterval, a.poll)

	a.log.Info().Str("app", a.selected).Msg("app volume tile initialized")
	return nil
}

func (a *Action) poll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.pub == nil {
		return
	}
	a.syncLocked()
}

// sessions returns the selected app's sessions. It reports ErrUnavailable
// when there are none.
func (a *Action) sessions() ([]audio.Session, error) {
	if a.selected == "" {
		return nil, audio.ErrUnavailable
	}
	all, err := a.mixer.Sessions(a.ctx)
	if err != nil {
		return nil, err
	}
	matched := audio.SessionsFor(all, a.selected)
	if len(matched) == 0 {
		return nil, audio.ErrUnavailable
	}
	return matched, nil
}

func (a *Action) syncLocked() {
	s, err := a.read()
	switch audio.Classify(err) {
	case audio.KindNone:
	case audio.KindUnavailable:
		s = snapshot{App: a.selected}
	default:
		a.log.Warn().Err(err).Msg("read app sessions")
		if _, ok := a.pub.Last(); ok {
			return
		}
		s = snapshot{App: a.selected}
	}

	if _, err := a.pub.Publish(s); err != nil {
		a.log.Error().Err(err).Msg("publish app volume tile")
	}
}

func (a *Action) read() (snapshot, error) {
	sessions, err := a.sessions()
	if err != nil {
		return snapshot{}, err
	}
	level, muted, err := audio.Aggregate(a.ctx, sessions)
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{App: a.selected, Level: level, Muted: muted, Available: true}, nil
}

// HandleInput toggles mute on press and steps every session on rotation.
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

// toggleMute unmutes everything when every session is muted, and mutes
// everything otherwise.
func (a *Action) toggleMute() error {
	sessions, err := a.sessions()
	if err != nil {
		return err
	}
	allMuted := true
	for _, s := range sessions {
		m, err := s.Muted(a.ctx)
		if err != nil {
			return err
		}
		allMuted = allMuted && m
	}
	for _, s := range sessions {
		if err := s.SetMuted(a.ctx, !allMuted); err != nil {
			return err
		}
	}
	return nil
}

// changeVolume moves each session by delta percent independently.
func (a *Action) changeVolume(delta int) error {
	sessions, err := a.sessions()
	if err != nil {
		return err
	}
	for _, s := range sessions {
		v, err := s.Volume(a.ctx)
		if err != nil {
			return err
		}
		if err := s.SetVolume(a.ctx, action.ClampScalar(v+float64(delta)/100)); err != nil {
			return err
		}
	}
	return nil
}

// HandleSettings switches to a newly selected app. An empty selection is
// ignored.
func (a *Action) HandleSettings(settings action.Settings) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.SetSettings(settings)
	if a.closed || a.pub == nil {
		return nil
	}
	a.selectLocked(settings.String(settingApp))
	return nil
}

// HandleMessage handles forceVolumeUpdate from the configuration UI.
func (a *Action) HandleMessage(payload action.Settings) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.pub == nil {
		return nil
	}
	if payload.String("event") != eventForceUpdate {
		return nil
	}
	if app := payload.String("app"); app != "" {
		a.selected = app
	}
	a.pub.Invalidate()
	a.syncLocked()
	return nil
}

func (a *Action) selectLocked(app string) {
	if app == "" || app == a.selected {
		return
	}
	a.log.Info().Str("app", app).Msg("selected app changed")
	a.selected = app
	a.pub.Invalidate()
	a.syncLocked()
}

// PropertyInspectorAppeared sends the running apps and the selection.
func (a *Action) PropertyInspectorAppeared() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.pub == nil {
		return nil
	}

	list := []audio.Candidate{}
	sessions, err := a.mixer.Sessions(a.ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("list sessions for configuration UI")
	} else if apps := audio.AppList(sessions); apps != nil {
		list = apps
	}

	msg := appListMessage{Event: eventAppList, AppList: list}
	if a.selected != "" {
		sel := a.selected
		msg.SelectedApp = &sel
	}
	return a.Tile().SendToPropertyInspector(msg)
}

// Refresh forces a re-render.
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
		a.log.Info().Msg("app volume tile removed")
	}
	return nil
}
