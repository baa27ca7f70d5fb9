// Package gif provides the animated GIF tile.
package gif

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/phinze/mixdeck/internal/action"
	"github.com/phinze/mixdeck/internal/logger"
	"github.com/phinze/mixdeck/internal/media"
	"github.com/phinze/mixdeck/internal/scheduler"
)

// UUIDSuffix is the last element of the action identifier this package
// serves.
const UUIDSuffix = "gif"

const (
	settingMode     = "gif_mode"
	settingSelected = "selected_gif"
	eventGifList    = "updateGifList"
	defaultModeName = "random"
)

// Config holds the tunables for the GIF tile.
type Config struct {
	SwitchInterval time.Duration

	// RetryInterval is how often static mode retries a selection that
	// could not be loaded.
	RetryInterval time.Duration

	// Seed fixes the random source. Zero seeds randomly.
	Seed uint64
}

// DefaultConfig switches GIFs every 30 seconds.
func DefaultConfig() Config {
	return Config{SwitchInterval: 30 * time.Second, RetryInterval: 2 * time.Second}
}

// snapshot identifies the frame on screen. Generation changes with every
// load, so equal indexes of different GIFs still differ. ClearTitle marks
// the first frame after the placeholder.
type snapshot struct {
	Generation int
	Index      int
	Available  bool
	ClearTitle bool
}

type gifOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type gifListMessage struct {
	Event       string      `json:"event"`
	GifFiles    []gifOption `json:"gif_files"`
	GifMode     string      `json:"gif_mode"`
	SelectedGif *string     `json:"selected_gif"`
}

// Action plays GIFs from a library on a tile.
type Action struct {
	action.BaseAction

	lib   *media.Library
	sched action.Scheduler
	cfg   Config

	mu         sync.Mutex
	log        *zerolog.Logger
	pub        *action.Publisher[snapshot]
	picker     *media.Picker
	modeName   string
	selected   string
	seq        *media.Sequence
	generation int
	next       int
	titled     bool
	closed     bool
}

// New creates an uninitialized GIF action.
func New(lib *media.Library, sched action.Scheduler, cfg Config) *Action {
	if cfg.SwitchInterval <= 0 {
		cfg.SwitchInterval = DefaultConfig().SwitchInterval
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultConfig().RetryInterval
	}
	return &Action{lib: lib, sched: sched, cfg: cfg}
}

// Factory returns a constructor for the action registry.
func Factory(lib *media.Library, sched action.Scheduler, cfg Config) action.Factory {
	return func() action.Action { return New(lib, sched, cfg) }
}

func (a *Action) key(p scheduler.Purpose) scheduler.Key {
	return scheduler.Key{Context: string(a.ID()), Purpose: p}
}

func (a *Action) newRand() *rand.Rand {
	if a.cfg.Seed != 0 {
		return rand.New(rand.NewPCG(a.cfg.Seed, a.cfg.Seed))
	}
	return nil
}

// Init loads the first GIF and starts the frame and switch timers.
func (a *Action) Init(ctx context.Context, id action.ContextID, tile action.Tile, settings action.Settings) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.BaseAction.Init(ctx, id, tile, settings); err != nil {
		return err
	}
	a.log = logger.WithContext("gif", string(id))
	a.pub = action.NewPublisher(tile, a.renderTile)
	a.closed = false
	a.titled = false

	a.modeName = settings.String(settingMode)
	if a.modeName == "" {
		a.modeName = defaultModeName
	}
	a.selected = settings.String(settingSelected)
	a.picker = media.NewPicker(media.ParseMode(a.modeName), a.newRand())
	a.picker.Select(a.selected)

	if a.picker.Mode() == media.Static {
		if a.selected == "" {
			a.log.Warn().Msg("static mode without a selected gif")
		}
		a.loadStaticLocked()
	} else {
		a.loadNextLocked()
		a.restartSwitchLocked()
	}

	a.log.Info().Str("mode", a.modeName).Str("folder", a.lib.Dir).Msg("gif tile initialized")
	return nil
}

// loadNextLocked asks the picker for the next GIF and loads it.
func (a *Action) loadNextLocked() {
	names, err := a.lib.List()
	if err != nil {
		a.log.Warn().Err(err).Msg("list gifs")
		a.fallbackLocked()
		return
	}
	name, ok := a.picker.Next(names)
	if !ok {
		a.fallbackLocked()
		return
	}
	a.loadLocked(name)
}

// loadStaticLocked shows the selected GIF. While it cannot be loaded the
// placeholder stays up and the retry timer keeps trying.
func (a *Action) loadStaticLocked() {
	retry := a.key(scheduler.Poll)
	if a.selected == "" {
		a.sched.ClearInterval(retry)
		a.fallbackLocked()
		return
	}
	if a.loadLocked(a.selected) {
		a.sched.ClearInterval(retry)
		return
	}
	a.sched.SetInterval(retry, a.cfg.RetryInterval, a.retry)
}

// retry is the static mode retry timer callback.
func (a *Action) retry() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.pub == nil || a.picker.Mode() != media.Static || a.seq != nil {
		return
	}
	seq, err := a.lib.Load(a.selected)
	if err != nil {
		a.log.Debug().Err(err).Str("gif", a.selected).Msg("static gif still unavailable")
		return
	}
	a.sched.ClearInterval(a.key(scheduler.Poll))
	a.showLocked(a.selected, seq)
}

// loadLocked decodes name and shows it, or the placeholder when it cannot
// be loaded.
func (a *Action) loadLocked(name string) bool {
	seq, err := a.lib.Load(name)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			a.log.Warn().Err(err).Msg("gif missing")
		} else {
			a.log.Error().Err(err).Msg("load gif")
		}
		a.fallbackLocked()
		return false
	}
	a.showLocked(name, seq)
	return true
}

// showLocked shows the first frame of seq and retimes the frame timer to
// its delay.
func (a *Action) showLocked(name string, seq *media.Sequence) {
	a.seq = seq
	a.generation++
	a.next = 0
	a.showNextLocked()
	a.sched.SetInterval(a.key(scheduler.Frame), seq.Delay, a.advance)

	a.log.Debug().Str("gif", name).Int("frames", len(seq.Frames)).Dur("delay", seq.Delay).Msg("gif loaded")
}

// fallbackLocked drops the current GIF and shows the placeholder tile.
func (a *Action) fallbackLocked() {
	a.seq = nil
	a.sched.ClearInterval(a.key(scheduler.Frame))
	sent, err := a.pub.Publish(snapshot{})
	if err != nil {
		a.log.Error().Err(err).Msg("publish gif fallback")
	}
	if sent {
		a.titled = true
	}
}

// showNextLocked publishes the pending frame and moves on, wrapping at the
// end of the sequence.
func (a *Action) showNextLocked() {
	if a.seq == nil || len(a.seq.Frames) == 0 {
		return
	}
	s := snapshot{Generation: a.generation, Index: a.next, Available: true, ClearTitle: a.titled}
	sent, err := a.pub.Publish(s)
	if err != nil {
		a.log.Error().Err(err).Msg("publish gif frame")
	}
	if sent {
		a.titled = false
	}
	a.next = (a.next + 1) % len(a.seq.Frames)
}

// advance is the frame timer callback.
func (a *Action) advance() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.pub == nil {
		return
	}
	a.showNextLocked()
}

// rotate is the switch timer callback.
func (a *Action) rotate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.pub == nil || a.picker.Mode() == media.Static {
		return
	}
	a.loadNextLocked()
}

func (a *Action) restartSwitchLocked() {
	a.sched.SetInterval(a.key(scheduler.Switch), a.cfg.SwitchInterval, a.rotate)
}

// HandleInput skips to the next GIF on key press. Static mode ignores it.
func (a *Action) HandleInput(event action.InputEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.pub == nil || event.Kind != action.KeyDown {
		return nil
	}
	if a.picker.Mode() == media.Static {
		return nil
	}
	a.loadNextLocked()
	a.restartSwitchLocked()
	return nil
}

// HandleSettings applies a new mode or static selection.
func (a *Action) HandleSettings(settings action.Settings) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.SetSettings(settings)
	if a.closed || a.pub == nil {
		return nil
	}

	oldMode := a.picker.Mode()
	if name := settings.String(settingMode); name != "" {
		a.modeName = name
	}
	mode := media.ParseMode(a.modeName)

	switch {
	case mode == media.Static:
		selected := settings.String(settingSelected)
		if oldMode == media.Static && selected == a.selected && a.seq != nil {
			return nil
		}
		a.selected = selected
		a.picker.SetMode(media.Static)
		a.picker.Select(selected)
		a.sched.ClearInterval(a.key(scheduler.Switch))
		a.log.Info().Str("gif", selected).Msg("static gif selected")
		a.loadStaticLocked()

	case mode != oldMode:
		a.sched.ClearInterval(a.key(scheduler.Poll))
		a.picker.SetMode(mode)
		a.log.Info().Stringer("mode", mode).Msg("gif mode changed")
		a.loadNextLocked()
		a.restartSwitchLocked()
	}
	return nil
}

// PropertyInspectorAppeared sends the GIF list, mode and selection.
func (a *Action) PropertyInspectorAppeared() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.pub == nil {
		return nil
	}

	options := []gifOption{}
	names, err := a.lib.List()
	if err != nil {
		a.log.Warn().Err(err).Msg("list gifs for configuration UI")
	}
	for _, n := range names {
		options = append(options, gifOption{Value: n, Label: media.Label(n)})
	}

	msg := gifListMessage{Event: eventGifList, GifFiles: options, GifMode: a.modeName}
	if a.selected != "" {
		sel := a.selected
		msg.SelectedGif = &sel
	}
	return a.Tile().SendToPropertyInspector(msg)
}

// Refresh re-sends the frame on screen.
func (a *Action) Refresh() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.pub == nil {
		return nil
	}
	last, ok := a.pub.Last()
	a.pub.Invalidate()
	if !ok {
		return nil
	}
	_, err := a.pub.Publish(last)
	return err
}

// Teardown stops every timer of the tile.
func (a *Action) Teardown() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.ID() != "" {
		a.sched.ClearInterval(a.key(scheduler.Frame))
		a.sched.ClearInterval(a.key(scheduler.Switch))
		a.sched.ClearInterval(a.key(scheduler.Poll))
	}
	a.seq = nil
	if a.log != nil {
		a.log.Info().Msg("gif tile removed")
	}
	return nil
}
