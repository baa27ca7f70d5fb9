// Package action defines the contract shared by every tile action and the
// render/diff/publish loop they are built on.
package action

import (
	"context"
	"strconv"
	"time"

	"github.com/phinze/mixdeck/internal/render"
	"github.com/phinze/mixdeck/internal/scheduler"
)

// ContextID identifies one tile instance. It scopes timers and all
// per-instance state.
type ContextID string

// Settings is the opaque per-instance configuration the host persists.
// Values are round-tripped verbatim.
type Settings map[string]any

// String returns the string stored under key, or "" when absent or not a
// string.
func (s Settings) String(key string) string {
	if s == nil {
		return ""
	}
	switch v := s[key].(type) {
	case string:
		return v
	default:
		return ""
	}
}

// Int returns the integer stored under key. JSON numbers decode as float64,
// so those are accepted too.
func (s Settings) Int(key string) (int, bool) {
	if s == nil {
		return 0, false
	}
	switch v := s[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// Clone returns a shallow copy.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// InputKind is the kind of device input delivered to an action.
type InputKind uint8

const (
	KeyDown InputKind = iota + 1
	KeyUp
	DialDown
	DialUp
	DialRotate
)

func (k InputKind) String() string {
	switch k {
	case KeyDown:
		return "keyDown"
	case KeyUp:
		return "keyUp"
	case DialDown:
		return "dialDown"
	case DialUp:
		return "dialUp"
	case DialRotate:
		return "dialRotate"
	default:
		return "input(" + strconv.Itoa(int(k)) + ")"
	}
}

// InputEvent is a single key or dial interaction.
type InputEvent struct {
	Kind InputKind

	// Ticks is the signed rotation count of a DialRotate (positive is
	// clockwise).
	Ticks int
}

// Tile is the output surface for one context.
type Tile interface {
	// SetImage replaces the tile face.
	SetImage(b *render.Bitmap) error

	// SetTitle sets the short text label drawn by the host.
	SetTitle(title string) error

	// SendToPropertyInspector sends a structured message to the
	// configuration UI.
	SendToPropertyInspector(payload any) error
}

// Scheduler runs named periodic callbacks. It is satisfied by
// *scheduler.Scheduler.
type Scheduler interface {
	SetInterval(key scheduler.Key, period time.Duration, fn func())
	ClearInterval(key scheduler.Key)
}

// Action is one stateful tile widget.
type Action interface {
	// Init acquires external handles, establishes the initial snapshot and
	// registers timers. A missing external resource is not an error: the
	// action renders its fallback tile and retries on the next poll.
	Init(ctx context.Context, id ContextID, tile Tile, settings Settings) error

	// HandleInput reacts to a key or dial interaction. Kinds the action does
	// not use are ignored.
	HandleInput(event InputEvent) error

	// HandleSettings applies new settings from the host.
	HandleSettings(settings Settings) error

	// PropertyInspectorAppeared pushes the candidate list and the current
	// selection to the configuration UI.
	PropertyInspectorAppeared() error

	// HandleMessage processes a message sent by the configuration UI.
	HandleMessage(payload Settings) error

	// Refresh forces a resync and re-render.
	Refresh() error

	// Teardown cancels every timer the action registered. It is idempotent
	// and safe to call when Init never ran or failed.
	Teardown() error
}

// Factory creates a fresh, uninitialized action.
type Factory func() Action
