package action

import (
	"cmp"
	"context"
	"math"
)

// BaseAction provides no-op implementations of the Action interface. Embed it
// and override only what an action needs.
type BaseAction struct {
	id       ContextID
	tile     Tile
	settings Settings
}

// Init stores the context, tile and settings.
func (b *BaseAction) Init(ctx context.Context, id ContextID, tile Tile, settings Settings) error {
	b.id = id
	b.tile = tile
	b.settings = settings.Clone()
	return nil
}

// ID returns the context this action is bound to.
func (b *BaseAction) ID() ContextID {
	return b.id
}

// Tile returns the output surface.
func (b *BaseAction) Tile() Tile {
	return b.tile
}

// Settings returns the last settings received.
func (b *BaseAction) Settings() Settings {
	return b.settings
}

// SetSettings records new settings.
func (b *BaseAction) SetSettings(s Settings) {
	b.settings = s.Clone()
}

// HandleInput ignores the event.
func (b *BaseAction) HandleInput(event InputEvent) error {
	return nil
}

// HandleSettings records the settings.
func (b *BaseAction) HandleSettings(settings Settings) error {
	b.SetSettings(settings)
	return nil
}

// PropertyInspectorAppeared does nothing.
func (b *BaseAction) PropertyInspectorAppeared() error {
	return nil
}

// HandleMessage ignores the message.
func (b *BaseAction) HandleMessage(payload Settings) error {
	return nil
}

// Refresh does nothing.
func (b *BaseAction) Refresh() error {
	return nil
}

// Teardown does nothing.
func (b *BaseAction) Teardown() error {
	return nil
}

// Clamp limits v to [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// ClampPercent limits v to [0, 100].
func ClampPercent(v int) int {
	return Clamp(v, 0, 100)
}

// ClampScalar limits v to [0.0, 1.0].
func ClampScalar(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return Clamp(v, 0, 1)
}

// ScalarToPercent converts a [0.0, 1.0] level to a rounded percentage.
func ScalarToPercent(v float64) int {
	return ClampPercent(int(math.Round(ClampScalar(v) * 100)))
}
