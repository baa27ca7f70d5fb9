package action

import (
	"fmt"

	"github.com/phinze/mixdeck/internal/render"
)

// Frame is a rendered tile: a bitmap and, optionally, a title.
type Frame struct {
	Bitmap *render.Bitmap

	// Title is applied only when HasTitle is set, so a renderer can leave
	// the host's title alone.
	Title    string
	HasTitle bool
}

// WithTitle returns a frame carrying both bitmap and title.
func WithTitle(b *render.Bitmap, title string) Frame {
	return Frame{Bitmap: b, Title: title, HasTitle: true}
}

// RenderFunc turns a snapshot into a frame. It must be deterministic.
type RenderFunc[S comparable] func(S) (Frame, error)

// Publisher sends a tile to the host only when its snapshot changed.
// Snapshots are replaced wholesale and compared with ==.
//
// Publisher is not safe for concurrent use; actions guard it with their own
// lock.
type Publisher[S comparable] struct {
	tile   Tile
	render RenderFunc[S]

	last      S
	published bool
	count     int
}

// NewPublisher returns a publisher that has not published anything yet, so
// its first Publish always renders.
func NewPublisher[S comparable](tile Tile, render RenderFunc[S]) *Publisher[S] {
	return &Publisher[S]{tile: tile, render: render}
}

// Publish renders and sends s if it differs from the last published
// snapshot. It reports whether anything was sent.
func (p *Publisher[S]) Publish(s S) (bool, error) {
	if p.published && p.last == s {
		return false, nil
	}

	frame, err := p.render(s)
	if err != nil {
		return false, fmt.Errorf("render tile: %w", err)
	}

	if frame.HasTitle {
		if err := p.tile.SetTitle(frame.Title); err != nil {
			return false, fmt.Errorf("set title: %w", err)
		}
	}
	if frame.Bitmap != nil {
		if err := p.tile.SetImage(frame.Bitmap); err != nil {
			return false, fmt.Errorf("set image: %w", err)
		}
	}

	p.last = s
	p.published = true
	p.count++
	return true, nil
}

// Invalidate forgets the last published snapshot so the next Publish renders
// unconditionally.
func (p *Publisher[S]) Invalidate() {
	p.published = false
}

// Last returns the last published snapshot.
func (p *Publisher[S]) Last() (S, bool) {
	return p.last, p.published
}

// Count returns how many times a frame was sent.
func (p *Publisher[S]) Count() int {
	return p.count
}
