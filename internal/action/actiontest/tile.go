// Package actiontest provides a recording Tile for action tests.
package actiontest

import (
	"encoding/json"
	"sync"

	"github.com/phinze/mixdeck/internal/render"
)

// Tile records everything an action publishes.
type Tile struct {
	mu     sync.Mutex
	images []*render.Bitmap
	titles []string
	pi     []any
}

// SetImage records b.
func (t *Tile) SetImage(b *render.Bitmap) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.images = append(t.images, b)
	return nil
}

// SetTitle records title.
func (t *Tile) SetTitle(title string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.titles = append(t.titles, title)
	return nil
}

// SendToPropertyInspector records payload.
func (t *Tile) SendToPropertyInspector(payload any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pi = append(t.pi, payload)
	return nil
}

// Images returns how many images were published.
func (t *Tile) Images() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.images)
}

// LastImage returns the most recent image, or nil.
func (t *Tile) LastImage() *render.Bitmap {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.images) == 0 {
		return nil
	}
	return t.images[len(t.images)-1]
}

// Titles returns every title published, in order.
func (t *Tile) Titles() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.titles...)
}

// LastTitle returns the most recent title, or "".
func (t *Tile) LastTitle() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.titles) == 0 {
		return ""
	}
	return t.titles[len(t.titles)-1]
}

// LastMessage returns the most recent property inspector payload
// round-tripped through JSON, as the host would see it.
func (t *Tile) LastMessage() (map[string]any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pi) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(t.pi[len(t.pi)-1])
	if err != nil {
		return nil, err
	}
	var out map[string]any
	err = json.Unmarshal(raw, &out)
	return out, err
}

// Reset forgets everything recorded.
func (t *Tile) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.images, t.titles, t.pi = nil, nil, nil
}
