package action

import (
	"errors"
	"image"
	"testing"

	"github.com/phinze/mixdeck/internal/render"
)

type recordingTile struct {
	images []*render.Bitmap
	titles []string
	pi     []any
	err    error
}

func (r *recordingTile) SetImage(b *render.Bitmap) error {
	if r.err != nil {
		return r.err
	}
	r.images = append(r.images, b)
	return nil
}

func (r *recordingTile) SetTitle(title string) error {
	r.titles = append(r.titles, title)
	return nil
}

func (r *recordingTile) SendToPropertyInspector(payload any) error {
	r.pi = append(r.pi, payload)
	return nil
}

type snap struct {
	Level int
	Muted bool
}

func newTestPublisher(tile Tile, renders *int) *Publisher[snap] {
	return NewPublisher(tile, func(s snap) (Frame, error) {
		*renders++
		return WithTitle(render.NewBitmap(image.NewRGBA(image.Rect(0, 0, 1, 1))), "x"), nil
	})
}

func TestPublisher_IdempotentDiff(t *testing.T) {
	tile := &recordingTile{}
	renders := 0
	p := newTestPublisher(tile, &renders)

	for i := 0; i < 10; i++ {
		sent, err := p.Publish(snap{Level: 40})
		if err != nil {
			t.Fatalf("Publish: %v", err)
		}
		if sent != (i == 0) {
			t.Errorf("poll %d: sent=%v", i, sent)
		}
	}
	if renders != 1 || len(tile.images) != 1 || len(tile.titles) != 1 {
		t.Errorf("expected exactly one render/publish, got renders=%d images=%d titles=%d",
			renders, len(tile.images), len(tile.titles))
	}
}

func TestPublisher_PublishesOnChange(t *testing.T) {
	tile := &recordingTile{}
	renders := 0
	p := newTestPublisher(tile, &renders)

	seq := []snap{{40, false}, {40, false}, {45, false}, {45, true}, {45, true}, {40, false}}
	for _, s := range seq {
		if _, err := p.Publish(s); err != nil {
			t.Fatal(err)
		}
	}
	if renders != 4 {
		t.Errorf("expected 4 renders, got %d", renders)
	}
	if last, ok := p.Last(); !ok || last != (snap{40, false}) {
		t.Errorf("unexpected last snapshot %+v (ok=%v)", last, ok)
	}
}

func TestPublisher_Invalidate(t *testing.T) {
	tile := &recordingTile{}
	renders := 0
	p := newTestPublisher(tile, &renders)

	p.Publish(snap{Level: 10})
	p.Invalidate()
	sent, _ := p.Publish(snap{Level: 10})
	if !sent {
		t.Error("expected forced publish after Invalidate")
	}
	if p.Count() != 2 {
		t.Errorf("expected count 2, got %d", p.Count())
	}
}

func TestPublisher_FailedSendRetries(t *testing.T) {
	tile := &recordingTile{err: errors.New("closed")}
	renders := 0
	p := newTestPublisher(tile, &renders)

	if _, err := p.Publish(snap{Level: 10}); err == nil {
		t.Fatal("expected error")
	}
	tile.err = nil
	sent, err := p.Publish(snap{Level: 10})
	if err != nil || !sent {
		t.Errorf("expected retry to publish, sent=%v err=%v", sent, err)
	}
}

func TestClampPercent(t *testing.T) {
	tests := []struct{ in, want int }{
		{-1000, 0}, {-1, 0}, {0, 0}, {55, 55}, {100, 100}, {101, 100}, {1000, 100},
	}
	for _, tt := range tests {
		if got := ClampPercent(tt.in); got != tt.want {
			t.Errorf("ClampPercent(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClampScalar(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{-10, 0}, {0.25, 0.25}, {1.5, 1},
	}
	for _, tt := range tests {
		if got := ClampScalar(tt.in); got != tt.want {
			t.Errorf("ClampScalar(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestScalarToPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0}, {0.004, 0}, {0.005, 1}, {0.5, 50}, {0.999, 100}, {2, 100},
	}
	for _, tt := range tests {
		if got := ScalarToPercent(tt.in); got != tt.want {
			t.Errorf("ScalarToPercent(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSettings(t *testing.T) {
	s := Settings{"selected_app": "firefox", "n": float64(3), "bad": 4}
	if got := s.String("selected_app"); got != "firefox" {
		t.Errorf("String = %q", got)
	}
	if got := s.String("bad"); got != "" {
		t.Errorf("non-string String = %q", got)
	}
	if n, ok := s.Int("n"); !ok || n != 3 {
		t.Errorf("Int = %d, %v", n, ok)
	}
	var nilSettings Settings
	if nilSettings.String("x") != "" {
		t.Error("nil settings should read empty")
	}
	c := s.Clone()
	c["selected_app"] = "other"
	if s.String("selected_app") != "firefox" {
		t.Error("Clone shares storage with the original")
	}
}
