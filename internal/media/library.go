// Package media loads animated GIFs for tiles and decides which one plays
// next.
package media

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/phinze/mixdeck/internal/render"
)

// ErrNotFound covers a missing folder, an empty folder and a missing file.
var ErrNotFound = errors.New("gif not found")

// DefaultDelay is used when a GIF does not specify a frame delay.
const DefaultDelay = 100 * time.Millisecond

// Sequence is a decoded animation ready for display.
type Sequence struct {
	Name   string
	Frames []*render.Bitmap

	// Delay is the first frame's delay, applied to every frame.
	Delay time.Duration
}

// Library reads GIFs from a folder.
type Library struct {
	Dir          string
	DefaultDelay time.Duration
	Size         int
}

// NewLibrary returns a library rendering tile sized frames.
func NewLibrary(dir string) *Library {
	return &Library{Dir: dir, DefaultDelay: DefaultDelay, Size: render.KeySize}
}

// List returns the sorted names of the .gif files in the folder.
func (l *Library) List() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("gif folder %s: %w", l.Dir, ErrNotFound)
		}
		return nil, fmt.Errorf("read gif folder: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".gif") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no gifs in %s: %w", l.Dir, ErrNotFound)
	}
	sort.Strings(names)
	return names, nil
}

// Label is the display name of a GIF file.
func Label(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Load decodes the named GIF, composites every frame onto the logical
// screen and scales it to the tile size. Frames are PNG encoded up front so
// the frame timer only has to send them.
func (l *Library) Load(name string) (*Sequence, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, fmt.Errorf("gif %q: %w", name, ErrNotFound)
	}

	f, err := os.Open(filepath.Join(l.Dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("gif %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("open gif: %w", err)
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return nil, fmt.Errorf("decode gif %s: %w", name, err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("gif %s has no frames: %w", name, ErrNotFound)
	}

	size := l.Size
	if size <= 0 {
		size = render.KeySize
	}

	seq := &Sequence{Name: name, Delay: l.DefaultDelay}
	if seq.Delay <= 0 {
		seq.Delay = DefaultDelay
	}
	if len(g.Delay) > 0 && g.Delay[0] > 0 {
		seq.Delay = time.Duration(g.Delay[0]) * 10 * time.Millisecond
	}

	for _, frame := range composite(g) {
		b := render.NewBitmap(render.Fit(frame, size))
		if err := b.Prepare(); err != nil {
			return nil, fmt.Errorf("encode frame: %w", err)
		}
		seq.Frames = append(seq.Frames, b)
	}
	return seq, nil
}

// composite returns the fully drawn logical screen after each frame,
// honouring the frame disposal methods.
func composite(g *gif.GIF) []*image.RGBA {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
		for _, p := range g.Image[1:] {
			bounds = bounds.Union(p.Bounds())
		}
	}

	canvas := image.NewRGBA(bounds)
	var previous *image.RGBA
	frames := make([]*image.RGBA, 0, len(g.Image))

	for i, p := range g.Image {
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			previous = cloneRGBA(canvas)
		}

		draw.Draw(canvas, p.Bounds(), p, p.Bounds().Min, draw.Over)
		frames = append(frames, cloneRGBA(canvas))

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, p.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			if previous != nil {
				copy(canvas.Pix, previous.Pix)
			}
		}
	}
	return frames
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
