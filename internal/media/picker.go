package media

import (
	"math/rand/v2"
	"slices"
	"strings"
)

// Mode is how the next GIF is chosen.
type Mode int

const (
	// Random picks uniformly on every switch and may repeat.
	Random Mode = iota

	// Shuffle plays every GIF once in a random order before repeating.
	Shuffle

	// Sequential walks the sorted list and wraps around.
	Sequential

	// Static always shows the selected GIF.
	Static
)

func (m Mode) String() string {
	switch m {
	case Shuffle:
		return "shuffle"
	case Sequential:
		return "order"
	case Static:
		return "static"
	default:
		return "random"
	}
}

// ParseMode accepts the configuration UI's mode names. Unknown values mean
// Random.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shuffle":
		return Shuffle
	case "order", "sequential":
		return Sequential
	case "static":
		return Static
	default:
		return Random
	}
}

// Picker holds the per-tile rotation bookkeeping.
type Picker struct {
	mode     Mode
	rng      *rand.Rand
	queue    []string
	index    int
	selected string
}

// NewPicker returns a picker in the given mode. A nil rng uses a randomly
// seeded source.
func NewPicker(mode Mode, rng *rand.Rand) *Picker {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Picker{mode: mode, rng: rng}
}

// Mode returns the current mode.
func (p *Picker) Mode() Mode {
	return p.mode
}

// SetMode switches modes. Changing modes clears the rotation state.
func (p *Picker) SetMode(m Mode) {
	if m != p.mode {
		p.mode = m
		p.Reset()
	}
}

// Select sets the target shown in Static mode.
func (p *Picker) Select(name string) {
	p.selected = name
}

// Selected returns the Static mode target.
func (p *Picker) Selected() string {
	return p.selected
}

// Reset clears the shuffle queue and the sequential index.
func (p *Picker) Reset() {
	p.queue = nil
	p.index = 0
}

// Next returns the name to load from the candidate list. It reports false
// when there is nothing to pick.
func (p *Picker) Next(names []string) (string, bool) {
	if p.mode == Static {
		return p.selected, p.selected != ""
	}
	if len(names) == 0 {
		return "", false
	}

	switch p.mode {
	case Sequential:
		name := names[p.index%len(names)]
		p.index = (p.index + 1) % len(names)
		return name, true

	case Shuffle:
		for {
			if len(p.queue) == 0 {
				p.queue = slices.Clone(names)
				p.rng.Shuffle(len(p.queue), func(i, j int) {
					p.queue[i], p.queue[j] = p.queue[j], p.queue[i]
				})
			}
			name := p.queue[0]
			p.queue = p.queue[1:]
			// Files removed since the queue was filled are skipped.
			if slices.Contains(names, name) {
				return name, true
			}
		}

	default:
		return names[p.rng.IntN(len(names))], true
	}
}

// Remaining returns how many names are left in the shuffle queue.
func (p *Picker) Remaining() int {
	return len(p.queue)
}
