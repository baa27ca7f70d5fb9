// Package audio adapts the system mixer: the default output device and the
// per-application playback sessions.
package audio

import (
	"context"
	"errors"
	"math"
	"path"
	"sort"
	"strings"
)

// ErrUnavailable means the endpoint or session does not exist (anymore).
// Widgets degrade to their fallback tile when they see it.
var ErrUnavailable = errors.New("audio resource unavailable")

// Control is a single volume control. Levels are scalars in [0.0, 1.0].
type Control interface {
	Volume(ctx context.Context) (float64, error)
	SetVolume(ctx context.Context, level float64) error
	Muted(ctx context.Context) (bool, error)
	SetMuted(ctx context.Context, muted bool) error
}

// Session is one application's playback stream.
type Session interface {
	Control

	// Name is the process basename, e.g. "firefox" or "Discord.exe".
	Name() string

	// Label is a human readable name for the configuration UI.
	Label() string
}

// Mixer enumerates the system's audio controls.
type Mixer interface {
	DefaultOutput(ctx context.Context) (Control, error)
	Sessions(ctx context.Context) ([]Session, error)
}

// Kind classifies an adapter error.
type Kind int

const (
	// KindNone is a nil error.
	KindNone Kind = iota

	// KindUnavailable covers a missing endpoint, a closed app and a selection
	// naming a nonexistent candidate.
	KindUnavailable

	// KindTransient is any other failure. The last known state is kept.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnavailable:
		return "unavailable"
	default:
		return "transient"
	}
}

// Classify maps err onto the adapter error taxonomy.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	default:
		return KindTransient
	}
}

// Basename returns the final path element of a process path, accepting both
// slash and backslash separators.
func Basename(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// SessionsFor returns the sessions whose process name matches the basename
// of app.
func SessionsFor(sessions []Session, app string) []Session {
	want := Basename(app)
	if want == "" {
		return nil
	}
	var out []Session
	for _, s := range sessions {
		if s.Name() == want {
			out = append(out, s)
		}
	}
	return out
}

// Candidate is one selectable entry for the configuration UI.
type Candidate struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// AppList returns one candidate per distinct process name, sorted by value.
// Labels have a trailing ".exe" removed.
func AppList(sessions []Session) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate
	for _, s := range sessions {
		name := s.Name()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Candidate{Value: name, Label: DisplayName(name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// DisplayName strips a Windows executable suffix.
func DisplayName(name string) string {
	if len(name) > 4 && strings.EqualFold(name[len(name)-4:], ".exe") {
		return name[:len(name)-4]
	}
	return name
}

// Aggregate reads every session and returns the rounded average level in
// percent and whether all of them are muted.
func Aggregate(ctx context.Context, sessions []Session) (level int, muted bool, err error) {
	if len(sessions) == 0 {
		return 0, false, ErrUnavailable
	}
	var sum float64
	muted = true
	for _, s := range sessions {
		v, err := s.Volume(ctx)
		if err != nil {
			return 0, false, err
		}
		m, err := s.Muted(ctx)
		if err != nil {
			return 0, false, err
		}
		sum += v
		muted = muted && m
	}
	level = int(math.Round(sum / float64(len(sessions)) * 100))
	return min(max(level, 0), 100), muted, nil
}
