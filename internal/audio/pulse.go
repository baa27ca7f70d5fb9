package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Runner executes pactl with the given arguments and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

// DefaultTimeout bounds every pactl invocation.
const DefaultTimeout = 2 * time.Second

// pactl reports volumes on this scale, where normVolume is 100%.
const normVolume = 65536

// Pulse is a Mixer backed by PulseAudio or PipeWire through pactl.
type Pulse struct {
	run     Runner
	timeout time.Duration
}

// PulseOption configures a Pulse mixer.
type PulseOption func(*Pulse)

// WithRunner replaces the command runner, mainly for tests.
func WithRunner(r Runner) PulseOption {
	return func(p *Pulse) { p.run = r }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) PulseOption {
	return func(p *Pulse) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPulse creates a pactl backed mixer.
func NewPulse(opts ...PulseOption) *Pulse {
	p := &Pulse{run: execPactl, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func execPactl(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "pactl", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("pactl not installed: %w", ErrUnavailable)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("pactl %s: %s: %w", args[0], msg, err)
		}
		return nil, fmt.Errorf("pactl %s: %w", args[0], err)
	}
	return out, nil
}

func (p *Pulse) call(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.run(ctx, args...)
}

type pactlChannel struct {
	Value int `json:"value"`
}

type pactlSink struct {
	Index  int                     `json:"index"`
	Name   string                  `json:"name"`
	Mute   bool                    `json:"mute"`
	Volume map[string]pactlChannel `json:"volume"`
}

type pactlSinkInput struct {
	Index      int                     `json:"index"`
	Mute       bool                    `json:"mute"`
	Volume     map[string]pactlChannel `json:"volume"`
	Properties map[string]string       `json:"properties"`
}

func channelAverage(channels map[string]pactlChannel) float64 {
	if len(channels) == 0 {
		return 0
	}
	var sum int
	for _, c := range channels {
		sum += c.Value
	}
	v := float64(sum) / float64(len(channels)) / normVolume
	return min(max(v, 0), 1)
}

func percentArg(level float64) string {
	level = min(max(level, 0), 1)
	return strconv.Itoa(int(math.Round(level*100))) + "%"
}

func muteArg(muted bool) string {
	if muted {
		return "1"
	}
	return "0"
}

func (p *Pulse) sinks(ctx context.Context) ([]pactlSink, error) {
	out, err := p.call(ctx, "-f", "json", "list", "sinks")
	if err != nil {
		return nil, err
	}
	var sinks []pactlSink
	if err := json.Unmarshal(out, &sinks); err != nil {
		return nil, fmt.Errorf("decode sinks: %w", err)
	}
	return sinks, nil
}

func (p *Pulse) sinkInputs(ctx context.Context) ([]pactlSinkInput, error) {
	out, err := p.call(ctx, "-f", "json", "list", "sink-inputs")
	if err != nil {
		return nil, err
	}
	var inputs []pactlSinkInput
	if err := json.Unmarshal(out, &inputs); err != nil {
		return nil, fmt.Errorf("decode sink inputs: %w", err)
	}
	return inputs, nil
}

// DefaultOutput returns the current default sink.
func (p *Pulse) DefaultOutput(ctx context.Context) (Control, error) {
	out, err := p.call(ctx, "get-default-sink")
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(string(out))
	if name == "" {
		return nil, fmt.Errorf("no default sink: %w", ErrUnavailable)
	}
	return &pulseSink{p: p, name: name}, nil
}

// Sessions returns every playback stream that reports a process binary,
// from a single listing.
func (p *Pulse) Sessions(ctx context.Context) ([]Session, error) {
	inputs, err := p.sinkInputs(ctx)
	if err != nil {
		return nil, err
	}
	var sessions []Session
	for _, in := range inputs {
		name := Basename(in.Properties["application.process.binary"])
		if name == "" {
			continue
		}
		label := in.Properties["application.name"]
		if label == "" {
			label = DisplayName(name)
		}
		sessions = append(sessions, &pulseSession{
			p:      p,
			index:  in.Index,
			name:   name,
			label:  label,
			volume: channelAverage(in.Volume),
			muted:  in.Mute,
		})
	}
	return sessions, nil
}

type pulseSink struct {
	p    *Pulse
	name string
}

func (s *pulseSink) lookup(ctx context.Context) (pactlSink, error) {
	sinks, err := s.p.sinks(ctx)
	if err != nil {
		return pactlSink{}, err
	}
	for _, sink := range sinks {
		if sink.Name == s.name {
			return sink, nil
		}
	}
	return pactlSink{}, fmt.Errorf("sink %q: %w", s.name, ErrUnavailable)
}

func (s *pulseSink) Volume(ctx context.Context) (float64, error) {
	sink, err := s.lookup(ctx)
	if err != nil {
		return 0, err
	}
	return channelAverage(sink.Volume), nil
}

func (s *pulseSink) SetVolume(ctx context.Context, level float64) error {
	_, err := s.p.call(ctx, "set-sink-volume", s.name, percentArg(level))
	return err
}

func (s *pulseSink) Muted(ctx context.Context) (bool, error) {
	sink, err := s.lookup(ctx)
	if err != nil {
		return false, err
	}
	return sink.Mute, nil
}

func (s *pulseSink) SetMuted(ctx context.Context, muted bool) error {
	_, err := s.p.call(ctx, "set-sink-mute", s.name, muteArg(muted))
	return err
}

// pulseSession is one sink input as of the listing that produced it. Reads
// come from that listing; writes go to pactl and update it.
type pulseSession struct {
	p     *Pulse
	index int
	name  string
	label string

	mu     sync.Mutex
	volume float64
	muted  bool
}

func (s *pulseSession) Name() string  { return s.name }
func (s *pulseSession) Label() string { return s.label }

func (s *pulseSession) Volume(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume, nil
}

func (s *pulseSession) SetVolume(ctx context.Context, level float64) error {
	if _, err := s.p.call(ctx, "set-sink-input-volume", strconv.Itoa(s.index), percentArg(level)); err != nil {
		return err
	}
	s.mu.Lock()
	s.volume = min(max(level, 0), 1)
	s.mu.Unlock()
	return nil
}

func (s *pulseSession) Muted(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted, nil
}

func (s *pulseSession) SetMuted(ctx context.Context, muted bool) error {
	if _, err := s.p.call(ctx, "set-sink-input-mute", strconv.Itoa(s.index), muteArg(muted)); err != nil {
		return err
	}
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	return nil
}
