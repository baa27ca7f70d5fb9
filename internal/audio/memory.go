package audio

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Mixer. The emulator uses it when no system mixer
// is reachable, and tests use it to inject failures.
type Memory struct {
	mu       sync.Mutex
	output   *MemoryControl
	sessions []*MemorySession
	err      error
}

// NewMemory returns a mixer with a default output at the given level.
func NewMemory(level float64) *Memory {
	return &Memory{output: &MemoryControl{level: level}}
}

// Output returns the default output control.
func (m *Memory) Output() *MemoryControl {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.output
}

// RemoveOutput makes DefaultOutput report ErrUnavailable.
func (m *Memory) RemoveOutput() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.output = nil
}

// SetOutput installs a default output.
func (m *Memory) SetOutput(c *MemoryControl) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.output = c
}

// AddSession registers a playback session for the named process.
func (m *Memory) AddSession(name string, level float64, muted bool) *MemorySession {
	s := &MemorySession{name: name, MemoryControl: MemoryControl{level: level, muted: muted}}
	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()
	return s
}

// RemoveSessions drops every session of the named process. Handles already
// obtained report ErrUnavailable afterwards.
func (m *Memory) RemoveSessions(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.sessions[:0]
	for _, s := range m.sessions {
		if s.name == name {
			s.closeSession()
			continue
		}
		kept = append(kept, s)
	}
	m.sessions = kept
}

// Fail makes enumeration calls return err until cleared with Fail(nil).
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) DefaultOutput(ctx context.Context) (Control, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.output == nil {
		return nil, fmt.Errorf("default output: %w", ErrUnavailable)
	}
	return m.output, nil
}

func (m *Memory) Sessions(ctx context.Context) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Session, len(m.sessions))
	for i, s := range m.sessions {
		out[i] = s
	}
	return out, nil
}

// MemoryControl is an in-process volume control.
type MemoryControl struct {
	mu     sync.Mutex
	level  float64
	muted  bool
	err    error
	closed bool
	writes int
}

// NewMemoryControl returns a control at the given level.
func NewMemoryControl(level float64, muted bool) *MemoryControl {
	return &MemoryControl{level: level, muted: muted}
}

// Fail makes every call return err until cleared with Fail(nil).
func (c *MemoryControl) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Writes returns how many mutations were applied.
func (c *MemoryControl) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// Set changes the state directly, as if another application had.
func (c *MemoryControl) Set(level float64, muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level, c.muted = level, muted
}

func (c *MemoryControl) check() error {
	if c.closed {
		return ErrUnavailable
	}
	return c.err
}

func (c *MemoryControl) Volume(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return 0, err
	}
	return c.level, nil
}

func (c *MemoryControl) SetVolume(ctx context.Context, level float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	if level < 0 || level > 1 {
		return fmt.Errorf("volume %v out of range", level)
	}
	c.level = level
	c.writes++
	return nil
}

func (c *MemoryControl) Muted(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return false, err
	}
	return c.muted, nil
}

func (c *MemoryControl) SetMuted(ctx context.Context, muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	c.muted = muted
	c.writes++
	return nil
}

// MemorySession is an in-process playback session.
type MemorySession struct {
	MemoryControl
	name string
}

func (s *MemorySession) Name() string  { return s.name }
func (s *MemorySession) Label() string { return DisplayName(s.name) }

func (s *MemorySession) closeSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
