// Package scheduler runs named, cancelable periodic callbacks for tile actions.
package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Purpose distinguishes the timers a single action context may own.
type Purpose uint8

const (
	// Poll resyncs the tile with external state.
	Poll Purpose = iota + 1
	// Frame advances an animation by one frame.
	Frame
	// Switch rotates to the next animation.
	Switch
)

func (p Purpose) String() string {
	switch p {
	case Poll:
		return "poll"
	case Frame:
		return "frame"
	case Switch:
		return "switch"
	default:
		return fmt.Sprintf("purpose(%d)", p)
	}
}

// Key identifies one registration: a context and what the timer is for.
type Key struct {
	Context string
	Purpose Purpose
}

func (k Key) String() string {
	return k.Context + "/" + k.Purpose.String()
}

// Scheduler owns a set of interval registrations. The zero value is not
// usable; create one with New.
type Scheduler struct {
	mu      sync.Mutex
	entries map[Key]*entry
	stopped bool
}

// entry is a single registration. Each entry runs on its own goroutine, so
// callbacks for one key never overlap.
type entry struct {
	period time.Duration
	fn     func()

	// gate is held from the cancel check through the end of a callback.
	gate     sync.Mutex
	cancel   atomic.Bool
	done     chan struct{}
	exited   chan struct{}
	previous *entry
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{entries: make(map[Key]*entry)}
}

// SetInterval registers fn to run every period under key, replacing any
// existing registration for the same key. The replaced callback never runs
// concurrently with the new one.
func (s *Scheduler) SetInterval(key Key, period time.Duration, fn func()) {
	if period <= 0 {
		period = time.Millisecond
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	e := &entry{
		period: period,
		fn:     fn,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	if old, ok := s.entries[key]; ok {
		old.stop()
		e.previous = old
	}
	s.entries[key] = e
	go e.run()
}

// ClearInterval cancels the registration under key, if any. Once it returns
// the callback is never started again; an invocation already in progress is
// allowed to finish. ClearInterval does not wait for it, so it is safe to
// call from the callback itself or while holding a lock the callback takes.
func (s *Scheduler) ClearInterval(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.stop()
		delete(s.entries, key)
	}
}

// ClearContext cancels every registration belonging to ctx.
func (s *Scheduler) ClearContext(ctx string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if key.Context == ctx {
			e.stop()
			delete(s.entries, key)
		}
	}
}

// Active reports whether a registration exists under key.
func (s *Scheduler) Active(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Len returns the number of live registrations.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop cancels all registrations and rejects new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		e.stop()
		delete(s.entries, key)
	}
	s.stopped = true
}

// stop cancels e and reports whether a callback was in progress. A callback
// that has not taken the gate by the time stop sets the flag never runs.
func (e *entry) stop() (running bool) {
	idle := e.gate.TryLock()
	if e.cancel.CompareAndSwap(false, true) {
		close(e.done)
	}
	if idle {
		e.gate.Unlock()
	}
	return !idle
}

// fire runs one callback unless e was cancelled first.
func (e *entry) fire() bool {
	e.gate.Lock()
	defer e.gate.Unlock()
	if e.cancel.Load() {
		return false
	}
	e.fn()
	return true
}

func (e *entry) run() {
	defer close(e.exited)

	// Wait out the callback this entry replaced.
	if e.previous != nil {
		<-e.previous.exited
		e.previous = nil
	}

	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
		}
		if !e.fire() {
			return
		}
	}
}
