// Package schedulertest provides a deterministic scheduler for tests.
package schedulertest

import (
	"sort"
	"sync"
	"time"

	"github.com/phinze/mixdeck/internal/scheduler"
)

// Manual records interval registrations and runs them only when told to.
type Manual struct {
	mu      sync.Mutex
	entries map[scheduler.Key]Registration
	sets    int
}

// Registration is a recorded SetInterval call.
type Registration struct {
	Period time.Duration
	Fn     func()
}

// NewManual returns an empty Manual scheduler.
func NewManual() *Manual {
	return &Manual{entries: make(map[scheduler.Key]Registration)}
}

// SetInterval records fn under key, replacing any previous registration.
func (m *Manual) SetInterval(key scheduler.Key, period time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = Registration{Period: period, Fn: fn}
	m.sets++
}

// ClearInterval forgets key.
func (m *Manual) ClearInterval(key scheduler.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Fire runs the callback registered under key once and reports whether one
// existed.
func (m *Manual) Fire(key scheduler.Key) bool {
	m.mu.Lock()
	r, ok := m.entries[key]
	m.mu.Unlock()
	if !ok {
		return false
	}
	r.Fn()
	return true
}

// Lookup returns the registration under key.
func (m *Manual) Lookup(key scheduler.Key) (Registration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.entries[key]
	return r, ok
}

// Active reports whether key is registered.
func (m *Manual) Active(key scheduler.Key) bool {
	_, ok := m.Lookup(key)
	return ok
}

// Keys returns the registered keys in a stable order.
func (m *Manual) Keys() []scheduler.Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]scheduler.Key, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Context != keys[j].Context {
			return keys[i].Context < keys[j].Context
		}
		return keys[i].Purpose < keys[j].Purpose
	})
	return keys
}

// Sets returns how many SetInterval calls were made.
func (m *Manual) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}
