// Package cooldown suppresses repeated triggers for the same key within a window.
package cooldown

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// Tracker remembers when each key was last accepted. Entries live in memory
// only; a restart starts every key with a fresh window.
type Tracker struct {
	clock  quartz.Clock
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

// New creates a Tracker. A non-positive window disables suppression.
func New(clock quartz.Clock, window time.Duration) *Tracker {
	return &Tracker{
		clock:  clock,
		window: window,
		last:   make(map[string]time.Time),
	}
}

// Allow reports whether key may trigger now and, if so, stamps it. The check
// and the stamp happen under one lock, so two concurrent callers can never
// both pass for the same key.
func (t *Tracker) Allow(key string) bool {
	now := t.clock.Now("cooldown", "allow")

	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[key]; ok && now.Sub(last) < t.window {
		return false
	}
	t.last[key] = now
	return true
}

// Last returns the last accepted time for key.
func (t *Tracker) Last(key string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.last[key]
	return ts, ok
}

// Window returns the configured suppression window.
func (t *Tracker) Window() time.Duration {
	return t.window
}

// Reset forgets all keys.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = make(map[string]time.Time)
}
