// Package liveness tracks worker heartbeats and capture device presence and
// raises edge-triggered alerts when either goes away or comes back.
package liveness

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// AlertFunc delivers an alert message. It must not block for long.
type AlertFunc func(ctx context.Context, msg string)

// Registry records the last time each worker reported in.
type Registry struct {
	clock quartz.Clock

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry(clock quartz.Clock) *Registry {
	return &Registry{clock: clock, lastSeen: make(map[string]time.Time)}
}

// Register adds worker as if it had just beaten, so a worker that never
// starts is reported after one timeout.
func (r *Registry) Register(worker string) {
	r.Beat(worker)
}

// Beat stamps worker with the current time.
func (r *Registry) Beat(worker string) {
	now := r.clock.Now("liveness", "beat")
	r.mu.Lock()
	r.lastSeen[worker] = now
	r.mu.Unlock()
}

// LastSeen returns the last heartbeat of worker.
func (r *Registry) LastSeen(worker string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.lastSeen[worker]
	return t, ok
}

// Snapshot copies all heartbeats out.
func (r *Registry) Snapshot() map[string]time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]time.Time, len(r.lastSeen))
	for k, v := range r.lastSeen {
		out[k] = v
	}
	return out
}

// Workers returns the registered worker names in sorted order.
func (r *Registry) Workers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.lastSeen))
	for k := range r.lastSeen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// EdgeTrigger remembers a down flag per key and reports transitions only.
type EdgeTrigger struct {
	mu   sync.Mutex
	down map[string]bool
}

// Set records the state of key and reports whether it changed.
func (e *EdgeTrigger) Set(key string, down bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.down == nil {
		e.down = make(map[string]bool)
	}
	if e.down[key] == down {
		return false
	}
	e.down[key] = down
	return true
}

// Down reports the last recorded state of key.
func (e *EdgeTrigger) Down(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.down[key]
}
