package liveness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
)

// WorkerStatus describes one monitored worker.
type WorkerStatus struct {
	Name     string        `json:"name"`
	LastSeen time.Time     `json:"last_seen"`
	Age      time.Duration `json:"age_ns"`
	Down     bool          `json:"down"`
}

// Watchdog periodically compares heartbeats against a timeout.
type Watchdog struct {
	Interval time.Duration
	Timeout  time.Duration

	// Observe, if set, receives the heartbeat age of every worker on each check.
	Observe func(worker string, age time.Duration)

	registry *Registry
	clock    quartz.Clock
	logger   slog.Logger
	alert    AlertFunc
	trigger  EdgeTrigger
}

// NewWatchdog builds a watchdog over registry.
func NewWatchdog(registry *Registry, clock quartz.Clock, logger slog.Logger, interval, timeout time.Duration, alert AlertFunc) *Watchdog {
	return &Watchdog{
		Interval: interval,
		Timeout:  timeout,
		registry: registry,
		clock:    clock,
		logger:   logger,
		alert:    alert,
	}
}

// Check evaluates every worker once and emits alerts on state changes.
func (w *Watchdog) Check(ctx context.Context) {
	now := w.clock.Now("watchdog", "check")
	for _, name := range w.registry.Workers() {
		last, _ := w.registry.LastSeen(name)
		elapsed := now.Sub(last)
		if w.Observe != nil {
			w.Observe(name, elapsed)
		}
		down := elapsed > w.Timeout
		if !w.trigger.Set(name, down) {
			continue
		}
		var msg string
		if down {
			msg = fmt.Sprintf("%s worker unresponsive for %s", name, elapsed.Round(time.Second))
			w.logger.Warn(ctx, "worker unresponsive", slog.F("worker", name), slog.F("elapsed", elapsed))
		} else {
			msg = name + " worker recovered"
			w.logger.Info(ctx, "worker recovered", slog.F("worker", name))
		}
		if w.alert != nil {
			w.alert(ctx, msg)
		}
	}
}

// Status reports the state of every worker as of now.
func (w *Watchdog) Status() []WorkerStatus {
	now := w.clock.Now("watchdog", "status")
	var out []WorkerStatus
	for _, name := range w.registry.Workers() {
		last, _ := w.registry.LastSeen(name)
		out = append(out, WorkerStatus{
			Name:     name,
			LastSeen: last,
			Age:      now.Sub(last),
			Down:     w.trigger.Down(name),
		})
	}
	return out
}

// Run calls Check every Interval until ctx is done.
func (w *Watchdog) Run(ctx context.Context) error {
	return runTicker(ctx, w.clock, w.Interval, func() { w.Check(ctx) }, "watchdog")
}

func runTicker(ctx context.Context, clock quartz.Clock, d time.Duration, fn func(), tag string) error {
	waiter := clock.TickerFunc(ctx, d, func() error {
		fn()
		return nil
	}, tag)
	err := waiter.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
