package liveness

import (
	"context"
	"os"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
)

// Probe reports whether the device at path is present.
type Probe func(path string) bool

// StatProbe treats a device as present when its path exists.
func StatProbe(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DeviceMonitor watches one capture device path. The device is assumed
// present at start, so a missing device alerts on the first check.
type DeviceMonitor struct {
	Path     string
	Interval time.Duration
	Probe    Probe

	clock   quartz.Clock
	logger  slog.Logger
	alert   AlertFunc
	trigger EdgeTrigger
}

// NewDeviceMonitor builds a monitor using StatProbe.
func NewDeviceMonitor(path string, clock quartz.Clock, logger slog.Logger, interval time.Duration, alert AlertFunc) *DeviceMonitor {
	return &DeviceMonitor{
		Path:     path,
		Interval: interval,
		Probe:    StatProbe,
		clock:    clock,
		logger:   logger,
		alert:    alert,
	}
}

// Check probes the device once and emits an alert on a transition.
func (m *DeviceMonitor) Check(ctx context.Context) {
	present := m.Probe(m.Path)
	if !m.trigger.Set(m.Path, !present) {
		return
	}
	var msg string
	if present {
		msg = "camera " + m.Path + " reconnected"
		m.logger.Info(ctx, "camera reconnected", slog.F("path", m.Path))
	} else {
		msg = "camera " + m.Path + " disconnected"
		m.logger.Warn(ctx, "camera disconnected", slog.F("path", m.Path))
	}
	if m.alert != nil {
		m.alert(ctx, msg)
	}
}

// Present reports the last observed presence.
func (m *DeviceMonitor) Present() bool {
	return !m.trigger.Down(m.Path)
}

// Run calls Check every Interval until ctx is done.
func (m *DeviceMonitor) Run(ctx context.Context) error {
	return runTicker(ctx, m.clock, m.Interval, func() { m.Check(ctx) }, "device")
}
