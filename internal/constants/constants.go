// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Capture constants
const (
	// DefaultCaptureFPS is the target rate of the capture loop
	DefaultCaptureFPS = 15

	// CaptureRetryDelay is how long the capture loop sleeps after a failed device read
	CaptureRetryDelay = 50 * time.Millisecond

	// DefaultFrameWidth and DefaultFrameHeight are requested from V4L2 devices
	DefaultFrameWidth  = 640
	DefaultFrameHeight = 480

	// DisplayJPEGQuality is the quality used when re-encoding annotated frames
	DisplayJPEGQuality = 80
)

// Recognition constants
const (
	// DefaultRecognitionInterval is the delay between two recognition ticks
	DefaultRecognitionInterval = 500 * time.Millisecond

	// DefaultFaceTolerance is the maximum cosine distance for a roster match.
	// Lower values = stricter matching
	DefaultFaceTolerance = 0.5

	// HNSWMaxNeighbors is the M parameter of the roster index graph
	HNSWMaxNeighbors = 16

	// HNSWMinRosterSize is the roster size below which a linear scan is used instead of the index
	HNSWMinRosterSize = 64

	// HNSWEfSearch is the search candidate pool size
	HNSWEfSearch = 100
)

// Attendance constants
const (
	// DefaultCooldown is the minimum time between two accepted events for one identity
	DefaultCooldown = 5 * time.Second

	// UnknownCooldownKey is the cooldown key shared by all unrecognized faces
	UnknownCooldownKey = "unknown"

	// LedgerTimestampLayout and LedgerDateLayout define the persisted row format
	LedgerTimestampLayout = "2006-01-02 15:04:05"
	LedgerDateLayout      = "2006-01-02"

	// StatusTimeLayout is the time format shown on the status board
	StatusTimeLayout = "15:04:05"
)

// Liveness constants
const (
	// DefaultWatchdogInterval is how often heartbeats are evaluated
	DefaultWatchdogInterval = 5 * time.Second

	// DefaultWatchdogTimeout is the heartbeat age after which a worker is reported unresponsive
	DefaultWatchdogTimeout = 10 * time.Second

	// DefaultDeviceCheckInterval is how often the capture device presence is checked
	DefaultDeviceCheckInterval = 5 * time.Second
)

// Notification constants
const (
	// DefaultNotifyTimeout bounds every outbound notification request
	DefaultNotifyTimeout = 20 * time.Second

	// NotifyQueueSize is the buffer of the asynchronous notification dispatcher
	NotifyQueueSize = 64
)

// Video constants
const (
	// VideoFrameInterval is the cadence of the live view multiplexer
	VideoFrameInterval = time.Second / 15

	// VideoBoundary is the multipart boundary of the live view stream
	VideoBoundary = "frame"
)
