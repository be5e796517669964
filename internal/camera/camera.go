// Package camera provides frame sources for the capture loop.
package camera

import (
	"context"
	"errors"
	"strings"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/kozaktomas/attendance-cam/internal/frame"
)

// ErrNoFrame is returned when a source has nothing new to hand out yet.
var ErrNoFrame = errors.New("no frame available")

// Source produces camera frames. ReadFrame may block for a bounded time.
type Source interface {
	ReadFrame(ctx context.Context) (*frame.Frame, error)
	Close() error
}

// Options configure the source built by Open.
type Options struct {
	Width       int
	Height      int
	FPS         int
	ReadTimeout time.Duration
	FFmpegPath  string
}

// Open picks a source implementation from the device string:
// "dir:<path>" cycles the JPEG files of a directory, an http(s) URL ending in
// .jpg or .jpeg is polled as a snapshot endpoint, other URLs are streamed
// through ffmpeg, and anything else is treated as a V4L2 device path.
func Open(device string, opts Options, clock quartz.Clock, logger slog.Logger) (Source, error) {
	switch {
	case strings.HasPrefix(device, "dir:"):
		return NewDirSource(strings.TrimPrefix(device, "dir:"), clock)
	case IsSnapshotURL(device):
		return NewSnapshotSource(device, opts.ReadTimeout, clock), nil
	default:
		return NewFFmpegSource(device, opts, clock, logger), nil
	}
}

// IsNetworkSource reports whether device is a URL rather than a local path.
func IsNetworkSource(device string) bool {
	return strings.HasPrefix(device, "http://") ||
		strings.HasPrefix(device, "https://") ||
		strings.HasPrefix(device, "rtsp://")
}

// IsSnapshotURL reports whether device is an HTTP endpoint serving single JPEGs.
func IsSnapshotURL(device string) bool {
	if !strings.HasPrefix(device, "http://") && !strings.HasPrefix(device, "https://") {
		return false
	}
	path := strings.ToLower(device)
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return strings.HasSuffix(path, ".jpg") || strings.HasSuffix(path, ".jpeg")
}

// LocalDevice returns the filesystem path that identifies device, or "" when
// the device has no presence to monitor.
func LocalDevice(device string) string {
	if strings.HasPrefix(device, "dir:") || IsNetworkSource(device) {
		return ""
	}
	return device
}
