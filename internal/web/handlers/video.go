package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/coder/quartz"

	"github.com/kozaktomas/attendance-cam/internal/constants"
	"github.com/kozaktomas/attendance-cam/internal/frame"
)

// FrameSource returns the latest annotated frame, or nil before the first capture.
type FrameSource interface {
	Display() *frame.Frame
}

// VideoHandler serves the live view.
type VideoHandler struct {
	frames   FrameSource
	clock    quartz.Clock
	interval time.Duration
}

// NewVideoHandler creates a video handler sending one frame per interval.
func NewVideoHandler(frames FrameSource, clock quartz.Clock, interval time.Duration) *VideoHandler {
	if interval <= 0 {
		interval = constants.VideoFrameInterval
	}
	return &VideoHandler{frames: frames, clock: clock, interval: interval}
}

// Feed streams the latest display frame as multipart/x-mixed-replace until
// the client goes away. Ticks without a frame are skipped.
func (h *VideoHandler) Feed(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	// The server write timeout would cut the stream; the client decides when it ends.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+constants.VideoBoundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := h.clock.NewTicker(h.interval, "video", "feed")
	defer ticker.Stop()

	for {
		if f := h.frames.Display(); f != nil && len(f.Data) > 0 {
			if err := writePart(w, f.Data); err != nil {
				return
			}
			flusher.Flush()
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\n\r\n", constants.VideoBoundary); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

// Snapshot returns the latest display frame as a single JPEG.
func (h *VideoHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	f := h.frames.Display()
	if f == nil || len(f.Data) == 0 {
		respondError(w, http.StatusServiceUnavailable, "no frame captured yet")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(f.Data)
}
