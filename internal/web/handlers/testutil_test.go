package handlers

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/attendance-cam/internal/attendance"
	"github.com/kozaktomas/attendance-cam/internal/frame"
	"github.com/kozaktomas/attendance-cam/internal/liveness"
	"github.com/kozaktomas/attendance-cam/internal/pipeline"
	"github.com/kozaktomas/attendance-cam/internal/status"
)

// fakeAttendance is an in-memory AttendanceService with one pending slot.
type fakeAttendance struct {
	mu        sync.Mutex
	snapshot  status.Snapshot
	pending   string
	confirmed []bool
	events    []attendance.Event
	inside    []string
}

func (f *fakeAttendance) Status() status.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.snapshot
	s.PendingExit = f.pending
	return s
}

func (f *fakeAttendance) Confirm(_ context.Context, confirmed bool) pipeline.ConfirmResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == "" {
		return pipeline.ConfirmResult{OK: false, Error: pipeline.ErrNoPendingExit.Error()}
	}
	f.pending = ""
	f.confirmed = append(f.confirmed, confirmed)
	return pipeline.ConfirmResult{OK: true}
}

func (f *fakeAttendance) Today() ([]attendance.Event, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events, f.inside
}

type fakeReloader struct {
	names []string
	err   error
}

func (f *fakeReloader) Reload(context.Context) ([]string, error) {
	return f.names, f.err
}

var errReload = errors.New("embedding server unreachable")

type fakeWorkers []liveness.WorkerStatus

func (f fakeWorkers) Status() []liveness.WorkerStatus { return f }

type fakeDevice bool

func (f fakeDevice) Present() bool { return bool(f) }

// frameHolder is a settable FrameSource.
type frameHolder struct {
	mu sync.Mutex
	f  *frame.Frame
}

func (h *frameHolder) Display() *frame.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.f
}

func (h *frameHolder) set(f *frame.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.f = f
}

// testFrame encodes a small gray frame.
func testFrame(t *testing.T) *frame.Frame {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 32, 24))
	f, err := frame.FromImage(1, time.Now(), img, 80)
	if err != nil {
		t.Fatalf("failed to build test frame: %v", err)
	}
	return f
}
