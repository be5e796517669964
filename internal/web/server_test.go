package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cdr.dev/slog/v3/sloggers/slogtest"

	"github.com/kozaktomas/attendance-cam/internal/attendance"
	"github.com/kozaktomas/attendance-cam/internal/frame"
	"github.com/kozaktomas/attendance-cam/internal/liveness"
	"github.com/kozaktomas/attendance-cam/internal/metrics"
	"github.com/kozaktomas/attendance-cam/internal/pipeline"
	"github.com/kozaktomas/attendance-cam/internal/status"
)

type stubAttendance struct{}

func (stubAttendance) Status() status.Snapshot { return status.Snapshot{User: "alice"} }

func (stubAttendance) Confirm(context.Context, bool) pipeline.ConfirmResult {
	return pipeline.ConfirmResult{OK: false, Error: "no pending exit"}
}

func (stubAttendance) Today() ([]attendance.Event, []string) { return nil, nil }

type stubFrames struct{}

func (stubFrames) Display() *frame.Frame { return nil }

type stubWorkers struct{}

func (stubWorkers) Status() []liveness.WorkerStatus { return nil }

type stubRoster struct{}

func (stubRoster) Reload(context.Context) ([]string, error) { return []string{"alice"}, nil }

func newTestServer(t *testing.T, withRoster bool) *Server {
	t.Helper()
	deps := Deps{
		Attendance: stubAttendance{},
		Frames:     stubFrames{},
		Workers:    stubWorkers{},
		Metrics:    metrics.New().Handler(),
	}
	if withRoster {
		deps.Roster = stubRoster{}
	}
	return NewServer(deps, "127.0.0.1", 5000, nil, slogtest.Make(t, nil))
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t, true)

	tests := []struct {
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{http.MethodGet, "/api/v1/health", "", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/api/status", "", http.StatusOK, `"user":"alice"`},
		{http.MethodPost, "/api/exit_confirm", `{"confirmed":true}`, http.StatusOK, `"error":"no pending exit"`},
		{http.MethodGet, "/api/attendance/today", "", http.StatusOK, `"inside":[]`},
		{http.MethodGet, "/api/snapshot.jpg", "", http.StatusServiceUnavailable, "no frame"},
		{http.MethodGet, "/api/health/workers", "", http.StatusOK, `"healthy":true`},
		{http.MethodPost, "/api/reload_faces", "", http.StatusOK, `"users":["alice"]`},
		{http.MethodGet, "/metrics", "", http.StatusOK, "go_goroutines"},
		{http.MethodGet, "/", "", http.StatusOK, "/video_feed"},
		{http.MethodGet, "/api/status/extra", "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			recorder := httptest.NewRecorder()
			s.Router().ServeHTTP(recorder, req)

			if recorder.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, recorder.Code)
			}
			if tt.wantBody != "" && !strings.Contains(recorder.Body.String(), tt.wantBody) {
				t.Errorf("body %q does not contain %q", recorder.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRoutes_NoRosterReload(t *testing.T) {
	s := newTestServer(t, false)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/reload_faces", nil))
	if recorder.Code == http.StatusOK {
		t.Error("reload must not be routed without a roster")
	}
}

func TestServerAddr(t *testing.T) {
	s := newTestServer(t, false)
	if s.Addr() != "127.0.0.1:5000" {
		t.Errorf("unexpected addr %q", s.Addr())
	}
}
