package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/attendance-cam/internal/liveness"
)

func TestWorkersHandler_Get(t *testing.T) {
	healthy := fakeWorkers{
		{Name: "capture", Age: 100 * time.Millisecond},
		{Name: "recognition", Age: 400 * time.Millisecond},
	}
	stalled := fakeWorkers{
		{Name: "capture", Age: 12 * time.Second, Down: true},
		{Name: "recognition", Age: 400 * time.Millisecond},
	}

	tests := []struct {
		name        string
		workers     fakeWorkers
		device      DevicePresence
		wantStatus  int
		wantHealthy bool
		wantPresent bool
		monitored   bool
	}{
		{"all good", healthy, fakeDevice(true), http.StatusOK, true, true, true},
		{"worker down", stalled, fakeDevice(true), http.StatusServiceUnavailable, false, true, true},
		{"camera gone", healthy, fakeDevice(false), http.StatusServiceUnavailable, false, false, true},
		{"no local device", healthy, nil, http.StatusOK, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWorkersHandler(tt.workers, tt.device, "/dev/video0")

			recorder := httptest.NewRecorder()
			h.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/health/workers", nil))

			if recorder.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, recorder.Code)
			}
			var resp WorkersResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Healthy != tt.wantHealthy {
				t.Errorf("healthy = %v, want %v", resp.Healthy, tt.wantHealthy)
			}
			if resp.Camera.Present != tt.wantPresent || resp.Camera.Monitored != tt.monitored {
				t.Errorf("unexpected camera health %+v", resp.Camera)
			}
			if len(resp.Workers) != 2 {
				t.Errorf("expected 2 workers, got %d", len(resp.Workers))
			}
		})
	}
}

func TestWorkersHandler_NoWorkers(t *testing.T) {
	h := NewWorkersHandler(fakeWorkers(nil), nil, "")

	recorder := httptest.NewRecorder()
	h.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/health/workers", nil))

	var resp struct {
		Workers []liveness.WorkerStatus `json:"workers"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Workers == nil {
		t.Error("expected an empty array, not null")
	}
}
