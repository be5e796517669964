package handlers

import (
	"net/http"

	"github.com/kozaktomas/attendance-cam/internal/liveness"
)

// WorkerStatusSource reports worker heartbeats.
type WorkerStatusSource interface {
	Status() []liveness.WorkerStatus
}

// DevicePresence reports whether the capture device is attached.
type DevicePresence interface {
	Present() bool
}

// WorkersHandler exposes worker and camera health.
type WorkersHandler struct {
	workers    WorkerStatusSource
	device     DevicePresence
	devicePath string
}

// NewWorkersHandler creates a workers handler. device may be nil for
// sources without a local device.
func NewWorkersHandler(workers WorkerStatusSource, device DevicePresence, devicePath string) *WorkersHandler {
	return &WorkersHandler{workers: workers, device: device, devicePath: devicePath}
}

// CameraHealth is the device part of the workers response.
type CameraHealth struct {
	Device    string `json:"device"`
	Monitored bool   `json:"monitored"`
	Present   bool   `json:"present"`
}

// WorkersResponse is the health of every background worker.
type WorkersResponse struct {
	Healthy bool                    `json:"healthy"`
	Workers []liveness.WorkerStatus `json:"workers"`
	Camera  CameraHealth            `json:"camera"`
}

// Get reports the worker health. Unhealthy systems answer 503 so the
// endpoint can back a container health check.
func (h *WorkersHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := WorkersResponse{
		Healthy: true,
		Workers: h.workers.Status(),
		Camera:  CameraHealth{Device: h.devicePath, Present: true},
	}
	if resp.Workers == nil {
		resp.Workers = []liveness.WorkerStatus{}
	}
	for _, ws := range resp.Workers {
		if ws.Down {
			resp.Healthy = false
		}
	}
	if h.device != nil {
		resp.Camera.Monitored = true
		resp.Camera.Present = h.device.Present()
		if !resp.Camera.Present {
			resp.Healthy = false
		}
	}

	code := http.StatusOK
	if !resp.Healthy {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, resp)
}
