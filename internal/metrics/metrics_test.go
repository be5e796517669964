package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/attendance-cam/internal/metrics"
)

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	m.RecordCapture(nil)
	m.RecordRecognition("entry", time.Second)
	m.RecordEvent("entry")
	m.RecordAlert()
	m.RecordNotification("entry", metrics.NotifySent)
	m.SetPending(true)
	m.SetHeartbeatAge("capture", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsExposition(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.RecordCapture(nil)
	m.RecordCapture(nil)
	m.RecordCapture(errors.New("read failed"))
	m.RecordRecognition("no_face", 20*time.Millisecond)
	m.RecordEvent("entry")
	m.RecordNotification("alert", metrics.NotifyDropped)
	m.SetPending(true)
	m.SetHeartbeatAge("capture", 1500*time.Millisecond)

	count, err := testutil.GatherAndCount(m.Registry(),
		"attendance_capture_frames_total",
		"attendance_capture_errors_total",
		"attendance_events_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "attendance_capture_frames_total 2")
	assert.Contains(t, body, `attendance_recognition_ticks_total{outcome="no_face"} 1`)
	assert.Contains(t, body, `attendance_notify_jobs_total{kind="alert",result="dropped"} 1`)
	assert.Contains(t, body, "attendance_pending_exit_confirmation 1")
	assert.Contains(t, body, `attendance_liveness_heartbeat_age_seconds{worker="capture"} 1.5`)
}
