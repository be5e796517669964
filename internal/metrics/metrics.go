// Package metrics exposes Prometheus instrumentation for the pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attendance"

// Notification result label values.
const (
	NotifySent    = "sent"
	NotifyFailed  = "failed"
	NotifyDropped = "dropped"
	NotifySkipped = "skipped"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	framesCaptured      prometheus.Counter
	captureErrors       prometheus.Counter
	recognitionOutcomes *prometheus.CounterVec
	recognitionLatency  prometheus.Histogram
	attendanceEvents    *prometheus.CounterVec
	alerts              prometheus.Counter
	notifications       *prometheus.CounterVec
	pendingConfirmation prometheus.Gauge
	heartbeatAge        *prometheus.GaugeVec
}

// New creates the collectors on a fresh registry that also carries the Go
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "frames_total",
			Help:      "Frames read from the camera and published.",
		}),
		captureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "errors_total",
			Help:      "Failed camera reads.",
		}),
		recognitionOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recognition",
			Name:      "ticks_total",
			Help:      "Recognition ticks by outcome.",
		}, []string{"outcome"}),
		recognitionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recognition",
			Name:      "duration_seconds",
			Help:      "Time spent in the recognizer per tick.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		attendanceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Attendance events recorded, by action.",
		}, []string{"action"}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Liveness alerts raised.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "jobs_total",
			Help:      "Notification and evidence jobs by kind and result.",
		}, []string{"kind", "result"}),
		pendingConfirmation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_exit_confirmation",
			Help:      "1 while an exit confirmation is outstanding.",
		}),
		heartbeatAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "heartbeat_age_seconds",
			Help:      "Seconds since each worker last reported in.",
		}, []string{"worker"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.framesCaptured,
		m.captureErrors,
		m.recognitionOutcomes,
		m.recognitionLatency,
		m.attendanceEvents,
		m.alerts,
		m.notifications,
		m.pendingConfirmation,
		m.heartbeatAge,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCapture counts one camera read.
func (m *Metrics) RecordCapture(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.captureErrors.Inc()
		return
	}
	m.framesCaptured.Inc()
}

// RecordRecognition counts one recognition tick.
func (m *Metrics) RecordRecognition(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.recognitionOutcomes.WithLabelValues(outcome).Inc()
	if took > 0 {
		m.recognitionLatency.Observe(took.Seconds())
	}
}

// RecordEvent counts a persisted attendance event.
func (m *Metrics) RecordEvent(action string) {
	if m == nil {
		return
	}
	m.attendanceEvents.WithLabelValues(action).Inc()
}

// RecordAlert counts a liveness alert.
func (m *Metrics) RecordAlert() {
	if m == nil {
		return
	}
	m.alerts.Inc()
}

// RecordNotification counts a dispatcher job.
func (m *Metrics) RecordNotification(kind, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}

// SetPending reflects whether an exit confirmation is outstanding.
func (m *Metrics) SetPending(pending bool) {
	if m == nil {
		return
	}
	if pending {
		m.pendingConfirmation.Set(1)
		return
	}
	m.pendingConfirmation.Set(0)
}

// SetHeartbeatAge records how long ago worker reported in.
func (m *Metrics) SetHeartbeatAge(worker string, age time.Duration) {
	if m == nil {
		return
	}
	m.heartbeatAge.WithLabelValues(worker).Set(age.Seconds())
}
