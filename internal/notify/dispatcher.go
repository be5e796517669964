package notify

import (
	"context"
	"errors"
	"time"

	"cdr.dev/slog/v3"

	"github.com/kozaktomas/attendance-cam/internal/frame"
	"github.com/kozaktomas/attendance-cam/internal/metrics"
)

// Sender delivers a message to an external channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Evidence persists event frames.
type Evidence interface {
	SaveEntry(user string, at time.Time, f *frame.Frame) (string, error)
	SaveUnknown(at time.Time, f *frame.Frame) (string, error)
}

type job struct {
	kind Kind
	desc string
	run  func(ctx context.Context) error
}

// Dispatcher queues notifications and evidence writes and performs them on
// its own goroutine, so callers never wait on network or disk. A full queue
// drops the job. Each job gets its own timeout and is never retried.
type Dispatcher struct {
	sender   Sender
	evidence Evidence
	timeout  time.Duration
	logger   slog.Logger
	metrics  *metrics.Metrics

	jobs chan job
}

// NewDispatcher creates a dispatcher. sender and evidence may be nil.
func NewDispatcher(sender Sender, evidence Evidence, timeout time.Duration, queueSize int, logger slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		evidence: evidence,
		timeout:  timeout,
		logger:   logger,
		metrics:  m,
		jobs:     make(chan job, queueSize),
	}
}

// NotifyEntry announces an entry and stores its evidence frame.
func (d *Dispatcher) NotifyEntry(ctx context.Context, user string, at time.Time, f *frame.Frame) {
	d.send(ctx, EntryMessage(user, at))
	if f != nil && d.evidence != nil {
		d.enqueue(ctx, job{kind: KindEvidence, desc: user, run: func(context.Context) error {
			path, err := d.evidence.SaveEntry(user, at, f)
			if err == nil {
				d.logger.Debug(ctx, "saved entry evidence", slog.F("path", path))
			}
			return err
		}})
	}
}

// NotifyExit announces an exit.
func (d *Dispatcher) NotifyExit(ctx context.Context, user string, at time.Time) {
	d.send(ctx, ExitMessage(user, at))
}

// NotifyAlert announces a system alert.
func (d *Dispatcher) NotifyAlert(ctx context.Context, msg string) {
	d.send(ctx, AlertMessage(msg))
}

// SaveUnknownEvidence stores the frame of an unrecognized face.
func (d *Dispatcher) SaveUnknownEvidence(ctx context.Context, f *frame.Frame, at time.Time) {
	if f == nil || d.evidence == nil {
		return
	}
	d.enqueue(ctx, job{kind: KindEvidence, desc: "unknown", run: func(context.Context) error {
		path, err := d.evidence.SaveUnknown(at, f)
		if err == nil {
			d.logger.Debug(ctx, "saved unknown evidence", slog.F("path", path))
		}
		return err
	}})
}

func (d *Dispatcher) send(ctx context.Context, msg Message) {
	if d.sender == nil {
		d.logger.Info(ctx, "notification not delivered, no sender configured", slog.F("text", msg.Text))
		d.metrics.RecordNotification(string(msg.Kind), metrics.NotifySkipped)
		return
	}
	d.enqueue(ctx, job{kind: msg.Kind, desc: msg.Text, run: func(ctx context.Context) error {
		return d.sender.Send(ctx, msg)
	}})
}

func (d *Dispatcher) enqueue(ctx context.Context, j job) {
	select {
	case d.jobs <- j:
	default:
		d.logger.Warn(ctx, "notification queue full, dropping job",
			slog.F("kind", j.kind), slog.F("job", j.desc))
		d.metrics.RecordNotification(string(j.kind), metrics.NotifyDropped)
	}
}

// Run executes queued jobs until ctx is done. Jobs still queued at that
// point are discarded.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if n := len(d.jobs); n > 0 {
				d.logger.Warn(context.Background(), "discarding queued notifications on shutdown", slog.F("count", n))
			}
			return nil
		case j := <-d.jobs:
			d.execute(ctx, j)
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, j job) {
	jobCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := j.run(jobCtx)
	switch {
	case err == nil:
		d.metrics.RecordNotification(string(j.kind), metrics.NotifySent)
	case errors.Is(err, ErrNotConfigured):
		d.logger.Info(ctx, "notification skipped, destination not configured",
			slog.F("kind", j.kind), slog.F("job", j.desc))
		d.metrics.RecordNotification(string(j.kind), metrics.NotifySkipped)
	default:
		d.logger.Error(ctx, "notification failed",
			slog.F("kind", j.kind), slog.F("job", j.desc), slog.Error(err))
		d.metrics.RecordNotification(string(j.kind), metrics.NotifyFailed)
	}
}
