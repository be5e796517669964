// Package pipeline runs the capture and recognition loops and turns
// recognitions into attendance events.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/attendance-cam/internal/attendance"
	"github.com/kozaktomas/attendance-cam/internal/camera"
	"github.com/kozaktomas/attendance-cam/internal/constants"
	"github.com/kozaktomas/attendance-cam/internal/cooldown"
	"github.com/kozaktomas/attendance-cam/internal/frame"
	"github.com/kozaktomas/attendance-cam/internal/liveness"
	"github.com/kozaktomas/attendance-cam/internal/metrics"
	"github.com/kozaktomas/attendance-cam/internal/status"
)

// Worker names used for heartbeats.
const (
	WorkerCapture     = "capture"
	WorkerRecognition = "recognition"
)

// ErrNoPendingExit is reported when a confirmation arrives with nothing pending.
var ErrNoPendingExit = errors.New("no pending exit")

// Recognizer identifies the most prominent face in a frame.
type Recognizer interface {
	Recognize(ctx context.Context, f *frame.Frame) (frame.Detection, error)
}

// Notifier delivers event side effects. Implementations must not block.
type Notifier interface {
	NotifyEntry(ctx context.Context, user string, at time.Time, f *frame.Frame)
	NotifyExit(ctx context.Context, user string, at time.Time)
	NotifyAlert(ctx context.Context, msg string)
	SaveUnknownEvidence(ctx context.Context, f *frame.Frame, at time.Time)
}

// Config tunes the loops.
type Config struct {
	CaptureInterval     time.Duration
	RecognitionInterval time.Duration
	Cooldown            time.Duration
	SaveUnknown         bool
	DisplayQuality      int
}

// Deps are the collaborators of a Service. Recognizer may be nil, in which
// case every tick sees no face.
type Deps struct {
	Source     camera.Source
	Recognizer Recognizer
	Notifier   Notifier
	Ledger     *attendance.Ledger
	Board      *status.Board
	Registry   *liveness.Registry
	Clock      quartz.Clock
	Logger     slog.Logger
	Metrics    *metrics.Metrics
}

// Service owns the shared pipeline state.
type Service struct {
	cfg        Config
	source     camera.Source
	recognizer Recognizer
	notifier   Notifier
	ledger     *attendance.Ledger
	board      *status.Board
	registry   *liveness.Registry
	clock      quartz.Clock
	logger     slog.Logger
	metrics    *metrics.Metrics

	bus        *frame.Bus
	detections *frame.DetectionCache
	events     *cooldown.Tracker
	unknown    *cooldown.Tracker

	// recognizeMu serializes recognition ticks.
	recognizeMu sync.Mutex
	// captureFailing is only touched by the capture loop.
	captureFailing bool
}

// New wires a Service and registers its workers for heartbeat tracking.
func New(deps Deps, cfg Config) *Service {
	if cfg.CaptureInterval <= 0 {
		cfg.CaptureInterval = time.Second / constants.DefaultCaptureFPS
	}
	if cfg.RecognitionInterval <= 0 {
		cfg.RecognitionInterval = constants.DefaultRecognitionInterval
	}
	if cfg.DisplayQuality <= 0 {
		cfg.DisplayQuality = constants.DisplayJPEGQuality
	}
	s := &Service{
		cfg:        cfg,
		source:     deps.Source,
		recognizer: deps.Recognizer,
		notifier:   deps.Notifier,
		ledger:     deps.Ledger,
		board:      deps.Board,
		registry:   deps.Registry,
		clock:      deps.Clock,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		bus:        &frame.Bus{},
		detections: &frame.DetectionCache{},
		events:     cooldown.New(deps.Clock, cfg.Cooldown),
		unknown:    cooldown.New(deps.Clock, cfg.Cooldown),
	}
	s.registry.Register(WorkerCapture)
	s.registry.Register(WorkerRecognition)
	return s
}

// Bus exposes the latest frames.
func (s *Service) Bus() *frame.Bus {
	return s.bus
}

// Detection returns the most recent recognition result.
func (s *Service) Detection() frame.Detection {
	return s.detections.Load()
}

// Status returns the current status board snapshot.
func (s *Service) Status() status.Snapshot {
	return s.board.Snapshot()
}

// Run runs the capture and recognition loops until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		s.RunCapture(ctx)
		return nil
	})
	eg.Go(func() error {
		return s.RunRecognition(ctx)
	})
	return eg.Wait()
}

// sleep waits for d or until ctx is done. It reports whether ctx is still live.
func (s *Service) sleep(ctx context.Context, d time.Duration, tags ...string) bool {
	t := s.clock.NewTimer(d, tags...)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
