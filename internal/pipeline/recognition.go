package pipeline

import (
	"context"
	"errors"

	"cdr.dev/slog/v3"

	"github.com/kozaktomas/attendance-cam/internal/attendance"
	"github.com/kozaktomas/attendance-cam/internal/constants"
	"github.com/kozaktomas/attendance-cam/internal/frame"
)

// Outcome is the result of one recognition tick.
type Outcome string

// Outcome constants.
const (
	OutcomeSkippedPending Outcome = "skipped_pending"
	OutcomeNoFrame        Outcome = "no_frame"
	OutcomeNoFace         Outcome = "no_face"
	OutcomeUnknown        Outcome = "unknown"
	OutcomeCooldown       Outcome = "cooldown"
	OutcomeEntry          Outcome = "entry"
	OutcomeExitPending    Outcome = "exit_pending"
	OutcomeError          Outcome = "error"
)

// RecognizeOnce runs a single recognition tick.
func (s *Service) RecognizeOnce(ctx context.Context) Outcome {
	s.recognizeMu.Lock()
	defer s.recognizeMu.Unlock()

	s.registry.Beat(WorkerRecognition)
	start := s.clock.Now("pipeline", "recognize")
	outcome := s.recognizeLocked(ctx)
	s.metrics.RecordRecognition(string(outcome), s.clock.Since(start, "pipeline", "recognize"))
	return outcome
}

func (s *Service) recognizeLocked(ctx context.Context) Outcome {
	if s.board.Pending() {
		return OutcomeSkippedPending
	}
	raw := s.bus.Raw()
	if raw == nil {
		return OutcomeNoFrame
	}

	det, err := s.recognize(ctx, raw)
	s.detections.Store(det)
	if err != nil {
		return OutcomeError
	}

	switch {
	case !det.HasFace():
		return OutcomeNoFace
	case !det.IsKnown():
		if s.cfg.SaveUnknown && s.unknown.Allow(constants.UnknownCooldownKey) {
			s.notifier.SaveUnknownEvidence(ctx, raw, s.clock.Now("pipeline", "unknown"))
		}
		return OutcomeUnknown
	}

	id := det.Identity
	if !s.events.Allow(id) {
		return OutcomeCooldown
	}

	switch s.ledger.CheckAction(id) {
	case attendance.ActionEntry:
		at, err := s.ledger.RecordEntry(id)
		if err != nil {
			s.logger.Error(ctx, "recording entry failed", slog.F("identity", id), slog.Error(err))
			return OutcomeError
		}
		s.board.RecordEntry(id, at)
		s.metrics.RecordEvent(string(attendance.ActionEntry))
		s.logger.Info(ctx, "entry recorded", slog.F("identity", id), slog.F("at", at))
		s.notifier.NotifyEntry(ctx, id, at, raw)
		return OutcomeEntry
	default:
		if !s.board.RequestExit(id) {
			return OutcomeSkippedPending
		}
		s.metrics.SetPending(true)
		s.logger.Info(ctx, "exit awaiting confirmation", slog.F("identity", id))
		return OutcomeExitPending
	}
}

// recognize calls the recognizer. Failures degrade to a detection without
// a face.
func (s *Service) recognize(ctx context.Context, f *frame.Frame) (frame.Detection, error) {
	if s.recognizer == nil {
		return frame.Detection{}, nil
	}
	det, err := s.recognizer.Recognize(ctx, f)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Debug(ctx, "recognition failed", slog.Error(err))
		}
		return frame.Detection{}, err
	}
	return det, nil
}

// RunRecognition ticks at the configured interval until ctx is done.
func (s *Service) RunRecognition(ctx context.Context) error {
	waiter := s.clock.TickerFunc(ctx, s.cfg.RecognitionInterval, func() error {
		s.RecognizeOnce(ctx)
		return nil
	}, "pipeline", "recognition")
	err := waiter.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
