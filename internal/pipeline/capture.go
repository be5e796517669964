package pipeline

import (
	"context"

	"cdr.dev/slog/v3"

	"github.com/kozaktomas/attendance-cam/internal/constants"
	"github.com/kozaktomas/attendance-cam/internal/frame"
)

// CaptureOnce reads one frame, draws the latest detection on a copy and
// publishes both.
func (s *Service) CaptureOnce(ctx context.Context) error {
	raw, err := s.source.ReadFrame(ctx)
	s.metrics.RecordCapture(err)
	if err != nil {
		return err
	}
	s.registry.Beat(WorkerCapture)

	display, err := frame.Annotate(raw, s.detections.Load(), s.cfg.DisplayQuality)
	if err != nil {
		s.logger.Debug(ctx, "annotating frame failed, showing raw frame", slog.Error(err))
		display = raw
	}
	s.bus.Publish(raw, display)
	return nil
}

// RunCapture captures at the configured rate until ctx is done. Read
// failures are retried after a short pause and never end the loop.
func (s *Service) RunCapture(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.CaptureInterval, "pipeline", "capture")
	defer ticker.Stop()

	for {
		if err := s.CaptureOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			if !s.captureFailing {
				s.captureFailing = true
				s.logger.Warn(ctx, "camera read failing, retrying", slog.Error(err))
			}
			if !s.sleep(ctx, constants.CaptureRetryDelay, "pipeline", "capture-retry") {
				return
			}
			continue
		}
		if s.captureFailing {
			s.captureFailing = false
			s.logger.Info(ctx, "camera read recovered")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
