package pipeline

import (
	"context"

	"cdr.dev/slog/v3"

	"github.com/kozaktomas/attendance-cam/internal/attendance"
)

// ConfirmResult is the answer to an exit confirmation.
type ConfirmResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Confirm resolves the pending exit. The pending identity is taken from the
// board in one step, so concurrent confirmations resolve it at most once.
func (s *Service) Confirm(ctx context.Context, confirmed bool) ConfirmResult {
	id, ok := s.board.TakePending()
	s.metrics.SetPending(s.board.Pending())
	if !ok {
		return ConfirmResult{OK: false, Error: ErrNoPendingExit.Error()}
	}

	if !confirmed {
		s.logger.Info(ctx, "exit cancelled", slog.F("identity", id))
		return ConfirmResult{OK: true}
	}

	at, err := s.ledger.RecordExit(id)
	if err != nil {
		s.logger.Error(ctx, "recording exit failed", slog.F("identity", id), slog.Error(err))
		return ConfirmResult{OK: false, Error: "recording exit failed"}
	}
	s.board.RecordExit(id, at)
	s.metrics.RecordEvent("exit")
	s.logger.Info(ctx, "exit recorded", slog.F("identity", id), slog.F("at", at))
	s.notifier.NotifyExit(ctx, id, at)
	return ConfirmResult{OK: true}
}

// IsInside reports whether id is currently inside.
func (s *Service) IsInside(id string) bool {
	return s.ledger.IsInside(id)
}

// Today returns today's attendance events and who is inside.
func (s *Service) Today() ([]attendance.Event, []string) {
	return s.ledger.Today(), s.ledger.Inside()
}
