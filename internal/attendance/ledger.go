package attendance

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/kozaktomas/attendance-cam/internal/constants"
)

// Ledger is the durable record of entries and exits together with the
// in-memory per-identity presence state derived from it. One mutex guards
// both, so an append and the matching state flip are atomic with respect to
// CheckAction.
type Ledger struct {
	clock  quartz.Clock
	logger slog.Logger
	path   string

	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	states map[string]DayState
	day    string
	events []Event
}

// Open opens (creating if needed) the attendance log at path and restores
// today's presence state from it.
func Open(path string, clock quartz.Clock, logger slog.Logger) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}

	l := &Ledger{
		clock:  clock,
		logger: logger,
		path:   path,
		states: make(map[string]DayState),
	}

	info, statErr := os.Stat(path)
	missing := errors.Is(statErr, os.ErrNotExist)
	if statErr != nil && !missing {
		return nil, fmt.Errorf("checking attendance log: %w", statErr)
	}
	fresh := missing || info.Size() == 0

	var torn bool
	if !fresh {
		if err := l.restore(); err != nil {
			return nil, err
		}
		var err error
		if torn, err = missingTrailingNewline(path, info.Size()); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening attendance log: %w", err)
	}
	l.file = f
	l.writer = csv.NewWriter(f)

	// A torn or hand-edited last row would swallow the next append.
	if torn {
		if _, err := f.WriteString("\n"); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("terminating last attendance row: %w", err)
		}
		l.logger.Warn(context.Background(), "attendance log did not end with a newline, terminated the last row",
			slog.F("path", path))
	}

	if fresh {
		if err := l.appendRow(logHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("writing attendance log header: %w", err)
		}
	}
	return l, nil
}

func missingTrailingNewline(path string, size int64) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("opening attendance log: %w", err)
	}
	defer f.Close()

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return false, fmt.Errorf("reading attendance log tail: %w", err)
	}
	return last[0] != '\n', nil
}

func (l *Ledger) restore() error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("opening attendance log for replay: %w", err)
	}
	defer f.Close()

	now := l.now()
	today := now.Format(constants.LedgerDateLayout)
	events, skipped, err := ReadEvents(f, now.Location())
	if err != nil {
		return err
	}
	if skipped > 0 {
		l.logger.Warn(context.Background(), "skipped malformed attendance rows",
			slog.F("path", l.path), slog.F("rows", skipped))
	}

	l.day = today
	l.states = Replay(events, today)
	for _, ev := range events {
		if ev.Date == today {
			l.events = append(l.events, ev)
		}
	}
	l.logger.Info(context.Background(), "restored attendance state",
		slog.F("day", today), slog.F("events", len(l.events)), slog.F("inside", len(l.insideLocked())))
	return nil
}

func (l *Ledger) now() time.Time {
	return l.clock.Now("attendance", "now")
}

// rollLocked drops the cached event list when the calendar day changed.
func (l *Ledger) rollLocked(today string) {
	if l.day != today {
		l.day = today
		l.events = nil
	}
}

func (l *Ledger) stateLocked(id, today string) DayState {
	s := ResetIfStale(l.states[id], today)
	l.states[id] = s
	return s
}

// CheckAction reports what a positive recognition of id should lead to.
func (l *Ledger) CheckAction(id string) Action {
	today := l.now().Format(constants.LedgerDateLayout)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stateLocked(id, today).Entered {
		return ActionExitConfirm
	}
	return ActionEntry
}

// IsInside reports whether id has an entry without a later exit today.
func (l *Ledger) IsInside(id string) bool {
	return l.CheckAction(id) == ActionExitConfirm
}

// RecordEntry persists an entry for id and marks it inside.
func (l *Ledger) RecordEntry(id string) (time.Time, error) {
	return l.record(id, MarkEntry)
}

// RecordExit persists an exit for id and marks it outside.
func (l *Ledger) RecordExit(id string) (time.Time, error) {
	return l.record(id, MarkExit)
}

func (l *Ledger) record(id string, mark Mark) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return time.Time{}, errors.New("attendance log is closed")
	}

	now := l.now()
	today := now.Format(constants.LedgerDateLayout)
	l.rollLocked(today)
	state := l.stateLocked(id, today)

	ev := Event{Timestamp: now, Identity: id, Mark: mark, Date: today}
	if err := l.appendRow(formatRow(ev)); err != nil {
		return time.Time{}, fmt.Errorf("appending %s for %s: %w", mark, id, err)
	}

	state.Entered = mark == MarkEntry
	l.states[id] = state
	l.events = append(l.events, ev)
	return now, nil
}

// appendRow writes, flushes and fsyncs a single row.
func (l *Ledger) appendRow(row []string) error {
	if err := l.writer.Write(row); err != nil {
		return err
	}
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		return err
	}
	return l.file.Sync()
}

// Today returns today's events in log order.
func (l *Ledger) Today() []Event {
	today := l.now().Format(constants.LedgerDateLayout)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollLocked(today)
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Inside returns the sorted identities currently inside.
func (l *Ledger) Inside() []string {
	today := l.now().Format(constants.LedgerDateLayout)

	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range l.states {
		l.stateLocked(id, today)
	}
	return l.insideLocked()
}

func (l *Ledger) insideLocked() []string {
	var ids []string
	for id, s := range l.states {
		if s.Entered {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Path returns the log file location.
func (l *Ledger) Path() string {
	return l.path
}

// Close flushes and closes the log file.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.writer.Flush()
	err := errors.Join(l.writer.Error(), l.file.Close())
	l.file = nil
	return err
}
