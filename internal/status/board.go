package status

import (
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/attendance-cam/internal/constants"
)

// Board actions.
const (
	ActionEntry = "entry"
	ActionExit  = "exit"
)

// Snapshot is a point-in-time copy of the board.
type Snapshot struct {
	User        string    `json:"user"`
	Action      string    `json:"action"`
	Time        string    `json:"time"`
	PendingExit string    `json:"pending_exit"`
	EventID     string    `json:"event_id"`
	UpdatedAt   time.Time `json:"-"`
}

// Board is the last-event snapshot plus the pending exit confirmation. The
// mailbox shares the board's lock; the board never calls the mailbox's own
// locking methods.
type Board struct {
	// ClearPendingOnEntry makes an entry cancel a pending confirmation that
	// belongs to another identity. A pending confirmation for the entering
	// identity itself is always cleared.
	ClearPendingOnEntry bool

	pending Mailbox

	user    string
	action  string
	at      time.Time
	eventID string
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{}
}

// Snapshot copies the current state out.
func (b *Board) Snapshot() Snapshot {
	b.pending.mu.Lock()
	defer b.pending.mu.Unlock()

	s := Snapshot{
		User:      b.user,
		Action:    b.action,
		EventID:   b.eventID,
		UpdatedAt: b.at,
	}
	if !b.at.IsZero() {
		s.Time = b.at.Format(constants.StatusTimeLayout)
	}
	if b.pending.full {
		s.PendingExit = b.pending.value
	}
	return s
}

// RecordEntry publishes an entry event.
func (b *Board) RecordEntry(id string, at time.Time) {
	b.pending.mu.Lock()
	defer b.pending.mu.Unlock()

	if b.pending.full && (b.pending.value == id || b.ClearPendingOnEntry) {
		b.pending.takeLocked()
	}
	b.setLocked(id, ActionEntry, at)
}

// RecordExit publishes an exit event.
func (b *Board) RecordExit(id string, at time.Time) {
	b.pending.mu.Lock()
	defer b.pending.mu.Unlock()
	b.setLocked(id, ActionExit, at)
}

func (b *Board) setLocked(id, action string, at time.Time) {
	b.user = id
	b.action = action
	b.at = at
	b.eventID = uuid.New().String()
}

// RequestExit marks id as awaiting exit confirmation. It returns false when
// another confirmation is already outstanding.
func (b *Board) RequestExit(id string) bool {
	b.pending.mu.Lock()
	defer b.pending.mu.Unlock()
	return b.pending.offerLocked(id)
}

// TakePending clears and returns the identity awaiting confirmation.
func (b *Board) TakePending() (string, bool) {
	b.pending.mu.Lock()
	defer b.pending.mu.Unlock()
	return b.pending.takeLocked()
}

// Pending reports whether an exit confirmation is outstanding.
func (b *Board) Pending() bool {
	return b.pending.Pending()
}
