// Package attendance keeps the per-identity daily presence state and the
// append-only attendance log it is recovered from.
package attendance

import "time"

// Action is what a positive recognition should lead to.
type Action string

// Action constants.
const (
	ActionEntry       Action = "entry"        // identity is outside: record an entry
	ActionExitConfirm Action = "exit_confirm" // identity is inside: ask before recording an exit
)

// Mark is the persisted action column of a log row.
type Mark string

// Mark constants.
const (
	MarkEntry Mark = "+"
	MarkExit  Mark = "-"
)

// Event is one persisted log row.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Identity  string    `json:"identity"`
	Mark      Mark      `json:"action"`
	Date      string    `json:"date"`
}

// DayState is the presence of one identity on one calendar day.
type DayState struct {
	Day     string
	Entered bool
}

// ResetIfStale returns a fresh state when s belongs to another day than today.
// Identities are therefore implicitly reset at midnight without a sweep.
func ResetIfStale(s DayState, today string) DayState {
	if s.Day != today {
		return DayState{Day: today}
	}
	return s
}
