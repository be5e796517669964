// Package status holds the last attendance event shown to pollers and the
// single outstanding exit confirmation.
package status

import "sync"

// Mailbox is a one-slot holder for the identity awaiting exit confirmation.
// A value can only be set while the slot is empty and is read-and-cleared in
// one step, so two resolvers can never both act on it.
//
// A Mailbox is safe for concurrent use on its own through Offer, Take, Peek
// and Pending. Board embeds one and drives it under the board's lock via the
// unexported helpers instead, so its own mutex is unused there.
type Mailbox struct {
	mu    sync.Mutex
	value string
	full  bool
}

// Offer stores id if the slot is empty. It reports whether id was stored.
func (m *Mailbox) Offer(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offerLocked(id)
}

// Take empties the slot and returns what it held.
func (m *Mailbox) Take() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.takeLocked()
}

// Peek returns the held value without clearing it.
func (m *Mailbox) Peek() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.full
}

// Pending reports whether the slot is occupied.
func (m *Mailbox) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.full
}

func (m *Mailbox) offerLocked(id string) bool {
	if m.full {
		return false
	}
	m.value, m.full = id, true
	return true
}

func (m *Mailbox) takeLocked() (string, bool) {
	if !m.full {
		return "", false
	}
	v := m.value
	m.value, m.full = "", false
	return v, true
}
