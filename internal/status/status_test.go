package status_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/attendance-cam/internal/status"
)

func TestMailbox(t *testing.T) {
	t.Parallel()

	var m status.Mailbox
	_, ok := m.Take()
	assert.False(t, ok)

	require.True(t, m.Offer("alice"))
	assert.False(t, m.Offer("bob"), "slot must not be overwritten")
	assert.True(t, m.Pending())

	v, ok := m.Peek()
	assert.True(t, ok)
	assert.Equal(t, "alice", v)

	v, ok = m.Take()
	assert.True(t, ok)
	assert.Equal(t, "alice", v)
	assert.False(t, m.Pending())

	_, ok = m.Take()
	assert.False(t, ok)
}

func TestMailboxSingleTaker(t *testing.T) {
	t.Parallel()

	var m status.Mailbox
	require.True(t, m.Offer("alice"))

	var taken atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.Take(); ok {
				taken.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, taken.Load())
}

func TestMailboxConcurrentOffer(t *testing.T) {
	t.Parallel()

	var m status.Mailbox
	var stored atomic.Int32
	var wg sync.WaitGroup
	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Offer(id) {
				stored.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, stored.Load())

	v, ok := m.Peek()
	require.True(t, ok)
	assert.Contains(t, []string{"alice", "bob", "carol", "dave"}, v)
}

func TestBoardSnapshot(t *testing.T) {
	t.Parallel()

	b := status.NewBoard()
	empty := b.Snapshot()
	assert.Empty(t, empty.User)
	assert.Empty(t, empty.Time)
	assert.Empty(t, empty.EventID)

	at := time.Date(2030, 4, 1, 9, 5, 7, 0, time.UTC)
	b.RecordEntry("alice", at)
	s := b.Snapshot()
	assert.Equal(t, "alice", s.User)
	assert.Equal(t, status.ActionEntry, s.Action)
	assert.Equal(t, "09:05:07", s.Time)
	assert.NotEmpty(t, s.EventID)

	b.RecordExit("alice", at.Add(time.Hour))
	s2 := b.Snapshot()
	assert.Equal(t, status.ActionExit, s2.Action)
	assert.Equal(t, "10:05:07", s2.Time)
	assert.NotEqual(t, s.EventID, s2.EventID)
}

func TestBoardPendingFlow(t *testing.T) {
	t.Parallel()

	b := status.NewBoard()
	require.True(t, b.RequestExit("alice"))
	assert.False(t, b.RequestExit("bob"))
	assert.Equal(t, "alice", b.Snapshot().PendingExit)

	// An entry by someone else leaves the confirmation alone by default.
	b.RecordEntry("bob", time.Now())
	assert.True(t, b.Pending())

	id, ok := b.TakePending()
	require.True(t, ok)
	assert.Equal(t, "alice", id)
	assert.Empty(t, b.Snapshot().PendingExit)
	_, ok = b.TakePending()
	assert.False(t, ok)
}

func TestBoardEntryClearsOwnPending(t *testing.T) {
	t.Parallel()

	b := status.NewBoard()
	require.True(t, b.RequestExit("alice"))
	b.RecordEntry("alice", time.Now())
	assert.False(t, b.Pending())
}

func TestBoardClearPendingOnEntry(t *testing.T) {
	t.Parallel()

	b := status.NewBoard()
	b.ClearPendingOnEntry = true
	require.True(t, b.RequestExit("alice"))
	b.RecordEntry("bob", time.Now())
	assert.False(t, b.Pending())
}
