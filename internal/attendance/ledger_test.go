package attendance_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/attendance-cam/internal/attendance"
)

var day1 = time.Date(2030, 4, 1, 9, 0, 0, 0, time.UTC)

func openLedger(t *testing.T, path string, clock quartz.Clock) *attendance.Ledger {
	t.Helper()
	l, err := attendance.Open(path, clock, slogtest.Make(t, &slogtest.Options{IgnoreErrors: true}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func newClock(t *testing.T) *quartz.Mock {
	mClock := quartz.NewMock(t)
	mClock.Set(day1)
	return mClock
}

func TestResetIfStale(t *testing.T) {
	t.Parallel()

	inside := attendance.DayState{Day: "2030-04-01", Entered: true}
	assert.Equal(t, inside, attendance.ResetIfStale(inside, "2030-04-01"))
	assert.Equal(t, attendance.DayState{Day: "2030-04-02"}, attendance.ResetIfStale(inside, "2030-04-02"))
	assert.Equal(t, attendance.DayState{Day: "2030-04-02"}, attendance.ResetIfStale(attendance.DayState{}, "2030-04-02"))
}

func TestOpenWritesHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "attendance.csv")
	openLedger(t, path, newClock(t))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "timestamp,user_name,action,date\n", string(data))
}

func TestLedgerAlternation(t *testing.T) {
	t.Parallel()

	mClock := newClock(t)
	path := filepath.Join(t.TempDir(), "attendance.csv")
	l := openLedger(t, path, mClock)

	assert.Equal(t, attendance.ActionEntry, l.CheckAction("alice"))
	assert.False(t, l.IsInside("alice"))

	ts, err := l.RecordEntry("alice")
	require.NoError(t, err)
	assert.Equal(t, day1, ts)
	assert.Equal(t, attendance.ActionExitConfirm, l.CheckAction("alice"))
	assert.True(t, l.IsInside("alice"))

	mClock.Advance(3 * time.Hour)
	_, err = l.RecordExit("alice")
	require.NoError(t, err)
	assert.Equal(t, attendance.ActionEntry, l.CheckAction("alice"))

	// Other identities are unaffected.
	assert.Equal(t, attendance.ActionEntry, l.CheckAction("bob"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2030-04-01 09:00:00,alice,+,2030-04-01", lines[1])
	assert.Equal(t, "2030-04-01 12:00:00,alice,-,2030-04-01", lines[2])
}

func TestLedgerRestoresTodayOnOpen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "attendance.csv")
	content := strings.Join([]string{
		"timestamp,user_name,action,date",
		"2030-03-31 17:00:00,bob,+,2030-03-31",
		"2030-04-01 09:00:00,alice,+,2030-04-01",
		"2030-04-01 12:00:00,alice,-,2030-04-01",
		"2030-04-01 13:00:00,alice,+,2030-04-01",
		"2030-04-01 13:05:00,carol,+,2030-04-01",
		"2030-04-01 13:06:00,carol,-,2030-04-01",
		"garbage row",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	mClock := newClock(t)
	mClock.Set(day1.Add(5 * time.Hour))
	l := openLedger(t, path, mClock)

	assert.True(t, l.IsInside("alice"))
	assert.False(t, l.IsInside("carol"))
	// Yesterday's entry without exit does not carry over.
	assert.False(t, l.IsInside("bob"))
	assert.Equal(t, []string{"alice"}, l.Inside())
	assert.Len(t, l.Today(), 5)

	// The header is not written twice.
	_, err := l.RecordExit("alice")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "timestamp,user_name"))
}

func TestOpenTerminatesTornLastRow(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "attendance.csv")
	content := "timestamp,user_name,action,date\n2030-04-01 09:00:00,alice,+,2030-04-01"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	mClock := newClock(t)
	mClock.Set(day1.Add(time.Hour))
	l := openLedger(t, path, mClock)
	require.True(t, l.IsInside("alice"))

	_, err := l.RecordEntry("bob")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2030-04-01 09:00:00,alice,+,2030-04-01", lines[1])
	assert.Equal(t, "2030-04-01 10:00:00,bob,+,2030-04-01", lines[2])

	// Both events survive the next restart.
	reopened := openLedger(t, path, mClock)
	assert.Equal(t, []string{"alice", "bob"}, reopened.Inside())
	assert.Len(t, reopened.Today(), 2)
}

func TestOpenEmptyFileWritesHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "attendance.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	openLedger(t, path, newClock(t))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "timestamp,user_name,action,date\n", string(data))
}

func TestLedgerDayRollover(t *testing.T) {
	t.Parallel()

	mClock := newClock(t)
	l := openLedger(t, filepath.Join(t.TempDir(), "attendance.csv"), mClock)

	_, err := l.RecordEntry("alice")
	require.NoError(t, err)
	require.Len(t, l.Today(), 1)

	mClock.Advance(24 * time.Hour)
	assert.Equal(t, attendance.ActionEntry, l.CheckAction("alice"))
	assert.Empty(t, l.Inside())
	assert.Empty(t, l.Today())

	ts, err := l.RecordEntry("alice")
	require.NoError(t, err)
	assert.Equal(t, "2030-04-02", ts.Format("2006-01-02"))
	today := l.Today()
	require.Len(t, today, 1)
	assert.Equal(t, "2030-04-02", today[0].Date)
}

func TestLedgerConcurrentAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "attendance.csv")
	l := openLedger(t, path, newClock(t))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := "user" + string(rune('a'+i))
			_, err := l.RecordEntry(id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, l.Close())
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	events, skipped, err := attendance.ReadEvents(f, time.UTC)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Len(t, events, 20)
}

func TestLedgerClosed(t *testing.T) {
	t.Parallel()

	l := openLedger(t, filepath.Join(t.TempDir(), "attendance.csv"), newClock(t))
	require.NoError(t, l.Close())
	_, err := l.RecordEntry("alice")
	require.Error(t, err)
	assert.False(t, l.IsInside("alice"))
}

func TestOpenFailsOnDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := attendance.Open(dir, newClock(t), slogtest.Make(t, &slogtest.Options{IgnoreErrors: true}))
	require.Error(t, err)
}

func TestReplayLastEventWins(t *testing.T) {
	t.Parallel()

	events := []attendance.Event{
		{Identity: "a", Mark: attendance.MarkEntry, Date: "d"},
		{Identity: "a", Mark: attendance.MarkExit, Date: "d"},
		{Identity: "a", Mark: attendance.MarkEntry, Date: "d"},
		{Identity: "b", Mark: attendance.MarkEntry, Date: "d"},
		{Identity: "b", Mark: attendance.MarkExit, Date: "d"},
		{Identity: "c", Mark: attendance.MarkEntry, Date: "other"},
	}
	states := attendance.Replay(events, "d")
	assert.True(t, states["a"].Entered)
	assert.False(t, states["b"].Entered)
	_, ok := states["c"]
	assert.False(t, ok)
}

func TestReadEventsSkipsMalformedRows(t *testing.T) {
	t.Parallel()

	input := "timestamp,user_name,action,date\n" +
		"2030-04-01 09:00:00,alice,+,2030-04-01\n" +
		"2030-04-01 09:00:00,alice,?,2030-04-01\n" +
		"2030-04-01 09:00:00,alice,+\n" +
		"not-a-time,bob,-,2030-04-01\n"
	events, skipped, err := attendance.ReadEvents(strings.NewReader(input), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, events, 2)
	assert.Equal(t, day1, events[0].Timestamp)
	assert.True(t, events[1].Timestamp.IsZero())
	assert.Equal(t, attendance.MarkExit, events[1].Mark)
}
