package attendance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kozaktomas/attendance-cam/internal/constants"
)

var logHeader = []string{"timestamp", "user_name", "action", "date"}

// ReadEvents parses an attendance log in file order. The header row and rows
// that do not have the expected shape are skipped; the number of skipped rows
// is returned alongside the events. Timestamps are interpreted in loc.
func ReadEvents(r io.Reader, loc *time.Location) ([]Event, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var events []Event
	skipped := 0
	for line := 0; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return events, skipped, fmt.Errorf("reading attendance log: %w", err)
		}
		if line == 0 && len(row) > 0 && row[0] == logHeader[0] {
			continue
		}
		ev, ok := parseRow(row, loc)
		if !ok {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	return events, skipped, nil
}

func parseRow(row []string, loc *time.Location) (Event, bool) {
	if len(row) != len(logHeader) {
		return Event{}, false
	}
	mark := Mark(row[2])
	if mark != MarkEntry && mark != MarkExit {
		return Event{}, false
	}
	if row[1] == "" || row[3] == "" {
		return Event{}, false
	}
	// A damaged timestamp does not invalidate the row; only date and mark drive replay.
	ts, _ := time.ParseInLocation(constants.LedgerTimestampLayout, row[0], loc)
	return Event{Timestamp: ts, Identity: row[1], Mark: mark, Date: row[3]}, true
}

func formatRow(ev Event) []string {
	return []string{
		ev.Timestamp.Format(constants.LedgerTimestampLayout),
		ev.Identity,
		string(ev.Mark),
		ev.Date,
	}
}

// Replay folds events of the given day into per-identity states. The state is
// a pure function of the ordered events: the last event wins.
func Replay(events []Event, day string) map[string]DayState {
	states := make(map[string]DayState)
	for _, ev := range events {
		if ev.Date != day {
			continue
		}
		states[ev.Identity] = DayState{Day: day, Entered: ev.Mark == MarkEntry}
	}
	return states
}
