package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-cam/internal/attendance"
	"github.com/kozaktomas/attendance-cam/internal/constants"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the attendance log",
}

var ledgerTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Print the log rows of one day",
	Args:  cobra.NoArgs,
	RunE:  runLedgerToday,
}

var ledgerReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Print the presence state recovered from the log",
	Long: `Replay the attendance log the way the service does on startup and print
who is considered inside on the given day.`,
	Args: cobra.NoArgs,
	RunE: runLedgerReplay,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerTodayCmd, ledgerReplayCmd)

	for _, c := range []*cobra.Command{ledgerTodayCmd, ledgerReplayCmd} {
		c.Flags().String("date", "", "Day to show (YYYY-MM-DD, defaults to today)")
		c.Flags().Bool("json", false, "Output as JSON")
	}
}

// readLedger parses the configured log and resolves the --date flag.
func readLedger(cmd *cobra.Command) ([]attendance.Event, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	day := mustGetString(cmd, "date")
	if day == "" {
		day = time.Now().Format(constants.LedgerDateLayout)
	} else if _, err := time.Parse(constants.LedgerDateLayout, day); err != nil {
		return nil, "", fmt.Errorf("invalid --date %q: %w", day, err)
	}

	f, err := os.Open(cfg.Attendance.LogPath)
	if err != nil {
		return nil, "", fmt.Errorf("opening attendance log: %w", err)
	}
	defer f.Close()

	events, skipped, err := attendance.ReadEvents(f, time.Local)
	if err != nil {
		return nil, "", err
	}
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "Warning: skipped %d malformed row(s)\n", skipped)
	}
	return events, day, nil
}

func runLedgerToday(cmd *cobra.Command, args []string) error {
	events, day, err := readLedger(cmd)
	if err != nil {
		return err
	}
	var rows []attendance.Event
	for _, ev := range events {
		if ev.Date == day {
			rows = append(rows, ev)
		}
	}

	if mustGetBool(cmd, "json") {
		if rows == nil {
			rows = []attendance.Event{}
		}
		return outputJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Printf("No attendance on %s\n", day)
		return nil
	}
	fmt.Printf("Attendance on %s:\n\n", day)
	for _, ev := range rows {
		fmt.Printf("  %s  %s  %s\n", ev.Timestamp.Format(constants.StatusTimeLayout), ev.Mark, ev.Identity)
	}
	return nil
}

// PresenceRow is one identity in the replay output.
type PresenceRow struct {
	Identity string `json:"identity"`
	Inside   bool   `json:"inside"`
}

func runLedgerReplay(cmd *cobra.Command, args []string) error {
	events, day, err := readLedger(cmd)
	if err != nil {
		return err
	}
	states := attendance.Replay(events, day)

	rows := make([]PresenceRow, 0, len(states))
	for id, st := range states {
		rows = append(rows, PresenceRow{Identity: id, Inside: st.Entered})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Identity < rows[j].Identity })

	if mustGetBool(cmd, "json") {
		return outputJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Printf("Nobody recorded on %s\n", day)
		return nil
	}
	fmt.Printf("Presence on %s:\n\n", day)
	for _, r := range rows {
		state := "outside"
		if r.Inside {
			state = "inside"
		}
		fmt.Printf("  %-30s %s\n", r.Identity, state)
	}
	return nil
}
