package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-cam/internal/recognizer"
	"github.com/kozaktomas/attendance-cam/internal/roster"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Manage the known faces",
}

var rosterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the people in the roster",
	Args:  cobra.NoArgs,
	RunE:  runRosterList,
}

var rosterEnrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Build the roster from a directory of face photos",
	Long: `Compute one face embedding per image found under <faces-dir>/<person>/*.jpg
and replace the stored roster with the result. Images that do not contain
exactly one face are skipped and reported.`,
	Example: `  attendance-cam roster enroll --faces-dir ./faces
  attendance-cam roster enroll --faces-dir ./faces --json`,
	Args: cobra.NoArgs,
	RunE: runRosterEnroll,
}

var rosterPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Copy the roster file into the PostgreSQL roster",
	Args:  cobra.NoArgs,
	RunE:  runRosterPush,
}

func init() {
	rootCmd.AddCommand(rosterCmd)
	rosterCmd.AddCommand(rosterListCmd, rosterEnrollCmd, rosterPushCmd)

	rosterListCmd.Flags().Bool("json", false, "Output as JSON")

	rosterEnrollCmd.Flags().String("faces-dir", "faces", "Directory with one sub-directory of photos per person")
	rosterEnrollCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// RosterSummary is the JSON output of roster list.
type RosterSummary struct {
	Model     string         `json:"model"`
	UpdatedAt time.Time      `json:"updated_at"`
	People    map[string]int `json:"people"`
}

func runRosterList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, closeStore, err := openRosterStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	r, err := store.Load(ctx)
	if errors.Is(err, roster.ErrNoRoster) {
		fmt.Println("Roster is empty. Run 'attendance-cam roster enroll' first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}

	summary := RosterSummary{Model: r.Model, UpdatedAt: r.UpdatedAt, People: make(map[string]int)}
	for _, e := range r.Entries {
		summary.People[e.Name]++
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(summary)
	}

	fmt.Printf("Model:   %s\n", r.Model)
	fmt.Printf("Updated: %s\n\n", r.UpdatedAt.Local().Format(time.DateTime))
	for _, name := range r.UniqueNames() {
		fmt.Printf("  %-30s %d image(s)\n", name, summary.People[name])
	}
	fmt.Printf("\n%d people, %d embeddings\n", len(summary.People), r.Len())
	return nil
}

// EnrollResult is the JSON output of roster enroll.
type EnrollResult struct {
	Success  bool             `json:"success"`
	Images   int              `json:"images"`
	Accepted map[string]int   `json:"accepted"`
	Skipped  []roster.Skipped `json:"skipped"`
	Error    string           `json:"error,omitempty"`
}

func runRosterEnroll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")
	facesDir := mustGetString(cmd, "faces-dir")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	images, err := roster.ListImages(facesDir)
	if err != nil {
		return err
	}
	if !jsonOutput {
		fmt.Printf("Found %d images in %s\n\n", len(images), facesDir)
	}

	// Create progress bar (only for non-JSON output)
	var progress func(roster.Image)
	if !jsonOutput {
		bar := progressbar.NewOptions(len(images),
			progressbar.OptionSetDescription("Embedding faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
		progress = func(roster.Image) { _ = bar.Add(1) }
	}

	client := recognizer.NewClient(cfg.Recognition.EmbeddingURL, cfg.Recognition.Timeout)
	r, report, err := roster.Enroll(ctx, images, client, cfg.Roster.Model, progress)
	result := EnrollResult{
		Success:  err == nil,
		Images:   len(images),
		Accepted: report.Accepted,
		Skipped:  report.Skipped,
	}
	if err != nil {
		result.Error = err.Error()
		if jsonOutput {
			return outputJSON(result)
		}
		printSkipped(report.Skipped)
		return err
	}
	r.UpdatedAt = time.Now()

	store, closeStore, err := openRosterStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := store.Save(ctx, r); err != nil {
		return fmt.Errorf("saving roster: %w", err)
	}

	if jsonOutput {
		return outputJSON(result)
	}
	fmt.Println()
	names := make([]string, 0, len(report.Accepted))
	for name := range report.Accepted {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-30s %d image(s)\n", name, report.Accepted[name])
	}
	printSkipped(report.Skipped)
	fmt.Printf("\nRoster saved: %d people, %d embeddings\n", len(names), r.Len())
	fmt.Println("Call POST /api/reload_faces to activate it in a running service.")
	return nil
}

func printSkipped(skipped []roster.Skipped) {
	if len(skipped) == 0 {
		return
	}
	fmt.Printf("\nSkipped %d image(s):\n", len(skipped))
	for _, s := range skipped {
		fmt.Printf("  %s: %s\n", s.Path, s.Reason)
	}
}

func runRosterPush(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Roster.DatabaseURL == "" {
		return errors.New("roster.database_url (or DATABASE_URL) is required")
	}
	ctx := context.Background()

	r, err := roster.NewFileStore(cfg.Roster.Path).Load(ctx)
	if err != nil {
		return fmt.Errorf("loading %s: %w", cfg.Roster.Path, err)
	}

	pg, err := openPostgresRoster(ctx, cfg.Roster.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.Save(ctx, r); err != nil {
		return fmt.Errorf("saving roster: %w", err)
	}
	fmt.Printf("Pushed %d embeddings for %d people to PostgreSQL\n", r.Len(), len(r.UniqueNames()))
	return nil
}
