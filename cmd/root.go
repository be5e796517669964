package cmd

import (
	"fmt"
	"os"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-cam/internal/config"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "attendance-cam",
	Short: "Unattended face-recognition attendance",
	Long: `Attendance Cam watches a camera, recognizes enrolled people and keeps a
daily attendance log. Entries are recorded automatically; exits are
confirmed through the API. Events and system alerts are posted to Slack.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML config file (created with defaults if missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the config file named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger.
func newLogger() slog.Logger {
	logger := slog.Make(sloghuman.Sink(os.Stderr))
	if verbose {
		logger = logger.Leveled(slog.LevelDebug)
	}
	return logger
}
