package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/attendance-cam/internal/attendance"
	"github.com/kozaktomas/attendance-cam/internal/camera"
	"github.com/kozaktomas/attendance-cam/internal/config"
	"github.com/kozaktomas/attendance-cam/internal/constants"
	"github.com/kozaktomas/attendance-cam/internal/liveness"
	"github.com/kozaktomas/attendance-cam/internal/metrics"
	"github.com/kozaktomas/attendance-cam/internal/notify"
	"github.com/kozaktomas/attendance-cam/internal/pipeline"
	"github.com/kozaktomas/attendance-cam/internal/recognizer"
	"github.com/kozaktomas/attendance-cam/internal/roster"
	"github.com/kozaktomas/attendance-cam/internal/status"
	"github.com/kozaktomas/attendance-cam/internal/web"
	"github.com/kozaktomas/attendance-cam/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the attendance pipeline and the web server",
	Long: `Start capturing from the configured camera, recognize faces against the
roster, record entries and pending exits, watch worker health and serve the
status API, live view and metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := quartz.NewReal()
	m := metrics.New()

	// The attendance log is the only dependency the service cannot run without.
	ledger, err := attendance.Open(cfg.Attendance.LogPath, clock, logger.Named("ledger"))
	if err != nil {
		return fmt.Errorf("opening attendance log: %w", err)
	}
	defer ledger.Close()

	slack, err := notify.NewSlack(cfg.Slack)
	if err != nil {
		return err
	}
	evidence := notify.NewEvidenceStore(cfg.Evidence.Dir, cfg.Evidence.MaxWidth, cfg.Evidence.Quality)
	dispatcher := notify.NewDispatcher(slack, evidence, cfg.Slack.Timeout, constants.NotifyQueueSize, logger.Named("notify"), m)
	alert := func(ctx context.Context, msg string) {
		m.RecordAlert()
		dispatcher.NotifyAlert(ctx, msg)
	}

	store, closeStore := lazyRosterStore(cfg)
	defer closeStore()

	rec := recognizer.New(
		recognizer.NewClient(cfg.Recognition.EmbeddingURL, cfg.Recognition.Timeout),
		store, cfg.Recognition.Tolerance, logger.Named("recognizer"),
	)
	if _, err := rec.Reload(ctx); err != nil {
		logger.Warn(ctx, "no roster loaded, faces are ignored until a reload succeeds", slog.Error(err))
	}

	source := openSource(ctx, cfg, clock, logger.Named("camera"))
	defer source.Close()

	registry := liveness.NewRegistry(clock)
	board := status.NewBoard()
	board.ClearPendingOnEntry = cfg.Attendance.ClearPendingOnEntry

	svc := pipeline.New(pipeline.Deps{
		Source:     source,
		Recognizer: rec,
		Notifier:   dispatcher,
		Ledger:     ledger,
		Board:      board,
		Registry:   registry,
		Clock:      clock,
		Logger:     logger.Named("pipeline"),
		Metrics:    m,
	}, pipeline.Config{
		CaptureInterval:     cfg.Camera.CaptureInterval(),
		RecognitionInterval: cfg.Recognition.Interval,
		Cooldown:            cfg.Attendance.Cooldown,
		SaveUnknown:         cfg.Evidence.SaveUnknown,
	})

	watchdog := liveness.NewWatchdog(registry, clock, logger.Named("watchdog"),
		cfg.Liveness.WatchdogInterval, cfg.Liveness.WatchdogTimeout, alert)
	watchdog.Observe = m.SetHeartbeatAge

	var (
		monitor *liveness.DeviceMonitor
		device  handlers.DevicePresence
	)
	devicePath := camera.LocalDevice(cfg.Camera.Device)
	if devicePath != "" {
		monitor = liveness.NewDeviceMonitor(devicePath, clock, logger.Named("device"), cfg.Liveness.DeviceCheckInterval, alert)
		device = monitor
	}

	server := web.NewServer(web.Deps{
		Attendance: svc,
		Frames:     svc.Bus(),
		Roster:     rec,
		Workers:    watchdog,
		Device:     device,
		DevicePath: devicePath,
		Metrics:    m.Handler(),
		Clock:      clock,
	}, cfg.Web.Host, cfg.Web.Port, cfg.Web.AllowedOrigins, logger.Named("web"))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return dispatcher.Run(egCtx) })
	eg.Go(func() error { return svc.Run(egCtx) })
	eg.Go(func() error { return watchdog.Run(egCtx) })
	if monitor != nil {
		eg.Go(func() error { return monitor.Run(egCtx) })
	}
	eg.Go(server.Start)
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info(ctx, "attendance service running",
		slog.F("camera", cfg.Camera.Device),
		slog.F("log", ledger.Path()),
		slog.F("people", len(rec.Names())),
		slog.F("addr", server.Addr()),
		slog.F("slack_bot_mode", cfg.Slack.BotMode()),
	)

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info(context.Background(), "stopped")
	return nil
}

func cameraOptions(cfg *config.Config) camera.Options {
	return camera.Options{
		Width:       cfg.Camera.Width,
		Height:      cfg.Camera.Height,
		FPS:         cfg.Camera.FPS,
		ReadTimeout: cfg.Camera.ReadTimeout,
		FFmpegPath:  cfg.Camera.FFmpegPath,
	}
}

// openRosterStore returns the PostgreSQL store when a database URL is set and
// the gob file store otherwise.
func openRosterStore(ctx context.Context, cfg *config.Config) (roster.Store, func(), error) {
	if cfg.Roster.DatabaseURL == "" {
		return roster.NewFileStore(cfg.Roster.Path), func() {}, nil
	}
	pg, err := openPostgresRoster(ctx, cfg.Roster.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return pg, func() { _ = pg.Close() }, nil
}

// lazyRosterStore is openRosterStore for the long-running service: the
// database is connected on the first load and retried on every reload until
// it answers.
func lazyRosterStore(cfg *config.Config) (roster.Store, func()) {
	if cfg.Roster.DatabaseURL == "" {
		return roster.NewFileStore(cfg.Roster.Path), func() {}
	}
	url := cfg.Roster.DatabaseURL
	store := roster.NewLazyStore(func(ctx context.Context) (roster.ClosableStore, error) {
		pg, err := openPostgresRoster(ctx, url)
		if err != nil {
			return nil, err
		}
		return pg, nil
	})
	return store, func() { _ = store.Close() }
}

// openSource opens the configured camera. A source that cannot be opened is
// logged and retried on every capture read.
func openSource(ctx context.Context, cfg *config.Config, clock quartz.Clock, logger slog.Logger) camera.Source {
	open := func() (camera.Source, error) {
		return camera.Open(cfg.Camera.Device, cameraOptions(cfg), clock, logger)
	}
	source, err := open()
	if err != nil {
		logger.Error(ctx, "camera unavailable, capture retries until it opens",
			slog.F("device", cfg.Camera.Device), slog.Error(err))
		return camera.NewReopeningSource(open)
	}
	return source
}

func openPostgresRoster(ctx context.Context, url string) (*roster.PostgresStore, error) {
	pg, err := roster.OpenPostgres(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connecting to roster database: %w", err)
	}
	if _, err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("migrating roster database: %w", err)
	}
	return pg, nil
}
