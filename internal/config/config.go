package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/attendance-cam/internal/notify"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Camera      CameraConfig       `yaml:"camera"`
	Recognition RecognitionConfig  `yaml:"recognition"`
	Attendance  AttendanceConfig   `yaml:"attendance"`
	Liveness    LivenessConfig     `yaml:"liveness"`
	Slack       notify.SlackConfig `yaml:"slack"`
	Evidence    EvidenceConfig     `yaml:"evidence"`
	Web         WebConfig          `yaml:"web"`
	Roster      RosterConfig       `yaml:"roster"`
}

type CameraConfig struct {
	Device      string        `yaml:"device"` // device path, stream URL, snapshot URL or dir:<path>
	Width       int           `yaml:"width"`
	Height      int           `yaml:"height"`
	FPS         int           `yaml:"fps"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	FFmpegPath  string        `yaml:"ffmpeg_path"`
}

type RecognitionConfig struct {
	EmbeddingURL string        `yaml:"embedding_url"`
	Interval     time.Duration `yaml:"interval"`
	Tolerance    float64       `yaml:"tolerance"` // maximum cosine distance for a match
	Timeout      time.Duration `yaml:"timeout"`
}

type AttendanceConfig struct {
	LogPath             string        `yaml:"log_path"`
	Cooldown            time.Duration `yaml:"cooldown"`
	ClearPendingOnEntry bool          `yaml:"clear_pending_on_entry"`
}

type LivenessConfig struct {
	WatchdogInterval    time.Duration `yaml:"watchdog_interval"`
	WatchdogTimeout     time.Duration `yaml:"watchdog_timeout"`
	DeviceCheckInterval time.Duration `yaml:"device_check_interval"`
}

type EvidenceConfig struct {
	Dir         string `yaml:"dir"`
	SaveUnknown bool   `yaml:"save_unknown"`
	MaxWidth    int    `yaml:"max_width"`
	Quality     int    `yaml:"quality"`
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS whitelist, localhost is always allowed
}

type RosterConfig struct {
	Path        string `yaml:"path"`         // gob roster file
	DatabaseURL string `yaml:"database_url"` // PostgreSQL roster, preferred over Path when set
	Model       string `yaml:"model"`
}

// Defaults returns the embedded default configuration.
func Defaults() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return cfg
}

// Load builds the configuration from the embedded defaults, the YAML file at
// path and the environment, in that order. A missing file is created from
// the defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			if err := writeDefaults(path); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefaults(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, defaultsYAML, 0o600); err != nil {
		return fmt.Errorf("writing default config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Camera.Device = envString("CAMERA_DEVICE", c.Camera.Device)
	c.Recognition.EmbeddingURL = envString("EMBEDDING_URL", c.Recognition.EmbeddingURL)
	c.Recognition.Interval = envDuration("RECOGNITION_INTERVAL", c.Recognition.Interval)
	c.Recognition.Tolerance = envFloat("FACE_TOLERANCE", c.Recognition.Tolerance)
	c.Attendance.LogPath = envString("ATTENDANCE_LOG", c.Attendance.LogPath)
	c.Attendance.Cooldown = envDuration("ATTENDANCE_COOLDOWN", c.Attendance.Cooldown)
	c.Slack.EntryWebhook = envString("SLACK_ENTRY_WEBHOOK", c.Slack.EntryWebhook)
	c.Slack.ExitWebhook = envString("SLACK_EXIT_WEBHOOK", c.Slack.ExitWebhook)
	c.Slack.AlertWebhook = envString("SLACK_ALERT_WEBHOOK", c.Slack.AlertWebhook)
	c.Slack.BotToken = envString("SLACK_BOT_TOKEN", c.Slack.BotToken)
	c.Slack.ChannelID = envString("SLACK_CHANNEL_ID", c.Slack.ChannelID)
	c.Slack.Proxy = envString("SLACK_PROXY", c.Slack.Proxy)
	c.Evidence.Dir = envString("EVIDENCE_DIR", c.Evidence.Dir)
	c.Web.Host = envString("WEB_HOST", c.Web.Host)
	c.Web.Port = envInt("WEB_PORT", c.Web.Port)
	if s := os.Getenv("WEB_ALLOWED_ORIGINS"); s != "" {
		c.Web.AllowedOrigins = strings.Split(s, ",")
	}
	c.Roster.Path = envString("ROSTER_PATH", c.Roster.Path)
	c.Roster.DatabaseURL = envString("DATABASE_URL", c.Roster.DatabaseURL)
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Camera.Device == "":
		return errors.New("camera.device is required")
	case c.Camera.FPS <= 0:
		return errors.New("camera.fps must be positive")
	case c.Camera.ReadTimeout <= 0:
		return errors.New("camera.read_timeout must be positive")
	case c.Recognition.Interval <= 0:
		return errors.New("recognition.interval must be positive")
	case c.Recognition.Tolerance <= 0 || c.Recognition.Tolerance > 2:
		return fmt.Errorf("recognition.tolerance must be in (0, 2], got %v", c.Recognition.Tolerance)
	case c.Attendance.LogPath == "":
		return errors.New("attendance.log_path is required")
	case c.Attendance.Cooldown < 0:
		return errors.New("attendance.cooldown must not be negative")
	case c.Liveness.WatchdogInterval <= 0 || c.Liveness.WatchdogTimeout <= 0 || c.Liveness.DeviceCheckInterval <= 0:
		return errors.New("liveness intervals must be positive")
	case c.Evidence.Quality < 1 || c.Evidence.Quality > 100:
		return fmt.Errorf("evidence.quality must be in [1, 100], got %d", c.Evidence.Quality)
	case c.Web.Port <= 0 || c.Web.Port > 65535:
		return fmt.Errorf("web.port out of range: %d", c.Web.Port)
	}
	return nil
}

// CaptureInterval is the delay between two frames at the configured rate.
func (c *CameraConfig) CaptureInterval() time.Duration {
	return time.Second / time.Duration(c.FPS)
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}
