// Package config loads the evening configuration from YAML with EVENING_* env overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// LogConfig controls the zap logger and its rotating file sink.
type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"oneof=json console"`
	File       string `yaml:"file" validate:"required"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
}

// RecorderConfig controls the recording session controller.
type RecorderConfig struct {
	TickIntervalMS int `yaml:"tick_interval_ms" validate:"gte=10"`
}

// TickInterval returns the ticker period as a duration.
func (r RecorderConfig) TickInterval() time.Duration {
	return time.Duration(r.TickIntervalMS) * time.Millisecond
}

// CaptureConfig selects and configures the capture device.
type CaptureConfig struct {
	Mode           string  `yaml:"mode" validate:"oneof=mock exec daemon"`
	Command        string  `yaml:"command"`
	Socket         string  `yaml:"socket"`
	SampleRate     int     `yaml:"sample_rate" validate:"gte=8000"`
	ToneHz         float64 `yaml:"tone_hz" validate:"gt=0"`
	DenyPermission bool    `yaml:"deny_permission"`
}

// PreviewConfig controls the waveform preview and playback.
type PreviewConfig struct {
	Player   string `yaml:"player"`
	Height   int    `yaml:"height" validate:"gte=1,lte=16"`
	BarWidth int    `yaml:"bar_width" validate:"gte=1"`
	BarGap   int    `yaml:"bar_gap" validate:"gte=0"`
}

// HTTPConfig is the listen address of the web server.
type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port" validate:"gte=1,lte=65535"`
}

// AuthConfig configures the route guard and its session store.
type AuthConfig struct {
	Secret            string   `yaml:"secret"`
	Issuer            string   `yaml:"issuer" validate:"required"`
	CookieName        string   `yaml:"cookie_name" validate:"required"`
	SignInURL         string   `yaml:"sign_in_url" validate:"required"`
	SessionTTLMinutes int      `yaml:"session_ttl_minutes" validate:"gte=1"`
	DBPath            string   `yaml:"db_path" validate:"required"`
	Protected         []string `yaml:"protected" validate:"min=1,dive,required"`
	Skip              []string `yaml:"skip" validate:"dive,required"`
}

// SessionTTL returns the default lifetime of a newly issued session.
func (a AuthConfig) SessionTTL() time.Duration {
	return time.Duration(a.SessionTTLMinutes) * time.Minute
}

// Config is the root configuration.
type Config struct {
	Log           LogConfig      `yaml:"log"`
	Recorder      RecorderConfig `yaml:"recorder"`
	Capture       CaptureConfig  `yaml:"capture"`
	Preview       PreviewConfig  `yaml:"preview"`
	RecordingsDir string         `yaml:"recordings_dir" validate:"required"`
	HTTP          HTTPConfig     `yaml:"http"`
	Auth          AuthConfig     `yaml:"auth"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(stateDir(), "evening.yaml")
}

func stateDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".evening")
}

// Default returns a configuration that runs without any external tools.
func Default() Config {
	dir := stateDir()
	return Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			File:       filepath.Join(dir, "evening.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Recorder: RecorderConfig{TickIntervalMS: 1000},
		Capture: CaptureConfig{
			Mode:       "mock",
			Command:    "ffmpeg -hide_banner -loglevel error -f alsa -i default -ac 1 -ar 16000 -y {output}",
			Socket:     filepath.Join(dir, "capture.sock"),
			SampleRate: 16000,
			ToneHz:     220,
		},
		Preview: PreviewConfig{
			Player:   "ffplay -nodisp -autoexit -loglevel quiet",
			Height:   4,
			BarWidth: 2,
			BarGap:   1,
		},
		RecordingsDir: filepath.Join(dir, "recordings"),
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 3000,
		},
		Auth: AuthConfig{
			Issuer:            "evening",
			CookieName:        "__session",
			SignInURL:         "/",
			SessionTTLMinutes: 24 * 60,
			DBPath:            filepath.Join(dir, "evening.sqlite"),
			Protected: []string{
				"/api/entries(.*)",
				"/api/ai(.*)",
				"/server(.*)",
			},
			Skip: []string{
				"/_next(.*)",
				"/.*\\..*",
			},
		},
	}
}

// Load reads the config file at path (if it exists) on top of Default, applies env
// overrides and validates the result. A missing file at DefaultPath is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file: %w", err)
			}
		case os.IsNotExist(err) && path == DefaultPath():
		case os.IsNotExist(err):
			return cfg, fmt.Errorf("config file not found: %w", err)
		default:
			return cfg, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Log.Level, "EVENING_LOG_LEVEL")
	overrideString(&cfg.Log.Format, "EVENING_LOG_FORMAT")
	overrideString(&cfg.Log.File, "EVENING_LOG_FILE")
	overrideInt(&cfg.Log.MaxSizeMB, "EVENING_LOG_MAX_SIZE_MB")
	overrideInt(&cfg.Log.MaxBackups, "EVENING_LOG_MAX_BACKUPS")
	overrideInt(&cfg.Log.MaxAgeDays, "EVENING_LOG_MAX_AGE_DAYS")
	overrideInt(&cfg.Recorder.TickIntervalMS, "EVENING_RECORDER_TICK_INTERVAL_MS")
	overrideString(&cfg.Capture.Mode, "EVENING_CAPTURE_MODE")
	overrideString(&cfg.Capture.Command, "EVENING_CAPTURE_COMMAND")
	overrideString(&cfg.Capture.Socket, "EVENING_CAPTURE_SOCKET")
	overrideInt(&cfg.Capture.SampleRate, "EVENING_CAPTURE_SAMPLE_RATE")
	overrideFloat(&cfg.Capture.ToneHz, "EVENING_CAPTURE_TONE_HZ")
	overrideBool(&cfg.Capture.DenyPermission, "EVENING_CAPTURE_DENY_PERMISSION")
	overrideString(&cfg.Preview.Player, "EVENING_PREVIEW_PLAYER")
	overrideInt(&cfg.Preview.Height, "EVENING_PREVIEW_HEIGHT")
	overrideInt(&cfg.Preview.BarWidth, "EVENING_PREVIEW_BAR_WIDTH")
	overrideInt(&cfg.Preview.BarGap, "EVENING_PREVIEW_BAR_GAP")
	overrideString(&cfg.RecordingsDir, "EVENING_RECORDINGS_DIR")
	overrideString(&cfg.HTTP.Bind, "EVENING_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "EVENING_HTTP_PORT")
	overrideString(&cfg.Auth.Secret, "EVENING_AUTH_SECRET")
	overrideString(&cfg.Auth.Issuer, "EVENING_AUTH_ISSUER")
	overrideString(&cfg.Auth.CookieName, "EVENING_AUTH_COOKIE_NAME")
	overrideString(&cfg.Auth.SignInURL, "EVENING_AUTH_SIGN_IN_URL")
	overrideInt(&cfg.Auth.SessionTTLMinutes, "EVENING_AUTH_SESSION_TTL_MINUTES")
	overrideString(&cfg.Auth.DBPath, "EVENING_AUTH_DB_PATH")
	overrideStringSlice(&cfg.Auth.Protected, "EVENING_AUTH_PROTECTED")
	overrideStringSlice(&cfg.Auth.Skip, "EVENING_AUTH_SKIP")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func validate(cfg Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch cfg.Capture.Mode {
	case "exec":
		if strings.TrimSpace(cfg.Capture.Command) == "" {
			return errors.New("capture.command must be set when mode=exec")
		}
		if !strings.Contains(cfg.Capture.Command, "{output}") {
			return errors.New("capture.command must contain the {output} placeholder")
		}
	case "daemon":
		if cfg.Capture.Socket == "" {
			return errors.New("capture.socket must be set when mode=daemon")
		}
	}
	return nil
}

// ValidateServe checks the settings only the web server needs.
func (c Config) ValidateServe() error {
	if len(c.Auth.Secret) < 32 {
		return errors.New("auth.secret must be at least 32 bytes")
	}
	return nil
}
