// Package config loads the server configuration.
//
// Values are resolved in order: built-in defaults, then an optional YAML
// file, then TASKMGR_* environment variables. Command line flags are
// applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"taskmanager/internal/util"
)

// EnvConfigPath names the variable that points at the YAML file when no
// --config flag is given.
const EnvConfigPath = "TASKMGR_CONFIG"

// Config is the complete runtime configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`

	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`

	// StaticDir optionally serves a built frontend next to the API.
	StaticDir string `yaml:"static_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Auth      AuthConfig     `yaml:"auth"`
	Notify    NotifyConfig   `yaml:"notify"`
	Mail      MailConfig     `yaml:"mail"`
	Reminders ReminderConfig `yaml:"reminders"`
}

// AuthConfig configures the bearer tokens handed out by /api/token.
type AuthConfig struct {
	// Secret signs the tokens. When empty a random secret is generated at
	// startup, so tokens do not survive a restart.
	Secret     string        `yaml:"secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

// NotifyConfig tunes the notification dispatcher.
type NotifyConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`

	// SendRate caps outgoing emails per second. 0 means unlimited.
	SendRate float64 `yaml:"send_rate"`
}

// MailConfig selects and configures the mail transport.
type MailConfig struct {
	// Backend is "log" or "smtp".
	Backend  string `yaml:"backend"`
	From     string `yaml:"from"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ReminderConfig controls the periodic deadline scan run by serve.
type ReminderConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Addr:     ":8080",
		DBPath:   "data/taskmanager.db",
		LogLevel: "info",
		Auth: AuthConfig{
			AccessTTL:  5 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		},
		Notify: NotifyConfig{
			Workers:     2,
			QueueSize:   256,
			MaxAttempts: 3,
			RetryDelay:  time.Second,
		},
		Mail: MailConfig{
			Backend: "log",
			From:    "no-reply@taskmanager.com",
			Port:    587,
		},
		Reminders: ReminderConfig{
			Enabled:  true,
			Interval: 24 * time.Hour,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// not empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Addr = util.EnvOrDefault("TASKMGR_ADDR", cfg.Addr)
	cfg.DBPath = util.EnvOrDefault("TASKMGR_DB_PATH", cfg.DBPath)
	cfg.StaticDir = util.EnvOrDefault("TASKMGR_STATIC_DIR", cfg.StaticDir)
	cfg.LogLevel = util.EnvOrDefault("TASKMGR_LOG_LEVEL", cfg.LogLevel)
	cfg.Auth.Secret = util.EnvOrDefault("TASKMGR_JWT_SECRET", cfg.Auth.Secret)

	cfg.Mail.Backend = util.EnvOrDefault("TASKMGR_MAIL_BACKEND", cfg.Mail.Backend)
	cfg.Mail.From = util.EnvOrDefault("TASKMGR_MAIL_FROM", cfg.Mail.From)
	cfg.Mail.Host = util.EnvOrDefault("TASKMGR_SMTP_HOST", cfg.Mail.Host)
	cfg.Mail.Username = util.EnvOrDefault("TASKMGR_SMTP_USERNAME", cfg.Mail.Username)
	cfg.Mail.Password = util.EnvOrDefault("TASKMGR_SMTP_PASSWORD", cfg.Mail.Password)

	var errs []error
	var err error
	if cfg.Auth.AccessTTL, err = util.EnvDuration("TASKMGR_JWT_ACCESS_TTL", cfg.Auth.AccessTTL); err != nil {
		errs = append(errs, err)
	}
	if cfg.Auth.RefreshTTL, err = util.EnvDuration("TASKMGR_JWT_REFRESH_TTL", cfg.Auth.RefreshTTL); err != nil {
		errs = append(errs, err)
	}
	if cfg.Mail.Port, err = util.EnvInt("TASKMGR_SMTP_PORT", cfg.Mail.Port); err != nil {
		errs = append(errs, err)
	}
	if cfg.Notify.Workers, err = util.EnvInt("TASKMGR_NOTIFY_WORKERS", cfg.Notify.Workers); err != nil {
		errs = append(errs, err)
	}
	if cfg.Notify.SendRate, err = util.EnvFloat("TASKMGR_NOTIFY_SEND_RATE", cfg.Notify.SendRate); err != nil {
		errs = append(errs, err)
	}
	if cfg.Reminders.Interval, err = util.EnvDuration("TASKMGR_REMINDER_INTERVAL", cfg.Reminders.Interval); err != nil {
		errs = append(errs, err)
	}
	if raw := os.Getenv("TASKMGR_REMINDERS_ENABLED"); raw != "" {
		switch strings.ToLower(raw) {
		case "1", "true", "yes", "on":
			cfg.Reminders.Enabled = true
		case "0", "false", "no", "off":
			cfg.Reminders.Enabled = false
		default:
			errs = append(errs, fmt.Errorf("TASKMGR_REMINDERS_ENABLED: invalid boolean %q", raw))
		}
	}
	return errors.Join(errs...)
}

// Validate checks values that would otherwise fail later at startup.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		errs = append(errs, errors.New("auth.access_ttl and auth.refresh_ttl must be positive"))
	} else if c.Auth.RefreshTTL < c.Auth.AccessTTL {
		errs = append(errs, errors.New("auth.refresh_ttl must not be shorter than auth.access_ttl"))
	}
	switch c.Mail.Backend {
	case "log":
	case "smtp":
		if c.Mail.Host == "" {
			errs = append(errs, errors.New("mail.host is required for the smtp backend"))
		}
		if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
			errs = append(errs, fmt.Errorf("mail.port %d out of range", c.Mail.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("mail.backend %q must be log or smtp", c.Mail.Backend))
	}
	if c.Notify.SendRate < 0 {
		errs = append(errs, errors.New("notify.send_rate must not be negative"))
	}
	if c.Reminders.Enabled && c.Reminders.Interval <= 0 {
		errs = append(errs, errors.New("reminders.interval must be positive"))
	}
	return errors.Join(errs...)
}
