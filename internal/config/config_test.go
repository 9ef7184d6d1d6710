package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskmgr.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Mail.Backend != "log" || cfg.Notify.MaxAttempts != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Reminders.Interval != 24*time.Hour {
		t.Fatalf("reminder interval: %v", cfg.Reminders.Interval)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
addr: ":9090"
db_path: /var/lib/taskmgr/db.sqlite
notify:
  workers: 4
  retry_delay: 250ms
mail:
  backend: smtp
  host: smtp.example.com
  port: 2525
reminders:
  interval: 1h
`)
	t.Setenv("TASKMGR_ADDR", ":7070")
	t.Setenv("TASKMGR_SMTP_USERNAME", "mailer")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Fatalf("env should override file addr, got %q", cfg.Addr)
	}
	if cfg.DBPath != "/var/lib/taskmgr/db.sqlite" || cfg.Notify.Workers != 4 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Notify.RetryDelay != 250*time.Millisecond || cfg.Reminders.Interval != time.Hour {
		t.Fatalf("durations: %v %v", cfg.Notify.RetryDelay, cfg.Reminders.Interval)
	}
	if cfg.Notify.QueueSize != 256 {
		t.Fatalf("unset file values keep defaults, got queue %d", cfg.Notify.QueueSize)
	}
	if cfg.Mail.Username != "mailer" || cfg.Mail.Port != 2525 {
		t.Fatalf("mail: %+v", cfg.Mail)
	}
}

func TestLoad_PathFromEnvironment(t *testing.T) {
	path := writeConfig(t, "log_level: debug\n")
	t.Setenv(EnvConfigPath, path)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level %q", cfg.LogLevel)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "addr: [")); err == nil {
		t.Fatalf("expected parse error")
	}

	_, err := Load(writeConfig(t, "mail:\n  backend: smtp\n"))
	if err == nil || !strings.Contains(err.Error(), "mail.host") {
		t.Fatalf("expected smtp host error, got %v", err)
	}

	t.Setenv("TASKMGR_SMTP_PORT", "not-a-port")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "TASKMGR_SMTP_PORT") {
		t.Fatalf("expected env parse error, got %v", err)
	}
}

func TestValidate_ReminderInterval(t *testing.T) {
	cfg := Default()
	cfg.Reminders.Interval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected interval error")
	}
	cfg.Reminders.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled reminders ignore interval: %v", err)
	}
}

func TestLoad_AuthFromFileAndEnv(t *testing.T) {
	path := writeConfig(t, "auth:\n  secret: from-file\n  access_ttl: 10m\n")
	t.Setenv(EnvConfigPath, "")
	t.Setenv("TASKMGR_JWT_SECRET", "from-env")
	t.Setenv("TASKMGR_JWT_REFRESH_TTL", "48h")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.Secret != "from-env" {
		t.Fatalf("secret %q", cfg.Auth.Secret)
	}
	if cfg.Auth.AccessTTL != 10*time.Minute || cfg.Auth.RefreshTTL != 48*time.Hour {
		t.Fatalf("ttls: %v %v", cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	}
}

func TestValidate_TokenLifetimes(t *testing.T) {
	cfg := Default()
	if cfg.Auth.AccessTTL != 5*time.Minute || cfg.Auth.RefreshTTL != 24*time.Hour {
		t.Fatalf("defaults: %+v", cfg.Auth)
	}
	cfg.Auth.RefreshTTL = time.Minute
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "refresh_ttl") {
		t.Fatalf("expected refresh shorter than access to fail, got %v", err)
	}
	cfg.Auth.AccessTTL = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected zero access ttl to fail")
	}
}
