package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"taskmanager/internal/auth"
	"taskmanager/internal/config"
	"taskmanager/internal/models"
	"taskmanager/internal/storage/sqlite"
)

func TestOverrideString(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	flags.String("addr", "", "")
	if err := flags.Parse([]string{"--db", "/tmp/x.db"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	db, addr := "default.db", ":8080"
	overrideString(flags, "db", &db)
	overrideString(flags, "addr", &addr)
	overrideString(flags, "missing", &addr)
	if db != "/tmp/x.db" || addr != ":8080" {
		t.Fatalf("got db=%q addr=%q", db, addr)
	}
}

func TestCreateSuperuserAndRemind(t *testing.T) {
	t.Setenv("TASKMGR_CONFIG", "")
	t.Setenv("TASKMGR_LOG_LEVEL", "error")
	db := filepath.Join(t.TempDir(), "cli.db")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"createsuperuser", "--db", db, "--email", "admin@x.com", "--password", "s3cret-pass"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("createsuperuser: %v", err)
	}
	if !strings.Contains(out.String(), "Superuser admin@x.com created") {
		t.Fatalf("output: %q", out.String())
	}

	rootCmd.SetArgs([]string{"createsuperuser", "--db", db, "--email", "admin@x.com", "--password", "s3cret-pass"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("duplicate superuser should fail")
	}

	out.Reset()
	rootCmd.SetArgs([]string{"remind", "--db", db})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("remind: %v", err)
	}
	if !strings.Contains(out.String(), "queued 0 reminders") {
		t.Fatalf("output: %q", out.String())
	}
}

func TestRemind_DeliversMoreThanQueueCapacity(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "remind.db")
	cfgPath := filepath.Join(dir, "taskmgr.yaml")
	if err := os.WriteFile(cfgPath, []byte("log_level: error\nnotify:\n  workers: 1\n  queue_size: 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TASKMGR_LOG_LEVEL", "")

	ctx := context.Background()
	store, err := sqlite.Open(db, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	owner, err := store.CreateUser(ctx, models.User{Email: "owner@x.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	project, err := store.CreateProject(ctx, models.Project{Name: "Apollo", OwnerID: owner.ID}, nil)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	const total = 10
	deadline := time.Now().Add(time.Hour)
	for i := 0; i < total; i++ {
		_, err := store.CreateTask(ctx, models.Task{
			ProjectID:    project.ID,
			Title:        fmt.Sprintf("Task %d", i),
			CreatedByID:  owner.ID,
			AssignedToID: &owner.ID,
			Deadline:     &deadline,
		})
		if err != nil {
			t.Fatalf("task %d: %v", i, err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	rootCmd.SetArgs([]string{"remind", "--config", cfgPath, "--db", db})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("remind: %v (%s)", err, out.String())
	}
	if want := fmt.Sprintf("queued %d reminders, sent %d", total, total); !strings.Contains(out.String(), want) {
		t.Fatalf("output %q, want %q", out.String(), want)
	}
}

func TestNewIssuer_ConfiguredSecretIsStable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.AuthConfig{Secret: "shared", AccessTTL: time.Minute, RefreshTTL: time.Hour}

	first, err := newIssuer(cfg, logger)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	second, err := newIssuer(cfg, logger)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	token, err := first.AccessToken(7)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if id, err := second.Verify(token, auth.Access); err != nil || id != 7 {
		t.Fatalf("verify with the same secret: %d %v", id, err)
	}

	cfg.Secret = ""
	random, err := newIssuer(cfg, logger)
	if err != nil {
		t.Fatalf("random issuer: %v", err)
	}
	if _, err := random.Verify(token, auth.Access); err == nil {
		t.Fatalf("random secret should not accept tokens signed elsewhere")
	}
}
