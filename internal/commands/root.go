package commands

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"taskmanager/internal/auth"
	"taskmanager/internal/config"
	"taskmanager/internal/notify"
	"taskmanager/internal/service"
	"taskmanager/internal/storage/sqlite"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "taskmgr",
	Short: "Multi-tenant task and project manager",
	Long: `taskmgr serves the task manager REST API, sends assignment and deadline
emails, and provides maintenance commands.

Configuration is read from a YAML file (--config or TASKMGR_CONFIG), then
TASKMGR_* environment variables, then command line flags.`,
	SilenceUsage: true,
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().String("db", "", "path to the SQLite database (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(remindCmd)
	rootCmd.AddCommand(createSuperuserCmd)
}

// app holds the components shared by every command.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *sqlite.Store
	dispatcher *notify.Dispatcher
	svc        *service.Service
}

// loadConfig resolves the configuration and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	overrideString(cmd.Flags(), "db", &cfg.DBPath)
	overrideString(cmd.Flags(), "log-level", &cfg.LogLevel)
	return cfg, cfg.Validate()
}

// overrideString copies the flag value into dst when the flag was set on
// the command line.
func overrideString(flags *pflag.FlagSet, name string, dst *string) {
	if f := flags.Lookup(name); f != nil && f.Changed {
		*dst = f.Value.String()
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})), nil
}

func newMailer(cfg config.MailConfig, logger *slog.Logger) notify.Mailer {
	if cfg.Backend == "smtp" {
		return notify.SMTPMailer{Host: cfg.Host, Port: cfg.Port, Username: cfg.Username, Password: cfg.Password}
	}
	return notify.LogMailer{Logger: logger}
}

// setup opens the store and wires the dispatcher and service. The caller
// must call close.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	dispatcher := notify.NewDispatcher(store, newMailer(cfg.Mail, logger), notify.Config{
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
		MaxAttempts: cfg.Notify.MaxAttempts,
		RetryDelay:  cfg.Notify.RetryDelay,
		SendRate:    cfg.Notify.SendRate,
		From:        cfg.Mail.From,
	}, logger)

	tokens, err := newIssuer(cfg.Auth, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	svc := service.New(store, dispatcher, logger)
	svc.Tokens = tokens

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		dispatcher: dispatcher,
		svc:        svc,
	}, nil
}

// newIssuer signs tokens with the configured secret, or with a random one
// that only lives as long as the process.
func newIssuer(cfg config.AuthConfig, logger *slog.Logger) (*auth.Issuer, error) {
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		logger.Warn("no auth.secret configured, using a random secret; tokens will not survive a restart")
	}
	return auth.NewIssuer(secret, cfg.AccessTTL, cfg.RefreshTTL)
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("closing database", slog.String("error", err.Error()))
	}
}
