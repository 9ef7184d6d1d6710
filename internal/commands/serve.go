package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"taskmanager/internal/notify"
	"taskmanager/internal/server"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the notification workers and the deadline scanner",
	Long: `Run the HTTP API together with the background notification workers and,
unless disabled, the periodic deadline reminder scan.

Examples:
  taskmgr serve
  taskmgr serve --addr :9000 --no-reminders`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().String("static", "", "directory with a built frontend (overrides config)")
	serveCmd.Flags().Bool("no-reminders", false, "do not run the periodic deadline scan")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	overrideString(cmd.Flags(), "addr", &a.cfg.Addr)
	overrideString(cmd.Flags(), "static", &a.cfg.StaticDir)
	if noReminders, _ := cmd.Flags().GetBool("no-reminders"); noReminders {
		a.cfg.Reminders.Enabled = false
	}

	a.logger.Info("taskmanager starting", slog.String("version", version), slog.String("db", a.cfg.DBPath))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           server.New(a.svc, a.logger, a.cfg.StaticDir).Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.dispatcher.Run(gctx)
	})

	if a.cfg.Reminders.Enabled {
		scanner := notify.NewScanner(a.store, a.dispatcher, time.Now, a.logger)
		g.Go(func() error {
			return scanner.Run(gctx, a.cfg.Reminders.Interval)
		})
	}

	g.Go(func() error {
		a.logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	// Requests served during shutdown may still have queued messages.
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if n := a.dispatcher.Drain(drainCtx); n > 0 {
		a.logger.Info("delivered queued notifications on shutdown", slog.Int("count", n))
	}

	a.logger.Info("server stopped")
	return nil
}
