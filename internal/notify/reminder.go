package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"taskmanager/internal/models"
)

// ReminderWindow is how far ahead the scanner looks for deadlines.
const ReminderWindow = 24 * time.Hour

// DueTaskSource finds assigned tasks with a deadline in [from, to).
type DueTaskSource interface {
	TasksDueBetween(ctx context.Context, from, to time.Time) ([]models.Task, error)
}

// Scanner enqueues deadline reminders. Runs are not coordinated: a task
// that stays inside the window is reminded again on every run.
type Scanner struct {
	tasks    DueTaskSource
	notifier Submitter
	now      func() time.Time
	logger   *slog.Logger
}

// NewScanner builds a scanner. A nil now uses time.Now.
func NewScanner(tasks DueTaskSource, notifier Submitter, now func() time.Time, logger *slog.Logger) *Scanner {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{tasks: tasks, notifier: notifier, now: now, logger: logger}
}

// Scan queues one reminder per assigned task due within the next 24 hours
// and returns how many were queued. It waits for room when the queue is
// full, so no reminder is dropped; it stops early only when ctx is done or
// the dispatcher is closed.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	from := s.now()
	to := from.Add(ReminderWindow)

	due, err := s.tasks.TasksDueBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("scan deadlines: %w", err)
	}

	n := 0
	for _, t := range due {
		if t.AssignedToID == nil || t.AssigneeEmail == "" {
			continue
		}
		if err := s.notifier.Submit(ctx, KindReminder, t.ID, t.AssigneeEmail); err != nil {
			return n, fmt.Errorf("queued %d of %d reminders: %w", n, len(due), err)
		}
		n++
	}
	s.logger.Info("deadline scan finished", slog.Time("from", from), slog.Time("to", to), slog.Int("reminders", n))
	return n, nil
}

// Run scans immediately and then on every interval until ctx is cancelled.
// Scan errors are logged and the loop continues.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("reminder interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Scan(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("deadline scan failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
