// Package notify delivers task emails off the request path and scans for
// upcoming deadlines.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"taskmanager/internal/models"
)

// Kind selects the email template of a message.
type Kind string

const (
	KindAssignment Kind = "assignment"
	KindReminder   Kind = "reminder"
)

// DefaultFrom is the sender used when none is configured.
const DefaultFrom = "no-reply@taskmanager.com"

// ErrClosed is returned by Submit once the dispatcher has been closed.
var ErrClosed = errors.New("dispatcher closed")

// Enqueuer accepts notification requests without blocking. It is what
// request handlers use.
type Enqueuer interface {
	Enqueue(kind Kind, taskID int64, recipient string)
}

// Submitter queues notification requests, waiting for room in the queue.
// Background jobs that must not lose messages use it.
type Submitter interface {
	Submit(ctx context.Context, kind Kind, taskID int64, recipient string) error
}

// Message is the unit of work passed from producers to workers.
type Message struct {
	ID         uuid.UUID
	Kind       Kind
	TaskID     int64
	Recipient  string
	EnqueuedAt time.Time
}

// TaskLoader reads the task a message refers to at delivery time.
type TaskLoader interface {
	GetTaskDetail(ctx context.Context, id int64) (models.TaskDetail, error)
}

// Config tunes the dispatcher. Zero values fall back to defaults.
type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
	// SendRate limits emails per second across all workers; 0 disables it.
	SendRate float64
	From     string
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.From == "" {
		c.From = DefaultFrom
	}
	return c
}

// Dispatcher queues notification messages and delivers them with a pool
// of workers. Enqueue never blocks the caller.
type Dispatcher struct {
	cfg     Config
	queue   chan Message
	tasks   TaskLoader
	mailer  Mailer
	limiter *rate.Limiter
	logger  *slog.Logger

	// mu guards closed; senders hold it shared so Close never races a send.
	mu     sync.RWMutex
	closed bool
	sent   atomic.Int64
}

// NewDispatcher constructs a dispatcher; call Run to start delivery.
func NewDispatcher(tasks TaskLoader, mailer Mailer, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.SendRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), 1)
	}

	return &Dispatcher{
		cfg:     cfg,
		queue:   make(chan Message, cfg.QueueSize),
		tasks:   tasks,
		mailer:  mailer,
		limiter: limiter,
		logger:  logger,
	}
}

func newMessage(kind Kind, taskID int64, recipient string) Message {
	return Message{
		ID:         uuid.New(),
		Kind:       kind,
		TaskID:     taskID,
		Recipient:  recipient,
		EnqueuedAt: time.Now(),
	}
}

// Enqueue schedules an email about a task. When the queue is full or the
// dispatcher is closed the message is dropped and logged.
func (d *Dispatcher) Enqueue(kind Kind, taskID int64, recipient string) {
	msg := newMessage(kind, taskID, recipient)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notification dispatcher closed, dropping message",
			slog.String("id", msg.ID.String()), slog.String("kind", string(kind)), slog.Int64("task_id", taskID))
		return
	}
	select {
	case d.queue <- msg:
		d.logger.Debug("notification queued", slog.String("id", msg.ID.String()), slog.String("kind", string(kind)), slog.Int64("task_id", taskID))
	default:
		d.logger.Warn("notification queue full, dropping message",
			slog.String("id", msg.ID.String()), slog.String("kind", string(kind)), slog.Int64("task_id", taskID), slog.String("recipient", recipient))
	}
}

// Submit schedules an email, waiting while the queue is full. It fails
// only when ctx is done or the dispatcher is closed.
func (d *Dispatcher) Submit(ctx context.Context, kind Kind, taskID int64, recipient string) error {
	msg := newMessage(kind, taskID, recipient)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue %s for task %d: %w", kind, taskID, ctx.Err())
	}
}

// Close stops accepting messages. Running workers deliver what is already
// queued and then return from Run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
}

// Sent reports how many emails were delivered.
func (d *Dispatcher) Sent() int64 {
	return d.sent.Load()
}

// Pending reports how many messages wait in the queue.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Run starts the workers and blocks until ctx is cancelled or, after Close,
// the queue is empty.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	d.logger.Info("notification dispatcher started", slog.Int("workers", d.cfg.Workers))
	wg.Wait()
	d.logger.Info("notification dispatcher stopped", slog.Int("pending", len(d.queue)))
	return nil
}

// Drain delivers queued messages on the calling goroutine until the queue
// is empty or ctx is done, and returns the number processed.
func (d *Dispatcher) Drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case <-ctx.Done():
			return n
		case msg, ok := <-d.queue:
			if !ok {
				return n
			}
			d.deliver(ctx, msg)
			n++
		default:
			return n
		}
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, msg)
		}
	}
}

// deliver sends one message, retrying with exponential backoff. Failures
// end here.
func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	log := d.logger.With(slog.String("id", msg.ID.String()), slog.String("kind", string(msg.Kind)), slog.Int64("task_id", msg.TaskID))

	task, err := d.tasks.GetTaskDetail(ctx, msg.TaskID)
	if err != nil {
		log.Warn("notification task unavailable", slog.String("error", err.Error()))
		return
	}
	email, err := Compose(msg, task, d.cfg.From)
	if err != nil {
		log.Error("compose notification", slog.String("error", err.Error()))
		return
	}

	delay := d.cfg.RetryDelay
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			log.Warn("notification cancelled", slog.String("error", err.Error()))
			return
		}
		err = d.mailer.Send(ctx, email)
		if err == nil {
			d.sent.Add(1)
			log.Info("notification sent", slog.String("recipient", msg.Recipient), slog.Int("attempt", attempt))
			return
		}
		log.Warn("notification send failed", slog.String("error", err.Error()), slog.Int("attempt", attempt))
		if attempt == d.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
	log.Error("notification abandoned", slog.String("recipient", msg.Recipient), slog.Int("attempts", d.cfg.MaxAttempts))
}

// Compose renders the email for a message.
func Compose(msg Message, task models.TaskDetail, from string) (Email, error) {
	email := Email{From: from, To: []string{msg.Recipient}}
	switch msg.Kind {
	case KindAssignment:
		deadline := "Not set"
		if task.Deadline != nil {
			deadline = task.Deadline.UTC().Format("2006-01-02 15:04:05-07:00")
		}
		email.Subject = fmt.Sprintf("New Task Assigned: %s", task.Title)
		email.Body = fmt.Sprintf("You have been assigned to '%s' in project '%s'.\n\nDescription: %s\nDeadline: %s",
			task.Title, task.ProjectName, task.Description, deadline)
	case KindReminder:
		email.Subject = fmt.Sprintf("Deadline Reminder: %s", task.Title)
		email.Body = fmt.Sprintf("The task '%s' is due in 24 hours.\n\nDescription: %s\nProject: %s",
			task.Title, task.Description, task.ProjectName)
	default:
		return Email{}, fmt.Errorf("unknown notification kind %q", msg.Kind)
	}
	return email, nil
}
