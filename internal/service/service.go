// Package service implements the account, project and task workflows on
// top of the record store: authorization first, then validation, then the
// write, then any notification.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskmanager/internal/auth"
	"taskmanager/internal/models"
	"taskmanager/internal/notify"
	"taskmanager/internal/storage/sqlite"
)

var (
	// ErrForbidden is returned when the actor may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized is returned when credentials do not match an account.
	ErrUnauthorized = errors.New("invalid credentials")
	// ErrNotFound is returned when the target of an operation does not exist.
	ErrNotFound = sqlite.ErrNotFound
)

// ValidationError reports rejected input per field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func invalid(field, msg string) error {
	v := &ValidationError{}
	v.add(field, msg)
	return v
}

// Store is the record store the workflows run against.
type Store interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UsersByEmail(ctx context.Context, emails []string) ([]models.User, error)
	GetProfile(ctx context.Context, id int64) (models.Profile, error)
	GetProfileByUser(ctx context.Context, userID int64) (models.Profile, error)
	ListProfiles(ctx context.Context) ([]models.Profile, error)
	UpdateProfile(ctx context.Context, id int64, u sqlite.ProfileUpdate) (models.Profile, error)

	CreateProject(ctx context.Context, p models.Project, memberIDs []int64) (models.Project, error)
	GetProject(ctx context.Context, id int64) (models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	UpdateProject(ctx context.Context, id int64, u sqlite.ProjectUpdate) (models.Project, error)
	DeleteProject(ctx context.Context, id int64) error
	CreateStatus(ctx context.Context, st models.TaskStatus) (models.TaskStatus, error)
	GetStatus(ctx context.Context, id int64) (models.TaskStatus, error)
	ListStatuses(ctx context.Context, projectID int64) ([]models.TaskStatus, error)
	CreateSprint(ctx context.Context, sp models.Sprint) (models.Sprint, error)
	GetSprint(ctx context.Context, id int64) (models.Sprint, error)
	ListSprints(ctx context.Context, projectID int64) ([]models.Sprint, error)

	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	GetTask(ctx context.Context, id int64) (models.Task, error)
	ListTasks(ctx context.Context, f sqlite.TaskFilter) ([]models.Task, error)
	UpdateTask(ctx context.Context, id int64, patch models.TaskPatch, actor *models.User, hook sqlite.TaskHook) (models.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	ListHistory(ctx context.Context, taskID int64) ([]models.TaskHistory, error)

	CreateComment(ctx context.Context, c models.Comment) (models.Comment, error)
	GetComment(ctx context.Context, id int64) (models.Comment, error)
	ListComments(ctx context.Context, taskID int64) ([]models.Comment, error)
	DeleteComment(ctx context.Context, id int64) error
	CreateAttachment(ctx context.Context, a models.Attachment) (models.Attachment, error)
	ListAttachments(ctx context.Context, taskID int64) ([]models.Attachment, error)
}

// Service bundles the workflows.
type Service struct {
	store    Store
	notifier notify.Enqueuer
	now      func() time.Time
	logger   *slog.Logger

	// PasswordCost is the bcrypt cost used for new password hashes.
	PasswordCost int

	// Tokens issues and verifies bearer tokens. Token logins are refused
	// while it is nil.
	Tokens *auth.Issuer

	dummyOnce sync.Once
	dummy     []byte
}

// New wires a service to its store and notification queue.
func New(store Store, notifier notify.Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		notifier:     notifier,
		now:          time.Now,
		logger:       logger,
		PasswordCost: bcrypt.DefaultCost,
	}
}

func (s *Service) project(ctx context.Context, id int64) (models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, fmt.Errorf("load project: %w", err)
	}
	return p, nil
}

func (s *Service) task(ctx context.Context, id int64) (models.Task, models.Project, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, models.Project{}, fmt.Errorf("load task: %w", err)
	}
	p, err := s.project(ctx, t.ProjectID)
	if err != nil {
		return models.Task{}, models.Project{}, err
	}
	return t, p, nil
}
