package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"taskmanager/internal/history"
	"taskmanager/internal/models"
	"taskmanager/internal/notify"
	"taskmanager/internal/permissions"
	"taskmanager/internal/storage/sqlite"
)

// TaskInput is the payload of task create and update requests. Absent
// fields are left unchanged on update; nullable fields accept null.
type TaskInput struct {
	ProjectID       int64                   `json:"project_id"`
	Title           *string                 `json:"title"`
	Description     *string                 `json:"description"`
	Priority        *string                 `json:"priority"`
	StatusID        models.Field[int64]     `json:"status_id"`
	SprintID        models.Field[int64]     `json:"sprint_id"`
	ParentTaskID    models.Field[int64]     `json:"parent_task_id"`
	AssignedToEmail models.Field[string]    `json:"assigned_to_email"`
	Deadline        models.Field[time.Time] `json:"deadline"`
	EstimatedHours  *float64                `json:"estimated_hours"`
	ActualHours     *float64                `json:"actual_hours"`
	StoryPoints     models.Field[int64]     `json:"story_points"`
}

// CommentInput is the payload of a new comment.
type CommentInput struct {
	Body string `json:"body"`
}

// AttachmentInput is the metadata of an uploaded file.
type AttachmentInput struct {
	FileName    string `json:"file_name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// CreateTask adds a task to a project the actor collaborates on. A task
// created with an assignee notifies that assignee.
func (s *Service) CreateTask(ctx context.Context, actor *models.User, in TaskInput) (models.Task, error) {
	p, err := s.project(ctx, in.ProjectID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return models.Task{}, invalid("project_id", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", in.ProjectID))
	}
	if err != nil {
		return models.Task{}, err
	}
	if !permissions.CreateTask(actor, p) {
		return models.Task{}, ErrForbidden
	}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return models.Task{}, invalid("title", "This field is required.")
	}

	patch, err := s.validateTask(ctx, p, nil, in)
	if err != nil {
		return models.Task{}, err
	}
	draft := patch.Apply(models.Task{
		ProjectID:   p.ID,
		CreatedByID: actor.ID,
		Priority:    models.PriorityMedium,
	})

	created, err := s.store.CreateTask(ctx, draft)
	if errors.Is(err, sqlite.ErrConflict) {
		return models.Task{}, invalid("title", "A task with this title already exists in the project.")
	}
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Info("task created", "task_id", created.ID, "project_id", p.ID, "actor_id", actor.ID)

	if created.AssignedToID != nil {
		s.notifier.Enqueue(notify.KindAssignment, created.ID, created.AssigneeEmail)
	}
	return created, nil
}

// UpdateTask applies a partial update. Every tracked field that changes is
// recorded in the task history in the same transaction, attributed to
// actor. Assigning a new user notifies them once the update commits.
func (s *Service) UpdateTask(ctx context.Context, actor *models.User, id int64, in TaskInput) (models.Task, error) {
	t, p, err := s.task(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if !permissions.Task(actor, permissions.Write, t, p) {
		return models.Task{}, ErrForbidden
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return models.Task{}, invalid("title", "This field may not be blank.")
	}

	patch, err := s.validateTask(ctx, p, &t, in)
	if err != nil {
		return models.Task{}, err
	}

	var before models.Task
	hook := func(old, updated models.Task, by *models.User) []models.TaskHistory {
		before = old
		return history.Track(old, updated, by, s.now())
	}
	updated, err := s.store.UpdateTask(ctx, id, patch, actor, hook)
	if errors.Is(err, sqlite.ErrConflict) {
		return models.Task{}, invalid("title", "A task with this title already exists in the project.")
	}
	if err != nil {
		return models.Task{}, err
	}

	if assigneeChanged(before, updated) {
		s.notifier.Enqueue(notify.KindAssignment, updated.ID, updated.AssigneeEmail)
	}
	return updated, nil
}

// assigneeChanged reports whether the task gained a concrete assignee it
// did not have before.
func assigneeChanged(before, after models.Task) bool {
	if after.AssignedToID == nil {
		return false
	}
	return before.AssignedToID == nil || *before.AssignedToID != *after.AssignedToID
}

// validateTask checks the input against the project and returns the patch
// to apply. existing is nil on create.
func (s *Service) validateTask(ctx context.Context, p models.Project, existing *models.Task, in TaskInput) (models.TaskPatch, error) {
	v := &ValidationError{}
	// Text is trimmed here, as stored, so the history hook sees the
	// persisted value.
	patch := models.TaskPatch{
		Title:          trimmed(in.Title),
		Description:    trimmed(in.Description),
		EstimatedHours: in.EstimatedHours,
		ActualHours:    in.ActualHours,
		StatusID:       in.StatusID,
		SprintID:       in.SprintID,
		ParentTaskID:   in.ParentTaskID,
		StoryPoints:    in.StoryPoints,
	}

	if in.Priority != nil {
		prio := models.Priority(strings.ToLower(strings.TrimSpace(*in.Priority)))
		if _, ok := models.ValidPriorities[prio]; !ok {
			v.add("priority", fmt.Sprintf("%q is not a valid choice.", *in.Priority))
		}
		patch.Priority = &prio
	}
	if in.EstimatedHours != nil && *in.EstimatedHours < 0 {
		v.add("estimated_hours", "Ensure this value is greater than or equal to 0.")
	}
	if in.ActualHours != nil && *in.ActualHours < 0 {
		v.add("actual_hours", "Ensure this value is greater than or equal to 0.")
	}
	if in.StoryPoints.Value != nil && *in.StoryPoints.Value < 0 {
		v.add("story_points", "Ensure this value is greater than or equal to 0.")
	}
	if in.Deadline.Value != nil {
		utc := in.Deadline.Value.UTC()
		patch.Deadline = models.Some(utc)
	} else {
		patch.Deadline = in.Deadline
	}

	if in.StatusID.Value != nil {
		st, err := s.store.GetStatus(ctx, *in.StatusID.Value)
		switch {
		case errors.Is(err, sqlite.ErrNotFound):
			v.add("status_id", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *in.StatusID.Value))
		case err != nil:
			return models.TaskPatch{}, err
		case st.ProjectID != p.ID:
			v.add("status_id", "Status does not belong to the task's project.")
		}
	}
	if in.SprintID.Value != nil {
		sp, err := s.store.GetSprint(ctx, *in.SprintID.Value)
		switch {
		case errors.Is(err, sqlite.ErrNotFound):
			v.add("sprint_id", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *in.SprintID.Value))
		case err != nil:
			return models.TaskPatch{}, err
		case sp.ProjectID != p.ID:
			v.add("sprint_id", "Sprint does not belong to the task's project.")
		}
	}
	if in.ParentTaskID.Value != nil {
		msg, err := s.checkParent(ctx, p, existing, *in.ParentTaskID.Value)
		if err != nil {
			return models.TaskPatch{}, err
		}
		if msg != "" {
			v.add("parent_task_id", msg)
		}
	}

	if in.AssignedToEmail.Set {
		if in.AssignedToEmail.Value == nil || strings.TrimSpace(*in.AssignedToEmail.Value) == "" {
			patch.AssignedToID = models.Null[int64]()
		} else {
			u, err := s.store.GetUserByEmail(ctx, *in.AssignedToEmail.Value)
			switch {
			case errors.Is(err, sqlite.ErrNotFound):
				v.add("assigned_to_email", "User not found")
			case err != nil:
				return models.TaskPatch{}, err
			default:
				patch.AssignedToID = models.Some(u.ID)
			}
		}
	}

	if err := v.err(); err != nil {
		return models.TaskPatch{}, err
	}
	return patch, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// checkParent returns a rejection message when parentID cannot be the
// parent of existing.
func (s *Service) checkParent(ctx context.Context, p models.Project, existing *models.Task, parentID int64) (string, error) {
	invalidPK := fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", parentID)
	seen := map[int64]bool{}
	for id := parentID; ; {
		if existing != nil && id == existing.ID {
			return "A task cannot be its own ancestor.", nil
		}
		if seen[id] {
			return "", nil
		}
		seen[id] = true

		parent, err := s.store.GetTask(ctx, id)
		if errors.Is(err, sqlite.ErrNotFound) {
			return invalidPK, nil
		}
		if err != nil {
			return "", err
		}
		if id == parentID && parent.ProjectID != p.ID {
			return "Parent task belongs to another project.", nil
		}
		if parent.ParentTaskID == nil {
			return "", nil
		}
		id = *parent.ParentTaskID
	}
}

// GetTask returns a task the actor can read.
func (s *Service) GetTask(ctx context.Context, actor *models.User, id int64) (models.Task, error) {
	t, p, err := s.task(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if !permissions.Task(actor, permissions.Read, t, p) {
		return models.Task{}, ErrForbidden
	}
	return t, nil
}

// ListTasks returns the tasks the actor can read, optionally limited to
// one project.
func (s *Service) ListTasks(ctx context.Context, actor *models.User, projectID *int64) ([]models.Task, error) {
	if projectID != nil {
		if _, err := s.project(ctx, *projectID); err != nil {
			return nil, err
		}
	}
	tasks, err := s.store.ListTasks(ctx, sqlite.TaskFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}

	projects := map[int64]models.Project{}
	visible := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		p, ok := projects[t.ProjectID]
		if !ok {
			if p, err = s.project(ctx, t.ProjectID); err != nil {
				return nil, err
			}
			projects[t.ProjectID] = p
		}
		if permissions.Task(actor, permissions.Read, t, p) {
			visible = append(visible, t)
		}
	}
	return visible, nil
}

// DeleteTask removes a task with its history, comments and attachments.
func (s *Service) DeleteTask(ctx context.Context, actor *models.User, id int64) error {
	t, p, err := s.task(ctx, id)
	if err != nil {
		return err
	}
	if !permissions.Task(actor, permissions.Write, t, p) {
		return ErrForbidden
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.logger.Info("task deleted", "task_id", id, "actor_id", actor.ID)
	return nil
}

// TaskHistory lists a readable task's change records in insertion order.
func (s *Service) TaskHistory(ctx context.Context, actor *models.User, id int64) ([]models.TaskHistory, error) {
	if _, err := s.GetTask(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, id)
}

// AddComment lets anyone who can read the task comment on it.
func (s *Service) AddComment(ctx context.Context, actor *models.User, taskID int64, in CommentInput) (models.Comment, error) {
	if _, err := s.GetTask(ctx, actor, taskID); err != nil {
		return models.Comment{}, err
	}
	if strings.TrimSpace(in.Body) == "" {
		return models.Comment{}, invalid("body", "This field is required.")
	}
	return s.store.CreateComment(ctx, models.Comment{TaskID: taskID, AuthorID: actor.ID, Body: in.Body})
}

// ListComments returns a readable task's comments, newest first.
func (s *Service) ListComments(ctx context.Context, actor *models.User, taskID int64) ([]models.Comment, error) {
	if _, err := s.GetTask(ctx, actor, taskID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, taskID)
}

// DeleteComment removes a comment. Author or staff only.
func (s *Service) DeleteComment(ctx context.Context, actor *models.User, id int64) error {
	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if !permissions.DeleteComment(actor, c) {
		return ErrForbidden
	}
	return s.store.DeleteComment(ctx, id)
}

// AddAttachment records a file for a readable task.
func (s *Service) AddAttachment(ctx context.Context, actor *models.User, taskID int64, in AttachmentInput) (models.Attachment, error) {
	if _, err := s.GetTask(ctx, actor, taskID); err != nil {
		return models.Attachment{}, err
	}
	v := &ValidationError{}
	if strings.TrimSpace(in.FileName) == "" {
		v.add("file_name", "This field is required.")
	}
	if u, err := url.Parse(strings.TrimSpace(in.URL)); err != nil || u.Scheme == "" || u.Host == "" {
		v.add("url", "Enter a valid URL.")
	}
	if in.Size < 0 {
		v.add("size", "Ensure this value is greater than or equal to 0.")
	}
	if err := v.err(); err != nil {
		return models.Attachment{}, err
	}
	return s.store.CreateAttachment(ctx, models.Attachment{
		TaskID:      taskID,
		UploadedBy:  actor.ID,
		FileName:    in.FileName,
		URL:         in.URL,
		ContentType: in.ContentType,
		Size:        in.Size,
	})
}

// ListAttachments returns a readable task's attachments, newest first.
func (s *Service) ListAttachments(ctx context.Context, actor *models.User, taskID int64) ([]models.Attachment, error) {
	if _, err := s.GetTask(ctx, actor, taskID); err != nil {
		return nil, err
	}
	return s.store.ListAttachments(ctx, taskID)
}
