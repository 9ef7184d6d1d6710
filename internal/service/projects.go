package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"taskmanager/internal/models"
	"taskmanager/internal/permissions"
	"taskmanager/internal/storage/sqlite"
)

// ProjectInput is the payload of project create and update requests. A nil
// MemberEmails leaves the member set untouched on update.
type ProjectInput struct {
	Name         *string   `json:"name"`
	Description  *string   `json:"description"`
	MemberEmails *[]string `json:"member_emails"`
}

// StatusInput is the payload for a new Kanban column.
type StatusInput struct {
	Name  string `json:"name"`
	Order int64  `json:"order"`
}

// SprintInput is the payload for a new sprint.
type SprintInput struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// CreateProject creates a project owned by the actor.
func (s *Service) CreateProject(ctx context.Context, actor *models.User, in ProjectInput) (models.Project, error) {
	if actor == nil {
		return models.Project{}, ErrForbidden
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return models.Project{}, invalid("name", "This field is required.")
	}

	var memberIDs []int64
	if in.MemberEmails != nil {
		ids, err := s.resolveMembers(ctx, *in.MemberEmails, "User with these emails not found: ")
		if err != nil {
			return models.Project{}, err
		}
		memberIDs = ids
	}

	p := models.Project{Name: *in.Name, OwnerID: actor.ID}
	if in.Description != nil {
		p.Description = *in.Description
	}
	created, err := s.store.CreateProject(ctx, p, memberIDs)
	if errors.Is(err, sqlite.ErrConflict) {
		return models.Project{}, invalid("name", "You already own a project with this name.")
	}
	if err != nil {
		return models.Project{}, err
	}
	s.logger.Info("project created", "project_id", created.ID, "owner_id", actor.ID, "members", len(created.Members))
	return created, nil
}

// resolveMembers maps emails to user ids in one lookup and rejects the
// whole set when any email is unknown, listing every unknown one.
func (s *Service) resolveMembers(ctx context.Context, emails []string, prefix string) ([]int64, error) {
	users, err := s.store.UsersByEmail(ctx, emails)
	if err != nil {
		return nil, err
	}
	found := make(map[string]int64, len(users))
	for _, u := range users {
		found[u.Email] = u.ID
	}

	var missing []string
	ids := make([]int64, 0, len(emails))
	for _, e := range emails {
		id, ok := found[strings.ToLower(strings.TrimSpace(e))]
		if !ok {
			missing = append(missing, e)
			continue
		}
		ids = append(ids, id)
	}
	if len(missing) > 0 {
		return nil, invalid("member_emails", prefix+strings.Join(missing, ", "))
	}
	return ids, nil
}

// GetProject returns a project the actor can read.
func (s *Service) GetProject(ctx context.Context, actor *models.User, id int64) (models.Project, error) {
	p, err := s.project(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if !permissions.Project(actor, permissions.Read, p) {
		return models.Project{}, ErrForbidden
	}
	return p, nil
}

// ListProjects returns the projects the actor can read.
func (s *Service) ListProjects(ctx context.Context, actor *models.User) ([]models.Project, error) {
	all, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]models.Project, 0, len(all))
	for _, p := range all {
		if permissions.Project(actor, permissions.Read, p) {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

// UpdateProject changes a project. Owner or staff only.
func (s *Service) UpdateProject(ctx context.Context, actor *models.User, id int64, in ProjectInput) (models.Project, error) {
	p, err := s.project(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if !permissions.Project(actor, permissions.Write, p) {
		return models.Project{}, ErrForbidden
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return models.Project{}, invalid("name", "This field may not be blank.")
	}

	u := sqlite.ProjectUpdate{Name: in.Name, Description: in.Description}
	if in.MemberEmails != nil {
		ids, err := s.resolveMembers(ctx, *in.MemberEmails, "Users with these emails not found: ")
		if err != nil {
			return models.Project{}, err
		}
		u.SetMembers = true
		u.MemberIDs = ids
	}

	updated, err := s.store.UpdateProject(ctx, id, u)
	if errors.Is(err, sqlite.ErrConflict) {
		return models.Project{}, invalid("name", "You already own a project with this name.")
	}
	return updated, err
}

// DeleteProject removes a project and its tasks. Owner or staff only.
func (s *Service) DeleteProject(ctx context.Context, actor *models.User, id int64) error {
	p, err := s.project(ctx, id)
	if err != nil {
		return err
	}
	if !permissions.Project(actor, permissions.Write, p) {
		return ErrForbidden
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.logger.Info("project deleted", "project_id", id, "actor_id", actor.ID)
	return nil
}

// AddStatus adds a Kanban column. Owner or staff only.
func (s *Service) AddStatus(ctx context.Context, actor *models.User, projectID int64, in StatusInput) (models.TaskStatus, error) {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return models.TaskStatus{}, err
	}
	if !permissions.ManageProjectSettings(actor, p) {
		return models.TaskStatus{}, ErrForbidden
	}
	v := &ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		v.add("name", "This field is required.")
	}
	if in.Order < 0 {
		v.add("order", "Ensure this value is greater than or equal to 0.")
	}
	if err := v.err(); err != nil {
		return models.TaskStatus{}, err
	}

	st, err := s.store.CreateStatus(ctx, models.TaskStatus{ProjectID: p.ID, Name: in.Name, Order: in.Order})
	if errors.Is(err, sqlite.ErrConflict) {
		return models.TaskStatus{}, invalid("name", "A status with this name already exists in the project.")
	}
	return st, err
}

// ListStatuses returns a project's columns in order.
func (s *Service) ListStatuses(ctx context.Context, actor *models.User, projectID int64) ([]models.TaskStatus, error) {
	if err := s.canViewSettings(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.store.ListStatuses(ctx, projectID)
}

// AddSprint adds a sprint. Owner or staff only.
func (s *Service) AddSprint(ctx context.Context, actor *models.User, projectID int64, in SprintInput) (models.Sprint, error) {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return models.Sprint{}, err
	}
	if !permissions.ManageProjectSettings(actor, p) {
		return models.Sprint{}, ErrForbidden
	}
	v := &ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		v.add("name", "This field is required.")
	}
	if in.StartDate.IsZero() {
		v.add("start_date", "This field is required.")
	}
	if in.EndDate.IsZero() {
		v.add("end_date", "This field is required.")
	} else if in.EndDate.Before(in.StartDate) {
		v.add("end_date", "End date must not be before start date.")
	}
	if err := v.err(); err != nil {
		return models.Sprint{}, err
	}
	return s.store.CreateSprint(ctx, models.Sprint{ProjectID: p.ID, Name: in.Name, StartDate: in.StartDate, EndDate: in.EndDate})
}

// ListSprints returns a project's sprints.
func (s *Service) ListSprints(ctx context.Context, actor *models.User, projectID int64) ([]models.Sprint, error) {
	if err := s.canViewSettings(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.store.ListSprints(ctx, projectID)
}

// canViewSettings lets project readers and those who manage the columns
// and sprints see them.
func (s *Service) canViewSettings(ctx context.Context, actor *models.User, projectID int64) error {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return err
	}
	if !permissions.Project(actor, permissions.Read, p) && !permissions.ManageProjectSettings(actor, p) {
		return ErrForbidden
	}
	return nil
}
