package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskmanager/internal/models"
)

// ProjectUpdate lists the project attributes to change. Members replaces
// the member set only when SetMembers is true.
type ProjectUpdate struct {
	Name        *string
	Description *string
	SetMembers  bool
	MemberIDs   []int64
}

// CreateProject persists a project and its member set atomically.
func (s *Store) CreateProject(ctx context.Context, p models.Project, memberIDs []int64) (models.Project, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO projects(name, description, owner_id) VALUES(?, ?, ?)`,
			strings.TrimSpace(p.Name), strings.TrimSpace(p.Description), p.OwnerID)
		if err != nil {
			return wrapErr("insert project", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("project id: %w", err)
		}
		return setMembers(ctx, tx, id, memberIDs)
	})
	if err != nil {
		return models.Project{}, err
	}
	return s.GetProject(ctx, id)
}

// GetProject fetches a single project with its members.
func (s *Store) GetProject(ctx context.Context, id int64) (models.Project, error) {
	var p models.Project
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description, owner_id, created_at, updated_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	if p.Members, err = s.members(ctx, id); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// ListProjects retrieves all projects ordered by name.
func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, owner_id, created_at, updated_at FROM projects ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range projects {
		if projects[i].Members, err = s.members(ctx, projects[i].ID); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

// UpdateProject changes a project's attributes and optionally its members.
func (s *Store) UpdateProject(ctx context.Context, id int64, u ProjectUpdate) (models.Project, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var name, description string
		err := tx.QueryRowContext(ctx, `SELECT name, description FROM projects WHERE id = ?`, id).Scan(&name, &description)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("project %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get project: %w", err)
		}
		if u.Name != nil {
			name = strings.TrimSpace(*u.Name)
		}
		if u.Description != nil {
			description = strings.TrimSpace(*u.Description)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE projects SET name = ?, description = ? WHERE id = ?`, name, description, id); err != nil {
			return wrapErr("update project", err)
		}
		if !u.SetMembers {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("clear members: %w", err)
		}
		return setMembers(ctx, tx, id, u.MemberIDs)
	})
	if err != nil {
		return models.Project{}, err
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes a project along with its tasks.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return nil
}

func setMembers(ctx context.Context, tx *sql.Tx, projectID int64, userIDs []int64) error {
	for _, uid := range userIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO project_members(project_id, user_id) VALUES(?, ?)`, projectID, uid); err != nil {
			return fmt.Errorf("add member: %w", err)
		}
	}
	return nil
}

func (s *Store) members(ctx context.Context, projectID int64) ([]models.User, error) {
	return queryUsers(ctx, s.db, `SELECT u.id, u.email, u.first_name, u.last_name, u.phone_number, u.password_hash, u.is_staff, u.created_at
        FROM users u JOIN project_members m ON m.user_id = u.id
        WHERE m.project_id = ? ORDER BY u.email`, projectID)
}

// CreateStatus adds a Kanban column to a project.
func (s *Store) CreateStatus(ctx context.Context, st models.TaskStatus) (models.TaskStatus, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO task_statuses(project_id, name, sort_order) VALUES(?, ?, ?)`,
		st.ProjectID, strings.TrimSpace(st.Name), st.Order)
	if err != nil {
		return models.TaskStatus{}, wrapErr("insert status", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.TaskStatus{}, fmt.Errorf("status id: %w", err)
	}
	return s.GetStatus(ctx, id)
}

// GetStatus fetches a status by id.
func (s *Store) GetStatus(ctx context.Context, id int64) (models.TaskStatus, error) {
	var st models.TaskStatus
	err := s.db.QueryRowContext(ctx, `SELECT id, project_id, name, sort_order FROM task_statuses WHERE id = ?`, id).
		Scan(&st.ID, &st.ProjectID, &st.Name, &st.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TaskStatus{}, fmt.Errorf("status %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.TaskStatus{}, fmt.Errorf("get status: %w", err)
	}
	return st, nil
}

// ListStatuses returns a project's statuses in column order.
func (s *Store) ListStatuses(ctx context.Context, projectID int64) ([]models.TaskStatus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, name, sort_order FROM task_statuses WHERE project_id = ? ORDER BY sort_order, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	var statuses []models.TaskStatus
	for rows.Next() {
		var st models.TaskStatus
		if err := rows.Scan(&st.ID, &st.ProjectID, &st.Name, &st.Order); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// CreateSprint adds a sprint to a project.
func (s *Store) CreateSprint(ctx context.Context, sp models.Sprint) (models.Sprint, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO sprints(project_id, name, start_date, end_date) VALUES(?, ?, ?, ?)`,
		sp.ProjectID, strings.TrimSpace(sp.Name), formatTime(sp.StartDate), formatTime(sp.EndDate))
	if err != nil {
		return models.Sprint{}, wrapErr("insert sprint", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Sprint{}, fmt.Errorf("sprint id: %w", err)
	}
	return s.GetSprint(ctx, id)
}

// GetSprint fetches a sprint by id.
func (s *Store) GetSprint(ctx context.Context, id int64) (models.Sprint, error) {
	var sp models.Sprint
	err := s.db.QueryRowContext(ctx, `SELECT id, project_id, name, start_date, end_date FROM sprints WHERE id = ?`, id).
		Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.StartDate, &sp.EndDate)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Sprint{}, fmt.Errorf("sprint %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Sprint{}, fmt.Errorf("get sprint: %w", err)
	}
	return sp, nil
}

// ListSprints returns a project's sprints ordered by start date.
func (s *Store) ListSprints(ctx context.Context, projectID int64) ([]models.Sprint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, name, start_date, end_date FROM sprints WHERE project_id = ? ORDER BY start_date, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer rows.Close()

	var sprints []models.Sprint
	for rows.Next() {
		var sp models.Sprint
		if err := rows.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.StartDate, &sp.EndDate); err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sprints = append(sprints, sp)
	}
	return sprints, rows.Err()
}
