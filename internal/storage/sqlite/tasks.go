package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskmanager/internal/models"
)

// TaskHook is called inside the update transaction with the stored and the
// patched task. The records it returns are written in the same transaction.
type TaskHook func(old, updated models.Task, actor *models.User) []models.TaskHistory

// TaskFilter narrows ListTasks. A nil ProjectID lists every task.
type TaskFilter struct {
	ProjectID *int64
}

const taskSelect = `SELECT t.id, t.project_id, t.parent_task_id, t.title, t.description,
        t.status_id, COALESCE(s.name, ''), t.priority, t.created_by,
        t.assigned_to, COALESCE(u.email, ''), t.deadline,
        t.estimated_hours, t.actual_hours, t.sprint_id, COALESCE(sp.name, ''),
        t.story_points, t.created_at, t.updated_at
    FROM tasks t
    LEFT JOIN task_statuses s ON s.id = t.status_id
    LEFT JOIN users u ON u.id = t.assigned_to
    LEFT JOIN sprints sp ON sp.id = t.sprint_id`

func scanTask(row rowScanner) (models.Task, error) {
	var t models.Task
	var parent, status, assignee, sprint, points sql.NullInt64
	var deadline sql.NullTime
	var priority string
	err := row.Scan(&t.ID, &t.ProjectID, &parent, &t.Title, &t.Description,
		&status, &t.StatusName, &priority, &t.CreatedByID,
		&assignee, &t.AssigneeEmail, &deadline,
		&t.EstimatedHours, &t.ActualHours, &sprint, &t.SprintName,
		&points, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Task{}, err
	}
	t.Priority = models.Priority(priority)
	t.ParentTaskID = intPtr(parent)
	t.StatusID = intPtr(status)
	t.AssignedToID = intPtr(assignee)
	t.SprintID = intPtr(sprint)
	t.StoryPoints = intPtr(points)
	t.Deadline = timePtr(deadline)
	return t, nil
}

func getTask(ctx context.Context, q queryer, id int64) (models.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, taskSelect+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func queryTasks(ctx context.Context, q queryer, query string, args ...any) ([]models.Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a new task. Creation never writes history.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, fmt.Errorf("task title must not be empty")
	}
	if _, ok := models.ValidPriorities[t.Priority]; !ok {
		t.Priority = models.PriorityMedium
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO tasks(project_id, parent_task_id, title, description, status_id, priority,
            created_by, assigned_to, deadline, estimated_hours, actual_hours, sprint_id, story_points)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectID, nullInt(t.ParentTaskID), strings.TrimSpace(t.Title), strings.TrimSpace(t.Description),
		nullInt(t.StatusID), string(t.Priority), t.CreatedByID, nullInt(t.AssignedToID), nullTime(t.Deadline),
		t.EstimatedHours, t.ActualHours, nullInt(t.SprintID), nullInt(t.StoryPoints))
	if err != nil {
		return models.Task{}, wrapErr("insert task", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Task{}, fmt.Errorf("task id: %w", err)
	}
	return s.GetTask(ctx, id)
}

// GetTask retrieves a task by id with its references resolved.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	return getTask(ctx, s.db, id)
}

// GetTaskDetail retrieves a task together with its project name.
func (s *Store) GetTaskDetail(ctx context.Context, id int64) (models.TaskDetail, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return models.TaskDetail{}, err
	}
	d := models.TaskDetail{Task: t}
	if err := s.db.QueryRowContext(ctx, `SELECT name FROM projects WHERE id = ?`, t.ProjectID).Scan(&d.ProjectName); err != nil {
		return models.TaskDetail{}, fmt.Errorf("task project: %w", err)
	}
	return d, nil
}

// ListTasks returns tasks ordered by id.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	if f.ProjectID != nil {
		return queryTasks(ctx, s.db, taskSelect+` WHERE t.project_id = ? ORDER BY t.id`, *f.ProjectID)
	}
	return queryTasks(ctx, s.db, taskSelect+` ORDER BY t.id`)
}

// TasksDueBetween returns assigned tasks whose deadline lies in [from, to).
func (s *Store) TasksDueBetween(ctx context.Context, from, to time.Time) ([]models.Task, error) {
	return queryTasks(ctx, s.db, taskSelect+` WHERE t.assigned_to IS NOT NULL AND t.deadline >= ? AND t.deadline < ?
        ORDER BY t.deadline, t.id`, formatTime(from), formatTime(to))
}

// UpdateTask applies patch to the stored task. The previous row is read, the
// hook computes history from it, and the task write plus every history
// record commit together or not at all.
func (s *Store) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch, actor *models.User, hook TaskHook) (models.Task, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		old, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		updated := patch.Apply(old)
		if err := resolveRefs(ctx, tx, &updated); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE tasks SET parent_task_id = ?, title = ?, description = ?, status_id = ?, priority = ?,
                assigned_to = ?, deadline = ?, estimated_hours = ?, actual_hours = ?, sprint_id = ?, story_points = ?,
                updated_at = CURRENT_TIMESTAMP
            WHERE id = ?`,
			nullInt(updated.ParentTaskID), strings.TrimSpace(updated.Title), strings.TrimSpace(updated.Description),
			nullInt(updated.StatusID), string(updated.Priority), nullInt(updated.AssignedToID), nullTime(updated.Deadline),
			updated.EstimatedHours, updated.ActualHours, nullInt(updated.SprintID), nullInt(updated.StoryPoints), id)
		if err != nil {
			return wrapErr("update task", err)
		}

		if hook == nil {
			return nil
		}
		for _, rec := range hook(old, updated, actor) {
			if err := insertHistory(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, id)
}

// resolveRefs fills the display values of references changed by a patch.
func resolveRefs(ctx context.Context, tx *sql.Tx, t *models.Task) error {
	if t.StatusID != nil && t.StatusName == "" {
		if err := tx.QueryRowContext(ctx, `SELECT name FROM task_statuses WHERE id = ?`, *t.StatusID).Scan(&t.StatusName); err != nil {
			return refErr("status", *t.StatusID, err)
		}
	}
	if t.SprintID != nil && t.SprintName == "" {
		if err := tx.QueryRowContext(ctx, `SELECT name FROM sprints WHERE id = ?`, *t.SprintID).Scan(&t.SprintName); err != nil {
			return refErr("sprint", *t.SprintID, err)
		}
	}
	if t.AssignedToID != nil && t.AssigneeEmail == "" {
		if err := tx.QueryRowContext(ctx, `SELECT email FROM users WHERE id = ?`, *t.AssignedToID).Scan(&t.AssigneeEmail); err != nil {
			return refErr("user", *t.AssignedToID, err)
		}
	}
	return nil
}

func refErr(kind string, id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("resolve %s: %w", kind, err)
}

// DeleteTask removes a task; its history, comments and attachments cascade.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}
