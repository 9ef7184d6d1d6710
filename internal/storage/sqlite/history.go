package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"taskmanager/internal/models"
)

func insertHistory(ctx context.Context, tx *sql.Tx, rec models.TaskHistory) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO task_history(task_id, user_id, field, old_value, new_value, timestamp)
        VALUES(?, ?, ?, ?, ?, ?)`, rec.TaskID, nullInt(rec.UserID), rec.Field, rec.OldValue, rec.NewValue, formatTime(rec.Timestamp))
	if err != nil {
		return fmt.Errorf("insert history %s: %w", rec.Field, err)
	}
	return nil
}

// ListHistory returns a task's history records in insertion order.
func (s *Store) ListHistory(ctx context.Context, taskID int64) ([]models.TaskHistory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT h.id, h.task_id, h.user_id, COALESCE(u.email, ''), h.field, h.old_value, h.new_value, h.timestamp
        FROM task_history h LEFT JOIN users u ON u.id = h.user_id
        WHERE h.task_id = ? ORDER BY h.id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var records []models.TaskHistory
	for rows.Next() {
		var rec models.TaskHistory
		var user sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.TaskID, &user, &rec.UserEmail, &rec.Field, &rec.OldValue, &rec.NewValue, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.UserID = intPtr(user)
		records = append(records, rec)
	}
	return records, rows.Err()
}
