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

const commentSelect = `SELECT c.id, c.task_id, c.author_id, u.email, c.body, c.created_at
    FROM comments c JOIN users u ON u.id = c.author_id`

func scanComment(row rowScanner) (models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Author, &c.Body, &c.CreatedAt)
	return c, err
}

// CreateComment adds a comment to a task.
func (s *Store) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO comments(task_id, author_id, body, created_at) VALUES(?, ?, ?, ?)`,
		c.TaskID, c.AuthorID, strings.TrimSpace(c.Body), formatTime(time.Now()))
	if err != nil {
		return models.Comment{}, wrapErr("insert comment", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Comment{}, fmt.Errorf("comment id: %w", err)
	}
	return s.GetComment(ctx, id)
}

// GetComment fetches a comment by id.
func (s *Store) GetComment(ctx context.Context, id int64) (models.Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx, commentSelect+` WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Comment{}, fmt.Errorf("comment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

// ListComments returns a task's comments, newest first.
func (s *Store) ListComments(ctx context.Context, taskID int64) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, commentSelect+` WHERE c.task_id = ? ORDER BY c.created_at DESC, c.id DESC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// DeleteComment removes a comment by id.
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("comment %d: %w", id, ErrNotFound)
	}
	return nil
}

// CreateAttachment records file metadata for a task.
func (s *Store) CreateAttachment(ctx context.Context, a models.Attachment) (models.Attachment, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO attachments(task_id, uploaded_by, file_name, url, content_type, size, created_at)
        VALUES(?, ?, ?, ?, ?, ?, ?)`, a.TaskID, a.UploadedBy, strings.TrimSpace(a.FileName), strings.TrimSpace(a.URL), a.ContentType, a.Size, formatTime(time.Now()))
	if err != nil {
		return models.Attachment{}, wrapErr("insert attachment", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Attachment{}, fmt.Errorf("attachment id: %w", err)
	}

	var out models.Attachment
	err = s.db.QueryRowContext(ctx, `SELECT a.id, a.task_id, a.uploaded_by, u.email, a.file_name, a.url, a.content_type, a.size, a.created_at
        FROM attachments a JOIN users u ON u.id = a.uploaded_by WHERE a.id = ?`, id).
		Scan(&out.ID, &out.TaskID, &out.UploadedBy, &out.Uploader, &out.FileName, &out.URL, &out.ContentType, &out.Size, &out.CreatedAt)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("get attachment: %w", err)
	}
	return out, nil
}

// ListAttachments returns a task's attachments, newest first.
func (s *Store) ListAttachments(ctx context.Context, taskID int64) ([]models.Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT a.id, a.task_id, a.uploaded_by, u.email, a.file_name, a.url, a.content_type, a.size, a.created_at
        FROM attachments a JOIN users u ON u.id = a.uploaded_by
        WHERE a.task_id = ? ORDER BY a.created_at DESC, a.id DESC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var attachments []models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.TaskID, &a.UploadedBy, &a.Uploader, &a.FileName, &a.URL, &a.ContentType, &a.Size, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}
