package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskmanager/internal/models"
)

const userColumns = `id, email, first_name, last_name, phone_number, password_hash, is_staff, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PhoneNumber, &u.PasswordHash, &u.IsStaff, &u.CreatedAt)
	return u, err
}

// CreateUser inserts a new account together with its empty profile. The
// email must be unique.
func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO users(email, first_name, last_name, phone_number, password_hash, is_staff)
            VALUES(?, ?, ?, ?, ?, ?)`, strings.ToLower(strings.TrimSpace(u.Email)), u.FirstName, u.LastName, u.PhoneNumber, u.PasswordHash, u.IsStaff)
		if err != nil {
			return wrapErr("insert user", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("user id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO profiles(user_id) VALUES(?)`, id); err != nil {
			return wrapErr("insert profile", err)
		}
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return s.GetUser(ctx, id)
}

// GetUser fetches a single user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail fetches a user by case-insensitive email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers returns every account ordered by email.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	return queryUsers(ctx, s.db, `SELECT `+userColumns+` FROM users ORDER BY email`)
}

// UsersByEmail resolves a set of emails in a single query. Unknown emails
// are simply absent from the result.
func (s *Store) UsersByEmail(ctx context.Context, emails []string) ([]models.User, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	args := make([]any, len(emails))
	for i, e := range emails {
		args[i] = strings.ToLower(strings.TrimSpace(e))
	}
	return queryUsers(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE email IN (`+placeholders(len(args))+`) ORDER BY email`, args...)
}

func queryUsers(ctx context.Context, q queryer, query string, args ...any) ([]models.User, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
