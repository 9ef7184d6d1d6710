package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskmanager/internal/models"
)

const profileQuery = `SELECT p.id, p.bio, p.skills,
        u.id, u.email, u.first_name, u.last_name, u.phone_number, u.password_hash, u.is_staff, u.created_at
    FROM profiles p JOIN users u ON u.id = p.user_id`

// ProfileUpdate lists the profile fields to change. Nil leaves a field as is.
type ProfileUpdate struct {
	Bio    *string
	Skills *string
}

func scanProfile(row rowScanner) (models.Profile, error) {
	var p models.Profile
	u := &p.User
	err := row.Scan(&p.ID, &p.Bio, &p.Skills,
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PhoneNumber, &u.PasswordHash, &u.IsStaff, &u.CreatedAt)
	p.UserID = u.ID
	return p, err
}

// GetProfile fetches a profile and its user by profile id.
func (s *Store) GetProfile(ctx context.Context, id int64) (models.Profile, error) {
	return s.getProfile(ctx, `p.id = ?`, id)
}

// GetProfileByUser fetches the profile belonging to a user.
func (s *Store) GetProfileByUser(ctx context.Context, userID int64) (models.Profile, error) {
	return s.getProfile(ctx, `p.user_id = ?`, userID)
}

func (s *Store) getProfile(ctx context.Context, where string, id int64) (models.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, profileQuery+` WHERE `+where, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, fmt.Errorf("profile %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// ListProfiles returns every profile ordered by id.
func (s *Store) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.db.QueryContext(ctx, profileQuery+` ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// UpdateProfile applies u and returns the stored profile.
func (s *Store) UpdateProfile(ctx context.Context, id int64, u ProfileUpdate) (models.Profile, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE profiles SET bio = COALESCE(?, bio), skills = COALESCE(?, skills) WHERE id = ?`,
		nullString(u.Bio), nullString(u.Skills), id)
	if err != nil {
		return models.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Profile{}, fmt.Errorf("profile %d: %w", id, ErrNotFound)
	}
	return s.GetProfile(ctx, id)
}
