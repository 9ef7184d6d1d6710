package service

import (
	"context"
	"fmt"

	"taskmanager/internal/models"
	"taskmanager/internal/permissions"
	"taskmanager/internal/storage/sqlite"
)

// ProfileInput is a partial profile update. Nil fields are left as is.
type ProfileInput struct {
	Bio    *string `json:"bio"`
	Skills *string `json:"skills"`
}

// ListProfiles returns every profile to staff and only their own to
// everyone else.
func (s *Service) ListProfiles(ctx context.Context, actor *models.User) ([]models.Profile, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	if actor.IsStaff {
		return s.store.ListProfiles(ctx)
	}
	p, err := s.store.GetProfileByUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return []models.Profile{p}, nil
}

// GetProfile returns a profile the actor can see. Profiles outside the
// actor's view are reported as missing.
func (s *Service) GetProfile(ctx context.Context, actor *models.User, id int64) (models.Profile, error) {
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return models.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if !permissions.ViewProfile(actor, p) {
		return models.Profile{}, fmt.Errorf("profile %d: %w", id, ErrNotFound)
	}
	return p, nil
}

// UpdateProfile changes the actor's own profile.
func (s *Service) UpdateProfile(ctx context.Context, actor *models.User, id int64, in ProfileInput) (models.Profile, error) {
	p, err := s.GetProfile(ctx, actor, id)
	if err != nil {
		return models.Profile{}, err
	}
	if !permissions.EditProfile(actor, p) {
		return models.Profile{}, ErrForbidden
	}
	updated, err := s.store.UpdateProfile(ctx, p.ID, sqlite.ProfileUpdate{Bio: in.Bio, Skills: in.Skills})
	if err != nil {
		return models.Profile{}, err
	}
	s.logger.Info("profile updated", "profile_id", updated.ID, "user_id", updated.UserID)
	return updated, nil
}
