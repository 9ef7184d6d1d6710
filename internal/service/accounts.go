package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"taskmanager/internal/auth"
	"taskmanager/internal/models"
	"taskmanager/internal/permissions"
	"taskmanager/internal/storage/sqlite"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var errTokensDisabled = errors.New("token authentication is not configured")

// RegisterInput is the payload of a sign-up request.
type RegisterInput struct {
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
	Password2   string `json:"password2"`
}

// Register creates a regular account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	v := &ValidationError{}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		v.add("email", "This field is required.")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		v.add("email", "Enter a valid email address.")
	}
	if len(in.Password) < MinPasswordLength {
		v.add("password", fmt.Sprintf("Ensure this field has at least %d characters.", MinPasswordLength))
	}
	if in.Password != in.Password2 {
		v.add("password", "Passwords must match")
	}
	if err := v.err(); err != nil {
		return models.User{}, err
	}

	return s.createUser(ctx, models.User{
		Email:       email,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
	}, in.Password)
}

// CreateSuperuser creates a staff account.
func (s *Service) CreateSuperuser(ctx context.Context, email, password string) (models.User, error) {
	if strings.TrimSpace(email) == "" {
		return models.User{}, invalid("email", "The Email field must be set")
	}
	if password == "" {
		return models.User{}, invalid("password", "password must be set")
	}
	return s.createUser(ctx, models.User{Email: email, IsStaff: true}, password)
}

func (s *Service) createUser(ctx context.Context, u models.User, password string) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.PasswordCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	created, err := s.store.CreateUser(ctx, u)
	if errors.Is(err, sqlite.ErrConflict) {
		return models.User{}, invalid("email", "user with this email address already exists.")
	}
	if err != nil {
		return models.User{}, err
	}
	s.logger.Info("user registered", "user_id", created.ID, "staff", created.IsStaff)
	return created, nil
}

// Authenticate returns the account matching the credentials. Unknown
// emails still pay for a bcrypt comparison so response time does not tell
// them apart from wrong passwords.
func (s *Service) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, sqlite.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash(), []byte(password))
		return models.User{}, ErrUnauthorized
	}
	if err != nil {
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrUnauthorized
	}
	return u, nil
}

// dummyHash is compared against when no account matches. It is generated
// once, at the configured cost, so the comparison takes as long as a real
// one.
func (s *Service) dummyHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("dummy-password"), s.PasswordCost)
		if err != nil {
			s.logger.Error("generating dummy password hash", "error", err)
			return
		}
		s.dummy = hash
	})
	return s.dummy
}

// ObtainTokens exchanges credentials for an access and refresh token.
func (s *Service) ObtainTokens(ctx context.Context, email, password string) (auth.Pair, error) {
	v := &ValidationError{}
	if strings.TrimSpace(email) == "" {
		v.add("email", "This field is required.")
	}
	if password == "" {
		v.add("password", "This field is required.")
	}
	if err := v.err(); err != nil {
		return auth.Pair{}, err
	}
	if s.Tokens == nil {
		return auth.Pair{}, errTokensDisabled
	}

	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return auth.Pair{}, err
	}
	return s.Tokens.Issue(u.ID)
}

// RefreshToken exchanges a refresh token for a new access token. The
// account must still exist.
func (s *Service) RefreshToken(ctx context.Context, refresh string) (string, error) {
	if strings.TrimSpace(refresh) == "" {
		return "", invalid("refresh", "This field is required.")
	}
	u, err := s.tokenUser(ctx, refresh, auth.Refresh)
	if err != nil {
		return "", err
	}
	return s.Tokens.AccessToken(u.ID)
}

// AuthenticateToken returns the account an access token was issued to.
func (s *Service) AuthenticateToken(ctx context.Context, access string) (models.User, error) {
	return s.tokenUser(ctx, access, auth.Access)
}

func (s *Service) tokenUser(ctx context.Context, raw string, typ auth.TokenType) (models.User, error) {
	if s.Tokens == nil {
		return models.User{}, errTokensDisabled
	}
	id, err := s.Tokens.Verify(raw, typ)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, sqlite.ErrNotFound) {
		return models.User{}, ErrUnauthorized
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// ListUsers returns every account. Staff only.
func (s *Service) ListUsers(ctx context.Context, actor *models.User) ([]models.User, error) {
	if !permissions.ListUsers(actor) {
		return nil, ErrForbidden
	}
	return s.store.ListUsers(ctx)
}
