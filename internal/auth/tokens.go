// Package auth issues and verifies the signed bearer tokens used by the
// API. A login yields a short-lived access token and a longer-lived
// refresh token; the refresh token can only be exchanged for a new access
// token.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	Access  TokenType = "access"
	Refresh TokenType = "refresh"
)

const (
	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
)

// ErrInvalidToken is returned for tokens that are malformed, badly signed,
// expired or of the wrong type.
var ErrInvalidToken = errors.New("token is invalid or expired")

// Claims is the token payload.
type Claims struct {
	TokenType TokenType `json:"token_type"`
	UserID    int64     `json:"user_id"`
	jwt.RegisteredClaims
}

// Pair is the result of a successful login.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Issuer signs tokens with an HMAC secret.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer returns an issuer signing with secret. Non-positive lifetimes
// fall back to the defaults.
func NewIssuer(secret []byte, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Issuer{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}, nil
}

// Issue creates an access and refresh token for the user.
func (i *Issuer) Issue(userID int64) (Pair, error) {
	access, err := i.sign(userID, Access, i.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.sign(userID, Refresh, i.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

// AccessToken creates a new access token for the user.
func (i *Issuer) AccessToken(userID int64) (string, error) {
	return i.sign(userID, Access, i.accessTTL)
}

func (i *Issuer) sign(userID int64, typ TokenType, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		TokenType: typ,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Verify checks the signature, expiry and type of raw and returns the user
// it was issued to.
func (i *Issuer) Verify(raw string, want TokenType) (int64, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.TokenType != want {
		return 0, fmt.Errorf("%w: got %s token, want %s", ErrInvalidToken, claims.TokenType, want)
	}
	if claims.UserID <= 0 {
		return 0, fmt.Errorf("%w: missing user", ErrInvalidToken)
	}
	return claims.UserID, nil
}
