package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestIssuer(t *testing.T, now *time.Time) *Issuer {
	t.Helper()
	i, err := NewIssuer([]byte("test-secret"), time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	i.now = func() time.Time { return *now }
	return i
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	i := newTestIssuer(t, &now)

	pair, err := i.Issue(42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if id, err := i.Verify(pair.Access, Access); err != nil || id != 42 {
		t.Fatalf("verify access: id=%d err=%v", id, err)
	}
	if id, err := i.Verify(pair.Refresh, Refresh); err != nil || id != 42 {
		t.Fatalf("verify refresh: id=%d err=%v", id, err)
	}
}

func TestVerify_WrongTypeRejected(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	i := newTestIssuer(t, &now)
	pair, err := i.Issue(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := i.Verify(pair.Refresh, Access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh used as access: %v", err)
	}
	if _, err := i.Verify(pair.Access, Refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access used as refresh: %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	i := newTestIssuer(t, &now)
	pair, err := i.Issue(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := i.Verify(pair.Access, Access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired access: %v", err)
	}
	if _, err := i.Verify(pair.Refresh, Refresh); err != nil {
		t.Fatalf("refresh still valid: %v", err)
	}
}

func TestVerify_ForeignSignatureAndAlgorithm(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	i := newTestIssuer(t, &now)

	other, err := NewIssuer([]byte("other-secret"), time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	other.now = i.now
	forged, err := other.AccessToken(1)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := i.Verify(forged, Access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign signature: %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		TokenType: Access,
		UserID:    1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := i.Verify(unsigned, Access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unsigned token: %v", err)
	}

	if _, err := i.Verify("not-a-token", Access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage: %v", err)
	}
}

func TestNewIssuer(t *testing.T) {
	if _, err := NewIssuer(nil, 0, 0); err == nil {
		t.Fatalf("empty secret should fail")
	}
	i, err := NewIssuer([]byte("s"), 0, 0)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	if i.accessTTL != DefaultAccessTTL || i.refreshTTL != DefaultRefreshTTL {
		t.Fatalf("defaults: %v %v", i.accessTTL, i.refreshTTL)
	}
}
