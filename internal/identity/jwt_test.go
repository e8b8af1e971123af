package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"campusride/internal/modules/account"
)

func TestJWT_RoundTrip(t *testing.T) {
	m := NewJWTManager([]byte("test-secret"), time.Hour)

	token, err := m.Issue("user-1", account.RoleCaptain)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	p, err := m.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UserID != "user-1" || p.Role != account.RoleCaptain {
		t.Errorf("principal = %+v", p)
	}
}

func TestJWT_WrongSecret(t *testing.T) {
	issuer := NewJWTManager([]byte("secret-a"), time.Hour)
	verifier := NewJWTManager([]byte("secret-b"), time.Hour)

	token, _ := issuer.Issue("user-1", account.RoleRider)
	if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWT_Expired(t *testing.T) {
	m := NewJWTManager([]byte("test-secret"), time.Hour)
	m.ttl = -time.Minute

	token, _ := m.Issue("user-1", account.RoleRider)
	if _, err := m.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWT_Garbage(t *testing.T) {
	m := NewJWTManager([]byte("test-secret"), time.Hour)
	for _, token := range []string{"", "not.a.jwt", "aaaa.bbbb.cccc"} {
		if _, err := m.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}
