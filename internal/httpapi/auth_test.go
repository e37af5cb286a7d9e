package httpapi

import (
	"strings"
	"testing"
	"time"

	"gestorpro/backend/internal/domain"
)

func newTestAuth() *AuthManager {
	return NewAuthManager(strings.Repeat("k", 32), time.Hour, "super-secret-password")
}

func TestLoginAndParseTokenRoundTrip(t *testing.T) {
	auth := newTestAuth()

	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "super-secret-password"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.AccessToken == "" || resp.ExpiresAt == "" {
		t.Fatalf("incomplete login response: %+v", resp)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "admin" {
		t.Fatalf("unexpected subject %q", actor.Username)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth := newTestAuth()

	if _, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "wrong"}); err == nil {
		t.Fatalf("expected login to fail on wrong password")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "root", Password: "super-secret-password"}); err == nil {
		t.Fatalf("expected login to fail for unknown account")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "  "}); err == nil {
		t.Fatalf("expected login to fail on blank password")
	}
}

func TestParseTokenRejectsForgedToken(t *testing.T) {
	auth := newTestAuth()
	other := NewAuthManager(strings.Repeat("z", 32), time.Hour, "super-secret-password")

	resp, err := other.Login(domain.LoginRequest{Username: "admin", Password: "super-secret-password"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := auth.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("token signed with a different secret must be rejected")
	}
	if _, err := auth.ParseToken("garbage.token.value"); err == nil {
		t.Fatalf("malformed token must be rejected")
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	auth := NewAuthManager(strings.Repeat("k", 32), time.Nanosecond, "super-secret-password")

	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "super-secret-password"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := auth.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expired token must be rejected")
	}
}
