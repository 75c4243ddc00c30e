package auth

import (
	"errors"
	"testing"
	"time"

	apperrors "inputfeed/pkg/errors"
)

func TestNewTokenServiceValidation(t *testing.T) {
	if _, err := NewTokenService("", time.Minute); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := NewTokenService("secret", 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}

func TestIssueAndParse(t *testing.T) {
	svc, err := NewTokenService("secret", time.Hour)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}

	token, err := svc.Issue("dashboard", []string{"KeyPress", "Wheel"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "dashboard" || claims.ID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.Allows("KeyPress") || claims.Allows("MouseMove") || claims.Allows("*") {
		t.Fatalf("type restriction not applied: %v", claims.Types)
	}
}

func TestUnrestrictedClaimsAllowEverything(t *testing.T) {
	var claims StreamClaims
	for _, tag := range []string{"KeyPress", "CustomEvent", "*"} {
		if !claims.Allows(tag) {
			t.Fatalf("expected %q to be allowed", tag)
		}
	}
}

func TestParseRejects(t *testing.T) {
	svc, err := NewTokenService("secret", time.Minute)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	other, err := NewTokenService("other-secret", time.Minute)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	foreign, err := other.Issue("x", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	base := time.Now()
	svc.now = func() time.Time { return base.Add(-2 * time.Minute) }
	expired, err := svc.Issue("x", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	svc.now = func() time.Time { return base }

	for name, token := range map[string]string{
		"empty":         "",
		"garbage":       "not-a-token",
		"wrong secret":  foreign,
		"expired token": expired,
	} {
		if _, err := svc.Parse(token); !errors.Is(err, apperrors.ErrUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
	}
}
