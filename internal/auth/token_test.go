package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	raw, err := tokens.Issue("u1", "Ann")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "u1" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "u1")
	}
	if claims.Name != "Ann" {
		t.Errorf("Name = %q, want %q", claims.Name, "Ann")
	}
}

func TestTokensRejectWrongSecret(t *testing.T) {
	raw, _ := NewTokens("secret", time.Hour).Issue("u1", "Ann")

	_, err := NewTokens("other", time.Hour).Verify(raw)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokensRejectExpired(t *testing.T) {
	tokens := NewTokens("secret", time.Minute)
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issuedAt }

	raw, err := tokens.Issue("u1", "Ann")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tokens.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	if _, err := tokens.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokensRejectGarbage(t *testing.T) {
	if _, err := NewTokens("secret", time.Hour).Verify("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestIssueRequiresUser(t *testing.T) {
	if _, err := NewTokens("secret", time.Hour).Issue("", "Ann"); err == nil {
		t.Error("expected error for empty user id")
	}
}
