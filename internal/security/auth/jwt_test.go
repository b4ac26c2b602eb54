package auth

import (
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	tm := NewTokenManager("test-secret", "profilehub")

	token, err := tm.GenerateToken("acc-1", "sess-1", "stamp-1", time.Hour)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	claims, err := tm.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.AccountID != "acc-1" || claims.SessionID != "sess-1" || claims.Stamp != "stamp-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Issuer != "profilehub" {
		t.Fatalf("expected issuer profilehub, got %q", claims.Issuer)
	}
}

func TestGenerateTokenRequiresIDs(t *testing.T) {
	tm := NewTokenManager("test-secret", "profilehub")
	if _, err := tm.GenerateToken("", "sess-1", "stamp", time.Hour); err == nil {
		t.Fatalf("expected error without account id")
	}
	if _, err := tm.GenerateToken("acc-1", "", "stamp", time.Hour); err == nil {
		t.Fatalf("expected error without session id")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret", "profilehub")
	token, err := tm.GenerateToken("acc-1", "sess-1", "stamp-1", time.Hour)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	other := NewTokenManager("other-secret", "profilehub")
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatalf("expected validation to fail with wrong secret")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", "profilehub")
	token, err := tm.GenerateToken("acc-1", "sess-1", "stamp-1", -time.Minute)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := tm.ValidateToken(token); err == nil {
		t.Fatalf("expected expired token to fail validation")
	}
}

func TestExtractToken(t *testing.T) {
	if got, err := ExtractToken("Bearer abc123"); err != nil || got != "abc123" {
		t.Fatalf("expected abc123, got %q, %v", got, err)
	}
	for _, bad := range []string{"", "abc123", "Basic abc123", "Bearer"} {
		if _, err := ExtractToken(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}
