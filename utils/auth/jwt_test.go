package auth

import (
	"testing"
	"time"
)

func testJWTManager(expiry time.Duration) *JWTManager {
	return NewJWTManager(JWTConfig{
		Secret:        "test-secret-do-not-use",
		Expiry:        expiry,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "course-portal-test",
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := testJWTManager(time.Hour)

	token, jti, err := m.GenerateAccessToken(42, "user@test.com", "student", 3)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if jti == "" {
		t.Error("Expected a JTI")
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "user@test.com" || claims.Role != "student" {
		t.Errorf("Claims mismatch: %+v", claims)
	}
	if claims.TokenType != "access" {
		t.Errorf("Expected access token type, got %s", claims.TokenType)
	}
	if claims.TokenVersion != 3 {
		t.Errorf("Expected token version 3, got %d", claims.TokenVersion)
	}
	if claims.ID != jti {
		t.Errorf("Expected JTI %s, got %s", jti, claims.ID)
	}
}

func TestExpiredToken(t *testing.T) {
	m := testJWTManager(-time.Minute)

	token, _, err := m.GenerateAccessToken(1, "user@test.com", "student", 0)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	_, err = m.ValidateToken(token)
	if err != ErrExpiredToken {
		t.Fatalf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := testJWTManager(time.Hour)
	if _, err := m.ValidateToken("not.a.token"); err == nil {
		t.Fatal("Expected error for malformed token")
	}

	// A token signed with a different secret must not validate.
	other := NewJWTManager(JWTConfig{Secret: "different", Expiry: time.Hour, RefreshExpiry: time.Hour, Issuer: "x"})
	token, _, err := other.GenerateAccessToken(1, "user@test.com", "student", 0)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if _, err := m.ValidateToken(token); err == nil {
		t.Fatal("Expected error for wrong signature")
	}
}

func TestRefreshAccessToken(t *testing.T) {
	m := testJWTManager(time.Hour)

	refresh, _, err := m.GenerateRefreshToken(7, "user@test.com", "student", 2)
	if err != nil {
		t.Fatalf("GenerateRefreshToken failed: %v", err)
	}

	access, _, err := m.RefreshAccessToken(refresh, 2)
	if err != nil {
		t.Fatalf("RefreshAccessToken failed: %v", err)
	}
	claims, err := m.ValidateToken(access)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.TokenType != "access" || claims.UserID != 7 {
		t.Errorf("Unexpected refreshed claims: %+v", claims)
	}

	// An access token cannot be used as a refresh token.
	if _, _, err := m.RefreshAccessToken(access, 2); err == nil {
		t.Fatal("Expected error refreshing with an access token")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("Password stored in plain text")
	}

	if err := VerifyPassword(hash, "correct horse battery"); err != nil {
		t.Errorf("Expected matching password to verify: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Error("Expected mismatched password to fail")
	}

	if _, err := HashPassword("short"); err == nil {
		t.Error("Expected minimum length to be enforced")
	}
}
