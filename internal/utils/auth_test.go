package utils

import (
	"testing"
	"time"

	"github.com/xelth-com/eckposgo/internal/models"
)

func TestPINHashing(t *testing.T) {
	pin := "4711"

	hash, err := HashPIN(pin)
	if err != nil {
		t.Fatalf("Failed to hash PIN: %v", err)
	}
	if hash == pin {
		t.Error("Hash should not match plaintext PIN")
	}

	if !CheckPINHash(pin, hash) {
		t.Error("PIN should match hash")
	}
	if CheckPINHash("0000", hash) {
		t.Error("Wrong PIN should not match hash")
	}
}

func TestOperatorToken(t *testing.T) {
	secret := "test-secret-key-12345"
	user := &models.User{ID: "u1", Username: "anna", Role: "manager"}

	token, err := GenerateOperatorToken(user, secret, time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != "manager" {
		t.Errorf("Unexpected claims: %+v", claims)
	}

	if _, err := ValidateToken(token, "wrong-secret"); err == nil {
		t.Error("Validation should fail with wrong secret")
	}

	fallback, err := GenerateOperatorToken(user, secret, -time.Minute)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	// A non-positive ttl falls back to the default lifetime.
	if _, err := ValidateToken(fallback, secret); err != nil {
		t.Errorf("Default ttl token should validate: %v", err)
	}

	if _, err := GenerateOperatorToken(user, "", time.Hour); err == nil {
		t.Error("Empty secret should be rejected")
	}
}
