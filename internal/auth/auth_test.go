package auth

import (
	"testing"

	"github.com/dream-atlas/backend/internal/config"
)

func TestJWTRoundTrip(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	token, err := GenerateJWT("luna")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	sub, err := ValidateJWT(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}
	if sub != "luna" {
		t.Fatalf("got subject %q, want %q", sub, "luna")
	}
}

func TestValidateJWTRejectsTampering(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	token, err := GenerateJWT("luna")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	config.AppConfig.JWTSecret = "different-secret"
	if _, err := ValidateJWT(token); err == nil {
		t.Fatal("expected validation to fail with a different secret")
	}

	config.AppConfig.JWTSecret = "test-secret"
	if _, err := ValidateJWT("not.a.token"); err == nil {
		t.Fatal("expected validation to fail for garbage input")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !CheckPasswordHash("hunter2", hash) {
		t.Fatal("correct password rejected")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Fatal("wrong password accepted")
	}
}
