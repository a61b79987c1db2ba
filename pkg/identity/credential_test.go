package identity

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	password := "test-password-123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	// Check hash format (bcrypt hashes start with $2a$ or $2b$)
	if !strings.HasPrefix(hash, "$2a$") && !strings.HasPrefix(hash, "$2b$") {
		t.Errorf("HashPassword() hash = %q, want bcrypt format", hash)
	}

	// Verify the password matches the hash
	if !VerifyPassword(password, hash) {
		t.Error("VerifyPassword() returned false for correct password")
	}
}

func TestHashPassword_DifferentHashes(t *testing.T) {
	password := "same-password"

	hash1, _ := HashPassword(password)
	hash2, _ := HashPassword(password)

	// Bcrypt should generate different hashes each time due to salt
	if hash1 == hash2 {
		t.Error("HashPassword() generated same hash twice, expected different due to salt")
	}
}

func TestHashPassword_Validation(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("HashPassword(short) error = %v, want ErrPasswordTooShort", err)
	}

	long := strings.Repeat("x", MaxPasswordLength+1)
	if _, err := HashPassword(long); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("HashPassword(long) error = %v, want ErrPasswordTooLong", err)
	}

	// Boundary lengths are accepted
	if _, err := HashPassword(strings.Repeat("x", MinPasswordLength)); err != nil {
		t.Errorf("HashPassword(min length) error = %v", err)
	}
	if _, err := HashPassword(strings.Repeat("x", MaxPasswordLength)); err != nil {
		t.Errorf("HashPassword(max length) error = %v", err)
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{"correct password", "correct-horse-battery", hash, true},
		{"wrong password", "wrong-password-here", hash, false},
		{"empty password", "", hash, false},
		{"invalid hash", "correct-horse-battery", "not-a-valid-hash", false},
		{"empty hash", "correct-horse-battery", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyPassword(tt.password, tt.hash); got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNeedsRehash(t *testing.T) {
	hash, err := HashPassword("test-password-123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if NeedsRehash(hash) {
		t.Error("NeedsRehash() = true for hash at default cost")
	}
	if !NeedsRehash("garbage") {
		t.Error("NeedsRehash() = false for invalid hash")
	}
}
