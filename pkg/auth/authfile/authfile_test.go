package authfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/xgate/pkg/auth"
	"github.com/marmos91/xgate/pkg/identity"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()

	hash, err := identity.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	path := filepath.Join(t.TempDir(), "users")
	if err := os.WriteFile(path, []byte("alice:"+hash+"\n"), 0o600); err != nil {
		t.Fatalf("write user file: %v", err)
	}
	store, err := identity.NewFileStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return New(store)
}

func TestBackend_Verify(t *testing.T) {
	b := newBackend(t)

	if err := b.Verify("alice", "correct-horse"); err != nil {
		t.Errorf("valid pair should verify: %v", err)
	}
	if err := b.Verify("alice", "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want auth.ErrInvalidCredentials", err)
	}
	if err := b.Verify("mallory", "correct-horse"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("unknown user err = %v, want auth.ErrInvalidCredentials", err)
	}
}

func TestBackend_Name(t *testing.T) {
	if got := newBackend(t).Name(); got != "file" {
		t.Errorf("Name() = %q, want %q", got, "file")
	}
}
