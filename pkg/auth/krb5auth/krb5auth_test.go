package krb5auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/xgate/pkg/auth"
)

// writeKrb5Conf writes a minimal krb5.conf pointing at an unreachable KDC.
// udp_preference_limit forces TCP so a refused connection fails fast.
func writeKrb5Conf(t *testing.T) string {
	t.Helper()
	conf := `[libdefaults]
  default_realm = EXAMPLE.COM
  udp_preference_limit = 1

[realms]
  EXAMPLE.COM = {
    kdc = 127.0.0.1:1
  }
`
	path := filepath.Join(t.TempDir(), "krb5.conf")
	if err := os.WriteFile(path, []byte(conf), 0o600); err != nil {
		t.Fatalf("write krb5.conf: %v", err)
	}
	return path
}

func TestNew(t *testing.T) {
	path := writeKrb5Conf(t)

	t.Run("default realm from config", func(t *testing.T) {
		b, err := New("", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.Realm() != "EXAMPLE.COM" {
			t.Errorf("Realm() = %q, want %q", b.Realm(), "EXAMPLE.COM")
		}
	})

	t.Run("explicit realm wins", func(t *testing.T) {
		b, err := New("OTHER.ORG", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.Realm() != "OTHER.ORG" {
			t.Errorf("Realm() = %q, want %q", b.Realm(), "OTHER.ORG")
		}
	})

	t.Run("missing config fails", func(t *testing.T) {
		if _, err := New("EXAMPLE.COM", filepath.Join(t.TempDir(), "nope")); err == nil {
			t.Error("expected error for missing krb5.conf")
		}
	})
}

func TestVerify_InputValidation(t *testing.T) {
	b, err := New("", writeKrb5Conf(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := b.Verify("", "pw"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("empty user err = %v, want auth.ErrInvalidCredentials", err)
	}
	if err := b.Verify("alice", ""); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("empty password err = %v, want auth.ErrInvalidCredentials", err)
	}
	// Foreign realms are rejected locally, before any KDC traffic.
	if err := b.Verify("alice@WRONG.ORG", "pw"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("foreign realm err = %v, want auth.ErrInvalidCredentials", err)
	}
}

func TestVerify_UnreachableKDC(t *testing.T) {
	b, err := New("", writeKrb5Conf(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Nothing listens on 127.0.0.1:1, so the exchange fails at the network
	// layer and must surface as a backend problem, not bad credentials.
	err = b.Verify("alice", "password")
	if err == nil {
		t.Fatal("expected error with unreachable KDC")
	}
	if !errors.Is(err, auth.ErrBackendUnavailable) {
		t.Errorf("err = %v, want auth.ErrBackendUnavailable", err)
	}
}

func TestName(t *testing.T) {
	b, err := New("", writeKrb5Conf(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Name() != "krb5" {
		t.Errorf("Name() = %q, want %q", b.Name(), "krb5")
	}
}
