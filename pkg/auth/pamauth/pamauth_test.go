package pamauth

import (
	"errors"
	"testing"

	"github.com/marmos91/xgate/pkg/auth"
)

func TestVerifyEmptyCredentials(t *testing.T) {
	b, err := New("sshd")
	if err != nil {
		if !errors.Is(err, auth.ErrBackendUnavailable) {
			t.Fatalf("stub New err = %v, want auth.ErrBackendUnavailable", err)
		}
		t.Skipf("pam unavailable on this platform: %v", err)
	}

	// Empty credentials are rejected before any PAM conversation starts.
	if err := b.Verify("", ""); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("err = %v, want auth.ErrInvalidCredentials", err)
	}
	if err := b.Verify("user", ""); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("err = %v, want auth.ErrInvalidCredentials", err)
	}
}

func TestName(t *testing.T) {
	var b *Backend
	if got := b.Name(); got != "pam" {
		t.Errorf("Name() = %q, want %q", got, "pam")
	}
}
