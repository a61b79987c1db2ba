//go:build linux && cgo

package pamauth

import (
	"fmt"

	"github.com/msteinert/pam/v2"

	"github.com/marmos91/xgate/pkg/auth"
)

// Backend authenticates username/password pairs through a PAM service.
type Backend struct {
	service string
}

// New creates a PAM backend conversing with the given PAM service.
// An empty service defaults to "sshd".
func New(service string) (*Backend, error) {
	if service == "" {
		service = "sshd"
	}
	return &Backend{service: service}, nil
}

// Name returns "pam".
func (b *Backend) Name() string { return "pam" }

// Verify runs a full PAM conversation for the pair: authentication followed
// by the account-management stage, matching what sshd does for password
// logins.
func (b *Backend) Verify(username, password string) error {
	if username == "" || password == "" {
		return auth.ErrInvalidCredentials
	}

	tx, err := pam.StartFunc(b.service, username, func(style pam.Style, msg string) (string, error) {
		switch style {
		case pam.PromptEchoOff, pam.PromptEchoOn:
			return password, nil
		case pam.ErrorMsg, pam.TextInfo:
			return "", nil
		}
		return "", fmt.Errorf("unsupported conversation style %v", style)
	})
	if err != nil {
		return fmt.Errorf("%w: pam start: %v", auth.ErrBackendUnavailable, err)
	}
	defer func() { _ = tx.End() }()

	if err := tx.Authenticate(0); err != nil {
		return fmt.Errorf("%w: %v", auth.ErrInvalidCredentials, err)
	}
	if err := tx.AcctMgmt(0); err != nil {
		return fmt.Errorf("%w: account: %v", auth.ErrInvalidCredentials, err)
	}
	return nil
}
