//go:build !linux || !cgo

package pamauth

import (
	"fmt"

	"github.com/marmos91/xgate/pkg/auth"
)

// Backend is unusable on platforms without PAM support.
type Backend struct{}

// New always fails: PAM requires linux and cgo.
func New(service string) (*Backend, error) {
	return nil, fmt.Errorf("%w: pam requires linux and cgo", auth.ErrBackendUnavailable)
}

// Name returns "pam".
func (b *Backend) Name() string { return "pam" }

// Verify always fails: PAM requires linux and cgo.
func (b *Backend) Verify(username, password string) error {
	return fmt.Errorf("%w: pam requires linux and cgo", auth.ErrBackendUnavailable)
}
