// Package authfile implements the "file" password backend over the bcrypt
// user store.
package authfile

import (
	"errors"
	"fmt"

	"github.com/marmos91/xgate/pkg/auth"
	"github.com/marmos91/xgate/pkg/identity"
)

// Backend verifies passwords against an identity.Store.
type Backend struct {
	store identity.Store
}

var _ auth.PasswordBackend = (*Backend)(nil)

// New creates a file backend over the given user store.
func New(store identity.Store) *Backend {
	return &Backend{store: store}
}

// Name returns "file".
func (b *Backend) Name() string { return "file" }

// Verify checks the pair against the user store.
func (b *Backend) Verify(username, password string) error {
	if err := b.store.Authenticate(username, password); err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return auth.ErrInvalidCredentials
		}
		return fmt.Errorf("user store: %w", err)
	}
	return nil
}
