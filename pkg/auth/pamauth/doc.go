// Package pamauth implements the "pam" password backend through the host
// PAM stack.
//
// The real conversation requires linux and cgo; on other platforms New
// returns an error wrapping auth.ErrBackendUnavailable so configuration
// validation can surface the problem at startup instead of at login time.
package pamauth

import "github.com/marmos91/xgate/pkg/auth"

var _ auth.PasswordBackend = (*Backend)(nil)
