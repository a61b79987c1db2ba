// Package krb5auth implements the "krb5" password backend. A pair is valid
// when a Kerberos AS exchange (client login) against the realm's KDC
// succeeds with it.
package krb5auth

import (
	"errors"
	"fmt"
	"strings"

	krb5client "github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/messages"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/pkg/auth"
)

// DefaultKrb5ConfPath is used when no krb5.conf path is configured.
const DefaultKrb5ConfPath = "/etc/krb5.conf"

// Backend validates passwords by logging in against a Kerberos realm.
type Backend struct {
	realm string
	conf  *krb5config.Config
}

var _ auth.PasswordBackend = (*Backend)(nil)

// New loads the Kerberos client configuration and binds the backend to a
// realm. An empty realm falls back to the configuration's default realm; an
// empty path falls back to /etc/krb5.conf.
func New(realm, confPath string) (*Backend, error) {
	if confPath == "" {
		confPath = DefaultKrb5ConfPath
	}
	conf, err := krb5config.Load(confPath)
	if err != nil {
		return nil, fmt.Errorf("load krb5 config %s: %w", confPath, err)
	}
	if realm == "" {
		realm = conf.LibDefaults.DefaultRealm
	}
	if realm == "" {
		return nil, fmt.Errorf("no realm configured and no default_realm in %s", confPath)
	}
	return &Backend{realm: realm, conf: conf}, nil
}

// Name returns "krb5".
func (b *Backend) Name() string { return "krb5" }

// Realm returns the realm logins are attempted against.
func (b *Backend) Realm() string { return b.realm }

// Verify performs an AS exchange for the pair.
//
// Realm-qualified usernames are accepted when the realm matches the
// backend's; any other realm is rejected without contacting the KDC.
func (b *Backend) Verify(username, password string) error {
	if username == "" || password == "" {
		return auth.ErrInvalidCredentials
	}
	if i := strings.IndexByte(username, '@'); i >= 0 {
		if !strings.EqualFold(username[i+1:], b.realm) {
			return fmt.Errorf("realm %q not served: %w", username[i+1:], auth.ErrInvalidCredentials)
		}
		username = username[:i]
	}

	cl := krb5client.NewWithPassword(username, b.realm, password, b.conf, krb5client.DisablePAFXFAST(true))
	defer cl.Destroy()

	if err := cl.Login(); err != nil {
		logger.Debug("Kerberos login failed",
			"user", username,
			"realm", b.realm,
			"error", err,
		)
		return fmt.Errorf("login %s@%s: %w", username, b.realm, classify(err))
	}
	return nil
}

// classify separates KDC rejections from infrastructure failures so callers
// can tell a wrong password apart from an unreachable KDC.
func classify(err error) error {
	var krbErr messages.KRBError
	if errors.As(err, &krbErr) {
		// The KDC answered and said no.
		return fmt.Errorf("%w: %v", auth.ErrInvalidCredentials, err)
	}
	return fmt.Errorf("%w: %v", auth.ErrBackendUnavailable, err)
}
