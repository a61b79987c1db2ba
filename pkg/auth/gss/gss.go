// Package gss implements the acceptor side of SSH gssapi-with-mic
// authentication (RFC 4462) for the krb5 mechanism.
//
// The client's context token carries a Kerberos AP-REQ. The acceptor
// verifies it against the gateway's service keytab, extracts the context
// key (the authenticator subkey when the client provided one), answers
// with an AP-REP only when the client requested mutual authentication,
// and finally verifies the client's MIC over the SSH session identifier.
package gss

import (
	"encoding/asn1"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jcmturner/gokrb5/v8/asn1tools"
	"github.com/jcmturner/gokrb5/v8/crypto"
	"github.com/jcmturner/gokrb5/v8/gssapi"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/service"
	"github.com/jcmturner/gokrb5/v8/types"
	"golang.org/x/crypto/ssh"

	"github.com/marmos91/xgate/internal/logger"
)

// DefaultMaxClockSkew bounds the acceptable clock drift between client,
// KDC and gateway when validating tickets.
const DefaultMaxClockSkew = 5 * time.Minute

// keyUsageInitiatorSign is the RFC 4121 key usage for client MIC tokens.
const keyUsageInitiatorSign uint32 = 25

// Key usage 12 encrypts the AP-REP enc-part (RFC 4120 Section 7.5.1).
const keyUsageAPRepEncPart = 12

// Service holds the gateway's Kerberos acceptor credentials. One Service is
// shared by all connections; per-handshake state lives in the Acceptors it
// hands out.
type Service struct {
	kt   *keytab.Keytab
	spn  string
	skew time.Duration
}

// NewService loads the service keytab at keytabPath. spn pins verification
// to one principal in the keytab; empty matches the ticket's own service
// name. A non-positive skew falls back to DefaultMaxClockSkew.
func NewService(keytabPath, spn string, skew time.Duration) (*Service, error) {
	kt, err := loadKeytab(keytabPath)
	if err != nil {
		return nil, err
	}
	if skew <= 0 {
		skew = DefaultMaxClockSkew
	}
	return &Service{kt: kt, spn: spn, skew: skew}, nil
}

// NewAcceptor returns a fresh single-use acceptor for one handshake.
func (s *Service) NewAcceptor() ssh.GSSAPIServer {
	return &Acceptor{service: s}
}

func (s *Service) settings() *service.Settings {
	return service.NewSettings(
		s.kt,
		service.MaxClockSkew(s.skew),
		service.DecodePAC(false),
		service.KeytabPrincipal(s.spn),
	)
}

func loadKeytab(path string) (*keytab.Keytab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keytab: %w", err)
	}
	kt := keytab.New()
	if err := kt.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("parse keytab %s: %w", path, err)
	}
	return kt, nil
}

// Acceptor implements ssh.GSSAPIServer for a single handshake.
//
// Not safe for concurrent use; the SSH transport drives one handshake at a
// time per connection, and every connection gets its own Acceptor.
type Acceptor struct {
	service *Service

	established bool
	sessionKey  types.EncryptionKey
	srcName     string
}

var _ ssh.GSSAPIServer = (*Acceptor)(nil)

// AcceptSecContext verifies the client's AP-REQ and establishes the
// security context.
//
// The returned output token is the AP-REP for mutual authentication, or
// empty when the client did not request it. Kerberos establishes the
// context in a single round trip, so needContinue is always false.
func (a *Acceptor) AcceptSecContext(token []byte) (outToken []byte, srcName string, needContinue bool, err error) {
	if a.established {
		return nil, "", false, errors.New("context already established")
	}

	apReqBytes, err := unwrapInitToken(token)
	if err != nil {
		return nil, "", false, fmt.Errorf("unwrap context token: %w", err)
	}

	var apReq messages.APReq
	if err := apReq.Unmarshal(apReqBytes); err != nil {
		return nil, "", false, fmt.Errorf("unmarshal AP-REQ: %w", err)
	}

	ok, _, err := service.VerifyAPREQ(&apReq, a.service.settings())
	if err != nil {
		return nil, "", false, fmt.Errorf("verify AP-REQ: %w", err)
	}
	if !ok {
		return nil, "", false, errors.New("AP-REQ rejected")
	}

	sessionKey := apReq.Ticket.DecryptedEncPart.Key
	if err := apReq.DecryptAuthenticator(sessionKey); err != nil {
		return nil, "", false, fmt.Errorf("decrypt authenticator: %w", err)
	}

	// Subsequent protection operations use the authenticator subkey when
	// the client sent one (RFC 4120 Section 5.5.1).
	contextKey := sessionKey
	if hasSubkey(apReq) {
		contextKey = apReq.Authenticator.SubKey
	}

	// AP options bit 2 (MSB numbering) requests mutual authentication.
	// Only then does the client expect an AP-REP; an unsolicited one is
	// treated as a protocol error by MIT clients.
	mutual := len(apReq.APOptions.Bytes) > 0 && apReq.APOptions.Bytes[0]&0x20 != 0
	if mutual {
		outToken, err = buildAPRep(apReq, sessionKey)
		if err != nil {
			return nil, "", false, fmt.Errorf("build AP-REP: %w", err)
		}
	}

	a.sessionKey = contextKey
	a.srcName = apReq.Ticket.DecryptedEncPart.CName.PrincipalNameString() +
		"@" + apReq.Ticket.DecryptedEncPart.CRealm
	a.established = true

	logger.Debug("GSS context established",
		"principal", a.srcName,
		"mutual", mutual,
		"subkey", hasSubkey(apReq),
	)
	return outToken, a.srcName, false, nil
}

// VerifyMIC checks the client's MIC over the session identifier, proving it
// holds the context key established by AcceptSecContext.
func (a *Acceptor) VerifyMIC(micField []byte, micToken []byte) error {
	if !a.established {
		return errors.New("no established context")
	}

	var mt gssapi.MICToken
	if err := mt.Unmarshal(micToken, false); err != nil {
		return fmt.Errorf("unmarshal MIC token: %w", err)
	}
	mt.Payload = micField

	ok, err := mt.Verify(a.sessionKey, keyUsageInitiatorSign)
	if err != nil {
		return fmt.Errorf("verify MIC: %w", err)
	}
	if !ok {
		return errors.New("MIC verification failed")
	}
	return nil
}

// DeleteSecContext discards the context state. The acceptor cannot be
// reused afterwards.
func (a *Acceptor) DeleteSecContext() error {
	a.established = false
	a.sessionKey = types.EncryptionKey{}
	a.srcName = ""
	return nil
}

// buildAPRep constructs the mutual-authentication reply, echoing the
// authenticator's ctime/cusec (proof of decryption) and its subkey when
// present, encrypted under the ticket session key and wrapped as a GSS
// mechanism token.
func buildAPRep(apReq messages.APReq, sessionKey types.EncryptionKey) ([]byte, error) {
	encPart := messages.EncAPRepPart{
		CTime: apReq.Authenticator.CTime,
		Cusec: apReq.Authenticator.Cusec,
	}
	if hasSubkey(apReq) {
		encPart.Subkey = apReq.Authenticator.SubKey
	}

	encPartInner, err := asn1.Marshal(encPart)
	if err != nil {
		return nil, fmt.Errorf("marshal EncAPRepPart: %w", err)
	}
	encPartBytes := asn1tools.AddASNAppTag(encPartInner, 27)

	encrypted, err := crypto.GetEncryptedData(encPartBytes, sessionKey, keyUsageAPRepEncPart, 0)
	if err != nil {
		return nil, fmt.Errorf("encrypt EncAPRepPart: %w", err)
	}

	apRep := messages.APRep{
		PVNO:    5,
		MsgType: 15,
		EncPart: encrypted,
	}
	apRepInner, err := asn1.Marshal(apRep)
	if err != nil {
		return nil, fmt.Errorf("marshal AP-REP: %w", err)
	}
	apRepBytes := asn1tools.AddASNAppTag(apRepInner, 15)

	return wrapToken(apRepBytes, tokenIDAPRep), nil
}

// hasSubkey reports whether the decrypted authenticator carries a subkey.
func hasSubkey(apReq messages.APReq) bool {
	return apReq.Authenticator.SubKey.KeyType != 0 &&
		len(apReq.Authenticator.SubKey.KeyValue) > 0
}
