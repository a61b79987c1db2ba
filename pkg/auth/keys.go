package auth

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/marmos91/xgate/internal/logger"
)

// fingerprintHashes maps configurable hash names to constructors. Matching
// compares the digest of the presented key's wire encoding against the
// digest of each stored key under each configured algorithm.
var fingerprintHashes = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha224": sha256.New224,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

// DefaultFingerprintHashes returns the default fingerprint algorithm list,
// tried in order until one matches.
func DefaultFingerprintHashes() []string {
	return []string{"md5", "sha1", "sha224", "sha256", "sha384", "sha512"}
}

// KeyAuthorizer decides public-key authentication against an
// authorized_keys file.
//
// The file is re-read on every attempt so key revocations take effect
// immediately. On multi-user systems (effective uid != 0) the connecting
// username must additionally match the account the gateway runs as, since
// the gateway can only speak for its own authorized_keys.
type KeyAuthorizer struct {
	path   string
	hashes []string

	// process identity lookups, replaceable in tests
	uid         func() int
	currentUser func() (*user.User, error)

	warnMu sync.Mutex
	warned map[string]bool
}

// NewKeyAuthorizer creates an authorizer reading the authorized_keys file
// at path. An empty path means the process user's ~/.ssh/authorized_keys.
// An empty hash list means DefaultFingerprintHashes.
func NewKeyAuthorizer(path string, hashes []string) *KeyAuthorizer {
	if len(hashes) == 0 {
		hashes = DefaultFingerprintHashes()
	}
	return &KeyAuthorizer{
		path:        path,
		hashes:      hashes,
		uid:         os.Getuid,
		currentUser: user.Current,
		warned:      make(map[string]bool),
	}
}

// Authorize checks whether the presented key is listed in the
// authorized_keys file for the given username.
//
// Returns nil on a match and an error wrapping ErrAuthenticationFailed
// otherwise.
func (a *KeyAuthorizer) Authorize(username string, key ssh.PublicKey) error {
	if a.uid() != 0 {
		current, err := a.currentUser()
		if err != nil {
			return fmt.Errorf("resolve process user: %w", err)
		}
		if current.Username != username {
			return fmt.Errorf("user %q does not match process user %q: %w",
				username, current.Username, ErrAuthenticationFailed)
		}
	}

	path, err := a.keysPath()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open authorized keys: %w", err)
	}
	defer f.Close()

	presented := key.Marshal()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		// The second field of a plain entry is the base64 key material.
		// Lines with an options prefix put the key type there instead; the
		// decode fails and the line is skipped, matching a strict reading
		// of the two-field format.
		stored, err := base64.StdEncoding.DecodeString(fields[1])
		if err != nil {
			logger.Debug("Skipping undecodable authorized_keys entry",
				"path", path,
				"line", lineNo,
			)
			continue
		}
		if a.match(presented, stored) {
			logger.Debug("Matched authorized key",
				"path", path,
				"line", lineNo,
				"user", username,
			)
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read authorized keys: %w", err)
	}

	return fmt.Errorf("no authorized key for %q in %s: %w", username, path, ErrAuthenticationFailed)
}

// keysPath resolves the authorized_keys location for this attempt.
func (a *KeyAuthorizer) keysPath() (string, error) {
	if a.path != "" {
		return a.path, nil
	}
	current, err := a.currentUser()
	if err != nil {
		return "", fmt.Errorf("resolve process user: %w", err)
	}
	return filepath.Join(current.HomeDir, ".ssh", "authorized_keys"), nil
}

// match reports whether the two key encodings produce the same fingerprint
// under any configured hash algorithm. The first matching algorithm wins.
func (a *KeyAuthorizer) match(presented, stored []byte) bool {
	for _, name := range a.hashes {
		newHash, ok := fingerprintHashes[name]
		if !ok {
			a.warnUnknownHash(name)
			continue
		}
		if bytes.Equal(digest(newHash, presented), digest(newHash, stored)) {
			return true
		}
	}
	return false
}

// warnUnknownHash logs an unsupported hash name once per process, not once
// per authentication attempt.
func (a *KeyAuthorizer) warnUnknownHash(name string) {
	a.warnMu.Lock()
	defer a.warnMu.Unlock()
	if a.warned[name] {
		return
	}
	a.warned[name] = true
	logger.Warn("Unsupported fingerprint hash configured", "hash", name)
}

func digest(newHash func() hash.Hash, b []byte) []byte {
	h := newHash()
	h.Write(b)
	return h.Sum(nil)
}
