package hostkeys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// DefaultGenerateTypes are the key types generated when none are requested.
var DefaultGenerateTypes = []string{"ed25519", "rsa"}

const rsaKeyBits = 3072

// ErrKeyExists is returned when generation would overwrite an existing key.
var ErrKeyExists = errors.New("hostkeys: key file already exists")

// GenerateKey creates one host key pair in dir using the OpenSSH naming
// convention and file layout. The private key is written unencrypted with
// mode 0600, the public key next to it with a .pub suffix. An existing key
// of the same type is left alone unless force is set.
//
// Supported types are ed25519, ecdsa (P-256) and rsa (3072 bit). DSA is
// recognized on load for legacy installs but never generated.
func GenerateKey(dir string, keyType string, force bool) (Entry, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return Entry{}, fmt.Errorf("hostkeys: failed to create key directory: %w", err)
	}

	path := filepath.Join(dir, filePrefix+keyType+fileSuffix)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return Entry{}, fmt.Errorf("%w: %s", ErrKeyExists, path)
		}
	}

	key, err := newPrivateKey(keyType)
	if err != nil {
		return Entry{}, err
	}

	block, err := ssh.MarshalPrivateKey(key, "")
	if err != nil {
		return Entry{}, fmt.Errorf("hostkeys: failed to marshal %s key: %w", keyType, err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		return Entry{}, fmt.Errorf("hostkeys: failed to write private key: %w", err)
	}

	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return Entry{}, fmt.Errorf("hostkeys: failed to build signer: %w", err)
	}

	pubPath := path + ".pub"
	if err := os.WriteFile(pubPath, ssh.MarshalAuthorizedKey(signer.PublicKey()), 0644); err != nil {
		return Entry{}, fmt.Errorf("hostkeys: failed to write public key: %w", err)
	}

	return Entry{Path: path, Type: keyType, Signer: signer}, nil
}

func newPrivateKey(keyType string) (any, error) {
	switch keyType {
	case "ed25519":
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("hostkeys: ed25519 generation failed: %w", err)
		}
		return key, nil
	case "ecdsa":
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("hostkeys: ecdsa generation failed: %w", err)
		}
		return key, nil
	case "rsa":
		key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			return nil, fmt.Errorf("hostkeys: rsa generation failed: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("hostkeys: cannot generate %q keys (supported: ed25519, ecdsa, rsa)", keyType)
	}
}
