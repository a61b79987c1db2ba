// Package hostkeys discovers and loads SSH host keys for the gateway.
//
// Host keys follow the OpenSSH naming convention ssh_host_<type>_key
// (e.g. ssh_host_ed25519_key). Keys are discovered in configured search
// directories, or loaded from one explicitly configured path.
package hostkeys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/xgate/internal/logger"
	"golang.org/x/crypto/ssh"
)

const (
	filePrefix = "ssh_host_"
	fileSuffix = "_key"
)

// keyFamilies maps the key type token from a file name to the public key
// algorithms that token may produce. A parsed key whose algorithm falls
// outside its named family is rejected: the file name is lying about the
// contents. Files naming any other type are skipped with a warning.
var keyFamilies = map[string][]string{
	"rsa":     {ssh.KeyAlgoRSA},
	"dsa":     {ssh.KeyAlgoDSA},
	"ecdsa":   {ssh.KeyAlgoECDSA256, ssh.KeyAlgoECDSA384, ssh.KeyAlgoECDSA521},
	"ed25519": {ssh.KeyAlgoED25519},
}

// familyMatches reports whether algo belongs to the family named by keyType.
func familyMatches(keyType, algo string) bool {
	for _, a := range keyFamilies[keyType] {
		if a == algo {
			return true
		}
	}
	return false
}

var (
	// ErrNoHostKeys is returned when no usable host key could be loaded.
	ErrNoHostKeys = errors.New("hostkeys: no usable host keys")

	// ErrBadKeyPath is returned when an explicitly configured key path does
	// not follow the ssh_host_<type>_key naming convention.
	ErrBadKeyPath = errors.New("hostkeys: path does not match ssh_host_<type>_key convention")
)

// Entry is one loaded host key.
type Entry struct {
	// Path is the file the key was loaded from.
	Path string

	// Type is the key type token from the file name ("rsa", "ed25519", ...).
	Type string

	// Signer is the parsed private key.
	Signer ssh.Signer
}

// Store holds the host keys presented during the SSH handshake.
type Store struct {
	entries []Entry
}

// Load builds a host key store.
//
// When explicitPath is set, only that file is loaded and its name must
// follow the naming convention. Otherwise each directory in searchDirs is
// scanned for conventionally named key files; unreadable directories,
// unrecognized type tokens, and unparseable files are skipped with a
// warning. Keys with identical public key material are loaded once, first
// occurrence wins.
//
// Returns ErrNoHostKeys when nothing usable was found.
func Load(explicitPath string, searchDirs []string) (*Store, error) {
	s := &Store{}

	if explicitPath != "" {
		entry, err := loadExplicit(explicitPath)
		if err != nil {
			return nil, err
		}
		s.entries = append(s.entries, entry)
		return s, nil
	}

	seen := make(map[string]bool)
	for _, dir := range searchDirs {
		s.scanDir(dir, seen)
	}

	if len(s.entries) == 0 {
		return nil, fmt.Errorf("%w in %v: generate one with "+
			"'ssh-keygen -t ed25519 -f <dir>/ssh_host_ed25519_key -N \"\"' "+
			"or run 'xgate keys generate'", ErrNoHostKeys, searchDirs)
	}

	return s, nil
}

// loadExplicit loads a single operator-specified key file.
// Any failure is an error rather than a skip: the operator named this
// exact file, so silently falling back would hide a misconfiguration.
func loadExplicit(path string) (Entry, error) {
	keyType, ok := typeFromName(filepath.Base(path))
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrBadKeyPath, path)
	}
	if _, supported := keyFamilies[keyType]; !supported {
		return Entry{}, fmt.Errorf("%w: unsupported key type %q in %s", ErrBadKeyPath, keyType, path)
	}

	entry, err := loadFile(path, keyType)
	if err != nil {
		return Entry{}, fmt.Errorf("hostkeys: %w", err)
	}
	if algo := entry.Signer.PublicKey().Type(); !familyMatches(keyType, algo) {
		return Entry{}, fmt.Errorf("hostkeys: %s holds a %s key, not %s", path, algo, keyType)
	}
	return entry, nil
}

// scanDir collects conventionally named keys from one directory.
func (s *Store) scanDir(dir string, seen map[string]bool) {
	files, err := os.ReadDir(dir)
	if err != nil {
		logger.Debug("Skipping host key directory", "dir", dir, "error", err)
		return
	}

	for _, f := range files {
		if f.IsDir() {
			continue
		}

		keyType, ok := typeFromName(f.Name())
		if !ok {
			continue
		}
		path := filepath.Join(dir, f.Name())

		if _, supported := keyFamilies[keyType]; !supported {
			logger.Warn("Skipping host key with unrecognized type",
				"path", path, "key_type", keyType)
			continue
		}

		entry, err := loadFile(path, keyType)
		if err != nil {
			logger.Warn("Skipping unreadable host key", "path", path, "error", err)
			continue
		}

		if algo := entry.Signer.PublicKey().Type(); !familyMatches(keyType, algo) {
			logger.Warn("Skipping host key whose algorithm does not match its file name",
				"path", path, "key_type", keyType, "algorithm", algo)
			continue
		}

		material := string(entry.Signer.PublicKey().Marshal())
		if seen[material] {
			logger.Debug("Skipping duplicate host key", "path", path)
			continue
		}
		seen[material] = true

		s.entries = append(s.entries, entry)
		logger.Debug("Loaded host key", "path", path, "key_type", keyType,
			"algorithm", entry.Signer.PublicKey().Type())
	}
}

// loadFile parses one private key file.
func loadFile(path string, keyType string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return Entry{Path: path, Type: keyType, Signer: signer}, nil
}

// typeFromName extracts the key type token from a conventional file name.
// Returns false when the name does not match ssh_host_<type>_key.
func typeFromName(name string) (string, bool) {
	if len(name) <= len(filePrefix)+len(fileSuffix) {
		return "", false
	}
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return "", false
	}
	return strings.ToLower(name[len(filePrefix) : len(name)-len(fileSuffix)]), true
}

// Entries returns the loaded keys in load order.
func (s *Store) Entries() []Entry {
	return s.entries
}

// Signers returns the parsed private keys for ssh.ServerConfig.AddHostKey.
func (s *Store) Signers() []ssh.Signer {
	signers := make([]ssh.Signer, len(s.entries))
	for i, e := range s.entries {
		signers[i] = e.Signer
	}
	return signers
}
