package hostkeys

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// writeKey generates an ed25519 private key and writes it in OpenSSH PEM
// format under the given file name. Returns the PEM bytes.
func writeKey(t *testing.T, dir, name string) []byte {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	data := pem.EncodeToMemory(block)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	return data
}

// writeECDSAKey is writeKey for files whose name claims the ecdsa type.
func writeECDSAKey(t *testing.T, dir, name string) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	data := pem.EncodeToMemory(block)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
}

func TestLoad_ScansDirectories(t *testing.T) {
	dir := t.TempDir()
	writeKey(t, dir, "ssh_host_ed25519_key")
	writeECDSAKey(t, dir, "ssh_host_ecdsa_key")

	store, err := Load("", []string{dir})
	require.NoError(t, err)
	require.Len(t, store.Entries(), 2)
	assert.Len(t, store.Signers(), 2)
}

func TestLoad_SkipsUnknownTypeWithWarning(t *testing.T) {
	dir := t.TempDir()
	writeKey(t, dir, "ssh_host_ed25519_key")
	writeKey(t, dir, "ssh_host_bogus_key")

	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "WARN", "text", false)

	store, err := Load("", []string{dir})
	require.NoError(t, err)

	require.Len(t, store.Entries(), 1)
	assert.Equal(t, "ed25519", store.Entries()[0].Type)
	assert.Contains(t, buf.String(), "unrecognized type")
	assert.Contains(t, buf.String(), "bogus")
}

func TestLoad_SkipsKeyNotMatchingItsName(t *testing.T) {
	dir := t.TempDir()
	writeKey(t, dir, "ssh_host_ed25519_key")
	writeKey(t, dir, "ssh_host_rsa_key") // name says rsa, content is ed25519

	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "WARN", "text", false)

	store, err := Load("", []string{dir})
	require.NoError(t, err)

	require.Len(t, store.Entries(), 1)
	assert.Equal(t, "ed25519", store.Entries()[0].Type)
	assert.Contains(t, buf.String(), "does not match")
	assert.Contains(t, buf.String(), "ssh-ed25519")
}

func TestLoad_SkipsUnparseableKey(t *testing.T) {
	dir := t.TempDir()
	writeKey(t, dir, "ssh_host_ed25519_key")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ssh_host_ecdsa_key"), []byte("not a key"), 0o600))

	store, err := Load("", []string{dir})
	require.NoError(t, err)
	assert.Len(t, store.Entries(), 1)
}

func TestLoad_DeduplicatesKeyMaterial(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()

	// Same key material under both directories
	data := writeKey(t, dirA, "ssh_host_ed25519_key")
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "ssh_host_ed25519_key"), data, 0o600))

	// Distinct key in the second directory
	writeECDSAKey(t, dirB, "ssh_host_ecdsa_key")

	store, err := Load("", []string{dirA, dirB})
	require.NoError(t, err)
	require.Len(t, store.Entries(), 2)

	// First occurrence wins
	assert.Equal(t, filepath.Join(dirA, "ssh_host_ed25519_key"), store.Entries()[0].Path)
}

func TestLoad_NoKeysFails(t *testing.T) {
	dir := t.TempDir()

	_, err := Load("", []string{dir, filepath.Join(dir, "does-not-exist")})
	require.ErrorIs(t, err, ErrNoHostKeys)
	assert.Contains(t, err.Error(), "ssh-keygen")
}

func TestLoad_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	writeKey(t, dir, "ssh_host_ed25519_key")

	store, err := Load(filepath.Join(dir, "ssh_host_ed25519_key"), nil)
	require.NoError(t, err)
	require.Len(t, store.Entries(), 1)
	assert.Equal(t, "ed25519", store.Entries()[0].Type)
}

func TestLoad_ExplicitPathBadName(t *testing.T) {
	dir := t.TempDir()
	writeKey(t, dir, "mykey")

	_, err := Load(filepath.Join(dir, "mykey"), nil)
	require.ErrorIs(t, err, ErrBadKeyPath)
}

func TestLoad_ExplicitPathUnsupportedType(t *testing.T) {
	dir := t.TempDir()
	writeKey(t, dir, "ssh_host_bogus_key")

	_, err := Load(filepath.Join(dir, "ssh_host_bogus_key"), nil)
	require.ErrorIs(t, err, ErrBadKeyPath)
	assert.Contains(t, err.Error(), "bogus")
}

func TestLoad_ExplicitPathKeyNotMatchingItsName(t *testing.T) {
	dir := t.TempDir()
	writeKey(t, dir, "ssh_host_rsa_key") // name says rsa, content is ed25519

	_, err := Load(filepath.Join(dir, "ssh_host_rsa_key"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ssh-ed25519")
}

func TestLoad_ExplicitPathUnreadable(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "ssh_host_rsa_key"), nil)
	require.Error(t, err)
}

func TestTypeFromName(t *testing.T) {
	tests := []struct {
		name     string
		wantType string
		wantOK   bool
	}{
		{"ssh_host_rsa_key", "rsa", true},
		{"ssh_host_ed25519_key", "ed25519", true},
		{"ssh_host_RSA_key", "rsa", true},
		{"ssh_host_bogus_key", "bogus", true},
		{"ssh_host__key", "", false},
		{"ssh_host_key", "", false},
		{"ssh_host_rsa_key.pub", "", false},
		{"authorized_keys", "", false},
		{"ssh_host_rsa", "", false},
	}

	for _, tt := range tests {
		got, ok := typeFromName(tt.name)
		assert.Equal(t, tt.wantOK, ok, tt.name)
		if ok {
			assert.Equal(t, tt.wantType, got, tt.name)
		}
	}
}
