package hostkeys

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey_Ed25519(t *testing.T) {
	dir := t.TempDir()

	entry, err := GenerateKey(dir, "ed25519", false)
	require.NoError(t, err)
	assert.Equal(t, "ed25519", entry.Type)
	assert.Equal(t, filepath.Join(dir, "ssh_host_ed25519_key"), entry.Path)
	assert.Equal(t, "ssh-ed25519", entry.Signer.PublicKey().Type())

	if runtime.GOOS != "windows" {
		info, err := os.Stat(entry.Path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	// Public key written alongside
	pub, err := os.ReadFile(entry.Path + ".pub")
	require.NoError(t, err)
	assert.Contains(t, string(pub), "ssh-ed25519")
}

func TestGenerateKey_RoundTripsThroughLoad(t *testing.T) {
	dir := t.TempDir()

	entry, err := GenerateKey(dir, "ecdsa", false)
	require.NoError(t, err)

	store, err := Load("", []string{dir})
	require.NoError(t, err)
	require.Len(t, store.Entries(), 1)
	assert.Equal(t, entry.Signer.PublicKey().Marshal(), store.Entries()[0].Signer.PublicKey().Marshal())
}

func TestGenerateKey_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()

	first, err := GenerateKey(dir, "ed25519", false)
	require.NoError(t, err)

	_, err = GenerateKey(dir, "ed25519", false)
	require.ErrorIs(t, err, ErrKeyExists)

	// Force replaces the key material
	second, err := GenerateKey(dir, "ed25519", true)
	require.NoError(t, err)
	assert.NotEqual(t, first.Signer.PublicKey().Marshal(), second.Signer.PublicKey().Marshal())
}

func TestGenerateKey_UnsupportedType(t *testing.T) {
	_, err := GenerateKey(t.TempDir(), "dsa", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot generate")
}

func TestGenerateKey_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys", "nested")

	entry, err := GenerateKey(dir, "ed25519", false)
	require.NoError(t, err)
	assert.FileExists(t, entry.Path)
}
