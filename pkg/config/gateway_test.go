package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/xgate/pkg/hostkeys"
	"github.com/marmos91/xgate/pkg/identity"
	"golang.org/x/crypto/ssh"
)

// writeHostKey generates an ed25519 host key in OpenSSH PEM format under dir.
func writeHostKey(t *testing.T, dir string) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("MarshalPrivateKey: %v", err)
	}
	path := filepath.Join(dir, "ssh_host_ed25519_key")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestCreateIdentityStore(t *testing.T) {
	tmpDir := t.TempDir()
	userFile := filepath.Join(tmpDir, "users")

	hash, err := identity.HashPassword("open-sesame-123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := os.WriteFile(userFile, []byte("alice:"+hash+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := GetDefaultConfig()
	cfg.Auth.UserFile = userFile

	store, err := cfg.CreateIdentityStore()
	if err != nil {
		t.Fatalf("CreateIdentityStore: %v", err)
	}
	if err := store.Authenticate("alice", "open-sesame-123"); err != nil {
		t.Errorf("Authenticate failed: %v", err)
	}
}

func TestCreateIdentityStore_MissingFileTolerated(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Auth.UserFile = filepath.Join(t.TempDir(), "users")

	store, err := cfg.CreateIdentityStore()
	if err != nil {
		t.Fatalf("CreateIdentityStore: %v", err)
	}

	err = store.Authenticate("alice", "whatever-123")
	if !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials from empty store, got %v", err)
	}
}

func TestCreateAuthEngine_FileBackend(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Auth.UserFile = filepath.Join(t.TempDir(), "users")

	store, err := cfg.CreateIdentityStore()
	if err != nil {
		t.Fatalf("CreateIdentityStore: %v", err)
	}

	engine, err := cfg.CreateAuthEngine(store, nil)
	if err != nil {
		t.Fatalf("CreateAuthEngine: %v", err)
	}
	if engine == nil {
		t.Fatal("Expected an engine")
	}
}

func TestCreateAuthEngine_FileBackendWithoutStore(t *testing.T) {
	cfg := GetDefaultConfig()

	_, err := cfg.CreateAuthEngine(nil, nil)
	if err == nil {
		t.Fatal("Expected error for file backend without a store")
	}
}

func TestCreateAuthEngine_NoneBackend(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Auth.PasswordBackend = "none"

	engine, err := cfg.CreateAuthEngine(nil, nil)
	if err != nil {
		t.Fatalf("CreateAuthEngine: %v", err)
	}
	if engine == nil {
		t.Fatal("Expected an engine")
	}
}

func TestCreateAuthEngine_UnknownBackend(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Auth.PasswordBackend = "ldap"

	_, err := cfg.CreateAuthEngine(nil, nil)
	if err == nil {
		t.Fatal("Expected error for unknown backend")
	}
	if !strings.Contains(err.Error(), "password backend") {
		t.Errorf("Expected error naming the backend, got: %v", err)
	}
}

func TestCreateGateway(t *testing.T) {
	keyDir := t.TempDir()
	writeHostKey(t, keyDir)

	cfg := GetDefaultConfig()
	cfg.Auth.PasswordBackend = "none"
	cfg.Gateway.HostKeyDirs = []string{keyDir}

	engine, err := cfg.CreateAuthEngine(nil, nil)
	if err != nil {
		t.Fatalf("CreateAuthEngine: %v", err)
	}

	gw, err := cfg.CreateGateway(engine, cfg.CreateUpstreamHandler(nil), nil)
	if err != nil {
		t.Fatalf("CreateGateway: %v", err)
	}
	if gw == nil {
		t.Fatal("Expected a gateway server")
	}
	if gw.ActiveConnections() != 0 {
		t.Errorf("Expected no active connections on a fresh server, got %d", gw.ActiveConnections())
	}
}

func TestCreateGateway_NoHostKeys(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Auth.PasswordBackend = "none"
	cfg.Gateway.HostKeyDirs = []string{t.TempDir()}

	engine, err := cfg.CreateAuthEngine(nil, nil)
	if err != nil {
		t.Fatalf("CreateAuthEngine: %v", err)
	}

	_, err = cfg.CreateGateway(engine, nil, nil)
	if !errors.Is(err, hostkeys.ErrNoHostKeys) {
		t.Errorf("Expected ErrNoHostKeys, got %v", err)
	}
}

func TestCreateUpstreamHandler(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Gateway.Upstream = "tcp:127.0.0.1:14500"
	cfg.Gateway.DialTimeout = 3 * time.Second

	h := cfg.CreateUpstreamHandler(nil)
	if h.Upstream != "tcp:127.0.0.1:14500" {
		t.Errorf("Expected upstream to be carried over, got %q", h.Upstream)
	}
	if h.DialTimeout != 3*time.Second {
		t.Errorf("Expected dial timeout to be carried over, got %v", h.DialTimeout)
	}
}

func TestResolveServerWait(t *testing.T) {
	tests := []struct {
		name   string
		env    string
		config time.Duration
		want   time.Duration
	}{
		{"no override", "", 20 * time.Second, 20 * time.Second},
		{"duration string", "45s", 20 * time.Second, 45 * time.Second},
		{"plain seconds", "30", 20 * time.Second, 30 * time.Second},
		{"invalid ignored", "soon", 20 * time.Second, 20 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XGATE_GATEWAY_SERVER_WAIT", tt.env)
			if got := resolveServerWait(tt.config); got != tt.want {
				t.Errorf("resolveServerWait() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveKerberosOverrides(t *testing.T) {
	t.Setenv("XGATE_KERBEROS_KEYTAB", "/srv/keytabs/xgate.keytab")
	t.Setenv("XGATE_KERBEROS_PRINCIPAL", "host/gw.example.com@EXAMPLE.COM")

	if got := resolveKeytabPath("/etc/xgate/xgate.keytab"); got != "/srv/keytabs/xgate.keytab" {
		t.Errorf("resolveKeytabPath() = %q, want env override", got)
	}
	if got := resolveServicePrincipal(""); got != "host/gw.example.com@EXAMPLE.COM" {
		t.Errorf("resolveServicePrincipal() = %q, want env override", got)
	}
}
