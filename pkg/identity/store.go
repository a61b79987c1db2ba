package identity

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/xgate/internal/logger"
)

// Common errors for user store operations.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
)

// dummyHash is a well-formed bcrypt hash of an arbitrary string, compared
// against when the user doesn't exist to equalize rejection timing.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// User is one entry in the gateway user database.
type User struct {
	// Username is the login name.
	Username string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string
}

// Store provides credential lookup and verification.
//
// Implementations must be thread-safe as methods may be called concurrently
// from the SSH accept loop and the REST API.
type Store interface {
	// Authenticate verifies username/password credentials.
	// Returns ErrInvalidCredentials if the credentials are invalid.
	Authenticate(username, password string) error

	// Lookup returns a user by username.
	// Returns ErrUserNotFound if the user doesn't exist.
	Lookup(username string) (*User, error)

	// List returns all users sorted by username.
	List() []*User
}

// FileStore is a Store backed by an htpasswd-style file.
//
// File format, one user per line:
//
//	username:bcrypt-hash
//
// Blank lines and lines starting with '#' are ignored. The file is re-read
// automatically when its modification time changes, so edits made outside
// the gateway take effect on the next authentication attempt.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	users   map[string]*User
	modTime time.Time
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens the user file at path.
//
// A missing file yields an empty store; the file is created on first Save.
// A malformed file is an error.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		users: make(map[string]*User),
	}

	if err := s.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	return s, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Authenticate verifies username/password credentials against the file.
func (s *FileStore) Authenticate(username, password string) error {
	s.refresh()

	s.mu.RLock()
	user, ok := s.users[username]
	s.mu.RUnlock()

	if !ok {
		// Burn a bcrypt comparison so missing and present users take the
		// same time to reject.
		VerifyPassword(password, dummyHash)
		return ErrInvalidCredentials
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	return nil
}

// Lookup returns a user by username.
func (s *FileStore) Lookup(username string) (*User, error) {
	s.refresh()

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}

	u := *user
	return &u, nil
}

// List returns all users sorted by username.
func (s *FileStore) List() []*User {
	s.refresh()

	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		c := *u
		users = append(users, &c)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// Set adds a user or replaces an existing user's password hash, then saves.
func (s *FileStore) Set(username, passwordHash string) error {
	if username == "" || strings.ContainsAny(username, ":\n") {
		return fmt.Errorf("invalid username %q", username)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[username] = &User{Username: username, PasswordHash: passwordHash}
	return s.save()
}

// Remove deletes a user and saves.
// Returns ErrUserNotFound if the user doesn't exist.
func (s *FileStore) Remove(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return ErrUserNotFound
	}

	delete(s.users, username)
	return s.save()
}

// load reads the user file into memory. Caller must not hold the lock.
func (s *FileStore) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	users := make(map[string]*User)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, hash, ok := strings.Cut(line, ":")
		if !ok || name == "" || hash == "" {
			return fmt.Errorf("%s:%d: malformed user entry", s.path, lineNo)
		}

		users[name] = &User{Username: name, PasswordHash: hash}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read user file %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.users = users
	s.modTime = info.ModTime()
	s.mu.Unlock()

	return nil
}

// refresh re-reads the file if it changed on disk. Failures keep the
// current in-memory snapshot.
func (s *FileStore) refresh() {
	info, err := os.Stat(s.path)
	if err != nil {
		return
	}

	s.mu.RLock()
	stale := info.ModTime().After(s.modTime)
	s.mu.RUnlock()

	if !stale {
		return
	}

	if err := s.load(); err != nil {
		logger.Warn("Failed to reload user file, keeping previous snapshot",
			"path", s.path, "error", err)
	}
}

// save writes the user file atomically with 0600 permissions.
// Caller must hold the write lock.
func (s *FileStore) save() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create user file directory: %w", err)
		}
	}

	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(s.users[name].PasswordHash)
		b.WriteByte('\n')
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write user file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace user file: %w", err)
	}

	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}

	return nil
}
