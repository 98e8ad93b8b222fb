package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	secrets "github.com/harsh-1012/secrets"
)

// FSUserStore implements secrets.UserStore using filesystem storage.
//
// # File Structure
//
//	{StoragePath}/
//	├── users/
//	│   ├── {userID}.json        # full user record
//	│   └── ...
//	├── usernames/
//	│   └── {username}.json      # {"username": "Alice", "user_id": "..."}
//	└── providers/
//	    └── {providerID}.json    # {"user_id": "..."}
//
// # Concurrency Model
//
// A single process-wide mutex serializes all operations, which makes the
// find-or-create on provider ids atomic within the process.  Files are
// written atomically (write to temp, rename).  Suitable for development,
// tests and single-instance deployments.
type FSUserStore struct {
	StoragePath string

	mu sync.Mutex
}

// NewFSUserStore creates a new filesystem-backed UserStore.
func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

type usernameRecord struct {
	Username string `json:"username"`
	UserID   string `json:"user_id"`
}

type providerRecord struct {
	UserID string `json:"user_id"`
}

// normalizeUsername converts username to lowercase for case-insensitive lookup
func (s *FSUserStore) normalizeUsername(username string) string {
	return strings.ToLower(username)
}

func (s *FSUserStore) userPath(userID string) string {
	return filepath.Join(s.StoragePath, "users", userID+".json")
}

func (s *FSUserStore) usernamePath(normalized string) string {
	return filepath.Join(s.StoragePath, "usernames", normalized+".json")
}

func (s *FSUserStore) providerPath(providerID string) string {
	return filepath.Join(s.StoragePath, "providers", providerID+".json")
}

// readJSON reads a JSON record from disk.  A missing file yields (false, nil).
func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// writeJSON writes a JSON record to disk atomically.
func writeJSON(path string, record any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func (s *FSUserStore) readUser(userID string) (*secrets.User, error) {
	var user secrets.User
	found, err := readJSON(s.userPath(userID), &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, secrets.ErrUserNotFound
	}
	return &user, nil
}

func (s *FSUserStore) GetUserByID(ctx context.Context, userID string) (*secrets.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readUser(userID)
}

func (s *FSUserStore) GetUserByUsername(ctx context.Context, username string) (*secrets.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mapping usernameRecord
	found, err := readJSON(s.usernamePath(s.normalizeUsername(username)), &mapping)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, secrets.ErrUserNotFound
	}
	return s.readUser(mapping.UserID)
}

func (s *FSUserStore) CreateLocalUser(ctx context.Context, username, passwordHash string) (*secrets.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := s.normalizeUsername(username)
	var existing usernameRecord
	found, err := readJSON(s.usernamePath(normalized), &existing)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, secrets.ErrDuplicateUsername
	}

	now := time.Now()
	user := &secrets.User{
		ID:           secrets.NewUserID(),
		Username:     &username,
		PasswordHash: &passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := writeJSON(s.userPath(user.ID), user); err != nil {
		return nil, err
	}
	mapping := usernameRecord{Username: username, UserID: user.ID}
	if err := writeJSON(s.usernamePath(normalized), mapping); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *FSUserStore) EnsureProviderUser(ctx context.Context, providerID string) (*secrets.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mapping providerRecord
	found, err := readJSON(s.providerPath(providerID), &mapping)
	if err != nil {
		return nil, false, err
	}
	if found {
		user, err := s.readUser(mapping.UserID)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	now := time.Now()
	user := &secrets.User{
		ID:         secrets.NewUserID(),
		ProviderID: &providerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := writeJSON(s.userPath(user.ID), user); err != nil {
		return nil, false, err
	}
	if err := writeJSON(s.providerPath(providerID), providerRecord{UserID: user.ID}); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *FSUserStore) SetSecret(ctx context.Context, userID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.readUser(userID)
	if err != nil {
		return err
	}
	user.Secret = &secret
	user.UpdatedAt = time.Now()
	return writeJSON(s.userPath(user.ID), user)
}

func (s *FSUserStore) ListSecrets(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usersDir := filepath.Join(s.StoragePath, "users")
	entries, err := os.ReadDir(usersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	// stable order so the listing does not shuffle between requests
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var user secrets.User
		found, err := readJSON(filepath.Join(usersDir, entry.Name()), &user)
		if err != nil {
			return nil, err
		}
		if found && user.HasSecret() {
			out = append(out, *user.Secret)
		}
	}
	return out, nil
}
