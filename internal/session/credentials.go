package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/neuroscan-project/neuroscan/internal/api"
)

const credentialsFile = "credentials.json"

// CredentialStore persists the token pair under fixed keys in the console's
// state directory. It is the only cross-component shared mutable resource:
// written by login/logout, read-only everywhere else.
type CredentialStore struct {
	path string
	mu   sync.Mutex
}

// NewCredentialStore roots the store at stateDir, creating it if needed.
func NewCredentialStore(stateDir string) (*CredentialStore, error) {
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("session: ensure state dir: %w", err)
	}
	return &CredentialStore{path: filepath.Join(stateDir, credentialsFile)}, nil
}

// Load reads the stored pair. A missing file is not an error; it returns an
// empty pair, meaning "not logged in".
func (s *CredentialStore) Load() (api.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return api.TokenPair{}, nil
		}
		return api.TokenPair{}, fmt.Errorf("session: read credentials: %w", err)
	}
	var pair api.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return api.TokenPair{}, fmt.Errorf("session: parse credentials: %w", err)
	}
	return pair, nil
}

// Save writes the pair with owner-only permissions.
func (s *CredentialStore) Save(pair api.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("session: encode credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("session: write credentials: %w", err)
	}
	return nil
}

// Clear removes both stored values. Clearing an already-empty store is fine.
func (s *CredentialStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: clear credentials: %w", err)
	}
	return nil
}
