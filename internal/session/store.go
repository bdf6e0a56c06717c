package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"droffers.app/internal/api"
)

// MemoryStore keeps the token pair in process memory. Used in tests and for
// sessions that should not outlive the process.
type MemoryStore struct {
	mu   sync.Mutex
	pair api.TokenPair
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(ctx context.Context) (api.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair, nil
}

func (s *MemoryStore) Save(ctx context.Context, pair api.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = api.TokenPair{}
	return nil
}

// FileStore persists the token pair as a JSON file, the durable-storage
// analog of the browser's local storage.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type storedTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s *FileStore) Load(ctx context.Context) (api.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return api.TokenPair{}, nil
		}
		return api.TokenPair{}, fmt.Errorf("session: read token file: %w", err)
	}
	var st storedTokens
	if err := json.Unmarshal(data, &st); err != nil {
		// A corrupt token file behaves like no session at all.
		return api.TokenPair{}, nil
	}
	return api.TokenPair{AccessToken: st.AccessToken, RefreshToken: st.RefreshToken}, nil
}

func (s *FileStore) Save(ctx context.Context, pair api.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(storedTokens{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: create token dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: write token file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: clear token file: %w", err)
	}
	return nil
}
