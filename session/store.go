package session

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Aalibrarytechnologies/library-management-system/api"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// persistedSession mirrors what the server hands out on login. It is written
// with 0600 since it carries a bearer token.
type persistedSession struct {
	AccessToken string    `json:"access_token"`
	User        *api.User `json:"user,omitempty"`
}

// Store owns the bearer token and user identity for the current session.
// An empty path keeps the session in memory only.
type Store struct {
	mu    sync.Mutex
	path  string
	token string
	user  *api.User
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load hydrates the store from the session file. A missing file is not an
// error: it simply means nobody is logged in.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return nil
	}
	buf, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	var persisted persistedSession
	if err := json.Unmarshal(buf, &persisted); err != nil {
		return err
	}
	s.token = persisted.AccessToken
	s.user = persisted.User
	return nil
}

func (s *Store) Set(user api.User, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = &user
	return s.persist()
}

func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}
	buf, err := json.Marshal(persistedSession{AccessToken: s.token, User: s.user})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	return os.WriteFile(s.path, buf, 0600)
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Store) User() (api.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return api.User{}, false
	}
	return *s.user, true
}

// Clear wipes the in-memory session and removes the session file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	if s.path == "" {
		return nil
	}
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
