package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// TokenKey is the key under which the push endpoint bearer token is stored.
const TokenKey = "token"

// Credential store errors.
var (
	ErrNotFound = errors.New("credential not found")
)

// Store provides keyed lookup of credentials.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) (string, error)
}

// MemoryStore is an in-memory Store. The zero value is not usable; call
// NewMemoryStore.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates a store seeded with values.
func NewMemoryStore(values map[string]string) *MemoryStore {
	s := &MemoryStore{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get returns the value for key. Empty values count as missing.
func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Delete removes key.
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// FileStore reads credentials from a YAML map file:
//
//	token: eyJhbGciOi...
//
// The file is re-read on every Get.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path. The file need not exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value for key. A missing file reports ErrNotFound.
func (s *FileStore) Get(key string) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s (no file %s)", ErrNotFound, key, s.path)
		}
		return "", fmt.Errorf("read credentials: %w", err)
	}

	var values map[string]string
	if err := yaml.Unmarshal(data, &values); err != nil {
		return "", fmt.Errorf("parse credentials %s: %w", s.path, err)
	}

	v := strings.TrimSpace(values[key])
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

// Save writes values to the file with owner-only permissions. The file is
// replaced by rename, so a concurrent Get sees either the old or the new
// content.
func (s *FileStore) Save(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// EnvStore maps keys to environment variables: key "token" with prefix
// "CAMSTATUS_" reads CAMSTATUS_TOKEN.
type EnvStore struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvStore creates a store reading variables named prefix+upper(key).
func NewEnvStore(prefix string) *EnvStore {
	return &EnvStore{prefix: prefix, lookup: os.LookupEnv}
}

// Variable returns the environment variable name for key.
func (s *EnvStore) Variable(key string) string {
	return s.prefix + strings.ToUpper(key)
}

// Get returns the value of the mapped variable.
func (s *EnvStore) Get(key string) (string, error) {
	name := s.Variable(key)
	v, ok := s.lookup(name)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s (env %s)", ErrNotFound, key, name)
	}
	return v, nil
}

// ChainStore consults stores in order and returns the first hit.
type ChainStore struct {
	stores []Store
}

// NewChainStore creates a chain over the non-nil stores given.
func NewChainStore(stores ...Store) *ChainStore {
	c := &ChainStore{}
	for _, s := range stores {
		if s != nil {
			c.stores = append(c.stores, s)
		}
	}
	return c
}

// Get returns the first value found. Errors other than ErrNotFound stop
// the search.
func (c *ChainStore) Get(key string) (string, error) {
	for _, s := range c.stores {
		v, err := s.Get(key)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*EnvStore)(nil)
	_ Store = (*ChainStore)(nil)
)
