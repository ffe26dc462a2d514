// Package persist defines the durable storage port used by the client-side
// session packages, with a JSON-file implementation and an in-memory one for
// tests.
package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound indicates the named blob has never been saved or was cleared.
var ErrNotFound = errors.New("persist: not found")

// Store persists named JSON blobs. Implementations must be safe to call from
// the single event-driven client goroutine; they are not required to support
// concurrent writers.
type Store interface {
	Load(name string) ([]byte, error)
	Save(name string, data []byte) error
	Clear(name string) error
}

// FileStore keeps each blob as a file under a base directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %v: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

func (f *FileStore) Load(name string) ([]byte, error) {
	data, err := os.ReadFile(f.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load %v: %w", name, err)
	}
	return data, nil
}

func (f *FileStore) Save(name string, data []byte) error {
	if err := os.WriteFile(f.path(name), data, 0o600); err != nil {
		return fmt.Errorf("failed to save %v: %w", name, err)
	}
	return nil
}

func (f *FileStore) Clear(name string) error {
	if err := os.Remove(f.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear %v: %w", name, err)
	}
	return nil
}

// Memory is an in-process Store for tests.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: map[string][]byte{}}
}

func (m *Memory) Load(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (m *Memory) Save(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.blobs[name] = cp
	return nil
}

func (m *Memory) Clear(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}
