// Package storage provides tiqology.SessionStorage backends that need no
// external service: an in-process Memory store and a JSON File store.
//
// Redis and SQLite backends live in the redisstore and sqlitestore subpackages.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	tiqology "github.com/tiqology/superapp-go"
)

// Key is the name under which the session record is stored by key-value backends.
const Key = "session-store"

// Memory keeps the record in process memory.
type Memory struct {
	mu  sync.Mutex
	rec *tiqology.PersistedSession
}

var (
	_ tiqology.SessionStorage = (*Memory)(nil)
	_ tiqology.SessionStorage = (*File)(nil)
)

// NewMemory creates an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns a copy of the stored record, or nil.
func (m *Memory) Load(context.Context) (*tiqology.PersistedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return nil, nil
	}
	c := *m.rec
	c.User = m.rec.User.Clone()
	return &c, nil
}

// Save stores a copy of rec.
func (m *Memory) Save(_ context.Context, rec *tiqology.PersistedSession) error {
	if rec == nil {
		return errors.New("storage: nil record")
	}
	c := *rec
	c.User = rec.User.Clone()

	m.mu.Lock()
	m.rec = &c
	m.mu.Unlock()
	return nil
}

// Clear removes the record.
func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.rec = nil
	m.mu.Unlock()
	return nil
}

// File stores the record as JSON in a single file. Writes go to a temporary
// file in the same directory and are renamed into place.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile creates a file storage at path. The file and its directory are
// created on the first Save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Load reads the record. A missing file yields nil, nil.
func (f *File) Load(context.Context) (*tiqology.PersistedSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", f.path, err)
	}

	var rec tiqology.PersistedSession
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", f.path, err)
	}
	return &rec, nil
}

// Save writes rec atomically with owner-only permissions.
func (f *File) Save(_ context.Context, rec *tiqology.PersistedSession) error {
	if rec == nil {
		return errors.New("storage: nil record")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("storage: encode: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

// Clear deletes the file. A missing file is not an error.
func (f *File) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: remove %s: %w", f.path, err)
	}
	return nil
}
