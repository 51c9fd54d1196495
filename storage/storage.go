// Package storage is the durable key-value store of a portal session, the equivalent of a
// browser's local storage.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/EXyrus/tabularasa/internal/errors"
	"github.com/EXyrus/tabularasa/portal"
)

// Well-known keys.
const (
	KeyAppType = "appType"
	KeyToken   = "token"
)

// PreferencesKey is the key of the preferences blob of a portal.
func PreferencesKey(appType portal.AppType) string {
	return "preferences:" + appType.String()
}

// Store is a string key-value store with overwrite semantics.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*File)(nil)
)

// Memory is a Store that does not survive the process.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// File keeps every key in a single JSON document. Writes go to a temp file that is renamed
// over the document so a crash never leaves a half-written store.
type File struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

// NewFile loads the document at path, creating parent folders as needed. A missing file is
// an empty store.
func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "storage.NewFile mkdir %s", filepath.Dir(path))
	}
	f := &File{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return f, nil
	case err != nil:
		return nil, errors.Wrapf(err, "storage.NewFile read %s", path)
	}
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f.values); err != nil {
		return nil, errors.Wrapf(err, "storage.NewFile decode %s", path)
	}
	return f, nil
}

func (f *File) Get(key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, existed := f.values[key]
	f.values[key] = value
	if err := f.flush(); err != nil {
		if existed {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, existed := f.values[key]
	if !existed {
		return nil
	}
	delete(f.values, key)
	if err := f.flush(); err != nil {
		f.values[key] = prev
		return err
	}
	return nil
}

// flush must be called with the write lock held.
func (f *File) flush() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "storage flush encode")
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".store-*")
	if err != nil {
		return errors.Wrapf(err, "storage flush create temp")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "storage flush write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "storage flush close")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Wrapf(err, "storage flush rename")
	}
	return nil
}
