// Package localstore provides the key/value persistence the bridge uses in
// place of browser local storage.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Memory is a process-local store.
type Memory struct {
	mu   sync.RWMutex
	vals map[string]string
}

func NewMemory() *Memory {
	return &Memory{vals: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vals[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vals, key)
	return nil
}

// File persists all keys as one JSON object on disk. Writes go through a
// temp file and rename so a crash never leaves a truncated file behind.
type File struct {
	mu   sync.Mutex
	path string
}

// OpenFile returns a File store rooted at path. The file is created lazily
// on the first write.
func OpenFile(path string) (*File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("localstore: path must not be empty")
	}
	return &File{path: path}, nil
}

func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := vals[key]
	return v, ok, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals, err := f.load()
	if err != nil {
		return err
	}
	vals[key] = value
	return f.save(vals)
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := vals[key]; !ok {
		return nil
	}
	delete(vals, key)
	return f.save(vals)
}

func (f *File) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("localstore: read %s: %w", f.path, err)
	}
	vals := make(map[string]string)
	if len(strings.TrimSpace(string(raw))) == 0 {
		return vals, nil
	}
	if err := json.Unmarshal(raw, &vals); err != nil {
		return nil, fmt.Errorf("localstore: decode %s: %w", f.path, err)
	}
	return vals, nil
}

func (f *File) save(vals map[string]string) error {
	raw, err := json.Marshal(vals)
	if err != nil {
		return fmt.Errorf("localstore: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("localstore: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".localstore-*")
	if err != nil {
		return fmt.Errorf("localstore: create temp: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("localstore: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("localstore: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("localstore: replace %s: %w", f.path, err)
	}
	return nil
}
