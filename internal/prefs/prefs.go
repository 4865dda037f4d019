// Package prefs persists the theme preference. Storage failures never reach
// the caller: a preference that cannot be read is the default, one that
// cannot be written is simply not remembered.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Key is the fixed storage key of the theme preference.
const Key = "theme"

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"

	Default = Dark
)

// Parse maps a stored value to a theme, falling back to Default.
func Parse(v string) Theme {
	switch Theme(v) {
	case Light, Dark:
		return Theme(v)
	}
	return Default
}

// Toggle flips light and dark.
func (t Theme) Toggle() Theme {
	if t == Light {
		return Dark
	}
	return Light
}

// Store is a small key/value preference store.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Load reads the theme once. Any failure yields Default.
func Load(s Store) Theme {
	v, ok, err := s.Get(Key)
	if err != nil {
		log.Debug().Err(err).Msg("theme preference unreadable")
		return Default
	}
	if !ok {
		return Default
	}
	return Parse(v)
}

// Save writes the theme, ignoring storage failures.
func Save(s Store, t Theme) {
	if err := s.Set(Key, string(t)); err != nil {
		log.Debug().Err(err).Msg("theme preference not saved")
	}
}

// FileStore keeps preferences as a flat YAML mapping in one file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

// DefaultPath is prefs.yaml under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "foliocraft", "prefs.yaml"), nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]string{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path, err)
	}
	return m, nil
}

func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		// an unreadable file is replaced rather than blocking the write
		m = map[string]string{}
	}
	m[key] = value
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o644)
}
