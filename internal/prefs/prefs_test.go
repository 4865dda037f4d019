package prefs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsDark(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "prefs.yaml"))
	assert.Equal(t, Dark, Load(fs))
}

func TestToggleRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	fs := NewFileStore(path)

	Save(fs, Load(fs).Toggle())
	assert.Equal(t, Light, Load(NewFileStore(path)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "theme: light\n", string(data))

	Save(fs, Light.Toggle())
	assert.Equal(t, Dark, Load(fs))
}

func TestUnknownValueFallsBack(t *testing.T) {
	assert.Equal(t, Dark, Parse("sepia"))
	assert.Equal(t, Light, Parse("light"))
}

func TestCorruptFileIsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: [unclosed"), 0o644))
	fs := NewFileStore(path)
	assert.Equal(t, Dark, Load(fs))

	Save(fs, Light)
	assert.Equal(t, Light, Load(fs))
}

type brokenStore struct{}

func (brokenStore) Get(string) (string, bool, error) { return "", false, errors.New("denied") }
func (brokenStore) Set(string, string) error         { return errors.New("denied") }

func TestStorageFailuresAreSilent(t *testing.T) {
	assert.Equal(t, Default, Load(brokenStore{}))
	assert.NotPanics(t, func() { Save(brokenStore{}, Light) })
}
