package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicolagi/gemla/store"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gemla.ini")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	path := writeConfig(t, "[gemla]\ngenerations_per_height = 3\n")

	cfg, format, err := LoadFile(path)
	require.NoError(t, err)
	assert.EqualValues(t, 3, cfg.GenerationsPerHeight)
	assert.False(t, cfg.Overwrite)
	assert.Equal(t, 0, cfg.MaxConcurrentTasks)
	assert.Equal(t, store.FormatJSON, format)
}

func TestLoadFileAllFields(t *testing.T) {
	path := writeConfig(t, `[gemla]
generations_per_height = 5
overwrite = true
max_concurrent_tasks = 4
format = gob
`)

	cfg, format, err := LoadFile(path)
	require.NoError(t, err)
	assert.EqualValues(t, 5, cfg.GenerationsPerHeight)
	assert.True(t, cfg.Overwrite)
	assert.Equal(t, 4, cfg.MaxConcurrentTasks)
	assert.Equal(t, store.FormatGob, format)
}

func TestLoadFileMissingGenerationsPerHeight(t *testing.T) {
	path := writeConfig(t, "[gemla]\noverwrite = true\n")
	_, _, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileUnknownFormat(t *testing.T) {
	path := writeConfig(t, "[gemla]\ngenerations_per_height = 1\nformat = msgpack\n")
	_, _, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileMissingFile(t *testing.T) {
	_, _, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	require.Error(t, err)
}
