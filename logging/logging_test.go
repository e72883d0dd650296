package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingWriter_KeepsOneBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.log")
	w, err := openRotating(path, 16)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("0123456789abcdefXYZ"))
	require.NoError(t, err)
	_, err = w.Write([]byte("next"))
	require.NoError(t, err)

	backup, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdefXYZ", string(backup))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "next", string(current))
}

func TestRotatingWriter_ReportsFailedRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.log")
	// A non-empty directory at the backup path makes the rename fail.
	require.NoError(t, os.MkdirAll(filepath.Join(path+".1", "keep"), 0o755))

	w, err := openRotating(path, 8)
	require.NoError(t, err)
	defer w.Close()

	n, err := w.Write([]byte("0123456789"))
	assert.Equal(t, 10, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rotate log")

	_, err = w.Write([]byte("after"))
	require.NoError(t, err)
	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "after", string(current), "file is truncated when no backup can be kept")
}

func TestRotatingWriter_OversizedFileMovedAsideOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.log")
	require.NoError(t, os.WriteFile(path, []byte("left over from last time"), 0o644))

	w, err := openRotating(path, 8)
	require.NoError(t, err)
	_, err = w.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	backup, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "left over from last time", string(backup))
	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(current))

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, w.Close())
}

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	log, closer, err := New(Config{Level: "debug", File: path})
	require.NoError(t, err)

	log.With(String("site", "generic")).Info("run finished", Int("candidates", 3))
	_ = log.Sync()
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"run finished"`)
	assert.Contains(t, string(data), `"site":"generic"`)
	assert.Contains(t, string(data), `"candidates":3`)
}

func TestParseLevel_DefaultsToInfo(t *testing.T) {
	assert.Equal(t, "info", parseLevel("nonsense").String())
	assert.Equal(t, "warn", parseLevel("WARNING").String())
}
