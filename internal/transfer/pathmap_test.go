package transfer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPath(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		key      string
		root     string
		expected string
	}{
		{"Collapses duplicate separators", "a/b/", "a/b/c//d.txt", "/out", "/out/c/d.txt"},
		{"Prefix without trailing slash", "a/b", "a/b/c.txt", "/out", "/out/c.txt"},
		{"Root with trailing slash", "logs/", "logs/2024/app.log", "/out/", "/out/2024/app.log"},
		{"Empty prefix", "", "x/y.bin", "dest", "dest/x/y.bin"},
		{"Partial segment prefix", "logs/app", "logs/app-1.log", "/out", "/out/-1.log"},
		{"Key equals prefix", "reports/q1.csv", "reports/q1.csv", "/out", "/out/q1.csv"},
		{"Directory marker", "a/", "a/b/", "/out", "/out/b/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LocalPath(tt.prefix, tt.key, tt.root)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.expected), got)
		})
	}
}

func TestLocalPathPrefixMismatch(t *testing.T) {
	_, err := LocalPath("a/b/", "other/c.txt", "/out")
	require.Error(t, err)

	var mismatch *PrefixMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "a/b/", mismatch.Prefix)
	assert.Equal(t, "other/c.txt", mismatch.Key)
}

func TestMapPathCreatesParents(t *testing.T) {
	root := t.TempDir()

	got, err := MapPath("data/", "data/2024/01/report.csv", root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "2024", "01", "report.csv"), got)

	info, err := os.Stat(filepath.Join(root, "2024", "01"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(got)
	assert.True(t, os.IsNotExist(err))

	// Idempotent for siblings and repeats.
	_, err = MapPath("data/", "data/2024/01/other.csv", root)
	require.NoError(t, err)
	_, err = MapPath("data/", "data/2024/01/report.csv", root)
	require.NoError(t, err)
}

func TestMapPathIgnoresDirectoryErrors(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o644))

	got, err := MapPath("", "blocked/inner.txt", root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(blocker, "inner.txt"), got)
}
