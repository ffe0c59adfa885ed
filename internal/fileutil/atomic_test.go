package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "version.txt")

	require.NoError(t, AtomicWrite(path, []byte("3\n")))
	require.NoError(t, AtomicWrite(path, []byte("4\n")))

	data, err := os.ReadFile(path) //#nosec G304 -- test path
	require.NoError(t, err)
	assert.Equal(t, "4\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestAtomicWrite_MissingDir(t *testing.T) {
	err := AtomicWrite(filepath.Join(t.TempDir(), "nope", "f.txt"), []byte("x"))
	require.Error(t, err)
}

func TestAppendLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.jsonl")

	require.NoError(t, AppendLine(path, []byte(`{"step":"a"}`)))
	require.NoError(t, AppendLine(path, []byte("{\"step\":\"b\"}\n")))

	data, err := os.ReadFile(path) //#nosec G304 -- test path
	require.NoError(t, err)
	assert.Equal(t, "{\"step\":\"a\"}\n{\"step\":\"b\"}\n", string(data))
}

func TestNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full")
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(full, []byte("x"), FilePerm))
	require.NoError(t, os.WriteFile(empty, nil, FilePerm))

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"non-empty", full, true},
		{"empty", empty, false},
		{"missing", filepath.Join(dir, "missing"), false},
		{"directory", dir, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := NonEmptyFile(tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}
