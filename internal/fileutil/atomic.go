// Package fileutil holds the small file primitives shared by the artifact
// resolver and the run store.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// FilePerm is the permission for files herald writes.
	FilePerm = 0o600

	// DirPerm is the permission for directories herald creates.
	DirPerm = 0o750
)

// AtomicWrite writes data to path so readers only ever see the old or the
// new content: write to a temp file in the same directory, fsync, rename.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Chmod(tmpPath, FilePerm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// AppendLine appends entry to path as one line and syncs it to disk.
// The caller is responsible for serializing concurrent writers.
func AppendLine(path string, entry []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, FilePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if len(entry) == 0 || entry[len(entry)-1] != '\n' {
		entry = append(entry, '\n')
	}

	if _, err := f.Write(entry); err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}

	return f.Sync()
}

// NonEmptyFile reports whether path is a regular file with at least one byte.
func NonEmptyFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular() && info.Size() > 0, nil
}
