package report

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mrz1836/herald/internal/fileutil"
)

// ArchiveDir zips every regular file under dir, except those skip accepts,
// into dest. Paths inside the archive are relative to dir with forward
// slashes. The archive is written to a temp file and renamed into place.
func ArchiveDir(dir, dest string, skip func(name string) bool) (int, error) {
	tmp := dest + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileutil.FilePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}

	zw := zip.NewWriter(f)
	count := 0
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if path == tmp || path == dest || (skip != nil && skip(d.Name())) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if err := addFile(zw, path, filepath.ToSlash(rel)); err != nil {
			return err
		}
		count++
		return nil
	})

	closeErr := zw.Close()
	if err := f.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	if walkErr != nil || closeErr != nil {
		_ = os.Remove(tmp)
		if walkErr != nil {
			return 0, fmt.Errorf("failed to archive %s: %w", dir, walkErr)
		}
		return 0, fmt.Errorf("failed to finish archive: %w", closeErr)
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("failed to move archive into place: %w", err)
	}
	return count, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path) //#nosec G304 -- walking the results directory
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
