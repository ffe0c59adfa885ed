package flock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
)

// ErrLocked indicates the lock is held by another owner.
var ErrLocked = errors.New("file is locked")

// File is a held lock. The holder's PID is written into the file for
// diagnostics; the file itself is left in place on release.
type File struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// TryLock opens (creating if needed) path and takes an exclusive lock without
// blocking. It returns an error wrapping ErrLocked when another owner holds it.
func TryLock(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) //#nosec G304 -- lock path is constructed internally
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := Exclusive(f.Fd()); err != nil {
		_ = f.Close()
		if isContention(err) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	return &File{f: f, path: path}, nil
}

// Path returns the lock file path.
func (l *File) Path() string {
	return l.path
}

// Release unlocks and closes the file. It is safe to call more than once.
func (l *File) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	unlockErr := Unlock(l.f.Fd())
	closeErr := l.f.Close()
	l.f = nil
	if unlockErr != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.path, unlockErr)
	}
	return closeErr
}
