// Package flock provides cross-platform exclusive file locks.
//
// herald takes one lock file per results directory so that two processes
// never run the pipeline against the same directory at once:
//
//	lock, err := flock.TryLock(filepath.Join(dir, ".herald.lock"))
//	if errors.Is(err, flock.ErrLocked) {
//	    // another process owns the directory
//	}
//	defer lock.Release()
package flock
