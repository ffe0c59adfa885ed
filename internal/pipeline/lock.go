package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/mrz1836/herald/internal/constants"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/flock"
)

// LockOptions configures AcquireRunLock.
type LockOptions struct {
	// Policy decides what happens when the directory is already owned.
	Policy constants.ConcurrencyPolicy

	// QueueTimeout bounds the wait under the queue policy.
	QueueTimeout time.Duration

	// PollInterval is how often the file lock is retried while queued.
	PollInterval time.Duration
}

//nolint:gochecknoglobals // process-wide registry of per-directory semaphores
var (
	runSemaphoresMu sync.Mutex
	runSemaphores   = make(map[string]*semaphore.Weighted)
)

func runSemaphore(key string) *semaphore.Weighted {
	runSemaphoresMu.Lock()
	defer runSemaphoresMu.Unlock()
	sem, ok := runSemaphores[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		runSemaphores[key] = sem
	}
	return sem
}

// AcquireRunLock makes the caller the only active run for resultsDir, both
// within this process and across processes. The returned release function
// must be called when the run ends.
//
// Under the reject policy a second caller fails immediately with
// ErrRunInProgress. Under the queue policy it waits up to QueueTimeout and
// then fails with ErrRunInProgress; cancelling ctx while waiting returns
// ErrCancelled.
func AcquireRunLock(ctx context.Context, resultsDir string, opts LockOptions) (func(), error) {
	abs, err := filepath.Abs(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve results directory: %w", err)
	}
	if opts.Policy == "" {
		opts.Policy = constants.ConcurrencyReject
	}
	if opts.QueueTimeout <= 0 {
		opts.QueueTimeout = constants.DefaultQueueTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = constants.LockPollInterval
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.QueueTimeout)
	defer cancel()

	sem := runSemaphore(abs)
	if err := acquireSemaphore(ctx, waitCtx, sem, abs, opts); err != nil {
		return nil, err
	}

	fileLock, err := acquireFileLock(ctx, waitCtx, filepath.Join(abs, constants.LockFileName), opts)
	if err != nil {
		sem.Release(1)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = fileLock.Release()
			sem.Release(1)
		})
	}, nil
}

func acquireSemaphore(ctx, waitCtx context.Context, sem *semaphore.Weighted, dir string, opts LockOptions) error {
	if sem.TryAcquire(1) {
		return nil
	}
	if opts.Policy == constants.ConcurrencyReject {
		return fmt.Errorf("%w: %s", heralderrors.ErrRunInProgress, dir)
	}
	if err := sem.Acquire(waitCtx, 1); err != nil {
		return waitError(ctx, dir, opts.QueueTimeout)
	}
	return nil
}

func acquireFileLock(ctx, waitCtx context.Context, path string, opts LockOptions) (*flock.File, error) {
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		lock, err := flock.TryLock(path)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, flock.ErrLocked) {
			return nil, err
		}
		if opts.Policy == constants.ConcurrencyReject {
			return nil, fmt.Errorf("%w: %s held by another process", heralderrors.ErrRunInProgress, path)
		}

		select {
		case <-waitCtx.Done():
			return nil, waitError(ctx, filepath.Dir(path), opts.QueueTimeout)
		case <-ticker.C:
		}
	}
}

func waitError(ctx context.Context, dir string, timeout time.Duration) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w while waiting for %s: %w", heralderrors.ErrCancelled, dir, ctx.Err())
	}
	return fmt.Errorf("%w: %s still busy after %s", heralderrors.ErrRunInProgress, dir, timeout)
}
