package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLockTimeout indicates the lock acquisition timed out
var ErrLockTimeout = errors.New("lock acquisition timed out")

// lockRetryDelay is the poll interval while waiting for a held lock.
const lockRetryDelay = 25 * time.Millisecond

// FileLock provides an exclusive lock on a file, shared between processes.
// The lock is released when the process exits or crashes.
// A FileLock instance is not safe for concurrent use; separate instances on the
// same path exclude each other, also within one process.
type FileLock struct {
	path  string
	flock *flock.Flock
}

// NewFileLock creates a new file lock at the given path.
// The lock file and its parent directories will be created if they don't exist.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		path:  path,
		flock: flock.New(path),
	}
}

// TryLock attempts to acquire the exclusive lock without blocking.
// Returns true if the lock was acquired, false if it is held elsewhere.
func (l *FileLock) TryLock() (bool, error) {
	if err := l.ensureDir(); err != nil {
		return false, err
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("flock failed: %w", err)
	}
	return acquired, nil
}

// Lock acquires the exclusive lock, blocking until it's available or timeout expires.
// Returns ErrLockTimeout if the timeout expires before the lock is acquired.
func (l *FileLock) Lock(timeout time.Duration) error {
	return l.LockWithContext(context.Background(), timeout)
}

// LockWithContext acquires the exclusive lock, blocking until it's available,
// timeout expires, or the context is canceled.
func (l *FileLock) LockWithContext(ctx context.Context, timeout time.Duration) error {
	if err := l.ensureDir(); err != nil {
		return err
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	acquired, err := l.flock.TryLockContext(lockCtx, lockRetryDelay)
	if acquired {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return ErrLockTimeout
	}
	return fmt.Errorf("flock failed: %w", err)
}

// Unlock releases the lock.
// It is safe to call Unlock on an unlocked FileLock (no-op).
func (l *FileLock) Unlock() error {
	if !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	return nil
}

// IsLocked returns true if the lock is currently held by this instance.
func (l *FileLock) IsLocked() bool {
	return l.flock.Locked()
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}

func (l *FileLock) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	return nil
}
