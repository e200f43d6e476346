package storage

import (
	"context"
	"os"
	"time"
)

const lockPollInterval = 10 * time.Millisecond

// FileLock is an advisory cross-process lock held on path + ".lock".
// Two ytreact runs sharing a ledger serialize on it.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a file lock. The lock is not acquired until Lock is called.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path + ".lock"}
}

// Lock polls for the lock until it is held, timeout elapses (ErrLockTimeout)
// or ctx is done.
func (l *FileLock) Lock(ctx context.Context, timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return &StorageError{Op: "lock", Entity: "file", ID: l.path, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		if err := tryLock(f); err == nil {
			l.file = f
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			f.Close()
			if ctx.Err() == context.DeadlineExceeded {
				return ErrLockTimeout
			}
			return ctx.Err()
		}
	}
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	unlockFile(l.file)
	l.file.Close()
	os.Remove(l.path)
	l.file = nil
	return nil
}
