//go:build !windows

package storage

import (
	"os"
	"syscall"
)

// tryLock takes a non-blocking exclusive flock(2) on f.
func tryLock(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

func unlockFile(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
