// Package filelock is a cross-process advisory lock built on an O_EXCL lock file.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	lockRetries    = 50
	lockRetryDelay = 100 * time.Millisecond
	lockStaleAfter = 30 * time.Second
)

// Lock is a held lock file.
type Lock struct {
	lockFile *os.File
	lockPath string
}

// Acquire takes the lock guarding filePath. The lock is a sibling
// "<file>.lock" created with O_EXCL; a lock older than lockStaleAfter is assumed
// to belong to a crashed process and is removed.
func Acquire(ctx context.Context, filePath string) (*Lock, error) {
	lockPath := filePath + ".lock"

	for i := 0; i < lockRetries; i++ {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(lockFile, "%d", os.Getpid())
			return &Lock{lockFile: lockFile, lockPath: lockPath}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to acquire file lock: %w", err)
		}

		if info, statErr := os.Stat(lockPath); statErr == nil &&
			time.Since(info.ModTime()) > lockStaleAfter {
			if remErr := os.Remove(lockPath); remErr != nil && !os.IsNotExist(remErr) {
				return nil, fmt.Errorf("failed to remove stale lock file %s: %w", lockPath, remErr)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}

	return nil, fmt.Errorf(
		"timeout waiting for file lock after %v",
		time.Duration(lockRetries)*lockRetryDelay,
	)
}

// Release drops the lock. Releasing twice returns the os.Remove error of the second call.
func (fl *Lock) Release() error {
	if fl.lockFile != nil {
		fl.lockFile.Close()
		fl.lockFile = nil
	}
	return os.Remove(fl.lockPath)
}
