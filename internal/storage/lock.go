package storage

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another imgpull process holds the run lock
var ErrLocked = errors.New("another imgpull run is already rewriting this vault")

// RunLock is an advisory file lock held for the duration of a rewrite run
type RunLock struct {
	lock *flock.Flock
}

// AcquireRunLock takes the lock at path without blocking
func AcquireRunLock(path string) (*RunLock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &RunLock{lock: lock}, nil
}

// Path returns the lock file path
func (l *RunLock) Path() string {
	return l.lock.Path()
}

// Release unlocks the run lock
func (l *RunLock) Release() error {
	return l.lock.Unlock()
}
