// Package locks contains the advisory lock file that keeps scheduled publishers of the same trees apart.
package locks

import (
	"github.com/gofrs/flock"

	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

// LockedError is returned when another process holds the lock.
type LockedError struct {
	Path string
}

func (err LockedError) Error() string {
	return "lock file " + err.Path + " is held by another process"
}

// Lockfile is an advisory lock on a file.
type Lockfile struct {
	*flock.Flock
}

// NewLockfile returns an unlocked lock file at filename.
func NewLockfile(filename string) *Lockfile {
	return &Lockfile{
		flock.New(filename),
	}
}

// TryLock acquires the lock without waiting, failing with LockedError when it is held elsewhere.
func (lockfile *Lockfile) TryLock(l log.Logger) error {
	l.Tracef("Try to lock file %s", lockfile.Path())

	locked, err := lockfile.Flock.TryLock()
	if err != nil {
		return errors.New(err)
	}

	if !locked {
		return errors.New(LockedError{Path: lockfile.Path()})
	}

	l.Tracef("Locked file %s", lockfile.Path())

	return nil
}

// Unlock releases the lock if it is held.
func (lockfile *Lockfile) Unlock(l log.Logger) {
	if !lockfile.Locked() {
		return
	}

	l.Tracef("Unlock file %s", lockfile.Path())

	if err := lockfile.Flock.Unlock(); err != nil {
		l.Warnf("Failed to unlock file %s: %v", lockfile.Path(), err)
	}
}
