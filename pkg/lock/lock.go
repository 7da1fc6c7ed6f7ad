// Package lock enforces the single-concurrent-instance policy from
// spec.md §5: at most one labops run per host, guarded by a process lock
// file relative to the working directory.
package lock

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/labops-dev/labops/pkg/errs"
)

// ProcessLock wraps a non-blocking file lock. Presence of a lock held by a
// foreign process must fail the orchestrator before any outputs are
// written, per spec.md §5 and the lock_contention error kind (§7).
type ProcessLock struct {
	path string
	fl   *flock.Flock
}

// Acquire attempts to take the lock at path, creating parent directories as
// needed. It returns a *errs.TriageError with Kind=LockContention if another
// process currently holds it.
func Acquire(path string) (*ProcessLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errs.Wrap(errs.IOFailure, "failed to create lock directory", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, "failed to acquire process lock", err)
	}
	if !locked {
		return nil, errs.New(errs.LockContention, "another labops run appears active")
	}

	return &ProcessLock{path: path, fl: fl}, nil
}

// Release drops the lock. Safe to call multiple times.
func (p *ProcessLock) Release() error {
	if p == nil || p.fl == nil {
		return nil
	}
	return p.fl.Unlock()
}

// Path returns the lock file path this instance acquired.
func (p *ProcessLock) Path() string {
	if p == nil {
		return ""
	}
	return p.path
}
