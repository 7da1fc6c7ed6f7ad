package lock

import (
	"path/filepath"
	"testing"

	"github.com/labops-dev/labops/pkg/errs"
)

func TestAcquireCreatesParentDirAndLocks(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "nested", "labops.lock")

	pl, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pl.Release()

	if pl.Path() != lockPath {
		t.Fatalf("expected path %q, got %q", lockPath, pl.Path())
	}
}

func TestAcquireFailsOnForeignLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "labops.lock")

	first, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("unexpected error acquiring first lock: %v", err)
	}
	defer first.Release()

	_, err = Acquire(lockPath)
	if err == nil {
		t.Fatal("expected an error acquiring an already-held lock")
	}
	if kind, ok := errs.KindOf(err); !ok || kind != errs.LockContention {
		t.Fatalf("expected errs.LockContention, got %v (ok=%v)", kind, ok)
	}
}

func TestReleaseIsSafeOnNil(t *testing.T) {
	var pl *ProcessLock
	if err := pl.Release(); err != nil {
		t.Fatalf("expected nil receiver Release to be a no-op, got %v", err)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "labops.lock")

	first, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("unexpected error releasing: %v", err)
	}

	second, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("expected reacquire to succeed after release, got %v", err)
	}
	defer second.Release()
}
