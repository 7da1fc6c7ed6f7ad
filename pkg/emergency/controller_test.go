package emergency

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labops-dev/labops/pkg/errs"
)

func TestControllerStopFileTriggersStop(t *testing.T) {
	stopFile := filepath.Join(t.TempDir(), "stop")
	c := New(Config{StopFile: stopFile, PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Start(ctx)

	if err := c.CreateStopFile(); err != nil {
		t.Fatalf("unexpected error creating stop file: %v", err)
	}

	select {
	case <-c.StopChannel():
	case <-time.After(time.Second):
		t.Fatal("expected stop channel to close after stop file appears")
	}

	if !c.IsStopped() {
		t.Fatal("expected IsStopped to be true")
	}
	if c.Reason() == "" {
		t.Fatal("expected a non-empty stop reason")
	}
}

func TestControllerWatchContextCancelsOnStop(t *testing.T) {
	c := New(Config{})

	parent := context.Background()
	child, cancel := c.WatchContext(parent)
	defer cancel()

	c.Stop("manual trigger")

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("expected derived context to cancel once the controller stops")
	}
}

func TestControllerInterruptError(t *testing.T) {
	c := New(Config{})

	if err := c.InterruptError(); err != nil {
		t.Fatalf("expected no error before stop, got %v", err)
	}

	c.Stop("test")

	err := c.InterruptError()
	if err == nil {
		t.Fatal("expected a runtime interrupt error after stop")
	}
	if kind, ok := errs.KindOf(err); !ok || kind != errs.RuntimeInterrupt {
		t.Fatalf("expected errs.RuntimeInterrupt, got %v (ok=%v)", kind, ok)
	}
}

func TestControllerCreateAndRemoveStopFile(t *testing.T) {
	stopFile := filepath.Join(t.TempDir(), "manual-stop")
	c := New(Config{StopFile: stopFile})

	if err := c.CreateStopFile(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(stopFile); err != nil {
		t.Fatalf("expected stop file to exist: %v", err)
	}

	if err := c.RemoveStopFile(); err != nil {
		t.Fatalf("unexpected error removing stop file: %v", err)
	}
	if _, err := os.Stat(stopFile); !os.IsNotExist(err) {
		t.Fatalf("expected stop file to be gone, stat err: %v", err)
	}

	// Removing again is a no-op, not an error.
	if err := c.RemoveStopFile(); err != nil {
		t.Fatalf("unexpected error on second remove: %v", err)
	}
}
