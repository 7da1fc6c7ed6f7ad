package real

import (
	"context"
	"testing"

	"github.com/labops-dev/labops/pkg/backends"
)

func backendsPullRequest() backends.PullRequest {
	return backends.PullRequest{DurationMs: 200, FPS: 25, DefaultSize: 4096}
}

func TestBackendLifecycleRequiresConnectBeforeStart(t *testing.T) {
	b := New()
	if err := b.Start(context.Background()); err == nil {
		t.Fatal("expected start before connect to fail")
	}
}

func TestBackendPullFramesRequiresRunningStream(t *testing.T) {
	b := New()
	if _, err := b.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	if _, err := b.PullFrames(context.Background(), backendsPullRequest()); err == nil {
		t.Fatal("expected pull_frames before start to fail")
	}
}

func TestBackendPullFramesProducesFramesAfterStart(t *testing.T) {
	b := New()
	if _, err := b.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	result, err := b.PullFrames(context.Background(), backendsPullRequest())
	if err != nil {
		t.Fatalf("unexpected pull_frames error: %v", err)
	}
	if len(result.Frames) == 0 {
		t.Fatal("expected at least one frame from a non-zero duration pull")
	}
}

func TestBackendDisconnectAfterPullsEnv(t *testing.T) {
	t.Setenv("LABOPS_REAL_DISCONNECT_AFTER_PULLS", "1")
	b := New()
	if _, err := b.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	if _, err := b.PullFrames(context.Background(), backendsPullRequest()); err == nil {
		t.Fatal("expected simulated disconnect on first pull")
	}

	if _, err := b.Connect(context.Background()); err == nil {
		t.Fatal("expected reconnect to keep failing once latched")
	}
}
