package orchestrator

import (
	"context"
	"testing"

	"github.com/labops-dev/labops/pkg/backends/sim"
	"github.com/labops-dev/labops/pkg/scenario"
)

func TestReleaseCoordinatorRecordsSuccessfulRelease(t *testing.T) {
	backend := sim.New(scenario.Scenario{ScenarioID: "s1", DurationMs: 100, CameraFPS: 10})
	ctx := context.Background()
	if _, err := backend.Connect(ctx); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	if err := backend.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	coordinator := NewReleaseCoordinator()
	if err := coordinator.Release(ctx, backend, "run-1"); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}

	log := coordinator.AuditLog()
	if len(log) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(log))
	}
	if !log[0].Success {
		t.Fatalf("expected success, got error: %v", log[0].Error)
	}
	if log[0].RunID != "run-1" || log[0].Backend != "sim" {
		t.Fatalf("unexpected audit entry: %+v", log[0])
	}
}
