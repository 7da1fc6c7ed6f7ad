package orchestrator

import (
	"context"
	"time"

	"github.com/labops-dev/labops/pkg/backends"
)

// AuditEntry is one audit-logged release action, grounded on the teacher's
// cleanup coordinator's AuditEntry shape.
type AuditEntry struct {
	Timestamp time.Time
	RunID     string
	Backend   string
	Success   bool
	Error     error
}

// ReleaseCoordinator owns the run-scoped backend handle and guarantees it
// is stopped on every exit path (spec.md §5: "the backend is owned
// exclusively for the duration of a run; it is always stopped and released
// on every exit path"). Adapted from the teacher's cleanup.Coordinator,
// generalized from sidecar teardown to a single backend handle release.
type ReleaseCoordinator struct {
	auditLog []AuditEntry
}

// NewReleaseCoordinator constructs an empty release coordinator.
func NewReleaseCoordinator() *ReleaseCoordinator {
	return &ReleaseCoordinator{}
}

// Release stops backend and records the outcome in the audit log
// regardless of success, so a failed stop is never silently dropped.
func (c *ReleaseCoordinator) Release(ctx context.Context, backend backends.Backend, runID string) error {
	err := backend.Stop(ctx)
	c.auditLog = append(c.auditLog, AuditEntry{
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Backend:   backend.Name(),
		Success:   err == nil,
		Error:     err,
	})
	return err
}

// AuditLog returns every release recorded so far, in call order.
func (c *ReleaseCoordinator) AuditLog() []AuditEntry {
	return c.auditLog
}
