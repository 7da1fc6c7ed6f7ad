package artifacts

import (
	"encoding/json"
	"os"
	"testing"
	"time"
)

func TestWriteHostProbeJsonCapturesConnectFailure(t *testing.T) {
	dir := t.TempDir()
	probedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	path, err := WriteHostProbeJson("real", "device unavailable after disconnect", probedAt, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read hostprobe.json: %v", err)
	}

	var probe HostProbe
	if err := json.Unmarshal(contents, &probe); err != nil {
		t.Fatalf("failed to decode hostprobe.json: %v", err)
	}
	if probe.BackendName != "real" {
		t.Fatalf("expected backend_name real, got %q", probe.BackendName)
	}
	if probe.ConnectError == "" {
		t.Fatal("expected connect_error to be populated")
	}
	if probe.ProbedAtUTC != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected probed_at_utc: %q", probe.ProbedAtUTC)
	}
}
