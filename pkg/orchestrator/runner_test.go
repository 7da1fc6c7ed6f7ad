package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labops-dev/labops/pkg/errs"
	"github.com/labops-dev/labops/pkg/scenario"
)

func floatPtr(v float64) *float64 { return &v }

func passingScenario() scenario.Scenario {
	return scenario.Scenario{
		Raw:        map[string]interface{}{"scenario_id": "architecture_contract_pass"},
		ScenarioID: "architecture_contract_pass",
		DurationMs: 800,
		CameraFPS:  25,
		Thresholds: scenario.Thresholds{MinAvgFPS: floatPtr(1.0)},
	}
}

// TestExecuteRunPassingBaseline covers spec.md §8 example 1: a passing
// baseline run with a generous min_avg_fps threshold.
func TestExecuteRunPassingBaseline(t *testing.T) {
	dir := t.TempDir()
	req := RunRequest{
		Scenario:    passingScenario(),
		BackendName: "sim",
		RunID:       "run-1",
		BundleDir:   dir,
	}

	outcome, err := ExecuteRun(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.ThresholdsPassed {
		t.Fatalf("expected thresholds to pass, failures: %v", outcome.ThresholdFailures)
	}
	if outcome.Report.AvgFPS < 24.5 || outcome.Report.AvgFPS > 25.5 {
		t.Fatalf("expected avg_fps in [24.5, 25.5], got %f", outcome.Report.AvgFPS)
	}

	summary, err := os.ReadFile(outcome.SummaryMarkdownPath)
	if err != nil {
		t.Fatalf("failed to read summary.md: %v", err)
	}
	if !strings.Contains(string(summary), "**PASS**") {
		t.Fatalf("expected summary.md to contain **PASS**, got:\n%s", summary)
	}

	for _, required := range []string{"scenario.json", "run.json", "events.jsonl", "metrics.csv", "metrics.json", "summary.md", "report.html"} {
		if _, err := os.Stat(filepath.Join(dir, required)); err != nil {
			t.Fatalf("expected bundle to contain %s: %v", required, err)
		}
	}

	manifest, err := os.ReadFile(outcome.ManifestPath)
	if err != nil {
		t.Fatalf("failed to read bundle_manifest.json: %v", err)
	}
	for _, required := range []string{"scenario.json", "run.json", "events.jsonl", "metrics.csv", "metrics.json", "summary.md", "report.html"} {
		if !strings.Contains(string(manifest), required) {
			t.Fatalf("expected bundle_manifest.json to list %s, got:\n%s", required, manifest)
		}
	}
}

// TestExecuteRunThresholdFailure covers spec.md §8 example 2: the same
// scenario with an unreachable min_avg_fps threshold.
func TestExecuteRunThresholdFailure(t *testing.T) {
	dir := t.TempDir()
	s := passingScenario()
	s.Thresholds.MinAvgFPS = floatPtr(1000)

	req := RunRequest{
		Scenario:    s,
		BackendName: "sim",
		RunID:       "run-2",
		BundleDir:   dir,
	}

	outcome, err := ExecuteRun(context.Background(), req)
	if err == nil {
		t.Fatal("expected a threshold_failure error")
	}
	if outcome.ThresholdsPassed {
		t.Fatal("expected thresholds to fail")
	}
	if len(outcome.ThresholdFailures) == 0 {
		t.Fatal("expected at least one threshold failure message")
	}

	summary, readErr := os.ReadFile(outcome.SummaryMarkdownPath)
	if readErr != nil {
		t.Fatalf("failed to read summary.md: %v", readErr)
	}
	if !strings.Contains(string(summary), "**FAIL**") {
		t.Fatalf("expected summary.md to contain **FAIL**, got:\n%s", summary)
	}
	if !strings.Contains(string(summary), "Threshold violations:") {
		t.Fatalf("expected summary.md to contain 'Threshold violations:', got:\n%s", summary)
	}

	for _, required := range []string{"scenario.json", "run.json", "events.jsonl", "metrics.csv", "metrics.json", "summary.md", "report.html", "bundle_manifest.json"} {
		if _, statErr := os.Stat(filepath.Join(dir, required)); statErr != nil {
			t.Fatalf("expected bundle to contain %s even on threshold failure: %v", required, statErr)
		}
	}
}

func TestExecuteRunUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	req := RunRequest{
		Scenario:    passingScenario(),
		BackendName: "not-a-backend",
		RunID:       "run-3",
		BundleDir:   dir,
	}

	_, err := ExecuteRun(context.Background(), req)
	if err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}

// TestExecuteRunInterrupted covers the graceful-interrupt boundary this
// package can actually honor: a ctx that is already Done by the time the
// pull returns still gets a full bundle flush and surfaces
// errs.RuntimeInterrupt instead of a bare success or a device_disconnect.
func TestExecuteRunInterrupted(t *testing.T) {
	dir := t.TempDir()
	req := RunRequest{
		Scenario:    passingScenario(),
		BackendName: "sim",
		RunID:       "run-4",
		BundleDir:   dir,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := ExecuteRun(ctx, req)
	require.Error(t, err)

	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.RuntimeInterrupt, kind)

	require.NotEmpty(t, outcome.ManifestPath)
	for _, required := range []string{"scenario.json", "run.json", "events.jsonl", "metrics.csv", "metrics.json", "summary.md", "report.html", "bundle_manifest.json"} {
		_, statErr := os.Stat(filepath.Join(dir, required))
		assert.NoErrorf(t, statErr, "expected bundle to contain %s even on interrupt", required)
	}

	events, readErr := os.ReadFile(outcome.EventsJSONLPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(events), "signal_interrupt")
}
