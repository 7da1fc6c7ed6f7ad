package artifacts

import (
	"os"
	"strings"
	"testing"

	"github.com/labops-dev/labops/pkg/backends/real"
	"github.com/labops-dev/labops/pkg/schema"
)

func TestWriteConfigReportMarkdownRendersStatusIconsAndSummary(t *testing.T) {
	dir := t.TempDir()
	runInfo := schema.RunInfo{RunID: "run-1", Config: schema.RunConfig{ScenarioID: "scenario-1", Backend: "real"}}
	applyResult := real.ApplyParamsResult{
		ReadbackRows: []real.ReadbackRow{
			{GenericKey: "exposure", NodeName: "ExposureTime", RequestedValue: "5000", ActualValue: "5000", Supported: true, Applied: true},
			{GenericKey: "gain", NodeName: "Gain", RequestedValue: "10", ActualValue: "9.5", Supported: true, Applied: true, Adjusted: true},
			{GenericKey: "roi", RequestedValue: "1920x1080", Supported: false, Applied: false, Reason: "node not found"},
		},
	}

	path, err := WriteConfigReportMarkdown(runInfo, nil, applyResult, real.ApplyBestEffort, "", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config_report.md: %v", err)
	}
	text := string(contents)

	for _, want := range []string{"✅ applied: 1", "⚠ adjusted: 1", "❌ unsupported: 1", "units: us; validated range"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in config report, got:\n%s", want, text)
		}
	}
}

func TestWriteConfigReportMarkdownHandlesNoRows(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteConfigReportMarkdown(schema.RunInfo{}, nil, real.ApplyParamsResult{}, real.ApplyStrict, "", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	contents, _ := os.ReadFile(path)
	if !strings.Contains(string(contents), "no config rows were captured") {
		t.Fatal("expected fallback row for empty config report")
	}
}
