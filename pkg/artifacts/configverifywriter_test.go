package artifacts

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/labops-dev/labops/pkg/backends/real"
	"github.com/labops-dev/labops/pkg/schema"
)

func TestWriteConfigVerifyJsonSummarizesCounts(t *testing.T) {
	dir := t.TempDir()
	runInfo := schema.RunInfo{RunID: "run-1", Config: schema.RunConfig{ScenarioID: "scenario-1", Backend: "real"}}
	result := real.ApplyParamsResult{
		ReadbackRows: []real.ReadbackRow{
			{GenericKey: "exposure", RequestedValue: "5000", ActualValue: "5000", Supported: true, Applied: true},
			{GenericKey: "gain", RequestedValue: "10", ActualValue: "9.5", Supported: true, Applied: true, Adjusted: true},
			{GenericKey: "roi", RequestedValue: "1920x1080", Supported: false, Applied: false, Reason: "node not found"},
		},
	}

	path, err := WriteConfigVerifyJson(runInfo, result, real.ApplyBestEffort, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config_verify.json: %v", err)
	}

	var document configVerifyDocument
	if err := json.Unmarshal(contents, &document); err != nil {
		t.Fatalf("failed to parse config_verify.json: %v", err)
	}
	if document.Summary.RequestedCount != 3 || document.Summary.SupportedCount != 2 ||
		document.Summary.UnsupportedCount != 1 || document.Summary.AppliedCount != 2 ||
		document.Summary.AdjustedCount != 1 {
		t.Fatalf("unexpected summary: %+v", document.Summary)
	}
	if len(document.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(document.Rows))
	}
}

func TestWriteConfigVerifyJsonEmitsEmptyArrayForNoRows(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteConfigVerifyJson(schema.RunInfo{}, real.ApplyParamsResult{}, real.ApplyStrict, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	contents, _ := os.ReadFile(path)
	var document configVerifyDocument
	if err := json.Unmarshal(contents, &document); err != nil {
		t.Fatalf("failed to parse config_verify.json: %v", err)
	}
	if document.Rows == nil {
		t.Fatal("expected rows to be an empty array, not null")
	}
}
