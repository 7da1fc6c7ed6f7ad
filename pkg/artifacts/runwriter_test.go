package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/labops-dev/labops/pkg/schema"
)

func TestWriteRunJsonRoundTrips(t *testing.T) {
	dir := t.TempDir()
	runInfo := schema.RunInfo{
		RunID: "run-1",
		Config: schema.RunConfig{
			ScenarioID: "scenario-1",
			Backend:    "sdkstub",
			Seed:       42,
			DurationMs: 1000,
		},
	}

	writtenPath, err := WriteRunJson(runInfo, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if writtenPath != filepath.Join(dir, "run.json") {
		t.Fatalf("unexpected written path: %s", writtenPath)
	}

	contents, err := os.ReadFile(writtenPath)
	if err != nil {
		t.Fatalf("failed to read run.json: %v", err)
	}

	var roundTripped schema.RunInfo
	if err := json.Unmarshal(contents, &roundTripped); err != nil {
		t.Fatalf("failed to parse run.json: %v", err)
	}
	if roundTripped.RunID != "run-1" || roundTripped.Config.Backend != "sdkstub" {
		t.Fatalf("unexpected round-tripped run info: %+v", roundTripped)
	}
}

func TestWriteRunJsonRejectsEmptyOutputDir(t *testing.T) {
	if _, err := WriteRunJson(schema.RunInfo{}, ""); err == nil {
		t.Fatal("expected error for empty output directory")
	}
}
