package artifacts

import (
	"os"
	"strings"
	"testing"
)

func TestWriteScenarioJsonCopiesRawTree(t *testing.T) {
	dir := t.TempDir()
	raw := map[string]interface{}{"scenario_id": "architecture_contract_pass", "camera": map[string]interface{}{"fps": float64(25)}}

	path, err := WriteScenarioJson(raw, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read scenario.json: %v", err)
	}
	text := string(contents)
	if !strings.Contains(text, `"scenario_id": "architecture_contract_pass"`) {
		t.Fatalf("expected scenario_id in output, got:\n%s", text)
	}
	if !strings.HasSuffix(text, "\n") {
		t.Fatal("expected trailing newline")
	}
}
