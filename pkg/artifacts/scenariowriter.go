package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/labops-dev/labops/pkg/errs"
)

// WriteScenarioJson copies the input scenario's raw JSON tree verbatim into
// the bundle as scenario.json, so the triage trail always shows exactly
// what was run (spec.md §4.8).
func WriteScenarioJson(scenarioRaw map[string]interface{}, outputDir string) (string, error) {
	if err := ensureOutputDir(outputDir); err != nil {
		return "", err
	}

	payload, err := json.MarshalIndent(scenarioRaw, "", "  ")
	if err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to encode scenario", err)
	}

	writtenPath := filepath.Join(outputDir, "scenario.json")
	if err := os.WriteFile(writtenPath, append(payload, '\n'), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to open output file: "+writtenPath, err)
	}
	return writtenPath, nil
}
