package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/labops-dev/labops/pkg/errs"
	"github.com/labops-dev/labops/pkg/schema"
)

// WriteRunJson emits the canonical run.json artifact: UTF-8 JSON written to
// <output_dir>/run.json, newline-terminated so it stays shell-friendly
// (cat, tail, diffs).
func WriteRunJson(runInfo schema.RunInfo, outputDir string) (string, error) {
	if err := ensureOutputDir(outputDir); err != nil {
		return "", err
	}

	payload, err := json.MarshalIndent(runInfo, "", "  ")
	if err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to encode run info", err)
	}

	writtenPath := filepath.Join(outputDir, "run.json")
	if err := os.WriteFile(writtenPath, append(payload, '\n'), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to open output file: "+writtenPath, err)
	}

	return writtenPath, nil
}
