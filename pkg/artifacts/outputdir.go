// Package artifacts writes the per-run triage bundle: run identity,
// metrics, camera config evidence, and human-facing summaries. Grounded
// on original_source/src/artifacts/*.
package artifacts

import (
	"os"

	"github.com/labops-dev/labops/pkg/errs"
)

// ensureOutputDir creates outputDir (and any missing parents) so first-time
// runs and CI jobs can write artifacts without a pre-created directory.
func ensureOutputDir(outputDir string) error {
	if outputDir == "" {
		return errs.New(errs.InputInvalid, "output directory cannot be empty")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return errs.Wrap(errs.IOFailure, "failed to create output directory: "+outputDir, err)
	}
	return nil
}
