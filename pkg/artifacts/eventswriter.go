package artifacts

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/labops-dev/labops/pkg/errs"
	"github.com/labops-dev/labops/pkg/events"
	"github.com/labops-dev/labops/pkg/schema"
)

// WriteEventsJsonl emits events.jsonl: one events.Line(ev) per Event, in the
// order the caller provides (acquisition order for frame events, append
// order otherwise), newline-terminated.
func WriteEventsJsonl(runEvents []schema.Event, outputDir string) (string, error) {
	if err := ensureOutputDir(outputDir); err != nil {
		return "", err
	}

	var out strings.Builder
	for _, ev := range runEvents {
		out.WriteString(events.Line(ev))
		out.WriteByte('\n')
	}

	writtenPath := filepath.Join(outputDir, "events.jsonl")
	if err := os.WriteFile(writtenPath, []byte(out.String()), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to open output file: "+writtenPath, err)
	}
	return writtenPath, nil
}
