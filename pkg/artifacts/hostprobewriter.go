package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/labops-dev/labops/pkg/errs"
)

// HostProbe is the minimal host-identity snapshot captured when a backend
// refuses to connect, so a triage bundle is never empty even on the
// earliest possible failure (spec.md §7 backend_connect_failure).
type HostProbe struct {
	Hostname     string `json:"hostname"`
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	GoVersion    string `json:"go_version"`
	ProbedAtUTC  string `json:"probed_at_utc"`
	BackendName  string `json:"backend_name"`
	ConnectError string `json:"connect_error"`
}

// WriteHostProbeJson emits hostprobe.json alongside scenario.json/run.json
// whenever a run fails before any frames were pulled.
func WriteHostProbeJson(backendName, connectErr string, probedAt time.Time, outputDir string) (string, error) {
	if err := ensureOutputDir(outputDir); err != nil {
		return "", err
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	probe := HostProbe{
		Hostname:     hostname,
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		GoVersion:    runtime.Version(),
		ProbedAtUTC:  formatUTCTimestamp(probedAt),
		BackendName:  backendName,
		ConnectError: connectErr,
	}

	payload, err := json.MarshalIndent(probe, "", "  ")
	if err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to encode host probe", err)
	}

	writtenPath := filepath.Join(outputDir, "hostprobe.json")
	if err := os.WriteFile(writtenPath, append(payload, '\n'), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to open output file: "+writtenPath, err)
	}
	return writtenPath, nil
}
