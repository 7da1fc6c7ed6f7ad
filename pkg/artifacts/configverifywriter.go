package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/labops-dev/labops/pkg/backends/real"
	"github.com/labops-dev/labops/pkg/errs"
	"github.com/labops-dev/labops/pkg/schema"
)

type configVerifyRow struct {
	GenericKey string  `json:"generic_key"`
	NodeName   *string `json:"node_name"`
	Requested  string  `json:"requested"`
	Actual     *string `json:"actual"`
	Supported  bool    `json:"supported"`
	Applied    bool    `json:"applied"`
	Adjusted   bool    `json:"adjusted"`
	Reason     *string `json:"reason"`
}

type configVerifySummary struct {
	RequestedCount   int `json:"requested_count"`
	SupportedCount   int `json:"supported_count"`
	UnsupportedCount int `json:"unsupported_count"`
	AppliedCount     int `json:"applied_count"`
	UnappliedCount   int `json:"unapplied_count"`
	AdjustedCount    int `json:"adjusted_count"`
}

type configVerifyDocument struct {
	SchemaVersion string             `json:"schema_version"`
	RunID         string             `json:"run_id"`
	ScenarioID    string             `json:"scenario_id"`
	Backend       string             `json:"backend"`
	ApplyMode     string             `json:"apply_mode"`
	Summary       configVerifySummary `json:"summary"`
	Rows          []configVerifyRow  `json:"rows"`
}

// WriteConfigVerifyJson emits config_verify.json: per-setting requested vs
// actual values and support status, so a triage bundle shows what really
// got set on the device.
func WriteConfigVerifyJson(runInfo schema.RunInfo, result real.ApplyParamsResult, mode real.ParamApplyMode,
	outputDir string) (string, error) {

	if err := ensureOutputDir(outputDir); err != nil {
		return "", err
	}

	var supportedCount, appliedCount, adjustedCount int
	rows := make([]configVerifyRow, 0, len(result.ReadbackRows))
	for _, readback := range result.ReadbackRows {
		if readback.Supported {
			supportedCount++
		}
		if readback.Applied {
			appliedCount++
		}
		if readback.Adjusted {
			adjustedCount++
		}

		rows = append(rows, configVerifyRow{
			GenericKey: readback.GenericKey,
			NodeName:   nonEmptyPtr(readback.NodeName),
			Requested:  readback.RequestedValue,
			Actual:     nonEmptyPtr(readback.ActualValue),
			Supported:  readback.Supported,
			Applied:    readback.Applied,
			Adjusted:   readback.Adjusted,
			Reason:     nonEmptyPtr(readback.Reason),
		})
	}

	requestedCount := len(result.ReadbackRows)
	document := configVerifyDocument{
		SchemaVersion: "1.0",
		RunID:         runInfo.RunID,
		ScenarioID:    runInfo.Config.ScenarioID,
		Backend:       runInfo.Config.Backend,
		ApplyMode:     mode.String(),
		Summary: configVerifySummary{
			RequestedCount:   requestedCount,
			SupportedCount:   supportedCount,
			UnsupportedCount: requestedCount - supportedCount,
			AppliedCount:     appliedCount,
			UnappliedCount:   requestedCount - appliedCount,
			AdjustedCount:    adjustedCount,
		},
		Rows: rows,
	}

	payload, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to encode config verify document", err)
	}

	writtenPath := filepath.Join(outputDir, "config_verify.json")
	if err := os.WriteFile(writtenPath, append(payload, '\n'), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to open output file: "+writtenPath, err)
	}
	return writtenPath, nil
}
