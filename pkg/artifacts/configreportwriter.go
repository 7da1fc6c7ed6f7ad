package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/labops-dev/labops/pkg/backends/real"
	"github.com/labops-dev/labops/pkg/errs"
	"github.com/labops-dev/labops/pkg/schema"
)

// reportStatus keeps status typed end-to-end so summary counts and table
// labels cannot drift due to string typos.
type reportStatus int

const (
	reportApplied reportStatus = iota
	reportAdjusted
	reportUnsupported
)

func (s reportStatus) icon() string {
	switch s {
	case reportApplied:
		return "✅"
	case reportAdjusted:
		return "⚠"
	default:
		return "❌"
	}
}

func (s reportStatus) text() string {
	switch s {
	case reportApplied:
		return "applied"
	case reportAdjusted:
		return "adjusted"
	default:
		return "unsupported"
	}
}

type configReportRow struct {
	GenericKey string
	NodeName   string
	Requested  string
	Actual     string
	Notes      string
	Status     reportStatus
}

// escapeMarkdownCell keeps table columns stable even when values contain
// markdown separators or multiline messages from backend/node validation.
func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}

func normalizeCellValue(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

// keyUnitAndRangeNote keeps unit/range hints inline so engineers can
// sanity-check values without cross-referencing schema docs.
func keyUnitAndRangeNote(genericKey string) string {
	switch genericKey {
	case "exposure":
		return "units: us; validated range: [5, 10000000]"
	case "width":
		return "units: px; negotiated via VIDIOC_S_FMT"
	case "height":
		return "units: px; negotiated via VIDIOC_S_FMT"
	case "fps":
		return "units: Hz; negotiated via VIDIOC_S_PARM when supported"
	case "gain":
		return "units: dB; validated range: [0, 48]"
	case "packet_size_bytes":
		return "units: bytes; GigE-only; validated range: [576, 9000]"
	case "inter_packet_delay_us":
		return "units: us; GigE-only; validated range: [0, 100000]"
	case "roi_width":
		return "units: px; validated range: [64, 4096]; applied before offsets"
	case "roi_height":
		return "units: px; validated range: [64, 2160]; applied before offsets"
	case "roi_offset_x":
		return "units: px; validated range: [0, 4095]; applied after width/height"
	case "roi_offset_y":
		return "units: px; validated range: [0, 2159]; applied after width/height"
	default:
		return ""
	}
}

func appendKeyUnitAndRangeNote(genericKey string, notes string) string {
	note := keyUnitAndRangeNote(genericKey)
	if note == "" {
		return notes
	}
	if notes == "" || notes == "-" {
		return note
	}
	return notes + "; " + note
}

func classifyReportStatus(row real.ReadbackRow) reportStatus {
	if !row.Supported || !row.Applied {
		return reportUnsupported
	}
	if row.Adjusted {
		return reportAdjusted
	}
	return reportApplied
}

func buildConfigReportRows(requestedParams []real.ApplyParamInput, applyResult real.ApplyParamsResult) []configReportRow {
	requestedByKey := buildRequestedLookup(requestedParams)

	rows := make([]configReportRow, 0, len(applyResult.ReadbackRows))
	for _, readback := range applyResult.ReadbackRows {
		row := configReportRow{
			GenericKey: normalizeCellValue(readback.GenericKey),
			NodeName:   normalizeCellValue(readback.NodeName),
			Requested:  normalizeCellValue(readback.RequestedValue),
			Actual:     normalizeCellValue(readback.ActualValue),
			Status:     classifyReportStatus(readback),
		}

		switch row.Status {
		case reportUnsupported:
			row.Notes = normalizeCellValue(readback.Reason)
		case reportAdjusted:
			if readback.Reason == "" {
				row.Notes = "adjusted due to backend constraints"
			} else {
				row.Notes = readback.Reason
			}
		default:
			row.Notes = normalizeCellValue(readback.Reason)
		}

		if requestedValue, ok := requestedByKey[readback.GenericKey]; ok && requestedValue != "" {
			row.Requested = requestedValue
		}
		row.Notes = appendKeyUnitAndRangeNote(row.GenericKey, row.Notes)
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].GenericKey == rows[j].GenericKey {
			return rows[i].NodeName < rows[j].NodeName
		}
		return rows[i].GenericKey < rows[j].GenericKey
	})
	return rows
}

func writeConfigSummarySection(out *strings.Builder, rows []configReportRow) {
	var applied, adjusted, unsupported int
	for _, row := range rows {
		switch row.Status {
		case reportApplied:
			applied++
		case reportAdjusted:
			adjusted++
		default:
			unsupported++
		}
	}

	out.WriteString("## Summary\n\n")
	fmt.Fprintf(out, "- ✅ applied: %d\n", applied)
	fmt.Fprintf(out, "- ⚠ adjusted: %d\n", adjusted)
	fmt.Fprintf(out, "- ❌ unsupported: %d\n\n", unsupported)
}

func writeConfigTable(out *strings.Builder, rows []configReportRow) {
	out.WriteString("## Config Table\n\n")
	out.WriteString("| Status | Key | Node | Requested | Actual | Notes |\n")
	out.WriteString("| --- | --- | --- | --- | --- | --- |\n")

	if len(rows) == 0 {
		out.WriteString("| ❌ unsupported | - | - | - | - | no config rows were captured |\n\n")
		return
	}

	for _, row := range rows {
		fmt.Fprintf(out, "| %s %s | %s | %s | %s | %s | %s |\n",
			row.Status.icon(), row.Status.text(), escapeMarkdownCell(row.GenericKey), escapeMarkdownCell(row.NodeName),
			escapeMarkdownCell(row.Requested), escapeMarkdownCell(row.Actual), escapeMarkdownCell(normalizeCellValue(row.Notes)))
	}
	out.WriteString("\n")
}

// WriteConfigReportMarkdown emits config_report.md: a ✅/⚠/❌ status table
// plus per-key unit/range notes, so engineers can scan a run's applied
// camera configuration without re-deriving it from raw apply/readback JSON.
func WriteConfigReportMarkdown(runInfo schema.RunInfo, requestedParams []real.ApplyParamInput,
	applyResult real.ApplyParamsResult, mode real.ParamApplyMode, collectionError string, outputDir string) (string, error) {

	if err := ensureOutputDir(outputDir); err != nil {
		return "", err
	}

	rows := buildConfigReportRows(requestedParams, applyResult)

	var out strings.Builder
	out.WriteString("# Config Report\n\n")
	out.WriteString("## Run\n\n")
	fmt.Fprintf(&out, "- run_id: `%s`\n", runInfo.RunID)
	fmt.Fprintf(&out, "- scenario_id: `%s`\n", runInfo.Config.ScenarioID)
	fmt.Fprintf(&out, "- backend: `%s`\n", runInfo.Config.Backend)
	fmt.Fprintf(&out, "- apply_mode: `%s`\n", mode.String())
	fmt.Fprintf(&out, "- started_at_utc: `%s`\n", formatOptionalUTCTimestamp(runInfo.Timestamps.StartedAt))
	fmt.Fprintf(&out, "- finished_at_utc: `%s`\n\n", formatOptionalUTCTimestamp(runInfo.Timestamps.FinishedAt))

	if collectionError != "" {
		out.WriteString("## Collection Notes\n\n")
		fmt.Fprintf(&out, "- config collection error: %s\n\n", escapeMarkdownCell(collectionError))
	}

	writeConfigSummarySection(&out, rows)
	writeConfigTable(&out, rows)

	writtenPath := filepath.Join(outputDir, "config_report.md")
	if err := os.WriteFile(writtenPath, []byte(out.String()), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to open output file: "+writtenPath, err)
	}
	return writtenPath, nil
}
