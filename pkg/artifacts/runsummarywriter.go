package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/labops-dev/labops/pkg/errs"
	"github.com/labops-dev/labops/pkg/metrics"
	"github.com/labops-dev/labops/pkg/netem"
	"github.com/labops-dev/labops/pkg/schema"
)

func writeKeyMetricsTable(out *strings.Builder, report metrics.Report, configuredFPS uint32) {
	out.WriteString("## Key Metrics\n\n")
	out.WriteString("| Metric | Value |\n")
	out.WriteString("| --- | --- |\n")
	fmt.Fprintf(out, "| configured_fps | %d |\n", configuredFPS)
	fmt.Fprintf(out, "| avg_fps | %s |\n", formatFixed(report.AvgFPS, 3))
	fmt.Fprintf(out, "| frames_total | %d |\n", report.FramesTotal)
	fmt.Fprintf(out, "| received_frames_total | %d |\n", report.ReceivedFramesTotal)
	fmt.Fprintf(out, "| dropped_frames_total | %d |\n", report.DroppedFramesTotal)
	fmt.Fprintf(out, "| dropped_generic_frames_total | %d |\n", report.DroppedGenericFramesTotal)
	fmt.Fprintf(out, "| timeout_frames_total | %d |\n", report.TimeoutFramesTotal)
	fmt.Fprintf(out, "| incomplete_frames_total | %d |\n", report.IncompleteFramesTotal)
	fmt.Fprintf(out, "| drop_rate_percent | %s |\n", formatFixed(report.DropRatePercent, 3))
	fmt.Fprintf(out, "| generic_drop_rate_percent | %s |\n", formatFixed(report.GenericDropRatePercent, 3))
	fmt.Fprintf(out, "| timeout_rate_percent | %s |\n", formatFixed(report.TimeoutRatePercent, 3))
	fmt.Fprintf(out, "| incomplete_rate_percent | %s |\n", formatFixed(report.IncompleteRatePercent, 3))
	fmt.Fprintf(out, "| inter_frame_interval_p95_us | %s |\n", formatFixed(report.InterFrameIntervalUs.P95Us, 3))
	fmt.Fprintf(out, "| inter_frame_jitter_p95_us | %s |\n\n", formatFixed(report.InterFrameJitterUs.P95Us, 3))
}

func formatFixed(value float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, value)
}

func writeThresholdSection(out *strings.Builder, thresholdsPassed bool, thresholdFailures []string) {
	out.WriteString("## Threshold Checks\n\n")
	if thresholdsPassed {
		out.WriteString("- All configured thresholds passed.\n\n")
		return
	}

	fmt.Fprintf(out, "- Threshold violations: %d\n", len(thresholdFailures))
	for _, failure := range thresholdFailures {
		fmt.Fprintf(out, "- %s\n", failure)
	}
	out.WriteString("\n")
}

func writeAnomaliesSection(out *strings.Builder, topAnomalies []string) {
	out.WriteString("## Top Anomalies\n\n")
	if len(topAnomalies) == 0 {
		out.WriteString("1. No notable anomalies detected.\n\n")
		return
	}

	for index, anomaly := range topAnomalies {
		fmt.Fprintf(out, "%d. %s\n", index+1, anomaly)
	}
	out.WriteString("\n")
}

func writeNetemCommandSection(out *strings.Builder, suggestions *netem.CommandSuggestions) {
	if suggestions == nil {
		return
	}

	out.WriteString("## Netem Commands (Manual)\n\n")
	fmt.Fprintf(out, "- profile_id: `%s`\n", suggestions.ProfileID)
	fmt.Fprintf(out, "- profile_path: `%s`\n", suggestions.ProfilePath)
	fmt.Fprintf(out, "- note: %s\n\n", suggestions.SafetyNote)
	out.WriteString("```bash\n")
	fmt.Fprintf(out, "%s\n", suggestions.ApplyCommand)
	fmt.Fprintf(out, "%s\n", suggestions.ShowCommand)
	fmt.Fprintf(out, "%s\n", suggestions.TeardownCommand)
	out.WriteString("```\n\n")
}

// WriteRunSummaryMarkdown emits summary.md: a PASS/FAIL header, run identity,
// key metrics, threshold checks, top anomalies, and (when netem faults were
// requested with --apply-netem) a manual tc netem command block.
//
// thresholdsPassed/thresholdFailures/topAnomalies are pre-computed by the
// caller (the scenario orchestrator), matching the writer's role as a pure
// renderer rather than an evaluator.
func WriteRunSummaryMarkdown(runInfo schema.RunInfo, report metrics.Report, configuredFPS uint32,
	thresholdsPassed bool, thresholdFailures []string, topAnomalies []string,
	netemSuggestions *netem.CommandSuggestions, outputDir string) (string, error) {

	if err := ensureOutputDir(outputDir); err != nil {
		return "", err
	}

	var out strings.Builder
	out.WriteString("# Run Summary\n\n")
	out.WriteString("## Status\n\n")
	if thresholdsPassed {
		out.WriteString("**PASS**\n\n")
	} else {
		out.WriteString("**FAIL**\n\n")
	}

	out.WriteString("## Run Identity\n\n")
	fmt.Fprintf(&out, "- run_id: `%s`\n", runInfo.RunID)
	fmt.Fprintf(&out, "- scenario_id: `%s`\n", runInfo.Config.ScenarioID)
	fmt.Fprintf(&out, "- backend: `%s`\n", runInfo.Config.Backend)
	fmt.Fprintf(&out, "- seed: `%d`\n", runInfo.Config.Seed)
	fmt.Fprintf(&out, "- duration_ms: `%d`\n", runInfo.Config.DurationMs)
	fmt.Fprintf(&out, "- started_at_utc: `%s`\n", formatOptionalUTCTimestamp(runInfo.Timestamps.StartedAt))
	fmt.Fprintf(&out, "- finished_at_utc: `%s`\n\n", formatOptionalUTCTimestamp(runInfo.Timestamps.FinishedAt))

	writeKeyMetricsTable(&out, report, configuredFPS)
	writeThresholdSection(&out, thresholdsPassed, thresholdFailures)
	writeAnomaliesSection(&out, topAnomalies)
	writeNetemCommandSection(&out, netemSuggestions)

	writtenPath := filepath.Join(outputDir, "summary.md")
	if err := os.WriteFile(writtenPath, []byte(out.String()), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to open output file: "+writtenPath, err)
	}
	return writtenPath, nil
}
