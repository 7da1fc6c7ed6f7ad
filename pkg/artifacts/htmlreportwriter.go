package artifacts

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/labops-dev/labops/pkg/errs"
	"github.com/labops-dev/labops/pkg/metrics"
	"github.com/labops-dev/labops/pkg/schema"
)

type deltaRow struct {
	Metric   string
	Unit     string
	Actual   float64
	Expected float64
	Delta    float64
}

func buildDeltaRows(report metrics.Report, configuredFPS uint32) []deltaRow {
	expectedIntervalUs := 0.0
	if configuredFPS > 0 {
		expectedIntervalUs = 1000000.0 / float64(configuredFPS)
	}

	return []deltaRow{
		{Metric: "avg_fps", Unit: "fps", Actual: report.AvgFPS, Expected: float64(configuredFPS),
			Delta: report.AvgFPS - float64(configuredFPS)},
		{Metric: "drop_rate_percent", Unit: "%", Actual: report.DropRatePercent, Delta: report.DropRatePercent},
		{Metric: "generic_drop_rate_percent", Unit: "%", Actual: report.GenericDropRatePercent, Delta: report.GenericDropRatePercent},
		{Metric: "timeout_rate_percent", Unit: "%", Actual: report.TimeoutRatePercent, Delta: report.TimeoutRatePercent},
		{Metric: "incomplete_rate_percent", Unit: "%", Actual: report.IncompleteRatePercent, Delta: report.IncompleteRatePercent},
		{Metric: "inter_frame_interval_p95_us", Unit: "us", Actual: report.InterFrameIntervalUs.P95Us,
			Expected: expectedIntervalUs, Delta: report.InterFrameIntervalUs.P95Us - expectedIntervalUs},
		{Metric: "inter_frame_jitter_p95_us", Unit: "us", Actual: report.InterFrameJitterUs.P95Us, Delta: report.InterFrameJitterUs.P95Us},
	}
}

type rollingRow struct {
	WindowEndMs    int64
	FramesInWindow uint64
	FPS            float64
}

func buildRollingRows(report metrics.Report) []rollingRow {
	rows := make([]rollingRow, 0, len(report.RollingSamples))
	for _, sample := range report.RollingSamples {
		rows = append(rows, rollingRow{
			WindowEndMs:    sample.WindowEnd.UnixMilli(),
			FramesInWindow: sample.FramesInWindow,
			FPS:            sample.FPS,
		})
	}
	return rows
}

type htmlReportView struct {
	ThresholdsPassed  bool
	RunID             string
	ScenarioID        string
	Backend           string
	Seed              uint64
	DurationMs        int64
	StartedAtUTC      string
	FinishedAtUTC     string
	ConfiguredFPS     uint32
	Report            metrics.Report
	DeltaRows         []deltaRow
	RollingRows       []rollingRow
	ThresholdFailures []string
	TopAnomalies      []string
}

var htmlReportFuncs = template.FuncMap{
	"statusClass": func(passed bool) string {
		if passed {
			return "pass"
		}
		return "fail"
	},
	"statusLabel": func(passed bool) string {
		if passed {
			return "PASS"
		}
		return "FAIL"
	},
	"fixed3": func(value float64) string {
		return fmt.Sprintf("%.3f", value)
	},
	"fixed6": func(value float64) string {
		return fmt.Sprintf("%.6f", value)
	},
	"signedFixed3": func(value float64) string {
		if value >= 0 {
			return fmt.Sprintf("+%.3f", value)
		}
		return fmt.Sprintf("%.3f", value)
	},
}

// WriteRunSummaryHtml emits report.html: a static, JS-free triage report with
// run identity, key metrics, actual-vs-expected deltas, rolling FPS samples,
// threshold checks, and top anomalies.
//
// Like WriteRunSummaryMarkdown, thresholdsPassed/thresholdFailures/
// topAnomalies are pre-computed by the caller; this writer only renders.
func WriteRunSummaryHtml(runInfo schema.RunInfo, report metrics.Report, configuredFPS uint32,
	thresholdsPassed bool, thresholdFailures []string, topAnomalies []string, outputDir string) (string, error) {

	if err := ensureOutputDir(outputDir); err != nil {
		return "", err
	}

	tmpl, err := template.New("report").Funcs(htmlReportFuncs).Parse(htmlReportTemplate)
	if err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to parse html report template", err)
	}

	view := htmlReportView{
		ThresholdsPassed:  thresholdsPassed,
		RunID:             runInfo.RunID,
		ScenarioID:        runInfo.Config.ScenarioID,
		Backend:           runInfo.Config.Backend,
		Seed:              runInfo.Config.Seed,
		DurationMs:        runInfo.Config.DurationMs,
		StartedAtUTC:      formatOptionalUTCTimestamp(runInfo.Timestamps.StartedAt),
		FinishedAtUTC:     formatOptionalUTCTimestamp(runInfo.Timestamps.FinishedAt),
		ConfiguredFPS:     configuredFPS,
		Report:            report,
		DeltaRows:         buildDeltaRows(report, configuredFPS),
		RollingRows:       buildRollingRows(report),
		ThresholdFailures: thresholdFailures,
		TopAnomalies:      topAnomalies,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to execute html report template", err)
	}

	writtenPath := filepath.Join(outputDir, "report.html")
	if err := os.WriteFile(writtenPath, buf.Bytes(), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to open output file: "+writtenPath, err)
	}
	return writtenPath, nil
}

const htmlReportTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>LabOps Run Report</title>
  <style>
    :root { color-scheme: light; }
    body { font-family: "Segoe UI", "Helvetica Neue", Arial, sans-serif; margin: 24px; color: #1f2933; }
    h1, h2 { margin-bottom: 8px; }
    .meta { color: #52606d; margin-top: 0; }
    .status { display: inline-block; padding: 4px 10px; border-radius: 12px; font-weight: 700; }
    .status.pass { background: #e8f5e9; color: #1b5e20; }
    .status.fail { background: #ffebee; color: #b71c1c; }
    table { border-collapse: collapse; width: 100%; margin: 12px 0 20px 0; }
    th, td { border: 1px solid #d9e2ec; padding: 8px; text-align: left; }
    th { background: #f5f7fa; }
    td.numeric { text-align: right; font-variant-numeric: tabular-nums; }
    code { background: #f0f4f8; padding: 2px 4px; border-radius: 4px; }
    ul, ol { margin-top: 6px; }
  </style>
</head>
<body>
  <h1>LabOps Run Report</h1>
  <p class="meta">Static triage report generated by LabOps (no JavaScript required).</p>
  <p><span class="status {{statusClass .ThresholdsPassed}}">{{statusLabel .ThresholdsPassed}}</span></p>

  <h2>Run Identity</h2>
  <table aria-label="run identity">
    <thead><tr><th>Field</th><th>Value</th></tr></thead>
    <tbody>
      <tr><td>run_id</td><td><code>{{.RunID}}</code></td></tr>
      <tr><td>scenario_id</td><td><code>{{.ScenarioID}}</code></td></tr>
      <tr><td>backend</td><td><code>{{.Backend}}</code></td></tr>
      <tr><td>seed</td><td class="numeric">{{.Seed}}</td></tr>
      <tr><td>duration_ms</td><td class="numeric">{{.DurationMs}}</td></tr>
      <tr><td>started_at_utc</td><td><code>{{.StartedAtUTC}}</code></td></tr>
      <tr><td>finished_at_utc</td><td><code>{{.FinishedAtUTC}}</code></td></tr>
    </tbody>
  </table>

  <h2>Key Metrics</h2>
  <table aria-label="key metrics">
    <thead><tr><th>Metric</th><th>Value</th><th>Unit</th></tr></thead>
    <tbody>
      <tr><td>configured_fps</td><td class="numeric">{{.ConfiguredFPS}}</td><td>fps</td></tr>
      <tr><td>avg_fps</td><td class="numeric">{{fixed3 .Report.AvgFPS}}</td><td>fps</td></tr>
      <tr><td>frames_total</td><td class="numeric">{{.Report.FramesTotal}}</td><td>count</td></tr>
      <tr><td>received_frames_total</td><td class="numeric">{{.Report.ReceivedFramesTotal}}</td><td>count</td></tr>
      <tr><td>dropped_frames_total</td><td class="numeric">{{.Report.DroppedFramesTotal}}</td><td>count</td></tr>
      <tr><td>dropped_generic_frames_total</td><td class="numeric">{{.Report.DroppedGenericFramesTotal}}</td><td>count</td></tr>
      <tr><td>timeout_frames_total</td><td class="numeric">{{.Report.TimeoutFramesTotal}}</td><td>count</td></tr>
      <tr><td>incomplete_frames_total</td><td class="numeric">{{.Report.IncompleteFramesTotal}}</td><td>count</td></tr>
      <tr><td>drop_rate_percent</td><td class="numeric">{{fixed3 .Report.DropRatePercent}}</td><td>%</td></tr>
      <tr><td>generic_drop_rate_percent</td><td class="numeric">{{fixed3 .Report.GenericDropRatePercent}}</td><td>%</td></tr>
      <tr><td>timeout_rate_percent</td><td class="numeric">{{fixed3 .Report.TimeoutRatePercent}}</td><td>%</td></tr>
      <tr><td>incomplete_rate_percent</td><td class="numeric">{{fixed3 .Report.IncompleteRatePercent}}</td><td>%</td></tr>
      <tr><td>inter_frame_interval_p95_us</td><td class="numeric">{{fixed3 .Report.InterFrameIntervalUs.P95Us}}</td><td>us</td></tr>
      <tr><td>inter_frame_jitter_p95_us</td><td class="numeric">{{fixed3 .Report.InterFrameJitterUs.P95Us}}</td><td>us</td></tr>
    </tbody>
  </table>

  <h2>Diffs (Actual vs Expected)</h2>
  <table aria-label="metric deltas">
    <thead><tr><th>Metric</th><th>Actual</th><th>Expected</th><th>Delta</th><th>Unit</th></tr></thead>
    <tbody>
    {{range .DeltaRows}}  <tr><td>{{.Metric}}</td><td class="numeric">{{fixed3 .Actual}}</td><td class="numeric">{{fixed3 .Expected}}</td><td class="numeric">{{signedFixed3 .Delta}}</td><td>{{.Unit}}</td></tr>
    {{end}}</tbody>
  </table>

  <h2>Rolling FPS Samples</h2>
  <table aria-label="rolling fps samples">
    <thead><tr><th>window_end_epoch_ms</th><th>frames_in_window</th><th>fps</th></tr></thead>
    <tbody>
    {{range .RollingRows}}  <tr><td class="numeric">{{.WindowEndMs}}</td><td class="numeric">{{.FramesInWindow}}</td><td class="numeric">{{fixed6 .FPS}}</td></tr>
    {{end}}</tbody>
  </table>

  <h2>Threshold Checks</h2>
  {{if .ThresholdsPassed}}<p>All configured thresholds passed.</p>
  {{else}}<ul>
  {{range .ThresholdFailures}}  <li>{{.}}</li>
  {{end}}</ul>
  {{end}}

  <h2>Top Anomalies</h2>
  {{if not .TopAnomalies}}<p>No notable anomalies detected.</p>
  {{else}}<ol>
  {{range .TopAnomalies}}  <li>{{.}}</li>
  {{end}}</ol>
  {{end}}
</body>
</html>
`
