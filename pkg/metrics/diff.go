package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/labops-dev/labops/pkg/errs"
)

// metricsCSVHeader is the fixed header metrics.csv is written with
// (pkg/artifacts), matching original_source's kMetricsCsvHeader.
var metricsCSVHeader = []string{"metric", "window_end_ms", "window_ms", "frames", "fps"}

// MetricDelta is one metric comparison between a baseline and a run.
type MetricDelta struct {
	Metric        string
	Baseline      float64
	Run           float64
	Delta         float64
	DeltaPercent  *float64
}

// DiffReport is the comparison payload written as diff.json/diff.md
// (C14, spec.md §4.7).
type DiffReport struct {
	BaselineMetricsCSVPath string
	RunMetricsCSVPath      string
	Deltas                 []MetricDelta
}

// preferredMetricOrder mirrors BuildPreferredMetricOrder, keeping the
// headline FPS/drop metrics first and the timing percentile breakdown last.
var preferredMetricOrder = []string{
	"avg_fps",
	"drops_total",
	"drops_generic_total",
	"timeouts_total",
	"incomplete_total",
	"drop_rate_percent",
	"generic_drop_rate_percent",
	"timeout_rate_percent",
	"incomplete_rate_percent",
	"inter_frame_interval_min_us",
	"inter_frame_interval_avg_us",
	"inter_frame_interval_p95_us",
	"inter_frame_jitter_min_us",
	"inter_frame_jitter_avg_us",
	"inter_frame_jitter_p95_us",
}

func shouldTreatAsZero(value float64) bool {
	return math.Abs(value) <= 1e-12
}

func loadSummaryMetricsFromCSV(path string) (map[string]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, fmt.Sprintf("failed to open metrics csv: %s", path), err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errs.New(errs.InputInvalid, fmt.Sprintf("metrics csv is empty: %s", path))
	}
	if err != nil {
		return nil, errs.Wrap(errs.InputInvalid, fmt.Sprintf("failed to read metrics csv header: %s", path), err)
	}
	if len(header) != len(metricsCSVHeader) || !equalColumns(header, metricsCSVHeader) {
		return nil, errs.New(errs.InputInvalid, fmt.Sprintf("metrics csv header mismatch for file: %s", path))
	}

	values := make(map[string]float64)
	lineNumber := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNumber++
		if err != nil {
			return nil, errs.Wrap(errs.InputInvalid,
				fmt.Sprintf("invalid metrics csv row at line %d in file: %s", lineNumber, path), err)
		}
		if len(record) != 5 {
			return nil, errs.New(errs.InputInvalid,
				fmt.Sprintf("invalid metrics csv row at line %d in file: %s", lineNumber, path))
		}

		metricName := record[0]
		if metricName == "" {
			return nil, errs.New(errs.InputInvalid,
				fmt.Sprintf("empty metric name at line %d in file: %s", lineNumber, path))
		}
		if metricName == "rolling_fps" {
			continue
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(record[4]), 64)
		if err != nil {
			return nil, errs.New(errs.InputInvalid,
				fmt.Sprintf("invalid metric value at line %d in file: %s", lineNumber, path))
		}

		if _, exists := values[metricName]; exists {
			return nil, errs.New(errs.InputInvalid,
				fmt.Sprintf("duplicate summary metric row for '%s' in file: %s", metricName, path))
		}
		values[metricName] = value
	}

	if len(values) == 0 {
		return nil, errs.New(errs.InputInvalid, fmt.Sprintf("no summary metrics found in file: %s", path))
	}
	return values, nil
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ComputeDiff loads baseline/run metrics.csv files and computes per-metric
// deltas over their summary (non-rolling) rows, grounded on
// ComputeMetricsDiffFromCsv.
func ComputeDiff(baselineMetricsCSVPath, runMetricsCSVPath string) (DiffReport, error) {
	baselineValues, err := loadSummaryMetricsFromCSV(baselineMetricsCSVPath)
	if err != nil {
		return DiffReport{}, err
	}
	runValues, err := loadSummaryMetricsFromCSV(runMetricsCSVPath)
	if err != nil {
		return DiffReport{}, err
	}

	remaining := make(map[string]bool)
	for metricName := range baselineValues {
		if _, ok := runValues[metricName]; ok {
			remaining[metricName] = true
		}
	}

	report := DiffReport{
		BaselineMetricsCSVPath: baselineMetricsCSVPath,
		RunMetricsCSVPath:      runMetricsCSVPath,
	}

	appendDelta := func(metricName string) {
		baselineValue, baselineOK := baselineValues[metricName]
		runValue, runOK := runValues[metricName]
		if !baselineOK || !runOK {
			return
		}

		delta := MetricDelta{
			Metric:   metricName,
			Baseline: baselineValue,
			Run:      runValue,
			Delta:    runValue - baselineValue,
		}
		if shouldTreatAsZero(delta.Baseline) {
			if shouldTreatAsZero(delta.Run) {
				zero := 0.0
				delta.DeltaPercent = &zero
			}
		} else {
			percent := (delta.Delta / delta.Baseline) * 100.0
			delta.DeltaPercent = &percent
		}

		report.Deltas = append(report.Deltas, delta)
		delete(remaining, metricName)
	}

	for _, metricName := range preferredMetricOrder {
		appendDelta(metricName)
	}

	leftover := make([]string, 0, len(remaining))
	for metricName := range remaining {
		leftover = append(leftover, metricName)
	}
	sort.Strings(leftover)
	for _, metricName := range leftover {
		appendDelta(metricName)
	}

	if len(report.Deltas) == 0 {
		return DiffReport{}, errs.New(errs.InputInvalid, "no overlapping summary metrics to compare")
	}
	return report, nil
}

func countDeltaSummary(deltas []MetricDelta) (increased, decreased, unchanged int) {
	for _, delta := range deltas {
		switch {
		case delta.Delta > 1e-12:
			increased++
		case delta.Delta < -1e-12:
			decreased++
		default:
			unchanged++
		}
	}
	return increased, decreased, unchanged
}

// formatFixedDouble matches core::FormatFixedDouble(value, 6): a fixed
// 6-decimal rendering with no trimming (unlike real.FormatDouble, which
// trims trailing zeros for node values).
func formatFixedDouble(value float64) string {
	return strconv.FormatFloat(value, 'f', 6, 64)
}

func ensureOutputDir(outputDir string) error {
	if outputDir == "" {
		return errs.New(errs.InputInvalid, "output directory cannot be empty")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return errs.Wrap(errs.IOFailure, fmt.Sprintf("failed to create output directory '%s'", outputDir), err)
	}
	return nil
}

// WriteDiffJSON emits diff.json for machine parsing.
func WriteDiffJSON(report DiffReport, outputDir string) (string, error) {
	if err := ensureOutputDir(outputDir); err != nil {
		return "", err
	}
	writtenPath := filepath.Join(outputDir, "diff.json")

	increased, decreased, unchanged := countDeltaSummary(report.Deltas)

	var b strings.Builder
	b.WriteString("{\n")
	b.WriteString("  \"schema_version\":\"1.0\",\n")
	fmt.Fprintf(&b, "  \"baseline_metrics_csv\":%q,\n", filepath.ToSlash(report.BaselineMetricsCSVPath))
	fmt.Fprintf(&b, "  \"run_metrics_csv\":%q,\n", filepath.ToSlash(report.RunMetricsCSVPath))
	b.WriteString("  \"compared_metrics\":[")

	for i, delta := range report.Deltas {
		if i != 0 {
			b.WriteString(",")
		}
		b.WriteString("\n    {")
		fmt.Fprintf(&b, "\"metric\":%q,", delta.Metric)
		fmt.Fprintf(&b, "\"baseline\":%s,", formatFixedDouble(delta.Baseline))
		fmt.Fprintf(&b, "\"run\":%s,", formatFixedDouble(delta.Run))
		fmt.Fprintf(&b, "\"delta\":%s,", formatFixedDouble(delta.Delta))
		b.WriteString("\"delta_percent\":")
		if delta.DeltaPercent != nil {
			b.WriteString(formatFixedDouble(*delta.DeltaPercent))
		} else {
			b.WriteString("null")
		}
		b.WriteString("}")
	}

	b.WriteString("\n  ],\n")
	fmt.Fprintf(&b, "  \"summary\":{\"increased\":%d,\"decreased\":%d,\"unchanged\":%d}\n", increased, decreased, unchanged)
	b.WriteString("}\n")

	if err := os.WriteFile(writtenPath, []byte(b.String()), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, fmt.Sprintf("failed while writing output file '%s'", writtenPath), err)
	}
	return writtenPath, nil
}

// WriteDiffMarkdown emits diff.md for human triage handoff.
func WriteDiffMarkdown(report DiffReport, outputDir string) (string, error) {
	if err := ensureOutputDir(outputDir); err != nil {
		return "", err
	}
	writtenPath := filepath.Join(outputDir, "diff.md")

	increased, decreased, unchanged := countDeltaSummary(report.Deltas)

	var b strings.Builder
	b.WriteString("# Metrics Diff\n\n")
	fmt.Fprintf(&b, "Baseline metrics: `%s`\n\n", filepath.ToSlash(report.BaselineMetricsCSVPath))
	fmt.Fprintf(&b, "Run metrics: `%s`\n\n", filepath.ToSlash(report.RunMetricsCSVPath))
	b.WriteString("| Metric | Baseline | Run | Delta | Delta % |\n")
	b.WriteString("| --- | ---: | ---: | ---: | ---: |\n")

	for _, delta := range report.Deltas {
		deltaSign := ""
		if delta.Delta >= 0.0 {
			deltaSign = "+"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s%s | ", delta.Metric, formatFixedDouble(delta.Baseline),
			formatFixedDouble(delta.Run), deltaSign, formatFixedDouble(delta.Delta))

		if delta.DeltaPercent != nil {
			percentSign := ""
			if *delta.DeltaPercent >= 0.0 {
				percentSign = "+"
			}
			fmt.Fprintf(&b, "%s%s%%", percentSign, formatFixedDouble(*delta.DeltaPercent))
		} else {
			b.WriteString("n/a")
		}
		b.WriteString(" |\n")
	}

	fmt.Fprintf(&b, "\nSummary: increased=%d, decreased=%d, unchanged=%d\n", increased, decreased, unchanged)

	if err := os.WriteFile(writtenPath, []byte(b.String()), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, fmt.Sprintf("failed while writing output file '%s'", writtenPath), err)
	}
	return writtenPath, nil
}
