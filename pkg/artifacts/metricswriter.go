package artifacts

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labops-dev/labops/pkg/errs"
	"github.com/labops-dev/labops/pkg/metrics"
)

// formatFixed6 renders a float fixed to 6 decimals, matching the teacher's
// metrics CSV/JSON precision.
func formatFixed6(value float64) string {
	return strconv.FormatFloat(value, 'f', 6, 64)
}

func timingStatsRows(prefix string, stats metrics.TimingStatsUs) [][]string {
	sampleCount := strconv.FormatUint(stats.SampleCount, 10)
	return [][]string{
		{prefix + "_min_us", "", "", sampleCount, formatFixed6(stats.MinUs)},
		{prefix + "_avg_us", "", "", sampleCount, formatFixed6(stats.AvgUs)},
		{prefix + "_p95_us", "", "", sampleCount, formatFixed6(stats.P95Us)},
	}
}

// metricsCSVRows builds every summary row plus one rolling_fps row per
// sample, in the same order as preferredMetricOrder (pkg/metrics), so
// metrics.csv stays internally consistent with ComputeDiff's column
// expectations. The category breakdown (generic/timeout/incomplete drops)
// is wider than a single dropped-frame bucket because the FPS engine
// (pkg/metrics) already tracks those categories separately.
func metricsCSVRows(report metrics.Report) [][]string {
	framesTotal := strconv.FormatUint(report.FramesTotal, 10)

	rows := [][]string{
		{"avg_fps", "", strconv.FormatInt(report.AvgWindow.Milliseconds(), 10),
			strconv.FormatUint(report.ReceivedFramesTotal, 10), formatFixed6(report.AvgFPS)},
		{"drops_total", "", "", framesTotal, strconv.FormatUint(report.DroppedFramesTotal, 10)},
		{"drops_generic_total", "", "", framesTotal, strconv.FormatUint(report.DroppedGenericFramesTotal, 10)},
		{"timeouts_total", "", "", framesTotal, strconv.FormatUint(report.TimeoutFramesTotal, 10)},
		{"incomplete_total", "", "", framesTotal, strconv.FormatUint(report.IncompleteFramesTotal, 10)},
		{"drop_rate_percent", "", "", framesTotal, formatFixed6(report.DropRatePercent)},
		{"generic_drop_rate_percent", "", "", framesTotal, formatFixed6(report.GenericDropRatePercent)},
		{"timeout_rate_percent", "", "", framesTotal, formatFixed6(report.TimeoutRatePercent)},
		{"incomplete_rate_percent", "", "", framesTotal, formatFixed6(report.IncompleteRatePercent)},
	}

	for _, sample := range report.RollingSamples {
		rows = append(rows, []string{
			"rolling_fps",
			strconv.FormatInt(sample.WindowEnd.UnixMilli(), 10),
			strconv.FormatInt(report.RollingWindow.Milliseconds(), 10),
			strconv.FormatUint(sample.FramesInWindow, 10),
			formatFixed6(sample.FPS),
		})
	}

	rows = append(rows, timingStatsRows("inter_frame_interval", report.InterFrameIntervalUs)...)
	rows = append(rows, timingStatsRows("inter_frame_jitter", report.InterFrameJitterUs)...)
	return rows
}

// WriteMetricsCsv emits metrics.csv: one summary row per tracked metric plus
// one rolling_fps row per rolling-window sample, using the fixed header
// "metric,window_end_ms,window_ms,frames,fps" so pkg/metrics.ComputeDiff can
// parse it back.
func WriteMetricsCsv(report metrics.Report, outputDir string) (string, error) {
	if err := ensureOutputDir(outputDir); err != nil {
		return "", err
	}

	writtenPath := filepath.Join(outputDir, "metrics.csv")
	file, err := os.Create(writtenPath)
	if err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to open output file: "+writtenPath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"metric", "window_end_ms", "window_ms", "frames", "fps"}); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed while writing output file: "+writtenPath, err)
	}
	for _, row := range metricsCSVRows(report) {
		if err := writer.Write(row); err != nil {
			return "", errs.Wrap(errs.IOFailure, "failed while writing output file: "+writtenPath, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed while writing output file: "+writtenPath, err)
	}

	return writtenPath, nil
}

func writeTimingStatsJSONObject(b *strings.Builder, key string, stats metrics.TimingStatsUs) {
	fmt.Fprintf(b, "  %q:{\"sample_count\":%d,\"min_us\":%s,\"avg_us\":%s,\"p95_us\":%s}",
		key, stats.SampleCount, formatFixed6(stats.MinUs), formatFixed6(stats.AvgUs), formatFixed6(stats.P95Us))
}

// WriteMetricsJson emits metrics.json: the same report the CSV carries, in
// a machine-friendly structured form including the full rolling_fps series.
func WriteMetricsJson(report metrics.Report, outputDir string) (string, error) {
	if err := ensureOutputDir(outputDir); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("{\n")
	fmt.Fprintf(&b, "  \"avg_window_ms\":%d,\n", report.AvgWindow.Milliseconds())
	fmt.Fprintf(&b, "  \"rolling_window_ms\":%d,\n", report.RollingWindow.Milliseconds())
	fmt.Fprintf(&b, "  \"frames_total\":%d,\n", report.FramesTotal)
	fmt.Fprintf(&b, "  \"received_frames_total\":%d,\n", report.ReceivedFramesTotal)
	fmt.Fprintf(&b, "  \"dropped_frames_total\":%d,\n", report.DroppedFramesTotal)
	fmt.Fprintf(&b, "  \"dropped_generic_frames_total\":%d,\n", report.DroppedGenericFramesTotal)
	fmt.Fprintf(&b, "  \"timeout_frames_total\":%d,\n", report.TimeoutFramesTotal)
	fmt.Fprintf(&b, "  \"incomplete_frames_total\":%d,\n", report.IncompleteFramesTotal)
	fmt.Fprintf(&b, "  \"drop_rate_percent\":%s,\n", formatFixed6(report.DropRatePercent))
	fmt.Fprintf(&b, "  \"generic_drop_rate_percent\":%s,\n", formatFixed6(report.GenericDropRatePercent))
	fmt.Fprintf(&b, "  \"timeout_rate_percent\":%s,\n", formatFixed6(report.TimeoutRatePercent))
	fmt.Fprintf(&b, "  \"incomplete_rate_percent\":%s,\n", formatFixed6(report.IncompleteRatePercent))
	fmt.Fprintf(&b, "  \"avg_fps\":%s,\n", formatFixed6(report.AvgFPS))

	writeTimingStatsJSONObject(&b, "inter_frame_interval_us", report.InterFrameIntervalUs)
	b.WriteString(",\n")
	writeTimingStatsJSONObject(&b, "inter_frame_jitter_us", report.InterFrameJitterUs)
	b.WriteString(",\n")

	b.WriteString("  \"rolling_fps\":[")
	for i, sample := range report.RollingSamples {
		if i != 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "{\"window_end_ms\":%d,\"frames_in_window\":%d,\"fps\":%s}",
			sample.WindowEnd.UnixMilli(), sample.FramesInWindow, formatFixed6(sample.FPS))
	}
	b.WriteString("]\n")
	b.WriteString("}\n")

	writtenPath := filepath.Join(outputDir, "metrics.json")
	if err := os.WriteFile(writtenPath, []byte(b.String()), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed while writing output file: "+writtenPath, err)
	}
	return writtenPath, nil
}
