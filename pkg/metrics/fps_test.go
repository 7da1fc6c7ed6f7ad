package metrics

import (
	"testing"
	"time"

	"github.com/labops-dev/labops/pkg/backends"
)

func mkFrame(id uint64, offsetMs int64, outcome backends.FrameOutcome, droppedSet, dropped bool) backends.FrameSample {
	base := time.Unix(0, 0).UTC()
	return backends.FrameSample{
		FrameID:    id,
		Timestamp:  base.Add(time.Duration(offsetMs) * time.Millisecond),
		Outcome:    outcome,
		DroppedSet: droppedSet,
		Dropped:    dropped,
	}
}

func TestComputeReportRejectsNonPositiveWindows(t *testing.T) {
	if _, err := ComputeReport(nil, 0, time.Second); err == nil {
		t.Fatal("expected error for zero avg window")
	}
	if _, err := ComputeReport(nil, time.Second, 0); err == nil {
		t.Fatal("expected error for zero rolling window")
	}
}

func TestComputeReportReclassifiesLegacyDroppedFlag(t *testing.T) {
	frames := []backends.FrameSample{
		mkFrame(0, 0, backends.FrameReceived, true, true),
		mkFrame(1, 33, backends.FrameReceived, false, false),
	}

	report, err := ComputeReport(frames, time.Second, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.ReceivedFramesTotal != 1 {
		t.Fatalf("expected 1 received frame after reclassification, got %d", report.ReceivedFramesTotal)
	}
	if report.DroppedGenericFramesTotal != 1 || report.DroppedFramesTotal != 1 {
		t.Fatalf("expected 1 generic-dropped frame, got %+v", report)
	}
}

func TestComputeReportPartitionsCategories(t *testing.T) {
	frames := []backends.FrameSample{
		mkFrame(0, 0, backends.FrameReceived, false, false),
		mkFrame(1, 33, backends.FrameTimeout, false, false),
		mkFrame(2, 66, backends.FrameIncomplete, false, false),
		mkFrame(3, 99, backends.FrameDropped, false, false),
	}

	report, err := ComputeReport(frames, time.Second, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.FramesTotal != 4 || report.ReceivedFramesTotal != 1 {
		t.Fatalf("unexpected totals: %+v", report)
	}
	if report.TimeoutFramesTotal != 1 || report.IncompleteFramesTotal != 1 || report.DroppedGenericFramesTotal != 1 {
		t.Fatalf("unexpected per-category totals: %+v", report)
	}
	if report.DroppedFramesTotal != 3 {
		t.Fatalf("expected dropped_frames_total to sum timeout+incomplete+generic, got %d", report.DroppedFramesTotal)
	}
	if report.DropRatePercent != 75.0 {
		t.Fatalf("expected 75%% drop rate, got %v", report.DropRatePercent)
	}
}

func TestComputeReportRollingWindowCounts(t *testing.T) {
	// Four received frames 0, 100, 200, 300 ms apart, rolling window 150ms.
	frames := []backends.FrameSample{
		mkFrame(0, 0, backends.FrameReceived, false, false),
		mkFrame(1, 100, backends.FrameReceived, false, false),
		mkFrame(2, 200, backends.FrameReceived, false, false),
		mkFrame(3, 300, backends.FrameReceived, false, false),
	}

	report, err := ComputeReport(frames, time.Second, 150*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.RollingSamples) != 4 {
		t.Fatalf("expected 4 rolling samples, got %d", len(report.RollingSamples))
	}
	last := report.RollingSamples[len(report.RollingSamples)-1]
	// Window [150ms, 300ms] contains frames at 200ms and 300ms -> 2 frames.
	if last.FramesInWindow != 2 {
		t.Fatalf("expected last window to contain 2 frames, got %d", last.FramesInWindow)
	}
}

func TestComputeReportIntervalAndJitterRequireTwoFrames(t *testing.T) {
	single := []backends.FrameSample{mkFrame(0, 0, backends.FrameReceived, false, false)}
	report, err := ComputeReport(single, time.Second, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.InterFrameIntervalUs.SampleCount != 0 {
		t.Fatalf("expected no interval stats with a single received frame, got %+v", report.InterFrameIntervalUs)
	}

	frames := []backends.FrameSample{
		mkFrame(0, 0, backends.FrameReceived, false, false),
		mkFrame(1, 30, backends.FrameReceived, false, false),
		mkFrame(2, 70, backends.FrameReceived, false, false),
	}
	report, err = ComputeReport(frames, time.Second, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.InterFrameIntervalUs.SampleCount != 2 {
		t.Fatalf("expected 2 interval samples, got %d", report.InterFrameIntervalUs.SampleCount)
	}
	if report.InterFrameIntervalUs.MinUs != 30000 {
		t.Fatalf("expected min interval 30000us, got %v", report.InterFrameIntervalUs.MinUs)
	}
}

func TestComputeTimingStatsUsNearestRankP95(t *testing.T) {
	samples := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	stats := computeTimingStatsUs(samples)
	if stats.SampleCount != 10 {
		t.Fatalf("expected 10 samples, got %d", stats.SampleCount)
	}
	// rank = ceil(0.95*10) = 10 -> index 9 -> value 100.
	if stats.P95Us != 100 {
		t.Fatalf("expected p95 100, got %v", stats.P95Us)
	}
}
