// Package metrics implements the FPS/drop-rate engine (C7) and the
// metrics-diff computer (C14). Grounded on
// original_source/src/metrics/fps.cpp.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/labops-dev/labops/pkg/backends"
	"github.com/labops-dev/labops/pkg/errs"
)

// RollingFpsSample is one rolling FPS measurement anchored at a received
// frame's timestamp.
type RollingFpsSample struct {
	WindowEnd     time.Time
	FramesInWindow uint64
	FPS           float64
}

// TimingStatsUs summarizes a microsecond-based timing distribution.
type TimingStatsUs struct {
	SampleCount uint64
	MinUs       float64
	AvgUs       float64
	P95Us       float64
}

// Report is the FPS/drop-rate summary emitted for one run.
type Report struct {
	AvgWindow    time.Duration
	RollingWindow time.Duration

	FramesTotal               uint64
	ReceivedFramesTotal       uint64
	DroppedFramesTotal        uint64
	DroppedGenericFramesTotal uint64
	TimeoutFramesTotal        uint64
	IncompleteFramesTotal     uint64

	DropRatePercent        float64
	GenericDropRatePercent float64
	TimeoutRatePercent     float64
	IncompleteRatePercent  float64

	AvgFPS float64

	RollingSamples []RollingFpsSample

	InterFrameIntervalUs TimingStatsUs
	InterFrameJitterUs   TimingStatsUs
}

// resolveOutcome reclassifies a legacy received+dropped_flag=true frame as
// generic dropped, preserving a behavior fixture authors still rely on
// (spec.md §9 Open Question, resolved: keep).
func resolveOutcome(frame backends.FrameSample) backends.FrameOutcome {
	if frame.Outcome == backends.FrameReceived && frame.DroppedSet && frame.Dropped {
		return backends.FrameDropped
	}
	return frame.Outcome
}

// ComputeReport computes average and rolling FPS using only received
// (non-dropped) frames (spec.md §4.6/§4.7). avgWindow and rollingWindow
// must both be positive.
func ComputeReport(frames []backends.FrameSample, avgWindow, rollingWindow time.Duration) (Report, error) {
	if avgWindow <= 0 {
		return Report{}, errs.New(errs.InputInvalid, "avg fps window must be greater than 0")
	}
	if rollingWindow <= 0 {
		return Report{}, errs.New(errs.InputInvalid, "rolling fps window must be greater than 0")
	}

	receivedTimestamps := make([]time.Time, 0, len(frames))
	var droppedTotal, droppedGenericTotal, timeoutTotal, incompleteTotal uint64

	for _, frame := range frames {
		switch resolveOutcome(frame) {
		case backends.FrameTimeout:
			timeoutTotal++
			droppedTotal++
		case backends.FrameIncomplete:
			incompleteTotal++
			droppedTotal++
		case backends.FrameDropped:
			droppedGenericTotal++
			droppedTotal++
		default:
			if frame.DroppedSet && frame.Dropped {
				droppedGenericTotal++
				droppedTotal++
				continue
			}
			receivedTimestamps = append(receivedTimestamps, frame.Timestamp)
		}
	}

	sort.Slice(receivedTimestamps, func(i, j int) bool { return receivedTimestamps[i].Before(receivedTimestamps[j]) })

	report := Report{
		AvgWindow:                 avgWindow,
		RollingWindow:             rollingWindow,
		FramesTotal:               uint64(len(frames)),
		ReceivedFramesTotal:       uint64(len(receivedTimestamps)),
		DroppedFramesTotal:        droppedTotal,
		DroppedGenericFramesTotal: droppedGenericTotal,
		TimeoutFramesTotal:        timeoutTotal,
		IncompleteFramesTotal:     incompleteTotal,
	}

	if report.FramesTotal > 0 {
		total := float64(report.FramesTotal)
		report.DropRatePercent = float64(droppedTotal) * 100.0 / total
		report.GenericDropRatePercent = float64(droppedGenericTotal) * 100.0 / total
		report.TimeoutRatePercent = float64(timeoutTotal) * 100.0 / total
		report.IncompleteRatePercent = float64(incompleteTotal) * 100.0 / total
	}

	avgWindowSeconds := avgWindow.Seconds()
	report.AvgFPS = float64(report.ReceivedFramesTotal) / avgWindowSeconds

	if len(receivedTimestamps) == 0 {
		return report, nil
	}

	rollingWindowSeconds := rollingWindow.Seconds()

	left := 0
	report.RollingSamples = make([]RollingFpsSample, 0, len(receivedTimestamps))
	for right := 0; right < len(receivedTimestamps); right++ {
		windowStart := receivedTimestamps[right].Add(-rollingWindow)
		for left < right && receivedTimestamps[left].Before(windowStart) {
			left++
		}
		count := uint64(right - left + 1)
		fps := float64(count) / rollingWindowSeconds
		report.RollingSamples = append(report.RollingSamples, RollingFpsSample{
			WindowEnd:      receivedTimestamps[right],
			FramesInWindow: count,
			FPS:            fps,
		})
	}

	if len(receivedTimestamps) >= 2 {
		intervalsUs := make([]float64, 0, len(receivedTimestamps)-1)
		for i := 1; i < len(receivedTimestamps); i++ {
			deltaUs := receivedTimestamps[i].Sub(receivedTimestamps[i-1]).Microseconds()
			intervalsUs = append(intervalsUs, float64(deltaUs))
		}
		report.InterFrameIntervalUs = computeTimingStatsUs(intervalsUs)

		jitterUs := make([]float64, 0, len(intervalsUs))
		for _, interval := range intervalsUs {
			jitterUs = append(jitterUs, math.Abs(interval-report.InterFrameIntervalUs.AvgUs))
		}
		report.InterFrameJitterUs = computeTimingStatsUs(jitterUs)
	}

	return report, nil
}

// computeTimingStatsUs reproduces ComputeTimingStatsUs's nearest-rank P95.
func computeTimingStatsUs(samplesUs []float64) TimingStatsUs {
	var stats TimingStatsUs
	if len(samplesUs) == 0 {
		return stats
	}

	sorted := append([]float64(nil), samplesUs...)
	sort.Float64s(sorted)

	stats.SampleCount = uint64(len(sorted))
	stats.MinUs = sorted[0]

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	stats.AvgUs = sum / float64(len(sorted))

	rank := int(math.Ceil(0.95 * float64(len(sorted))))
	index := 0
	if rank > 0 {
		index = rank - 1
	}
	stats.P95Us = sorted[index]
	return stats
}
