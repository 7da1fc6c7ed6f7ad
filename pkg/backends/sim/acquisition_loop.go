package sim

import (
	"math"
	"time"

	"github.com/labops-dev/labops/pkg/backends"
	"github.com/labops-dev/labops/pkg/errs"
)

// AcquisitionEventType classifies one frame for the event stream, mirroring
// original_source/src/backends/real_sdk/acquisition_loop.cpp's
// ToAcquisitionEventType. It is a stable test contract independent of the
// provider implementation.
type AcquisitionEventType int

const (
	EventFrameReceived AcquisitionEventType = iota
	EventFrameDropped
	EventFrameTimeout
	EventFrameIncomplete
)

// ToAcquisitionEventType classifies a produced frame sample.
func ToAcquisitionEventType(frame backends.FrameSample) AcquisitionEventType {
	switch frame.Outcome {
	case backends.FrameTimeout:
		return EventFrameTimeout
	case backends.FrameIncomplete:
		return EventFrameIncomplete
	case backends.FrameDropped:
		return EventFrameDropped
	case backends.FrameReceived:
		fallthrough
	default:
		if frame.DroppedSet && frame.Dropped {
			return EventFrameDropped
		}
		return EventFrameReceived
	}
}

// Provider is the C1 capability: a pure function of (seed, frame_id) that
// yields one raw outcome sample.
type Provider interface {
	Next(frameID uint64) ProviderResult
}

// LoopInput is the C2 acquisition loop's input contract (spec.md §4.1).
type LoopInput struct {
	Duration          time.Duration
	FrameRateFPS      float64
	DefaultSizeBytes  uint32
	FirstFrameID      uint64
	StreamStart       time.Time
}

// LoopResult is the C2 acquisition loop's output.
type LoopResult struct {
	Frames      []backends.FrameSample
	Events      []AcquisitionEventType
	Counters    backends.AcquisitionCounters
	NextFrameID uint64
}

// RunAcquisitionLoop reproduces RunAcquisitionLoop exactly: frame-count and
// period derivation, per-frame stall-period/timestamp bookkeeping with
// strict monotonic collision bumping, and per-outcome size normalization
// (spec.md §4.1 steps 1-6).
func RunAcquisitionLoop(provider Provider, input LoopInput) (LoopResult, error) {
	var result LoopResult

	if input.Duration < 0 {
		return result, errs.New(errs.InputInvalid, "acquisition loop duration cannot be negative")
	}
	if input.FrameRateFPS <= 0 || math.IsNaN(input.FrameRateFPS) || math.IsInf(input.FrameRateFPS, 0) {
		return result, errs.New(errs.InputInvalid, "acquisition loop requires a positive finite frame_rate_fps")
	}
	if input.DefaultSizeBytes == 0 {
		return result, errs.New(errs.InputInvalid, "acquisition loop requires default_frame_size_bytes > 0")
	}

	if input.Duration == 0 {
		result.NextFrameID = input.FirstFrameID
		return result, nil
	}

	durationMs := float64(input.Duration.Milliseconds())
	frameCountExact := (durationMs * input.FrameRateFPS) / 1000.0
	var frameCount uint64
	if frameCountExact > 0 {
		frameCount = uint64(frameCountExact)
	}
	if frameCount == 0 {
		result.NextFrameID = input.FirstFrameID
		return result, nil
	}

	periodNsDouble := 1_000_000_000.0 / input.FrameRateFPS
	periodNsCount := int64(math.Round(periodNsDouble))
	if periodNsCount < 1 {
		periodNsCount = 1
	}
	framePeriod := time.Duration(periodNsCount)

	result.Frames = make([]backends.FrameSample, 0, frameCount)
	result.Events = make([]AcquisitionEventType, 0, frameCount)

	var stallPeriodsTotal uint64
	for index := uint64(0); index < frameCount; index++ {
		frameID := input.FirstFrameID + index

		provided := provider.Next(frameID)

		stallPeriodsTotal += provided.StallPeriods
		logicalPeriodIndex := frameID + stallPeriodsTotal

		frame := backends.FrameSample{
			FrameID:   frameID,
			Outcome:   provided.Outcome,
			Timestamp: input.StreamStart.Add(framePeriod * time.Duration(logicalPeriodIndex)),
		}
		if len(result.Frames) > 0 {
			prev := result.Frames[len(result.Frames)-1].Timestamp
			if !frame.Timestamp.After(prev) {
				frame.Timestamp = prev.Add(time.Microsecond)
			}
		}

		switch provided.Outcome {
		case backends.FrameTimeout:
			frame.SizeBytes = 0
			frame.DroppedSet, frame.Dropped = true, true
			result.Counters.Timeout++
			result.Counters.Dropped++
		case backends.FrameIncomplete:
			if provided.SizeBytes == 0 {
				frame.SizeBytes = input.DefaultSizeBytes / 4
				if frame.SizeBytes < 1 {
					frame.SizeBytes = 1
				}
			} else {
				frame.SizeBytes = provided.SizeBytes
			}
			frame.DroppedSet, frame.Dropped = true, true
			result.Counters.Incomplete++
			result.Counters.Dropped++
		case backends.FrameDropped:
			frame.SizeBytes = 0
			frame.DroppedSet, frame.Dropped = true, true
			result.Counters.Dropped++
		case backends.FrameReceived:
			fallthrough
		default:
			if provided.SizeBytes == 0 {
				frame.SizeBytes = input.DefaultSizeBytes
			} else {
				frame.SizeBytes = provided.SizeBytes
			}
			result.Counters.Received++
		}

		result.Events = append(result.Events, ToAcquisitionEventType(frame))
		result.Frames = append(result.Frames, frame)
	}

	result.Counters.FramesTotal = uint64(len(result.Frames))
	result.Counters.StallPeriods = stallPeriodsTotal
	result.NextFrameID = input.FirstFrameID + frameCount
	return result, nil
}
