// Package sim implements the deterministic simulation backend: the frame
// provider (C1) and acquisition loop (C2). Grounded on
// original_source/src/backends/real_sdk/{frame_provider,acquisition_loop}.{hpp,cpp}.
// Every constant and formula below is reproduced exactly so that
// (seed, scenario) pairs stay byte-for-byte reproducible across
// implementations (spec.md §8).
package sim

import "github.com/labops-dev/labops/pkg/backends"

// splitMixIncrement and outcomeSalt are the exact constants from the
// reference SplitMix64-derived mixer.
const (
	splitMixIncrement uint64 = 0x9e3779b97f4a7c15
	outcomeSalt       uint64 = 0x8b8b8b8b8b8b8b8b
)

// splitMix64 is the exact bit-mixing function used to derive a
// pseudo-random outcome sample from (seed, frame_id).
func splitMix64(value uint64) uint64 {
	state := value + splitMixIncrement
	state = (state ^ (state >> 30)) * 0xbf58476d1ce4e5b9
	state = (state ^ (state >> 27)) * 0x94d049bb133111eb
	return state ^ (state >> 31)
}

// determineOutcome reproduces DetermineOutcome exactly: percent shares
// arrive already clamped by Next so they never exceed 100% combined, and
// the sample is drawn from
// the low digits of the mixed value, mapped to a fixed-point percent in
// [0, 100). It only ever yields received/timeout/incomplete: a kDropped
// outcome never originates in the provider itself in the reference
// implementation, only from the acquisition loop's own fault bookkeeping.
func determineOutcome(seed uint64, frameID uint64, timeoutPercent, incompletePercent float64) backends.FrameOutcome {
	if timeoutPercent <= 0 && incompletePercent <= 0 {
		return backends.FrameReceived
	}

	mixed := splitMix64((seed ^ outcomeSalt) + frameID*splitMixIncrement)
	samplePercent := float64(mixed%100000) / 1000.0

	if samplePercent < timeoutPercent {
		return backends.FrameTimeout
	}
	if samplePercent < timeoutPercent+incompletePercent {
		return backends.FrameIncomplete
	}
	return backends.FrameReceived
}

// ProviderResult is one frame's raw provider output before the acquisition
// loop applies timestamp/stall-period bookkeeping.
type ProviderResult struct {
	Outcome      backends.FrameOutcome
	SizeBytes    uint32
	StallPeriods uint64
}

// FrameProvider is a deterministic, pure function of (seed, frame_id),
// matching DeterministicFrameProvider::Next.
type FrameProvider struct {
	Seed              uint64
	TimeoutPercent    float64
	IncompletePercent float64
	FrameSizeBytes    uint32
	// StallPeriodsFn optionally injects extra inter-frame stall periods for
	// a given frame id. The sim Backend leaves it nil (its jitter and
	// drop-every-n knobs are post-processing passes). A nil func means zero
	// stall periods for every frame.
	StallPeriodsFn func(frameID uint64) uint64
}

// Next derives the outcome and size for frameID.
func (p FrameProvider) Next(frameID uint64) ProviderResult {
	timeoutPercent := p.TimeoutPercent
	incompletePercent := p.IncompletePercent
	if timeoutPercent < 0 {
		timeoutPercent = 0
	}
	if incompletePercent < 0 {
		incompletePercent = 0
	}
	if timeoutPercent+incompletePercent > 100 {
		// Clamp combined share to 100%, preserving the relative split.
		total := timeoutPercent + incompletePercent
		scale := 100.0 / total
		timeoutPercent *= scale
		incompletePercent *= scale
	}

	outcome := determineOutcome(p.Seed, frameID, timeoutPercent, incompletePercent)

	var sizeBytes uint32
	switch outcome {
	case backends.FrameTimeout:
		sizeBytes = 0
	case backends.FrameIncomplete:
		sizeBytes = p.FrameSizeBytes / 4
		if sizeBytes < 1 {
			sizeBytes = 1
		}
	default:
		sizeBytes = p.FrameSizeBytes
	}

	stall := uint64(0)
	if p.StallPeriodsFn != nil {
		stall = p.StallPeriodsFn(frameID)
	}

	return ProviderResult{Outcome: outcome, SizeBytes: sizeBytes, StallPeriods: stall}
}
