package sim

import (
	"testing"

	"github.com/labops-dev/labops/pkg/backends"
)

func TestDetermineOutcomeNoFaultsAlwaysReceived(t *testing.T) {
	for frameID := uint64(0); frameID < 50; frameID++ {
		if got := determineOutcome(42, frameID, 0, 0); got != backends.FrameReceived {
			t.Fatalf("frame %d: got %v, want received", frameID, got)
		}
	}
}

func TestDetermineOutcomeIsDeterministic(t *testing.T) {
	a := determineOutcome(7, 100, 20, 20)
	b := determineOutcome(7, 100, 20, 20)
	if a != b {
		t.Fatalf("same (seed, frame_id, percents) produced different outcomes: %v vs %v", a, b)
	}
}

func TestFrameProviderClampsCombinedPercentAndNeverPanics(t *testing.T) {
	p := FrameProvider{Seed: 1, TimeoutPercent: 80, IncompletePercent: 80, FrameSizeBytes: 1024}
	for frameID := uint64(0); frameID < 1000; frameID++ {
		result := p.Next(frameID)
		switch result.Outcome {
		case backends.FrameReceived, backends.FrameTimeout, backends.FrameIncomplete:
		default:
			t.Fatalf("frame provider produced unexpected outcome %v", result.Outcome)
		}
	}
}

func TestFrameProviderSizeNormalization(t *testing.T) {
	p := FrameProvider{Seed: 1, TimeoutPercent: 100, IncompletePercent: 0, FrameSizeBytes: 1024}
	result := p.Next(0)
	if result.Outcome != backends.FrameTimeout {
		t.Fatalf("expected forced timeout outcome with 100%% timeout share, got %v", result.Outcome)
	}
	if result.SizeBytes != 0 {
		t.Fatalf("timeout outcome must report zero size, got %d", result.SizeBytes)
	}
}

func TestFrameProviderIncompleteSizeFloorsAtOne(t *testing.T) {
	p := FrameProvider{Seed: 1, TimeoutPercent: 0, IncompletePercent: 100, FrameSizeBytes: 2}
	result := p.Next(0)
	if result.Outcome != backends.FrameIncomplete {
		t.Fatalf("expected forced incomplete outcome, got %v", result.Outcome)
	}
	if result.SizeBytes == 0 {
		t.Fatalf("incomplete size must never be zero, got %d", result.SizeBytes)
	}
}
