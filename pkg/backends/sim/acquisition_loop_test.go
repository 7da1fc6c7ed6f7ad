package sim

import (
	"testing"
	"time"

	"github.com/labops-dev/labops/pkg/backends"
)

func TestRunAcquisitionLoopRejectsNegativeDuration(t *testing.T) {
	_, err := RunAcquisitionLoop(FrameProvider{FrameSizeBytes: 1}, LoopInput{
		Duration:         -time.Millisecond,
		FrameRateFPS:     30,
		DefaultSizeBytes: 1024,
	})
	if err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestRunAcquisitionLoopRejectsNonPositiveFPS(t *testing.T) {
	_, err := RunAcquisitionLoop(FrameProvider{FrameSizeBytes: 1}, LoopInput{
		Duration:         time.Second,
		FrameRateFPS:     0,
		DefaultSizeBytes: 1024,
	})
	if err == nil {
		t.Fatal("expected error for non-positive fps")
	}
}

func TestRunAcquisitionLoopRejectsZeroDefaultSize(t *testing.T) {
	_, err := RunAcquisitionLoop(FrameProvider{FrameSizeBytes: 1}, LoopInput{
		Duration:         time.Second,
		FrameRateFPS:     30,
		DefaultSizeBytes: 0,
	})
	if err == nil {
		t.Fatal("expected error for zero default size")
	}
}

func TestRunAcquisitionLoopZeroDurationIsSuccessWithNoFrames(t *testing.T) {
	result, err := RunAcquisitionLoop(FrameProvider{FrameSizeBytes: 1024}, LoopInput{
		Duration:         0,
		FrameRateFPS:     30,
		DefaultSizeBytes: 1024,
		FirstFrameID:     7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Frames) != 0 {
		t.Fatalf("expected no frames for zero duration, got %d", len(result.Frames))
	}
	if result.NextFrameID != 7 {
		t.Fatalf("expected next_frame_id to carry forward unchanged, got %d", result.NextFrameID)
	}
}

func TestRunAcquisitionLoopFrameCountAndTimestampsAreMonotonic(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := FrameProvider{Seed: 1, FrameSizeBytes: 1024}
	result, err := RunAcquisitionLoop(provider, LoopInput{
		Duration:         800 * time.Millisecond,
		FrameRateFPS:     25,
		DefaultSizeBytes: 1024,
		StreamStart:      start,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Frames) != 20 {
		t.Fatalf("expected floor(800*25/1000)=20 frames, got %d", len(result.Frames))
	}
	for i := 1; i < len(result.Frames); i++ {
		if !result.Frames[i].Timestamp.After(result.Frames[i-1].Timestamp) {
			t.Fatalf("frame %d timestamp %v did not strictly advance past %v", i,
				result.Frames[i].Timestamp, result.Frames[i-1].Timestamp)
		}
	}
	if result.NextFrameID != 20 {
		t.Fatalf("expected next_frame_id=20, got %d", result.NextFrameID)
	}
}

func TestRunAcquisitionLoopTimeoutAndIncompleteCountAsDropped(t *testing.T) {
	provider := FrameProvider{Seed: 1, TimeoutPercent: 50, IncompletePercent: 50, FrameSizeBytes: 1024}
	result, err := RunAcquisitionLoop(provider, LoopInput{
		Duration:         time.Second,
		FrameRateFPS:     100,
		DefaultSizeBytes: 1024,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Counters.Dropped != result.Counters.Timeout+result.Counters.Incomplete {
		t.Fatalf("dropped counter must equal timeout+incomplete when no cadence drops occur: dropped=%d timeout=%d incomplete=%d",
			result.Counters.Dropped, result.Counters.Timeout, result.Counters.Incomplete)
	}
	for _, f := range result.Frames {
		if f.Outcome == backends.FrameTimeout && f.SizeBytes != 0 {
			t.Fatalf("timeout frame must report zero size, got %d", f.SizeBytes)
		}
	}
}
