package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/labops-dev/labops/pkg/backends"
	"github.com/labops-dev/labops/pkg/errs"
	"github.com/labops-dev/labops/pkg/scenario"
)

const (
	defaultFrameSizeBytes uint32 = 1_048_576
	jitterSalt            uint64 = 0xc0ffee00c0ffee01
	reorderSalt           uint64 = 0x5a5a5a5a5a5a5a5a
)

// Backend is the deterministic, hardware-free camera backend (spec.md §2
// C6, sim variant). It translates a scenario's sim_faults knobs into the
// generic frame-provider/acquisition-loop contract (C1/C2) plus three
// post-processing passes the reference provider does not itself model:
// deterministic cadence dropping (drop_every_n/burst_drop), timestamp
// jitter (jitter_us), and out-of-order delivery (reorder). Grounded on
// original_source/src/backends/sim/sim_camera_backend.cpp for the
// drop_every_n/jitter formulas and real_sdk/frame_provider.cpp for the
// timeout/incomplete split; the two reference implementations model
// corruption differently, so this backend reconciles them (see DESIGN.md).
type Backend struct {
	scenario    scenario.Scenario
	params      map[string]string
	connected   bool
	running     bool
	nextFrameID uint64
}

// New constructs a sim backend for one scenario.
func New(s scenario.Scenario) *Backend {
	return &Backend{
		scenario: s,
		params:   map[string]string{"backend": "sim", "pixel_format": "mono8", "trigger_mode": "free_run"},
	}
}

func (b *Backend) Name() string { return "sim" }

func (b *Backend) Connect(ctx context.Context) (backends.ConnectInfo, error) {
	if b.connected {
		return backends.ConnectInfo{}, errs.New(errs.BackendConnectFailure, "sim backend is already connected")
	}
	b.connected = true
	return backends.ConnectInfo{Connected: true}, nil
}

func (b *Backend) Start(ctx context.Context) error {
	if !b.connected {
		return errs.New(errs.BackendConnectFailure, "sim backend must be connected before start")
	}
	if b.running {
		return errs.New(errs.InputInvalid, "sim backend is already running")
	}
	b.running = true
	b.nextFrameID = 0
	return nil
}

func (b *Backend) Stop(ctx context.Context) error {
	if !b.running {
		return errs.New(errs.InputInvalid, "sim backend is not running")
	}
	b.running = false
	return nil
}

func (b *Backend) SetParam(ctx context.Context, nodeName, value string) error {
	if nodeName == "" {
		return errs.New(errs.InputInvalid, "parameter key cannot be empty")
	}
	if value == "" {
		return errs.New(errs.InputInvalid, "parameter value cannot be empty")
	}
	b.params[nodeName] = value
	return nil
}

func (b *Backend) GetParam(ctx context.Context, nodeName string) (string, error) {
	v, ok := b.params[nodeName]
	if !ok {
		return "", errs.New(errs.InputInvalid, fmt.Sprintf("unknown sim node %q", nodeName))
	}
	return v, nil
}

func (b *Backend) DumpConfig(ctx context.Context) (backends.BackendConfig, error) {
	dump := make(backends.BackendConfig, len(b.params)+2)
	for k, v := range b.params {
		dump[k] = v
	}
	dump["connected"] = fmt.Sprintf("%t", b.connected)
	dump["running"] = fmt.Sprintf("%t", b.running)
	return dump, nil
}

// PullFrames runs the generic acquisition loop (C2) against a deterministic
// provider parameterized from the scenario's sim_faults, then applies
// cadence-drop, jitter, and reorder post-processing.
func (b *Backend) PullFrames(ctx context.Context, req backends.PullRequest) (backends.PullResult, error) {
	if !b.running {
		return backends.PullResult{}, errs.New(errs.InputInvalid, "sim backend must be running before pull_frames")
	}

	faults := b.scenario.SimFaults
	frameSize := defaultFrameSizeBytes
	if req.DefaultSize > 0 {
		frameSize = req.DefaultSize
	}

	// A single drop_percent knob splits evenly across the provider's two
	// corruption outcomes (timeout/incomplete); drop_every_n/burst_drop model
	// a distinct deterministic-cadence failure mode applied afterward.
	timeoutPercent := float64(faults.DropPercent) / 2
	incompletePercent := float64(faults.DropPercent) / 2

	provider := FrameProvider{
		Seed:              faults.Seed,
		TimeoutPercent:    timeoutPercent,
		IncompletePercent: incompletePercent,
		FrameSizeBytes:    frameSize,
	}

	loopResult, err := RunAcquisitionLoop(provider, LoopInput{
		Duration:         time.Duration(req.DurationMs) * time.Millisecond,
		FrameRateFPS:     float64(req.FPS),
		DefaultSizeBytes: frameSize,
		FirstFrameID:     req.FirstFrameID,
		StreamStart:      req.StreamStart,
	})
	if err != nil {
		return backends.PullResult{}, err
	}

	applyCadenceDrop(loopResult.Frames, &loopResult.Counters, faults.DropEveryN, faults.BurstDrop)
	applyJitter(loopResult.Frames, faults.Seed, faults.JitterUs)
	applyReorder(loopResult.Frames, faults.Seed, faults.Reorder)

	b.nextFrameID = loopResult.NextFrameID

	return backends.PullResult{Frames: loopResult.Frames, Counters: loopResult.Counters}, nil
}

// applyCadenceDrop reclassifies received frames to dropped at a fixed
// cadence, extending each trigger by burstDrop additional consecutive
// frames, reproducing sim_camera_backend.cpp's drop_every_n modulo rule
// generalized with a burst length.
func applyCadenceDrop(frames []backends.FrameSample, counters *backends.AcquisitionCounters, dropEveryN, burstDrop uint32) {
	if dropEveryN == 0 {
		return
	}
	burstRemaining := uint32(0)
	for i := range frames {
		frame := &frames[i]
		triggered := (frame.FrameID+1)%uint64(dropEveryN) == 0
		if triggered {
			burstRemaining = burstDrop + 1
		}
		if burstRemaining == 0 {
			continue
		}
		burstRemaining--
		if frame.Outcome == backends.FrameReceived {
			frame.Outcome = backends.FrameDropped
			frame.SizeBytes = 0
			frame.DroppedSet, frame.Dropped = true, true
			counters.Received--
			counters.Dropped++
		}
	}
}

// applyJitter perturbs each frame's timestamp by a deterministic signed
// offset in [-jitterUs, +jitterUs], reproducing
// sim_camera_backend.cpp's DeterministicJitterUs, then re-enforces strict
// monotonic ordering.
func applyJitter(frames []backends.FrameSample, seed uint64, jitterUs uint32) {
	if jitterUs == 0 {
		return
	}
	for i := range frames {
		mixed := splitMix64((seed ^ jitterSalt) + frames[i].FrameID*splitMixIncrement)
		span := uint64(jitterUs)*2 + 1
		offset := int64(mixed%span) - int64(jitterUs)
		frames[i].Timestamp = frames[i].Timestamp.Add(time.Duration(offset) * time.Microsecond)
	}
	for i := 1; i < len(frames); i++ {
		if !frames[i].Timestamp.After(frames[i-1].Timestamp) {
			frames[i].Timestamp = frames[i-1].Timestamp.Add(time.Microsecond)
		}
	}
}

// applyReorder swaps a frame's timestamp with its predecessor's whenever a
// deterministic sample falls under the reorder percentage, simulating
// out-of-order packet delivery without changing frame_id assignment.
func applyReorder(frames []backends.FrameSample, seed uint64, reorderPercent uint32) {
	if reorderPercent == 0 {
		return
	}
	for i := 1; i < len(frames); i++ {
		mixed := splitMix64((seed ^ reorderSalt) + frames[i].FrameID*splitMixIncrement)
		samplePercent := float64(mixed%100000) / 1000.0
		if samplePercent < float64(reorderPercent) {
			frames[i].Timestamp, frames[i-1].Timestamp = frames[i-1].Timestamp, frames[i].Timestamp
		}
	}
}
