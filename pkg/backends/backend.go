// Package backends defines the camera-backend capability contract (C6) and
// the frame-sample data model shared by every backend implementation
// (sim, webcam, real, sdkstub). spec.md §9 calls for "one variant per
// backend implementation... no inheritance"; Go expresses that directly as
// one interface with independent concrete implementations instead of the
// virtual-dispatch hierarchy the reference C++ uses.
package backends

import (
	"context"
	"time"
)

// FrameOutcome is the per-frame classification produced by the frame
// provider (C1) and consumed by the acquisition loop (C2) and metrics
// engine (C7).
type FrameOutcome int

const (
	FrameReceived FrameOutcome = iota
	FrameTimeout
	FrameIncomplete
	FrameDropped
)

func (o FrameOutcome) String() string {
	switch o {
	case FrameReceived:
		return "received"
	case FrameTimeout:
		return "timeout"
	case FrameIncomplete:
		return "incomplete"
	case FrameDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// FrameSample is one frame emitted by the acquisition loop (spec.md §3).
type FrameSample struct {
	FrameID    uint64
	Timestamp  time.Time
	SizeBytes  uint32
	Outcome    FrameOutcome
	DroppedSet bool // whether DroppedFlag was explicitly populated
	Dropped    bool // DroppedFlag value when DroppedSet is true
}

// AcquisitionCounters summarizes one acquisition run (spec.md §3).
type AcquisitionCounters struct {
	FramesTotal     uint64
	Received        uint64
	Dropped         uint64
	Timeout         uint64
	Incomplete      uint64
	StallPeriods    uint64
	NextFrameID     uint64
}

// BackendConfig is an opaque raw key/value dump of a backend's current
// configuration state, used by camera_config.json's raw snapshot section.
type BackendConfig map[string]string

// ConnectInfo is returned by Connect with the identity of the device that
// was connected to, if any.
type ConnectInfo struct {
	Connected bool
	Device    DeviceIdentity
}

// DeviceIdentity identifies the device a real/webcam backend connected to.
type DeviceIdentity struct {
	VendorName   string
	ModelName    string
	SerialNumber string
}

// PullRequest describes one acquisition pull.
type PullRequest struct {
	DurationMs    int64
	FPS           int
	FirstFrameID  uint64
	StreamStart   time.Time
	DefaultSize   uint32
}

// PullResult is the outcome of one PullFrames call.
type PullResult struct {
	Frames   []FrameSample
	Counters AcquisitionCounters
}

// Backend is the opaque capability contract every camera backend
// implements: connect/start/stop/set-param/dump-config/pull-frames
// (spec.md §2 C6, §9).
type Backend interface {
	// Connect establishes the backend connection. Failure here is the
	// backend_connect_failure error kind (spec.md §7).
	Connect(ctx context.Context) (ConnectInfo, error)

	// Start begins a capture session after a successful Connect.
	Start(ctx context.Context) error

	// SetParam writes one resolved node name/value pair, as produced by the
	// apply-params engine (C5). Rejection here is fatal regardless of apply
	// mode (spec.md §4.3 step 5).
	SetParam(ctx context.Context, nodeName, value string) error

	// GetParam reads back one node's current value as a string, used for
	// the apply-params readback step.
	GetParam(ctx context.Context, nodeName string) (string, error)

	// DumpConfig returns a raw key/value snapshot of backend configuration
	// for camera_config.json's low-level debugging section.
	DumpConfig(ctx context.Context) (BackendConfig, error)

	// PullFrames runs one acquisition and returns its frame sequence and
	// counters.
	PullFrames(ctx context.Context, req PullRequest) (PullResult, error)

	// Stop ends the capture session. Always called on every exit path once
	// Start succeeded (spec.md §5).
	Stop(ctx context.Context) error

	// Name identifies the backend variant ("sim", "webcam", "real",
	// "sdkstub"), recorded in the orchestrator's release audit log.
	Name() string
}
