// Package webcam implements the host-webcam backend variant (C6): a
// platform probe plus a Connect path that reports per-platform capture
// unavailability instead of silently no-oping, grounded on
// original_source/src/backends/webcam/windows/platform_probe_windows.cpp.
package webcam

import (
	"context"
	"fmt"
	"runtime"

	"github.com/labops-dev/labops/pkg/backends"
	"github.com/labops-dev/labops/pkg/errs"
)

// PlatformAvailability reports whether this build's webcam capture path is
// wired for the current platform, mirroring ProbePlatformAvailability*.
type PlatformAvailability struct {
	PlatformName          string
	Available             bool
	UnavailabilityReason  string
}

// ProbePlatformAvailability reports capture availability for runtime.GOOS.
// No platform has a capture path implemented yet (spec.md §9's webcam
// backend is a capability-contract placeholder, not a driver integration).
func ProbePlatformAvailability() PlatformAvailability {
	switch runtime.GOOS {
	case "windows":
		return PlatformAvailability{
			PlatformName:         "windows",
			UnavailabilityReason: "Media Foundation webcam capture path is not implemented yet",
		}
	case "darwin":
		return PlatformAvailability{
			PlatformName:         "darwin",
			UnavailabilityReason: "AVFoundation webcam capture path is not implemented yet",
		}
	case "linux":
		return PlatformAvailability{
			PlatformName:         "linux",
			UnavailabilityReason: "V4L2 webcam capture path is not implemented yet",
		}
	default:
		return PlatformAvailability{
			PlatformName:         runtime.GOOS,
			UnavailabilityReason: "webcam capture path is not implemented for this platform",
		}
	}
}

// Backend is the host-webcam capability contract (C6): it always fails
// Connect with the platform probe's unavailability reason, the same
// guaranteed-failure shape as sdkstub but with a host-specific message.
type Backend struct {
	params    map[string]string
	connected bool
	running   bool
}

// New builds a Backend with its platform probe recorded as a diagnostic.
func New() *Backend {
	probe := ProbePlatformAvailability()
	return &Backend{
		params: map[string]string{
			"backend":      "webcam",
			"platform":     probe.PlatformName,
			"capture_path": "not_implemented",
		},
	}
}

func (b *Backend) Name() string { return "webcam" }

func (b *Backend) Connect(ctx context.Context) (backends.ConnectInfo, error) {
	if b.connected {
		return backends.ConnectInfo{}, errs.New(errs.BackendConnectFailure, "webcam backend is already connected")
	}
	probe := ProbePlatformAvailability()
	return backends.ConnectInfo{}, errs.New(errs.BackendConnectFailure,
		fmt.Sprintf("webcam backend unavailable on %s: %s", probe.PlatformName, probe.UnavailabilityReason))
}

func (b *Backend) Start(ctx context.Context) error {
	if !b.connected {
		return errs.New(errs.InputInvalid, "webcam backend cannot start before a successful connect")
	}
	return errs.New(errs.BackendConnectFailure, "webcam backend cannot start stream because capture path is not implemented")
}

func (b *Backend) Stop(ctx context.Context) error {
	if !b.running {
		return errs.New(errs.InputInvalid, "webcam backend is not running")
	}
	return errs.New(errs.BackendConnectFailure, "webcam backend cannot stop stream because no active capture session exists")
}

func (b *Backend) SetParam(ctx context.Context, key, value string) error {
	if key == "" {
		return errs.New(errs.InputInvalid, "parameter key cannot be empty")
	}
	if value == "" {
		return errs.New(errs.InputInvalid, "parameter value cannot be empty")
	}
	b.params[key] = value
	return nil
}

func (b *Backend) GetParam(ctx context.Context, key string) (string, error) {
	value, ok := b.params[key]
	if !ok {
		return "", errs.New(errs.InputInvalid, "no such parameter: "+key)
	}
	return value, nil
}

func (b *Backend) DumpConfig(ctx context.Context) (backends.BackendConfig, error) {
	config := backends.BackendConfig{}
	for k, v := range b.params {
		config[k] = v
	}
	config["connected"] = boolString(b.connected)
	config["running"] = boolString(b.running)
	return config, nil
}

func (b *Backend) PullFrames(ctx context.Context, req backends.PullRequest) (backends.PullResult, error) {
	if req.DurationMs < 0 {
		return backends.PullResult{}, errs.New(errs.InputInvalid, "pull_frames duration cannot be negative")
	}
	if !b.connected {
		return backends.PullResult{}, errs.New(errs.InputInvalid, "webcam backend cannot pull frames before a successful connect")
	}
	return backends.PullResult{}, errs.New(errs.BackendConnectFailure, "webcam backend cannot produce frames because capture path is not implemented")
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
