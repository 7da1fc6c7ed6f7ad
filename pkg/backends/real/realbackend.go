// Package real implements the vendor-SDK-adjacent backend (C6): a
// not-yet-integrated bring-up skeleton that exercises the same node-map
// adapter, parameter key map, and apply-params engine a linked vendor SDK
// would sit behind, plus a deterministic frame provider standing in for the
// SDK stream until one is wired. Grounded on
// original_source/src/backends/real_sdk/real_backend.cpp.
package real

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/labops-dev/labops/pkg/backends"
	"github.com/labops-dev/labops/pkg/backends/sim"
	"github.com/labops-dev/labops/pkg/errs"
)

const (
	defaultFrameRateFPS       = 30.0
	defaultFrameSizeBytes     = 4096
	defaultTimeoutPercent     = 1.0
	defaultIncompletePercent  = 1.0
	defaultSeed               = 1
)

// Backend is the real-SDK bring-up skeleton: a full node-map/key-map/
// apply-params stack wired to a deterministic provider instead of a linked
// vendor SDK (spec.md §9's "one real vendor SDK, stubbed" non-goal).
type Backend struct {
	params                    map[string]string
	connected                 bool
	running                   bool
	nextFrameID               uint64
	streamStart               time.Time
	pullCalls                 uint64
	disconnectAfterPullCalls  uint64
	hasDisconnectAfterPulls   bool
	simulatedDisconnectLatched bool
	sdkLogPath                string

	NodeAdapter NodeMapAdapter
	KeyMap      ParamKeyMap
}

// New builds a Backend with its default parameter table, matching
// RealBackend's constructor.
func New() *Backend {
	b := &Backend{
		params: map[string]string{
			"backend":                 "real",
			"integration_stage":       "skeleton",
			"sdk_adapter":             "pending_vendor_integration",
			"stream_session":          "raii",
			"AcquisitionFrameRate":    "30",
			"PayloadSize":             "4096",
			"FrameTimeoutPercent":     "1.0",
			"FrameIncompletePercent":  "1.0",
			"FrameSeed":               "1",
		},
		NodeAdapter: CreateDefaultNodeMapAdapter(),
	}

	if raw := os.Getenv("LABOPS_REAL_DISCONNECT_AFTER_PULLS"); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil && parsed > 0 {
			b.disconnectAfterPullCalls = parsed
			b.hasDisconnectAfterPulls = true
			b.params["simulate_disconnect_after_pull_calls"] = strconv.FormatUint(parsed, 10)
		}
	}

	return b
}

func (b *Backend) appendSDKLog(message string) {
	if b.sdkLogPath == "" {
		return
	}
	f, err := os.OpenFile(b.sdkLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintln(f, message)
}

func (b *Backend) Name() string { return "real" }

func (b *Backend) Connect(ctx context.Context) (backends.ConnectInfo, error) {
	if b.connected {
		b.appendSDKLog("connect status=error reason=already_connected")
		return backends.ConnectInfo{}, errs.New(errs.BackendConnectFailure, "real backend skeleton is already connected")
	}
	if b.simulatedDisconnectLatched {
		b.appendSDKLog("connect status=error reason=device_unavailable_after_disconnect")
		return backends.ConnectInfo{}, errs.New(errs.BackendConnectFailure, "device unavailable after disconnect")
	}

	b.connected = true
	b.appendSDKLog("connect status=success")
	return backends.ConnectInfo{
		Connected: true,
		Device: backends.DeviceIdentity{
			VendorName: "labops-real-skeleton",
			ModelName:  "pending-vendor-integration",
		},
	}, nil
}

func (b *Backend) Start(ctx context.Context) error {
	if !b.connected {
		b.appendSDKLog("start status=error reason=not_connected")
		return errs.New(errs.InputInvalid, "real backend skeleton cannot start before a successful connect")
	}
	b.running = true
	if b.nextFrameID == 0 {
		b.streamStart = time.Now().UTC()
	}
	b.appendSDKLog("start status=success")
	return nil
}

func (b *Backend) Stop(ctx context.Context) error {
	if !b.connected && !b.running {
		b.appendSDKLog("stop status=success reason=already_stopped")
		return nil
	}
	if !b.connected {
		b.appendSDKLog("stop status=error reason=not_connected")
		return errs.New(errs.InputInvalid, "real backend skeleton cannot stop before a successful connect")
	}
	b.running = false
	b.appendSDKLog("stop status=success")
	return nil
}

func (b *Backend) SetParam(ctx context.Context, key, value string) error {
	if key == "" {
		return errs.New(errs.InputInvalid, "parameter key cannot be empty")
	}
	if value == "" {
		return errs.New(errs.InputInvalid, "parameter value cannot be empty")
	}

	if key == "sdk.log.path" {
		b.sdkLogPath = value
		if err := os.WriteFile(b.sdkLogPath, []byte("sdk_log_capture=enabled backend=real\n"), 0o644); err != nil {
			return errs.Wrap(errs.IOFailure, fmt.Sprintf("unable to open sdk log path: %s", value), err)
		}
		b.params[key] = value
		return nil
	}

	b.params[key] = value
	b.appendSDKLog(fmt.Sprintf("set_param key=%s value=%s status=accepted", key, value))
	return nil
}

func (b *Backend) GetParam(ctx context.Context, key string) (string, error) {
	value, ok := b.params[key]
	if !ok {
		return "", errs.New(errs.InputInvalid, fmt.Sprintf("no such parameter: %s", key))
	}
	return value, nil
}

func (b *Backend) DumpConfig(ctx context.Context) (backends.BackendConfig, error) {
	config := backends.BackendConfig{}
	for k, v := range b.params {
		config[k] = v
	}
	config["connected"] = strconv.FormatBool(b.connected)
	config["running"] = strconv.FormatBool(b.running)
	return config, nil
}

func tryGetParamValue(params map[string]string, keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := params[key]; ok {
			return value, true
		}
	}
	return "", false
}

func resolveFrameRateFPS(params map[string]string) (float64, error) {
	raw, ok := tryGetParamValue(params, "AcquisitionFrameRate", "frame_rate", "fps")
	if !ok {
		return defaultFrameRateFPS, nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, errs.New(errs.InputInvalid, fmt.Sprintf("invalid AcquisitionFrameRate parameter value: %s", raw))
	}
	return parsed, nil
}

func resolveFrameSizeBytes(params map[string]string) (uint32, error) {
	raw, ok := tryGetParamValue(params, "PayloadSize", "frame_size_bytes")
	if !ok {
		return defaultFrameSizeBytes, nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || parsed == 0 {
		return 0, errs.New(errs.InputInvalid, fmt.Sprintf("invalid PayloadSize parameter value: %s", raw))
	}
	return uint32(parsed), nil
}

func resolveSeed(params map[string]string) (uint64, error) {
	raw, ok := tryGetParamValue(params, "FrameSeed", "seed")
	if !ok {
		return defaultSeed, nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errs.New(errs.InputInvalid, fmt.Sprintf("invalid FrameSeed parameter value: %s", raw))
	}
	return parsed, nil
}

func resolvePercent(params map[string]string, canonicalKey string, defaultValue float64, keys ...string) (float64, error) {
	raw, ok := tryGetParamValue(params, keys...)
	if !ok {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed < 0 || parsed > 100 || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, errs.New(errs.InputInvalid, fmt.Sprintf("invalid %s parameter value: %s (expected 0..100)", canonicalKey, raw))
	}
	return parsed, nil
}

// PullFrames runs one acquisition using a deterministic provider standing in
// for a linked vendor SDK stream, and simulates a mid-stream disconnect when
// LABOPS_REAL_DISCONNECT_AFTER_PULLS is configured.
func (b *Backend) PullFrames(ctx context.Context, req backends.PullRequest) (backends.PullResult, error) {
	if req.DurationMs < 0 {
		b.appendSDKLog("pull_frames status=error reason=negative_duration")
		return backends.PullResult{}, errs.New(errs.InputInvalid, "pull_frames duration cannot be negative")
	}
	if !b.connected {
		b.appendSDKLog("pull_frames status=error reason=not_connected")
		return backends.PullResult{}, errs.New(errs.InputInvalid, "real backend skeleton cannot pull frames before a successful connect")
	}
	if !b.running {
		b.appendSDKLog("pull_frames status=error reason=stream_not_running")
		return backends.PullResult{}, errs.New(errs.InputInvalid, "real backend skeleton cannot pull frames while stream is stopped")
	}
	if req.DurationMs == 0 {
		b.appendSDKLog("pull_frames status=success frames=0 reason=zero_duration")
		return backends.PullResult{}, nil
	}

	b.pullCalls++
	if b.hasDisconnectAfterPulls && b.pullCalls >= b.disconnectAfterPullCalls {
		b.running = false
		b.simulatedDisconnectLatched = true
		b.connected = false
		b.appendSDKLog("pull_frames status=error reason=device_disconnected")
		return backends.PullResult{}, errs.New(errs.DeviceDisconnect, "device disconnected during acquisition")
	}

	frameRateFPS, err := resolveFrameRateFPS(b.params)
	if err != nil {
		return backends.PullResult{}, err
	}
	frameSizeBytes, err := resolveFrameSizeBytes(b.params)
	if err != nil {
		return backends.PullResult{}, err
	}
	seed, err := resolveSeed(b.params)
	if err != nil {
		return backends.PullResult{}, err
	}
	timeoutPercent, err := resolvePercent(b.params, "FrameTimeoutPercent", defaultTimeoutPercent,
		"FrameTimeoutPercent", "frame_timeout_percent", "timeout_percent")
	if err != nil {
		return backends.PullResult{}, err
	}
	incompletePercent, err := resolvePercent(b.params, "FrameIncompletePercent", defaultIncompletePercent,
		"FrameIncompletePercent", "frame_incomplete_percent", "incomplete_percent")
	if err != nil {
		return backends.PullResult{}, err
	}
	if incompletePercent > 100.0-timeoutPercent {
		incompletePercent = 100.0 - timeoutPercent
	}

	provider := sim.FrameProvider{
		Seed:              seed,
		TimeoutPercent:    timeoutPercent,
		IncompletePercent: incompletePercent,
		FrameSizeBytes:    frameSizeBytes,
	}

	loopResult, err := sim.RunAcquisitionLoop(provider, sim.LoopInput{
		Duration:         time.Duration(req.DurationMs) * time.Millisecond,
		FrameRateFPS:     frameRateFPS,
		DefaultSizeBytes: frameSizeBytes,
		FirstFrameID:     b.nextFrameID,
		StreamStart:      b.streamStart,
	})
	if err != nil {
		b.appendSDKLog("pull_frames status=error reason=acquisition_loop_failed")
		return backends.PullResult{}, err
	}

	b.nextFrameID = loopResult.NextFrameID
	b.appendSDKLog(fmt.Sprintf("pull_frames status=success frames=%d timeout=%d incomplete=%d stall_periods=%d",
		len(loopResult.Frames), loopResult.Counters.Timeout, loopResult.Counters.Incomplete, loopResult.Counters.StallPeriods))

	return backends.PullResult{Frames: loopResult.Frames, Counters: loopResult.Counters}, nil
}
