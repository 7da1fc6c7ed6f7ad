// Package sdkstub implements the guaranteed-failure backend variant (C6):
// a non-proprietary placeholder that always refuses to connect, keeping a
// stable compile-time integration boundary for a real vendor SDK without
// shipping one. Grounded on
// original_source/src/backends/sdk_stub/real_camera_backend_stub.cpp.
package sdkstub

import (
	"context"

	"github.com/labops-dev/labops/pkg/backends"
	"github.com/labops-dev/labops/pkg/errs"
)

// Backend always fails Connect; spec.md §9's Open Question on non-stub
// backend dry_run mode resolved "not implemented" precisely because this is
// the one backend whose failure path is the point (see DESIGN.md).
type Backend struct {
	params    map[string]string
	connected bool
	running   bool
}

// New builds a Backend with its default parameter table.
func New() *Backend {
	return &Backend{
		params: map[string]string{
			"backend":                    "real_stub",
			"sdk_adapter":                "not_integrated",
			"build_real_backend_enabled": "false",
		},
	}
}

func (b *Backend) Name() string { return "sdkstub" }

func (b *Backend) Connect(ctx context.Context) (backends.ConnectInfo, error) {
	if b.connected {
		return backends.ConnectInfo{}, errs.New(errs.BackendConnectFailure, "real backend stub is already connected")
	}
	return backends.ConnectInfo{}, errs.New(errs.BackendConnectFailure,
		"real backend path is disabled at build time (no vendor SDK adapter is integrated)")
}

func (b *Backend) Start(ctx context.Context) error {
	if !b.connected {
		return errs.New(errs.InputInvalid, "real backend stub cannot start before a successful connect")
	}
	if b.running {
		return errs.New(errs.InputInvalid, "real backend stub is already running")
	}
	return errs.New(errs.BackendConnectFailure, "real backend stub cannot start stream because SDK adapter is not implemented")
}

func (b *Backend) Stop(ctx context.Context) error {
	if !b.running {
		return errs.New(errs.InputInvalid, "real backend stub is not running")
	}
	return errs.New(errs.BackendConnectFailure, "real backend stub cannot stop stream because no active SDK session exists")
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
		return backends.PullResult{}, errs.New(errs.InputInvalid, "real backend stub cannot pull frames before a successful connect")
	}
	if !b.running {
		return backends.PullResult{}, errs.New(errs.InputInvalid, "real backend stub cannot pull frames while stream is stopped")
	}
	return backends.PullResult{}, errs.New(errs.BackendConnectFailure, "real backend stub cannot produce frames because SDK adapter is not implemented")
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
