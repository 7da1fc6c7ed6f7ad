package real

import (
	"context"
	"testing"

	"github.com/labops-dev/labops/pkg/backends"
	"github.com/labops-dev/labops/pkg/errs"
)

// fakeBackend is a minimal backends.Backend used only to exercise the
// apply-params bridge's forward/readback steps.
type fakeBackend struct {
	values     map[string]string
	rejectNode string
}

func newFakeBackend() *fakeBackend { return &fakeBackend{values: map[string]string{}} }

func (f *fakeBackend) Connect(ctx context.Context) (backends.ConnectInfo, error) { return backends.ConnectInfo{}, nil }
func (f *fakeBackend) Start(ctx context.Context) error                          { return nil }
func (f *fakeBackend) Stop(ctx context.Context) error                           { return nil }
func (f *fakeBackend) Name() string                                            { return "fake" }
func (f *fakeBackend) DumpConfig(ctx context.Context) (backends.BackendConfig, error) {
	return backends.BackendConfig(f.values), nil
}
func (f *fakeBackend) PullFrames(ctx context.Context, req backends.PullRequest) (backends.PullResult, error) {
	return backends.PullResult{}, nil
}

func (f *fakeBackend) SetParam(ctx context.Context, nodeName, value string) error {
	if nodeName == f.rejectNode {
		return errs.New(errs.InputInvalid, "backend refused this node")
	}
	f.values[nodeName] = value
	return nil
}

func (f *fakeBackend) GetParam(ctx context.Context, nodeName string) (string, error) {
	v, ok := f.values[nodeName]
	if !ok {
		return "", errs.New(errs.InputInvalid, "no such node")
	}
	return v, nil
}

func testKeyMap(t *testing.T) ParamKeyMap {
	t.Helper()
	m, err := LoadParamKeyMapFromText([]byte(`{"exposure_us":"ExposureTime","gain_db":"Gain","pixel_format":"PixelFormat","mystery":"NoSuchNode"}`))
	if err != nil {
		t.Fatalf("unexpected key map error: %v", err)
	}
	return m
}

func TestApplyParamsUnmappedKeyIsUnsupported(t *testing.T) {
	backend := newFakeBackend()
	adapter := CreateDefaultNodeMapAdapter()
	keyMap := testKeyMap(t)

	result, err := ApplyParams(context.Background(), backend, keyMap, adapter,
		[]ApplyParamInput{{GenericKey: "unknown_knob", RequestedValue: "1"}}, ApplyBestEffort)
	if err != nil {
		t.Fatalf("best_effort mode must not fail the call: %v", err)
	}
	if len(result.Unsupported) != 1 || result.Unsupported[0].Reason != "no generic->node mapping was found" {
		t.Fatalf("unexpected unsupported result: %+v", result.Unsupported)
	}
}

func TestApplyParamsStrictModeFailsOnFirstUnsupported(t *testing.T) {
	backend := newFakeBackend()
	adapter := CreateDefaultNodeMapAdapter()
	keyMap := testKeyMap(t)

	_, err := ApplyParams(context.Background(), backend, keyMap, adapter,
		[]ApplyParamInput{{GenericKey: "mystery", RequestedValue: "1"}}, ApplyStrict)
	if err == nil {
		t.Fatal("expected strict mode to fail on unmapped node")
	}
}

func TestApplyParamsClampsOutOfRangeFloat(t *testing.T) {
	backend := newFakeBackend()
	adapter := CreateDefaultNodeMapAdapter()
	keyMap := testKeyMap(t)

	result, err := ApplyParams(context.Background(), backend, keyMap, adapter,
		[]ApplyParamInput{{GenericKey: "gain_db", RequestedValue: "100"}}, ApplyStrict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Applied) != 1 || !result.Applied[0].Adjusted {
		t.Fatalf("expected an adjusted applied row, got %+v", result.Applied)
	}
	if result.Applied[0].AppliedValue != "48" {
		t.Fatalf("expected clamp to max 48, got %s", result.Applied[0].AppliedValue)
	}
}

func TestApplyParamsNormalizesEnumCasing(t *testing.T) {
	backend := newFakeBackend()
	adapter := CreateDefaultNodeMapAdapter()
	keyMap := testKeyMap(t)

	result, err := ApplyParams(context.Background(), backend, keyMap, adapter,
		[]ApplyParamInput{{GenericKey: "pixel_format", RequestedValue: "MONO8"}}, ApplyStrict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Applied) != 1 || !result.Applied[0].Adjusted || result.Applied[0].AdjustmentReason != "normalized enumeration value casing" {
		t.Fatalf("expected case-normalized applied row, got %+v", result.Applied)
	}
	if result.Applied[0].AppliedValue != "mono8" {
		t.Fatalf("expected normalized value mono8, got %s", result.Applied[0].AppliedValue)
	}
}

func TestApplyParamsBackendRejectionIsFatalEvenInBestEffort(t *testing.T) {
	backend := newFakeBackend()
	backend.rejectNode = "ExposureTime"
	adapter := CreateDefaultNodeMapAdapter()
	keyMap := testKeyMap(t)

	_, err := ApplyParams(context.Background(), backend, keyMap, adapter,
		[]ApplyParamInput{{GenericKey: "exposure_us", RequestedValue: "2000"}}, ApplyBestEffort)
	if err == nil {
		t.Fatal("expected backend rejection to be fatal regardless of apply mode")
	}
}
