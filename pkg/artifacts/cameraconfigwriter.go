package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/labops-dev/labops/pkg/backends"
	"github.com/labops-dev/labops/pkg/backends/real"
	"github.com/labops-dev/labops/pkg/errs"
	"github.com/labops-dev/labops/pkg/schema"
)

// curatedGenericKeys lists the camera settings engineers check first during
// triage; every other requested/readback key still shows up in the raw
// backend_dump passthrough.
var curatedGenericKeys = []string{
	"frame_rate",
	"pixel_format",
	"exposure",
	"gain",
	"roi",
	"trigger_mode",
	"trigger_source",
}

// curatedNodeRow is one curated camera_config.json row.
type curatedNodeRow struct {
	GenericKey string  `json:"generic_key"`
	NodeName   *string `json:"node_name"`
	Requested  *string `json:"requested"`
	Actual     *string `json:"actual"`
	Supported  bool    `json:"supported"`
	Applied    bool    `json:"applied"`
	Adjusted   bool    `json:"adjusted"`
	Missing    bool    `json:"missing"`
	Reason     *string `json:"reason"`
}

type cameraIdentity struct {
	Model           *string `json:"model"`
	Serial          *string `json:"serial"`
	Transport       *string `json:"transport"`
	UserID          *string `json:"user_id"`
	FirmwareVersion *string `json:"firmware_version"`
	SDKVersion      *string `json:"sdk_version"`
	Selector        *string `json:"selector"`
	Index           *string `json:"index"`
	IP              *string `json:"ip"`
	MAC             *string `json:"mac"`
}

type cameraConfigDocument struct {
	SchemaVersion        string            `json:"schema_version"`
	RunID                string            `json:"run_id"`
	ScenarioID           string            `json:"scenario_id"`
	Backend              string            `json:"backend"`
	ApplyMode            string            `json:"apply_mode"`
	CollectionError      *string           `json:"collection_error"`
	Identity             cameraIdentity    `json:"identity"`
	CuratedNodes         []curatedNodeRow  `json:"curated_nodes"`
	MissingKeys          []string          `json:"missing_keys"`
	MissingRequestedKeys []string          `json:"missing_requested_keys"`
	UnsupportedKeys      []string          `json:"unsupported_keys"`
	BackendDump          backends.BackendConfig `json:"backend_dump"`
}

func nonEmptyPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func normalizedOptionalText(value *string) *string {
	if value == nil || *value == "" || *value == "(none)" {
		return nil
	}
	return value
}

func findConfigValue(dump backends.BackendConfig, key string) *string {
	value, ok := dump[key]
	if !ok || value == "" {
		return nil
	}
	return &value
}

func resolveIdentityField(dump backends.BackendConfig, backendKey string, runInfoValue string) *string {
	if normalized := normalizedOptionalText(nonEmptyPtr(runInfoValue)); normalized != nil {
		return normalized
	}
	return normalizedOptionalText(findConfigValue(dump, backendKey))
}

func sortAndUnique(values []string) []string {
	sort.Strings(values)
	out := values[:0]
	var previous string
	for i, value := range values {
		if i == 0 || value != previous {
			out = append(out, value)
			previous = value
		}
	}
	return out
}

func buildRequestedLookup(requestedParams []real.ApplyParamInput) map[string]string {
	requested := make(map[string]string, len(requestedParams))
	for _, input := range requestedParams {
		if input.GenericKey == "" {
			continue
		}
		requested[input.GenericKey] = input.RequestedValue
	}
	return requested
}

func buildReadbackLookup(result real.ApplyParamsResult) map[string]real.ReadbackRow {
	rows := make(map[string]real.ReadbackRow, len(result.ReadbackRows))
	for _, row := range result.ReadbackRows {
		if row.GenericKey == "" {
			continue
		}
		rows[row.GenericKey] = row
	}
	return rows
}

func missingReason(requestedValue *string) string {
	if requestedValue != nil {
		return "requested key did not produce a readback row"
	}
	return "key not requested by scenario"
}

func buildCuratedNodeRows(requestedByKey map[string]string, readbackByKey map[string]real.ReadbackRow) (
	rows []curatedNodeRow, missingKeys, unsupportedKeys []string) {

	for _, key := range curatedGenericKeys {
		row := curatedNodeRow{GenericKey: key}
		requestedValue := normalizedOptionalText(nonEmptyPtr(requestedByKey[key]))

		readback, ok := readbackByKey[key]
		if !ok {
			row.Requested = requestedValue
			row.Missing = true
			reason := missingReason(requestedValue)
			row.Reason = &reason
			rows = append(rows, row)
			missingKeys = append(missingKeys, key)
			continue
		}

		row.NodeName = normalizedOptionalText(nonEmptyPtr(readback.NodeName))
		if requestedFromReadback := normalizedOptionalText(nonEmptyPtr(readback.RequestedValue)); requestedFromReadback != nil {
			row.Requested = requestedFromReadback
		} else {
			row.Requested = requestedValue
		}
		row.Actual = normalizedOptionalText(nonEmptyPtr(readback.ActualValue))
		row.Supported = readback.Supported
		row.Applied = readback.Applied
		row.Adjusted = readback.Adjusted
		row.Reason = normalizedOptionalText(nonEmptyPtr(readback.Reason))

		if !readback.Supported || !readback.Applied {
			unsupportedKeys = append(unsupportedKeys, key)
		}
		rows = append(rows, row)
	}
	return rows, missingKeys, unsupportedKeys
}

// WriteCameraConfigJson emits camera_config.json for a real-backend run:
// resolved camera identity, curated setting rows, missing/unsupported key
// lists, and a raw backend_dump passthrough for low-level debugging.
// Pass an empty collectionError when config collection succeeded.
func WriteCameraConfigJson(runInfo schema.RunInfo, backendDump backends.BackendConfig,
	requestedParams []real.ApplyParamInput, applyResult real.ApplyParamsResult, mode real.ParamApplyMode,
	collectionError string, outputDir string) (string, error) {

	if err := ensureOutputDir(outputDir); err != nil {
		return "", err
	}

	requestedByKey := buildRequestedLookup(requestedParams)
	readbackByKey := buildReadbackLookup(applyResult)

	curatedRows, missingKeys, unsupportedKeys := buildCuratedNodeRows(requestedByKey, readbackByKey)
	for key, row := range readbackByKey {
		if !row.Supported || !row.Applied {
			unsupportedKeys = append(unsupportedKeys, key)
		}
	}
	missingKeys = sortAndUnique(missingKeys)
	unsupportedKeys = sortAndUnique(unsupportedKeys)

	var missingRequestedKeys []string
	for key := range requestedByKey {
		if _, ok := readbackByKey[key]; !ok {
			missingRequestedKeys = append(missingRequestedKeys, key)
		}
	}
	missingRequestedKeys = sortAndUnique(missingRequestedKeys)

	var model, serial, transport, userID, firmwareVersion, sdkVersion *string
	if runInfo.RealDevice != nil {
		device := runInfo.RealDevice.Device
		model = resolveIdentityField(backendDump, "device.model", device.ModelName)
		serial = resolveIdentityField(backendDump, "device.serial", device.SerialNumber)
		transport = resolveIdentityField(backendDump, "device.transport", "")
		userID = resolveIdentityField(backendDump, "device.user_id", "")
		firmwareVersion = resolveIdentityField(backendDump, "device.firmware_version", "")
		sdkVersion = resolveIdentityField(backendDump, "device.sdk_version", "")
	} else {
		model = normalizedOptionalText(findConfigValue(backendDump, "device.model"))
		serial = normalizedOptionalText(findConfigValue(backendDump, "device.serial"))
		transport = normalizedOptionalText(findConfigValue(backendDump, "device.transport"))
		userID = normalizedOptionalText(findConfigValue(backendDump, "device.user_id"))
		firmwareVersion = normalizedOptionalText(findConfigValue(backendDump, "device.firmware_version"))
		sdkVersion = normalizedOptionalText(findConfigValue(backendDump, "device.sdk_version"))
	}

	document := cameraConfigDocument{
		SchemaVersion:        "1.0",
		RunID:                runInfo.RunID,
		ScenarioID:           runInfo.Config.ScenarioID,
		Backend:              runInfo.Config.Backend,
		ApplyMode:            mode.String(),
		CollectionError:      nonEmptyPtr(collectionError),
		Identity: cameraIdentity{
			Model:           model,
			Serial:          serial,
			Transport:       transport,
			UserID:          userID,
			FirmwareVersion: firmwareVersion,
			SDKVersion:      sdkVersion,
			Selector:        normalizedOptionalText(findConfigValue(backendDump, "device.selector")),
			Index:           normalizedOptionalText(findConfigValue(backendDump, "device.index")),
			IP:              normalizedOptionalText(findConfigValue(backendDump, "device.ip")),
			MAC:             normalizedOptionalText(findConfigValue(backendDump, "device.mac")),
		},
		CuratedNodes:         curatedRows,
		MissingKeys:          emptyIfNil(missingKeys),
		MissingRequestedKeys: emptyIfNil(missingRequestedKeys),
		UnsupportedKeys:      emptyIfNil(unsupportedKeys),
		BackendDump:          backendDump,
	}

	payload, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to encode camera config", err)
	}

	writtenPath := filepath.Join(outputDir, "camera_config.json")
	if err := os.WriteFile(writtenPath, append(payload, '\n'), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to open output file: "+writtenPath, err)
	}
	return writtenPath, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
