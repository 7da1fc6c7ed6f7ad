// Package parser loads a scenario JSON document into the scenario package's
// typed view, grounded on spec.md §6's scenario JSON contract. Unlike the
// teacher's YAML-plus-variable-substitution loader, scenario JSON has no
// templating step: the runtime reads a plain JSON object and validates the
// handful of fields it actually consumes, leaving the rest of the tree
// available for the variant generator's dotted-path walker.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/labops-dev/labops/pkg/errs"
	"github.com/labops-dev/labops/pkg/scenario"
)

// ParseFile reads and parses a scenario from a JSON file.
func ParseFile(path string) (*scenario.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, fmt.Sprintf("failed to read scenario file: %s", path), err)
	}
	return Parse(data)
}

// Parse parses a scenario from raw JSON bytes, producing both the typed
// fields the runtime reads and the generic tree the variant generator and
// apply-params bridge mutate by dotted path.
func Parse(data []byte) (*scenario.Scenario, error) {
	var raw map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return nil, errs.Wrap(errs.InputInvalid, "invalid scenario: root: not a valid JSON object", err)
	}

	s := &scenario.Scenario{Raw: raw}

	scenarioID, err := requireString(raw, "scenario_id")
	if err != nil {
		return nil, err
	}
	s.ScenarioID = scenarioID

	durationMs, err := requirePositiveInt(raw, "duration.duration_ms")
	if err != nil {
		return nil, err
	}
	s.DurationMs = durationMs

	cameraFPS, err := requirePositiveInt(raw, "camera.fps")
	if err != nil {
		return nil, err
	}
	s.CameraFPS = int(cameraFPS)

	thresholds, err := parseThresholds(raw)
	if err != nil {
		return nil, err
	}
	s.Thresholds = thresholds

	simFaults, err := parseSimFaults(raw)
	if err != nil {
		return nil, err
	}
	s.SimFaults = simFaults

	return s, nil
}

func invalidField(path, reason string) error {
	return errs.New(errs.InputInvalid, fmt.Sprintf("invalid scenario: %s: %s", path, reason))
}

func lookupPath(raw map[string]interface{}, path string) (interface{}, bool) {
	current := interface{}(raw)
	for _, segment := range splitDotted(path) {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		value, ok := obj[segment]
		if !ok {
			return nil, false
		}
		current = value
	}
	return current, true
}

func splitDotted(path string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segments = append(segments, path[start:i])
			start = i + 1
		}
	}
	segments = append(segments, path[start:])
	return segments
}

func requireString(raw map[string]interface{}, path string) (string, error) {
	value, ok := lookupPath(raw, path)
	if !ok {
		return "", invalidField(path, "required field is missing")
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", invalidField(path, "expected a non-empty string")
	}
	return s, nil
}

func requirePositiveInt(raw map[string]interface{}, path string) (int64, error) {
	value, ok := lookupPath(raw, path)
	if !ok {
		return 0, invalidField(path, "required field is missing")
	}
	num, ok := value.(json.Number)
	if !ok {
		return 0, invalidField(path, "expected an integer")
	}
	parsed, err := num.Int64()
	if err != nil || parsed <= 0 {
		return 0, invalidField(path, "expected a positive integer")
	}
	return parsed, nil
}

func parseOptionalFloat(raw map[string]interface{}, path string) (*float64, error) {
	value, ok := lookupPath(raw, path)
	if !ok {
		return nil, nil
	}
	num, ok := value.(json.Number)
	if !ok {
		return nil, invalidField(path, "expected a number")
	}
	parsed, err := num.Float64()
	if err != nil {
		return nil, invalidField(path, "expected a number")
	}
	return &parsed, nil
}

func parseOptionalUint32(raw map[string]interface{}, path string, max uint32, hasMax bool) (uint32, error) {
	value, ok := lookupPath(raw, path)
	if !ok {
		return 0, nil
	}
	num, ok := value.(json.Number)
	if !ok {
		return 0, invalidField(path, "expected an integer")
	}
	parsed, err := num.Int64()
	if err != nil || parsed < 0 {
		return 0, invalidField(path, "expected a non-negative integer")
	}
	if hasMax && parsed > int64(max) {
		return 0, invalidField(path, fmt.Sprintf("must be at most %d", max))
	}
	return uint32(parsed), nil
}

func parseOptionalUint64(raw map[string]interface{}, path string) (uint64, error) {
	value, ok := lookupPath(raw, path)
	if !ok {
		return 0, nil
	}
	num, ok := value.(json.Number)
	if !ok {
		return 0, invalidField(path, "expected an integer")
	}
	parsed, err := num.Int64()
	if err != nil || parsed < 0 {
		return 0, invalidField(path, "expected a non-negative integer")
	}
	return uint64(parsed), nil
}

func parseThresholds(raw map[string]interface{}) (scenario.Thresholds, error) {
	var thresholds scenario.Thresholds

	minAvgFPS, err := parseOptionalFloat(raw, "thresholds.min_avg_fps")
	if err != nil {
		return thresholds, err
	}
	thresholds.MinAvgFPS = minAvgFPS

	maxDropRate, err := parseOptionalFloat(raw, "thresholds.max_drop_rate_percent")
	if err != nil {
		return thresholds, err
	}
	thresholds.MaxDropRatePercent = maxDropRate

	return thresholds, nil
}

func parseSimFaults(raw map[string]interface{}) (scenario.SimFaults, error) {
	var faults scenario.SimFaults

	if _, ok := lookupPath(raw, "sim_faults"); !ok {
		return faults, nil
	}
	faults.Present = true

	seed, err := parseOptionalUint64(raw, "sim_faults.seed")
	if err != nil {
		return faults, err
	}
	faults.Seed = seed

	jitterUs, err := parseOptionalUint32(raw, "sim_faults.jitter_us", 0, false)
	if err != nil {
		return faults, err
	}
	faults.JitterUs = jitterUs

	dropEveryN, err := parseOptionalUint32(raw, "sim_faults.drop_every_n", 0, false)
	if err != nil {
		return faults, err
	}
	faults.DropEveryN = dropEveryN

	dropPercent, err := parseOptionalUint32(raw, "sim_faults.drop_percent", 100, true)
	if err != nil {
		return faults, err
	}
	faults.DropPercent = dropPercent

	burstDrop, err := parseOptionalUint32(raw, "sim_faults.burst_drop", 0, false)
	if err != nil {
		return faults, err
	}
	faults.BurstDrop = burstDrop

	reorder, err := parseOptionalUint32(raw, "sim_faults.reorder", 100, true)
	if err != nil {
		return faults, err
	}
	faults.Reorder = reorder

	return faults, nil
}
