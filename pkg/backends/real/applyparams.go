package real

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/labops-dev/labops/pkg/backends"
	"github.com/labops-dev/labops/pkg/errs"
)

// ParamApplyMode controls how unsupported settings are handled (spec.md
// §4.3).
type ParamApplyMode int

const (
	ApplyStrict ParamApplyMode = iota
	ApplyBestEffort
)

func (m ParamApplyMode) String() string {
	if m == ApplyBestEffort {
		return "best_effort"
	}
	return "strict"
}

// ParseParamApplyMode parses the scenario's apply_mode field.
func ParseParamApplyMode(raw string) (ParamApplyMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" || normalized == "strict" {
		return ApplyStrict, nil
	}
	if normalized == "best_effort" || normalized == "best-effort" {
		return ApplyBestEffort, nil
	}
	return ApplyStrict, errs.New(errs.InputInvalid, "scenario apply_mode must be one of: strict, best_effort")
}

// ApplyParamInput is one generic key/value the caller wants applied.
type ApplyParamInput struct {
	GenericKey     string
	RequestedValue string
}

// UnsupportedParam is recorded whenever a setting could not be applied
// without a fatal backend error.
type UnsupportedParam struct {
	GenericKey     string
	RequestedValue string
	Reason         string
}

// AppliedParam is recorded whenever a setting was written successfully.
type AppliedParam struct {
	GenericKey       string
	NodeName         string
	RequestedValue   string
	AppliedValue     string
	Adjusted         bool
	AdjustmentReason string
}

// ReadbackRow is the canonical per-setting evidence unit (spec.md §3).
type ReadbackRow struct {
	GenericKey     string
	NodeName       string
	RequestedValue string
	ActualValue    string
	Supported      bool
	Applied        bool
	Adjusted       bool
	Reason         string
}

// ApplyParamsResult is the outcome of one ApplyParams call.
type ApplyParamsResult struct {
	Applied      []AppliedParam
	Unsupported  []UnsupportedParam
	ReadbackRows []ReadbackRow
}

// ApplyParams runs the C5 five-step algorithm for each input in order:
// resolve, exist, coerce-by-type, write, readback (spec.md §4.3). Backend
// rejection is always fatal; unsupported settings are fatal only in strict
// mode.
func ApplyParams(ctx context.Context, backend backends.Backend, keyMap ParamKeyMap, nodeAdapter NodeMapAdapter,
	params []ApplyParamInput, mode ParamApplyMode) (ApplyParamsResult, error) {

	var result ApplyParamsResult

	recordUnsupported := func(genericKey, requestedValue, nodeName string, supported bool, reason string) error {
		result.ReadbackRows = append(result.ReadbackRows, ReadbackRow{
			GenericKey:     genericKey,
			NodeName:       nodeName,
			RequestedValue: requestedValue,
			Supported:      supported,
			Applied:        false,
			Reason:         reason,
		})
		result.Unsupported = append(result.Unsupported, UnsupportedParam{
			GenericKey:     genericKey,
			RequestedValue: requestedValue,
			Reason:         reason,
		})
		if mode == ApplyStrict {
			return errs.New(errs.ApplyUnsupported, fmt.Sprintf("unsupported parameter '%s': %s", genericKey, reason))
		}
		return nil
	}

	for _, input := range params {
		genericKey := strings.TrimSpace(input.GenericKey)
		if genericKey == "" {
			continue
		}

		nodeName, ok := keyMap.Resolve(genericKey)
		if !ok {
			if err := recordUnsupported(genericKey, input.RequestedValue, "", false, "no generic->node mapping was found"); err != nil {
				return result, err
			}
			continue
		}

		if !nodeAdapter.Has(nodeName) {
			if err := recordUnsupported(genericKey, input.RequestedValue, nodeName, false,
				fmt.Sprintf("mapped node '%s' is not available", nodeName)); err != nil {
				return result, err
			}
			continue
		}

		applied := AppliedParam{GenericKey: genericKey, NodeName: nodeName, RequestedValue: input.RequestedValue, AppliedValue: input.RequestedValue}
		backendValue := input.RequestedValue
		nodeType := nodeAdapter.GetType(nodeName)

		switch nodeType {
		case NodeBool:
			parsed, ok := parseBool(input.RequestedValue)
			if !ok {
				if err := recordUnsupported(genericKey, input.RequestedValue, nodeName, true, "expected boolean value"); err != nil {
					return result, err
				}
				continue
			}
			if err := nodeAdapter.TrySetBool(nodeName, parsed); err != nil {
				if err := recordUnsupported(genericKey, input.RequestedValue, nodeName, true, writeErrorReason(err, "node rejected bool value")); err != nil {
					return result, err
				}
				continue
			}
			backendValue = strconv.FormatBool(parsed)

		case NodeInt64:
			parsed, ok := parseInt64Strict(input.RequestedValue)
			if !ok {
				if err := recordUnsupported(genericKey, input.RequestedValue, nodeName, true, "expected integer value"); err != nil {
					return result, err
				}
				continue
			}
			if rng, ok := nodeAdapter.TryGetNumericRange(nodeName); ok {
				value := float64(parsed)
				if adjustedValue, reason, didAdjust := clampWithRange(value, rng); didAdjust {
					parsed = int64(math.Round(adjustedValue))
					applied.Adjusted = true
					applied.AdjustmentReason = reason
				}
			}
			if err := nodeAdapter.TrySetInt64(nodeName, parsed); err != nil {
				if err := recordUnsupported(genericKey, input.RequestedValue, nodeName, true, writeErrorReason(err, "node rejected integer value")); err != nil {
					return result, err
				}
				continue
			}
			backendValue = strconv.FormatInt(parsed, 10)

		case NodeFloat64:
			parsed, ok := parseFloat64Strict(input.RequestedValue)
			if !ok {
				if err := recordUnsupported(genericKey, input.RequestedValue, nodeName, true, "expected floating-point value"); err != nil {
					return result, err
				}
				continue
			}
			if rng, ok := nodeAdapter.TryGetNumericRange(nodeName); ok {
				if adjustedValue, reason, didAdjust := clampWithRange(parsed, rng); didAdjust {
					parsed = adjustedValue
					applied.Adjusted = true
					applied.AdjustmentReason = reason
				}
			}
			if err := nodeAdapter.TrySetFloat64(nodeName, parsed); err != nil {
				if err := recordUnsupported(genericKey, input.RequestedValue, nodeName, true, writeErrorReason(err, "node rejected float value")); err != nil {
					return result, err
				}
				continue
			}
			backendValue = FormatDouble(parsed)

		case NodeEnumeration, NodeString:
			normalizedValue := input.RequestedValue
			if nodeType == NodeEnumeration {
				allowed := nodeAdapter.ListEnumValues(nodeName)
				if canonical, found := findCaseInsensitiveEnumValue(allowed, input.RequestedValue); found && canonical != input.RequestedValue {
					normalizedValue = canonical
					applied.Adjusted = true
					applied.AdjustmentReason = "normalized enumeration value casing"
				}
			}
			if err := nodeAdapter.TrySetString(nodeName, normalizedValue); err != nil {
				if err := recordUnsupported(genericKey, input.RequestedValue, nodeName, true, writeErrorReason(err, "node rejected string value")); err != nil {
					return result, err
				}
				continue
			}
			backendValue = normalizedValue

		default:
			if err := recordUnsupported(genericKey, input.RequestedValue, nodeName, false, "node value type is unknown"); err != nil {
				return result, err
			}
			continue
		}

		if err := backend.SetParam(ctx, nodeName, backendValue); err != nil {
			reason := fmt.Sprintf("backend rejected mapped value: %s", err.Error())
			result.ReadbackRows = append(result.ReadbackRows, ReadbackRow{
				GenericKey:     genericKey,
				NodeName:       nodeName,
				RequestedValue: input.RequestedValue,
				Supported:      true,
				Applied:        false,
				Adjusted:       applied.Adjusted,
				Reason:         reason,
			})
			return result, errs.Wrap(errs.ApplyUnsupported,
				fmt.Sprintf("failed to set mapped backend parameter '%s' for generic key '%s'", nodeName, genericKey), err)
		}

		row := ReadbackRow{
			GenericKey:     genericKey,
			NodeName:       nodeName,
			RequestedValue: input.RequestedValue,
			Supported:      true,
			Applied:        true,
			Adjusted:       applied.Adjusted,
			Reason:         applied.AdjustmentReason,
		}
		actual, err := backend.GetParam(ctx, nodeName)
		if err != nil {
			if row.Reason != "" {
				row.Reason += "; "
			}
			row.Reason += fmt.Sprintf("readback unavailable: %s", err.Error())
		} else {
			row.ActualValue = actual
		}
		result.ReadbackRows = append(result.ReadbackRows, row)

		applied.AppliedValue = backendValue
		result.Applied = append(result.Applied, applied)
	}

	return result, nil
}

func writeErrorReason(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return err.Error()
}

func parseBool(raw string) (bool, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch normalized {
	case "true", "1", "on":
		return true, true
	case "false", "0", "off":
		return false, true
	default:
		return false, false
	}
}

func parseInt64Strict(raw string) (int64, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, false
	}
	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func parseFloat64Strict(raw string) (float64, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

// clampWithRange returns the clamped value, a human reason string, and
// whether clamping actually occurred.
func clampWithRange(value float64, r NumericRange) (float64, string, bool) {
	requested := value
	adjusted := false

	if r.Min != nil && value < *r.Min {
		value = *r.Min
		adjusted = true
	}
	if r.Max != nil && value > *r.Max {
		value = *r.Max
		adjusted = true
	}

	if !adjusted {
		return value, "", false
	}
	return value, fmt.Sprintf("clamped from %s to %s (allowed range %s)",
		FormatDouble(requested), FormatDouble(value), FormatRangeText(r)), true
}

// FormatDouble renders a float with six decimal places, trailing zeros (and
// a trailing dot) trimmed, matching apply_params.cpp's FormatDouble.
func FormatDouble(value float64) string {
	text := strconv.FormatFloat(value, 'f', 6, 64)
	text = strings.TrimRight(text, "0")
	text = strings.TrimSuffix(text, ".")
	if text == "" || text == "-" {
		return "0"
	}
	return text
}

// FormatRangeText renders a numeric range as "[min, max]", using -inf/+inf
// for absent bounds.
func FormatRangeText(r NumericRange) string {
	minText := "-inf"
	if r.Min != nil {
		minText = FormatDouble(*r.Min)
	}
	maxText := "+inf"
	if r.Max != nil {
		maxText = FormatDouble(*r.Max)
	}
	return fmt.Sprintf("[%s, %s]", minText, maxText)
}

func findCaseInsensitiveEnumValue(values []string, requested string) (string, bool) {
	requestedLower := strings.ToLower(requested)
	for _, v := range values {
		if strings.ToLower(v) == requestedLower {
			return v, true
		}
	}
	return "", false
}
