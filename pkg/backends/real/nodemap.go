// Package real implements the generic-to-vendor-node parameter bridge (C3
// node-map adapter, C4 parameter key map, C5 apply-params engine). Grounded
// on original_source/src/backends/real_sdk/{node_map_adapter,param_key_map,
// apply_params}.{hpp,cpp}.
package real

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/labops-dev/labops/pkg/errs"
)

// NodeValueType is the typed shape of one vendor SDK node (C3).
type NodeValueType int

const (
	NodeUnknown NodeValueType = iota
	NodeBool
	NodeInt64
	NodeFloat64
	NodeString
	NodeEnumeration
)

// NumericRange is best-effort bound metadata: either side may be absent.
type NumericRange struct {
	Min    *float64
	Max    *float64
}

// NodeDefinition is one in-memory node's current value and static shape.
type NodeDefinition struct {
	ValueType   NodeValueType
	BoolValue   *bool
	Int64Value  *int64
	Float64Value *float64
	StringValue *string
	EnumValues  []string
	Range       NumericRange
}

// NodeMapAdapter is the C3 contract: a typed mapping from node name to
// definition, independent of how a backend discovers or persists it.
type NodeMapAdapter interface {
	Has(key string) bool
	GetType(key string) NodeValueType

	TryGetBool(key string) (bool, bool)
	TryGetInt64(key string) (int64, bool)
	TryGetFloat64(key string) (float64, bool)
	TryGetString(key string) (string, bool)

	TrySetBool(key string, value bool) error
	TrySetInt64(key string, value int64) error
	TrySetFloat64(key string, value float64) error
	TrySetString(key string, value string) error

	ListKeys() []string
	ListEnumValues(key string) []string
	TryGetNumericRange(key string) (NumericRange, bool)
}

// InMemoryNodeMapAdapter is the deterministic adapter behind the real
// backend (see CreateDefaultNodeMapAdapter) and the tests exercising its
// apply path without a vendor SDK. Writes are atomic: a rejected write leaves the node's prior
// value untouched (spec.md §4.2).
type InMemoryNodeMapAdapter struct {
	nodes map[string]NodeDefinition
}

// NewInMemoryNodeMapAdapter builds an adapter with no nodes registered.
func NewInMemoryNodeMapAdapter() *InMemoryNodeMapAdapter {
	return &InMemoryNodeMapAdapter{nodes: map[string]NodeDefinition{}}
}

// Upsert registers or replaces a node definition.
func (a *InMemoryNodeMapAdapter) Upsert(key string, def NodeDefinition) {
	a.nodes[key] = def
}

func (a *InMemoryNodeMapAdapter) Has(key string) bool {
	_, ok := a.nodes[key]
	return ok
}

func (a *InMemoryNodeMapAdapter) GetType(key string) NodeValueType {
	node, ok := a.nodes[key]
	if !ok {
		return NodeUnknown
	}
	return node.ValueType
}

func (a *InMemoryNodeMapAdapter) TryGetBool(key string) (bool, bool) {
	node, ok := a.nodes[key]
	if !ok || node.ValueType != NodeBool || node.BoolValue == nil {
		return false, false
	}
	return *node.BoolValue, true
}

func (a *InMemoryNodeMapAdapter) TryGetInt64(key string) (int64, bool) {
	node, ok := a.nodes[key]
	if !ok || node.ValueType != NodeInt64 || node.Int64Value == nil {
		return 0, false
	}
	return *node.Int64Value, true
}

func (a *InMemoryNodeMapAdapter) TryGetFloat64(key string) (float64, bool) {
	node, ok := a.nodes[key]
	if !ok || node.ValueType != NodeFloat64 || node.Float64Value == nil {
		return 0, false
	}
	return *node.Float64Value, true
}

func (a *InMemoryNodeMapAdapter) TryGetString(key string) (string, bool) {
	node, ok := a.nodes[key]
	if !ok || node.StringValue == nil {
		return "", false
	}
	if node.ValueType != NodeString && node.ValueType != NodeEnumeration {
		return "", false
	}
	return *node.StringValue, true
}

func (a *InMemoryNodeMapAdapter) TrySetBool(key string, value bool) error {
	node, ok := a.nodes[key]
	if !ok {
		return errs.New(errs.InputInvalid, fmt.Sprintf("unknown node key: %s", key))
	}
	if node.ValueType != NodeBool {
		return errs.New(errs.InputInvalid, fmt.Sprintf("type mismatch for key '%s': expected bool", key))
	}
	node.BoolValue = &value
	a.nodes[key] = node
	return nil
}

func (a *InMemoryNodeMapAdapter) TrySetInt64(key string, value int64) error {
	node, ok := a.nodes[key]
	if !ok {
		return errs.New(errs.InputInvalid, fmt.Sprintf("unknown node key: %s", key))
	}
	if node.ValueType != NodeInt64 {
		return errs.New(errs.InputInvalid, fmt.Sprintf("type mismatch for key '%s': expected int64", key))
	}
	if err := validateNumericRange(key, node.Range, float64(value)); err != nil {
		return err
	}
	node.Int64Value = &value
	a.nodes[key] = node
	return nil
}

func (a *InMemoryNodeMapAdapter) TrySetFloat64(key string, value float64) error {
	node, ok := a.nodes[key]
	if !ok {
		return errs.New(errs.InputInvalid, fmt.Sprintf("unknown node key: %s", key))
	}
	if node.ValueType != NodeFloat64 {
		return errs.New(errs.InputInvalid, fmt.Sprintf("type mismatch for key '%s': expected float64", key))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errs.New(errs.InputInvalid, fmt.Sprintf("value for key '%s' must be finite", key))
	}
	if err := validateNumericRange(key, node.Range, value); err != nil {
		return err
	}
	node.Float64Value = &value
	a.nodes[key] = node
	return nil
}

func (a *InMemoryNodeMapAdapter) TrySetString(key string, value string) error {
	node, ok := a.nodes[key]
	if !ok {
		return errs.New(errs.InputInvalid, fmt.Sprintf("unknown node key: %s", key))
	}
	switch node.ValueType {
	case NodeString:
		node.StringValue = &value
		a.nodes[key] = node
		return nil
	case NodeEnumeration:
		if !contains(node.EnumValues, value) {
			return errs.New(errs.InputInvalid, fmt.Sprintf("value '%s' is not supported for key '%s'", value, key))
		}
		node.StringValue = &value
		a.nodes[key] = node
		return nil
	default:
		return errs.New(errs.InputInvalid, fmt.Sprintf("type mismatch for key '%s': expected string/enum", key))
	}
}

func (a *InMemoryNodeMapAdapter) ListKeys() []string {
	keys := make([]string, 0, len(a.nodes))
	for k := range a.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a *InMemoryNodeMapAdapter) ListEnumValues(key string) []string {
	node, ok := a.nodes[key]
	if !ok || node.ValueType != NodeEnumeration {
		return nil
	}
	return node.EnumValues
}

func (a *InMemoryNodeMapAdapter) TryGetNumericRange(key string) (NumericRange, bool) {
	node, ok := a.nodes[key]
	if !ok || (node.ValueType != NodeInt64 && node.ValueType != NodeFloat64) {
		return NumericRange{}, false
	}
	return node.Range, true
}

func validateNumericRange(key string, r NumericRange, value float64) error {
	if r.Min != nil && value < *r.Min {
		return errs.New(errs.InputInvalid, fmt.Sprintf("value for key '%s' is below minimum %s", key, strconv.FormatFloat(*r.Min, 'f', -1, 64)))
	}
	if r.Max != nil && value > *r.Max {
		return errs.New(errs.InputInvalid, fmt.Sprintf("value for key '%s' is above maximum %s", key, strconv.FormatFloat(*r.Max, 'f', -1, 64)))
	}
	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
