// Package scenario holds the scenario JSON data model: a typed view of the
// fields the runtime actually reads (scenario_id, duration, camera.fps,
// thresholds, sim_faults) plus the raw generic JSON tree the OAAT variant
// generator (C10) and apply-params bridge mutate by dotted path. Keeping
// both views lets strict readers stay type-safe while the generator remains
// schema-agnostic outside the five knob paths it knows about, matching
// original_source/src/agent/variant_generator.cpp's permissive-but-strict
// JSON tree walker.
package scenario

// Scenario is the parsed, validated view of one scenario JSON document.
type Scenario struct {
	// Raw is the full decoded JSON tree (object root), used for dotted-path
	// reads/writes by the variant generator and apply-params bridge.
	Raw map[string]interface{}

	ScenarioID string
	DurationMs int64
	CameraFPS  int
	Thresholds Thresholds
	SimFaults  SimFaults
}

// Thresholds are the optional pass/fail gates evaluated after a run.
type Thresholds struct {
	MinAvgFPS            *float64
	MaxDropRatePercent   *float64
}

// SimFaults are the optional deterministic fault-injection knobs consumed by
// the sim backend.
type SimFaults struct {
	Present    bool
	Seed       uint64
	JitterUs   uint32
	DropEveryN uint32
	DropPercent uint32
	BurstDrop  uint32
	Reorder    uint32
}
