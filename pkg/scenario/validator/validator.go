// Package validator performs schema-level checks on a parsed scenario beyond
// what parser.Parse already enforces while decoding, grounded on spec.md §6's
// scenario JSON contract and the `validate <scenario.json>` CLI subcommand's
// exit-10 diagnostics.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/labops-dev/labops/pkg/scenario"
)

var scenarioIDPattern = regexp.MustCompile(`^[a-z0-9]([-_a-z0-9]*[a-z0-9])?$`)

// Validator accumulates fatal errors and non-fatal warnings across one
// scenario's contract checks.
type Validator struct {
	Warnings []string
	Errors   []string
}

// New creates an empty Validator.
func New() *Validator {
	return &Validator{
		Warnings: make([]string, 0),
		Errors:   make([]string, 0),
	}
}

// Validate checks the scenario's contract beyond what parsing already
// enforces: slug shape, threshold sanity, and sim-fault knob consistency.
func (v *Validator) Validate(s *scenario.Scenario) error {
	v.Warnings = make([]string, 0)
	v.Errors = make([]string, 0)

	v.validateScenarioID(s)
	v.validateThresholds(s)
	v.validateSimFaults(s)

	if len(v.Errors) > 0 {
		return fmt.Errorf("invalid scenario: %d field(s) failed validation", len(v.Errors))
	}
	return nil
}

// HasWarnings reports whether any non-fatal issue was recorded.
func (v *Validator) HasWarnings() bool {
	return len(v.Warnings) > 0
}

// HasErrors reports whether any fatal issue was recorded.
func (v *Validator) HasErrors() bool {
	return len(v.Errors) > 0
}

// GetReport renders a human-readable validation report for the `validate`
// subcommand.
func (v *Validator) GetReport() string {
	var sb strings.Builder

	if len(v.Errors) > 0 {
		sb.WriteString("ERRORS:\n")
		for _, err := range v.Errors {
			sb.WriteString(fmt.Sprintf("  - %s\n", err))
		}
	}

	if len(v.Warnings) > 0 {
		sb.WriteString("\nWARNINGS:\n")
		for _, warn := range v.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	if len(v.Errors) == 0 && len(v.Warnings) == 0 {
		sb.WriteString("Validation passed with no issues.\n")
	}

	return sb.String()
}

func (v *Validator) validateScenarioID(s *scenario.Scenario) {
	if !scenarioIDPattern.MatchString(s.ScenarioID) {
		v.Errors = append(v.Errors, fmt.Sprintf("invalid scenario: scenario_id: '%s' must be a lowercase slug", s.ScenarioID))
	}
}

func (v *Validator) validateThresholds(s *scenario.Scenario) {
	if s.Thresholds.MinAvgFPS != nil && *s.Thresholds.MinAvgFPS < 0 {
		v.Errors = append(v.Errors, "invalid scenario: thresholds.min_avg_fps: cannot be negative")
	}

	if s.Thresholds.MaxDropRatePercent != nil {
		percent := *s.Thresholds.MaxDropRatePercent
		if percent < 0 || percent > 100 {
			v.Errors = append(v.Errors, "invalid scenario: thresholds.max_drop_rate_percent: must be between 0 and 100")
		}
	}

	if s.Thresholds.MinAvgFPS == nil && s.Thresholds.MaxDropRatePercent == nil {
		v.Warnings = append(v.Warnings, "no thresholds configured - the run will always pass regardless of observed FPS/drop rate")
	}
}

func (v *Validator) validateSimFaults(s *scenario.Scenario) {
	if !s.SimFaults.Present {
		return
	}

	faults := s.SimFaults
	if faults.DropPercent > 100 {
		v.Errors = append(v.Errors, "invalid scenario: sim_faults.drop_percent: must be between 0 and 100")
	}
	if faults.Reorder > 100 {
		v.Errors = append(v.Errors, "invalid scenario: sim_faults.reorder: must be between 0 and 100")
	}
	if faults.DropEveryN == 1 {
		v.Warnings = append(v.Warnings, "sim_faults.drop_every_n=1 drops every frame; acquisition will report zero received frames")
	}
}
