package agent

import (
	"sort"
	"strconv"

	"github.com/labops-dev/labops/pkg/errs"
)

// StopReason enumerates deterministic stop reasons in strict priority
// order. The order is part of the contract: automation depends on one
// stable reason when multiple conditions are true simultaneously.
type StopReason string

const (
	StopContinue            StopReason = "continue"
	StopMaxRuns             StopReason = "max_runs"
	StopSingleVariableFlip  StopReason = "single_variable_flip"
	StopConfidenceThreshold StopReason = "confidence_threshold"
	StopStableReproRate     StopReason = "stable_repro_rate"
)

// StopConfig holds the explicit, numeric stop-policy thresholds so a lab
// can tune behavior while keeping the decision logic deterministic.
type StopConfig struct {
	MaxRuns             int
	StableReproWindow   int
	StableReproRateMin  float64
	ConfidenceThreshold float64
}

// DefaultStopConfig mirrors the original's compiled-in defaults.
func DefaultStopConfig() StopConfig {
	return StopConfig{
		MaxRuns:             12,
		StableReproWindow:   4,
		StableReproRateMin:  0.75,
		ConfidenceThreshold: 0.90,
	}
}

// StopInput carries the dynamic inputs stop evaluation needs.
type StopInput struct {
	State           *State
	ConfidenceScore float64
}

// StopDecision is the deterministic stop outcome with machine- and
// human-readable context.
type StopDecision struct {
	ShouldStop         bool
	Reason             StopReason
	Explanation        string
	RunCount           int
	DecisiveRunCount   int
	ReproWindowCount   int
	ObservedReproRate  float64
	ObservedConfidence float64
	IsolatingVariable  string
}

func isDecisive(status ResultStatus) bool {
	return status == ResultPass || status == ResultFail
}

func isRepro(status ResultStatus) bool {
	return status == ResultFail
}

type valueOutcomeStats struct {
	passCount int
	failCount int
}

type flipEvidence struct {
	variable  string
	failValue string
	passValue string
}

// findSingleVariableFlip looks for one variable with a value that has a
// recorded fail and a different value that has a recorded pass. Maps in Go have no iteration order, so
// variable and value names are explicitly sorted before comparison to
// reproduce the original's std::map ordering deterministically.
func findSingleVariableFlip(state *State) (flipEvidence, bool) {
	stats := make(map[string]map[string]*valueOutcomeStats)

	for _, row := range state.ResultsTable {
		if !isDecisive(row.Result) || row.VariableName == "" {
			continue
		}
		valueTable, ok := stats[row.VariableName]
		if !ok {
			valueTable = make(map[string]*valueOutcomeStats)
			stats[row.VariableName] = valueTable
		}
		entry, ok := valueTable[row.VariableValue]
		if !ok {
			entry = &valueOutcomeStats{}
			valueTable[row.VariableValue] = entry
		}
		switch row.Result {
		case ResultPass:
			entry.passCount++
		case ResultFail:
			entry.failCount++
		}
	}

	variableNames := make([]string, 0, len(stats))
	for name := range stats {
		variableNames = append(variableNames, name)
	}
	sort.Strings(variableNames)

	for _, variableName := range variableNames {
		valueTable := stats[variableName]
		values := make([]string, 0, len(valueTable))
		for value := range valueTable {
			values = append(values, value)
		}
		sort.Strings(values)

		var failValue, passValue string
		var haveFail, havePass bool
		for _, value := range values {
			entry := valueTable[value]
			if !haveFail && entry.failCount > 0 {
				failValue = value
				haveFail = true
			}
			if !havePass && entry.passCount > 0 {
				passValue = value
				havePass = true
			}
		}

		if haveFail && havePass && failValue != passValue {
			return flipEvidence{variable: variableName, failValue: failValue, passValue: passValue}, true
		}
	}

	return flipEvidence{}, false
}

func validateStopConfig(config StopConfig) error {
	if config.MaxRuns <= 0 {
		return errs.New(errs.InputInvalid, "max_runs must be greater than 0")
	}
	if config.StableReproWindow <= 0 {
		return errs.New(errs.InputInvalid, "stable_repro_window must be greater than 0")
	}
	if config.StableReproRateMin < 0.0 || config.StableReproRateMin > 1.0 {
		return errs.New(errs.InputInvalid, "stable_repro_rate_min must be in [0,1]")
	}
	if config.ConfidenceThreshold < 0.0 || config.ConfidenceThreshold > 1.0 {
		return errs.New(errs.InputInvalid, "confidence_threshold must be in [0,1]")
	}
	return nil
}

func validateStopInput(input StopInput) error {
	if input.State == nil {
		return errs.New(errs.InputInvalid, "stop input state cannot be nil")
	}
	if input.ConfidenceScore < 0.0 || input.ConfidenceScore > 1.0 {
		return errs.New(errs.InputInvalid, "confidence_score must be in [0,1]")
	}
	return nil
}

func formatFixed3(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}

// EvaluateStopConditions evaluates stop conditions in fixed priority order
// and returns exactly one outcome: max_runs, single-variable flip,
// confidence threshold, then stable repro rate.
func EvaluateStopConditions(config StopConfig, input StopInput) (StopDecision, error) {
	if err := validateStopConfig(config); err != nil {
		return StopDecision{}, err
	}
	if err := validateStopInput(input); err != nil {
		return StopDecision{}, err
	}

	state := input.State
	decision := StopDecision{
		RunCount:           len(state.ResultsTable),
		ObservedConfidence: input.ConfidenceScore,
	}

	decisive := make([]ResultStatus, 0, len(state.ResultsTable))
	for _, row := range state.ResultsTable {
		if isDecisive(row.Result) {
			decisive = append(decisive, row.Result)
		}
	}
	decision.DecisiveRunCount = len(decisive)

	if len(decisive) > 0 {
		window := config.StableReproWindow
		if window > len(decisive) {
			window = len(decisive)
		}
		decision.ReproWindowCount = window

		reproCount := 0
		for _, status := range decisive[len(decisive)-window:] {
			if isRepro(status) {
				reproCount++
			}
		}
		decision.ObservedReproRate = float64(reproCount) / float64(window)
	}

	// Priority 1: hard safety cap so automation cannot run unbounded.
	if decision.RunCount >= config.MaxRuns {
		decision.ShouldStop = true
		decision.Reason = StopMaxRuns
		decision.Explanation = "stop: reached max runs (run_count=" + strconv.Itoa(decision.RunCount) +
			", max_runs=" + strconv.Itoa(config.MaxRuns) + ")"
		return decision, nil
	}

	// Priority 2: strongest isolation signal, one variable with an explicit
	// pass/fail flip.
	if flip, ok := findSingleVariableFlip(state); ok {
		decision.ShouldStop = true
		decision.Reason = StopSingleVariableFlip
		decision.IsolatingVariable = flip.variable
		decision.Explanation = "stop: single-variable flip isolated variable '" + flip.variable +
			"' (value='" + flip.failValue + "' => fail, value='" + flip.passValue + "' => pass)"
		return decision, nil
	}

	// Priority 3: caller-provided confidence signal crosses explicit threshold.
	if input.ConfidenceScore >= config.ConfidenceThreshold {
		decision.ShouldStop = true
		decision.Reason = StopConfidenceThreshold
		decision.Explanation = "stop: confidence score " + formatFixed3(input.ConfidenceScore) +
			" reached threshold " + formatFixed3(config.ConfidenceThreshold)
		return decision, nil
	}

	// Priority 4: reproducibility stabilized over required recent decision window.
	if decision.ReproWindowCount == config.StableReproWindow && decision.ObservedReproRate >= config.StableReproRateMin {
		decision.ShouldStop = true
		decision.Reason = StopStableReproRate
		decision.Explanation = "stop: stable repro rate " + formatFixed3(decision.ObservedReproRate) +
			" over last " + strconv.Itoa(decision.ReproWindowCount) +
			" decisive runs reached threshold " + formatFixed3(config.StableReproRateMin)
		return decision, nil
	}

	decision.ShouldStop = false
	decision.Reason = StopContinue
	decision.Explanation = "continue: no stop condition met (run_count=" + strconv.Itoa(decision.RunCount) +
		", confidence=" + formatFixed3(input.ConfidenceScore) +
		", recent_repro_rate=" + formatFixed3(decision.ObservedReproRate) +
		", repro_window=" + strconv.Itoa(decision.ReproWindowCount) + ")"
	return decision, nil
}
