package agent

import "testing"

func resultRows(rows ...ResultRow) *State {
	return &State{ResultsTable: rows}
}

func TestEvaluateStopConditionsRejectsInvalidConfig(t *testing.T) {
	state := resultRows()
	badConfig := StopConfig{MaxRuns: 0, StableReproWindow: 4, StableReproRateMin: 0.75, ConfidenceThreshold: 0.9}
	if _, err := EvaluateStopConditions(badConfig, StopInput{State: state}); err == nil {
		t.Fatal("expected error for max_runs=0")
	}
}

func TestEvaluateStopConditionsRejectsInvalidConfidenceScore(t *testing.T) {
	state := resultRows()
	if _, err := EvaluateStopConditions(DefaultStopConfig(), StopInput{State: state, ConfidenceScore: 1.5}); err == nil {
		t.Fatal("expected error for out-of-range confidence score")
	}
}

func TestEvaluateStopConditionsMaxRunsTakesPriority(t *testing.T) {
	config := DefaultStopConfig()
	config.MaxRuns = 2
	rows := make([]ResultRow, 0, 2)
	for i := 0; i < 2; i++ {
		rows = append(rows, ResultRow{Result: ResultPass})
	}
	decision, err := EvaluateStopConditions(config, StopInput{State: resultRows(rows...)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.ShouldStop || decision.Reason != StopMaxRuns {
		t.Fatalf("expected max_runs stop, got %+v", decision)
	}
}

func TestEvaluateStopConditionsDetectsSingleVariableFlip(t *testing.T) {
	config := DefaultStopConfig()
	config.MaxRuns = 100
	state := resultRows(
		ResultRow{VariableName: "fps", VariableValue: "30", Result: ResultFail},
		ResultRow{VariableName: "fps", VariableValue: "15", Result: ResultPass},
	)
	decision, err := EvaluateStopConditions(config, StopInput{State: state})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.ShouldStop || decision.Reason != StopSingleVariableFlip {
		t.Fatalf("expected single_variable_flip stop, got %+v", decision)
	}
	if decision.IsolatingVariable != "fps" {
		t.Fatalf("expected isolating variable fps, got %q", decision.IsolatingVariable)
	}
}

func TestEvaluateStopConditionsNoFlipWithOnlyOneValue(t *testing.T) {
	config := DefaultStopConfig()
	config.MaxRuns = 100
	state := resultRows(
		ResultRow{VariableName: "fps", VariableValue: "30", Result: ResultFail},
		ResultRow{VariableName: "fps", VariableValue: "30", Result: ResultPass},
	)
	decision, err := EvaluateStopConditions(config, StopInput{State: state})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Reason == StopSingleVariableFlip {
		t.Fatal("expected no flip when fail/pass share the same value")
	}
}

func TestEvaluateStopConditionsConfidenceThreshold(t *testing.T) {
	config := DefaultStopConfig()
	config.MaxRuns = 100
	decision, err := EvaluateStopConditions(config, StopInput{State: resultRows(), ConfidenceScore: 0.95})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.ShouldStop || decision.Reason != StopConfidenceThreshold {
		t.Fatalf("expected confidence_threshold stop, got %+v", decision)
	}
}

func TestEvaluateStopConditionsStableReproRate(t *testing.T) {
	config := DefaultStopConfig()
	config.MaxRuns = 100
	config.StableReproWindow = 4
	config.StableReproRateMin = 0.75
	state := resultRows(
		ResultRow{VariableName: "a", VariableValue: "1", Result: ResultFail},
		ResultRow{VariableName: "a", VariableValue: "1", Result: ResultFail},
		ResultRow{VariableName: "a", VariableValue: "1", Result: ResultFail},
		ResultRow{VariableName: "a", VariableValue: "1", Result: ResultFail},
	)
	decision, err := EvaluateStopConditions(config, StopInput{State: state})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.ShouldStop || decision.Reason != StopStableReproRate {
		t.Fatalf("expected stable_repro_rate stop, got %+v", decision)
	}
	if decision.ObservedReproRate != 1.0 {
		t.Fatalf("expected repro rate 1.0, got %v", decision.ObservedReproRate)
	}
}

func TestEvaluateStopConditionsContinuesWhenNothingMatches(t *testing.T) {
	config := DefaultStopConfig()
	decision, err := EvaluateStopConditions(config, StopInput{State: resultRows(), ConfidenceScore: 0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.ShouldStop || decision.Reason != StopContinue {
		t.Fatalf("expected continue, got %+v", decision)
	}
}

func TestEvaluateStopConditionsRejectsNilState(t *testing.T) {
	if _, err := EvaluateStopConditions(DefaultStopConfig(), StopInput{State: nil}); err == nil {
		t.Fatal("expected error for nil state")
	}
}
