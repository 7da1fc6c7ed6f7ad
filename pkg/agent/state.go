package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/labops-dev/labops/pkg/errs"
)

// utcMillisLayout matches the original hand-rolled formatter's
// "YYYY-MM-DDThh:mm:ss.mmmZ" shape exactly.
const utcMillisLayout = "2006-01-02T15:04:05.000Z"

// HypothesisStatus is a root-cause hypothesis's lifecycle state.
type HypothesisStatus string

const (
	HypothesisOpen       HypothesisStatus = "open"
	HypothesisSupported  HypothesisStatus = "supported"
	HypothesisRejected   HypothesisStatus = "rejected"
	HypothesisNeedsHuman HypothesisStatus = "needs_human"
)

// ResultStatus is one experiment result row's verdict.
type ResultStatus string

const (
	ResultPass         ResultStatus = "pass"
	ResultFail         ResultStatus = "fail"
	ResultInconclusive ResultStatus = "inconclusive"
)

// Hypothesis is a single root-cause theory the agent is tracking.
type Hypothesis struct {
	ID           string           `json:"id"`
	Statement    string           `json:"statement"`
	VariableName string           `json:"variable_name"`
	Status       HypothesisStatus `json:"status"`
}

// TestedVariable records one knob mutation already tried, baseline next to
// candidate so OAAT analysis reads directly off the state.
type TestedVariable struct {
	Name           string `json:"name"`
	BaselineValue  string `json:"baseline_value"`
	CandidateValue string `json:"candidate_value"`
}

// ResultRow is one experiment result, verdict plus the metrics that backed it.
type ResultRow struct {
	ExperimentID    string       `json:"experiment_id"`
	HypothesisID    string       `json:"hypothesis_id"`
	VariableName    string       `json:"variable_name"`
	VariableValue   string       `json:"variable_value"`
	Result          ResultStatus `json:"result"`
	EvidenceRunID   string       `json:"evidence_run_id"`
	AvgFPS          float64      `json:"avg_fps"`
	DropRatePercent float64      `json:"drop_rate_percent"`
	JitterP95Us     float64      `json:"jitter_p95_us"`
	Notes           string       `json:"notes"`
}

// State is the canonical in-memory triage-planning state, self-contained so
// it can be checkpointed between agent iterations and shipped inside
// engineer bundles (C11).
type State struct {
	SessionID       string           `json:"session_id"`
	ScenarioID      string           `json:"scenario_id"`
	BaselineID      string           `json:"baseline_id"`
	Seed            uint64           `json:"seed"`
	CreatedAt       time.Time        `json:"-"`
	UpdatedAt       time.Time        `json:"-"`
	Hypotheses      []Hypothesis     `json:"hypotheses"`
	TestedVariables []TestedVariable `json:"tested_variables"`
	ResultsTable    []ResultRow      `json:"results_table"`
	NextAction      string           `json:"next_action"`
}

// stateJSON mirrors State for marshaling, substituting the millisecond-UTC
// timestamp strings the original writer emits for time.Time fields.
type stateJSON struct {
	SessionID       string           `json:"session_id"`
	ScenarioID      string           `json:"scenario_id"`
	BaselineID      string           `json:"baseline_id"`
	Seed            uint64           `json:"seed"`
	CreatedAtUTC    string           `json:"created_at_utc"`
	UpdatedAtUTC    string           `json:"updated_at_utc"`
	NextAction      string           `json:"next_action"`
	Hypotheses      []Hypothesis     `json:"hypotheses"`
	TestedVariables []TestedVariable `json:"tested_variables"`
	ResultsTable    []ResultRow      `json:"results_table"`
}

// MarshalJSON emits the stable agent_state.json shape.
func (s State) MarshalJSON() ([]byte, error) {
	hypotheses := s.Hypotheses
	if hypotheses == nil {
		hypotheses = []Hypothesis{}
	}
	testedVariables := s.TestedVariables
	if testedVariables == nil {
		testedVariables = []TestedVariable{}
	}
	resultsTable := s.ResultsTable
	if resultsTable == nil {
		resultsTable = []ResultRow{}
	}

	return json.Marshal(stateJSON{
		SessionID:       s.SessionID,
		ScenarioID:      s.ScenarioID,
		BaselineID:      s.BaselineID,
		Seed:            s.Seed,
		CreatedAtUTC:    s.CreatedAt.UTC().Format(utcMillisLayout),
		UpdatedAtUTC:    s.UpdatedAt.UTC().Format(utcMillisLayout),
		NextAction:      s.NextAction,
		Hypotheses:      hypotheses,
		TestedVariables: testedVariables,
		ResultsTable:    resultsTable,
	})
}

// UnmarshalJSON restores a State from agent_state.json, parsing the
// millisecond-UTC timestamp strings back into time.Time.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	createdAt, err := time.Parse(utcMillisLayout, raw.CreatedAtUTC)
	if err != nil {
		return errs.Wrap(errs.InputInvalid, "invalid created_at_utc timestamp", err)
	}
	updatedAt, err := time.Parse(utcMillisLayout, raw.UpdatedAtUTC)
	if err != nil {
		return errs.Wrap(errs.InputInvalid, "invalid updated_at_utc timestamp", err)
	}

	s.SessionID = raw.SessionID
	s.ScenarioID = raw.ScenarioID
	s.BaselineID = raw.BaselineID
	s.Seed = raw.Seed
	s.CreatedAt = createdAt
	s.UpdatedAt = updatedAt
	s.NextAction = raw.NextAction
	s.Hypotheses = raw.Hypotheses
	s.TestedVariables = raw.TestedVariables
	s.ResultsTable = raw.ResultsTable
	return nil
}

// NewState builds a fresh State with created/updated both set to now, the
// shape every new triage session starts from.
func NewState(sessionID, scenarioID, baselineID string, seed uint64, now time.Time) State {
	return State{
		SessionID:  sessionID,
		ScenarioID: scenarioID,
		BaselineID: baselineID,
		Seed:       seed,
		CreatedAt:  now,
		UpdatedAt:  now,
		NextAction: "",
	}
}

// RecordTestedVariable appends a tested variable and bumps UpdatedAt.
func (s *State) RecordTestedVariable(variable TestedVariable, now time.Time) {
	s.TestedVariables = append(s.TestedVariables, variable)
	s.UpdatedAt = now
}

// RecordResult appends a result row and bumps UpdatedAt.
func (s *State) RecordResult(row ResultRow, now time.Time) {
	s.ResultsTable = append(s.ResultsTable, row)
	s.UpdatedAt = now
}

// UpsertHypothesis replaces a hypothesis with the same ID, or appends it if
// no hypothesis with that ID exists yet, then bumps UpdatedAt.
func (s *State) UpsertHypothesis(hypothesis Hypothesis, now time.Time) {
	for i := range s.Hypotheses {
		if s.Hypotheses[i].ID == hypothesis.ID {
			s.Hypotheses[i] = hypothesis
			s.UpdatedAt = now
			return
		}
	}
	s.Hypotheses = append(s.Hypotheses, hypothesis)
	s.UpdatedAt = now
}

// WriteStateJSON writes the agent_state.json checkpoint artifact, creating
// outputDir if missing, and returns the written path.
func WriteStateJSON(state State, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to create output directory: "+outputDir, err)
	}

	encoded, err := json.Marshal(state)
	if err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to encode agent state", err)
	}

	writtenPath := filepath.Join(outputDir, "agent_state.json")
	if err := os.WriteFile(writtenPath, append(encoded, '\n'), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to open output file: "+writtenPath, err)
	}
	return writtenPath, nil
}

// ReadStateJSON reads an agent_state.json checkpoint artifact.
func ReadStateJSON(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, errs.Wrap(errs.IOFailure, "failed to open file: "+path, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, errs.Wrap(errs.InputInvalid, "failed to parse agent state JSON", err)
	}
	return state, nil
}
