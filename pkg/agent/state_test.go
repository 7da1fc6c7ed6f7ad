package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStateMarshalUsesMillisecondUTCTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 30, 45, 250_000_000, time.UTC)
	state := NewState("session-1", "scenario-1", "baseline-1", 42, now)

	encoded, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(encoded, &raw); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if raw["created_at_utc"] != "2026-03-04T12:30:45.250Z" {
		t.Fatalf("unexpected created_at_utc: %v", raw["created_at_utc"])
	}
	if raw["updated_at_utc"] != "2026-03-04T12:30:45.250Z" {
		t.Fatalf("unexpected updated_at_utc: %v", raw["updated_at_utc"])
	}
	if _, ok := raw["hypotheses"].([]interface{}); !ok {
		t.Fatal("expected hypotheses to serialize as an array even when empty")
	}
}

func TestStateRoundTripsThroughJSON(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 30, 45, 0, time.UTC)
	state := NewState("session-1", "scenario-1", "baseline-1", 42, now)
	state.UpsertHypothesis(Hypothesis{ID: "h1", Statement: "latency spike", VariableName: "packet_delay_ms", Status: HypothesisOpen}, now)
	state.RecordTestedVariable(TestedVariable{Name: "fps", BaselineValue: "30", CandidateValue: "29"}, now)
	state.RecordResult(ResultRow{ExperimentID: "e1", HypothesisID: "h1", Result: ResultPass, AvgFPS: 29.5}, now)

	encoded, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	var decoded State
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if !decoded.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at to round-trip, got %v", decoded.CreatedAt)
	}
	if len(decoded.Hypotheses) != 1 || decoded.Hypotheses[0].ID != "h1" {
		t.Fatalf("expected hypothesis to round-trip, got %+v", decoded.Hypotheses)
	}
	if len(decoded.TestedVariables) != 1 || decoded.TestedVariables[0].Name != "fps" {
		t.Fatalf("expected tested variable to round-trip, got %+v", decoded.TestedVariables)
	}
	if len(decoded.ResultsTable) != 1 || decoded.ResultsTable[0].Result != ResultPass {
		t.Fatalf("expected result row to round-trip, got %+v", decoded.ResultsTable)
	}
}

func TestUpsertHypothesisReplacesExisting(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	state := NewState("s", "sc", "b", 1, now)
	state.UpsertHypothesis(Hypothesis{ID: "h1", Statement: "first"}, now)
	later := now.Add(time.Minute)
	state.UpsertHypothesis(Hypothesis{ID: "h1", Statement: "revised"}, later)

	if len(state.Hypotheses) != 1 {
		t.Fatalf("expected upsert to replace, got %d hypotheses", len(state.Hypotheses))
	}
	if state.Hypotheses[0].Statement != "revised" {
		t.Fatalf("expected replaced statement, got %q", state.Hypotheses[0].Statement)
	}
	if !state.UpdatedAt.Equal(later) {
		t.Fatalf("expected UpdatedAt to advance to %v, got %v", later, state.UpdatedAt)
	}
}

func TestWriteAndReadStateJSON(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	state := NewState("s", "sc", "b", 7, now)

	outputDir := filepath.Join(dir, "nested")
	path, err := WriteStateJSON(state, outputDir)
	if err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	readBack, err := ReadStateJSON(path)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if readBack.SessionID != "s" || readBack.Seed != 7 {
		t.Fatalf("unexpected round-tripped state: %+v", readBack)
	}
}

func TestReadStateJSONRejectsInvalidTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent_state.json")
	badJSON := []byte(`{"session_id":"s","scenario_id":"sc","baseline_id":"b","seed":1,"created_at_utc":"not-a-date","updated_at_utc":"not-a-date","next_action":"","hypotheses":[],"tested_variables":[],"results_table":[]}`)
	if err := os.WriteFile(path, badJSON, 0o644); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if _, err := ReadStateJSON(path); err == nil {
		t.Fatal("expected error for invalid timestamp")
	}
}
