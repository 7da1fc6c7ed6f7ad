package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteEngineerPacketMarkdownRejectsMissingInputs(t *testing.T) {
	dir := t.TempDir()
	state := &State{SessionID: "s1"}

	cases := []PacketInput{
		{State: nil, BaselineScenarioPath: "b.json", BaselineBundleDir: dir, ConfigsTried: []ConfigAttempt{{}}},
		{State: state, BaselineScenarioPath: "", BaselineBundleDir: dir, ConfigsTried: []ConfigAttempt{{}}},
		{State: state, BaselineScenarioPath: "b.json", BaselineBundleDir: "", ConfigsTried: []ConfigAttempt{{}}},
		{State: state, BaselineScenarioPath: "b.json", BaselineBundleDir: dir, ConfigsTried: nil},
	}
	for _, input := range cases {
		if _, err := WriteEngineerPacketMarkdown(input, dir); err == nil {
			t.Fatalf("expected validation error for %+v", input)
		}
	}
}

func TestWriteEngineerPacketMarkdownProducesExpectedSections(t *testing.T) {
	dir := t.TempDir()
	state := &State{
		SessionID:  "session-1",
		ScenarioID: "scenario-1",
		Hypotheses: []Hypothesis{
			{ID: "h1", Statement: "packet delay causes drops", VariableName: "packet_delay_ms", Status: HypothesisSupported},
		},
		ResultsTable: []ResultRow{
			{ExperimentID: "e1", HypothesisID: "h1", Result: ResultFail, EvidenceRunID: "run-1"},
		},
	}

	input := PacketInput{
		State:                state,
		Symptom:              "dropped_frames",
		BaselineScenarioPath: "/scenarios/base.json",
		BaselineBundleDir:    "/runs/baseline",
		StopDecision:         StopDecision{Reason: StopSingleVariableFlip, Explanation: "stop: single-variable flip"},
		ConfigsTried: []ConfigAttempt{
			{Sequence: 1, RunID: "run-1", KnobName: "packet_delay_ms", KnobPath: "camera.network.inter_packet_delay_us", BeforeValue: "0", AfterValue: "5000", ScenarioPath: "/scenarios/base__packet_delay_ms.json", Result: ResultFail},
			{Sequence: 2, RunID: "run-2", KnobName: "fps", KnobPath: "camera.fps", BeforeValue: "30", AfterValue: "29", ScenarioPath: "/scenarios/base__fps.json", Result: ResultPass},
		},
		RunEvidence: []RunEvidence{
			{RunID: "run-1", BundleDir: "/runs/run-1", RunJSONPath: "/runs/run-1/run.json", DiffMarkdownPath: "/runs/run-1/diff.md"},
			{RunID: "run-2", BundleDir: "/runs/run-2", RunJSONPath: "/runs/run-2/run.json"},
		},
	}

	path, err := WriteEngineerPacketMarkdown(input, filepath.Join(dir, "packet"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read packet: %v", err)
	}
	text := string(contents)

	for _, section := range []string{
		"## Repro Steps",
		"## Configs Tried",
		"## What Changed",
		"## What We Ruled Out",
		"## Ranked Hypotheses + Evidence Links",
	} {
		if !strings.Contains(text, section) {
			t.Fatalf("expected section %q in packet, got:\n%s", section, text)
		}
	}
	if !strings.Contains(text, "run-1") || !strings.Contains(text, "run-2") {
		t.Fatal("expected both run ids referenced in packet")
	}
	if !strings.Contains(text, "did not reproduce failure") {
		t.Fatal("expected ruled-out section to mention the passing run")
	}
}

func TestWriteEngineerPacketMarkdownReportsNoRuledOutWhenAllFail(t *testing.T) {
	dir := t.TempDir()
	state := &State{SessionID: "s1"}
	input := PacketInput{
		State:                state,
		BaselineScenarioPath: "b.json",
		BaselineBundleDir:    dir,
		ConfigsTried: []ConfigAttempt{
			{Sequence: 1, RunID: "run-1", Result: ResultFail},
		},
	}
	path, err := WriteEngineerPacketMarkdown(input, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	contents, _ := os.ReadFile(path)
	if !strings.Contains(string(contents), "No configurations have been confidently ruled out yet.") {
		t.Fatal("expected placeholder ruled-out message")
	}
}
