package netem

import (
	"strings"
	"testing"
)

func TestBuildCommandSuggestionsRendersDelayLossReorder(t *testing.T) {
	suggestions := BuildCommandSuggestions("scenario-1", "scenarios/scenario-1.yaml", "eth1", FaultParams{
		DelayMs:        20,
		JitterUs:       5000,
		LossPercent:    3,
		ReorderPercent: 10,
	})

	if suggestions.ProfileID != "scenario-1" {
		t.Fatalf("unexpected profile id: %q", suggestions.ProfileID)
	}
	if !strings.Contains(suggestions.ApplyCommand, "tc qdisc add dev eth1 root netem") {
		t.Fatalf("unexpected apply command: %q", suggestions.ApplyCommand)
	}
	for _, want := range []string{"delay 20ms", "loss 3%", "reorder 10%"} {
		if !strings.Contains(suggestions.ApplyCommand, want) {
			t.Fatalf("expected %q in apply command, got: %q", want, suggestions.ApplyCommand)
		}
	}
	if suggestions.ShowCommand != "tc qdisc show dev eth1" {
		t.Fatalf("unexpected show command: %q", suggestions.ShowCommand)
	}
	if suggestions.TeardownCommand != "tc qdisc del dev eth1 root" {
		t.Fatalf("unexpected teardown command: %q", suggestions.TeardownCommand)
	}
}

func TestBuildCommandSuggestionsAddsBaselineDelayForReorderOnly(t *testing.T) {
	suggestions := BuildCommandSuggestions("scenario-2", "scenarios/scenario-2.yaml", "eth0", FaultParams{
		ReorderPercent: 25,
	})

	if !strings.Contains(suggestions.ApplyCommand, "reorder 25%") {
		t.Fatalf("expected reorder clause, got: %q", suggestions.ApplyCommand)
	}
	if !strings.Contains(suggestions.ApplyCommand, "delay 10ms") {
		t.Fatalf("expected baseline delay clause for reorder-only fault, got: %q", suggestions.ApplyCommand)
	}
}

func TestBuildCommandSuggestionsOmitsClausesWhenNoFaultsPresent(t *testing.T) {
	suggestions := BuildCommandSuggestions("scenario-3", "scenarios/scenario-3.yaml", "eth0", FaultParams{})

	if suggestions.ApplyCommand != "tc qdisc add dev eth0 root netem" {
		t.Fatalf("expected bare netem command, got: %q", suggestions.ApplyCommand)
	}
}
