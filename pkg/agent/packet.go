package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/labops-dev/labops/pkg/errs"
)

// RunEvidence holds the canonical artifact links for one executed run,
// copied into the engineer packet exactly so humans can jump straight to
// the supporting evidence.
type RunEvidence struct {
	RunID               string
	BundleDir           string
	RunJSONPath         string
	EventsJSONLPath     string
	MetricsJSONPath     string
	SummaryMarkdownPath string
	DiffJSONPath        string
	DiffMarkdownPath    string
}

// ConfigAttempt is one configuration mutation attempt in OAAT order.
type ConfigAttempt struct {
	Sequence     int
	RunID        string
	KnobName     string
	KnobPath     string
	BeforeValue  string
	AfterValue   string
	ScenarioPath string
	Result       ResultStatus
	Notes        string
}

// PacketInput carries everything needed to generate a complete engineer
// handoff packet.
type PacketInput struct {
	State                *State
	Symptom              string
	BaselineScenarioPath string
	BaselineBundleDir    string
	StopDecision         StopDecision
	ConfigsTried         []ConfigAttempt
	RunEvidence          []RunEvidence
}

func validatePacketInput(input PacketInput) error {
	if input.State == nil {
		return errs.New(errs.InputInvalid, "engineer packet input state cannot be nil")
	}
	if input.BaselineScenarioPath == "" {
		return errs.New(errs.InputInvalid, "baseline_scenario_path cannot be empty")
	}
	if input.BaselineBundleDir == "" {
		return errs.New(errs.InputInvalid, "baseline_bundle_dir cannot be empty")
	}
	if len(input.ConfigsTried) == 0 {
		return errs.New(errs.InputInvalid, "configs_tried cannot be empty")
	}
	return nil
}

func buildEvidenceMap(runEvidence []RunEvidence) map[string]RunEvidence {
	evidence := make(map[string]RunEvidence, len(runEvidence))
	for _, item := range runEvidence {
		if item.RunID == "" {
			continue
		}
		evidence[item.RunID] = item
	}
	return evidence
}

func sortedAttempts(configsTried []ConfigAttempt) []ConfigAttempt {
	attempts := make([]ConfigAttempt, len(configsTried))
	copy(attempts, configsTried)
	sort.Slice(attempts, func(i, j int) bool {
		if attempts[i].Sequence != attempts[j].Sequence {
			return attempts[i].Sequence < attempts[j].Sequence
		}
		return attempts[i].RunID < attempts[j].RunID
	})
	return attempts
}

func writeEvidenceLinks(out *strings.Builder, evidence RunEvidence) {
	fmt.Fprintf(out, "  - bundle: `%s`\n", evidence.BundleDir)
	fmt.Fprintf(out, "  - run_json: `%s`\n", evidence.RunJSONPath)
	fmt.Fprintf(out, "  - events_jsonl: `%s`\n", evidence.EventsJSONLPath)
	fmt.Fprintf(out, "  - metrics_json: `%s`\n", evidence.MetricsJSONPath)
	fmt.Fprintf(out, "  - summary_md: `%s`\n", evidence.SummaryMarkdownPath)
	if evidence.DiffJSONPath != "" {
		fmt.Fprintf(out, "  - diff_json: `%s`\n", evidence.DiffJSONPath)
	}
	if evidence.DiffMarkdownPath != "" {
		fmt.Fprintf(out, "  - diff_md: `%s`\n", evidence.DiffMarkdownPath)
	}
}

func writeReproSteps(out *strings.Builder, input PacketInput, attempts []ConfigAttempt, evidence map[string]RunEvidence) {
	out.WriteString("## Repro Steps\n\n")
	fmt.Fprintf(out, "1. Validate baseline scenario: `labops validate %s`\n", input.BaselineScenarioPath)
	fmt.Fprintf(out, "2. Run baseline scenario and capture bundle under `%s`.\n", input.BaselineBundleDir)

	step := 3
	for _, attempt := range attempts {
		fmt.Fprintf(out, "%d. Apply knob `%s` (%s: `%s` -> `%s`) and run scenario `%s`.\n",
			step, attempt.KnobName, attempt.KnobPath, attempt.BeforeValue, attempt.AfterValue, attempt.ScenarioPath)

		if ev, ok := evidence[attempt.RunID]; ok {
			fmt.Fprintf(out, "   Evidence bundle: `%s`\n", ev.BundleDir)
			if ev.DiffMarkdownPath != "" {
				fmt.Fprintf(out, "   Diff: `%s`\n", ev.DiffMarkdownPath)
			}
		}
		step++
	}
	out.WriteString("\n")
}

func writeConfigsTried(out *strings.Builder, attempts []ConfigAttempt, evidence map[string]RunEvidence) {
	out.WriteString("## Configs Tried\n\n")
	out.WriteString("| seq | run_id | knob | from | to | result | scenario_path | diff_md |\n")
	out.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, attempt := range attempts {
		diffMd := ""
		if ev, ok := evidence[attempt.RunID]; ok {
			diffMd = ev.DiffMarkdownPath
		}
		fmt.Fprintf(out, "| %d | `%s` | `%s` | `%s` | `%s` | `%s` | `%s` | `%s` |\n",
			attempt.Sequence, attempt.RunID, attempt.KnobName, attempt.BeforeValue, attempt.AfterValue,
			attempt.Result, attempt.ScenarioPath, diffMd)
	}
	out.WriteString("\n")
}

func writeWhatChanged(out *strings.Builder, attempts []ConfigAttempt) {
	out.WriteString("## What Changed\n\n")
	for _, attempt := range attempts {
		fmt.Fprintf(out, "- [`%s`] changed `%s` from `%s` to `%s` using scenario `%s`.\n",
			attempt.RunID, attempt.KnobPath, attempt.BeforeValue, attempt.AfterValue, attempt.ScenarioPath)
	}
	out.WriteString("\n")
}

func writeRuledOut(out *strings.Builder, attempts []ConfigAttempt, evidence map[string]RunEvidence) {
	out.WriteString("## What We Ruled Out\n\n")

	wroteAny := false
	for _, attempt := range attempts {
		if attempt.Result != ResultPass {
			continue
		}
		wroteAny = true
		fmt.Fprintf(out, "- `%s` (`%s` -> `%s`) did not reproduce failure (run `%s`).\n",
			attempt.KnobName, attempt.BeforeValue, attempt.AfterValue, attempt.RunID)

		if ev, ok := evidence[attempt.RunID]; ok {
			fmt.Fprintf(out, "  - run_json: `%s`\n", ev.RunJSONPath)
			if ev.DiffMarkdownPath != "" {
				fmt.Fprintf(out, "  - diff_md: `%s`\n", ev.DiffMarkdownPath)
			}
		}
	}

	if !wroteAny {
		out.WriteString("- No configurations have been confidently ruled out yet.\n")
	}
	out.WriteString("\n")
}

func writeRankedHypotheses(out *strings.Builder, ranked []HypothesisRank, evidence map[string]RunEvidence) {
	out.WriteString("## Ranked Hypotheses + Evidence Links\n\n")

	if len(ranked) == 0 {
		out.WriteString("- No hypotheses recorded.\n\n")
		return
	}

	for rankIndex, rank := range ranked {
		fmt.Fprintf(out, "%d. [`%s`] score=%d status=`%s` variable=`%s`\n",
			rankIndex+1, rank.Hypothesis.ID, rank.Score, rank.Hypothesis.Status, rank.Hypothesis.VariableName)
		fmt.Fprintf(out, "   - statement: %s\n", rank.Hypothesis.Statement)
		fmt.Fprintf(out, "   - support_count: %d, contradiction_count: %d\n", rank.SupportCount, rank.ContradictionCount)

		seenRuns := make(map[string]bool)
		for _, row := range rank.Rows {
			if row.EvidenceRunID == "" || seenRuns[row.EvidenceRunID] {
				continue
			}
			seenRuns[row.EvidenceRunID] = true

			fmt.Fprintf(out, "   - evidence run `%s` result=`%s`\n", row.EvidenceRunID, row.Result)

			ev, ok := evidence[row.EvidenceRunID]
			if !ok {
				out.WriteString("     - artifact links unavailable for this run id\n")
				continue
			}
			writeEvidenceLinks(out, ev)
		}
	}

	out.WriteString("\n")
}

// WriteEngineerPacketMarkdown writes engineer_packet.md: repro steps,
// configs tried / what changed, ruled-out paths, and ranked hypotheses with
// evidence links, so a human engineer can pick up triage where the agent
// left off (C16).
func WriteEngineerPacketMarkdown(input PacketInput, outputDir string) (string, error) {
	if err := validatePacketInput(input); err != nil {
		return "", err
	}
	if outputDir == "" {
		return "", errs.New(errs.InputInvalid, "output directory cannot be empty")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to create output directory: "+outputDir, err)
	}

	attempts := sortedAttempts(input.ConfigsTried)
	evidence := buildEvidenceMap(input.RunEvidence)
	ranked := RankHypotheses(input.State)

	var out strings.Builder
	out.WriteString("# Engineer Packet\n\n")
	out.WriteString("## Run Context\n\n")
	fmt.Fprintf(&out, "- session_id: `%s`\n", input.State.SessionID)
	fmt.Fprintf(&out, "- scenario_id: `%s`\n", input.State.ScenarioID)
	fmt.Fprintf(&out, "- symptom: `%s`\n", input.Symptom)
	fmt.Fprintf(&out, "- baseline_scenario: `%s`\n", input.BaselineScenarioPath)
	fmt.Fprintf(&out, "- baseline_bundle: `%s`\n", input.BaselineBundleDir)
	fmt.Fprintf(&out, "- stop_reason: `%s`\n", input.StopDecision.Reason)
	fmt.Fprintf(&out, "- stop_explanation: %s\n\n", input.StopDecision.Explanation)

	writeReproSteps(&out, input, attempts, evidence)
	writeConfigsTried(&out, attempts, evidence)
	writeWhatChanged(&out, attempts)
	writeRuledOut(&out, attempts, evidence)
	writeRankedHypotheses(&out, ranked, evidence)

	writtenPath := filepath.Join(outputDir, "engineer_packet.md")
	if err := os.WriteFile(writtenPath, []byte(out.String()), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to open output file: "+writtenPath, err)
	}

	return writtenPath, nil
}
