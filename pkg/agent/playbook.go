// Package agent implements the triage playbook registry (C9), the
// one-at-a-time scenario variant generator (C10), experiment state (C11),
// stop-decision engine (C12), hypothesis ranker (C13), and engineer-packet
// writer (C16), grounded on original_source/src/agent/*.
package agent

import (
	"strings"

	"github.com/labops-dev/labops/pkg/errs"
)

// Knob is one tunable variable the agent may change, in order, during
// triage. Rationale keeps the ordering explainable to a human reading the
// plan.
type Knob struct {
	Name      string
	Rationale string
}

// Playbook is an ordered, symptom-specific experiment plan. The order
// matters: one variable changes at a time, starting with the highest-signal
// lever.
type Playbook struct {
	ID        string
	Symptom   string
	Objective string
	Knobs     []Knob
}

func normalizeSymptom(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	previousWasSeparator := false

	for _, r := range raw {
		if isAlnum(r) {
			b.WriteRune(toLowerASCII(r))
			previousWasSeparator = false
			continue
		}

		isSeparator := r == ' ' || r == '_' || r == '-'
		if !isSeparator {
			continue
		}
		if b.Len() > 0 && !previousWasSeparator {
			b.WriteByte('_')
			previousWasSeparator = true
		}
	}

	return strings.Trim(b.String(), "_")
}

func isAlnum(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func toLowerASCII(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func buildDroppedFramesPlaybook() Playbook {
	return Playbook{
		ID:      "dropped_frames_oaat_v1",
		Symptom: "dropped_frames",
		Objective: "Isolate which single streaming/network knob causes frame loss relative to baseline.",
		// Order is deliberate: transport latency first, then camera-side
		// rate/ROI pressure, then explicit transport disorder/loss knobs.
		Knobs: []Knob{
			{Name: "packet_delay_ms", Rationale: "Test sensitivity to transport latency spikes."},
			{Name: "fps", Rationale: "Lower/raise frame cadence to separate throughput vs latency issues."},
			{Name: "roi_enabled", Rationale: "Check whether ROI path changes bandwidth or processing load."},
			{Name: "reorder_percent", Rationale: "Test sensitivity to out-of-order packet delivery."},
			{Name: "loss_percent", Rationale: "Measure tolerance to packet loss under controlled impairment."},
		},
	}
}

// SelectPlaybookForSymptom returns the registered playbook for a symptom
// string, normalizing case/punctuation before matching.
func SelectPlaybookForSymptom(symptomInput string) (Playbook, error) {
	normalized := normalizeSymptom(symptomInput)
	if normalized == "" {
		return Playbook{}, errs.New(errs.InputInvalid, "symptom input cannot be empty")
	}

	switch normalized {
	case "dropped_frames", "frame_drops", "drops":
		return buildDroppedFramesPlaybook(), nil
	default:
		return Playbook{}, errs.New(errs.InputInvalid,
			"no playbook registered for symptom '"+symptomInput+"' (normalized='"+normalized+
				"'). available symptoms: dropped_frames")
	}
}
