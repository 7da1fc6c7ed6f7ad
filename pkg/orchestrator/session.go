package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/labops-dev/labops/pkg/agent"
	"github.com/labops-dev/labops/pkg/emergency"
	"github.com/labops-dev/labops/pkg/errs"
	"github.com/labops-dev/labops/pkg/lock"
	"github.com/labops-dev/labops/pkg/metrics"
	"github.com/labops-dev/labops/pkg/scenario"
	"github.com/labops-dev/labops/pkg/scenario/parser"
	"github.com/labops-dev/labops/pkg/scenario/validator"
)

// defaultLockPath is the spec.md §5 shared-resource lock: at most one
// concurrent labops run per host, enforced relative to the working
// directory rather than nested under any one session's --out.
const defaultLockPath = "tmp/labops.lock"

// SessionRequest describes one one-at-a-time (OAAT) triage session: a
// baseline scenario, a symptom to chase, and the root directory the whole
// session's artifacts are written under (spec.md §4.9).
type SessionRequest struct {
	BaseScenarioPath string
	Symptom          string
	OutputDir        string
	BackendName      string
	SessionID        string
	StopConfig       agent.StopConfig
	NetemIface       string

	// LockPath overrides defaultLockPath; empty means use the default.
	LockPath string
}

// SessionOutcome is the full result of one triage session: the baseline and
// every variant run, the final experiment state, the stop decision that
// ended the loop, and the path to the engineer handoff packet.
type SessionOutcome struct {
	State              agent.State
	StopDecision       agent.StopDecision
	EngineerPacketPath string
	BaselineOutcome    RunOutcome
	VariantOutcomes    []RunOutcome
}

func defaultedSessionID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func loadValidatedScenario(path string) (*scenario.Scenario, error) {
	s, err := parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	v := validator.New()
	if valErr := v.Validate(s); valErr != nil {
		return nil, valErr
	}
	return s, nil
}

// RunTriageSession drives the full OAAT loop: capture a baseline, generate
// one variant per playbook knob for the given symptom, run each variant in
// turn, diff it against the baseline, and update the tracked experiment
// state until a stop condition fires. It always emits an engineer packet,
// even when the loop stops on max_runs rather than an isolated variable.
func RunTriageSession(ctx context.Context, req SessionRequest) (SessionOutcome, error) {
	var outcome SessionOutcome

	if req.OutputDir == "" {
		return outcome, errs.New(errs.InputInvalid, "output directory cannot be empty")
	}
	if req.Symptom == "" {
		return outcome, errs.New(errs.InputInvalid, "symptom cannot be empty")
	}

	lockPath := req.LockPath
	if lockPath == "" {
		lockPath = defaultLockPath
	}
	processLock, err := lock.Acquire(lockPath)
	if err != nil {
		return outcome, err
	}
	defer func() { _ = processLock.Release() }()

	controller := emergency.New(emergency.Config{EnableSignalHandlers: true})
	watchCtx, stopWatching := controller.WatchContext(ctx)
	defer stopWatching()
	controller.Start(watchCtx)
	ctx = watchCtx

	log.Info().Str("symptom", req.Symptom).Str("out", req.OutputDir).Msg("starting triage session")

	baseScenario, err := loadValidatedScenario(req.BaseScenarioPath)
	if err != nil {
		return outcome, err
	}

	baselineDir := filepath.Join(req.OutputDir, "baselines", baseScenario.ScenarioID)
	baselineOutcome, err := ExecuteRun(ctx, RunRequest{
		Scenario:    *baseScenario,
		BackendName: req.BackendName,
		RunID:       "baseline",
		BundleDir:   baselineDir,
		NetemIface:  req.NetemIface,
	})
	outcome.BaselineOutcome = baselineOutcome
	if err != nil {
		return outcome, err
	}

	sessionID := defaultedSessionID(req.SessionID)
	now := time.Now().UTC()
	state := agent.NewState(sessionID, baseScenario.ScenarioID, "baseline", baseScenario.SimFaults.Seed, now)

	stopConfig := req.StopConfig
	if stopConfig == (agent.StopConfig{}) {
		stopConfig = agent.DefaultStopConfig()
	}

	generation, err := agent.GenerateVariants(agent.GenerationRequest{
		BaseScenarioPath: req.BaseScenarioPath,
		Symptom:          req.Symptom,
		OutputDir:        filepath.Join(req.OutputDir, "agent_runs"),
	})
	if err != nil {
		return outcome, err
	}

	var configsTried []agent.ConfigAttempt
	var runEvidence []agent.RunEvidence
	var stopDecision agent.StopDecision

	var interrupted bool
	for sequence, variant := range generation.Variants {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		variantScenario, loadErr := loadValidatedScenario(variant.ScenarioPath)
		if loadErr != nil {
			return outcome, loadErr
		}

		runID := fmt.Sprintf("run-%02d-%s", sequence+1, variant.KnobName)
		runDir := filepath.Join(req.OutputDir, "runs", runID)

		runOutcome, runErr := ExecuteRun(ctx, RunRequest{
			Scenario:    *variantScenario,
			BackendName: req.BackendName,
			RunID:       runID,
			BundleDir:   runDir,
			NetemIface:  req.NetemIface,
		})
		outcome.VariantOutcomes = append(outcome.VariantOutcomes, runOutcome)

		result := classifyVariantResult(runErr)

		var diffJSONPath, diffMarkdownPath string
		if runOutcome.MetricsCSVPath != "" && baselineOutcome.MetricsCSVPath != "" {
			diffReport, diffErr := metrics.ComputeDiff(baselineOutcome.MetricsCSVPath, runOutcome.MetricsCSVPath)
			if diffErr == nil {
				if path, wErr := metrics.WriteDiffJSON(diffReport, runDir); wErr == nil {
					diffJSONPath = path
				}
				if path, wErr := metrics.WriteDiffMarkdown(diffReport, runDir); wErr == nil {
					diffMarkdownPath = path
				}
			}
		}

		state.RecordTestedVariable(agent.TestedVariable{
			Name:           variant.KnobName,
			BaselineValue:  variant.BeforeValue,
			CandidateValue: variant.AfterValue,
		}, time.Now().UTC())

		hypothesisID := "hyp_" + variant.KnobName
		state.RecordResult(agent.ResultRow{
			ExperimentID:    runID,
			HypothesisID:    hypothesisID,
			VariableName:    variant.KnobName,
			VariableValue:   variant.AfterValue,
			Result:          result,
			EvidenceRunID:   runID,
			AvgFPS:          runOutcome.Report.AvgFPS,
			DropRatePercent: runOutcome.Report.DropRatePercent,
			JitterP95Us:     runOutcome.Report.InterFrameJitterUs.P95Us,
			Notes:           variantResultNotes(runErr),
		}, time.Now().UTC())

		state.UpsertHypothesis(agent.Hypothesis{
			ID:           hypothesisID,
			Statement:    fmt.Sprintf("Changing %s from %s to %s reproduces the %s symptom.", variant.KnobName, variant.BeforeValue, variant.AfterValue, req.Symptom),
			VariableName: variant.KnobName,
			Status:       hypothesisStatusForResult(result),
		}, time.Now().UTC())

		configsTried = append(configsTried, agent.ConfigAttempt{
			Sequence:     sequence + 1,
			RunID:        runID,
			KnobName:     variant.KnobName,
			KnobPath:     variant.KnobPath,
			BeforeValue:  variant.BeforeValue,
			AfterValue:   variant.AfterValue,
			ScenarioPath: variant.ScenarioPath,
			Result:       result,
			Notes:        variantResultNotes(runErr),
		})
		runEvidence = append(runEvidence, agent.RunEvidence{
			RunID:               runID,
			BundleDir:           runDir,
			RunJSONPath:         runOutcome.RunJSONPath,
			EventsJSONLPath:     runOutcome.EventsJSONLPath,
			MetricsJSONPath:     runOutcome.MetricsJSONPath,
			SummaryMarkdownPath: runOutcome.SummaryMarkdownPath,
			DiffJSONPath:        diffJSONPath,
			DiffMarkdownPath:    diffMarkdownPath,
		})

		if _, stateErr := agent.WriteStateJSON(state, req.OutputDir); stateErr != nil {
			return outcome, stateErr
		}

		confidence := observedConfidence(&state)
		decision, decErr := agent.EvaluateStopConditions(stopConfig, agent.StopInput{State: &state, ConfidenceScore: confidence})
		if decErr != nil {
			return outcome, decErr
		}
		stopDecision = decision

		if kind, ok := errs.KindOf(runErr); ok && kind == errs.RuntimeInterrupt {
			log.Warn().Str("run_id", runID).Str("reason", controller.Reason()).Msg("triage session interrupted")
			interrupted = true
			break
		}
		if decision.ShouldStop {
			log.Info().Str("run_id", runID).Str("reason", string(decision.Reason)).Msg("stop condition reached")
			break
		}
	}

	outcome.State = state
	outcome.StopDecision = stopDecision

	packetPath, err := agent.WriteEngineerPacketMarkdown(agent.PacketInput{
		State:                &state,
		Symptom:              req.Symptom,
		BaselineScenarioPath: req.BaseScenarioPath,
		BaselineBundleDir:    baselineDir,
		StopDecision:         stopDecision,
		ConfigsTried:         configsTried,
		RunEvidence:          runEvidence,
	}, filepath.Join(req.OutputDir, "packet"))
	if err != nil {
		return outcome, err
	}
	outcome.EngineerPacketPath = packetPath

	if interrupted {
		if interruptErr := controller.InterruptError(); interruptErr != nil {
			return outcome, interruptErr
		}
		return outcome, errs.New(errs.RuntimeInterrupt, "triage session interrupted")
	}

	return outcome, nil
}

// classifyVariantResult maps a variant run's outcome to an OAAT result
// row verdict: a threshold failure means the symptom reproduced, a clean
// pass means it did not, and anything else (connect failure, exhausted
// reconnect, interrupt) is inconclusive rather than a false negative.
func classifyVariantResult(runErr error) agent.ResultStatus {
	if runErr == nil {
		return agent.ResultPass
	}
	if kind, ok := errs.KindOf(runErr); ok && kind == errs.ThresholdFailure {
		return agent.ResultFail
	}
	return agent.ResultInconclusive
}

func variantResultNotes(runErr error) string {
	if runErr == nil {
		return "thresholds passed"
	}
	return runErr.Error()
}

func hypothesisStatusForResult(result agent.ResultStatus) agent.HypothesisStatus {
	switch result {
	case agent.ResultFail:
		return agent.HypothesisSupported
	case agent.ResultPass:
		return agent.HypothesisRejected
	default:
		return agent.HypothesisNeedsHuman
	}
}

// observedConfidence is a simple, deterministic stand-in for an external
// confidence model: the top-ranked hypothesis's support share among its own
// decisive evidence, zero until at least one hypothesis has been tested.
func observedConfidence(state *agent.State) float64 {
	ranked := agent.RankHypotheses(state)
	if len(ranked) == 0 {
		return 0
	}
	top := ranked[0]
	decisive := top.SupportCount + top.ContradictionCount
	if decisive == 0 {
		return 0
	}
	return float64(top.SupportCount) / float64(decisive)
}
