// Package orchestrator drives one scenario execution end to end (C17):
// backend selection, acquisition, metrics, threshold evaluation, and the
// per-run artifact bundle. It also drives the OAAT triage session across a
// baseline and its generated variants (session.go), including the
// single-instance process lock (pkg/lock) and the graceful-interrupt path
// (pkg/emergency). Grounded on original_source/src/labops/orchestrator.cpp
// and the teacher's pkg/core/orchestrator state-machine shape, which this
// package fully subsumes.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/labops-dev/labops/pkg/artifacts"
	"github.com/labops-dev/labops/pkg/backends"
	"github.com/labops-dev/labops/pkg/errs"
	"github.com/labops-dev/labops/pkg/events"
	"github.com/labops-dev/labops/pkg/metrics"
	"github.com/labops-dev/labops/pkg/netem"
	"github.com/labops-dev/labops/pkg/scenario"
	"github.com/labops-dev/labops/pkg/schema"
)

// maxReconnectAttemptsDefault matches spec.md §4.9's reconnect policy: up
// to 3 connect retries after a mid-run device disconnect.
const maxReconnectAttemptsDefault = 3

const (
	defaultFrameSizeBytes = 4096
	defaultAvgWindow      = time.Second
	defaultRollingWindow  = time.Second
)

// RunRequest describes one scenario execution, used for both a baseline
// capture and each OAAT variant run.
type RunRequest struct {
	Scenario    scenario.Scenario
	BackendName string
	RunID       string
	BundleDir   string

	AvgWindow     time.Duration
	RollingWindow time.Duration

	// MaxReconnectAttempts overrides maxReconnectAttemptsDefault; zero means
	// use the default.
	MaxReconnectAttempts int

	// NetemIface, when non-empty, renders the optional netem command block
	// in summary.md (spec.md §4.8, --apply-netem).
	NetemIface string
}

// RunOutcome is what one ExecuteRun call produced: the identity/metrics
// data plus every artifact path written, for the session loop to consume.
type RunOutcome struct {
	RunInfo           schema.RunInfo
	Report            metrics.Report
	ThresholdsPassed  bool
	ThresholdFailures []string

	BundleDir           string
	ScenarioJSONPath    string
	RunJSONPath         string
	EventsJSONLPath     string
	MetricsCSVPath      string
	MetricsJSONPath     string
	SummaryMarkdownPath string
	HTMLReportPath      string
	ManifestPath        string
}

func defaultedDuration(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// ExecuteRun connects the requested backend, pulls the scenario's full
// acquisition duration (retrying the connect on a mid-run disconnect up to
// MaxReconnectAttempts times per spec.md §4.9), computes the FPS report,
// evaluates thresholds, and writes the complete per-run artifact bundle.
//
// A backend_connect_failure always still flushes scenario.json, hostprobe.json,
// and run.json so the triage trail is never empty (spec.md §7). A ctx that is
// already Done when the pull finishes is treated as a graceful interrupt: the
// full bundle (including report/summary/manifest) is still written, and the
// call returns errs.RuntimeInterrupt instead of whatever pull/stop error was
// in flight.
func ExecuteRun(ctx context.Context, req RunRequest) (RunOutcome, error) {
	outcome := RunOutcome{BundleDir: req.BundleDir}

	createdAt := time.Now().UTC()
	runInfo := schema.RunInfo{
		RunID: req.RunID,
		Config: schema.RunConfig{
			ScenarioID: req.Scenario.ScenarioID,
			Backend:    req.BackendName,
			Seed:       req.Scenario.SimFaults.Seed,
			DurationMs: req.Scenario.DurationMs,
		},
		Timestamps: schema.RunTimestamps{CreatedAt: createdAt},
	}

	scenarioPath, err := artifacts.WriteScenarioJson(req.Scenario.Raw, req.BundleDir)
	if err != nil {
		return outcome, err
	}
	outcome.ScenarioJSONPath = scenarioPath

	backend, err := SelectBackend(req.BackendName, req.Scenario)
	if err != nil {
		return outcome, err
	}

	maxReconnect := req.MaxReconnectAttempts
	if maxReconnect <= 0 {
		maxReconnect = maxReconnectAttemptsDefault
	}

	var runEvents []schema.Event
	appendEvent := func(ts time.Time, evType schema.EventType, payload map[string]string) {
		runEvents = append(runEvents, schema.Event{Ts: ts, Type: evType, Payload: payload})
	}

	connectInfo, connectErr := backend.Connect(ctx)
	if connectErr != nil {
		log.Warn().Str("run_id", req.RunID).Str("backend", req.BackendName).Err(connectErr).Msg("backend connect failed")
		_, _ = artifacts.WriteHostProbeJson(req.BackendName, connectErr.Error(), time.Now().UTC(), req.BundleDir)
		runJSONPath, _ := artifacts.WriteRunJson(runInfo, req.BundleDir)
		outcome.RunJSONPath = runJSONPath
		outcome.RunInfo = runInfo
		return outcome, connectErr
	}

	startedAt := time.Now().UTC()
	runInfo.Timestamps.StartedAt = &startedAt
	appendEvent(startedAt, schema.EventRunStarted, map[string]string{
		"scenario_id": req.Scenario.ScenarioID,
		"backend":     req.BackendName,
	})

	if connectInfo.Connected && connectInfo.Device.VendorName != "" {
		runInfo.RealDevice = &schema.RealDeviceInfo{
			Device: schema.DeviceIdentity{
				VendorName:   connectInfo.Device.VendorName,
				ModelName:    connectInfo.Device.ModelName,
				SerialNumber: connectInfo.Device.SerialNumber,
			},
		}
	}

	releaser := NewReleaseCoordinator()

	if startErr := backend.Start(ctx); startErr != nil {
		_ = releaser.Release(ctx, backend, req.RunID)
		runJSONPath, _ := artifacts.WriteRunJson(runInfo, req.BundleDir)
		outcome.RunJSONPath = runJSONPath
		outcome.RunInfo = runInfo
		return outcome, startErr
	}

	appendEvent(startedAt, schema.EventStreamStarted, map[string]string{"fps": fmt.Sprintf("%d", req.Scenario.CameraFPS)})

	frames, pullErr, reconnectAttempts := pullWithReconnect(ctx, backend, req, startedAt, appendEvent, maxReconnect)
	stopErr := releaser.Release(ctx, backend, req.RunID)
	finishedAt := time.Now().UTC()
	runInfo.Timestamps.FinishedAt = &finishedAt

	// ctx.Err() means the caller asked for a graceful stop (SIGINT/SIGTERM or
	// an emergency.Controller stop file) while this run was in flight; that
	// takes priority over whatever pullErr/stopErr say, and the bundle still
	// gets a full flush rather than an early return (spec.md §4.9/§7).
	interrupted := ctx.Err() != nil

	stopReason := "completed"
	switch {
	case interrupted:
		stopReason = "signal_interrupt"
	case pullErr != nil:
		stopReason = "device_disconnect"
	}
	appendEvent(finishedAt, schema.EventStreamStopped, map[string]string{
		"reason":                        stopReason,
		"reconnect_retry_limit":         fmt.Sprintf("%d", maxReconnect),
		"reconnect_attempts_used_total": fmt.Sprintf("%d", reconnectAttempts),
	})

	if runInfo.RealDevice != nil {
		for _, finding := range events.DetectTransportAnomalies(runInfo) {
			appendEvent(finishedAt, schema.EventTransportAnomaly, map[string]string{
				"heuristic_id":   finding.HeuristicID,
				"counter_name":   finding.CounterName,
				"observed_value": fmt.Sprintf("%d", finding.ObservedValue),
				"threshold":      fmt.Sprintf("%d", finding.Threshold),
				"summary":        finding.Summary,
			})
		}
	}

	eventsPath, evErr := artifacts.WriteEventsJsonl(runEvents, req.BundleDir)
	if evErr != nil {
		return outcome, evErr
	}
	outcome.EventsJSONLPath = eventsPath

	runJSONPath, runJSONErr := artifacts.WriteRunJson(runInfo, req.BundleDir)
	if runJSONErr != nil {
		return outcome, runJSONErr
	}
	outcome.RunJSONPath = runJSONPath
	outcome.RunInfo = runInfo

	if !interrupted {
		if pullErr != nil {
			return outcome, pullErr
		}
		if stopErr != nil {
			return outcome, stopErr
		}
	}

	avgWindow := defaultedDuration(req.AvgWindow,
		defaultedDuration(time.Duration(req.Scenario.DurationMs)*time.Millisecond, defaultAvgWindow))
	rollingWindow := defaultedDuration(req.RollingWindow, defaultRollingWindow)
	report, reportErr := metrics.ComputeReport(frames, avgWindow, rollingWindow)
	if reportErr != nil {
		return outcome, reportErr
	}
	outcome.Report = report

	thresholdsPassed, thresholdFailures := evaluateThresholds(req.Scenario.Thresholds, report)
	outcome.ThresholdsPassed = thresholdsPassed
	outcome.ThresholdFailures = thresholdFailures

	metricsCSVPath, err := artifacts.WriteMetricsCsv(report, req.BundleDir)
	if err != nil {
		return outcome, err
	}
	outcome.MetricsCSVPath = metricsCSVPath

	metricsJSONPath, err := artifacts.WriteMetricsJson(report, req.BundleDir)
	if err != nil {
		return outcome, err
	}
	outcome.MetricsJSONPath = metricsJSONPath

	var netemSuggestions *netem.CommandSuggestions
	if req.NetemIface != "" {
		params := netem.FaultParams{
			JitterUs:       req.Scenario.SimFaults.JitterUs,
			LossPercent:    req.Scenario.SimFaults.DropPercent,
			ReorderPercent: req.Scenario.SimFaults.Reorder,
		}
		suggestions := netem.BuildCommandSuggestions(req.Scenario.ScenarioID, scenarioPath, req.NetemIface, params)
		netemSuggestions = &suggestions
	}

	topAnomalies := topAnomalySummaries(runEvents)

	summaryPath, err := artifacts.WriteRunSummaryMarkdown(runInfo, report, uint32(req.Scenario.CameraFPS),
		thresholdsPassed, thresholdFailures, topAnomalies, netemSuggestions, req.BundleDir)
	if err != nil {
		return outcome, err
	}
	outcome.SummaryMarkdownPath = summaryPath

	htmlPath, err := artifacts.WriteRunSummaryHtml(runInfo, report, uint32(req.Scenario.CameraFPS),
		thresholdsPassed, thresholdFailures, topAnomalies, req.BundleDir)
	if err != nil {
		return outcome, err
	}
	outcome.HTMLReportPath = htmlPath

	manifestPath, err := artifacts.WriteBundleManifestJson(req.BundleDir, []string{
		scenarioPath, runJSONPath, eventsPath, metricsCSVPath, metricsJSONPath, summaryPath, htmlPath,
	})
	if err != nil {
		return outcome, err
	}
	outcome.ManifestPath = manifestPath

	if interrupted {
		log.Warn().Str("run_id", req.RunID).Msg("run interrupted, bundle flushed")
		return outcome, errs.New(errs.RuntimeInterrupt, "run interrupted: "+ctx.Err().Error())
	}
	if !thresholdsPassed {
		log.Info().Str("run_id", req.RunID).Strs("failures", thresholdFailures).Msg("thresholds failed")
		return outcome, errs.New(errs.ThresholdFailure, "configured thresholds failed")
	}
	return outcome, nil
}

// pullWithReconnect runs PullFrames once, and on a device_disconnect kind
// retries connect+start up to maxReconnect times before giving up
// (spec.md §4.9). Each disconnect emits DEVICE_DISCONNECTED with the
// attempt counters so far.
func pullWithReconnect(ctx context.Context, backend backends.Backend, req RunRequest, streamStart time.Time,
	appendEvent func(time.Time, schema.EventType, map[string]string), maxReconnect int) ([]backends.FrameSample, error, int) {

	pullReq := backends.PullRequest{
		DurationMs:   req.Scenario.DurationMs,
		FPS:          req.Scenario.CameraFPS,
		FirstFrameID: 0,
		StreamStart:  streamStart,
		DefaultSize:  defaultFrameSizeBytes,
	}

	var allFrames []backends.FrameSample
	attempts := 0
	for {
		result, err := backend.PullFrames(ctx, pullReq)
		allFrames = append(allFrames, appendFrameEvents(result, appendEvent)...)

		if err == nil {
			return allFrames, nil, attempts
		}

		kind, known := errs.KindOf(err)
		if !known || kind != errs.DeviceDisconnect {
			return allFrames, err, attempts
		}

		pullReq.FirstFrameID += uint64(len(result.Frames))
		appendEvent(time.Now().UTC(), schema.EventDeviceDisconnected, map[string]string{
			"attempt": fmt.Sprintf("%d", attempts+1),
		})

		if attempts >= maxReconnect {
			return allFrames, err, attempts
		}
		attempts++

		// A fresh connect against a latched disconnect fixture
		// (pkg/backends/real) fails permanently, so this keeps spending
		// attempts until the reconnect budget is exhausted (spec.md §4.9);
		// the next PullFrames call surfaces whatever error that leaves the
		// backend in.
		if _, connectErr := backend.Connect(ctx); connectErr != nil {
			continue
		}
		if startErr := backend.Start(ctx); startErr != nil {
			continue
		}
	}
}

func appendFrameEvents(result backends.PullResult, appendEvent func(time.Time, schema.EventType, map[string]string)) []backends.FrameSample {
	for _, frame := range result.Frames {
		evType := frameEventType(frame.Outcome)
		appendEvent(frame.Timestamp, evType, map[string]string{
			"frame_id":   fmt.Sprintf("%d", frame.FrameID),
			"size_bytes": fmt.Sprintf("%d", frame.SizeBytes),
		})
	}
	return result.Frames
}

func frameEventType(outcome backends.FrameOutcome) schema.EventType {
	switch outcome {
	case backends.FrameReceived:
		return schema.EventFrameReceived
	case backends.FrameTimeout:
		return schema.EventFrameTimeout
	case backends.FrameIncomplete:
		return schema.EventFrameIncomplete
	case backends.FrameDropped:
		return schema.EventFrameDropped
	default:
		return schema.EventFrameDropped
	}
}

// evaluateThresholds checks a scenario's optional pass/fail gates against a
// computed report, returning the pass flag and a human-readable failure
// list for summary.md/report.html.
func evaluateThresholds(thresholds scenario.Thresholds, report metrics.Report) (bool, []string) {
	var failures []string

	if thresholds.MinAvgFPS != nil && report.AvgFPS < *thresholds.MinAvgFPS {
		failures = append(failures, fmt.Sprintf("avg_fps %.3f is below min_avg_fps %.3f", report.AvgFPS, *thresholds.MinAvgFPS))
	}
	if thresholds.MaxDropRatePercent != nil && report.DropRatePercent > *thresholds.MaxDropRatePercent {
		failures = append(failures, fmt.Sprintf("drop_rate_percent %.3f exceeds max_drop_rate_percent %.3f",
			report.DropRatePercent, *thresholds.MaxDropRatePercent))
	}

	return len(failures) == 0, failures
}

// topAnomalySummaries extracts TRANSPORT_ANOMALY summaries in emission
// order for summary.md/report.html's "Top Anomalies" section.
func topAnomalySummaries(runEvents []schema.Event) []string {
	var summaries []string
	for _, ev := range runEvents {
		if ev.Type == schema.EventTransportAnomaly {
			summaries = append(summaries, ev.Payload["summary"])
		}
	}
	return summaries
}
