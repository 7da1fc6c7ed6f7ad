// Package events implements the append-only structured event log (C8):
// stable type vocabulary, deterministic JSON line serialization, and the
// transport-anomaly heuristics that derive TRANSPORT_ANOMALY findings from
// real-backend transport counters. Grounded on
// original_source/src/events/{event_model,transport_anomaly}.cpp.
package events

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/labops-dev/labops/pkg/schema"
)

// FormatUTC renders a timestamp with millisecond precision in the exact
// layout original_source/src/core/time_utils.hpp produces:
// YYYY-MM-DDTHH:MM:SS.sssZ.
func FormatUTC(ts time.Time) string {
	return ts.UTC().Format("2006-01-02T15:04:05.000Z")
}

// Line renders one Event as a single events.jsonl line (no trailing
// newline; callers append it), matching
// original_source/src/events/event_model.cpp's ToJson(Event).
func Line(ev schema.Event) string {
	var b strings.Builder
	b.WriteString(`{"ts_utc":"`)
	b.WriteString(FormatUTC(ev.Ts))
	b.WriteString(`","type":"`)
	b.WriteString(string(ev.Type))
	b.WriteString(`","payload":{`)

	keys := make([]string, 0, len(ev.Payload))
	for k := range ev.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		if i != 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(escapeJSON(k))
		b.WriteString(`":"`)
		b.WriteString(escapeJSON(ev.Payload[k]))
		b.WriteByte('"')
	}

	b.WriteString("}}")
	return b.String()
}

// escapeJSON mirrors original_source/src/core/json_utils.hpp's EscapeJson:
// the standard JSON string escapes plus \u00XX for other control chars.
func escapeJSON(input string) string {
	var b strings.Builder
	for _, r := range input {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// TransportAnomalyFinding is a structured transport anomaly derived from a
// real-device counter snapshot.
type TransportAnomalyFinding struct {
	HeuristicID    string
	CounterName    string
	ObservedValue  uint64
	Threshold      uint64
	Summary        string
}

const (
	resendSpikeThreshold   uint64 = 50
	packetErrorThreshold   uint64 = 1
	droppedPacketThreshold uint64 = 1
)

// DetectTransportAnomalies evaluates optional transport heuristics from run
// metadata. Best-effort: no real-device metadata or unavailable counters
// yield no findings. Findings are deterministic and ordered by heuristic
// priority, matching original_source/src/events/transport_anomaly.cpp.
func DetectTransportAnomalies(run schema.RunInfo) []TransportAnomalyFinding {
	var findings []TransportAnomalyFinding
	if run.RealDevice == nil {
		return findings
	}

	counters := run.RealDevice.TransportCounters
	maybeAppend := func(heuristicID, counterName string, status schema.TransportCounterStatus, threshold uint64, summaryPrefix string) {
		if !status.Available || status.Value == nil {
			return
		}
		observed := *status.Value
		if observed < threshold {
			return
		}
		findings = append(findings, TransportAnomalyFinding{
			HeuristicID:   heuristicID,
			CounterName:   counterName,
			ObservedValue: observed,
			Threshold:     threshold,
			Summary: fmt.Sprintf("%s counter %d exceeded threshold %d.",
				summaryPrefix, observed, threshold),
		})
	}

	maybeAppend("resend_spike_threshold", "resends", counters.Resends, resendSpikeThreshold, "Transport anomaly: resend spike")
	maybeAppend("packet_error_threshold", "packet_errors", counters.PacketErrors, packetErrorThreshold, "Transport anomaly: packet errors")
	maybeAppend("dropped_packet_threshold", "dropped_packets", counters.DroppedPackets, droppedPacketThreshold, "Transport anomaly: dropped packets")

	return findings
}
