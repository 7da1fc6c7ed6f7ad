// Package schema holds the cross-component data model shared by the
// scenario runtime, artifact writers, and orchestrator: run identity and
// timestamps, optional real-device metadata, and the event record shape.
// These types are read-only once constructed by the orchestrator; writers
// and the event stream only borrow them (spec.md §3 "Ownership").
package schema

import "time"

// RunConfig captures the scenario-derived configuration that identifies one
// run (part of RunInfo).
type RunConfig struct {
	ScenarioID string `json:"scenario_id"`
	Backend    string `json:"backend"`
	Seed       uint64 `json:"seed"`
	DurationMs int64  `json:"duration_ms"`
}

// RunTimestamps captures the lifecycle timestamps of one run.
type RunTimestamps struct {
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TransportCounterStatus is one optional real-device transport counter
// reading: available=false when the backend/SDK does not expose it.
type TransportCounterStatus struct {
	Available bool    `json:"available"`
	Value     *uint64 `json:"value,omitempty"`
}

// TransportCounterSnapshot is the set of transport counters real_backend
// reads from the vendor SDK, used by the transport-anomaly heuristics
// (pkg/events) and emitted in camera_config.json.
type TransportCounterSnapshot struct {
	Resends        TransportCounterStatus `json:"resends"`
	PacketErrors   TransportCounterStatus `json:"packet_errors"`
	DroppedPackets TransportCounterStatus `json:"dropped_packets"`
}

// DeviceIdentity identifies the physical/simulated device backing a real
// backend run.
type DeviceIdentity struct {
	VendorName   string `json:"vendor_name"`
	ModelName    string `json:"model_name"`
	SerialNumber string `json:"serial_number"`
}

// RealDeviceInfo is present only for real-backend runs.
type RealDeviceInfo struct {
	Device            DeviceIdentity           `json:"device"`
	TransportCounters TransportCounterSnapshot `json:"transport_counters"`
}

// RunInfo is the canonical per-run identity record, serialized verbatim as
// run.json (spec.md §3, §4.8).
type RunInfo struct {
	RunID      string          `json:"run_id"`
	Config     RunConfig       `json:"config"`
	Timestamps RunTimestamps   `json:"timestamps"`
	RealDevice *RealDeviceInfo `json:"real_device,omitempty"`
}

// EventType is one of the stable, case-sensitive vocabulary strings from
// spec.md §6.
type EventType string

const (
	EventRunStarted         EventType = "run_started"
	EventConfigApplied      EventType = "CONFIG_APPLIED"
	EventConfigUnsupported  EventType = "CONFIG_UNSUPPORTED"
	EventConfigAdjusted     EventType = "CONFIG_ADJUSTED"
	EventStreamStarted      EventType = "STREAM_STARTED"
	EventFrameReceived      EventType = "FRAME_RECEIVED"
	EventFrameDropped       EventType = "FRAME_DROPPED"
	EventFrameTimeout       EventType = "FRAME_TIMEOUT"
	EventFrameIncomplete    EventType = "FRAME_INCOMPLETE"
	EventDeviceDisconnected EventType = "DEVICE_DISCONNECTED"
	EventTransportAnomaly   EventType = "TRANSPORT_ANOMALY"
	EventStreamStopped      EventType = "STREAM_STOPPED"
	EventInfo               EventType = "info"
	EventWarning            EventType = "warning"
	EventError              EventType = "error"
)

// Event is one append-only line of the event stream (spec.md §3, §6).
// Payload uses an ordered key list so JSON/jsonl serialization is
// deterministic regardless of Go's unordered map iteration.
type Event struct {
	Ts      time.Time
	Type    EventType
	Payload map[string]string
}
