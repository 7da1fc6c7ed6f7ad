package webcam

import (
	"context"
	"testing"
)

func TestProbePlatformAvailabilityReportsUnavailable(t *testing.T) {
	probe := ProbePlatformAvailability()
	if probe.Available {
		t.Fatal("expected no platform to report available capture yet")
	}
	if probe.UnavailabilityReason == "" {
		t.Fatal("expected a non-empty unavailability reason")
	}
}

func TestBackendConnectAlwaysFails(t *testing.T) {
	b := New()
	if _, err := b.Connect(context.Background()); err == nil {
		t.Fatal("expected webcam Connect to always fail")
	}
}
