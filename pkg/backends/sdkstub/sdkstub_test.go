package sdkstub

import (
	"context"
	"testing"
)

func TestBackendConnectAlwaysFails(t *testing.T) {
	b := New()
	if _, err := b.Connect(context.Background()); err == nil {
		t.Fatal("expected sdkstub Connect to always fail")
	}
}

func TestBackendSetParamStillAcceptsDiagnostics(t *testing.T) {
	b := New()
	if err := b.SetParam(context.Background(), "AcquisitionFrameRate", "30"); err != nil {
		t.Fatalf("expected SetParam to succeed even though Connect never will: %v", err)
	}
	value, err := b.GetParam(context.Background(), "AcquisitionFrameRate")
	if err != nil || value != "30" {
		t.Fatalf("expected readback of set param, got %q err=%v", value, err)
	}
}
