package real

import "testing"

func TestInMemoryNodeMapAdapterTypeMismatchOnWrite(t *testing.T) {
	a := NewInMemoryNodeMapAdapter()
	s := "mono8"
	a.Upsert("PixelFormat", NodeDefinition{ValueType: NodeEnumeration, StringValue: &s, EnumValues: []string{"mono8", "rgb8"}})

	if err := a.TrySetBool("PixelFormat", true); err == nil {
		t.Fatal("expected type mismatch error writing bool to enum node")
	}
}

func TestInMemoryNodeMapAdapterRejectsOutOfRangeWithoutClamping(t *testing.T) {
	a := NewInMemoryNodeMapAdapter()
	gain := 0.0
	a.Upsert("Gain", NodeDefinition{ValueType: NodeFloat64, Float64Value: &gain, Range: NumericRange{Min: floatPtr(0), Max: floatPtr(48)}})

	if err := a.TrySetFloat64("Gain", 100); err == nil {
		t.Fatal("expected range rejection, node adapter must not clamp")
	}
	got, ok := a.TryGetFloat64("Gain")
	if !ok || got != 0 {
		t.Fatalf("rejected write must leave prior value intact, got %v ok=%v", got, ok)
	}
}

func TestInMemoryNodeMapAdapterEnumWriteIsCaseSensitive(t *testing.T) {
	a := NewInMemoryNodeMapAdapter()
	s := "free_run"
	a.Upsert("TriggerMode", NodeDefinition{ValueType: NodeEnumeration, StringValue: &s, EnumValues: []string{"free_run", "software"}})

	if err := a.TrySetString("TriggerMode", "Free_Run"); err == nil {
		t.Fatal("expected case-sensitive rejection at the node adapter layer")
	}
	if err := a.TrySetString("TriggerMode", "software"); err != nil {
		t.Fatalf("expected exact-case enum value to be accepted: %v", err)
	}
}

func TestInMemoryNodeMapAdapterListKeysSorted(t *testing.T) {
	a := NewInMemoryNodeMapAdapter()
	v := true
	a.Upsert("Zebra", NodeDefinition{ValueType: NodeBool, BoolValue: &v})
	a.Upsert("Alpha", NodeDefinition{ValueType: NodeBool, BoolValue: &v})

	keys := a.ListKeys()
	if len(keys) != 2 || keys[0] != "Alpha" || keys[1] != "Zebra" {
		t.Fatalf("expected sorted keys [Alpha Zebra], got %v", keys)
	}
}
