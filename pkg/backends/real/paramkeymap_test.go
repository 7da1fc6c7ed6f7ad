package real

import "testing"

func TestLoadParamKeyMapFromTextRejectsEmptyMapping(t *testing.T) {
	if _, err := LoadParamKeyMapFromText([]byte(`{}`)); err == nil {
		t.Fatal("expected error for empty mapping")
	}
}

func TestLoadParamKeyMapFromTextRejectsDuplicateKeys(t *testing.T) {
	_, err := LoadParamKeyMapFromText([]byte(`{"exposure_us":"ExposureTime","exposure_us":"Gain"}`))
	if err == nil {
		t.Fatal("expected error for duplicate mapping key")
	}
}

func TestLoadParamKeyMapFromTextRejectsEmptyValue(t *testing.T) {
	_, err := LoadParamKeyMapFromText([]byte(`{"exposure_us":""}`))
	if err == nil {
		t.Fatal("expected error for empty mapping value")
	}
}

func TestLoadParamKeyMapFromTextResolvesMappedKey(t *testing.T) {
	m, err := LoadParamKeyMapFromText([]byte(`{"exposure_us":"ExposureTime","gain_db":"Gain"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	node, ok := m.Resolve("exposure_us")
	if !ok || node != "ExposureTime" {
		t.Fatalf("expected exposure_us -> ExposureTime, got %q ok=%v", node, ok)
	}
	if _, ok := m.Resolve("missing_key"); ok {
		t.Fatal("expected missing key to not resolve")
	}
}
