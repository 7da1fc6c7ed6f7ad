package real

// floatPtr and friends are small literal helpers so the default node table
// below reads like the data it describes instead of a wall of &x.
func floatPtr(v float64) *float64 { return &v }

// CreateDefaultNodeMapAdapter builds the deterministic in-memory node table
// used by the real backend's non-proprietary bring-up path before a vendor
// SDK is linked, matching apply_params.cpp's BuildDefaultNodeAdapter.
func CreateDefaultNodeMapAdapter() *InMemoryNodeMapAdapter {
	adapter := NewInMemoryNodeMapAdapter()

	exposure := 1200.0
	adapter.Upsert("ExposureTime", NodeDefinition{
		ValueType:    NodeFloat64,
		Float64Value: &exposure,
		Range:        NumericRange{Min: floatPtr(5.0), Max: floatPtr(10_000_000.0)},
	})

	gain := 0.0
	adapter.Upsert("Gain", NodeDefinition{
		ValueType:    NodeFloat64,
		Float64Value: &gain,
		Range:        NumericRange{Min: floatPtr(0.0), Max: floatPtr(48.0)},
	})

	pixelFormat := "mono8"
	adapter.Upsert("PixelFormat", NodeDefinition{
		ValueType:   NodeEnumeration,
		StringValue: &pixelFormat,
		EnumValues:  []string{"mono8", "mono12", "rgb8"},
	})

	roi := ""
	adapter.Upsert("RegionOfInterest", NodeDefinition{
		ValueType:   NodeString,
		StringValue: &roi,
	})

	triggerMode := "free_run"
	adapter.Upsert("TriggerMode", NodeDefinition{
		ValueType:   NodeEnumeration,
		StringValue: &triggerMode,
		EnumValues:  []string{"free_run", "software", "hardware"},
	})

	triggerSource := "line0"
	adapter.Upsert("TriggerSource", NodeDefinition{
		ValueType:   NodeEnumeration,
		StringValue: &triggerSource,
		EnumValues:  []string{"line0", "line1", "software"},
	})

	frameRate := 30.0
	adapter.Upsert("AcquisitionFrameRate", NodeDefinition{
		ValueType:    NodeFloat64,
		Float64Value: &frameRate,
		Range:        NumericRange{Min: floatPtr(1.0), Max: floatPtr(240.0)},
	})

	return adapter
}
