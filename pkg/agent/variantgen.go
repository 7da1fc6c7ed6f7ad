package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labops-dev/labops/pkg/errs"
)

// Variant is one one-at-a-time scenario mutation (spec.md §3's "Scenario
// variant"): exactly one dotted path changed relative to the base scenario.
type Variant struct {
	KnobName     string
	KnobPath     string
	BeforeValue  string
	AfterValue   string
	ScenarioPath string
}

// GenerationRequest describes one OAAT variant-generation run.
type GenerationRequest struct {
	BaseScenarioPath string
	Symptom          string
	OutputDir        string
}

// GenerationResult is the outcome of one OAAT variant-generation run.
type GenerationResult struct {
	PlaybookID   string
	OutputDir    string
	Variants     []Variant
	ManifestPath string
}

func validateGenerationRequest(request GenerationRequest) error {
	if request.BaseScenarioPath == "" {
		return errs.New(errs.InputInvalid, "base scenario path cannot be empty")
	}
	if request.Symptom == "" {
		return errs.New(errs.InputInvalid, "symptom cannot be empty")
	}
	if request.OutputDir == "" {
		return errs.New(errs.InputInvalid, "output directory cannot be empty")
	}

	info, err := os.Stat(request.BaseScenarioPath)
	if err != nil {
		return errs.Wrap(errs.InputInvalid, "base scenario file not found: "+request.BaseScenarioPath, err)
	}
	if info.IsDir() {
		return errs.New(errs.InputInvalid, "base scenario must be a regular file: "+request.BaseScenarioPath)
	}
	if filepath.Ext(request.BaseScenarioPath) != ".json" {
		return errs.New(errs.InputInvalid, "base scenario must use .json extension: "+request.BaseScenarioPath)
	}
	return nil
}

func deepCopyJSON(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, nested := range v {
			out[key] = deepCopyJSON(nested)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, nested := range v {
			out[i] = deepCopyJSON(nested)
		}
		return out
	default:
		return value
	}
}

func ensureObjectMember(root map[string]interface{}, key string) map[string]interface{} {
	if existing, ok := root[key].(map[string]interface{}); ok {
		return existing
	}
	fresh := make(map[string]interface{})
	root[key] = fresh
	return fresh
}

func readIntegerAtPath(root map[string]interface{}, path ...string) (int64, bool) {
	current := interface{}(root)
	for _, key := range path {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return 0, false
		}
		value, ok := obj[key]
		if !ok {
			return 0, false
		}
		current = value
	}

	num, ok := current.(json.Number)
	if !ok {
		switch v := current.(type) {
		case float64:
			num = json.Number(strconv.FormatFloat(v, 'f', -1, 64))
		case int:
			num = json.Number(strconv.Itoa(v))
		case int64:
			num = json.Number(strconv.FormatInt(v, 10))
		default:
			return 0, false
		}
	}
	asFloat, err := num.Float64()
	if err != nil {
		return 0, false
	}
	rounded := math.Round(asFloat)
	if math.Abs(asFloat-rounded) > 1e-9 {
		return 0, false
	}
	return int64(rounded), true
}

func setIntegerAtPath(root map[string]interface{}, value int64, path ...string) {
	cursor := root
	for i, key := range path {
		if i == len(path)-1 {
			cursor[key] = json.Number(strconv.FormatInt(value, 10))
			return
		}
		cursor = ensureObjectMember(cursor, key)
	}
}

func clampInt(value, low, high int64) int64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

func sanitizeFilenameToken(input string) string {
	var b strings.Builder
	for _, r := range input {
		allowed := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
		if allowed {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	if b.Len() == 0 {
		return "variant"
	}
	return b.String()
}

func applyPacketDelayMutation(base, variant map[string]interface{}) Variant {
	baseUs, _ := readIntegerAtPath(base, "camera", "network", "inter_packet_delay_us")
	candidateUs := baseUs + 5000
	setIntegerAtPath(variant, candidateUs, "camera", "network", "inter_packet_delay_us")
	return Variant{
		KnobPath:    "camera.network.inter_packet_delay_us",
		BeforeValue: strconv.FormatInt(baseUs, 10),
		AfterValue:  strconv.FormatInt(candidateUs, 10),
	}
}

func applyFpsMutation(base, variant map[string]interface{}) Variant {
	baseFPS, ok := readIntegerAtPath(base, "camera", "fps")
	if !ok {
		baseFPS = 30
	}
	candidateFPS := baseFPS - 1
	if candidateFPS < 1 {
		candidateFPS = 1
	}
	setIntegerAtPath(variant, candidateFPS, "camera", "fps")
	return Variant{
		KnobPath:    "camera.fps",
		BeforeValue: strconv.FormatInt(baseFPS, 10),
		AfterValue:  strconv.FormatInt(candidateFPS, 10),
	}
}

func applyROIToggleMutation(base, variant map[string]interface{}) Variant {
	camera := ensureObjectMember(variant, "camera")

	baseCamera, _ := base["camera"].(map[string]interface{})
	_, hasBaseROI := baseCamera["roi"]

	if hasBaseROI {
		delete(camera, "roi")
		return Variant{KnobPath: "camera.roi", BeforeValue: "enabled", AfterValue: "disabled"}
	}

	width, ok := readIntegerAtPath(base, "camera", "width")
	if !ok {
		width = 1920
	}
	height, ok := readIntegerAtPath(base, "camera", "height")
	if !ok {
		height = 1080
	}
	roiWidth := width / 2
	if roiWidth < 1 {
		roiWidth = 1
	}
	roiHeight := height / 2
	if roiHeight < 1 {
		roiHeight = 1
	}

	camera["roi"] = map[string]interface{}{
		"x":      json.Number("0"),
		"y":      json.Number("0"),
		"width":  json.Number(strconv.FormatInt(roiWidth, 10)),
		"height": json.Number(strconv.FormatInt(roiHeight, 10)),
	}
	return Variant{KnobPath: "camera.roi", BeforeValue: "disabled", AfterValue: "enabled"}
}

func applyReorderMutation(base, variant map[string]interface{}) Variant {
	baseReorder, _ := readIntegerAtPath(base, "sim_faults", "reorder")
	candidateReorder := clampInt(baseReorder+5, 0, 100)
	setIntegerAtPath(variant, candidateReorder, "sim_faults", "reorder")
	return Variant{
		KnobPath:    "sim_faults.reorder",
		BeforeValue: strconv.FormatInt(baseReorder, 10),
		AfterValue:  strconv.FormatInt(candidateReorder, 10),
	}
}

func applyLossMutation(base, variant map[string]interface{}) Variant {
	baseDrop, _ := readIntegerAtPath(base, "sim_faults", "drop_percent")
	var candidateDrop int64
	if baseDrop >= 100 {
		candidateDrop = 90
	} else {
		candidateDrop = clampInt(baseDrop+10, 0, 100)
	}
	setIntegerAtPath(variant, candidateDrop, "sim_faults", "drop_percent")
	return Variant{
		KnobPath:    "sim_faults.drop_percent",
		BeforeValue: strconv.FormatInt(baseDrop, 10),
		AfterValue:  strconv.FormatInt(candidateDrop, 10),
	}
}

func applyKnobMutation(base, variant map[string]interface{}, knobName string) (Variant, error) {
	switch knobName {
	case "packet_delay_ms":
		return applyPacketDelayMutation(base, variant), nil
	case "fps":
		return applyFpsMutation(base, variant), nil
	case "roi_enabled":
		return applyROIToggleMutation(base, variant), nil
	case "reorder_percent":
		return applyReorderMutation(base, variant), nil
	case "loss_percent":
		return applyLossMutation(base, variant), nil
	default:
		return Variant{}, errs.New(errs.InputInvalid, "unsupported playbook knob for scenario variant generation: "+knobName)
	}
}

func buildVariantFileName(basePath, knobName string) string {
	stem := strings.TrimSuffix(filepath.Base(basePath), filepath.Ext(basePath))
	return stem + "__" + sanitizeFilenameToken(knobName) + ".json"
}

func marshalJSONTree(value interface{}) ([]byte, error) {
	var b bytes.Buffer
	encoder := json.NewEncoder(&b)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

func buildVariantManifest(result GenerationResult) ([]byte, error) {
	variants := make([]map[string]interface{}, 0, len(result.Variants))
	for _, variant := range result.Variants {
		variants = append(variants, map[string]interface{}{
			"knob_name":     variant.KnobName,
			"knob_path":     variant.KnobPath,
			"before_value":  variant.BeforeValue,
			"after_value":   variant.AfterValue,
			"scenario_path": variant.ScenarioPath,
		})
	}
	manifest := map[string]interface{}{
		"playbook_id": result.PlaybookID,
		"output_dir":  result.OutputDir,
		"variants":    variants,
	}
	return marshalJSONTree(manifest)
}

// GenerateVariants builds one scenario variant per playbook knob, each a
// copy of the base scenario with exactly one dotted path mutated, plus a
// variants_manifest.json index (C10).
func GenerateVariants(request GenerationRequest) (GenerationResult, error) {
	if err := validateGenerationRequest(request); err != nil {
		return GenerationResult{}, err
	}

	baseText, err := os.ReadFile(request.BaseScenarioPath)
	if err != nil {
		return GenerationResult{}, errs.Wrap(errs.IOFailure, "failed to open file: "+request.BaseScenarioPath, err)
	}

	var baseRoot map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(baseText))
	decoder.UseNumber()
	if err := decoder.Decode(&baseRoot); err != nil {
		return GenerationResult{}, errs.Wrap(errs.InputInvalid, "failed to parse base scenario JSON", err)
	}

	playbook, err := SelectPlaybookForSymptom(request.Symptom)
	if err != nil {
		return GenerationResult{}, err
	}

	outputDir, err := filepath.Abs(request.OutputDir)
	if err != nil {
		return GenerationResult{}, errs.Wrap(errs.IOFailure, "failed to resolve output directory: "+request.OutputDir, err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return GenerationResult{}, errs.Wrap(errs.IOFailure, fmt.Sprintf("failed to create output directory '%s'", outputDir), err)
	}

	result := GenerationResult{PlaybookID: playbook.ID, OutputDir: outputDir}

	for _, knob := range playbook.Knobs {
		variantRoot, ok := deepCopyJSON(baseRoot).(map[string]interface{})
		if !ok {
			return GenerationResult{}, errs.New(errs.InputInvalid, "base scenario JSON root must be an object")
		}

		variant, err := applyKnobMutation(baseRoot, variantRoot, knob.Name)
		if err != nil {
			return GenerationResult{}, err
		}
		variant.KnobName = knob.Name

		variantPath := filepath.Join(outputDir, buildVariantFileName(request.BaseScenarioPath, knob.Name))
		encoded, err := marshalJSONTree(variantRoot)
		if err != nil {
			return GenerationResult{}, errs.Wrap(errs.IOFailure, "failed to encode variant scenario", err)
		}
		if err := os.WriteFile(variantPath, append(encoded, '\n'), 0o644); err != nil {
			return GenerationResult{}, errs.Wrap(errs.IOFailure, "failed to open output file: "+variantPath, err)
		}

		variant.ScenarioPath = variantPath
		result.Variants = append(result.Variants, variant)
	}

	result.ManifestPath = filepath.Join(outputDir, "variants_manifest.json")
	manifestBytes, err := buildVariantManifest(result)
	if err != nil {
		return GenerationResult{}, errs.Wrap(errs.IOFailure, "failed to encode variants manifest", err)
	}
	if err := os.WriteFile(result.ManifestPath, append(manifestBytes, '\n'), 0o644); err != nil {
		return GenerationResult{}, errs.Wrap(errs.IOFailure, "failed to open output file: "+result.ManifestPath, err)
	}

	return result, nil
}
