package real

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/labops-dev/labops/pkg/errs"
)

// ParamKeyMap is the C4 generic-key-to-node-name table. Loaded from a flat
// JSON object of string->string; both sides non-empty, duplicate keys
// rejected, empty mapping rejected (spec.md §4.3, §6).
type ParamKeyMap struct {
	genericToNode map[string]string
}

// Has reports whether generic_key has a mapping.
func (m ParamKeyMap) Has(genericKey string) bool {
	_, ok := m.genericToNode[genericKey]
	return ok
}

// Resolve looks up the SDK node name for a generic key.
func (m ParamKeyMap) Resolve(genericKey string) (string, bool) {
	name, ok := m.genericToNode[genericKey]
	return name, ok
}

// ListGenericKeys returns every mapped generic key, sorted for determinism.
func (m ParamKeyMap) ListGenericKeys() []string {
	keys := make([]string, 0, len(m.genericToNode))
	for k := range m.genericToNode {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadParamKeyMapFromText parses a flat JSON object of non-empty
// string->string pairs. encoding/json already rejects malformed JSON and
// duplicate-key detection is done by decoding into an ordered pass first,
// since Go's map decode silently keeps the last value for a duplicate key.
func LoadParamKeyMapFromText(jsonText []byte) (ParamKeyMap, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(jsonText, &raw); err != nil {
		return ParamKeyMap{}, errs.Wrap(errs.InputInvalid, "param key map is not a valid JSON object", err)
	}

	if err := checkNoDuplicateTopLevelKeys(jsonText); err != nil {
		return ParamKeyMap{}, err
	}

	m := ParamKeyMap{genericToNode: make(map[string]string, len(raw))}
	for key, rawValue := range raw {
		if key == "" {
			return ParamKeyMap{}, errs.New(errs.InputInvalid, "mapping key must not be empty")
		}
		var value string
		if err := json.Unmarshal(rawValue, &value); err != nil {
			return ParamKeyMap{}, errs.Wrap(errs.InputInvalid, fmt.Sprintf("mapping value for key '%s' must be a string", key), err)
		}
		if value == "" {
			return ParamKeyMap{}, errs.New(errs.InputInvalid, fmt.Sprintf("mapping value for key '%s' must not be empty", key))
		}
		m.genericToNode[key] = value
	}

	if len(m.genericToNode) == 0 {
		return ParamKeyMap{}, errs.New(errs.InputInvalid, "param key map must include at least one key mapping")
	}
	return m, nil
}

// checkNoDuplicateTopLevelKeys walks the raw token stream looking for a
// repeated object key at nesting depth 1, since encoding/json's map decode
// silently keeps the last value for a duplicate key (spec.md §6 requires
// rejecting it as a parse error).
func checkNoDuplicateTopLevelKeys(jsonText []byte) error {
	dec := json.NewDecoder(bytes.NewReader(jsonText))
	depth := 0
	isKeyPosition := false
	seen := map[string]bool{}
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{':
				depth++
				if depth == 1 {
					isKeyPosition = true
				}
			case '[':
				depth++
			case '}', ']':
				depth--
			}
			continue
		}

		if depth != 1 {
			continue
		}
		if isKeyPosition {
			if key, ok := tok.(string); ok {
				if seen[key] {
					return errs.New(errs.InputInvalid, fmt.Sprintf("duplicate mapping key: %s", key))
				}
				seen[key] = true
			}
			isKeyPosition = false
		} else {
			isKeyPosition = true
		}
	}
	return nil
}

// LoadParamKeyMapFromFile reads and parses a param key map file.
func LoadParamKeyMapFromFile(path string) (ParamKeyMap, error) {
	if path == "" {
		return ParamKeyMap{}, errs.New(errs.InputInvalid, "param key map path cannot be empty")
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return ParamKeyMap{}, errs.Wrap(errs.IOFailure, fmt.Sprintf("failed to open param key map file: %s", path), err)
	}
	if len(text) == 0 {
		return ParamKeyMap{}, errs.New(errs.InputInvalid, fmt.Sprintf("param key map file is empty: %s", path))
	}
	m, err := LoadParamKeyMapFromText(text)
	if err != nil {
		return ParamKeyMap{}, errs.Wrap(errs.InputInvalid, fmt.Sprintf("failed to parse param key map '%s'", path), err)
	}
	return m, nil
}

// defaultParamKeyMapRelative is the repo-relative location searched for by
// ResolveDefaultParamKeyMapPath (spec.md §6).
const defaultParamKeyMapRelative = "src/backends/real_sdk/maps/param_key_map.json"

// ResolveDefaultParamKeyMapPath honors LABOPS_PARAM_KEY_MAP if set, else
// walks upward from the working directory looking for the default relative
// path, falling back to that relative path unresolved.
func ResolveDefaultParamKeyMapPath() string {
	if env := os.Getenv("LABOPS_PARAM_KEY_MAP"); env != "" {
		return env
	}

	cursor, err := os.Getwd()
	if err != nil {
		return defaultParamKeyMapRelative
	}

	for depth := 0; depth < 12; depth++ {
		candidate := filepath.Join(cursor, defaultParamKeyMapRelative)
		if info, statErr := os.Stat(candidate); statErr == nil && info.Mode().IsRegular() {
			return candidate
		}
		parent := filepath.Dir(cursor)
		if parent == cursor {
			break
		}
		cursor = parent
	}

	return defaultParamKeyMapRelative
}
