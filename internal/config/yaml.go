package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// The console accepts both bcast.yaml and bcast.json. Only one strict
// decoder exists (the JSON one with DisallowUnknownFields, so a typo like
// "tiemout" fails loudly); YAML input is converted to JSON bytes first and
// then run through the same gate.

// toStrictJSON returns data ready for the strict JSON decoder. Files whose
// extension is not .yaml/.yml are assumed to be JSON already and pass
// through untouched.
func toStrictJSON(path string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	j, err := json.Marshal(jsonSafe(v))
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, nil
}

// jsonSafe rewrites map[any]any keys (which the YAML decoder can produce)
// into strings so the value survives json.Marshal.
func jsonSafe(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = jsonSafe(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = jsonSafe(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = jsonSafe(x[i])
		}
		return x
	default:
		return in
	}
}
