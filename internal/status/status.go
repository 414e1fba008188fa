// Package status provides the generic key-value status dictionaries used
// to inspect and reconfigure kernel components and nodes at runtime.
// Every SetStatus implementation in the tree follows the same contract:
// validate the whole dictionary first, apply only if everything passed,
// so a failed set never leaves a component half-configured.
package status

import (
	"fmt"
	"math"
	"sort"
)

// Dict is a status dictionary. Values are plain Go scalars; numeric
// values may arrive as int, int64 or float64 depending on the source
// (YAML, CLI flags, tests), so access goes through the typed getters.
type Dict map[string]any

// ConfigError reports a rejected status key. It is the recoverable
// configuration error of the taxonomy: the target component is left
// exactly as it was.
type ConfigError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("status key %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("status key %q = %v: %s", e.Key, e.Value, e.Reason)
}

// Errf builds a ConfigError for key/value with a formatted reason.
func Errf(key string, value any, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// Protected builds the ConfigError used for keys that exist in the
// status view but may not be written through it.
func Protected(key string, value any) *ConfigError {
	return &ConfigError{Key: key, Value: value, Reason: "read-only"}
}

// Unknown builds the ConfigError used for keys the component does not have.
func Unknown(key string, value any) *ConfigError {
	return &ConfigError{Key: key, Value: value, Reason: "unknown key"}
}

// Float reads a float64-compatible value. The second return reports
// presence; the error reports a present value of the wrong type.
func Float(d Dict, key string) (float64, bool, error) {
	v, ok := d[key]
	if !ok {
		return 0, false, nil
	}
	switch x := v.(type) {
	case float64:
		return x, true, nil
	case float32:
		return float64(x), true, nil
	case int:
		return float64(x), true, nil
	case int64:
		return float64(x), true, nil
	default:
		return 0, true, Errf(key, v, "expected number, got %T", v)
	}
}

// Int reads an integer value. Float values are accepted when they are
// exact integers, since YAML and JSON decoding produce float64.
func Int(d Dict, key string) (int64, bool, error) {
	v, ok := d[key]
	if !ok {
		return 0, false, nil
	}
	switch x := v.(type) {
	case int:
		return int64(x), true, nil
	case int64:
		return x, true, nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, true, Errf(key, v, "expected integer, got fractional %v", x)
		}
		return int64(x), true, nil
	default:
		return 0, true, Errf(key, v, "expected integer, got %T", v)
	}
}

// Str reads a string value.
func Str(d Dict, key string) (string, bool, error) {
	v, ok := d[key]
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", true, Errf(key, v, "expected string, got %T", v)
	}
	return s, true, nil
}

// Bool reads a boolean value.
func Bool(d Dict, key string) (bool, bool, error) {
	v, ok := d[key]
	if !ok {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, true, Errf(key, v, "expected bool, got %T", v)
	}
	return b, true, nil
}

// Keys returns the dictionary keys in sorted order, for stable output.
func Keys(d Dict) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a copy of base with overlay applied on top.
// Neither input is mutated.
func Merge(base, overlay Dict) Dict {
	out := make(Dict, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
