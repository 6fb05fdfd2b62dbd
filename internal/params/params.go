// Package params models the input-parameter record shared between a
// calibration family and the derivation steps that spawn its follow-up jobs.
//
// A Map is a value: every transformation returns a fresh copy and the
// underlying storage is never mutated in place. Derivation steps therefore
// compute the next generation's record as a pure function of the previous
// one, and no generation can leak parameter state into another.
package params

import (
	"fmt"
	"sort"
)

// Canonical input keys shared between derivation steps and the engine
// adapter. Lowercase canonical keys are engine-agnostic; the adapter
// translates them to engine tags at render time.
const (
	KeyRelaxIons       = "relax_ions"
	KeyImplicitSolvent = "implicit_solvent"
	KeyIonicSteps      = "ionic_steps"
)

// Map is an immutable string-keyed parameter record. The zero value is an
// empty, usable record.
type Map struct {
	kv map[string]any
}

// New returns an empty record.
func New() Map {
	return Map{}
}

// FromMap builds a record from a plain map, copying it so later changes to
// the argument do not show through.
func FromMap(src map[string]any) Map {
	if len(src) == 0 {
		return Map{}
	}
	kv := make(map[string]any, len(src))
	for k, v := range src {
		kv[k] = v
	}
	return Map{kv: kv}
}

// With returns a copy of the record with key set to value.
func (m Map) With(key string, value any) Map {
	kv := make(map[string]any, len(m.kv)+1)
	for k, v := range m.kv {
		kv[k] = v
	}
	kv[key] = value
	return Map{kv: kv}
}

// WithAll returns a copy of the record with every entry of src set,
// overwriting existing keys.
func (m Map) WithAll(src map[string]any) Map {
	kv := make(map[string]any, len(m.kv)+len(src))
	for k, v := range m.kv {
		kv[k] = v
	}
	for k, v := range src {
		kv[k] = v
	}
	return Map{kv: kv}
}

// Without returns a copy of the record with key removed.
func (m Map) Without(key string) Map {
	if _, ok := m.kv[key]; !ok {
		return m
	}
	kv := make(map[string]any, len(m.kv)-1)
	for k, v := range m.kv {
		if k != key {
			kv[k] = v
		}
	}
	return Map{kv: kv}
}

// Get reports the raw value stored under key.
func (m Map) Get(key string) (any, bool) {
	v, ok := m.kv[key]
	return v, ok
}

// Bool reports the value under key when it is a bool.
func (m Map) Bool(key string) (bool, bool) {
	v, ok := m.kv[key].(bool)
	return v, ok
}

// Float reports the value under key coerced to float64. Integer values
// coerce; anything else does not.
func (m Map) Float(key string) (float64, bool) {
	switch v := m.kv[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// String reports the value under key when it is a string.
func (m Map) String(key string) (string, bool) {
	v, ok := m.kv[key].(string)
	return v, ok
}

// Len reports the number of entries.
func (m Map) Len() int {
	return len(m.kv)
}

// Keys returns the keys in sorted order so rendered input files and
// manifests are deterministic.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m.kv))
	for k := range m.kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AsMap copies the record out as a plain map for serialization.
func (m Map) AsMap() map[string]any {
	out := make(map[string]any, len(m.kv))
	for k, v := range m.kv {
		out[k] = v
	}
	return out
}

// GoString formats the record for debug logs with stable key order.
func (m Map) GoString() string {
	s := "params.Map{"
	for i, k := range m.Keys() {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %v", k, m.kv[k])
	}
	return s + "}"
}
