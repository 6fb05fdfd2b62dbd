// Package presets loads named solvation parameter sets from YAML files,
// so measurement plans can say `preset = "water"` instead of spelling
// out dielectric constants inline.
package presets

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/matstage/matstage/internal/params"
)

// Library holds named parameter sets.
type Library struct {
	sets map[string]map[string]any
}

// Load reads a preset library from a YAML file of the form:
//
//	water:
//	  EB_K: 80
//	  TAU: 0
//	acetone:
//	  EB_K: 20.7
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading presets: %w", err)
	}
	lib, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lib, nil
}

// Parse decodes a preset library from YAML bytes.
func Parse(data []byte) (*Library, error) {
	var sets map[string]map[string]any
	if err := yaml.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("parsing presets: %w", err)
	}
	for _, set := range sets {
		for k, v := range set {
			set[k] = normalize(v)
		}
	}
	return &Library{sets: sets}, nil
}

// Get returns the named parameter set.
func (l *Library) Get(name string) (params.Map, error) {
	set, ok := l.sets[name]
	if !ok {
		return params.Map{}, fmt.Errorf("unknown preset %q (have: %s)", name, strings.Join(l.Names(), ", "))
	}
	return params.FromMap(set), nil
}

// Names lists the available presets in sorted order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.sets))
	for name := range l.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalize widens YAML numbers to float64 so parameter values carry one
// numeric type regardless of how they were spelled in the file.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
