// Package manifest reads and writes the system.json sidecar dropped into
// each derived job directory. The file carries whatever identifies the job
// to downstream crawlers: facet indices and ligand formula for interface
// measurements, the solvation parameter set for solvation measurements.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is fixed by the directory layout contract; crawlers look for
// exactly this name.
const FileName = "system.json"

// Manifest is a flat JSON object.
type Manifest map[string]any

// SetHKL records the facet indices under the "hkl" key.
func (m Manifest) SetHKL(miller [3]int) {
	m["hkl"] = []int{miller[0], miller[1], miller[2]}
}

// HKL reads the facet indices back regardless of whether the manifest was
// just built (int slice) or decoded from disk (float64 slice).
func (m Manifest) HKL() ([3]int, bool) {
	raw, ok := m["hkl"]
	if !ok {
		return [3]int{}, false
	}
	switch v := raw.(type) {
	case []int:
		if len(v) != 3 {
			return [3]int{}, false
		}
		return [3]int{v[0], v[1], v[2]}, true
	case []any:
		if len(v) != 3 {
			return [3]int{}, false
		}
		var out [3]int
		for i, e := range v {
			f, ok := e.(float64)
			if !ok {
				return [3]int{}, false
			}
			out[i] = int(f)
		}
		return out, true
	default:
		return [3]int{}, false
	}
}

// SetLigand records the ligand formula under the "ligand" key.
func (m Manifest) SetLigand(formula string) {
	m["ligand"] = formula
}

// Ligand reads the ligand formula back.
func (m Manifest) Ligand() (string, bool) {
	s, ok := m["ligand"].(string)
	return s, ok
}

// Write serializes the manifest into dir. The directory must already exist;
// creating job directories is the caller's business.
func Write(dir string, m Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest for %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Read loads the manifest from dir.
func Read(dir string) (Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return m, nil
}
