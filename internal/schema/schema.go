package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// --- Plan Structures ---

// ParamsBlock represents the content of a free-form `params` block. Its
// attributes are arbitrary parameter assignments evaluated later by the
// loader.
type ParamsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Workspace represents the `workspace` block: settings shared by every
// calibration and measurement in the plan.
type Workspace struct {
	Root           string   `hcl:"root,optional"`
	JobCmd         []string `hcl:"job_cmd,optional"`
	OutputArtifact string   `hcl:"output_artifact,optional"`
	WaitTimeout    string   `hcl:"wait_timeout,optional"`
}

// Calibration represents a `calibration <role> <name>` block: one family of
// completed jobs for a single physical system.
type Calibration struct {
	Role        string       `hcl:"role,label"`
	Name        string       `hcl:"name,label"`
	Miller      []int        `hcl:"miller,optional"`
	Formula     string       `hcl:"formula,optional"`
	LigandCount int          `hcl:"ligand_count,optional"`
	JobDirs     []string     `hcl:"job_dirs"`
	Params      *ParamsBlock `hcl:"params,block"`
}

// Measurement represents a `measurement <kind> <name>` block: one derivation
// step over a set of named calibrations.
type Measurement struct {
	Kind         string       `hcl:"kind,label"`
	Name         string       `hcl:"name,label"`
	OutputDir    string       `hcl:"output_dir"`
	Calibrations []string     `hcl:"calibrations"`
	Preset       string       `hcl:"preset,optional"`
	Params       *ParamsBlock `hcl:"params,block"`
}

// MaterialsWeb represents the optional `materialsweb` block configuring the
// reference-data client.
type MaterialsWeb struct {
	APIKey    string   `hcl:"api_key"`
	Endpoint  string   `hcl:"endpoint,optional"`
	Materials []string `hcl:"materials,optional"`
}

// Presets represents the optional `presets` block pointing at a YAML file of
// named solvation parameter sets.
type Presets struct {
	Path string `hcl:"path"`
}

// PlanConfig represents the top-level structure of a measurement plan file.
type PlanConfig struct {
	Workspace    *Workspace     `hcl:"workspace,block"`
	Calibrations []*Calibration `hcl:"calibration,block"`
	Measurements []*Measurement `hcl:"measurement,block"`
	MaterialsWeb *MaterialsWeb  `hcl:"materialsweb,block"`
	Presets      *Presets       `hcl:"presets,block"`
	Body         hcl.Body       `hcl:",remain"`
}
