package config

import (
	"time"

	"github.com/matstage/matstage/internal/identity"
	"github.com/matstage/matstage/internal/params"
)

// Plan is the unified, format-agnostic representation of one measurement
// campaign: the workspace, the calibration families and the measurements
// derived from them.
type Plan struct {
	Workspace    *Workspace
	Calibrations []*Calibration
	Measurements []*Measurement
	MaterialsWeb *MaterialsWeb
	Presets      *Presets
}

// Workspace carries settings shared by every calibration in the plan.
type Workspace struct {
	Root           string
	JobCmd         []string
	OutputArtifact string
	WaitTimeout    time.Duration
}

// Calibration is the format-agnostic representation of a `calibration`
// block. System is nil when the block declares no physical identity.
type Calibration struct {
	Role    identity.Role
	Name    string
	System  identity.System
	JobDirs []string
	Params  params.Map
}

// Measurement is the format-agnostic representation of a `measurement`
// block.
type Measurement struct {
	Kind         string
	Name         string
	OutputDir    string
	Calibrations []string
	Preset       string
	Params       params.Map
}

// MaterialsWeb configures the optional reference-data fetch.
type MaterialsWeb struct {
	APIKey    string
	Endpoint  string
	Materials []string
}

// Presets points at a YAML file of named solvation parameter sets.
type Presets struct {
	Path string
}
