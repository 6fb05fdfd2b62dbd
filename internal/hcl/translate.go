package hcl

import (
	"fmt"
	"time"

	"github.com/matstage/matstage/internal/config"
	"github.com/matstage/matstage/internal/identity"
	"github.com/matstage/matstage/internal/params"
	"github.com/matstage/matstage/internal/schema"
)

// translateWorkspace converts the workspace schema into the agnostic model.
func translateWorkspace(ws *schema.Workspace) (*config.Workspace, error) {
	out := &config.Workspace{
		Root:           ws.Root,
		JobCmd:         ws.JobCmd,
		OutputArtifact: ws.OutputArtifact,
	}
	if ws.WaitTimeout != "" {
		d, err := time.ParseDuration(ws.WaitTimeout)
		if err != nil {
			return nil, fmt.Errorf("workspace wait_timeout: %w", err)
		}
		out.WaitTimeout = d
	}
	return out, nil
}

// translateMaterialsWeb converts the materialsweb schema into the agnostic model.
func translateMaterialsWeb(mw *schema.MaterialsWeb) *config.MaterialsWeb {
	return &config.MaterialsWeb{
		APIKey:    mw.APIKey,
		Endpoint:  mw.Endpoint,
		Materials: mw.Materials,
	}
}

// translateCalibration converts a calibration block into the agnostic model,
// resolving its role label and its physical identity.
func translateCalibration(cal *schema.Calibration) (*config.Calibration, error) {
	role, err := identity.ParseRole(cal.Role)
	if err != nil {
		return nil, fmt.Errorf("calibration %q: %w", cal.Name, err)
	}

	sys, err := systemFor(role, cal)
	if err != nil {
		return nil, err
	}

	p, err := paramsFromBody(cal.Params)
	if err != nil {
		return nil, fmt.Errorf("calibration %q: %w", cal.Name, err)
	}

	return &config.Calibration{
		Role:    role,
		Name:    cal.Name,
		System:  sys,
		JobDirs: cal.JobDirs,
		Params:  p,
	}, nil
}

// translateMeasurement converts a measurement block into the agnostic model.
func translateMeasurement(m *schema.Measurement) (*config.Measurement, error) {
	p, err := paramsFromBody(m.Params)
	if err != nil {
		return nil, fmt.Errorf("measurement %q: %w", m.Name, err)
	}
	return &config.Measurement{
		Kind:         m.Kind,
		Name:         m.Name,
		OutputDir:    m.OutputDir,
		Calibrations: m.Calibrations,
		Preset:       m.Preset,
		Params:       p,
	}, nil
}

// systemFor builds the typed identity for a calibration from whichever
// identity attributes its role uses. A family declaring none of them gets a
// nil system; measurement-time tagging then records a warning instead of
// failing. Completeness of interface identities is checked by the model
// validation, not here.
func systemFor(role identity.Role, cal *schema.Calibration) (identity.System, error) {
	miller, millerSet, err := millerFrom(cal)
	if err != nil {
		return nil, err
	}

	switch role {
	case identity.RoleSlab:
		if !millerSet {
			return nil, nil
		}
		return identity.Slab{Miller: miller}, nil
	case identity.RoleLigand:
		if cal.Formula == "" {
			return nil, nil
		}
		return identity.Ligand{Formula: cal.Formula}, nil
	case identity.RoleInterface:
		if !millerSet && cal.Formula == "" && cal.LigandCount == 0 {
			return nil, nil
		}
		return identity.Interface{
			Miller:        miller,
			LigandFormula: cal.Formula,
			LigandCount:   cal.LigandCount,
		}, nil
	default:
		return nil, nil
	}
}

// millerFrom reads the optional miller attribute into a fixed-size index.
func millerFrom(cal *schema.Calibration) ([3]int, bool, error) {
	if cal.Miller == nil {
		return [3]int{}, false, nil
	}
	if len(cal.Miller) != 3 {
		return [3]int{}, false, fmt.Errorf("calibration %q: miller index must have exactly three components, got %d", cal.Name, len(cal.Miller))
	}
	return [3]int{cal.Miller[0], cal.Miller[1], cal.Miller[2]}, true, nil
}

// paramsFromBody evaluates every attribute of a params block into a native
// Go value. Expressions are evaluated without an evaluation context, so only
// literals are meaningful in a plan.
func paramsFromBody(block *schema.ParamsBlock) (params.Map, error) {
	if block == nil || block.Body == nil {
		return params.New(), nil
	}
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return params.Map{}, fmt.Errorf("params block: %w", diags)
	}
	values := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return params.Map{}, fmt.Errorf("params attribute %q: %w", name, diags)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return params.Map{}, fmt.Errorf("params attribute %q: %w", name, err)
		}
		values[name] = native
	}
	return params.FromMap(values), nil
}
