package config

import (
	"fmt"

	"github.com/matstage/matstage/internal/identity"
)

// Validate checks the cross-block consistency of a loaded plan: unique
// names, resolvable references and complete identity on interface
// calibrations. Loaders call it after translation; it is exported so plans
// built directly in code get the same checks.
func (p *Plan) Validate() error {
	calNames := make(map[string]struct{}, len(p.Calibrations))
	for _, cal := range p.Calibrations {
		if _, dup := calNames[cal.Name]; dup {
			return fmt.Errorf("duplicate calibration name %q", cal.Name)
		}
		calNames[cal.Name] = struct{}{}

		if cal.Role == identity.RoleInterface {
			if err := validateInterfaceIdentity(cal); err != nil {
				return err
			}
		}
	}

	measNames := make(map[string]struct{}, len(p.Measurements))
	for _, m := range p.Measurements {
		if _, dup := measNames[m.Name]; dup {
			return fmt.Errorf("duplicate measurement name %q", m.Name)
		}
		measNames[m.Name] = struct{}{}

		if len(m.Calibrations) == 0 {
			return fmt.Errorf("measurement %q references no calibrations", m.Name)
		}
		for _, ref := range m.Calibrations {
			if _, ok := calNames[ref]; !ok {
				return fmt.Errorf("measurement %q references unknown calibration %q", m.Name, ref)
			}
		}
		if m.Preset != "" && p.Presets == nil {
			return fmt.Errorf("measurement %q references preset %q but the plan has no presets block", m.Name, m.Preset)
		}
	}

	return nil
}

// validateInterfaceIdentity requires a complete physical identity on
// interface calibrations. Binding energies cannot be correlated without the
// facet, the ligand formula and the ligand count, so unlike slab and ligand
// families an interface family may not omit them.
func validateInterfaceIdentity(cal *Calibration) error {
	sys, ok := cal.System.(identity.Interface)
	if !ok {
		return fmt.Errorf("calibration %q has role interface but declares no miller, formula or ligand_count", cal.Name)
	}
	if sys.Miller == [3]int{} {
		return fmt.Errorf("calibration %q: interface role requires a non-zero miller index", cal.Name)
	}
	if sys.LigandFormula == "" {
		return fmt.Errorf("calibration %q: interface role requires a ligand formula", cal.Name)
	}
	if sys.LigandCount < 1 {
		return fmt.Errorf("calibration %q: interface role requires ligand_count >= 1", cal.Name)
	}
	return nil
}
