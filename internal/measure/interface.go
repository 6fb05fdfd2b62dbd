package measure

import (
	"context"
	"fmt"
	"os"

	"github.com/matstage/matstage/internal/ctxlog"
	"github.com/matstage/matstage/internal/identity"
	"github.com/matstage/matstage/internal/manifest"
	"github.com/matstage/matstage/internal/params"
)

// InterfaceStep derives static follow-up jobs like the base step and
// additionally persists each calibration's physical identity next to the
// job, so that completed energies can be correlated into slab, ligand,
// and interface tables and combined into binding energies.
type InterfaceStep struct {
	*Step
	slabs      []Handle
	ligands    []Handle
	interfaces []Handle
}

// NewInterfaceStep builds an interface derivation over the given
// handles, partitioning them into role buckets by their explicit Role
// tag. Unclassified handles join no bucket and are excluded from
// measurement, but Setup still processes them.
func NewInterfaceStep(handles []Handle, baseDir string, collector Collector) *InterfaceStep {
	st := &InterfaceStep{Step: NewStep(handles, baseDir, collector)}
	for _, h := range handles {
		switch h.Role() {
		case identity.RoleSlab:
			st.slabs = append(st.slabs, h)
		case identity.RoleLigand:
			st.ligands = append(st.ligands, h)
		case identity.RoleInterface:
			st.interfaces = append(st.interfaces, h)
		}
	}
	return st
}

// Setup stages one static job per prior job of every handle and writes
// the identity manifest (facet indices, ligand formula) into each new
// job directory. A handle missing the identity its role calls for is
// still staged; the gap is logged and reported back as a Warning.
func (s *InterfaceStep) Setup(ctx context.Context) ([]Warning, error) {
	log := ctxlog.FromContext(ctx)
	var warnings []Warning
	for _, h := range s.handles {
		h.SetParams(h.Params().With(params.KeyRelaxIons, false))

		ident := manifest.Manifest{}
		role := h.Role()
		sys, _ := h.System()
		if role == identity.RoleSlab || role == identity.RoleInterface {
			if m, ok := millerIndex(sys); ok {
				ident.SetHKL(m)
			} else {
				warnings = append(warnings, Warning{Handle: h.Name(), Field: "hkl"})
				log.Error("Calibration has no system identity", "calibration", h.Name(), "field", "hkl")
			}
		}
		if role == identity.RoleInterface {
			if f, ok := ligandFormula(sys); ok {
				ident.SetLigand(f)
			} else {
				warnings = append(warnings, Warning{Handle: h.Name(), Field: "ligand"})
				log.Error("Calibration has no system identity", "calibration", h.Name(), "field", "ligand")
			}
		}

		err := s.derive(ctx, h, StaticSuffix, func(job JobRef, dir string) error {
			if len(ident) == 0 {
				return nil
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating job directory %s: %w", dir, err)
			}
			if err := manifest.Write(dir, ident); err != nil {
				return fmt.Errorf("writing identity manifest in %s: %w", dir, err)
			}
			return nil
		})
		if err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}

// MakeMeasurements collects per-role energies keyed by physical identity
// and combines them into binding energies, one per interface key:
//
//	E_binding = E_interface - E_slab - ligandCount * E_ligand
//
// where each term is the final energy of the corresponding series. The
// slab and ligand terms must exist before the subtraction; a never
// computed term fails the whole measurement.
func (s *InterfaceStep) MakeMeasurements(ctx context.Context) (EnergyTable, error) {
	log := ctxlog.FromContext(ctx)
	table := NewEnergyTable()

	for _, h := range s.slabs {
		sys, _ := h.System()
		m, ok := millerIndex(sys)
		if !ok {
			log.Error("Slab calibration has no identity, excluded from measurement", "calibration", h.Name())
			continue
		}
		energies, err := s.Energies(ctx, h)
		if err != nil {
			return EnergyTable{}, err
		}
		table.Slabs[identity.MillerKey(m)] = energies
	}

	for _, h := range s.ligands {
		sys, _ := h.System()
		f, ok := ligandFormula(sys)
		if !ok {
			log.Error("Ligand calibration has no identity, excluded from measurement", "calibration", h.Name())
			continue
		}
		energies, err := s.Energies(ctx, h)
		if err != nil {
			return EnergyTable{}, err
		}
		table.Ligands[f] = energies
	}

	for _, h := range s.interfaces {
		sys, _ := h.System()
		iface, ok := sys.(identity.Interface)
		if !ok {
			log.Error("Interface calibration has no identity, excluded from measurement", "calibration", h.Name())
			continue
		}
		slabKey := identity.MillerKey(iface.Miller)
		ligandKey := iface.LigandFormula
		key := slabKey + ligandKey

		energies, err := s.Energies(ctx, h)
		if err != nil {
			return EnergyTable{}, err
		}
		table.Interfaces[key] = energies

		slabE, ok := lastEnergy(table.Slabs[slabKey])
		if !ok {
			return EnergyTable{}, &MissingCorrelationError{InterfaceKey: key, Role: identity.RoleSlab, Key: slabKey}
		}
		ligandE, ok := lastEnergy(table.Ligands[ligandKey])
		if !ok {
			return EnergyTable{}, &MissingCorrelationError{InterfaceKey: key, Role: identity.RoleLigand, Key: ligandKey}
		}
		own, ok := lastEnergy(energies)
		if !ok {
			return EnergyTable{}, &MissingCorrelationError{InterfaceKey: key, Role: identity.RoleInterface, Key: key}
		}
		binding := own - slabE - float64(iface.LigandCount)*ligandE
		table.Binding[key] = binding
		log.Info("Binding energy computed", "interface", key, "energy", binding)
	}
	return table, nil
}

// lastEnergy picks the production result of an energy series, the final
// job's value. An empty series means the quantity was never computed.
func lastEnergy(energies []float64) (float64, bool) {
	if len(energies) == 0 {
		return 0, false
	}
	return energies[len(energies)-1], true
}

func millerIndex(sys identity.System) ([3]int, bool) {
	switch t := sys.(type) {
	case identity.Slab:
		return t.Miller, true
	case identity.Interface:
		return t.Miller, true
	}
	return [3]int{}, false
}

func ligandFormula(sys identity.System) (string, bool) {
	switch t := sys.(type) {
	case identity.Ligand:
		return t.Formula, true
	case identity.Interface:
		return t.LigandFormula, true
	}
	return "", false
}
