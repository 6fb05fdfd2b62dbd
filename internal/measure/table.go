package measure

// EnergyTable holds collected energies keyed by physical identity, plus
// the combined binding energies per interface key. A table is built
// fresh on every MakeMeasurements call and never cached.
type EnergyTable struct {
	Slabs      map[string][]float64 `json:"slabs,omitempty"`
	Ligands    map[string][]float64 `json:"ligands,omitempty"`
	Interfaces map[string][]float64 `json:"interfaces,omitempty"`
	Binding    map[string]float64   `json:"binding,omitempty"`
}

// NewEnergyTable returns an empty table with all maps initialized.
func NewEnergyTable() EnergyTable {
	return EnergyTable{
		Slabs:      map[string][]float64{},
		Ligands:    map[string][]float64{},
		Interfaces: map[string][]float64{},
		Binding:    map[string]float64{},
	}
}

// IsEmpty reports whether the table holds no entries at all.
func (t EnergyTable) IsEmpty() bool {
	return len(t.Slabs) == 0 && len(t.Ligands) == 0 && len(t.Interfaces) == 0 && len(t.Binding) == 0
}
