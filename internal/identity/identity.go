// Package identity describes the physical system behind a calibration family
// and the correlation keys derived from it.
//
// Identity is pure bookkeeping here: the measurement pipeline never inspects
// a structure, it only needs stable keys to match energies computed in
// unrelated job directories (a slab run, a ligand run, the combined
// interface run) back to the same physical system.
package identity

import "fmt"

// Role tags a calibration family with the part it plays in a measurement.
// The driver resolves the role once, at construction; nothing downstream
// infers it from the shape of the data.
type Role int

const (
	RoleUnclassified Role = iota
	RoleSlab
	RoleLigand
	RoleInterface
)

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case RoleSlab:
		return "slab"
	case RoleLigand:
		return "ligand"
	case RoleInterface:
		return "interface"
	default:
		return "unclassified"
	}
}

// ParseRole maps a plan label to a Role. Unknown labels are an error rather
// than a silent Unclassified so a typo cannot quietly drop a family from
// measurement.
func ParseRole(label string) (Role, error) {
	switch label {
	case "slab":
		return RoleSlab, nil
	case "ligand":
		return RoleLigand, nil
	case "interface":
		return RoleInterface, nil
	case "unclassified":
		return RoleUnclassified, nil
	default:
		return RoleUnclassified, fmt.Errorf("unknown calibration role %q (want slab, ligand, interface or unclassified)", label)
	}
}

// System is the tagged identity of a physical system variant. Implementations
// are read-only values; Key returns the correlation key used to file energies
// computed for this system.
type System interface {
	Key() string
}

// Slab identifies a bare surface by its crystallographic facet.
type Slab struct {
	Miller [3]int
}

// Key returns the facet key, e.g. "[1,0,0]".
func (s Slab) Key() string {
	return MillerKey(s.Miller)
}

// Ligand identifies an adsorbate molecule by its reduced formula.
type Ligand struct {
	Formula string
}

// Key returns the ligand formula.
func (l Ligand) Key() string {
	return l.Formula
}

// Interface identifies a ligand-decorated surface: the facet, the adsorbed
// species and how many of it the simulation cell carries.
type Interface struct {
	Miller        [3]int
	LigandFormula string
	LigandCount   int
}

// SlabKey returns the facet key of the underlying slab.
func (i Interface) SlabKey() string {
	return MillerKey(i.Miller)
}

// LigandKey returns the formula key of the adsorbed ligand.
func (i Interface) LigandKey() string {
	return i.LigandFormula
}

// Key concatenates the slab and ligand keys with no separator, matching the
// manifest convention consumed by the database crawler.
func (i Interface) Key() string {
	return i.SlabKey() + i.LigandKey()
}

// MillerKey renders a miller index as "[h,k,l]".
func MillerKey(m [3]int) string {
	return fmt.Sprintf("[%d,%d,%d]", m[0], m[1], m[2])
}
