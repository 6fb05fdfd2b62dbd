// Package vasp is the engine adapter: it reads and writes the handful of
// VASP file formats the staging pipeline touches. Structures move between
// generations as CONTCAR -> POSCAR, input parameters render to INCAR and
// KPOINTS, and completed runs are read back through their OUTCAR.
//
// The pipeline core never imports this package; it reaches it only through
// the collaborator interfaces in internal/measure.
package vasp
