// Package measure is the derivation and measurement core of the
// application. It turns a completed generation of calibration jobs into
// the next generation of follow-up jobs (static, solvation, interface)
// and, once those run, collects their scalar energies and combines them
// into tables keyed by physical identity.
//
// The package consumes collaborators through interfaces only: Handle is
// the calibration-job family, Collector is the directory-to-records
// output parser. It never touches the simulation engine directly.
package measure
