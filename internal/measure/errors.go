package measure

import (
	"fmt"

	"github.com/matstage/matstage/internal/identity"
)

// MissingArtifactError reports a required predecessor artifact that does
// not exist or could not be read. Derivation fails before the successor
// job is registered, so the one-to-one invariant is never silently
// violated.
type MissingArtifactError struct {
	Artifact string
	Dir      string
	Err      error
}

func (e *MissingArtifactError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("artifact %s unavailable in %s: %v", e.Artifact, e.Dir, e.Err)
	}
	return fmt.Sprintf("artifact %s unavailable in %s", e.Artifact, e.Dir)
}

func (e *MissingArtifactError) Unwrap() error { return e.Err }

// UnsupportedMultiJobError reports a solvation derivation requested for a
// handle with more than one predecessor job. Carrying one restart
// wavefunction forward to many successors is not defined, so the step
// refuses before any side effect.
type UnsupportedMultiJobError struct {
	Handle string
	Jobs   int
}

func (e *UnsupportedMultiJobError) Error() string {
	return fmt.Sprintf("solvation derivation needs exactly one prior job, calibration %q has %d", e.Handle, e.Jobs)
}

// MissingCorrelationError reports a binding-energy combination that
// references a role-keyed energy nobody computed. Raised at measurement
// time, before any subtraction happens.
type MissingCorrelationError struct {
	InterfaceKey string
	Role         identity.Role
	Key          string
}

func (e *MissingCorrelationError) Error() string {
	return fmt.Sprintf("interface %q: no %s energy recorded under key %q", e.InterfaceKey, e.Role, e.Key)
}

// Warning records a calibration that lacked the system identity a
// derivation step wanted to persist. Setup collects and returns these so
// the leniency stays visible to the caller instead of living only in a
// log line.
type Warning struct {
	Handle string
	Field  string
}

func (w Warning) String() string {
	return fmt.Sprintf("calibration %q has no system identity for %s", w.Handle, w.Field)
}
