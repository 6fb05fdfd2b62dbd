package measure

import (
	"context"

	"github.com/matstage/matstage/internal/identity"
	"github.com/matstage/matstage/internal/params"
)

// JobRef names one registered job and the directory it runs in. A
// handle's job slices pair job i with directory i by construction.
type JobRef struct {
	Name string
	Dir  string
}

// Handle is the calibration-job family a derivation step operates on.
// The driver owns the handle's lifecycle; a step only archives its jobs,
// transforms its parameter record, and registers new jobs on it. Handles
// know nothing about the steps that consume them.
type Handle interface {
	// Name identifies the family in logs and warnings.
	Name() string

	// Role is the explicit classification assigned by the driver at
	// construction. Steps never infer it from the handle's data.
	Role() identity.Role

	// System reports the physical identity used as a correlation key,
	// when the driver supplied one.
	System() (identity.System, bool)

	Params() params.Map
	SetParams(params.Map)

	// PriorJobs and CurrentJobs are index-paired with their directories.
	PriorJobs() []JobRef
	CurrentJobs() []JobRef

	// ArchiveJobs moves the current generation into the prior one and
	// resets the current generation to empty.
	ArchiveJobs()

	// LoadStructure parses the structure file at path and stages it as
	// the starting structure for the next registered job.
	LoadStructure(path string) error

	// AddJob registers a new job rooted at dir, creating the directory
	// and its engine input files.
	AddJob(ctx context.Context, dir string) error

	// Run executes all currently registered jobs, blocking until done.
	Run(ctx context.Context) error
}

// Record is one scalar result extracted from an output directory.
type Record struct {
	Energy    float64
	SourceDir string
}

// Collector parses a single output directory into zero or more result
// records. An absent or empty output is zero records, not an error.
type Collector interface {
	Collect(ctx context.Context, dir string) ([]Record, error)
}

// Measurer is implemented by the role-aware derivation steps that can
// combine collected energies into a derived table.
type Measurer interface {
	MakeMeasurements(ctx context.Context) (EnergyTable, error)
}
