package measure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matstage/matstage/internal/ctxlog"
	"github.com/matstage/matstage/internal/manifest"
	"github.com/matstage/matstage/internal/params"
)

// DefaultSolvationParams returns the solvation parameter set used when a
// step is constructed without one: water at room temperature (relative
// permittivity 80, zero cavitation surface tension).
func DefaultSolvationParams() params.Map {
	return params.FromMap(map[string]any{"EB_K": 80.0, "TAU": 0.0})
}

// SolvationStep derives solvated continuation jobs. Each predecessor
// restarts from its converged wavefunction, so the step carries the
// WAVECAR forward and injects the solvation parameter set, persisting
// that set as a manifest next to the job for downstream crawlers.
type SolvationStep struct {
	*Step
	solParams params.Map
}

// NewSolvationStep builds a solvation derivation over the given handles.
// An empty sol parameter map selects DefaultSolvationParams.
func NewSolvationStep(handles []Handle, baseDir string, collector Collector, sol params.Map) *SolvationStep {
	if sol.Len() == 0 {
		sol = DefaultSolvationParams()
	}
	return &SolvationStep{Step: NewStep(handles, baseDir, collector), solParams: sol}
}

// Setup stages one solvated job per handle. Every handle must carry
// exactly one prior job: restarting many successors from one wavefunction
// is not defined, and the precondition is checked across all handles
// before any directory or file is touched.
func (s *SolvationStep) Setup(ctx context.Context) ([]Warning, error) {
	log := ctxlog.FromContext(ctx)
	for _, h := range s.handles {
		if n := len(h.PriorJobs()); n != 1 {
			return nil, &UnsupportedMultiJobError{Handle: h.Name(), Jobs: n}
		}
	}
	for _, h := range s.handles {
		h.SetParams(h.Params().
			With(params.KeyImplicitSolvent, true).
			WithAll(s.solParams.AsMap()))

		job := h.PriorJobs()[0]
		restart := filepath.Join(job.Dir, RestartArtifact)
		if _, err := os.Stat(restart); err != nil {
			return nil, &MissingArtifactError{Artifact: RestartArtifact, Dir: job.Dir, Err: err}
		}

		dir := filepath.Join(s.baseDir, Sanitize(job.Name), SolvationSuffix)
		log.Info("Staging solvated job", "calibration", h.Name(), "dir", dir, "restart", restart)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating job directory %s: %w", dir, err)
		}
		if err := manifest.Write(dir, manifest.Manifest(s.solParams.AsMap())); err != nil {
			return nil, fmt.Errorf("writing solvation manifest in %s: %w", dir, err)
		}
		if err := copyFile(restart, filepath.Join(dir, RestartArtifact)); err != nil {
			return nil, &MissingArtifactError{Artifact: RestartArtifact, Dir: job.Dir, Err: err}
		}
		if err := h.AddJob(ctx, dir); err != nil {
			return nil, fmt.Errorf("registering job in %s: %w", dir, err)
		}
	}
	return nil, nil
}

// MakeMeasurements returns an empty table. A combination rule for
// solvation energies is not defined, so nothing is aggregated here.
func (s *SolvationStep) MakeMeasurements(ctx context.Context) (EnergyTable, error) {
	return NewEnergyTable(), nil
}

// copyFile copies src to dst whole, in memory. Restart artifacts are
// assumed small enough for this; there is no partial-copy recovery.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
