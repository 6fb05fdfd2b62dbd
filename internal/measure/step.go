package measure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matstage/matstage/internal/ctxlog"
	"github.com/matstage/matstage/internal/params"
)

// Fixed names of the predecessor artifacts a derivation consumes. The
// layout is part of the engine contract and is not configurable.
const (
	StructureArtifact = "CONTCAR"
	RestartArtifact   = "WAVECAR"
)

// Directory suffixes of the derived generations.
const (
	StaticSuffix    = "STATIC"
	SolvationSuffix = "SOL"
)

// Step derives one generation of static follow-up jobs from a completed
// generation of calibrations. It owns its handle slice exclusively for
// the duration of the generation and keeps no state across generations.
type Step struct {
	handles   []Handle
	baseDir   string
	collector Collector
}

// NewStep builds a derivation step over the given handles, rooting all
// new job directories under baseDir. Construction archives each handle's
// jobs: the completed generation becomes the prior one and the current
// generation starts empty.
func NewStep(handles []Handle, baseDir string, collector Collector) *Step {
	for _, h := range handles {
		h.ArchiveJobs()
	}
	return &Step{handles: handles, baseDir: baseDir, collector: collector}
}

// Handles returns the handle slice the step operates on.
func (s *Step) Handles() []Handle { return s.handles }

// Setup stages one static job per prior job of every handle: relaxation
// is switched off and each predecessor's final structure becomes the new
// job's starting structure. Callers must not invoke Setup twice for one
// generation; directory creation is not idempotency-guarded.
func (s *Step) Setup(ctx context.Context) ([]Warning, error) {
	for _, h := range s.handles {
		h.SetParams(h.Params().With(params.KeyRelaxIons, false))
		if err := s.derive(ctx, h, StaticSuffix, nil); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// derive stages one follow-up job per prior job of h, pairing prior job
// i with prior directory i. All predecessor structure artifacts are
// verified before the first registration so a missing one never leaves
// the handle with a partially derived generation. beforeAdd, when set,
// runs after the new directory name is fixed and before the job is
// registered.
func (s *Step) derive(ctx context.Context, h Handle, suffix string, beforeAdd func(job JobRef, dir string) error) error {
	log := ctxlog.FromContext(ctx)
	jobs := h.PriorJobs()
	for _, job := range jobs {
		artifact := filepath.Join(job.Dir, StructureArtifact)
		if _, err := os.Stat(artifact); err != nil {
			return &MissingArtifactError{Artifact: StructureArtifact, Dir: job.Dir, Err: err}
		}
	}
	for _, job := range jobs {
		dir := filepath.Join(s.baseDir, Sanitize(job.Name), suffix)
		artifact := filepath.Join(job.Dir, StructureArtifact)
		log.Info("Staging follow-up job", "calibration", h.Name(), "dir", dir, "structure", artifact)
		if err := h.LoadStructure(artifact); err != nil {
			return &MissingArtifactError{Artifact: StructureArtifact, Dir: job.Dir, Err: err}
		}
		if beforeAdd != nil {
			if err := beforeAdd(job, dir); err != nil {
				return err
			}
		}
		if err := h.AddJob(ctx, dir); err != nil {
			return fmt.Errorf("registering job in %s: %w", dir, err)
		}
	}
	return nil
}

// Run executes every handle's registered jobs in order. Execution is a
// blocking delegation to the collaborator; the step manages no
// subprocesses, retries, or scheduling of its own.
func (s *Step) Run(ctx context.Context) error {
	for _, h := range s.handles {
		if err := h.Run(ctx); err != nil {
			return fmt.Errorf("running calibration %s: %w", h.Name(), err)
		}
	}
	return nil
}

// Energies collects the scalar results of h's current generation, one
// ordered list across all of its job directories. A directory yielding
// no records is logged and skipped; collector failures propagate.
func (s *Step) Energies(ctx context.Context, h Handle) ([]float64, error) {
	log := ctxlog.FromContext(ctx)
	var energies []float64
	for _, job := range h.CurrentJobs() {
		records, err := s.collector.Collect(ctx, job.Dir)
		if err != nil {
			return nil, fmt.Errorf("collecting results from %s: %w", job.Dir, err)
		}
		if len(records) == 0 {
			log.Warn("Job directory yielded no results", "calibration", h.Name(), "dir", job.Dir)
			continue
		}
		for _, rec := range records {
			log.Debug("Collected energy", "dir", rec.SourceDir, "energy", rec.Energy)
			energies = append(energies, rec.Energy)
		}
	}
	return energies, nil
}

// Sanitize turns a prior job's identity into a single path component:
// path separators and literal dots become underscores.
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.ReplaceAll(name, "/", "_")
	return strings.ReplaceAll(name, ".", "_")
}
