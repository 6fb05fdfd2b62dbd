// Package calib is the calibration-job collaborator: the concrete handle
// a derivation step operates on. It keeps the family's parameter record
// and job bookkeeping, writes engine input files for newly registered
// jobs, and executes registered jobs with the configured command.
package calib

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matstage/matstage/internal/ctxlog"
	"github.com/matstage/matstage/internal/identity"
	"github.com/matstage/matstage/internal/measure"
	"github.com/matstage/matstage/internal/params"
	"github.com/matstage/matstage/internal/vasp"
)

// DefaultWaitTimeout bounds the wait for an output artifact after an
// asynchronous job submission. Simulation jobs routinely run for hours.
const DefaultWaitTimeout = 24 * time.Hour

// Config describes one calibration family. Jobs lists the completed
// generation the next derivation starts from.
type Config struct {
	Name   string
	Role   identity.Role
	System identity.System
	Params params.Map
	Jobs   []measure.JobRef

	// JobCmd is the command executed in each registered job directory,
	// e.g. a direct engine invocation or a queue submission script.
	JobCmd []string

	// WaitFor, when set, names the output artifact Run waits for after
	// JobCmd returns. Used when JobCmd only enqueues the job.
	WaitFor string

	// WaitTimeout bounds the WaitFor wait. Zero selects
	// DefaultWaitTimeout.
	WaitTimeout time.Duration
}

// Calibration implements measure.Handle for one simulation-job family.
type Calibration struct {
	name    string
	role    identity.Role
	system  identity.System
	params  params.Map
	prior   []measure.JobRef
	current []measure.JobRef
	pending *vasp.Structure

	jobCmd      []string
	waitFor     string
	waitTimeout time.Duration
}

// New builds a calibration family from its configuration.
func New(cfg Config) *Calibration {
	return &Calibration{
		name:        cfg.Name,
		role:        cfg.Role,
		system:      cfg.System,
		params:      cfg.Params,
		current:     cfg.Jobs,
		jobCmd:      cfg.JobCmd,
		waitFor:     cfg.WaitFor,
		waitTimeout: cfg.WaitTimeout,
	}
}

// JobRefs builds job references for completed directories using the same
// naming convention AddJob applies to registered ones, so names stay
// consistent across generations.
func JobRefs(dirs ...string) []measure.JobRef {
	refs := make([]measure.JobRef, 0, len(dirs))
	for _, dir := range dirs {
		refs = append(refs, measure.JobRef{Name: jobName(dir), Dir: dir})
	}
	return refs
}

func (c *Calibration) Name() string                  { return c.name }
func (c *Calibration) Role() identity.Role           { return c.role }
func (c *Calibration) Params() params.Map            { return c.params }
func (c *Calibration) SetParams(p params.Map)        { c.params = p }
func (c *Calibration) PriorJobs() []measure.JobRef   { return c.prior }
func (c *Calibration) CurrentJobs() []measure.JobRef { return c.current }

func (c *Calibration) System() (identity.System, bool) {
	return c.system, c.system != nil
}

// ArchiveJobs moves the current generation into the prior one.
func (c *Calibration) ArchiveJobs() {
	c.prior = c.current
	c.current = nil
}

// LoadStructure stages the structure at path as the starting structure
// of the next registered job.
func (c *Calibration) LoadStructure(path string) error {
	s, err := vasp.ReadStructureFile(path)
	if err != nil {
		return err
	}
	c.pending = s
	return nil
}

// AddJob registers a job rooted at dir: the directory is created, the
// current parameter record is rendered to INCAR and KPOINTS, and the
// staged structure (when one was loaded) becomes the job's POSCAR. Jobs
// restarting from a wavefunction are registered without a structure.
func (c *Calibration) AddJob(ctx context.Context, dir string) error {
	log := ctxlog.FromContext(ctx)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating job directory %s: %w", dir, err)
	}
	if err := vasp.WriteIncar(dir, c.params); err != nil {
		return fmt.Errorf("writing INCAR in %s: %w", dir, err)
	}
	if err := vasp.WriteKpoints(dir, c.params); err != nil {
		return fmt.Errorf("writing KPOINTS in %s: %w", dir, err)
	}
	if c.pending != nil {
		if err := c.pending.WriteFile(filepath.Join(dir, "POSCAR")); err != nil {
			return fmt.Errorf("writing POSCAR in %s: %w", dir, err)
		}
	}
	job := measure.JobRef{Name: jobName(dir), Dir: dir}
	c.current = append(c.current, job)
	log.Debug("Registered job", "calibration", c.name, "job", job.Name, "dir", dir)
	return nil
}

// Run executes the configured job command once per registered job, in
// registration order, with the job directory as working directory. When
// WaitFor is configured the command is treated as an asynchronous
// submission and Run blocks until the artifact appears or the timeout
// elapses.
func (c *Calibration) Run(ctx context.Context) error {
	log := ctxlog.FromContext(ctx)
	if len(c.jobCmd) == 0 {
		return fmt.Errorf("calibration %s has no job command configured", c.name)
	}
	for _, job := range c.current {
		log.Info("Executing job", "calibration", c.name, "job", job.Name, "cmd", c.jobCmd)
		cmd := exec.CommandContext(ctx, c.jobCmd[0], c.jobCmd[1:]...)
		cmd.Dir = job.Dir
		output, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("job command in %s: %w: %s", job.Dir, err, bytes.TrimSpace(output))
		}
		if c.waitFor == "" {
			continue
		}
		timeout := c.waitTimeout
		if timeout <= 0 {
			timeout = DefaultWaitTimeout
		}
		if err := awaitFile(ctx, filepath.Join(job.Dir, c.waitFor), timeout); err != nil {
			return fmt.Errorf("waiting for %s in %s: %w", c.waitFor, job.Dir, err)
		}
	}
	return nil
}

// jobName derives a job's identity from its directory: the trailing two
// path components, so derived generations keep distinct names even when
// they share a suffix component.
func jobName(dir string) string {
	parent := filepath.Base(filepath.Dir(dir))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(dir)
	}
	return parent + "/" + filepath.Base(dir)
}
