// Package collect turns completed job directories into result records by
// locating the engine's output files and extracting their final total
// energies. It is the concrete Collector behind the measurement core.
package collect

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/matstage/matstage/internal/ctxlog"
	"github.com/matstage/matstage/internal/measure"
	"github.com/matstage/matstage/internal/vasp"
)

// DefaultOutputName is the engine output file holding total energies.
const DefaultOutputName = "OUTCAR"

// DirCollector reads engine outputs straight off the filesystem. The
// zero value collects the default output file name.
type DirCollector struct {
	// OutputName overrides the output file looked for in each job
	// directory. Empty selects DefaultOutputName.
	OutputName string
}

// Collect parses the output of one job directory into result records. A
// directory with no output file or no converged energy yields zero
// records, never an error; the caller decides whether that is worth
// reporting. When the directory itself has no output file, its immediate
// subdirectories are scanned in name order, so nested rerun layouts
// still contribute their results.
func (c DirCollector) Collect(ctx context.Context, dir string) ([]measure.Record, error) {
	log := ctxlog.FromContext(ctx)
	outputs, err := c.outputs(dir)
	if err != nil {
		return nil, err
	}
	var records []measure.Record
	for _, path := range outputs {
		energy, err := vasp.ReadFinalEnergy(path)
		if errors.Is(err, vasp.ErrEnergyNotFound) {
			log.Warn("Output holds no converged energy", "path", path)
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, measure.Record{Energy: energy, SourceDir: filepath.Dir(path)})
	}
	return records, nil
}

// outputs locates the output files for one job directory: the
// directory's own output when present, otherwise the outputs one level
// down.
func (c DirCollector) outputs(dir string) ([]string, error) {
	name := c.OutputName
	if name == "" {
		name = DefaultOutputName
	}
	own := filepath.Join(dir, name)
	if _, err := os.Stat(own); err == nil {
		return []string{own}, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var outputs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		nested := filepath.Join(dir, e.Name(), name)
		if _, err := os.Stat(nested); err == nil {
			outputs = append(outputs, nested)
		}
	}
	return outputs, nil
}
