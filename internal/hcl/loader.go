package hcl

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/matstage/matstage/internal/config"
	"github.com/matstage/matstage/internal/ctxlog"
	"github.com/matstage/matstage/internal/fsutil"
	"github.com/matstage/matstage/internal/schema"
)

// Loader is the HCL implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL plan loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load orchestrates the plan loading process. It discovers .hcl files under
// the given paths, decodes every block from every file, merges them into a
// single plan and validates the result.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Plan, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL plan loader started.", "path_count", len(paths))

	files, err := l.findPlanFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no plan files found under %v", paths)
	}
	logger.Debug("Discovered plan files.", "count", len(files))

	parser := hclparse.NewParser()
	plan := &config.Plan{}

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse plan file %s: %w", file, diags)
		}

		var root schema.PlanConfig
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode plan file %s: %w", file, diags)
		}

		if err := l.mergeFile(plan, &root, file); err != nil {
			return nil, err
		}
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Plan loading complete.",
		"files", len(files),
		"calibrations", len(plan.Calibrations),
		"measurements", len(plan.Measurements),
	)
	return plan, nil
}

// mergeFile translates one decoded file into the plan. Singleton blocks
// (workspace, materialsweb, presets) may appear in at most one file;
// calibration and measurement blocks accumulate across files.
func (l *Loader) mergeFile(plan *config.Plan, root *schema.PlanConfig, file string) error {
	if root.Workspace != nil {
		if plan.Workspace != nil {
			return fmt.Errorf("duplicate workspace block in %s", file)
		}
		ws, err := translateWorkspace(root.Workspace)
		if err != nil {
			return fmt.Errorf("in %s: %w", file, err)
		}
		plan.Workspace = ws
	}

	if root.MaterialsWeb != nil {
		if plan.MaterialsWeb != nil {
			return fmt.Errorf("duplicate materialsweb block in %s", file)
		}
		plan.MaterialsWeb = translateMaterialsWeb(root.MaterialsWeb)
	}

	if root.Presets != nil {
		if plan.Presets != nil {
			return fmt.Errorf("duplicate presets block in %s", file)
		}
		plan.Presets = &config.Presets{Path: root.Presets.Path}
	}

	for _, cal := range root.Calibrations {
		translated, err := translateCalibration(cal)
		if err != nil {
			return fmt.Errorf("in %s: %w", file, err)
		}
		plan.Calibrations = append(plan.Calibrations, translated)
	}

	for _, m := range root.Measurements {
		translated, err := translateMeasurement(m)
		if err != nil {
			return fmt.Errorf("in %s: %w", file, err)
		}
		plan.Measurements = append(plan.Measurements, translated)
	}

	return nil
}

// findPlanFiles resolves the given paths (files or directories) to a sorted,
// de-duplicated list of .hcl files so block order does not depend on
// filesystem traversal order.
func (l *Loader) findPlanFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("discovering plan files under %s: %w", path, err)
		}
		for _, f := range found {
			if _, dup := seen[f]; dup {
				continue
			}
			files = append(files, f)
			seen[f] = struct{}{}
		}
	}

	sort.Strings(files)
	return files, nil
}
