package app

import (
	"path/filepath"

	"github.com/matstage/matstage/internal/calib"
	"github.com/matstage/matstage/internal/config"
	"github.com/matstage/matstage/internal/measure"
)

// buildHandles constructs fresh calibration handles for one measurement.
// Handles are never shared between measurements: step construction archives
// the current generation, so a shared handle would leak derivation state
// from one measurement into the next.
func buildHandles(ws *config.Workspace, specs []*config.Calibration) []measure.Handle {
	handles := make([]measure.Handle, 0, len(specs))
	for _, spec := range specs {
		dirs := make([]string, 0, len(spec.JobDirs))
		for _, dir := range spec.JobDirs {
			dirs = append(dirs, resolvePath(ws.Root, dir))
		}
		handles = append(handles, calib.New(calib.Config{
			Name:        spec.Name,
			Role:        spec.Role,
			System:      spec.System,
			Params:      spec.Params,
			Jobs:        calib.JobRefs(dirs...),
			JobCmd:      ws.JobCmd,
			WaitFor:     ws.OutputArtifact,
			WaitTimeout: ws.WaitTimeout,
		}))
	}
	return handles
}

// resolvePath anchors relative plan paths at the workspace root.
func resolvePath(root, path string) string {
	if root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
