package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/matstage/matstage/internal/measure"
	"github.com/matstage/matstage/internal/params"
)

// derivationStep is the slice of step behavior the app drives for every
// measurement. Measurement capability is optional and discovered separately
// via measure.Measurer.
type derivationStep interface {
	Setup(ctx context.Context) ([]measure.Warning, error)
	Run(ctx context.Context) error
}

// stepRequest carries everything a builder needs to construct the step for
// one measurement block.
type stepRequest struct {
	handles   []measure.Handle
	outputDir string
	collector measure.Collector
	params    params.Map
}

// stepBuilder constructs one derivation step. Construction archives each
// handle's current jobs, so builders run once per measurement on fresh
// handles.
type stepBuilder func(req stepRequest) derivationStep

// kindRegistry maps measurement kinds to the step builders compiled into
// the binary.
type kindRegistry struct {
	builders map[string]stepBuilder
}

// defaultKinds returns the registry of built-in step kinds.
func defaultKinds() *kindRegistry {
	r := &kindRegistry{builders: make(map[string]stepBuilder)}
	r.register("static", func(req stepRequest) derivationStep {
		return measure.NewStep(req.handles, req.outputDir, req.collector)
	})
	r.register("solvation", func(req stepRequest) derivationStep {
		return measure.NewSolvationStep(req.handles, req.outputDir, req.collector, req.params)
	})
	r.register("interface", func(req stepRequest) derivationStep {
		return measure.NewInterfaceStep(req.handles, req.outputDir, req.collector)
	})
	return r
}

// register adds a builder for a kind. Registration happens only at startup,
// so a duplicate kind is a programmer error.
func (r *kindRegistry) register(kind string, b stepBuilder) {
	if _, exists := r.builders[kind]; exists {
		panic(fmt.Sprintf("step kind %q already registered", kind))
	}
	r.builders[kind] = b
}

// build constructs the step for a measurement kind.
func (r *kindRegistry) build(kind string, req stepRequest) (derivationStep, error) {
	b, ok := r.builders[kind]
	if !ok {
		return nil, fmt.Errorf("unknown measurement kind %q (registered: %s)", kind, strings.Join(r.kinds(), ", "))
	}
	return b(req), nil
}

// kinds lists the registered kinds in sorted order.
func (r *kindRegistry) kinds() []string {
	kinds := make([]string, 0, len(r.builders))
	for k := range r.builders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
