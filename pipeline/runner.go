package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/bool64/ctxd"
)

// InputPlugin contributes entries to a run, or transforms the entries other
// input plugins produced.
type InputPlugin interface {
	Name() string
	Stage() Stage
	OnInput(ctx context.Context, run *Run) error
}

// AbortHandler is notified when a run is aborted by a failing plugin.
type AbortHandler interface {
	OnAbort(ctx context.Context, run *Run) error
}

// Runner executes the input plugins of a run in stage order.
type Runner struct {
	plugins []InputPlugin
	log     ctxd.Logger
}

// NewRunner builds a Runner. A nil logger discards output.
func NewRunner(logger ctxd.Logger, plugins ...InputPlugin) *Runner {
	if logger == nil {
		logger = ctxd.NoOpLogger{}
	}
	r := &Runner{log: logger}
	for _, p := range plugins {
		r.Register(p)
	}
	return r
}

// Register adds a plugin. Plugins sharing a stage run in registration order.
func (r *Runner) Register(p InputPlugin) {
	if p == nil {
		return
	}
	r.plugins = append(r.plugins, p)
	sort.SliceStable(r.plugins, func(i, j int) bool {
		return r.plugins[i].Stage() < r.plugins[j].Stage()
	})
}

// Plugins returns the registered plugins in execution order.
func (r *Runner) Plugins() []InputPlugin {
	return append([]InputPlugin(nil), r.plugins...)
}

// Execute runs every plugin. The first failure aborts the run: every plugin
// implementing AbortHandler is notified and the failure is returned.
func (r *Runner) Execute(ctx context.Context, run *Run) error {
	ctx = ctxd.AddFields(ctx, "task", run.Name())

	for _, p := range r.plugins {
		r.log.Debug(ctx, "running input plugin", "plugin", p.Name(), "stage", p.Stage().String())

		if err := p.OnInput(ctx, run); err != nil {
			r.abort(ctx, run)
			return fmt.Errorf("pipeline: %s: %s: %w", run.Name(), p.Name(), err)
		}
	}

	return nil
}

func (r *Runner) abort(ctx context.Context, run *Run) {
	run.markAborted()
	r.log.Warn(ctx, "run aborted", "entries", len(run.Entries()))

	for _, p := range r.plugins {
		h, ok := p.(AbortHandler)
		if !ok {
			continue
		}
		if err := h.OnAbort(ctx, run); err != nil {
			r.log.Error(ctx, "abort handler failed", "plugin", p.Name(), "error", err)
		}
	}
}
