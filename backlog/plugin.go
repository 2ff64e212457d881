package backlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/Summon528/Flexget/duration"
	"github.com/Summon528/Flexget/pipeline"
	"github.com/bool64/ctxd"
)

const (
	// ConfigKey is the task option that enables learning, e.g. "backlog: 4 days".
	ConfigKey = "backlog"
	// AbortTTL is how long entries of an aborted run are remembered.
	AbortTTL = "12 hours"
)

var (
	_ pipeline.InputPlugin  = (*Plugin)(nil)
	_ pipeline.AbortHandler = (*Plugin)(nil)
	_ Feed                  = (*pipeline.Run)(nil)
)

// Plugin hooks the Manager into a pipeline run. It runs at
// pipeline.StageBacklog so every other input has already produced entries.
type Plugin struct {
	m   *Manager
	log ctxd.Logger
}

func NewPlugin(m *Manager, logger ctxd.Logger) *Plugin {
	if logger == nil {
		logger = ctxd.NoOpLogger{}
	}
	return &Plugin{m: m, log: logger}
}

func (p *Plugin) Name() string { return "backlog" }

func (p *Plugin) Stage() pipeline.Stage { return pipeline.StageBacklog }

// OnInput learns the run's entries when the task configures a backlog TTL,
// then always injects missing entries. A malformed TTL is reported as a
// warning and only skips the learning step.
func (p *Plugin) OnInput(ctx context.Context, run *pipeline.Run) error {
	if raw, ok := run.Config()[ConfigKey]; ok {
		ttl, ok := raw.(string)
		if !ok {
			ttl = fmt.Sprint(raw)
		}

		err := p.m.Learn(ctx, run.Entries(), run.Name(), ttl)
		switch {
		case errors.Is(err, duration.ErrInvalidDuration):
			run.Warn(ctx, fmt.Sprintf("Invalid time format '%s'", ttl))
		case err != nil:
			return err
		}
	}

	_, err := p.m.Inject(ctx, run)
	return err
}

// OnAbort remembers everything gathered so far for AbortTTL, regardless of
// task configuration, so an aborted run does not lose its discoveries.
func (p *Plugin) OnAbort(ctx context.Context, run *pipeline.Run) error {
	p.log.Debug(ctx, "remembering all entries to backlog because of run abort", "task", run.Name(), "ttl", AbortTTL)
	return p.m.Learn(ctx, run.Entries(), run.Name(), AbortTTL)
}
