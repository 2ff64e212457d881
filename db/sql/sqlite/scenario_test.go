package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Summon528/Flexget/backlog"
	"github.com/Summon528/Flexget/db/sql/sqlite"
	"github.com/Summon528/Flexget/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedInput struct {
	entries []pipeline.Entry
	err     error
}

func (f fixedInput) Name() string          { return "fixed" }
func (f fixedInput) Stage() pipeline.Stage { return pipeline.StageInput }

func (f fixedInput) OnInput(_ context.Context, run *pipeline.Run) error {
	for _, e := range f.entries {
		run.AddEntry(e)
	}
	return f.err
}

func newPlugin(t *testing.T, now *time.Time) *backlog.Plugin {
	t.Helper()
	_, tx := testDB(t)
	m, err := backlog.NewManager(backlog.ManagerConfig{
		Store:      sqlite.NewBacklogStore(),
		Transactor: tx,
		Now:        func() time.Time { return *now },
	})
	require.NoError(t, err)
	return backlog.NewPlugin(m, nil)
}

func execute(t *testing.T, p *backlog.Plugin, config map[string]any, in fixedInput) (*pipeline.Run, error) {
	t.Helper()
	run, err := pipeline.NewRun("F", config, nil)
	require.NoError(t, err)
	return run, pipeline.NewRunner(nil, in, p).Execute(context.Background(), run)
}

func TestScenario_abortRecovery(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	p := newPlugin(t, &now)

	_, err := execute(t, p, nil, fixedInput{
		entries: []pipeline.Entry{pipeline.NewEntry("A", "u1")},
		err:     errors.New("connection reset"),
	})
	require.Error(t, err)

	now = now.Add(6 * time.Hour)
	run, err := execute(t, p, nil, fixedInput{})
	require.NoError(t, err)
	assert.Equal(t, []pipeline.Entry{pipeline.NewEntry("A", "u1")}, run.Entries())

	now = now.Add(7 * time.Hour)
	run, err = execute(t, p, nil, fixedInput{})
	require.NoError(t, err)
	assert.Empty(t, run.Entries())
}

func TestScenario_configuredBacklog(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	p := newPlugin(t, &now)
	config := map[string]any{backlog.ConfigKey: "4 days"}
	x := pipeline.Entry{"title": "X", "url": "ux", "description": "kept"}

	_, err := execute(t, p, config, fixedInput{entries: []pipeline.Entry{x}})
	require.NoError(t, err)

	now = now.Add(3 * 24 * time.Hour)
	run, err := execute(t, p, config, fixedInput{})
	require.NoError(t, err)
	assert.Equal(t, []pipeline.Entry{x}, run.Entries())
	assert.Equal(t, []string{"Added 1 entries from backlog"}, run.Progress())

	// Learning runs before injection, so restoring X did not extend it.
	now = now.Add(5 * 24 * time.Hour)
	run, err = execute(t, p, config, fixedInput{})
	require.NoError(t, err)
	assert.Empty(t, run.Entries())
}
