package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Summon528/Flexget/backlog"
	"github.com/Summon528/Flexget/config"
	"github.com/Summon528/Flexget/input/rss"
	"github.com/Summon528/Flexget/pipeline"
	"github.com/bool64/ctxd"
	"github.com/spf13/cobra"
)

var flagAll bool

var runCmd = &cobra.Command{
	Use:   "run [task...]",
	Short: "Run tasks: read their feeds, then learn and reinject backlog entries",
	Long: `Run executes the named tasks (or every task with --all). Each run reads
the task's rss feed, learns its entries when the task sets a backlog time and
adds back remembered entries the feed no longer lists.

If reading the feed fails, whatever was gathered is remembered for 12 hours.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		names := args
		if flagAll {
			names = cfg.TaskNames()
		}
		if len(names) == 0 {
			return errors.New("no task given: pass task names or --all")
		}

		ctx := cmd.Context()
		store, err := openStorage(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		m, err := store.manager(logger, nil)
		if err != nil {
			return err
		}

		runner := pipeline.NewRunner(logger, rss.New(logger, rss.WithUserAgent("backlogd/"+version)), backlog.NewPlugin(m, logger))

		var failed []error
		for _, name := range names {
			run, err := runTask(ctx, runner, cfg, name, logger)
			if err != nil {
				failed = append(failed, err)
			}
			if run != nil {
				printRun(cmd, run)
			}
		}
		return errors.Join(failed...)
	},
}

func init() {
	runCmd.Flags().BoolVar(&flagAll, "all", false, "run every configured task")
}

func runTask(ctx context.Context, runner *pipeline.Runner, cfg *config.Config, name string, logger ctxd.Logger) (*pipeline.Run, error) {
	task, ok := cfg.Tasks[name]
	if !ok {
		return nil, fmt.Errorf("unknown task %q", name)
	}

	run, err := pipeline.NewRun(name, task.Options(), logger)
	if err != nil {
		return nil, err
	}
	return run, runner.Execute(ctx, run)
}

func printRun(cmd *cobra.Command, run *pipeline.Run) {
	out := cmd.OutOrStdout()
	status := "ok"
	if run.Aborted() {
		status = "aborted"
	}
	fmt.Fprintf(out, "%s: %s, %d entries\n", run.Name(), status, len(run.Entries()))
	for _, msg := range run.Progress() {
		fmt.Fprintf(out, "  %s\n", msg)
	}
	for _, msg := range run.Warnings() {
		fmt.Fprintf(out, "  warning: %s\n", msg)
	}
	for _, e := range run.Entries() {
		fmt.Fprintf(out, "  - %s (%s)\n", e.Title(), e.URL())
	}
}
