package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fortuna/gridiron/internal/pipeline"
)

func buildCmd(a *app) *cobra.Command {
	var (
		inputs   []string
		output   string
		windows  []int
		dsn      string
		redisURL string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the team-game feature table once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("input") {
				inputs = a.cfg.Pipeline.PlaysGlobs
			}
			if !cmd.Flags().Changed("output") {
				output = a.cfg.Pipeline.OutputPath
			}
			if !cmd.Flags().Changed("window") {
				windows = a.cfg.Pipeline.FormWindows
			}
			if !cmd.Flags().Changed("dsn") {
				dsn = a.cfg.DatabaseDSN
			}
			if !cmd.Flags().Changed("redis") {
				redisURL = a.cfg.RedisURL
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var sinks []pipeline.Sink
			if !dryRun {
				b, err := openBackends(ctx, dsn, redisURL, 1, a.logger)
				if err != nil {
					return err
				}
				defer b.Close()
				sinks = b.sinks()
			}

			runner := pipeline.NewRunner(a.logger, sinks...)
			spec := pipeline.JobSpec{
				Inputs:     inputs,
				OutputPath: output,
				Windows:    windows,
				DryRun:     dryRun,
			}

			result, err := runner.Run(ctx, spec, &consoleReporter{logger: a.logger})
			if err != nil {
				return fmt.Errorf("build failed: %w", err)
			}

			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Play-by-play CSV path or glob (repeatable; default PLAYS_GLOB)")
	cmd.Flags().StringVar(&output, "output", "", "Feature table destination (default OUTPUT_PATH)")
	cmd.Flags().IntSliceVar(&windows, "window", nil, "Rolling window in games (repeatable; default FORM_WINDOWS)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN for the feature sink (default DATABASE_DSN)")
	cmd.Flags().StringVar(&redisURL, "redis", "", "Redis URL for the form cache and build stream (default REDIS_URL)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute features without writing anything")

	return cmd
}

func printResult(w io.Writer, result *pipeline.Result) {
	fmt.Fprintf(w, "Job:        %s\n", result.JobID)
	fmt.Fprintf(w, "Files:      %s\n", strings.Join(result.Files, ", "))
	fmt.Fprintf(w, "Plays:      %d\n", result.Plays)
	fmt.Fprintf(w, "Team-games: %d\n", result.TeamGames)
	fmt.Fprintf(w, "Games:      %d\n", result.Games)
	if len(result.MissingOpponents) > 0 {
		fmt.Fprintf(w, "Missing opponent rows: %s\n", strings.Join(result.MissingOpponents, ", "))
	}
	if result.DryRun {
		fmt.Fprintln(w, "Dry run: nothing written")
		return
	}
	fmt.Fprintf(w, "Output:     %s\n", result.OutputPath)
}

// consoleReporter logs runner callbacks.
type consoleReporter struct {
	logger logrus.FieldLogger
}

func (c *consoleReporter) OnJobStart(spec pipeline.JobSpec) {
	c.logger.WithFields(logrus.Fields{
		"inputs":  spec.Inputs,
		"windows": spec.Windows,
		"dry_run": spec.DryRun,
	}).Infof("Starting build %s", spec.JobID)
}

func (c *consoleReporter) OnStageComplete(stage pipeline.Stage, rows int) {
	c.logger.WithField("rows", rows).Debugf("stage %s complete", stage)
}

func (c *consoleReporter) OnProgress(message string, current int, total int) {
	c.logger.Infof("[%d/%d] %s", current, total, message)
}

func (c *consoleReporter) OnJobComplete(result *pipeline.Result) {
	c.logger.WithField("rows", result.TeamGames).Info("✓ Build completed")
}

func (c *consoleReporter) OnJobError(err error) {
	c.logger.WithError(err).Error("Build error")
}

var _ pipeline.Reporter = (*consoleReporter)(nil)

