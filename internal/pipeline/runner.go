package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/features"
	"github.com/fortuna/gridiron/internal/pbp"
)

// Runner executes feature builds: load plays, aggregate, link, compute
// recent form, write the table, then hand it to each sink.
type Runner struct {
	sinks  []Sink
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewRunner constructs a runner. Sinks run in the given order after the
// CSV is written.
func NewRunner(logger logrus.FieldLogger, sinks ...Sink) *Runner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runner{
		sinks:  sinks,
		logger: logger,
		now:    time.Now,
	}
}

// Sinks returns the number of configured sinks.
func (r *Runner) Sinks() int {
	return len(r.sinks)
}

// Run executes the job spec, reporting progress via the Reporter if provided.
// Nothing is written unless every stage before StageWrite succeeds.
func (r *Runner) Run(ctx context.Context, spec JobSpec, reporter Reporter) (*Result, error) {
	if reporter == nil {
		reporter = nopReporter{}
	}
	if spec.JobID == "" {
		spec.JobID = uuid.NewString()
	}
	if len(spec.Windows) == 0 {
		spec.Windows = []int{features.DefaultWindow}
	}

	log := r.logger.WithField("job_id", spec.JobID)
	result := &Result{
		JobID:     spec.JobID,
		Windows:   spec.Windows,
		DryRun:    spec.DryRun,
		StartedAt: r.now(),
	}

	fail := func(err error) (*Result, error) {
		log.WithError(err).Error("build failed")
		reporter.OnJobError(err)
		return nil, err
	}

	reporter.OnJobStart(spec)
	p := &progress{reporter: reporter, total: progressUnits(spec, len(r.sinks))}

	files, err := pbp.ResolveInputs(spec.Inputs)
	if err != nil {
		return fail(fmt.Errorf("resolve inputs: %w", err))
	}
	result.Files = files

	records, err := pbp.LoadPlays(files)
	if err != nil {
		return fail(fmt.Errorf("load plays: %w", err))
	}
	plays := pbp.Label(records)
	result.Plays = len(plays)
	log.WithFields(logrus.Fields{"files": len(files), "rows": len(plays)}).Info("✓ Loaded plays")
	p.stage(StageLoad, len(plays))

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	stats := features.Aggregate(plays)
	result.TeamGames = len(stats)
	p.stage(StageAggregate, len(stats))

	enriched := features.Link(stats)
	result.Games = countGames(enriched)
	result.MissingOpponents = features.MissingOpponents(enriched)
	if len(result.MissingOpponents) > 0 {
		log.WithFields(logrus.Fields{
			"count":    len(result.MissingOpponents),
			"game_ids": result.MissingOpponents,
		}).Warn("opponent rows missing; points_allowed fell back to own points")
	}
	p.stage(StageLink, len(enriched))

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	rows, err := features.ComputeFormWindows(enriched, spec.Windows)
	if err != nil {
		return fail(fmt.Errorf("compute form: %w", err))
	}
	p.stage(StageForm, len(rows))

	if spec.DryRun {
		log.Info("Dry-run mode: no output written")
		return r.complete(result, reporter, log)
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if err := features.WriteFile(spec.OutputPath, rows, spec.Windows); err != nil {
		return fail(fmt.Errorf("%s: %w", spec.OutputPath, err))
	}
	result.OutputPath = spec.OutputPath
	log.WithFields(logrus.Fields{"path": spec.OutputPath, "rows": len(rows)}).Info("✓ Wrote feature table")
	p.stage(StageWrite, len(rows))

	for _, sink := range r.sinks {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := sink.Write(ctx, result, rows); err != nil {
			return fail(fmt.Errorf("sink %s: %w", sink.Name(), err))
		}
		log.WithField("sink", sink.Name()).Info("✓ Sink updated")
		p.step(StageSink, fmt.Sprintf("✓ %s updated", sink.Name()), len(rows))
	}

	return r.complete(result, reporter, log)
}

func (r *Runner) complete(result *Result, reporter Reporter, log logrus.FieldLogger) (*Result, error) {
	result.CompletedAt = r.now()
	log.WithFields(logrus.Fields{
		"team_games": result.TeamGames,
		"games":      result.Games,
		"duration":   result.CompletedAt.Sub(result.StartedAt).String(),
	}).Info("✓ Build complete")
	reporter.OnJobComplete(result)
	return result, nil
}

type progress struct {
	reporter Reporter
	current  int
	total    int
}

func (p *progress) stage(stage Stage, rows int) {
	p.step(stage, fmt.Sprintf("✓ %s (%d rows)", stage, rows), rows)
}

func (p *progress) step(stage Stage, message string, rows int) {
	p.current++
	p.reporter.OnStageComplete(stage, rows)
	p.reporter.OnProgress(message, p.current, p.total)
}

func countGames(rows []features.EnrichedStats) int {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		seen[row.GameID] = struct{}{}
	}
	return len(seen)
}

type nopReporter struct{}

func (nopReporter) OnJobStart(JobSpec) {}
func (nopReporter) OnStageComplete(Stage, int) {}
func (nopReporter) OnProgress(string, int, int) {}
func (nopReporter) OnJobComplete(*Result) {}
func (nopReporter) OnJobError(error) {}
