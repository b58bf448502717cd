package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/features"
)

// ErrInvalidRequest wraps every Enqueue validation failure.
var ErrInvalidRequest = errors.New("invalid build request")

// Service coordinates job persistence, execution, and status reporting.
type Service struct {
	repo        JobStore
	runner      *Runner
	defaults    JobSpec
	dataDir     string
	broadcaster Broadcaster

	historyLimit int
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger logrus.FieldLogger
}

// NewService constructs a Service. defaults fills the fields a Request
// leaves empty. Call Start to launch the worker.
func NewService(repo JobStore, runner *Runner, defaults JobSpec, logger logrus.FieldLogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Service{
		repo:         repo,
		runner:       runner,
		defaults:     defaults,
		historyLimit: 10,
		pollInterval: 3 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger.WithField("component", "builds"),
	}
}

// SetBroadcaster attaches a live progress feed.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetDataDir sets the directory that caller-supplied inputs and output
// paths must stay inside. Relative request paths resolve against it. With
// no data directory, requests may not name paths at all.
func (s *Service) SetDataDir(dir string) {
	s.dataDir = dir
}

// Start launches the background worker loop.
func (s *Service) Start() {
	if err := s.repo.ResetStuckJobs(s.ctx); err != nil {
		s.logger.WithError(err).Warn("failed to reset jobs")
	}

	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops workers and waits for completion.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue creates a new job from the provided request.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Job, error) {
	spec, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	if len(spec.Inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one input is required", ErrInvalidRequest)
	}
	if !spec.DryRun && spec.OutputPath == "" {
		return nil, fmt.Errorf("%w: an output path is required", ErrInvalidRequest)
	}
	for _, w := range spec.Windows {
		if w < 1 {
			return nil, fmt.Errorf("%w: window %d: %w", ErrInvalidRequest, w, features.ErrInvalidWindow)
		}
	}

	message := "Queued"
	job := &Job{
		JobID:         uuid.NewString(),
		Inputs:        spec.Inputs,
		OutputPath:    spec.OutputPath,
		Windows:       toInt64s(spec.Windows),
		DryRun:        spec.DryRun,
		Status:        JobStatusQueued,
		StatusMessage: &message,
		ProgressTotal: progressUnits(spec, s.runner.Sinks()),
	}

	stored, err := s.repo.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	_ = s.repo.AppendEvent(ctx, stored.JobID, "queued", "Job queued", nil, nil)
	s.logger.WithField("job_id", stored.JobID).Info("build queued")

	return stored, nil
}

// GetStatus returns the currently running job plus recent history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	active, err := s.repo.GetActiveJob(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListRecentJobs(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	return &StatusSummary{
		ActiveJob: active,
		History:   history,
	}, nil
}

func (s *Service) resolve(req Request) (JobSpec, error) {
	spec := JobSpec{
		Inputs:     trimAll(req.Inputs),
		OutputPath: strings.TrimSpace(req.OutputPath),
		Windows:    req.Windows,
		DryRun:     req.DryRun,
	}

	for i, in := range spec.Inputs {
		path, err := s.confine(in)
		if err != nil {
			return JobSpec{}, err
		}
		spec.Inputs[i] = path
	}
	if spec.OutputPath != "" {
		path, err := s.confine(spec.OutputPath)
		if err != nil {
			return JobSpec{}, err
		}
		spec.OutputPath = path
	}

	if len(spec.Inputs) == 0 {
		spec.Inputs = s.defaults.Inputs
	}
	if spec.OutputPath == "" {
		spec.OutputPath = s.defaults.OutputPath
	}
	if len(spec.Windows) == 0 {
		spec.Windows = s.defaults.Windows
	}
	if len(spec.Windows) == 0 {
		spec.Windows = []int{features.DefaultWindow}
	}
	return spec, nil
}

// confine resolves a request path against the data directory and rejects
// anything that lands outside it, including the directory itself.
func (s *Service) confine(path string) (string, error) {
	if s.dataDir == "" {
		return "", fmt.Errorf("%w: custom paths are disabled", ErrInvalidRequest)
	}

	root, err := filepath.Abs(s.dataDir)
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w", err)
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	full = filepath.Clean(full)

	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrInvalidRequest, path, s.dataDir)
	}
	return full, nil
}

func (s *Service) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
			claimed, err := s.processNext()
			if err != nil {
				s.logger.WithError(err).Error("claim job error")
				time.Sleep(time.Second)
				continue
			}
			if !claimed {
				select {
				case <-s.ctx.Done():
					return
				case <-ticker.C:
					continue
				}
			}
		}
	}
}

// processNext claims and runs one queued job. Reports false when the queue
// was empty.
func (s *Service) processNext() (bool, error) {
	job, err := s.repo.MarkNextJobRunning(s.ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	s.executeJob(job)
	return true, nil
}

func (s *Service) executeJob(job *Job) {
	log := s.logger.WithField("job_id", job.JobID)
	spec := buildSpec(job)

	reporter := &jobReporter{
		ctx:         s.ctx,
		repo:        s.repo,
		broadcaster: s.broadcaster,
		jobID:       job.JobID,
		total:       progressUnits(spec, s.runner.Sinks()),
	}

	result, err := s.runner.Run(s.ctx, spec, reporter)
	if err != nil {
		log.WithError(err).Error("build failed")
		_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusFailed, "Job failed", err)
		return
	}

	_ = s.repo.CompleteJob(s.ctx, job.JobID, result.TeamGames, "Job completed")
}

func buildSpec(job *Job) JobSpec {
	return JobSpec{
		JobID:      job.JobID,
		Inputs:     job.Inputs,
		OutputPath: job.OutputPath,
		Windows:    toInts(job.Windows),
		DryRun:     job.DryRun,
	}
}

type jobReporter struct {
	ctx         context.Context
	repo        JobStore
	broadcaster Broadcaster
	jobID       string
	total       int
}

func (r *jobReporter) OnJobStart(spec JobSpec) {
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, 0, r.total, "Job starting")
	r.broadcast(ProgressEvent{Type: EventStarted, Message: "Job starting", Total: r.total})
}

func (r *jobReporter) OnStageComplete(stage Stage, rows int) {
	_ = r.repo.AppendEvent(r.ctx, r.jobID, string(stage), fmt.Sprintf("%s complete (%d rows)", stage, rows), nil, nil)
	r.broadcast(ProgressEvent{Type: EventStage, Stage: stage, Rows: rows, Total: r.total})
}

func (r *jobReporter) OnProgress(message string, current int, total int) {
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, current, valueOr(total, r.total), message)
	r.broadcast(ProgressEvent{Type: EventProgress, Message: message, Current: current, Total: valueOr(total, r.total)})
}

func (r *jobReporter) OnJobComplete(result *Result) {
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, r.total, r.total, "Job complete")
	r.broadcast(ProgressEvent{Type: EventCompleted, Current: r.total, Total: r.total, Rows: result.TeamGames, Result: result})
}

func (r *jobReporter) OnJobError(err error) {
	_ = r.repo.AppendEvent(r.ctx, r.jobID, "error", err.Error(), nil, nil)
	r.broadcast(ProgressEvent{Type: EventFailed, Error: err.Error(), Total: r.total})
}

func (r *jobReporter) broadcast(event ProgressEvent) {
	if r.broadcaster == nil {
		return
	}
	event.JobID = r.jobID
	event.Timestamp = time.Now().UTC()
	r.broadcaster.Broadcast(event)
}

func valueOr(val, fallback int) int {
	if val > 0 {
		return val
	}
	return fallback
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
