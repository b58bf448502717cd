package pipeline

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/fortuna/gridiron/internal/features"
)

// JobStatus represents the lifecycle state for a build job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Stage names a step of the feature build.
type Stage string

const (
	StageLoad      Stage = "load"
	StageAggregate Stage = "aggregate"
	StageLink      Stage = "link"
	StageForm      Stage = "form"
	StageWrite     Stage = "write"
	StageSink      Stage = "sink"
)

// coreStages run on every build; StageWrite and the sinks only when
// output is written.
var coreStages = []Stage{StageLoad, StageAggregate, StageLink, StageForm}

// Job models the database representation of a build job.
type Job struct {
	JobID           string         `json:"job_id"`
	Inputs          pq.StringArray `json:"inputs"`
	OutputPath      string         `json:"output_path"`
	Windows         pq.Int64Array  `json:"windows"`
	DryRun          bool           `json:"dry_run"`
	Status          JobStatus      `json:"status"`
	StatusMessage   *string        `json:"status_message,omitempty"`
	ProgressCurrent int            `json:"progress_current"`
	ProgressTotal   int            `json:"progress_total"`
	RowsWritten     int            `json:"rows_written"`
	LastError       *string        `json:"last_error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// JobSpec describes the work to be performed by the runner.
type JobSpec struct {
	JobID      string
	Inputs     []string
	OutputPath string
	Windows    []int
	DryRun     bool
}

// Result summarizes a finished build.
type Result struct {
	JobID            string    `json:"job_id"`
	Files            []string  `json:"files"`
	Plays            int       `json:"plays"`
	TeamGames        int       `json:"team_games"`
	Games            int       `json:"games"`
	MissingOpponents []string  `json:"missing_opponents,omitempty"`
	Windows          []int     `json:"windows"`
	OutputPath       string    `json:"output_path,omitempty"`
	DryRun           bool      `json:"dry_run"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnJobStart(spec JobSpec)
	OnStageComplete(stage Stage, rows int)
	OnProgress(message string, current int, total int)
	OnJobComplete(result *Result)
	OnJobError(err error)
}

// Sink receives the feature table after the CSV is committed.
type Sink interface {
	Name() string
	Write(ctx context.Context, result *Result, rows []features.FormRow) error
}

// Request represents a build invocation from an API caller. Empty fields
// take the service defaults.
type Request struct {
	Inputs     []string `json:"inputs"`
	OutputPath string   `json:"output_path"`
	Windows    []int    `json:"windows"`
	DryRun     bool     `json:"dry_run"`
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveJob *Job   `json:"active_job,omitempty"`
	History   []*Job `json:"recent_jobs,omitempty"`
}

// EventType classifies a progress event.
type EventType string

const (
	EventStarted   EventType = "started"
	EventStage     EventType = "stage"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// ProgressEvent is pushed to live subscribers while a job runs.
type ProgressEvent struct {
	JobID     string    `json:"job_id"`
	Type      EventType `json:"type"`
	Stage     Stage     `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Rows      int       `json:"rows,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster fans progress events out to live subscribers.
type Broadcaster interface {
	Broadcast(event ProgressEvent)
}

// progressUnits is the number of OnProgress steps a spec produces.
func progressUnits(spec JobSpec, sinks int) int {
	if spec.DryRun {
		return len(coreStages)
	}
	return len(coreStages) + 1 + sinks
}

func toInt64s(values []int) pq.Int64Array {
	out := make(pq.Int64Array, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}

func toInts(values pq.Int64Array) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}
