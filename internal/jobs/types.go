package jobs

import (
	"context"
	"fmt"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeNotionSync mirrors a user's ledger into Notion.
	JobTypeNotionSync JobType = "notion_sync"
	// JobTypeBackupCSV writes the CSV export of a user's ledger to GCS.
	JobTypeBackupCSV JobType = "backup_csv"
	// JobTypeAnalyticsExport streams a user's ledger into BigQuery.
	JobTypeAnalyticsExport JobType = "analytics_export"
)

// Types lists every job type that can be enqueued.
var Types = []JobType{JobTypeNotionSync, JobTypeBackupCSV, JobTypeAnalyticsExport}

// ParseJobType validates s as a JobType.
func ParseJobType(s string) (JobType, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("tipo de trabajo desconocido: %q", s)
}

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// Job is one unit of background work on behalf of a user.
type Job struct {
	// ID is the unique identifier for this job.
	ID string `json:"id"`

	// Type selects the handler.
	Type JobType `json:"type"`

	// UserID is the owner of the ledger the job works on.
	UserID int64 `json:"userId"`

	// DryRun asks the handler to report without writing, where supported.
	DryRun bool `json:"dryRun,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Result is a short summary written by the handler on success.
	Result string `json:"result,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Error contains error details if the last attempt failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retryCount"`
	MaxRetries int `json:"maxRetries"`
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// Publish enqueues job, filling ID, Status and CreatedAt when empty.
	Publish(ctx context.Context, job *Job) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job and returns a short result summary. A non-nil
// error makes the job eligible for retry.
type JobHandler func(ctx context.Context, job *Job) (string, error)

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// UserID filters jobs by owner. Zero means every user.
	UserID int64

	// Type filters jobs by type.
	Type JobType

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
