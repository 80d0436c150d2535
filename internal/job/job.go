package job

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a job.
type Status string

// Possible job status values
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrAlreadyScheduled is returned by Submit when the task already has a
// pending or processing job. Callers treat it as a no-op.
var ErrAlreadyScheduled = errors.New("task already has an active job")

// Job is a persisted request to execute a task once RunAt has passed.
type Job struct {
	ID              uuid.UUID
	TaskID          uuid.UUID
	DurationSeconds int
	Status          Status
	Attempts        int
	ErrorMessage    string
	// RunAt is the not-before instant: submit time plus the duration.
	RunAt     time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a pending job for taskID that becomes due durationSeconds
// after now.
func New(taskID uuid.UUID, durationSeconds int, now time.Time) *Job {
	now = now.UTC()
	return &Job{
		ID:              uuid.New(),
		TaskID:          taskID,
		DurationSeconds: durationSeconds,
		Status:          StatusPending,
		RunAt:           now.Add(time.Duration(durationSeconds) * time.Second),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Store defines the persistence the runner needs.
type Store interface {
	// SaveJob inserts a new job. Returns an error wrapping store.ErrDuplicate
	// when the task already has an active job.
	SaveJob(ctx context.Context, job *Job) error

	// ClaimJob moves a pending job to processing and increments its attempts.
	// Returns false when the job is no longer pending.
	ClaimJob(ctx context.Context, id uuid.UUID) (bool, error)

	// UpdateJobStatus sets the status and error message of a job.
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status Status, errorMsg string) error

	// GetPendingJobs returns pending jobs due at or before dueBefore, oldest
	// RunAt first. A zero dueBefore returns every pending job.
	GetPendingJobs(ctx context.Context, dueBefore time.Time) ([]*Job, error)

	// GetProcessingJobs returns processing jobs not updated within olderThan.
	// A zero olderThan returns every processing job.
	GetProcessingJobs(ctx context.Context, olderThan time.Duration) ([]*Job, error)
}

// Handler executes a claimed job.
type Handler interface {
	HandleJob(ctx context.Context, job *Job) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, job *Job) error

// HandleJob calls f(ctx, job).
func (f HandlerFunc) HandleJob(ctx context.Context, job *Job) error {
	return f(ctx, job)
}
