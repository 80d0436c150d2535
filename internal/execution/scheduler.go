package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/events"
	"github.com/phrazzld/tasker-api/internal/job"
	"github.com/phrazzld/tasker-api/internal/lifecycle"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/phrazzld/tasker-api/internal/redact"
	"github.com/phrazzld/tasker-api/internal/store"
)

// Execution errors
var (
	// ErrTaskVanished is returned when the task was deleted before its
	// execution ran. It is not retried.
	ErrTaskVanished = errors.New("task no longer exists")

	// ErrCompletionFailed is returned when the completed status could not be persisted.
	ErrCompletionFailed = errors.New("failed to persist task completion")

	// ErrNoSubmitter is returned by Submit before SetSubmitter has been called.
	ErrNoSubmitter = errors.New("execution scheduler has no submitter")

	ErrNilTaskStore = errors.New("task store cannot be nil")
)

// TaskCompleter is the part of the task store execution needs.
type TaskCompleter interface {
	GetByIDUnscoped(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	CompleteIfRunning(ctx context.Context, id uuid.UUID) (bool, error)
}

// Submitter accepts jobs for deferred execution. *job.Runner implements it.
type Submitter interface {
	Submit(ctx context.Context, j *job.Job) error
}

// Scheduler submits task executions and runs them when they become due.
type Scheduler struct {
	tasks     TaskCompleter
	submitter Submitter
	lifecycle *lifecycle.Lifecycle
	events    events.EventEmitter
	logger    *slog.Logger
	now       func() time.Time
}

var _ job.Handler = (*Scheduler)(nil)

// NewScheduler creates a Scheduler. A nil emitter discards events.
func NewScheduler(tasks TaskCompleter, emitter events.EventEmitter, logger *slog.Logger) (*Scheduler, error) {
	if tasks == nil {
		return nil, ErrNilTaskStore
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		tasks:     tasks,
		lifecycle: lifecycle.New(lifecycle.DefaultVocabulary()),
		events:    emitter,
		logger:    logger.With(slog.String("component", "execution_scheduler")),
		now:       time.Now,
	}, nil
}

// SetSubmitter wires the dispatcher. The dispatcher itself calls back into
// the Scheduler, so the two are connected after construction.
func (s *Scheduler) SetSubmitter(submitter Submitter) {
	s.submitter = submitter
}

// SetLifecycle replaces the lifecycle consulted before completing a task.
func (s *Scheduler) SetLifecycle(lc *lifecycle.Lifecycle) {
	if lc != nil {
		s.lifecycle = lc
	}
}

// Submit schedules taskID to complete durationSeconds from now. It returns
// once the job is persisted. Submitting a task that already has an active
// job is a no-op.
func (s *Scheduler) Submit(ctx context.Context, taskID uuid.UUID, durationSeconds int) error {
	if s.submitter == nil {
		return ErrNoSubmitter
	}
	if durationSeconds < 0 {
		return domain.NewValidationError("timer", "cannot be negative", nil)
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	j := job.New(taskID, durationSeconds, s.now())
	if err := s.submitter.Submit(ctx, j); err != nil {
		if errors.Is(err, job.ErrAlreadyScheduled) {
			log.Info("task already has a scheduled execution, ignoring resubmission",
				slog.String("task_id", taskID.String()))
			return nil
		}
		return fmt.Errorf("failed to submit execution for task %s: %w", taskID, err)
	}

	log.Debug("task execution scheduled",
		slog.String("task_id", taskID.String()),
		slog.String("job_id", j.ID.String()),
		slog.Time("run_at", j.RunAt))

	return nil
}

// HandleJob implements job.Handler. The dispatcher only delivers due jobs,
// so the remaining wait is normally zero.
func (s *Scheduler) HandleJob(ctx context.Context, j *job.Job) error {
	return s.Execute(ctx, j.TaskID, j.RunAt.Sub(s.now()))
}

// Execute waits for wait and then completes taskID if it is still Running.
// A task that is not Running when loaded is left alone without waiting.
// No store lock or transaction is held during the wait.
func (s *Scheduler) Execute(ctx context.Context, taskID uuid.UUID, wait time.Duration) error {
	log := s.logger.With(slog.String("task_id", taskID.String()))

	task, err := s.tasks.GetByIDUnscoped(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			log.Warn("task deleted before execution")
			return fmt.Errorf("%w: %s", ErrTaskVanished, taskID)
		}
		log.Error("failed to load task for execution", slog.String("error", redact.Error(err)))
		return fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	if !s.lifecycle.CanComplete(task.Status) {
		log.Info("task not running at execution time, nothing to complete",
			slog.String("status", string(task.Status)))
		return nil
	}

	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	completed, err := s.tasks.CompleteIfRunning(ctx, taskID)
	if err != nil {
		log.Error("failed to complete task", slog.String("error", redact.Error(err)))
		return fmt.Errorf("%w: %s: %v", ErrCompletionFailed, taskID, err)
	}
	if !completed {
		log.Info("task no longer running, nothing to complete")
		return nil
	}

	log.Info("task completed")
	s.emit(ctx, taskID)
	return nil
}

func (s *Scheduler) emit(ctx context.Context, taskID uuid.UUID) {
	event, err := events.NewEvent(events.TypeTaskCompleted, taskID, nil)
	if err == nil {
		err = s.events.EmitEvent(ctx, event)
	}
	if err != nil {
		s.logger.Warn("failed to emit task completed event",
			slog.String("task_id", taskID.String()),
			slog.String("error", redact.Error(err)))
	}
}
