package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/events"
	"github.com/phrazzld/tasker-api/internal/lifecycle"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/phrazzld/tasker-api/internal/redact"
	"github.com/phrazzld/tasker-api/internal/store"
)

// MaxTimerSeconds is the longest execution a caller may request.
const MaxTimerSeconds = 86400

// ErrInvalidTimer is wrapped by the validation error for an out-of-range timer.
var ErrInvalidTimer = errors.New("invalid timer")

// ExecutionScheduler submits a task for deferred completion.
// *execution.Scheduler implements it.
type ExecutionScheduler interface {
	Submit(ctx context.Context, taskID uuid.UUID, durationSeconds int) error
}

// CreateTaskInput carries a create request. ForkFromID, when it is a valid
// identifier, switches the request to the fork path.
type CreateTaskInput struct {
	Name       string
	Status     string
	Timer      *int
	ForkFromID string
}

// UpdateTaskInput carries an update request. Nil fields are left untouched.
type UpdateTaskInput struct {
	Name   *string
	Status *string
	Timer  *int
}

// TaskService defines the task use cases.
type TaskService interface {
	// CreateTask creates a task for ownerID, or forks one of the owner's tasks.
	CreateTask(ctx context.Context, ownerID uuid.UUID, input CreateTaskInput) (*domain.Task, error)

	// GetTask retrieves one of the owner's tasks.
	GetTask(ctx context.Context, ownerID uuid.UUID, rawID string) (*domain.Task, error)

	// ListTasks lists the owner's tasks oldest first. Unknown filter tokens
	// list every task.
	ListTasks(ctx context.Context, ownerID uuid.UUID, rawFilter string) ([]*domain.Task, error)

	// UpdateTask changes the name and/or status of one of the owner's tasks.
	UpdateTask(ctx context.Context, ownerID uuid.UUID, rawID string, input UpdateTaskInput) (*domain.Task, error)

	// DeleteTask removes one of the owner's tasks.
	DeleteTask(ctx context.Context, ownerID uuid.UUID, rawID string) error
}

// TaskServiceConfig holds the tunables of the task service.
type TaskServiceConfig struct {
	// DefaultRuntimeSeconds is used when a request moves a task to Running
	// without a timer.
	DefaultRuntimeSeconds int
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	tasks          store.TaskStore
	db             *sql.DB
	lifecycle      *lifecycle.Lifecycle
	scheduler      ExecutionScheduler
	eventEmitter   events.EventEmitter
	defaultRuntime int
	logger         *slog.Logger
}

var _ TaskService = (*taskServiceImpl)(nil)

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil. A nil db
// runs updates without a transaction.
func NewTaskService(
	tasks store.TaskStore,
	db *sql.DB,
	lc *lifecycle.Lifecycle,
	scheduler ExecutionScheduler,
	eventEmitter events.EventEmitter,
	cfg TaskServiceConfig,
	logger *slog.Logger,
) (TaskService, error) {
	if tasks == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "task store cannot be nil"}
	}
	if lc == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "lifecycle cannot be nil"}
	}
	if scheduler == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "scheduler cannot be nil"}
	}
	if eventEmitter == nil {
		eventEmitter = events.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultRuntimeSeconds < 0 {
		cfg.DefaultRuntimeSeconds = 0
	}

	return &taskServiceImpl{
		tasks:          tasks,
		db:             db,
		lifecycle:      lc,
		scheduler:      scheduler,
		eventEmitter:   eventEmitter,
		defaultRuntime: cfg.DefaultRuntimeSeconds,
		logger:         logger.With(slog.String("component", "task_service")),
	}, nil
}

// CreateTask implements TaskService.CreateTask
func (s *taskServiceImpl) CreateTask(
	ctx context.Context,
	ownerID uuid.UUID,
	input CreateTaskInput,
) (*domain.Task, error) {
	if domain.IsValidIdentifier(input.ForkFromID) {
		return s.forkTask(ctx, ownerID, uuid.MustParse(input.ForkFromID))
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	status, err := s.lifecycle.ValidateCreateStatus(input.Status)
	if err != nil {
		return nil, err
	}
	if err := validateTimer(input.Timer); err != nil {
		return nil, err
	}

	task, err := domain.NewTask(ownerID, input.Name, status)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		if errors.Is(err, store.ErrTaskNameExists) {
			log.Debug("task name already used by owner", slog.String("owner_id", ownerID.String()))
		} else {
			log.Error("failed to create task", slog.String("error", redact.Error(err)))
		}
		return nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("status", string(task.Status)))
	s.emit(ctx, events.TypeTaskCreated, task.ID, map[string]any{"status": task.Status})

	if s.lifecycle.RequiresScheduling(domain.TaskStatusCreated, task.Status) {
		if err := s.schedule(ctx, task.ID, input.Timer); err != nil {
			return nil, err
		}
	}

	return task, nil
}

// forkTask copies the definition of one of the owner's tasks into a new
// Created task. Status and timer from the request do not apply.
func (s *taskServiceImpl) forkTask(ctx context.Context, ownerID, sourceID uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	source, err := s.tasks.GetByID(ctx, sourceID, ownerID)
	if err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) {
			log.Error("failed to load task to fork", slog.String("error", redact.Error(err)))
		}
		return nil, NewTaskServiceError("fork_task", "failed to load source task", err)
	}

	forked, err := source.Fork()
	if err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, forked); err != nil {
		if !errors.Is(err, store.ErrTaskNameExists) {
			log.Error("failed to save forked task", slog.String("error", redact.Error(err)))
		}
		return nil, NewTaskServiceError("fork_task", "failed to save forked task", err)
	}

	log.Info("task forked",
		slog.String("task_id", forked.ID.String()),
		slog.String("source_task_id", sourceID.String()))
	s.emit(ctx, events.TypeTaskForked, forked.ID, map[string]any{"source_task_id": sourceID})

	return forked, nil
}

// GetTask implements TaskService.GetTask
func (s *taskServiceImpl) GetTask(ctx context.Context, ownerID uuid.UUID, rawID string) (*domain.Task, error) {
	id, err := domain.ParseIdentifier("task_id", rawID)
	if err != nil {
		return nil, err
	}

	task, err := s.tasks.GetByID(ctx, id, ownerID)
	if err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task",
				slog.String("task_id", rawID),
				slog.String("error", redact.Error(err)))
		}
		return nil, NewTaskServiceError("get_task", "failed to retrieve task", err)
	}

	return task, nil
}

// ListTasks implements TaskService.ListTasks
func (s *taskServiceImpl) ListTasks(
	ctx context.Context,
	ownerID uuid.UUID,
	rawFilter string,
) ([]*domain.Task, error) {
	filter := s.lifecycle.ParseFilter(rawFilter)

	tasks, err := s.tasks.List(ctx, ownerID, filter)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list tasks",
			slog.String("error", redact.Error(err)))
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}

	return tasks, nil
}

// UpdateTask implements TaskService.UpdateTask
func (s *taskServiceImpl) UpdateTask(
	ctx context.Context,
	ownerID uuid.UUID,
	rawID string,
	input UpdateTaskInput,
) (*domain.Task, error) {
	id, err := domain.ParseIdentifier("task_id", rawID)
	if err != nil {
		return nil, err
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		previous domain.TaskStatus
		updated  *domain.Task
	)
	err = s.inTx(ctx, func(ctx context.Context, tasks store.TaskStore) error {
		current, err := tasks.GetByID(ctx, id, ownerID)
		if err != nil {
			return err
		}
		previous = current.Status

		patch, err := s.buildPatch(input)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			updated = current
			return nil
		}

		updated, err = tasks.Update(ctx, id, ownerID, patch)
		return err
	})
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			return nil, vErr
		}
		if !errors.Is(err, store.ErrTaskNotFound) && !errors.Is(err, store.ErrTaskNameExists) {
			log.Error("failed to update task",
				slog.String("task_id", rawID),
				slog.String("error", redact.Error(err)))
		}
		return nil, NewTaskServiceError("update_task", "failed to update task", err)
	}

	log.Info("task updated",
		slog.String("task_id", id.String()),
		slog.String("status", string(updated.Status)))
	s.emit(ctx, events.TypeTaskUpdated, id, map[string]any{
		"name":            updated.Name,
		"status":          updated.Status,
		"previous_status": previous,
	})

	if input.Status != nil && s.lifecycle.RequiresScheduling(previous, updated.Status) {
		if err := s.schedule(ctx, id, input.Timer); err != nil {
			return nil, err
		}
	}

	return updated, nil
}

// buildPatch validates the update input against the update-path rules.
func (s *taskServiceImpl) buildPatch(input UpdateTaskInput) (domain.TaskPatch, error) {
	var patch domain.TaskPatch

	if input.Status != nil {
		status, err := s.lifecycle.ValidateUpdateStatus(*input.Status)
		if err != nil {
			return patch, err
		}
		patch.Status = &status
	}

	if input.Name != nil {
		name := domain.NormalizeTaskName(*input.Name)
		if err := domain.ValidateTaskName(name); err != nil {
			return patch, err
		}
		patch.Name = &name
	}

	if err := validateTimer(input.Timer); err != nil {
		return patch, err
	}

	return patch, nil
}

// DeleteTask implements TaskService.DeleteTask
func (s *taskServiceImpl) DeleteTask(ctx context.Context, ownerID uuid.UUID, rawID string) error {
	id, err := domain.ParseIdentifier("task_id", rawID)
	if err != nil {
		return err
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.tasks.Delete(ctx, id, ownerID); err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) {
			log.Error("failed to delete task",
				slog.String("task_id", rawID),
				slog.String("error", redact.Error(err)))
		}
		return NewTaskServiceError("delete_task", "failed to delete task", err)
	}

	log.Info("task deleted", slog.String("task_id", id.String()))
	s.emit(ctx, events.TypeTaskDeleted, id, nil)
	return nil
}

// schedule submits the task with the requested timer or the default runtime.
func (s *taskServiceImpl) schedule(ctx context.Context, taskID uuid.UUID, timer *int) error {
	duration := s.defaultRuntime
	if timer != nil {
		duration = *timer
	}

	if err := s.scheduler.Submit(ctx, taskID, duration); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to schedule task execution",
			slog.String("task_id", taskID.String()),
			slog.String("error", redact.Error(err)))
		return NewTaskServiceError("schedule_execution", "failed to schedule task execution", err)
	}

	s.emit(ctx, events.TypeTaskExecutionScheduled, taskID, map[string]any{"duration_seconds": duration})
	return nil
}

// inTx runs fn with a transaction-bound store, or with the plain store when
// the service has no database handle.
func (s *taskServiceImpl) inTx(ctx context.Context, fn func(ctx context.Context, tasks store.TaskStore) error) error {
	if s.db == nil {
		return fn(ctx, s.tasks)
	}
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, s.tasks.WithTx(tx))
	})
}

// emit publishes an event. Failures are logged and never fail the operation.
func (s *taskServiceImpl) emit(ctx context.Context, eventType string, taskID uuid.UUID, payload any) {
	event, err := events.NewEvent(eventType, taskID, payload)
	if err == nil {
		err = s.eventEmitter.EmitEvent(ctx, event)
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to emit event",
			slog.String("event_type", eventType),
			slog.String("task_id", taskID.String()),
			slog.String("error", redact.Error(err)))
	}
}

func validateTimer(timer *int) error {
	if timer == nil {
		return nil
	}
	if *timer < 0 || *timer > MaxTimerSeconds {
		return domain.NewValidationError("timer", "must be between 0 and 86400 seconds", ErrInvalidTimer)
	}
	return nil
}
