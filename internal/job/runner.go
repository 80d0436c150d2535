package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/redact"
	"github.com/phrazzld/tasker-api/internal/store"
)

// RunnerConfig holds configuration for the job runner
type RunnerConfig struct {
	// WorkerCount determines how many jobs execute concurrently
	WorkerCount int

	// QueueSize is the buffer between the delay queue and the workers
	QueueSize int

	// StuckJobAge is how long a job may stay processing before the sweep
	// resets it to pending
	StuckJobAge time.Duration

	// SweepInterval is how often due pending jobs and stuck jobs are re-queued.
	// If zero, defaults to 30 seconds
	SweepInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:   4,
		QueueSize:     100,
		StuckJobAge:   30 * time.Minute,
		SweepInterval: 30 * time.Second,
	}
}

// Runner persists, schedules and executes jobs.
type Runner struct {
	store   Store
	handler Handler
	queue   *Queue
	delay   *DelayQueue
	config  RunnerConfig
	logger  *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	// tracked holds ids that are queued or executing in this process.
	mu      sync.Mutex
	tracked map[uuid.UUID]struct{}

	errHandler func(job *Job, err error)
}

// NewRunner creates a Runner that executes jobs with handler.
func NewRunner(store Store, handler Handler, config RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "job_runner"))

	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			slog.Int("specified_count", config.WorkerCount),
			slog.Int("default_count", 1))
		config.WorkerCount = 1
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		store:      store,
		handler:    handler,
		queue:      NewQueue(config.QueueSize, logger),
		delay:      NewDelayQueue(),
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancelFunc: cancel,
		tracked:    make(map[uuid.UUID]struct{}),
		errHandler: func(job *Job, err error) {
			logger.Error("job execution failed",
				slog.String("job_id", job.ID.String()),
				slog.String("task_id", job.TaskID.String()),
				slog.String("error", redact.Error(err)))
		},
	}
}

// SetErrorHandler replaces the hook called after a job fails.
func (r *Runner) SetErrorHandler(handler func(job *Job, err error)) {
	r.errHandler = handler
}

// Submit persists job and schedules it for its RunAt instant.
// Returns ErrAlreadyScheduled when the task already has an active job.
func (r *Runner) Submit(ctx context.Context, job *Job) error {
	if err := r.store.SaveJob(ctx, job); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("%w: task %s", ErrAlreadyScheduled, job.TaskID)
		}
		return fmt.Errorf("failed to save job: %w", err)
	}

	r.delay.Schedule(job)
	return nil
}

// Start recovers unfinished jobs and starts the delay loop, the workers and
// the sweep.
func (r *Runner) Start() error {
	if err := r.Recover(r.ctx); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.delay.Run(r.ctx, r.dispatch)
	}()

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.sweepMonitor()

	return nil
}

// Stop cancels in-flight work, waits for the goroutines and closes the queue.
// Interrupted jobs stay processing and are recovered on the next Start.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.queue.Close()
}

// Recover reschedules every pending job and resets every processing job
// left behind by a previous process.
func (r *Runner) Recover(ctx context.Context) error {
	pending, err := r.store.GetPendingJobs(ctx, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to get pending jobs: %w", err)
	}

	processing, err := r.store.GetProcessingJobs(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing jobs: %w", err)
	}

	r.logger.Info("recovering unfinished jobs",
		slog.Int("pending_count", len(pending)),
		slog.Int("processing_count", len(processing)))

	for _, job := range pending {
		r.delay.Schedule(job)
	}

	for _, job := range processing {
		if err := r.store.UpdateJobStatus(ctx, job.ID, StatusPending, "reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing job status",
				slog.String("job_id", job.ID.String()),
				slog.String("error", redact.Error(err)))
			continue
		}
		job.Status = StatusPending
		r.delay.Schedule(job)
	}

	return nil
}

// dispatch moves a due job onto the work queue. A full queue leaves the job
// pending in the store for the sweep to pick up.
func (r *Runner) dispatch(job *Job) {
	if !r.track(job.ID) {
		r.logger.Debug("job already queued or running, skipping",
			slog.String("job_id", job.ID.String()))
		return
	}

	if err := r.queue.Enqueue(job); err != nil {
		r.untrack(job.ID)
		r.logger.Warn("failed to enqueue due job, leaving it for the sweep",
			slog.String("job_id", job.ID.String()),
			slog.String("task_id", job.TaskID.String()),
			slog.String("error", err.Error()))
	}
}

func (r *Runner) track(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tracked[id]; ok {
		return false
	}
	r.tracked[id] = struct{}{}
	return true
}

func (r *Runner) untrack(id uuid.UUID) {
	r.mu.Lock()
	delete(r.tracked, id)
	r.mu.Unlock()
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", slog.Int("worker_id", id))

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", slog.Int("worker_id", id))
			return
		case job, ok := <-r.queue.Jobs():
			if !ok {
				return
			}
			r.processJob(job, id)
		}
	}
}

// processJob claims a job, runs the handler and records the outcome.
func (r *Runner) processJob(job *Job, workerID int) {
	defer r.untrack(job.ID)

	// Outcome writes must land even when shutdown cancels the handler.
	storeCtx := context.WithoutCancel(r.ctx)
	log := r.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("task_id", job.TaskID.String()),
		slog.Int("worker_id", workerID),
	)

	claimed, err := r.store.ClaimJob(storeCtx, job.ID)
	if err != nil {
		log.Error("failed to claim job", slog.String("error", redact.Error(err)))
		return
	}
	if !claimed {
		log.Debug("job no longer pending, skipping")
		return
	}

	log.Info("processing job")

	err = r.handler.HandleJob(r.ctx, job)

	if err != nil && r.ctx.Err() != nil && errors.Is(err, context.Canceled) {
		log.Info("job interrupted by shutdown, will be recovered on restart")
		return
	}

	if err != nil {
		if updateErr := r.store.UpdateJobStatus(storeCtx, job.ID, StatusFailed, redact.Error(err)); updateErr != nil {
			log.Error("failed to update job status to failed",
				slog.String("error", redact.Error(updateErr)))
		}
		r.errHandler(job, err)
		return
	}

	if updateErr := r.store.UpdateJobStatus(storeCtx, job.ID, StatusCompleted, ""); updateErr != nil {
		log.Error("failed to update job status to completed",
			slog.String("error", redact.Error(updateErr)))
		return
	}
	log.Info("job completed")
}

// sweepMonitor periodically re-queues due pending jobs and resets jobs that
// have been processing for too long.
func (r *Runner) sweepMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.ctx)
		}
	}
}

// Sweep runs one pass of the periodic monitor.
func (r *Runner) Sweep(ctx context.Context) {
	if r.config.StuckJobAge > 0 {
		stuck, err := r.store.GetProcessingJobs(ctx, r.config.StuckJobAge)
		if err != nil {
			r.logger.Error("failed to check for stuck jobs", slog.String("error", redact.Error(err)))
		}
		for _, job := range stuck {
			if r.isTracked(job.ID) {
				continue
			}
			if err := r.store.UpdateJobStatus(ctx, job.ID, StatusPending,
				"reset after being stuck in processing state"); err != nil {
				r.logger.Error("failed to reset stuck job status",
					slog.String("job_id", job.ID.String()),
					slog.String("error", redact.Error(err)))
				continue
			}
			r.logger.Info("reset stuck job", slog.String("job_id", job.ID.String()))
			job.Status = StatusPending
			r.dispatch(job)
		}
	}

	due, err := r.store.GetPendingJobs(ctx, time.Now().UTC())
	if err != nil {
		r.logger.Error("failed to check for due jobs", slog.String("error", redact.Error(err)))
		return
	}
	for _, job := range due {
		r.dispatch(job)
	}
}

func (r *Runner) isTracked(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tracked[id]
	return ok
}
