package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/events"
	"github.com/phrazzld/tasker-api/internal/job"
	"github.com/phrazzld/tasker-api/internal/lifecycle"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runningTask(t *testing.T) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(uuid.New(), "work", domain.TaskStatusRunning)
	require.NoError(t, err)
	return task
}

func newTestScheduler(t *testing.T, tasks TaskCompleter) (*Scheduler, *recordingEmitter) {
	t.Helper()
	log, _ := logger.NewBufferLogger()
	emitter := &recordingEmitter{}
	s, err := NewScheduler(tasks, emitter, log)
	require.NoError(t, err)
	return s, emitter
}

func TestNewScheduler_NilStore(t *testing.T) {
	_, err := NewScheduler(nil, nil, nil)
	assert.ErrorIs(t, err, ErrNilTaskStore)
}

func TestSubmit(t *testing.T) {
	s, _ := newTestScheduler(t, newMockTasks())
	sub := &mockSubmitter{}
	s.SetSubmitter(sub)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return now }

	taskID := uuid.New()
	require.NoError(t, s.Submit(context.Background(), taskID, 7))

	jobs := sub.jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, taskID, jobs[0].TaskID)
	assert.Equal(t, 7, jobs[0].DurationSeconds)
	assert.Equal(t, now.Add(7*time.Second), jobs[0].RunAt)
	assert.Equal(t, job.StatusPending, jobs[0].Status)
}

func TestSubmit_AlreadyScheduledIsNoop(t *testing.T) {
	s, _ := newTestScheduler(t, newMockTasks())
	s.SetSubmitter(&mockSubmitter{SubmitFn: func(ctx context.Context, j *job.Job) error {
		return fmt.Errorf("%w: task %s", job.ErrAlreadyScheduled, j.TaskID)
	}})

	assert.NoError(t, s.Submit(context.Background(), uuid.New(), 1))
}

func TestSubmit_Errors(t *testing.T) {
	s, _ := newTestScheduler(t, newMockTasks())
	assert.ErrorIs(t, s.Submit(context.Background(), uuid.New(), 1), ErrNoSubmitter)

	boom := errors.New("disk full")
	s.SetSubmitter(&mockSubmitter{SubmitFn: func(ctx context.Context, j *job.Job) error { return boom }})
	assert.ErrorIs(t, s.Submit(context.Background(), uuid.New(), 1), boom)

	assert.ErrorIs(t, s.Submit(context.Background(), uuid.New(), -1), domain.ErrValidation)
}

func TestExecute_CompletesRunningTask(t *testing.T) {
	task := runningTask(t)
	tasks := newMockTasks(task)
	s, emitter := newTestScheduler(t, tasks)

	require.NoError(t, s.Execute(context.Background(), task.ID, 0))

	assert.Equal(t, domain.TaskStatusCompleted, tasks.status(task.ID))
	assert.Equal(t, []string{events.TypeTaskCompleted}, emitter.types())
}

func TestExecute_WaitsBeforeCompleting(t *testing.T) {
	task := runningTask(t)
	tasks := newMockTasks(task)
	s, _ := newTestScheduler(t, tasks)

	start := time.Now()
	require.NoError(t, s.Execute(context.Background(), task.ID, 50*time.Millisecond))

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, domain.TaskStatusCompleted, tasks.status(task.ID))
}

func TestExecute_NotRunningIsNoop(t *testing.T) {
	for _, status := range []domain.TaskStatus{
		domain.TaskStatusCreated,
		domain.TaskStatusCompleted,
		domain.TaskStatusFailed,
	} {
		t.Run(string(status), func(t *testing.T) {
			task := runningTask(t)
			tasks := newMockTasks(task)
			tasks.setStatus(task.ID, status)
			completeCalls := 0
			tasks.CompleteFn = func(ctx context.Context, id uuid.UUID) (bool, error) {
				completeCalls++
				return true, nil
			}
			s, emitter := newTestScheduler(t, tasks)

			start := time.Now()
			require.NoError(t, s.Execute(context.Background(), task.ID, time.Hour))

			assert.Less(t, time.Since(start), time.Second, "a task that is not running is not waited on")
			assert.Zero(t, completeCalls)
			assert.Equal(t, status, tasks.status(task.ID))
			assert.Empty(t, emitter.types())
		})
	}
}

func TestExecute_UsesInjectedLifecycle(t *testing.T) {
	task := runningTask(t)
	tasks := newMockTasks(task)
	s, emitter := newTestScheduler(t, tasks)
	s.SetLifecycle(nil)
	s.SetLifecycle(lifecycle.New(lifecycle.NewVocabulary(map[domain.TaskStatus]string{
		domain.TaskStatusCreated:   "Queued",
		domain.TaskStatusRunning:   "In progress",
		domain.TaskStatusCompleted: "Done",
		domain.TaskStatusFailed:    "Broken",
	})))

	require.NoError(t, s.Execute(context.Background(), task.ID, 0))

	assert.Equal(t, domain.TaskStatusCompleted, tasks.status(task.ID))
	assert.Equal(t, []string{events.TypeTaskCompleted}, emitter.types())
}

func TestExecute_TaskVanished(t *testing.T) {
	s, _ := newTestScheduler(t, newMockTasks())

	err := s.Execute(context.Background(), uuid.New(), 0)
	assert.ErrorIs(t, err, ErrTaskVanished)
}

func TestExecute_DeletedDuringWait(t *testing.T) {
	task := runningTask(t)
	tasks := newMockTasks(task)
	s, emitter := newTestScheduler(t, tasks)

	go func() {
		time.Sleep(10 * time.Millisecond)
		tasks.remove(task.ID)
	}()

	require.NoError(t, s.Execute(context.Background(), task.ID, 50*time.Millisecond))
	assert.Empty(t, emitter.types())
}

func TestExecute_CompletionFailed(t *testing.T) {
	task := runningTask(t)
	tasks := newMockTasks(task)
	tasks.CompleteFn = func(ctx context.Context, id uuid.UUID) (bool, error) {
		return false, errors.New("connection refused")
	}
	s, _ := newTestScheduler(t, tasks)

	err := s.Execute(context.Background(), task.ID, 0)
	assert.ErrorIs(t, err, ErrCompletionFailed)
}

func TestExecute_CancelledDuringWait(t *testing.T) {
	task := runningTask(t)
	tasks := newMockTasks(task)
	s, _ := newTestScheduler(t, tasks)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := s.Execute(ctx, task.ID, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.TaskStatusRunning, tasks.status(task.ID))
}

func TestHandleJob_WaitsOnlyRemainingGap(t *testing.T) {
	task := runningTask(t)
	tasks := newMockTasks(task)
	s, _ := newTestScheduler(t, tasks)

	j := job.New(task.ID, 3600, time.Now().Add(-2*time.Hour))

	done := make(chan error, 1)
	go func() { done <- s.HandleJob(context.Background(), j) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("overdue job should not wait")
	}
	assert.Equal(t, domain.TaskStatusCompleted, tasks.status(task.ID))
}
