package execution

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/events"
	"github.com/phrazzld/tasker-api/internal/job"
	"github.com/phrazzld/tasker-api/internal/store"
)

// mockTasks is a TaskCompleter backed by a map.
type mockTasks struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	GetFn      func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	CompleteFn func(ctx context.Context, id uuid.UUID) (bool, error)
}

func newMockTasks(tasks ...*domain.Task) *mockTasks {
	m := &mockTasks{tasks: make(map[uuid.UUID]*domain.Task)}
	for _, t := range tasks {
		m.tasks[t.ID] = t
	}
	m.GetFn = func(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		t, ok := m.tasks[id]
		if !ok {
			return nil, store.ErrTaskNotFound
		}
		cp := *t
		return &cp, nil
	}
	m.CompleteFn = func(ctx context.Context, id uuid.UUID) (bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		t, ok := m.tasks[id]
		if !ok || t.Status != domain.TaskStatusRunning {
			return false, nil
		}
		t.Status = domain.TaskStatusCompleted
		return true, nil
	}
	return m
}

func (m *mockTasks) GetByIDUnscoped(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return m.GetFn(ctx, id)
}

func (m *mockTasks) CompleteIfRunning(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.CompleteFn(ctx, id)
}

func (m *mockTasks) status(id uuid.UUID) domain.TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id].Status
}

func (m *mockTasks) setStatus(id uuid.UUID, status domain.TaskStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[id].Status = status
}

func (m *mockTasks) remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
}

// mockSubmitter records submitted jobs.
type mockSubmitter struct {
	mu        sync.Mutex
	submitted []*job.Job
	SubmitFn  func(ctx context.Context, j *job.Job) error
}

func (m *mockSubmitter) Submit(ctx context.Context, j *job.Job) error {
	if m.SubmitFn != nil {
		if err := m.SubmitFn(ctx, j); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, j)
	return nil
}

func (m *mockSubmitter) jobs() []*job.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*job.Job(nil), m.submitted...)
}

// recordingEmitter keeps every emitted event.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recordingEmitter) EmitEvent(ctx context.Context, event *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEmitter) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}
