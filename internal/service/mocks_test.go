package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/events"
	"github.com/phrazzld/tasker-api/internal/store"
)

// MockTaskStore is an in-memory store.TaskStore that enforces per-owner
// name uniqueness. Fn fields override single methods.
type MockTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
	calls int

	CreateFn func(ctx context.Context, task *domain.Task) error
	GetFn    func(ctx context.Context, id, ownerID uuid.UUID) (*domain.Task, error)
	UpdateFn func(ctx context.Context, id, ownerID uuid.UUID, patch domain.TaskPatch) (*domain.Task, error)
	DeleteFn func(ctx context.Context, id, ownerID uuid.UUID) error
	ListFn   func(ctx context.Context, ownerID uuid.UUID, filter *domain.TaskStatus) ([]*domain.Task, error)
}

var _ store.TaskStore = (*MockTaskStore)(nil)

func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (m *MockTaskStore) touch() {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

// Calls reports how many store methods were invoked.
func (m *MockTaskStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockTaskStore) nameTaken(ownerID uuid.UUID, name string, except uuid.UUID) bool {
	for _, t := range m.tasks {
		if t.OwnerID == ownerID && t.Name == name && t.ID != except {
			return true
		}
	}
	return false
}

func (m *MockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	m.touch()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTaken(task.OwnerID, task.Name, uuid.Nil) {
		return store.ErrTaskNameExists
	}
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m *MockTaskStore) GetByID(ctx context.Context, id, ownerID uuid.UUID) (*domain.Task, error) {
	m.touch()
	if m.GetFn != nil {
		return m.GetFn(ctx, id, ownerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTaskStore) GetByIDUnscoped(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	m.touch()
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTaskStore) List(ctx context.Context, ownerID uuid.UUID, filter *domain.TaskStatus) ([]*domain.Task, error) {
	m.touch()
	if m.ListFn != nil {
		return m.ListFn(ctx, ownerID, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Task, 0)
	for _, t := range m.tasks {
		if t.OwnerID != ownerID || (filter != nil && t.Status != *filter) {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MockTaskStore) Update(
	ctx context.Context,
	id, ownerID uuid.UUID,
	patch domain.TaskPatch,
) (*domain.Task, error) {
	m.touch()
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, id, ownerID, patch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, store.ErrTaskNotFound
	}
	if patch.Name != nil {
		if m.nameTaken(ownerID, *patch.Name, id) {
			return nil, store.ErrTaskNameExists
		}
		t.Name = *patch.Name
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	cp := *t
	return &cp, nil
}

func (m *MockTaskStore) CompleteIfRunning(ctx context.Context, id uuid.UUID) (bool, error) {
	m.touch()
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.Status != domain.TaskStatusRunning {
		return false, nil
	}
	t.Status = domain.TaskStatusCompleted
	return true, nil
}

func (m *MockTaskStore) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	m.touch()
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id, ownerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return store.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *MockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return m
}

// Count returns the number of stored tasks.
func (m *MockTaskStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// submission is one recorded ExecutionScheduler.Submit call.
type submission struct {
	TaskID   uuid.UUID
	Duration int
}

// MockScheduler records submissions.
type MockScheduler struct {
	mu          sync.Mutex
	submissions []submission
	SubmitFn    func(ctx context.Context, taskID uuid.UUID, durationSeconds int) error
}

func (m *MockScheduler) Submit(ctx context.Context, taskID uuid.UUID, durationSeconds int) error {
	if m.SubmitFn != nil {
		if err := m.SubmitFn(ctx, taskID, durationSeconds); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, submission{TaskID: taskID, Duration: durationSeconds})
	return nil
}

func (m *MockScheduler) Submissions() []submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]submission(nil), m.submissions...)
}

// MockEventEmitter records emitted event types.
type MockEventEmitter struct {
	mu     sync.Mutex
	events []*events.Event
	Err    error
}

func (m *MockEventEmitter) EmitEvent(ctx context.Context, event *events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.Err
}

func (m *MockEventEmitter) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

// MockUserStore is an in-memory store.UserStore.
type MockUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User

	CreateFn func(ctx context.Context, user *domain.User) error
}

var _ store.UserStore = (*MockUserStore)(nil)

func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (m *MockUserStore) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return store.ErrUsernameExists
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (m *MockUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return m
}

// plainHasher "hashes" by prefixing, so tests stay fast.
type plainHasher struct{}

var errMismatch = errors.New("mismatch")

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Compare(hashed, password string) error {
	if hashed != "hashed:"+password {
		return errMismatch
	}
	return nil
}
