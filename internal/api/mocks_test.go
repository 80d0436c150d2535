package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/service"
)

type mockTaskService struct {
	CreateTaskFn func(ctx context.Context, ownerID uuid.UUID, input service.CreateTaskInput) (*domain.Task, error)
	GetTaskFn    func(ctx context.Context, ownerID uuid.UUID, rawID string) (*domain.Task, error)
	ListTasksFn  func(ctx context.Context, ownerID uuid.UUID, rawFilter string) ([]*domain.Task, error)
	UpdateTaskFn func(ctx context.Context, ownerID uuid.UUID, rawID string, input service.UpdateTaskInput) (*domain.Task, error)
	DeleteTaskFn func(ctx context.Context, ownerID uuid.UUID, rawID string) error
}

var _ service.TaskService = (*mockTaskService)(nil)

func (m *mockTaskService) CreateTask(ctx context.Context, ownerID uuid.UUID, input service.CreateTaskInput) (*domain.Task, error) {
	return m.CreateTaskFn(ctx, ownerID, input)
}

func (m *mockTaskService) GetTask(ctx context.Context, ownerID uuid.UUID, rawID string) (*domain.Task, error) {
	return m.GetTaskFn(ctx, ownerID, rawID)
}

func (m *mockTaskService) ListTasks(ctx context.Context, ownerID uuid.UUID, rawFilter string) ([]*domain.Task, error) {
	return m.ListTasksFn(ctx, ownerID, rawFilter)
}

func (m *mockTaskService) UpdateTask(
	ctx context.Context,
	ownerID uuid.UUID,
	rawID string,
	input service.UpdateTaskInput,
) (*domain.Task, error) {
	return m.UpdateTaskFn(ctx, ownerID, rawID, input)
}

func (m *mockTaskService) DeleteTask(ctx context.Context, ownerID uuid.UUID, rawID string) error {
	return m.DeleteTaskFn(ctx, ownerID, rawID)
}

type mockUserService struct {
	SignupFn       func(ctx context.Context, username, email, password string) (*domain.User, error)
	AuthenticateFn func(ctx context.Context, username, password string) (*domain.User, error)
	GetUserFn      func(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

var _ service.UserService = (*mockUserService)(nil)

func (m *mockUserService) Signup(ctx context.Context, username, email, password string) (*domain.User, error) {
	return m.SignupFn(ctx, username, email, password)
}

func (m *mockUserService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	return m.AuthenticateFn(ctx, username, password)
}

func (m *mockUserService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return m.GetUserFn(ctx, userID)
}
