package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/lifecycle"
	"github.com/phrazzld/tasker-api/internal/service"
)

// SignupRequest defines the payload for the signup endpoint.
type SignupRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenRequest defines the payload for the token endpoint.
type TokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// TokenResponse carries a freshly issued token pair.
type TokenResponse struct {
	// Access is the bearer token for the task endpoints
	Access string `json:"access"`

	// Refresh is exchanged for a new pair at /api/auth/refresh
	Refresh string `json:"refresh"`

	// ExpiresAt is the RFC 3339 time the access token expires
	ExpiresAt string `json:"expires_at"`
}

// CreateTaskRequest is the body of POST /api/tasks. A valid ForkTaskID
// turns the request into a fork and the other fields are ignored.
type CreateTaskRequest struct {
	Name       string `json:"name"`
	Status     string `json:"status,omitempty"`
	Timer      *int   `json:"timer,omitempty"`
	ForkTaskID string `json:"fork_task_id,omitempty"`
}

// ToInput converts the request to service input.
func (r CreateTaskRequest) ToInput() service.CreateTaskInput {
	return service.CreateTaskInput{
		Name:       r.Name,
		Status:     r.Status,
		Timer:      r.Timer,
		ForkFromID: r.ForkTaskID,
	}
}

// UpdateTaskRequest is the body of PUT /api/tasks/{id}. Absent fields are
// left unchanged.
type UpdateTaskRequest struct {
	Name   *string `json:"name,omitempty"`
	Status *string `json:"status,omitempty"`
	Timer  *int    `json:"timer,omitempty"`
}

// ToInput converts the request to service input.
func (r UpdateTaskRequest) ToInput() service.UpdateTaskInput {
	return service.UpdateTaskInput{
		Name:   r.Name,
		Status: r.Status,
		Timer:  r.Timer,
	}
}

// CreateTaskResponse acknowledges a created or forked task.
type CreateTaskResponse struct {
	TaskID  uuid.UUID `json:"task_id"`
	Message string    `json:"message"`
}

// TaskListItem is the list view of a task. Status is the wire code.
type TaskListItem struct {
	TaskID    uuid.UUID `json:"task_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskDetail is the single-task view. Status is the display label and
// StatusCode the wire code.
type TaskDetail struct {
	TaskID     uuid.UUID `json:"task_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	StatusCode string    `json:"status_code"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewTaskListItem projects a task into its list view.
func NewTaskListItem(task *domain.Task) TaskListItem {
	return TaskListItem{
		TaskID:    task.ID,
		Name:      task.Name,
		Status:    string(task.Status),
		CreatedAt: task.CreatedAt,
	}
}

// NewTaskListItems projects tasks in order. The result is never nil.
func NewTaskListItems(tasks []*domain.Task) []TaskListItem {
	items := make([]TaskListItem, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, NewTaskListItem(task))
	}
	return items
}

// NewTaskDetail projects a task into its detail view, labelling the status
// with lc's vocabulary.
func NewTaskDetail(task *domain.Task, lc *lifecycle.Lifecycle) TaskDetail {
	return TaskDetail{
		TaskID:     task.ID,
		Name:       task.Name,
		Status:     lc.Label(task.Status),
		StatusCode: string(task.Status),
		CreatedAt:  task.CreatedAt,
	}
}
