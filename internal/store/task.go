package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
)

// TaskStore defines the interface for task persistence.
//
// Every owner-scoped method treats a task owned by someone else exactly like
// a missing one.
type TaskStore interface {
	// Create inserts a new task.
	// Returns ErrTaskNameExists if the owner already has a task with this name.
	// Uniqueness is enforced by the database, not by a prior read.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task owned by ownerID.
	// Returns ErrTaskNotFound if absent or owned by another user.
	GetByID(ctx context.Context, id, ownerID uuid.UUID) (*domain.Task, error)

	// GetByIDUnscoped retrieves a task regardless of owner.
	// Used by the execution callback, which only carries the task id.
	GetByIDUnscoped(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List returns the owner's tasks ordered by creation time, then id.
	// A nil filter returns every status. The result is never nil.
	List(ctx context.Context, ownerID uuid.UUID, filter *domain.TaskStatus) ([]*domain.Task, error)

	// Update writes only the fields set in patch and returns the updated task.
	// Returns ErrTaskNotFound or ErrTaskNameExists.
	Update(ctx context.Context, id, ownerID uuid.UUID, patch domain.TaskPatch) (*domain.Task, error)

	// CompleteIfRunning moves a task from Running to Completed.
	// Returns false without error when the task is gone or no longer Running.
	CompleteIfRunning(ctx context.Context, id uuid.UUID) (bool, error)

	// Delete removes a task owned by ownerID.
	// Returns ErrTaskNotFound if nothing was deleted.
	Delete(ctx context.Context, id, ownerID uuid.UUID) error

	// WithTx returns a TaskStore that runs its queries on tx.
	WithTx(tx *sql.Tx) TaskStore
}
