package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/phrazzld/tasker-api/internal/store"
)

const taskColumns = "id, owner_id, name, status, created_at"

// TaskStore implements store.TaskStore on a SQL database.
type TaskStore struct {
	db      store.DBTX
	dialect Dialect
}

// NewTaskStore creates a TaskStore. A nil dialect means PostgreSQL.
func NewTaskStore(db store.DBTX, dialect Dialect) *TaskStore {
	if dialect == nil {
		dialect = PostgresDialect
	}
	return &TaskStore{db: db, dialect: dialect}
}

var _ store.TaskStore = (*TaskStore)(nil)

// WithTx implements store.TaskStore.WithTx
func (s *TaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &TaskStore{db: tx, dialect: s.dialect}
}

// Create implements store.TaskStore.Create
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := s.dialect.Rebind(`
		INSERT INTO tasks (id, owner_id, name, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`)

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.OwnerID,
		task.Name,
		string(task.Status),
		task.CreatedAt.UTC(),
	)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			log.Debug("task name already used by owner",
				"owner_id", task.OwnerID)
			return MapUniqueViolation(s.dialect, err, store.ErrTaskNameExists)
		}
		log.Error("failed to insert task",
			"task_id", task.ID,
			"error", err)
		return store.NewStoreError("task", "create", "failed to insert task", MapError(s.dialect, err))
	}

	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *TaskStore) GetByID(ctx context.Context, id, ownerID uuid.UUID) (*domain.Task, error) {
	query := s.dialect.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND owner_id = $2`)
	return s.getOne(ctx, query, id, ownerID)
}

// GetByIDUnscoped implements store.TaskStore.GetByIDUnscoped
func (s *TaskStore) GetByIDUnscoped(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := s.dialect.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`)
	return s.getOne(ctx, query, id)
}

func (s *TaskStore) getOne(ctx context.Context, query string, args ...any) (*domain.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContext(ctx).Error("failed to get task", "error", err)
		return nil, MapError(s.dialect, err)
	}
	return task, nil
}

// List implements store.TaskStore.List
func (s *TaskStore) List(
	ctx context.Context,
	ownerID uuid.UUID,
	filter *domain.TaskStatus,
) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1`
	args := []any{ownerID}
	if filter != nil {
		query += ` AND status = $2`
		args = append(args, string(*filter))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		log.Error("failed to query tasks", "owner_id", ownerID, "error", err)
		return nil, MapError(s.dialect, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", "error", err)
			return nil, MapError(s.dialect, err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows", "error", err)
		return nil, MapError(s.dialect, err)
	}

	return tasks, nil
}

// Update implements store.TaskStore.Update
func (s *TaskStore) Update(
	ctx context.Context,
	id, ownerID uuid.UUID,
	patch domain.TaskPatch,
) (*domain.Task, error) {
	log := logger.FromContext(ctx)

	var name, status sql.NullString
	if patch.Name != nil {
		name = sql.NullString{String: *patch.Name, Valid: true}
	}
	if patch.Status != nil {
		status = sql.NullString{String: string(*patch.Status), Valid: true}
	}

	query := s.dialect.Rebind(`
		UPDATE tasks
		SET name = COALESCE($3, name), status = COALESCE($4, status)
		WHERE id = $1 AND owner_id = $2
	`)

	result, err := s.db.ExecContext(ctx, query, id, ownerID, name, status)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return nil, MapUniqueViolation(s.dialect, err, store.ErrTaskNameExists)
		}
		log.Error("failed to update task", "task_id", id, "error", err)
		return nil, store.NewStoreError("task", "update", "failed to update task", MapError(s.dialect, err))
	}
	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id, ownerID)
}

// CompleteIfRunning implements store.TaskStore.CompleteIfRunning
func (s *TaskStore) CompleteIfRunning(ctx context.Context, id uuid.UUID) (bool, error) {
	query := s.dialect.Rebind(`UPDATE tasks SET status = $2 WHERE id = $1 AND status = $3`)

	result, err := s.db.ExecContext(ctx, query,
		id,
		string(domain.TaskStatusCompleted),
		string(domain.TaskStatusRunning),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to complete task", "task_id", id, "error", err)
		return false, store.NewStoreError("task", "complete", "failed to complete task", MapError(s.dialect, err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// Delete implements store.TaskStore.Delete
func (s *TaskStore) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	query := s.dialect.Rebind(`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`)

	result, err := s.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to delete task", "task_id", id, "error", err)
		return store.NewStoreError("task", "delete", "failed to delete task", MapError(s.dialect, err))
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task      domain.Task
		status    string
		createdAt time.Time
	)
	if err := row.Scan(&task.ID, &task.OwnerID, &task.Name, &status, &createdAt); err != nil {
		return nil, err
	}
	task.Status = domain.TaskStatus(status)
	task.CreatedAt = createdAt.UTC()
	return &task, nil
}
