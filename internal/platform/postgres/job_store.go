package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/job"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/phrazzld/tasker-api/internal/store"
)

const jobColumns = "id, task_id, duration_seconds, status, attempts, error_message, run_at, created_at, updated_at"

// JobStore implements job.Store on a SQL database.
type JobStore struct {
	db      store.DBTX
	dialect Dialect
}

// NewJobStore creates a JobStore. A nil dialect means PostgreSQL.
func NewJobStore(db store.DBTX, dialect Dialect) *JobStore {
	if dialect == nil {
		dialect = PostgresDialect
	}
	return &JobStore{db: db, dialect: dialect}
}

var _ job.Store = (*JobStore)(nil)

// SaveJob persists a job to the database
func (s *JobStore) SaveJob(ctx context.Context, j *job.Job) error {
	log := logger.FromContext(ctx)

	query := s.dialect.Rebind(`
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)

	_, err := s.db.ExecContext(ctx, query,
		j.ID,
		j.TaskID,
		j.DurationSeconds,
		string(j.Status),
		j.Attempts,
		j.ErrorMessage,
		j.RunAt.UTC(),
		j.CreatedAt.UTC(),
		j.UpdatedAt.UTC(),
	)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return MapUniqueViolation(s.dialect, err, store.ErrJobActive)
		}
		log.Error("failed to save job",
			"job_id", j.ID,
			"task_id", j.TaskID,
			"error", err)
		return MapError(s.dialect, err)
	}

	return nil
}

// ClaimJob moves a pending job to processing
func (s *JobStore) ClaimJob(ctx context.Context, id uuid.UUID) (bool, error) {
	query := s.dialect.Rebind(`
		UPDATE jobs
		SET status = $2, attempts = attempts + 1, updated_at = $3
		WHERE id = $1 AND status = $4
	`)

	result, err := s.db.ExecContext(ctx, query,
		id,
		string(job.StatusProcessing),
		time.Now().UTC(),
		string(job.StatusPending),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to claim job", "job_id", id, "error", err)
		return false, MapError(s.dialect, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// UpdateJobStatus updates the status of a job in the database
func (s *JobStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status job.Status, errorMsg string) error {
	query := s.dialect.Rebind(`
		UPDATE jobs
		SET status = $2, error_message = $3, updated_at = $4
		WHERE id = $1
	`)

	result, err := s.db.ExecContext(ctx, query, id, string(status), errorMsg, time.Now().UTC())
	if err != nil {
		logger.FromContext(ctx).Error("failed to update job status",
			"job_id", id,
			"status", status,
			"error", err)
		if s.dialect.IsUniqueViolation(err) {
			return MapUniqueViolation(s.dialect, err, store.ErrJobActive)
		}
		return MapError(s.dialect, err)
	}

	return CheckRowsAffected(result, store.ErrJobNotFound)
}

// GetPendingJobs retrieves pending jobs due at or before dueBefore
func (s *JobStore) GetPendingJobs(ctx context.Context, dueBefore time.Time) ([]*job.Job, error) {
	if dueBefore.IsZero() {
		return s.query(ctx, `WHERE status = $1 ORDER BY run_at ASC, created_at ASC`,
			string(job.StatusPending))
	}
	return s.query(ctx, `WHERE status = $1 AND run_at <= $2 ORDER BY run_at ASC, created_at ASC`,
		string(job.StatusPending), dueBefore.UTC())
}

// GetProcessingJobs retrieves processing jobs not updated within olderThan
func (s *JobStore) GetProcessingJobs(ctx context.Context, olderThan time.Duration) ([]*job.Job, error) {
	if olderThan <= 0 {
		return s.query(ctx, `WHERE status = $1 ORDER BY created_at ASC`,
			string(job.StatusProcessing))
	}
	return s.query(ctx, `WHERE status = $1 AND updated_at < $2 ORDER BY created_at ASC`,
		string(job.StatusProcessing), time.Now().UTC().Add(-olderThan))
}

func (s *JobStore) query(ctx context.Context, where string, args ...any) ([]*job.Job, error) {
	log := logger.FromContext(ctx)

	query := s.dialect.Rebind(`SELECT ` + jobColumns + ` FROM jobs ` + where)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query jobs", "error", err)
		return nil, MapError(s.dialect, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var jobs []*job.Job
	for rows.Next() {
		var (
			j                           job.Job
			status                      string
			runAt, createdAt, updatedAt time.Time
		)
		if err := rows.Scan(
			&j.ID,
			&j.TaskID,
			&j.DurationSeconds,
			&status,
			&j.Attempts,
			&j.ErrorMessage,
			&runAt,
			&createdAt,
			&updatedAt,
		); err != nil {
			log.Error("failed to scan job row", "error", err)
			return nil, MapError(s.dialect, err)
		}
		j.Status = job.Status(status)
		j.RunAt = runAt.UTC()
		j.CreatedAt = createdAt.UTC()
		j.UpdatedAt = updatedAt.UTC()
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating job rows", "error", err)
		return nil, MapError(s.dialect, err)
	}

	return jobs, nil
}
