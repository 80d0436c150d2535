package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/store"
)

// MockJobStore is an in-memory Store. Each method delegates to an Fn field
// so tests can override single behaviours.
type MockJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job

	SaveFn         func(ctx context.Context, job *Job) error
	ClaimFn        func(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateStatusFn func(ctx context.Context, id uuid.UUID, status Status, errorMsg string) error
	GetPendingFn   func(ctx context.Context, dueBefore time.Time) ([]*Job, error)
}

// NewMockJobStore creates a MockJobStore that enforces one active job per task.
func NewMockJobStore() *MockJobStore {
	s := &MockJobStore{jobs: make(map[uuid.UUID]*Job)}

	s.SaveFn = func(ctx context.Context, job *Job) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, existing := range s.jobs {
			if existing.TaskID == job.TaskID &&
				(existing.Status == StatusPending || existing.Status == StatusProcessing) {
				return fmt.Errorf("%w: task %s", store.ErrJobActive, job.TaskID)
			}
		}
		cp := *job
		s.jobs[job.ID] = &cp
		return nil
	}

	s.ClaimFn = func(ctx context.Context, id uuid.UUID) (bool, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		j, ok := s.jobs[id]
		if !ok || j.Status != StatusPending {
			return false, nil
		}
		j.Status = StatusProcessing
		j.Attempts++
		j.UpdatedAt = time.Now().UTC()
		return true, nil
	}

	s.UpdateStatusFn = func(ctx context.Context, id uuid.UUID, status Status, errorMsg string) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		j, ok := s.jobs[id]
		if !ok {
			return store.ErrJobNotFound
		}
		j.Status = status
		j.ErrorMessage = errorMsg
		j.UpdatedAt = time.Now().UTC()
		return nil
	}

	s.GetPendingFn = func(ctx context.Context, dueBefore time.Time) ([]*Job, error) {
		return s.byStatus(StatusPending, func(j *Job) bool {
			return dueBefore.IsZero() || !j.RunAt.After(dueBefore)
		}), nil
	}

	return s
}

func (s *MockJobStore) SaveJob(ctx context.Context, job *Job) error {
	return s.SaveFn(ctx, job)
}

func (s *MockJobStore) ClaimJob(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.ClaimFn(ctx, id)
}

func (s *MockJobStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status Status, errorMsg string) error {
	return s.UpdateStatusFn(ctx, id, status, errorMsg)
}

func (s *MockJobStore) GetPendingJobs(ctx context.Context, dueBefore time.Time) ([]*Job, error) {
	return s.GetPendingFn(ctx, dueBefore)
}

func (s *MockJobStore) GetProcessingJobs(ctx context.Context, olderThan time.Duration) ([]*Job, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	return s.byStatus(StatusProcessing, func(j *Job) bool {
		return olderThan == 0 || j.UpdatedAt.Before(cutoff)
	}), nil
}

// Put stores a job as-is, bypassing the active-job check.
func (s *MockJobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
}

// Get returns a copy of the stored job.
func (s *MockJobStore) Get(id uuid.UUID) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

func (s *MockJobStore) byStatus(status Status, keep func(*Job) bool) []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, 0)
	for _, j := range s.jobs {
		if j.Status == status && keep(j) {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].RunAt.Before(out[b].RunAt) })
	return out
}

var _ Store = (*MockJobStore)(nil)
