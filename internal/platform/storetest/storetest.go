// Package storetest holds the behavioural tests shared by every SQL backend.
package storetest

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/job"
	"github.com/phrazzld/tasker-api/internal/platform/postgres"
	"github.com/phrazzld/tasker-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Backend opens a migrated database for a single test.
type Backend struct {
	Dialect postgres.Dialect
	Open    func(t *testing.T) *sql.DB
}

type stores struct {
	db    *sql.DB
	users *postgres.UserStore
	tasks *postgres.TaskStore
	jobs  *postgres.JobStore
}

func (b Backend) setup(t *testing.T) stores {
	t.Helper()
	db := b.Open(t)
	return stores{
		db:    db,
		users: postgres.NewUserStore(db, b.Dialect),
		tasks: postgres.NewTaskStore(db, b.Dialect),
		jobs:  postgres.NewJobStore(db, b.Dialect),
	}
}

// Run executes the shared suite against b.
func Run(t *testing.T, b Backend) {
	t.Run("UserStore", func(t *testing.T) { testUserStore(t, b) })
	t.Run("TaskStore", func(t *testing.T) { testTaskStore(t, b) })
	t.Run("Transaction", func(t *testing.T) { testTransaction(t, b) })
	t.Run("JobStore", func(t *testing.T) { testJobStore(t, b) })
}

// CreateUser inserts a user with a placeholder hash.
func CreateUser(t *testing.T, users store.UserStore) *domain.User {
	t.Helper()
	user, err := domain.NewUser("user-"+uuid.NewString()[:8], "user@example.com", "password123")
	require.NoError(t, err)
	user.HashedPassword = "$2a$04$placeholderplaceholderplaceholderplaceholderpl"
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func createTask(t *testing.T, s stores, owner uuid.UUID, name string, status domain.TaskStatus) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(owner, name, status)
	require.NoError(t, err)
	require.NoError(t, s.tasks.Create(context.Background(), task))
	return task
}

func testUserStore(t *testing.T, b Backend) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := b.setup(t)
		user := CreateUser(t, s.users)
		assert.Empty(t, user.Password, "plaintext should be cleared after create")

		byID, err := s.users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Username, byID.Username)
		assert.Equal(t, user.HashedPassword, byID.HashedPassword)
		assert.WithinDuration(t, user.CreatedAt, byID.CreatedAt, time.Millisecond)

		byName, err := s.users.GetByUsername(ctx, user.Username)
		require.NoError(t, err)
		assert.Equal(t, user.ID, byName.ID)
	})

	t.Run("duplicate username", func(t *testing.T) {
		s := b.setup(t)
		user := CreateUser(t, s.users)

		dup, err := domain.NewUser(user.Username, "other@example.com", "password123")
		require.NoError(t, err)
		dup.HashedPassword = "hash"

		err = s.users.Create(ctx, dup)
		assert.ErrorIs(t, err, store.ErrUsernameExists)
		assert.True(t, store.IsDuplicateError(err))
	})

	t.Run("missing hash rejected", func(t *testing.T) {
		s := b.setup(t)
		user, err := domain.NewUser("nohash", "nohash@example.com", "password123")
		require.NoError(t, err)
		assert.ErrorIs(t, s.users.Create(ctx, user), store.ErrInvalidEntity)
	})

	t.Run("not found", func(t *testing.T) {
		s := b.setup(t)
		_, err := s.users.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrUserNotFound)

		_, err = s.users.GetByUsername(ctx, "nobody-"+uuid.NewString())
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})
}

func testTaskStore(t *testing.T, b Backend) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := b.setup(t)
		owner := CreateUser(t, s.users)
		task := createTask(t, s, owner.ID, "build", domain.TaskStatusCreated)

		got, err := s.tasks.GetByID(ctx, task.ID, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, got.ID)
		assert.Equal(t, "build", got.Name)
		assert.Equal(t, domain.TaskStatusCreated, got.Status)
		assert.Equal(t, time.UTC, got.CreatedAt.Location())

		unscoped, err := s.tasks.GetByIDUnscoped(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, owner.ID, unscoped.OwnerID)
	})

	t.Run("other owner sees not found", func(t *testing.T) {
		s := b.setup(t)
		owner := CreateUser(t, s.users)
		other := CreateUser(t, s.users)
		task := createTask(t, s, owner.ID, "private", domain.TaskStatusCreated)

		_, err := s.tasks.GetByID(ctx, task.ID, other.ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)

		name := "stolen"
		_, err = s.tasks.Update(ctx, task.ID, other.ID, domain.TaskPatch{Name: &name})
		assert.ErrorIs(t, err, store.ErrTaskNotFound)

		assert.ErrorIs(t, s.tasks.Delete(ctx, task.ID, other.ID), store.ErrTaskNotFound)
	})

	t.Run("name unique per owner", func(t *testing.T) {
		s := b.setup(t)
		owner := CreateUser(t, s.users)
		other := CreateUser(t, s.users)
		createTask(t, s, owner.ID, "dup", domain.TaskStatusCreated)

		again, err := domain.NewTask(owner.ID, "dup", domain.TaskStatusRunning)
		require.NoError(t, err)
		assert.ErrorIs(t, s.tasks.Create(ctx, again), store.ErrTaskNameExists)

		createTask(t, s, other.ID, "dup", domain.TaskStatusCreated)

		renamed := createTask(t, s, owner.ID, "unique", domain.TaskStatusCreated)
		dup := "dup"
		_, err = s.tasks.Update(ctx, renamed.ID, owner.ID, domain.TaskPatch{Name: &dup})
		assert.ErrorIs(t, err, store.ErrTaskNameExists)
	})

	t.Run("concurrent creates with the same name", func(t *testing.T) {
		s := b.setup(t)
		owner := CreateUser(t, s.users)

		const attempts = 10
		errs := make([]error, attempts)
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			task, err := domain.NewTask(owner.ID, "race", domain.TaskStatusCreated)
			require.NoError(t, err)

			wg.Add(1)
			go func(i int, task *domain.Task) {
				defer wg.Done()
				errs[i] = s.tasks.Create(ctx, task)
			}(i, task)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, store.ErrTaskNameExists)
		}
		assert.Equal(t, 1, succeeded)

		tasks, err := s.tasks.List(ctx, owner.ID, nil)
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
	})

	t.Run("list ordering and filter", func(t *testing.T) {
		s := b.setup(t)
		owner := CreateUser(t, s.users)

		empty, err := s.tasks.List(ctx, owner.ID, nil)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)

		first := createTask(t, s, owner.ID, "first", domain.TaskStatusCreated)
		time.Sleep(2 * time.Millisecond)
		second := createTask(t, s, owner.ID, "second", domain.TaskStatusRunning)
		time.Sleep(2 * time.Millisecond)
		third := createTask(t, s, owner.ID, "third", domain.TaskStatusCreated)

		all, err := s.tasks.List(ctx, owner.ID, nil)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []uuid.UUID{first.ID, second.ID, third.ID},
			[]uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

		running := domain.TaskStatusRunning
		filtered, err := s.tasks.List(ctx, owner.ID, &running)
		require.NoError(t, err)
		require.Len(t, filtered, 1)
		assert.Equal(t, second.ID, filtered[0].ID)

		completed := domain.TaskStatusCompleted
		none, err := s.tasks.List(ctx, owner.ID, &completed)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("update", func(t *testing.T) {
		s := b.setup(t)
		owner := CreateUser(t, s.users)
		task := createTask(t, s, owner.ID, "old", domain.TaskStatusCreated)
		createTask(t, s, owner.ID, "taken", domain.TaskStatusCreated)

		name := "new"
		updated, err := s.tasks.Update(ctx, task.ID, owner.ID, domain.TaskPatch{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "new", updated.Name)
		assert.Equal(t, domain.TaskStatusCreated, updated.Status)

		status := domain.TaskStatusRunning
		updated, err = s.tasks.Update(ctx, task.ID, owner.ID, domain.TaskPatch{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, "new", updated.Name)
		assert.Equal(t, domain.TaskStatusRunning, updated.Status)

		taken := "taken"
		_, err = s.tasks.Update(ctx, task.ID, owner.ID, domain.TaskPatch{Name: &taken})
		assert.ErrorIs(t, err, store.ErrTaskNameExists)

		_, err = s.tasks.Update(ctx, uuid.New(), owner.ID, domain.TaskPatch{Name: &name})
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("complete if running", func(t *testing.T) {
		s := b.setup(t)
		owner := CreateUser(t, s.users)
		running := createTask(t, s, owner.ID, "running", domain.TaskStatusRunning)
		created := createTask(t, s, owner.ID, "created", domain.TaskStatusCreated)

		ok, err := s.tasks.CompleteIfRunning(ctx, running.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := s.tasks.GetByID(ctx, running.ID, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, got.Status)

		ok, err = s.tasks.CompleteIfRunning(ctx, running.ID)
		require.NoError(t, err)
		assert.False(t, ok, "already completed")

		ok, err = s.tasks.CompleteIfRunning(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, ok, "created tasks are not completed")

		ok, err = s.tasks.CompleteIfRunning(ctx, uuid.New())
		require.NoError(t, err)
		assert.False(t, ok, "missing task")
	})

	t.Run("delete", func(t *testing.T) {
		s := b.setup(t)
		owner := CreateUser(t, s.users)
		task := createTask(t, s, owner.ID, "gone", domain.TaskStatusCreated)

		require.NoError(t, s.tasks.Delete(ctx, task.ID, owner.ID))

		_, err := s.tasks.GetByID(ctx, task.ID, owner.ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
		assert.ErrorIs(t, s.tasks.Delete(ctx, task.ID, owner.ID), store.ErrTaskNotFound)

		// The name is free again.
		createTask(t, s, owner.ID, "gone", domain.TaskStatusCreated)
	})
}

func testTransaction(t *testing.T, b Backend) {
	ctx := context.Background()
	s := b.setup(t)
	owner := CreateUser(t, s.users)

	var created *domain.Task
	boom := errors.New("boom")
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		task, err := domain.NewTask(owner.ID, "rolled-back", domain.TaskStatusCreated)
		if err != nil {
			return err
		}
		created = task
		if err := s.tasks.WithTx(tx).Create(ctx, task); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.tasks.GetByID(ctx, created.ID, owner.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.tasks.WithTx(tx).Create(ctx, created)
	})
	require.NoError(t, err)

	_, err = s.tasks.GetByID(ctx, created.ID, owner.ID)
	assert.NoError(t, err)
}

func testJobStore(t *testing.T, b Backend) {
	ctx := context.Background()

	t.Run("one active job per task", func(t *testing.T) {
		s := b.setup(t)
		taskID := uuid.New()

		first := job.New(taskID, 0, time.Now())
		require.NoError(t, s.jobs.SaveJob(ctx, first))

		err := s.jobs.SaveJob(ctx, job.New(taskID, 0, time.Now()))
		assert.ErrorIs(t, err, store.ErrJobActive)
		assert.ErrorIs(t, err, store.ErrDuplicate)

		require.NoError(t, s.jobs.UpdateJobStatus(ctx, first.ID, job.StatusCompleted, ""))
		assert.NoError(t, s.jobs.SaveJob(ctx, job.New(taskID, 0, time.Now())),
			"finished jobs do not block a new one")
	})

	t.Run("claim once", func(t *testing.T) {
		s := b.setup(t)
		j := job.New(uuid.New(), 0, time.Now())
		require.NoError(t, s.jobs.SaveJob(ctx, j))

		ok, err := s.jobs.ClaimJob(ctx, j.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.jobs.ClaimJob(ctx, j.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		processing, err := s.jobs.GetProcessingJobs(ctx, 0)
		require.NoError(t, err)
		got := findJob(processing, j.ID)
		require.NotNil(t, got)
		assert.Equal(t, 1, got.Attempts)
		assert.Equal(t, job.StatusProcessing, got.Status)

		recent, err := s.jobs.GetProcessingJobs(ctx, time.Hour)
		require.NoError(t, err)
		assert.Nil(t, findJob(recent, j.ID), "recently claimed job is not stuck")
	})

	t.Run("pending due filter", func(t *testing.T) {
		s := b.setup(t)
		now := time.Now().UTC()
		due := job.New(uuid.New(), 0, now.Add(-time.Second))
		later := job.New(uuid.New(), 3600, now)
		require.NoError(t, s.jobs.SaveJob(ctx, due))
		require.NoError(t, s.jobs.SaveJob(ctx, later))

		dueJobs, err := s.jobs.GetPendingJobs(ctx, now)
		require.NoError(t, err)
		assert.NotNil(t, findJob(dueJobs, due.ID))
		assert.Nil(t, findJob(dueJobs, later.ID))

		all, err := s.jobs.GetPendingJobs(ctx, time.Time{})
		require.NoError(t, err)
		got := findJob(all, later.ID)
		require.NotNil(t, got)
		assert.WithinDuration(t, later.RunAt, got.RunAt, time.Millisecond)
		assert.Equal(t, 3600, got.DurationSeconds)
	})

	t.Run("update missing job", func(t *testing.T) {
		s := b.setup(t)
		err := s.jobs.UpdateJobStatus(ctx, uuid.New(), job.StatusFailed, "x")
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})
}

func findJob(jobs []*job.Job, id uuid.UUID) *job.Job {
	for _, j := range jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}
