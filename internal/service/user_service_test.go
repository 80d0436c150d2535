package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/phrazzld/tasker-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) (*UserServiceImpl, *MockUserStore) {
	t.Helper()
	users := NewMockUserStore()
	log, _ := logger.NewBufferLogger()
	return NewUserService(users, plainHasher{}, log), users
}

func TestSignup(t *testing.T) {
	svc, users := newUserService(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, "alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.Password, "plaintext must be cleared")
	assert.Equal(t, "hashed:correct-horse", user.HashedPassword)

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, stored.Username)
}

func TestSignup_UsernameTaken(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	_, err = svc.Signup(ctx, "alice", "other@example.com", "battery-staple")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestSignup_Validation(t *testing.T) {
	svc, _ := newUserService(t)

	_, err := svc.Signup(context.Background(), "bob", "bob@example.com", "short")
	assert.ErrorIs(t, err, domain.ErrPasswordTooShort)

	_, err = svc.Signup(context.Background(), "", "bob@example.com", "long-enough")
	assert.ErrorIs(t, err, domain.ErrEmptyUsername)
}

func TestSignup_StoreFailure(t *testing.T) {
	svc, users := newUserService(t)
	users.CreateFn = func(ctx context.Context, user *domain.User) error {
		return errors.New("connection reset")
	}

	_, err := svc.Signup(context.Background(), "bob", "bob@example.com", "long-enough")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUsernameTaken)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	created, err := svc.Signup(ctx, "alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGetUser(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	created, err := svc.Signup(ctx, "alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	user, err := svc.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = svc.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}
