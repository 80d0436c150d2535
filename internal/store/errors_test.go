package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDuplicateError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"ErrDuplicate", ErrDuplicate, true},
		{"ErrTaskNameExists", ErrTaskNameExists, true},
		{"ErrUsernameExists", ErrUsernameExists, true},
		{"ErrJobActive", ErrJobActive, true},
		{"wrapped in StoreError", NewStoreError("task", "create", "conflict", ErrTaskNameExists), true},
		{"ErrTaskNotFound", ErrTaskNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsDuplicateError(tt.err))
		})
	}
}

func TestEntityErrorsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrTaskNotFound, ErrUserNotFound))
	assert.False(t, errors.Is(ErrTaskNameExists, ErrUsernameExists))
	assert.Equal(t, "entity not found: task", ErrTaskNotFound.Error())
	assert.Equal(t, "entity already exists: task name", ErrTaskNameExists.Error())
}

func TestStoreError_Error(t *testing.T) {
	withoutCause := &StoreError{Entity: "task", Operation: "create", Message: "validation failed"}
	assert.Equal(t, "create operation on task failed: validation failed", withoutCause.Error())

	withCause := NewStoreError("job", "update", "database error", errors.New("connection reset"))
	assert.Equal(t, "update operation on job failed: database error: connection reset", withCause.Error())
}

func TestStoreError_Unwrap(t *testing.T) {
	original := errors.New("database error")
	storeErr := NewStoreError("task", "delete", "failed", original)

	assert.Equal(t, original, storeErr.Unwrap())
	assert.True(t, errors.Is(storeErr, original))

	var target *StoreError
	assert.True(t, errors.As(fmt.Errorf("outer: %w", storeErr), &target))
	assert.Equal(t, "task", target.Entity)
}
