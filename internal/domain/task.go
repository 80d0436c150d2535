package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// TaskStatus is the stored code of a task's lifecycle state.
type TaskStatus string

// Possible task status values. The codes are what the store and the list
// view carry; labels live in the lifecycle vocabulary.
const (
	TaskStatusCreated   TaskStatus = "cr"
	TaskStatusRunning   TaskStatus = "ru"
	TaskStatusCompleted TaskStatus = "co"
	TaskStatusFailed    TaskStatus = "fa"
)

// MaxTaskNameLength is the longest accepted task name, in characters.
const MaxTaskNameLength = 200

// ForkSuffix is appended to the name of a forked task.
const ForkSuffix = "-forked"

// Task-specific validation errors
var (
	ErrEmptyTaskID      = errors.New("task ID cannot be empty")
	ErrEmptyTaskOwnerID = errors.New("task owner ID cannot be empty")
	ErrEmptyTaskName    = errors.New("task name cannot be empty")
	ErrTaskNameTooLong  = errors.New("task name is too long")
)

// Task is a named unit of work owned by a single user.
// Name is unique per owner, not globally.
type Task struct {
	ID        uuid.UUID  `json:"task_id"`
	OwnerID   uuid.UUID  `json:"-"`
	Name      string     `json:"name"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// TaskPatch carries the fields of an update. Nil fields are left untouched.
type TaskPatch struct {
	Name   *string
	Status *TaskStatus
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Name == nil && p.Status == nil
}

// NewTask creates a Task owned by ownerID with a fresh v4 ID.
// Returns an error if validation fails.
func NewTask(ownerID uuid.UUID, name string, status TaskStatus) (*Task, error) {
	task := &Task{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      NormalizeTaskName(name),
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Fork returns a new task definition derived from t, in the Created state.
func (t *Task) Fork() (*Task, error) {
	return NewTask(t.OwnerID, t.Name+ForkSuffix, TaskStatusCreated)
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.OwnerID == uuid.Nil {
		return ErrEmptyTaskOwnerID
	}

	if err := ValidateTaskName(t.Name); err != nil {
		return err
	}

	if !t.Status.IsValid() {
		return NewValidationError("status", "is not a known status", ErrInvalidTaskStatus)
	}

	return nil
}

// NormalizeTaskName trims surrounding whitespace and puts name in Unicode
// NFC form, so visually identical names compare equal in the store.
func NormalizeTaskName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ValidateTaskName checks a (trimmed) task name.
func ValidateTaskName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("name", "cannot be empty", ErrEmptyTaskName)
	}
	if utf8.RuneCountInString(name) > MaxTaskNameLength {
		return NewValidationError("name", "is too long", ErrTaskNameTooLong)
	}
	return nil
}

// IsValid reports whether s is one of the four known codes.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusCreated, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}
