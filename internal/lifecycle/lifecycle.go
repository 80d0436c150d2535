// Package lifecycle holds the task status rules: which statuses a request
// may set, when a change needs an execution scheduled, and which transitions
// the execution callback may perform.
package lifecycle

import (
	"errors"
	"strings"

	"github.com/phrazzld/tasker-api/internal/domain"
)

// ErrInvalidStatus is wrapped in a *domain.ValidationError whenever a
// requested status is unknown or not settable by a request.
var ErrInvalidStatus = errors.New("invalid status")

// Lifecycle makes pure status decisions against an injected Vocabulary.
type Lifecycle struct {
	vocab Vocabulary
}

// New creates a Lifecycle using vocab.
func New(vocab Vocabulary) *Lifecycle {
	return &Lifecycle{vocab: vocab}
}

// ValidateCreateStatus resolves the status requested on creation.
// A blank value means Created. Only Created and Running are settable.
func (l *Lifecycle) ValidateCreateStatus(raw string) (domain.TaskStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.TaskStatusCreated, nil
	}
	return l.settable(raw)
}

// ValidateUpdateStatus resolves the status requested on update.
// Unlike creation, a blank value is rejected.
func (l *Lifecycle) ValidateUpdateStatus(raw string) (domain.TaskStatus, error) {
	return l.settable(raw)
}

func (l *Lifecycle) settable(raw string) (domain.TaskStatus, error) {
	status, ok := l.vocab.Lookup(raw)
	if !ok || (status != domain.TaskStatusCreated && status != domain.TaskStatusRunning) {
		return "", domain.NewValidationError("status", "must be Created or Running", ErrInvalidStatus)
	}
	return status, nil
}

// RequiresScheduling reports whether moving from prev to next needs an
// execution submitted. Any change that lands on Running does, including
// Running to Running.
func (l *Lifecycle) RequiresScheduling(prev, next domain.TaskStatus) bool {
	return next == domain.TaskStatusRunning
}

// CanComplete reports whether the execution callback may mark a task
// Completed.
func (l *Lifecycle) CanComplete(current domain.TaskStatus) bool {
	return current == domain.TaskStatusRunning
}

// ParseFilter resolves a list filter. Unknown tokens yield nil, meaning no
// filtering.
func (l *Lifecycle) ParseFilter(raw string) *domain.TaskStatus {
	status, ok := l.vocab.Lookup(raw)
	if !ok {
		return nil
	}
	return &status
}

// Label returns the display label for status.
func (l *Lifecycle) Label(status domain.TaskStatus) string {
	return l.vocab.Label(status)
}
