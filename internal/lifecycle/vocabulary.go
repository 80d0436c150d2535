package lifecycle

import (
	"strings"

	"github.com/phrazzld/tasker-api/internal/domain"
)

// Vocabulary maps statuses to display labels and accepted input tokens to
// statuses. A Vocabulary is never modified after construction.
type Vocabulary struct {
	labels map[domain.TaskStatus]string
	tokens map[string]domain.TaskStatus
}

// DefaultVocabulary returns the standard vocabulary. Each of the four
// statuses is accepted by its wire code or its label, case-insensitively.
func DefaultVocabulary() Vocabulary {
	return NewVocabulary(map[domain.TaskStatus]string{
		domain.TaskStatusCreated:   "Created",
		domain.TaskStatusRunning:   "Running",
		domain.TaskStatusCompleted: "Completed",
		domain.TaskStatusFailed:    "Failed",
	})
}

// NewVocabulary builds a Vocabulary from status labels. The input map is copied.
func NewVocabulary(labels map[domain.TaskStatus]string) Vocabulary {
	v := Vocabulary{
		labels: make(map[domain.TaskStatus]string, len(labels)),
		tokens: make(map[string]domain.TaskStatus, len(labels)*2),
	}
	for status, label := range labels {
		v.labels[status] = label
		v.tokens[strings.ToLower(string(status))] = status
		v.tokens[strings.ToLower(label)] = status
	}
	return v
}

// Lookup resolves a raw token to a status. Input is trimmed and matched
// case-insensitively.
func (v Vocabulary) Lookup(raw string) (domain.TaskStatus, bool) {
	status, ok := v.tokens[strings.ToLower(strings.TrimSpace(raw))]
	return status, ok
}

// Label returns the display label for status, or the raw code when the
// vocabulary has none.
func (v Vocabulary) Label(status domain.TaskStatus) string {
	if label, ok := v.labels[status]; ok {
		return label
	}
	return string(status)
}
