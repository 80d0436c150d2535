package events

import (
	"context"
	"log/slog"

	"github.com/phrazzld/tasker-api/internal/platform/logger"
)

// LogHandler writes every event to the audit log.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler. The request logger in the event's
// context is preferred over l when present.
func NewLogHandler(l *slog.Logger) *LogHandler {
	if l == nil {
		l = slog.Default()
	}
	return &LogHandler{logger: l.With(slog.String("component", "audit"))}
}

// HandleEvent implements EventHandler.
func (h *LogHandler) HandleEvent(ctx context.Context, event *Event) error {
	log := logger.FromContextOrDefault(ctx, h.logger)
	log.InfoContext(ctx, "task event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.Type),
		slog.String("task_id", event.TaskID.String()),
		slog.String("payload", string(event.Payload)))
	return nil
}
