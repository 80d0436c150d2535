package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusCreated, map[string]any{"task_id": "abc"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"task_id":"abc"}`, w.Body.String())
}

func TestRespondWithMessage(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	w := httptest.NewRecorder()

	RespondWithMessage(w, req, http.StatusOK, "done")

	assert.JSONEq(t, `{"message":"done"}`, w.Body.String())
}

func TestRespondWithError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(SetTraceID(req.Context(), "trace-123"))
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusNotFound, "Task not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Task not found", body.Error)
	assert.Equal(t, "trace-123", body.TraceID)
}

func TestRespondWithErrorAndLog_RedactsAndLevels(t *testing.T) {
	log, buf := logger.NewBufferLogger()

	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"server error", http.StatusInternalServerError, "ERROR"},
		{"client error", http.StatusBadRequest, "DEBUG"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()
			ctx := logger.WithLogger(context.Background(), log)
			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil).WithContext(ctx)
			w := httptest.NewRecorder()

			cause := errors.New("dial postgres://tasker:hunter2@db:5432/tasks failed")
			RespondWithErrorAndLog(w, req, tc.status, "Something failed", cause)

			assert.Equal(t, tc.status, w.Code)
			assert.NotContains(t, w.Body.String(), "postgres://", "raw errors never reach clients")
			assert.NotContains(t, buf.String(), "hunter2", "logs are redacted")

			entries, err := buf.Entries()
			require.NoError(t, err)
			require.NotEmpty(t, entries)
			assert.Equal(t, tc.level, entries[len(entries)-1]["level"])
		})
	}
}
