package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubEnqueuer struct {
	payload IntegrityScanPayload
	err     error
}

func (s *stubEnqueuer) EnqueueIntegrityScan(_ context.Context, payload IntegrityScanPayload) (*asynq.TaskInfo, error) {
	s.payload = payload
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mountJobs(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/jobs", func(r chi.Router) {
		h.MountRoutes(r)
	})
	return r
}

func TestTriggerIntegrityScanEnqueues(t *testing.T) {
	stub := &stubEnqueuer{}
	h := &Handler{enqueuer: stub, logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/jobs/integrity-scan?exercice_id=7&limit=10", nil)
	rec := httptest.NewRecorder()
	mountJobs(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.JSONEq(t, `{"task_id":"task-1","queue":"default"}`, rec.Body.String())
	require.Equal(t, int64(7), stub.payload.ExerciceID)
	require.Equal(t, 10, stub.payload.Limit)
}

func TestTriggerIntegrityScanDefaultsToAllOpenExercices(t *testing.T) {
	stub := &stubEnqueuer{}
	h := &Handler{enqueuer: stub, logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/jobs/integrity-scan", nil)
	rec := httptest.NewRecorder()
	mountJobs(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Zero(t, stub.payload.ExerciceID)
	require.Zero(t, stub.payload.Limit)
}

func TestTriggerIntegrityScanWithoutClient(t *testing.T) {
	h := NewHandler(nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/jobs/integrity-scan", nil)
	rec := httptest.NewRecorder()
	mountJobs(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTriggerIntegrityScanEnqueueFailure(t *testing.T) {
	stub := &stubEnqueuer{err: errors.New("redis down")}
	h := &Handler{enqueuer: stub, logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/jobs/integrity-scan", nil)
	rec := httptest.NewRecorder()
	mountJobs(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
