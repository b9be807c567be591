package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/internal/types"
)

type mockQueueProcessor struct {
	processFn func(ctx context.Context, limit int) (int, error)
	sweepFn   func(ctx context.Context) (int, error)
}

func (m *mockQueueProcessor) ProcessPending(ctx context.Context, limit int) (int, error) {
	return m.processFn(ctx, limit)
}

func (m *mockQueueProcessor) RetrySweep(ctx context.Context) (int, error) {
	return m.sweepFn(ctx)
}

type mockQueueStatus struct {
	statusFn func(ctx context.Context) (*types.QueueStatus, error)
}

func (m *mockQueueStatus) Status(ctx context.Context) (*types.QueueStatus, error) {
	return m.statusFn(ctx)
}

func TestQueueStatus(t *testing.T) {
	status := &mockQueueStatus{
		statusFn: func(ctx context.Context) (*types.QueueStatus, error) {
			return &types.QueueStatus{
				CountsByStatus: map[types.JobStatus]int{
					types.JobQueued: 12,
					types.JobFailed: 3,
				},
			}, nil
		},
	}
	h := NewQueueHandler(&mockQueueProcessor{}, status)
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/queue/status", "usr_ops", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp types.QueueStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.CountsByStatus[types.JobQueued])
}

func TestQueueProcess(t *testing.T) {
	var gotLimit int
	proc := &mockQueueProcessor{
		processFn: func(ctx context.Context, limit int) (int, error) {
			gotLimit = limit
			return 7, nil
		},
	}
	h := NewQueueHandler(proc, &mockQueueStatus{})
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/queue/process?limit=25", "usr_ops", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 25, gotLimit)
	assert.JSONEq(t, `{"processed":7}`, rec.Body.String())
}

func TestQueueProcessDefaultsLimit(t *testing.T) {
	var gotLimit int
	proc := &mockQueueProcessor{
		processFn: func(ctx context.Context, limit int) (int, error) {
			gotLimit = limit
			return 0, nil
		},
	}
	h := NewQueueHandler(proc, &mockQueueStatus{})
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/queue/process", "usr_ops", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, gotLimit, "no limit query leaves batch sizing to the worker")
}

func TestQueueProcessRejectsBadLimit(t *testing.T) {
	h := NewQueueHandler(&mockQueueProcessor{}, &mockQueueStatus{})
	router := serveRoutes(h.RegisterRoutes)

	for _, limit := range []string{"0", "-1", "1001", "many"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(http.MethodPost, "/queue/process?limit="+limit, "usr_ops", ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestQueueRetrySweep(t *testing.T) {
	proc := &mockQueueProcessor{
		sweepFn: func(ctx context.Context) (int, error) {
			return 4, nil
		},
	}
	h := NewQueueHandler(proc, &mockQueueStatus{})
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/queue/retry-sweep", "usr_ops", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"requeued":4}`, rec.Body.String())
}
