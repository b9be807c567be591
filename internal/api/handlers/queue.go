package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gatherly/internal/core"
	"gatherly/internal/types"
)

// QueueProcessor triggers worker passes on demand. The background worker
// runs the same passes on its own schedule; these endpoints exist for
// operators and for tests in staging.
type QueueProcessor interface {
	ProcessPending(ctx context.Context, limit int) (int, error)
	RetrySweep(ctx context.Context) (int, error)
}

// QueueStatusStore reports queue depth and timing.
type QueueStatusStore interface {
	Status(ctx context.Context) (*types.QueueStatus, error)
}

// QueueHandler exposes operator endpoints for the delivery queue.
type QueueHandler struct {
	processor QueueProcessor
	status    QueueStatusStore
}

// NewQueueHandler creates a QueueHandler.
func NewQueueHandler(processor QueueProcessor, status QueueStatusStore) *QueueHandler {
	return &QueueHandler{processor: processor, status: status}
}

// RegisterRoutes mounts queue routes on the provided router.
func (h *QueueHandler) RegisterRoutes(r chi.Router) {
	r.Route("/queue", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Post("/process", h.Process)
		r.Post("/retry-sweep", h.RetrySweep)
	})
}

// Status handles GET /v1/queue/status.
func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.status.Status(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, status)
}

// Process handles POST /v1/queue/process: run one delivery pass now.
// An optional limit query caps the batch size.
func (h *QueueHandler) Process(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > 1000 {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationFailed,
				"limit must be between 1 and 1000", nil))
			return
		}
		limit = n
	}

	processed, err := h.processor.ProcessPending(r.Context(), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, map[string]int{"processed": processed})
}

// RetrySweep handles POST /v1/queue/retry-sweep: requeue failed jobs whose
// retry backoff has elapsed.
func (h *QueueHandler) RetrySweep(w http.ResponseWriter, r *http.Request) {
	requeued, err := h.processor.RetrySweep(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, map[string]int{"requeued": requeued})
}
