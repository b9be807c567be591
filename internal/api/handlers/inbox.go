package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gatherly/internal/core"
	"gatherly/internal/db"
	"gatherly/internal/types"
)

// InboxStore is the log repository surface the inbox handler needs.
type InboxStore interface {
	List(ctx context.Context, filter db.LogFilter, page types.Pagination) ([]*types.NotificationLog, int, error)
	ListInbox(ctx context.Context, userID string, unreadOnly bool, page types.Pagination) ([]*types.NotificationLog, int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, logID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Analytics(ctx context.Context, eventID string, days int) (*types.NotificationAnalytics, error)
}

// NotificationLogResponse is the wire form of one log entry.
type NotificationLogResponse struct {
	ID               string     `json:"id"`
	NotificationType string     `json:"notification_type"`
	Channel          string     `json:"channel"`
	Subject          string     `json:"subject"`
	Message          string     `json:"message"`
	Status           string     `json:"status"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	ReadAt           *time.Time `json:"read_at,omitempty"`
	ReminderID       string     `json:"reminder_id,omitempty"`
	EventID          string     `json:"event_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toLogResponse(entry *types.NotificationLog) NotificationLogResponse {
	resp := NotificationLogResponse{
		ID:               entry.ID,
		NotificationType: string(entry.NotificationType),
		Channel:          string(entry.Channel),
		Subject:          entry.Subject,
		Message:          entry.Message,
		Status:           string(entry.Status),
		ErrorMessage:     entry.ErrorMessage,
		ReminderID:       entry.ReminderID,
		EventID:          entry.EventID,
		CreatedAt:        entry.CreatedAt,
	}
	resp.SentAt = nilIfZero(entry.SentAt)
	resp.DeliveredAt = nilIfZero(entry.DeliveredAt)
	resp.ReadAt = nilIfZero(entry.ReadAt)
	return resp
}

func nilIfZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// InboxHandler serves the in-app inbox and the caller's notification history.
type InboxHandler struct {
	logs InboxStore
}

// NewInboxHandler creates an InboxHandler.
func NewInboxHandler(logs InboxStore) *InboxHandler {
	return &InboxHandler{logs: logs}
}

// RegisterRoutes mounts inbox and history routes on the provided router.
func (h *InboxHandler) RegisterRoutes(r chi.Router) {
	r.Route("/inbox", func(r chi.Router) {
		r.Get("/", h.ListInbox)
		r.Get("/unread-count", h.UnreadCount)
		r.Post("/read-all", h.MarkAllRead)
		r.Post("/{id}/read", h.MarkRead)
	})
	r.Get("/notifications/history", h.History)
	r.Get("/notifications/analytics", h.Analytics)
}

// ListInbox handles GET /v1/inbox. unread_only=true narrows to unread rows.
func (h *InboxHandler) ListInbox(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())
	q := r.URL.Query()
	page := parsePagination(q.Get("page"), q.Get("per_page"))
	unreadOnly := q.Get("unread_only") == "true"

	entries, total, err := h.logs.ListInbox(r.Context(), userID, unreadOnly, page)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	out := types.ListResponse[NotificationLogResponse]{
		Data:    make([]NotificationLogResponse, 0, len(entries)),
		Total:   total,
		Page:    page.Page,
		PerPage: page.PerPage,
	}
	for _, entry := range entries {
		out.Data = append(out.Data, toLogResponse(entry))
	}
	core.JSON(w, r, http.StatusOK, out)
}

// UnreadCount handles GET /v1/inbox/unread-count.
func (h *InboxHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	count, err := h.logs.UnreadCount(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, map[string]int{"unread": count})
}

// MarkRead handles POST /v1/inbox/{id}/read. Marking an already-read entry
// is a no-op success; an entry belonging to someone else reads as missing.
func (h *InboxHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	ok, err := h.logs.MarkRead(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundLogEntry, "Notification not found", nil))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /v1/inbox/read-all.
func (h *InboxHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	updated, err := h.logs.MarkAllRead(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, map[string]int{"updated": updated})
}

// History handles GET /v1/notifications/history: the caller's delivery log
// across all channels, newest first.
func (h *InboxHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())
	q := r.URL.Query()
	page := parsePagination(q.Get("page"), q.Get("per_page"))

	filter := db.LogFilter{
		RecipientID:      userID,
		EventID:          q.Get("event_id"),
		ReminderID:       q.Get("reminder_id"),
		Channel:          types.Channel(q.Get("channel")),
		Status:           types.LogStatus(q.Get("status")),
		NotificationType: types.NotificationType(q.Get("type")),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidTime,
				"since must be an RFC 3339 timestamp", err))
			return
		}
		filter.Since = t
	}

	entries, total, err := h.logs.List(r.Context(), filter, page)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	out := types.ListResponse[NotificationLogResponse]{
		Data:    make([]NotificationLogResponse, 0, len(entries)),
		Total:   total,
		Page:    page.Page,
		PerPage: page.PerPage,
	}
	for _, entry := range entries {
		out.Data = append(out.Data, toLogResponse(entry))
	}
	core.JSON(w, r, http.StatusOK, out)
}

// Analytics handles GET /v1/notifications/analytics: aggregate delivery
// counts and rate over a trailing day window, optionally event-scoped.
func (h *InboxHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	days := 30
	if d := q.Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 || n > 365 {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationFailed,
				"days must be between 1 and 365", nil))
			return
		}
		days = n
	}

	analytics, err := h.logs.Analytics(r.Context(), q.Get("event_id"), days)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, analytics)
}
