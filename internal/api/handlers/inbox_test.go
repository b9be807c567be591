package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/internal/db"
	"gatherly/internal/types"
)

type mockInboxStore struct {
	listFn        func(ctx context.Context, filter db.LogFilter, page types.Pagination) ([]*types.NotificationLog, int, error)
	listInboxFn   func(ctx context.Context, userID string, unreadOnly bool, page types.Pagination) ([]*types.NotificationLog, int, error)
	unreadCountFn func(ctx context.Context, userID string) (int, error)
	markReadFn    func(ctx context.Context, userID, logID string) (bool, error)
	markAllReadFn func(ctx context.Context, userID string) (int, error)
	analyticsFn   func(ctx context.Context, eventID string, days int) (*types.NotificationAnalytics, error)
}

func (m *mockInboxStore) List(ctx context.Context, filter db.LogFilter, page types.Pagination) ([]*types.NotificationLog, int, error) {
	return m.listFn(ctx, filter, page)
}

func (m *mockInboxStore) ListInbox(ctx context.Context, userID string, unreadOnly bool, page types.Pagination) ([]*types.NotificationLog, int, error) {
	return m.listInboxFn(ctx, userID, unreadOnly, page)
}

func (m *mockInboxStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	return m.unreadCountFn(ctx, userID)
}

func (m *mockInboxStore) MarkRead(ctx context.Context, userID, logID string) (bool, error) {
	return m.markReadFn(ctx, userID, logID)
}

func (m *mockInboxStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return m.markAllReadFn(ctx, userID)
}

func (m *mockInboxStore) Analytics(ctx context.Context, eventID string, days int) (*types.NotificationAnalytics, error) {
	return m.analyticsFn(ctx, eventID, days)
}

func sampleLogEntry() *types.NotificationLog {
	return &types.NotificationLog{
		ID:               "log_1",
		NotificationType: types.TypeEventReminder,
		Channel:          types.ChannelInApp,
		Subject:          "Party tomorrow",
		Message:          "Doors open at 19:00",
		Status:           types.LogSent,
		SentAt:           time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		RecipientID:      "usr_1",
		EventID:          "evt_1",
	}
}

func TestListInboxUnreadFilter(t *testing.T) {
	var gotUnreadOnly bool
	store := &mockInboxStore{
		listInboxFn: func(ctx context.Context, userID string, unreadOnly bool, page types.Pagination) ([]*types.NotificationLog, int, error) {
			gotUnreadOnly = unreadOnly
			return []*types.NotificationLog{sampleLogEntry()}, 1, nil
		},
	}
	h := NewInboxHandler(store)
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/inbox?unread_only=true", "usr_1", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gotUnreadOnly)

	var resp types.ListResponse[NotificationLogResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "log_1", resp.Data[0].ID)
	assert.Nil(t, resp.Data[0].ReadAt)
	require.NotNil(t, resp.Data[0].SentAt)
}

func TestUnreadCount(t *testing.T) {
	store := &mockInboxStore{
		unreadCountFn: func(ctx context.Context, userID string) (int, error) {
			return 3, nil
		},
	}
	h := NewInboxHandler(store)
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/inbox/unread-count", "usr_1", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"unread":3}`, rec.Body.String())
}

func TestMarkRead(t *testing.T) {
	store := &mockInboxStore{
		markReadFn: func(ctx context.Context, userID, logID string) (bool, error) {
			return logID == "log_1", nil
		},
	}
	h := NewInboxHandler(store)
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/inbox/log_1/read", "usr_1", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/inbox/log_other/read", "usr_1", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found_notification", decodeError(t, rec).Error.Code)
}

func TestMarkAllRead(t *testing.T) {
	store := &mockInboxStore{
		markAllReadFn: func(ctx context.Context, userID string) (int, error) {
			return 8, nil
		},
	}
	h := NewInboxHandler(store)
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/inbox/read-all", "usr_1", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":8}`, rec.Body.String())
}

func TestHistoryScopesToCaller(t *testing.T) {
	var gotFilter db.LogFilter
	store := &mockInboxStore{
		listFn: func(ctx context.Context, filter db.LogFilter, page types.Pagination) ([]*types.NotificationLog, int, error) {
			gotFilter = filter
			return nil, 0, nil
		},
	}
	h := NewInboxHandler(store)
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet,
		"/notifications/history?event_id=evt_1&channel=email&status=failed&since=2026-04-01T00:00:00Z", "usr_1", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "usr_1", gotFilter.RecipientID, "history is always caller-scoped")
	assert.Equal(t, "evt_1", gotFilter.EventID)
	assert.Equal(t, types.ChannelEmail, gotFilter.Channel)
	assert.Equal(t, types.LogFailed, gotFilter.Status)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), gotFilter.Since)
}

func TestHistoryRejectsBadSince(t *testing.T) {
	h := NewInboxHandler(&mockInboxStore{})
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/notifications/history?since=yesterday", "usr_1", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalytics(t *testing.T) {
	var gotEventID string
	var gotDays int
	store := &mockInboxStore{
		analyticsFn: func(ctx context.Context, eventID string, days int) (*types.NotificationAnalytics, error) {
			gotEventID, gotDays = eventID, days
			return &types.NotificationAnalytics{TotalSent: 40, DeliveryRate: 0.95}, nil
		},
	}
	h := NewInboxHandler(store)
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/notifications/analytics?event_id=evt_1&days=7", "usr_1", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "evt_1", gotEventID)
	assert.Equal(t, 7, gotDays)

	var resp types.NotificationAnalytics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 40, resp.TotalSent)
}

func TestAnalyticsDefaultsAndValidatesDays(t *testing.T) {
	var gotDays int
	store := &mockInboxStore{
		analyticsFn: func(ctx context.Context, eventID string, days int) (*types.NotificationAnalytics, error) {
			gotDays = days
			return &types.NotificationAnalytics{}, nil
		},
	}
	h := NewInboxHandler(store)
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/notifications/analytics", "usr_1", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, gotDays)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/notifications/analytics?days=400", "usr_1", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
