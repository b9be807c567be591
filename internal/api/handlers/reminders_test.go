package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/internal/core"
	"gatherly/internal/db"
	"gatherly/internal/notifications/scheduler"
	"gatherly/internal/types"
)

// --- Shared helpers for the package's handler tests ---

func testValidator() *core.Validator {
	return core.NewValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// serveRoutes mounts one handler's routes on a fresh router.
func serveRoutes(register func(chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	register(r)
	return r
}

// authedRequest builds a request carrying an authenticated user id, mirroring
// what the identity middleware injects.
func authedRequest(method, target, userID, body string) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	ctx := types.WithUserID(req.Context(), userID)
	ctx = types.WithRequestID(ctx, "req_test")
	return req.WithContext(ctx)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) core.APIErrorResponse {
	t.Helper()
	var body core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

type mockReminderService struct {
	createFn       func(ctx context.Context, eventID, creatorID string, input scheduler.CreateReminderInput) (*types.Reminder, error)
	getFn          func(ctx context.Context, id, callerID string) (*types.Reminder, error)
	listFn         func(ctx context.Context, eventID, callerID string, filter db.ReminderFilter, page types.Pagination) ([]*types.Reminder, int, error)
	updateFn       func(ctx context.Context, id, editorID string, patch db.ReminderPatch) (*types.Reminder, error)
	deleteFn       func(ctx context.Context, id, editorID string) error
	automaticFn    func(ctx context.Context, eventID string) ([]*types.Reminder, error)
	fromTemplateFn func(ctx context.Context, eventID, creatorID string, input scheduler.FromTemplateInput) (*types.Reminder, error)
	testSendFn     func(ctx context.Context, userID string, channel types.Channel, title, message string) (*types.QueueJob, error)
}

func (m *mockReminderService) CreateReminder(ctx context.Context, eventID, creatorID string, input scheduler.CreateReminderInput) (*types.Reminder, error) {
	return m.createFn(ctx, eventID, creatorID, input)
}

func (m *mockReminderService) GetReminder(ctx context.Context, id, callerID string) (*types.Reminder, error) {
	return m.getFn(ctx, id, callerID)
}

func (m *mockReminderService) ListReminders(ctx context.Context, eventID, callerID string, filter db.ReminderFilter, page types.Pagination) ([]*types.Reminder, int, error) {
	return m.listFn(ctx, eventID, callerID, filter, page)
}

func (m *mockReminderService) UpdateReminder(ctx context.Context, id, editorID string, patch db.ReminderPatch) (*types.Reminder, error) {
	return m.updateFn(ctx, id, editorID, patch)
}

func (m *mockReminderService) DeleteReminder(ctx context.Context, id, editorID string) error {
	return m.deleteFn(ctx, id, editorID)
}

func (m *mockReminderService) CreateAutomaticReminders(ctx context.Context, eventID string) ([]*types.Reminder, error) {
	return m.automaticFn(ctx, eventID)
}

func (m *mockReminderService) CreateReminderFromTemplate(ctx context.Context, eventID, creatorID string, input scheduler.FromTemplateInput) (*types.Reminder, error) {
	return m.fromTemplateFn(ctx, eventID, creatorID, input)
}

func (m *mockReminderService) SendTestNotification(ctx context.Context, userID string, channel types.Channel, title, message string) (*types.QueueJob, error) {
	return m.testSendFn(ctx, userID, channel, title, message)
}

func sampleReminder() *types.Reminder {
	return &types.Reminder{
		ID:               "rem_1",
		Title:            "Final headcount",
		Message:          "Confirm your RSVP",
		NotificationType: types.TypeRSVPReminder,
		ScheduledTime:    time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC),
		Frequency:        types.FrequencyOnce,
		Status:           types.ReminderPending,
		IsActive:         true,
		SendEmail:        true,
		SendInApp:        true,
		TargetAllGuests:  true,
		EventID:          "evt_1",
		CreatorID:        "usr_host",
	}
}

// --- Create ---

func TestCreateReminder(t *testing.T) {
	var gotEventID, gotCreator string
	var gotInput scheduler.CreateReminderInput
	svc := &mockReminderService{
		createFn: func(ctx context.Context, eventID, creatorID string, input scheduler.CreateReminderInput) (*types.Reminder, error) {
			gotEventID, gotCreator, gotInput = eventID, creatorID, input
			return sampleReminder(), nil
		},
	}
	h := NewReminderHandler(svc, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	body := `{
		"title": "Final headcount",
		"message": "Confirm your RSVP",
		"notification_type": "rsvp_reminder",
		"scheduled_time": "2026-06-01T18:00:00Z",
		"target_all_guests": true,
		"send_email": true,
		"send_in_app": true
	}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/events/evt_1/reminders", "usr_host", body))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "evt_1", gotEventID)
	assert.Equal(t, "usr_host", gotCreator)
	assert.Equal(t, types.TypeRSVPReminder, gotInput.NotificationType)
	assert.True(t, gotInput.SendEmail)
	assert.False(t, gotInput.SendSMS)

	var resp ReminderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rem_1", resp.ID)
	assert.Nil(t, resp.SentAt)
}

func TestCreateReminderValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string // field expected in the error details
	}{
		{"missing title", `{"message":"m","notification_type":"custom","scheduled_time":"2026-06-01T18:00:00Z"}`, "title"},
		{"missing message", `{"title":"t","notification_type":"custom","scheduled_time":"2026-06-01T18:00:00Z"}`, "message"},
		{"missing scheduled time", `{"title":"t","message":"m","notification_type":"custom"}`, "scheduled_time"},
		{"bad frequency", `{"title":"t","message":"m","notification_type":"custom","scheduled_time":"2026-06-01T18:00:00Z","frequency":"hourly"}`, "frequency"},
		{"bad rsvp filter", `{"title":"t","message":"m","notification_type":"custom","scheduled_time":"2026-06-01T18:00:00Z","target_rsvp_status":"attending"}`, "target_rsvp_status"},
		{"title too long", `{"title":"` + strings.Repeat("x", 201) + `","message":"m","notification_type":"custom","scheduled_time":"2026-06-01T18:00:00Z"}`, "title"},
	}

	h := NewReminderHandler(&mockReminderService{}, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, authedRequest(http.MethodPost, "/events/evt_1/reminders", "usr_host", tt.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "validation_failed", body.Error.Code)
			assert.Contains(t, body.Error.Details, tt.want)
		})
	}
}

func TestCreateReminderRejectsMalformedJSON(t *testing.T) {
	h := NewReminderHandler(&mockReminderService{}, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/events/evt_1/reminders", "usr_host", `{"title":`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_invalid_json", decodeError(t, rec).Error.Code)
}

func TestCreateReminderPermissionDenied(t *testing.T) {
	svc := &mockReminderService{
		createFn: func(ctx context.Context, eventID, creatorID string, input scheduler.CreateReminderInput) (*types.Reminder, error) {
			return nil, types.NewAppError(types.ErrCodePermissionReminder, "only the event creator or guests may create reminders", nil)
		},
	}
	h := NewReminderHandler(svc, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	body := `{"title":"t","message":"m","notification_type":"custom","scheduled_time":"2026-06-01T18:00:00Z"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/events/evt_1/reminders", "usr_stranger", body))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// --- CreateFromTemplate ---

func TestCreateReminderFromTemplate(t *testing.T) {
	var gotEventID, gotCreator string
	var gotInput scheduler.FromTemplateInput
	svc := &mockReminderService{
		fromTemplateFn: func(ctx context.Context, eventID, creatorID string, input scheduler.FromTemplateInput) (*types.Reminder, error) {
			gotEventID, gotCreator, gotInput = eventID, creatorID, input
			return sampleReminder(), nil
		},
	}
	h := NewReminderHandler(svc, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	body := `{
		"template_id": "tmpl_rsvp",
		"variables": {"event_title": "Spring Gala", "deadline": "May 28"},
		"scheduled_time": "2026-06-01T18:00:00Z",
		"target_all_guests": true,
		"send_email": true,
		"send_in_app": true
	}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/events/evt_1/reminders/from-template", "usr_host", body))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "evt_1", gotEventID)
	assert.Equal(t, "usr_host", gotCreator)
	assert.Equal(t, "tmpl_rsvp", gotInput.TemplateID)
	assert.Equal(t, "Spring Gala", gotInput.Variables["event_title"])
	assert.True(t, gotInput.SendEmail)
	assert.False(t, gotInput.SendSMS)

	var resp ReminderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rem_1", resp.ID)
}

func TestCreateReminderFromTemplateValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing template id", `{"scheduled_time":"2026-06-01T18:00:00Z"}`, "template_id"},
		{"missing scheduled time", `{"template_id":"tmpl_rsvp"}`, "scheduled_time"},
		{"bad rsvp filter", `{"template_id":"tmpl_rsvp","scheduled_time":"2026-06-01T18:00:00Z","target_rsvp_status":"attending"}`, "target_rsvp_status"},
	}

	h := NewReminderHandler(&mockReminderService{}, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, authedRequest(http.MethodPost, "/events/evt_1/reminders/from-template", "usr_host", tt.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "validation_failed", body.Error.Code)
			assert.Contains(t, body.Error.Details, tt.want)
		})
	}
}

func TestCreateReminderFromTemplateNotFound(t *testing.T) {
	svc := &mockReminderService{
		fromTemplateFn: func(ctx context.Context, eventID, creatorID string, input scheduler.FromTemplateInput) (*types.Reminder, error) {
			return nil, types.NewAppError(types.ErrCodeNotFoundTemplate, "template not found", nil)
		},
	}
	h := NewReminderHandler(svc, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	body := `{"template_id":"tmpl_gone","scheduled_time":"2026-06-01T18:00:00Z"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/events/evt_1/reminders/from-template", "usr_host", body))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found_template", decodeError(t, rec).Error.Code)
}

// --- List ---

func TestListRemindersPassesFilterAndPagination(t *testing.T) {
	var gotFilter db.ReminderFilter
	var gotPage types.Pagination
	svc := &mockReminderService{
		listFn: func(ctx context.Context, eventID, callerID string, filter db.ReminderFilter, page types.Pagination) ([]*types.Reminder, int, error) {
			gotFilter, gotPage = filter, page
			return []*types.Reminder{sampleReminder()}, 1, nil
		},
	}
	h := NewReminderHandler(svc, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet,
		"/events/evt_1/reminders?type=rsvp_reminder&status=pending&page=2&per_page=10", "usr_host", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.TypeRSVPReminder, gotFilter.NotificationType)
	assert.Equal(t, types.ReminderPending, gotFilter.Status)
	assert.Equal(t, 2, gotPage.Page)
	assert.Equal(t, 10, gotPage.PerPage)

	var resp types.ListResponse[ReminderResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "rem_1", resp.Data[0].ID)
}

func TestListRemindersNormalizesGarbagePagination(t *testing.T) {
	var gotPage types.Pagination
	svc := &mockReminderService{
		listFn: func(ctx context.Context, eventID, callerID string, filter db.ReminderFilter, page types.Pagination) ([]*types.Reminder, int, error) {
			gotPage = page
			return nil, 0, nil
		},
	}
	h := NewReminderHandler(svc, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet,
		"/events/evt_1/reminders?page=banana&per_page=-3", "usr_host", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, gotPage.Page)
	assert.Positive(t, gotPage.PerPage)
}

// --- Get / Update / Delete ---

func TestGetReminderNotFound(t *testing.T) {
	svc := &mockReminderService{
		getFn: func(ctx context.Context, id, callerID string) (*types.Reminder, error) {
			return nil, types.NewAppError(types.ErrCodeNotFoundReminder, "Reminder not found", nil)
		},
	}
	h := NewReminderHandler(svc, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/reminders/rem_missing", "usr_host", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found_reminder", decodeError(t, rec).Error.Code)
}

func TestUpdateReminderBuildsPatch(t *testing.T) {
	var gotPatch db.ReminderPatch
	svc := &mockReminderService{
		updateFn: func(ctx context.Context, id, editorID string, patch db.ReminderPatch) (*types.Reminder, error) {
			gotPatch = patch
			return sampleReminder(), nil
		},
	}
	h := NewReminderHandler(svc, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPatch, "/reminders/rem_1", "usr_host",
		`{"title":"New title","frequency":"weekly","send_sms":true}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotPatch.Title)
	assert.Equal(t, "New title", *gotPatch.Title)
	require.NotNil(t, gotPatch.Frequency)
	assert.Equal(t, types.FrequencyWeekly, *gotPatch.Frequency)
	require.NotNil(t, gotPatch.SendSMS)
	assert.True(t, *gotPatch.SendSMS)
	assert.Nil(t, gotPatch.Message, "absent fields stay nil")
	assert.Nil(t, gotPatch.ScheduledTime)
}

func TestDeleteReminder(t *testing.T) {
	var gotID, gotEditor string
	svc := &mockReminderService{
		deleteFn: func(ctx context.Context, id, editorID string) error {
			gotID, gotEditor = id, editorID
			return nil
		},
	}
	h := NewReminderHandler(svc, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodDelete, "/reminders/rem_1", "usr_host", ""))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "rem_1", gotID)
	assert.Equal(t, "usr_host", gotEditor)
}

// --- Automatic + test send ---

func TestCreateAutomaticReminders(t *testing.T) {
	svc := &mockReminderService{
		automaticFn: func(ctx context.Context, eventID string) ([]*types.Reminder, error) {
			return []*types.Reminder{sampleReminder(), sampleReminder()}, nil
		},
	}
	h := NewReminderHandler(svc, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/events/evt_1/reminders/automatic", "usr_host", ""))

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp []ReminderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestSendTestNotification(t *testing.T) {
	svc := &mockReminderService{
		testSendFn: func(ctx context.Context, userID string, channel types.Channel, title, message string) (*types.QueueJob, error) {
			return &types.QueueJob{ID: "job_1", Channel: channel, Status: types.JobQueued}, nil
		},
	}
	h := NewReminderHandler(svc, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/notifications/test", "usr_1", `{"channel":"push"}`))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job_1", resp["job_id"])
	assert.Equal(t, "push", resp["channel"])
	assert.Equal(t, "queued", resp["status"])
}

func TestSendTestNotificationRejectsUnknownChannel(t *testing.T) {
	h := NewReminderHandler(&mockReminderService{}, testValidator())
	router := serveRoutes(h.RegisterRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/notifications/test", "usr_1", `{"channel":"carrier_pigeon"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error.Details, "channel")
}
