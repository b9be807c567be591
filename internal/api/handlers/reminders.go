// Package handlers contains the HTTP handler implementations for the
// Gatherly notification API. Each handler depends on narrow, locally
// defined interfaces so tests can inject fakes without touching the
// concrete services.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gatherly/internal/core"
	"gatherly/internal/db"
	"gatherly/internal/notifications/scheduler"
	"gatherly/internal/types"
)

// ReminderService is the scheduler surface the reminder handler needs.
type ReminderService interface {
	CreateReminder(ctx context.Context, eventID, creatorID string, input scheduler.CreateReminderInput) (*types.Reminder, error)
	GetReminder(ctx context.Context, id, callerID string) (*types.Reminder, error)
	ListReminders(ctx context.Context, eventID, callerID string, filter db.ReminderFilter, page types.Pagination) ([]*types.Reminder, int, error)
	UpdateReminder(ctx context.Context, id, editorID string, patch db.ReminderPatch) (*types.Reminder, error)
	DeleteReminder(ctx context.Context, id, editorID string) error
	CreateAutomaticReminders(ctx context.Context, eventID string) ([]*types.Reminder, error)
	CreateReminderFromTemplate(ctx context.Context, eventID, creatorID string, input scheduler.FromTemplateInput) (*types.Reminder, error)
	SendTestNotification(ctx context.Context, userID string, channel types.Channel, title, message string) (*types.QueueJob, error)
}

// CreateReminderRequest is the request body for POST /v1/events/{eventID}/reminders.
type CreateReminderRequest struct {
	Title            string    `json:"title" validate:"required,max=200"`
	Message          string    `json:"message" validate:"required,max=2000"`
	NotificationType string    `json:"notification_type" validate:"required"`
	ScheduledTime    time.Time `json:"scheduled_time" validate:"required"`
	Frequency        string    `json:"frequency,omitempty" validate:"omitempty,oneof=once daily weekly custom"`
	RecurrenceCount  int       `json:"recurrence_count,omitempty" validate:"omitempty,min=1,max=30"`

	SendEmail bool `json:"send_email"`
	SendSMS   bool `json:"send_sms"`
	SendPush  bool `json:"send_push"`
	SendInApp bool `json:"send_in_app"`

	TargetAllGuests  bool     `json:"target_all_guests"`
	TargetUserIDs    []string `json:"target_user_ids,omitempty" validate:"max=500"`
	TargetRSVPStatus string   `json:"target_rsvp_status,omitempty" validate:"omitempty,oneof=pending accepted declined maybe"`
}

// UpdateReminderRequest is the request body for PATCH /v1/reminders/{id}.
// Absent fields are left unchanged.
type UpdateReminderRequest struct {
	Title            *string    `json:"title,omitempty" validate:"omitempty,max=200"`
	Message          *string    `json:"message,omitempty" validate:"omitempty,max=2000"`
	ScheduledTime    *time.Time `json:"scheduled_time,omitempty"`
	Frequency        *string    `json:"frequency,omitempty" validate:"omitempty,oneof=once daily weekly custom"`
	IsActive         *bool      `json:"is_active,omitempty"`
	SendEmail        *bool      `json:"send_email,omitempty"`
	SendSMS          *bool      `json:"send_sms,omitempty"`
	SendPush         *bool      `json:"send_push,omitempty"`
	SendInApp        *bool      `json:"send_in_app,omitempty"`
	TargetAllGuests  *bool      `json:"target_all_guests,omitempty"`
	TargetUserIDs    *[]string  `json:"target_user_ids,omitempty" validate:"omitempty,max=500"`
	TargetRSVPStatus *string    `json:"target_rsvp_status,omitempty" validate:"omitempty,oneof=pending accepted declined maybe"`
}

// CreateFromTemplateRequest is the request body for
// POST /v1/events/{eventID}/reminders/from-template.
type CreateFromTemplateRequest struct {
	TemplateID    string            `json:"template_id" validate:"required"`
	Variables     map[string]string `json:"variables,omitempty" validate:"max=20"`
	ScheduledTime time.Time         `json:"scheduled_time" validate:"required"`

	SendEmail bool `json:"send_email"`
	SendSMS   bool `json:"send_sms"`
	SendPush  bool `json:"send_push"`
	SendInApp bool `json:"send_in_app"`

	TargetAllGuests  bool     `json:"target_all_guests"`
	TargetUserIDs    []string `json:"target_user_ids,omitempty" validate:"max=500"`
	TargetRSVPStatus string   `json:"target_rsvp_status,omitempty" validate:"omitempty,oneof=pending accepted declined maybe"`
}

// TestNotificationRequest is the request body for POST /v1/notifications/test.
type TestNotificationRequest struct {
	Channel string `json:"channel" validate:"required,oneof=email sms push in_app"`
	Title   string `json:"title,omitempty" validate:"omitempty,max=200"`
	Message string `json:"message,omitempty" validate:"omitempty,max=2000"`
}

// ReminderResponse is the wire form of a reminder.
type ReminderResponse struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	NotificationType string     `json:"notification_type"`
	ScheduledTime    time.Time  `json:"scheduled_time"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	Frequency        string     `json:"frequency"`
	RecurrenceCount  int        `json:"recurrence_count"`
	RecurrenceSent   int        `json:"recurrence_sent"`
	Status           string     `json:"status"`
	IsActive         bool       `json:"is_active"`
	AutoGenerated    bool       `json:"auto_generated"`
	SendEmail        bool       `json:"send_email"`
	SendSMS          bool       `json:"send_sms"`
	SendPush         bool       `json:"send_push"`
	SendInApp        bool       `json:"send_in_app"`
	TargetAllGuests  bool       `json:"target_all_guests"`
	TargetUserIDs    []string   `json:"target_user_ids,omitempty"`
	TargetRSVPStatus string     `json:"target_rsvp_status,omitempty"`
	EventID          string     `json:"event_id"`
	CreatorID        string     `json:"creator_id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toReminderResponse(rem *types.Reminder) ReminderResponse {
	resp := ReminderResponse{
		ID:               rem.ID,
		Title:            rem.Title,
		Message:          rem.Message,
		NotificationType: string(rem.NotificationType),
		ScheduledTime:    rem.ScheduledTime,
		Frequency:        string(rem.Frequency),
		RecurrenceCount:  rem.RecurrenceCount,
		RecurrenceSent:   rem.RecurrenceSent,
		Status:           string(rem.Status),
		IsActive:         rem.IsActive,
		AutoGenerated:    rem.AutoGenerated,
		SendEmail:        rem.SendEmail,
		SendSMS:          rem.SendSMS,
		SendPush:         rem.SendPush,
		SendInApp:        rem.SendInApp,
		TargetAllGuests:  rem.TargetAllGuests,
		TargetUserIDs:    rem.TargetUserIDs,
		TargetRSVPStatus: string(rem.TargetRSVPStatus),
		EventID:          rem.EventID,
		CreatorID:        rem.CreatorID,
		CreatedAt:        rem.CreatedAt,
		UpdatedAt:        rem.UpdatedAt,
	}
	if !rem.SentAt.IsZero() {
		sentAt := rem.SentAt
		resp.SentAt = &sentAt
	}
	return resp
}

// ReminderHandler serves reminder CRUD, automatic generation, and test sends.
type ReminderHandler struct {
	service   ReminderService
	validator *core.Validator
}

// NewReminderHandler creates a ReminderHandler.
func NewReminderHandler(service ReminderService, v *core.Validator) *ReminderHandler {
	return &ReminderHandler{service: service, validator: v}
}

// RegisterRoutes mounts reminder routes on the provided router.
func (h *ReminderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/events/{eventID}/reminders", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Post("/automatic", h.CreateAutomatic)
		r.Post("/from-template", h.CreateFromTemplate)
	})
	r.Route("/reminders/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
	})
	r.Post("/notifications/test", h.TestSend)
}

// Create handles POST /v1/events/{eventID}/reminders.
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())
	eventID := chi.URLParam(r, "eventID")

	var req CreateReminderRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	input := scheduler.CreateReminderInput{
		Title:            req.Title,
		Message:          req.Message,
		NotificationType: types.NotificationType(req.NotificationType),
		ScheduledTime:    req.ScheduledTime,
		Frequency:        types.ReminderFrequency(req.Frequency),
		RecurrenceCount:  req.RecurrenceCount,
		SendEmail:        req.SendEmail,
		SendSMS:          req.SendSMS,
		SendPush:         req.SendPush,
		SendInApp:        req.SendInApp,
		TargetAllGuests:  req.TargetAllGuests,
		TargetUserIDs:    req.TargetUserIDs,
		TargetRSVPStatus: types.RSVPStatus(req.TargetRSVPStatus),
	}

	rem, err := h.service.CreateReminder(r.Context(), eventID, userID, input)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, toReminderResponse(rem))
}

// List handles GET /v1/events/{eventID}/reminders.
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())
	eventID := chi.URLParam(r, "eventID")
	q := r.URL.Query()

	filter := db.ReminderFilter{
		NotificationType: types.NotificationType(q.Get("type")),
		Status:           types.ReminderStatus(q.Get("status")),
		Frequency:        types.ReminderFrequency(q.Get("frequency")),
		CreatorID:        q.Get("creator_id"),
	}
	page := parsePagination(q.Get("page"), q.Get("per_page"))

	rems, total, err := h.service.ListReminders(r.Context(), eventID, userID, filter, page)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	out := types.ListResponse[ReminderResponse]{
		Data:    make([]ReminderResponse, 0, len(rems)),
		Total:   total,
		Page:    page.Page,
		PerPage: page.PerPage,
	}
	for _, rem := range rems {
		out.Data = append(out.Data, toReminderResponse(rem))
	}
	core.JSON(w, r, http.StatusOK, out)
}

// Get handles GET /v1/reminders/{id}.
func (h *ReminderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())
	rem, err := h.service.GetReminder(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, toReminderResponse(rem))
}

// Update handles PATCH /v1/reminders/{id}.
func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	var req UpdateReminderRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	patch := db.ReminderPatch{
		Title:           req.Title,
		Message:         req.Message,
		ScheduledTime:   req.ScheduledTime,
		IsActive:        req.IsActive,
		SendEmail:       req.SendEmail,
		SendSMS:         req.SendSMS,
		SendPush:        req.SendPush,
		SendInApp:       req.SendInApp,
		TargetAllGuests: req.TargetAllGuests,
		TargetUserIDs:   req.TargetUserIDs,
	}
	if req.Frequency != nil {
		freq := types.ReminderFrequency(*req.Frequency)
		patch.Frequency = &freq
	}
	if req.TargetRSVPStatus != nil {
		rsvp := types.RSVPStatus(*req.TargetRSVPStatus)
		patch.TargetRSVPStatus = &rsvp
	}

	rem, err := h.service.UpdateReminder(r.Context(), chi.URLParam(r, "id"), userID, patch)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, toReminderResponse(rem))
}

// Delete handles DELETE /v1/reminders/{id}. Deleting a reminder also cancels
// its queued jobs; already sent deliveries are untouched.
func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())
	if err := h.service.DeleteReminder(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateAutomatic handles POST /v1/events/{eventID}/reminders/automatic.
// It generates the standard reminder set for the event (RSVP, countdown,
// dress code) based on the event's start time.
func (h *ReminderHandler) CreateAutomatic(w http.ResponseWriter, r *http.Request) {
	rems, err := h.service.CreateAutomaticReminders(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	out := make([]ReminderResponse, 0, len(rems))
	for _, rem := range rems {
		out = append(out, toReminderResponse(rem))
	}
	core.JSON(w, r, http.StatusCreated, out)
}

// CreateFromTemplate handles POST /v1/events/{eventID}/reminders/from-template.
// The template supplies title, message, type, and frequency; the request
// supplies scheduling, channels, and targeting.
func (h *ReminderHandler) CreateFromTemplate(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())
	eventID := chi.URLParam(r, "eventID")

	var req CreateFromTemplateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	rem, err := h.service.CreateReminderFromTemplate(r.Context(), eventID, userID, scheduler.FromTemplateInput{
		TemplateID:       req.TemplateID,
		Variables:        req.Variables,
		ScheduledTime:    req.ScheduledTime,
		SendEmail:        req.SendEmail,
		SendSMS:          req.SendSMS,
		SendPush:         req.SendPush,
		SendInApp:        req.SendInApp,
		TargetAllGuests:  req.TargetAllGuests,
		TargetUserIDs:    req.TargetUserIDs,
		TargetRSVPStatus: types.RSVPStatus(req.TargetRSVPStatus),
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, toReminderResponse(rem))
}

// TestSend handles POST /v1/notifications/test: enqueue a single immediate
// job to the caller over one channel so users can verify their setup.
func (h *ReminderHandler) TestSend(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	var req TestNotificationRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	job, err := h.service.SendTestNotification(r.Context(), userID, types.Channel(req.Channel), req.Title, req.Message)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusAccepted, map[string]string{
		"job_id":  job.ID,
		"channel": string(job.Channel),
		"status":  string(job.Status),
	})
}

// parsePagination reads page/per_page query values, tolerating garbage.
func parsePagination(pageStr, perPageStr string) types.Pagination {
	page, _ := strconv.Atoi(pageStr)
	perPage, _ := strconv.Atoi(perPageStr)
	return types.Pagination{Page: page, PerPage: perPage}.Normalize()
}
