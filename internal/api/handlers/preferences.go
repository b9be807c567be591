package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatherly/internal/core"
	"gatherly/internal/types"
)

// PreferenceService is the resolver surface the preference handler needs.
type PreferenceService interface {
	Resolve(ctx context.Context, userID string, nt types.NotificationType) (*types.NotificationPreference, error)
	ResolveAll(ctx context.Context, userID string) ([]*types.NotificationPreference, error)
	Save(ctx context.Context, pref *types.NotificationPreference) error
	Seed(ctx context.Context, userID string) (int, error)
	Reset(ctx context.Context, userID string) (int, error)
}

// UpdatePreferenceRequest is the request body for PUT /v1/preferences/{type}.
type UpdatePreferenceRequest struct {
	EmailEnabled bool `json:"email_enabled"`
	SMSEnabled   bool `json:"sms_enabled"`
	PushEnabled  bool `json:"push_enabled"`
	InAppEnabled bool `json:"in_app_enabled"`

	AdvanceNoticeHours int    `json:"advance_notice_hours" validate:"gte=0,max=720"`
	QuietHoursStart    string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd      string `json:"quiet_hours_end,omitempty"`
	MaxDaily           int    `json:"max_daily" validate:"gte=0"`
}

// PreferenceResponse is the wire form of one per-type preference row.
type PreferenceResponse struct {
	NotificationType string `json:"notification_type"`
	EmailEnabled     bool   `json:"email_enabled"`
	SMSEnabled       bool   `json:"sms_enabled"`
	PushEnabled      bool   `json:"push_enabled"`
	InAppEnabled     bool   `json:"in_app_enabled"`

	AdvanceNoticeHours int    `json:"advance_notice_hours"`
	QuietHoursStart    string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd      string `json:"quiet_hours_end,omitempty"`
	MaxDaily           int    `json:"max_daily"`

	Stored    bool       `json:"stored"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func toPreferenceResponse(pref *types.NotificationPreference) PreferenceResponse {
	resp := PreferenceResponse{
		NotificationType:   string(pref.NotificationType),
		EmailEnabled:       pref.EmailEnabled,
		SMSEnabled:         pref.SMSEnabled,
		PushEnabled:        pref.PushEnabled,
		InAppEnabled:       pref.InAppEnabled,
		AdvanceNoticeHours: pref.AdvanceNoticeHours,
		QuietHoursStart:    pref.QuietHoursStart,
		QuietHoursEnd:      pref.QuietHoursEnd,
		MaxDaily:           pref.MaxDaily,
		Stored:             pref.ID != "",
	}
	if !pref.UpdatedAt.IsZero() {
		updatedAt := pref.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	return resp
}

// PreferenceHandler serves the caller's per-type notification preferences.
// Unstored types surface system defaults with stored=false.
type PreferenceHandler struct {
	prefs     PreferenceService
	validator *core.Validator
}

// NewPreferenceHandler creates a PreferenceHandler.
func NewPreferenceHandler(prefs PreferenceService, v *core.Validator) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs, validator: v}
}

// RegisterRoutes mounts preference routes on the provided router.
func (h *PreferenceHandler) RegisterRoutes(r chi.Router) {
	r.Route("/preferences", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/seed", h.Seed)
		r.Delete("/", h.Reset)
		r.Route("/{type}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Put)
		})
	})
}

// List handles GET /v1/preferences: every notification type, stored rows
// merged over defaults.
func (h *PreferenceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	prefs, err := h.prefs.ResolveAll(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	out := make([]PreferenceResponse, 0, len(prefs))
	for _, pref := range prefs {
		out = append(out, toPreferenceResponse(pref))
	}
	core.JSON(w, r, http.StatusOK, out)
}

// Get handles GET /v1/preferences/{type}.
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	pref, err := h.prefs.Resolve(r.Context(), userID, types.NotificationType(chi.URLParam(r, "type")))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, toPreferenceResponse(pref))
}

// Put handles PUT /v1/preferences/{type}: full replacement of one type's
// settings. The resolver validates quiet hours and type names.
func (h *PreferenceHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	var req UpdatePreferenceRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	pref := &types.NotificationPreference{
		UserID:             userID,
		NotificationType:   types.NotificationType(chi.URLParam(r, "type")),
		EmailEnabled:       req.EmailEnabled,
		SMSEnabled:         req.SMSEnabled,
		PushEnabled:        req.PushEnabled,
		InAppEnabled:       req.InAppEnabled,
		AdvanceNoticeHours: req.AdvanceNoticeHours,
		QuietHoursStart:    req.QuietHoursStart,
		QuietHoursEnd:      req.QuietHoursEnd,
		MaxDaily:           req.MaxDaily,
	}

	if err := h.prefs.Save(r.Context(), pref); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, toPreferenceResponse(pref))
}

// Seed handles POST /v1/preferences/seed: materialize default rows for every
// notification type the caller does not have yet.
func (h *PreferenceHandler) Seed(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	created, err := h.prefs.Seed(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, map[string]int{"created": created})
}

// Reset handles DELETE /v1/preferences: drop all stored rows so system
// defaults apply again.
func (h *PreferenceHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	deleted, err := h.prefs.Reset(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, map[string]int{"deleted": deleted})
}
