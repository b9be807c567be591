package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatherly/internal/core"
	"gatherly/internal/db"
	"gatherly/internal/notifications/templates"
	"gatherly/internal/types"
)

// TemplateService is the templates surface the handler needs.
type TemplateService interface {
	CreateTemplate(ctx context.Context, creatorID string, input templates.CreateTemplateInput) (*types.ReminderTemplate, error)
	GetVisible(ctx context.Context, id, callerID string) (*types.ReminderTemplate, error)
	ListTemplates(ctx context.Context, callerID string, filter db.TemplateFilter, page types.Pagination) ([]*types.ReminderTemplate, int, error)
	CreateRule(ctx context.Context, creatorID string, input templates.CreateRuleInput) (*types.AutomationRule, error)
	ListRules(ctx context.Context, creatorID string, filter db.AutomationRuleFilter, page types.Pagination) ([]*types.AutomationRule, int, error)
}

// CreateTemplateRequest is the request body for POST /v1/templates.
type CreateTemplateRequest struct {
	Name             string   `json:"name" validate:"required,max=200"`
	Description      string   `json:"description,omitempty" validate:"omitempty,max=1000"`
	NotificationType string   `json:"notification_type" validate:"required"`
	SubjectTemplate  string   `json:"subject_template" validate:"required,max=200"`
	MessageTemplate  string   `json:"message_template" validate:"required,max=2000"`
	Variables        []string `json:"variables,omitempty" validate:"max=20"`
	Category         string   `json:"category,omitempty" validate:"omitempty,max=100"`
	IsPublic         bool     `json:"is_public"`

	DefaultAdvanceHours int    `json:"default_advance_hours,omitempty" validate:"omitempty,gte=0,lte=720"`
	DefaultFrequency    string `json:"default_frequency,omitempty" validate:"omitempty,oneof=once daily weekly custom"`
}

// CreateAutomationRuleRequest is the request body for POST /v1/automation-rules.
type CreateAutomationRuleRequest struct {
	Name         string         `json:"name" validate:"required,max=200"`
	Description  string         `json:"description,omitempty" validate:"omitempty,max=1000"`
	TriggerEvent string         `json:"trigger_event" validate:"required,max=100"`
	Conditions   map[string]any `json:"conditions,omitempty"`
	TemplateID   string         `json:"template_id" validate:"required"`

	DelayHours   int `json:"delay_hours,omitempty" validate:"omitempty,gte=0,lte=720"`
	AdvanceHours int `json:"advance_hours,omitempty" validate:"omitempty,gte=0,lte=720"`

	ApplyToAllEvents bool `json:"apply_to_all_events"`
}

// TemplateResponse is the wire form of a reminder template.
type TemplateResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	NotificationType string    `json:"notification_type"`
	SubjectTemplate  string    `json:"subject_template"`
	MessageTemplate  string    `json:"message_template"`
	Variables        []string  `json:"variables,omitempty"`
	Category         string    `json:"category,omitempty"`
	IsPublic         bool      `json:"is_public"`
	IsSystem         bool      `json:"is_system"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	DefaultAdvanceHours int    `json:"default_advance_hours"`
	DefaultFrequency    string `json:"default_frequency"`
}

func toTemplateResponse(tmpl *types.ReminderTemplate) TemplateResponse {
	return TemplateResponse{
		ID:                  tmpl.ID,
		Name:                tmpl.Name,
		Description:         tmpl.Description,
		NotificationType:    string(tmpl.NotificationType),
		SubjectTemplate:     tmpl.SubjectTemplate,
		MessageTemplate:     tmpl.MessageTemplate,
		Variables:           tmpl.Variables,
		Category:            tmpl.Category,
		IsPublic:            tmpl.IsPublic,
		IsSystem:            tmpl.IsSystem,
		DefaultAdvanceHours: tmpl.DefaultAdvanceHours,
		DefaultFrequency:    string(tmpl.DefaultFrequency),
		CreatedAt:           tmpl.CreatedAt,
		UpdatedAt:           tmpl.UpdatedAt,
	}
}

// AutomationRuleResponse is the wire form of an automation rule.
type AutomationRuleResponse struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	TriggerEvent     string         `json:"trigger_event"`
	Conditions       map[string]any `json:"conditions,omitempty"`
	NotificationType string         `json:"notification_type"`
	TemplateID       string         `json:"template_id"`
	DelayHours       int            `json:"delay_hours"`
	AdvanceHours     int            `json:"advance_hours"`
	IsActive         bool           `json:"is_active"`
	ApplyToAllEvents bool           `json:"apply_to_all_events"`
	CreatedAt        time.Time      `json:"created_at"`
}

func toAutomationRuleResponse(rule *types.AutomationRule) AutomationRuleResponse {
	return AutomationRuleResponse{
		ID:               rule.ID,
		Name:             rule.Name,
		Description:      rule.Description,
		TriggerEvent:     rule.TriggerEvent,
		Conditions:       rule.Conditions,
		NotificationType: string(rule.NotificationType),
		TemplateID:       rule.TemplateID,
		DelayHours:       rule.DelayHours,
		AdvanceHours:     rule.AdvanceHours,
		IsActive:         rule.IsActive,
		ApplyToAllEvents: rule.ApplyToAllEvents,
		CreatedAt:        rule.CreatedAt,
	}
}

// TemplateHandler serves template and automation rule management.
type TemplateHandler struct {
	service   TemplateService
	validator *core.Validator
}

// NewTemplateHandler creates a TemplateHandler.
func NewTemplateHandler(service TemplateService, v *core.Validator) *TemplateHandler {
	return &TemplateHandler{service: service, validator: v}
}

// RegisterRoutes mounts template routes on the provided router.
func (h *TemplateHandler) RegisterRoutes(r chi.Router) {
	r.Route("/templates", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})
	r.Route("/automation-rules", func(r chi.Router) {
		r.Post("/", h.CreateRule)
		r.Get("/", h.ListRules)
	})
}

// Create handles POST /v1/templates.
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	var req CreateTemplateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	tmpl, err := h.service.CreateTemplate(r.Context(), userID, templates.CreateTemplateInput{
		Name:                req.Name,
		Description:         req.Description,
		NotificationType:    types.NotificationType(req.NotificationType),
		SubjectTemplate:     req.SubjectTemplate,
		MessageTemplate:     req.MessageTemplate,
		Variables:           req.Variables,
		Category:            req.Category,
		IsPublic:            req.IsPublic,
		DefaultAdvanceHours: req.DefaultAdvanceHours,
		DefaultFrequency:    types.ReminderFrequency(req.DefaultFrequency),
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, toTemplateResponse(tmpl))
}

// Get handles GET /v1/templates/{id}.
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())
	tmpl, err := h.service.GetVisible(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, toTemplateResponse(tmpl))
}

// List handles GET /v1/templates.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())
	q := r.URL.Query()

	filter := db.TemplateFilter{
		NotificationType: types.NotificationType(q.Get("type")),
		Category:         q.Get("category"),
		OwnOnly:          q.Get("own") == "true",
	}
	page := parsePagination(q.Get("page"), q.Get("per_page"))

	tmpls, total, err := h.service.ListTemplates(r.Context(), userID, filter, page)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	out := types.ListResponse[TemplateResponse]{
		Data:    make([]TemplateResponse, 0, len(tmpls)),
		Total:   total,
		Page:    page.Page,
		PerPage: page.PerPage,
	}
	for _, tmpl := range tmpls {
		out.Data = append(out.Data, toTemplateResponse(tmpl))
	}
	core.JSON(w, r, http.StatusOK, out)
}

// CreateRule handles POST /v1/automation-rules.
func (h *TemplateHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	var req CreateAutomationRuleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	rule, err := h.service.CreateRule(r.Context(), userID, templates.CreateRuleInput{
		Name:             req.Name,
		Description:      req.Description,
		TriggerEvent:     req.TriggerEvent,
		Conditions:       req.Conditions,
		TemplateID:       req.TemplateID,
		DelayHours:       req.DelayHours,
		AdvanceHours:     req.AdvanceHours,
		ApplyToAllEvents: req.ApplyToAllEvents,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, toAutomationRuleResponse(rule))
}

// ListRules handles GET /v1/automation-rules.
func (h *TemplateHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())
	q := r.URL.Query()

	filter := db.AutomationRuleFilter{
		TriggerEvent: q.Get("trigger_event"),
		ActiveOnly:   q.Get("active") == "true",
	}
	page := parsePagination(q.Get("page"), q.Get("per_page"))

	rules, total, err := h.service.ListRules(r.Context(), userID, filter, page)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	out := types.ListResponse[AutomationRuleResponse]{
		Data:    make([]AutomationRuleResponse, 0, len(rules)),
		Total:   total,
		Page:    page.Page,
		PerPage: page.PerPage,
	}
	for _, rule := range rules {
		out.Data = append(out.Data, toAutomationRuleResponse(rule))
	}
	core.JSON(w, r, http.StatusOK, out)
}
