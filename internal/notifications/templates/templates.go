// Package templates manages reusable reminder templates and the automation
// rules that instantiate them. A template is a subject/message pair with
// {placeholder} variables; rendering substitutes caller-supplied values and
// leaves unknown placeholders intact so a missing variable is visible rather
// than silently blank.
package templates

import (
	"context"
	"strings"

	"gatherly/internal/db"
	"gatherly/internal/types"
)

// TemplateStore abstracts template persistence.
type TemplateStore interface {
	Create(ctx context.Context, tmpl *types.ReminderTemplate) error
	GetByID(ctx context.Context, id string) (*types.ReminderTemplate, error)
	List(ctx context.Context, filter db.TemplateFilter, page types.Pagination) ([]*types.ReminderTemplate, int, error)
}

// RuleStore abstracts automation rule persistence.
type RuleStore interface {
	Create(ctx context.Context, rule *types.AutomationRule) error
	ListForCreator(ctx context.Context, creatorID string, filter db.AutomationRuleFilter, page types.Pagination) ([]*types.AutomationRule, int, error)
}

// Service implements template and automation rule operations.
type Service struct {
	store  TemplateStore
	rules  RuleStore
	logger types.Logger
}

// NewService creates a templates Service.
func NewService(store TemplateStore, rules RuleStore, logger types.Logger) *Service {
	return &Service{store: store, rules: rules, logger: logger}
}

// CreateTemplateInput carries the caller-supplied fields of a new template.
type CreateTemplateInput struct {
	Name             string
	Description      string
	NotificationType types.NotificationType
	SubjectTemplate  string
	MessageTemplate  string
	Variables        []string
	Category         string
	IsPublic         bool

	DefaultAdvanceHours int
	DefaultFrequency    types.ReminderFrequency
}

// CreateTemplate validates and persists a new user template.
func (s *Service) CreateTemplate(ctx context.Context, creatorID string, input CreateTemplateInput) (*types.ReminderTemplate, error) {
	if input.Name == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "name is required", nil)
	}
	if input.SubjectTemplate == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "subject_template is required", nil)
	}
	if input.MessageTemplate == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "message_template is required", nil)
	}
	if !validNotificationType(input.NotificationType) {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidType,
			"unknown notification type: "+string(input.NotificationType), nil)
	}

	tmpl := &types.ReminderTemplate{
		Name:                input.Name,
		Description:         input.Description,
		NotificationType:    input.NotificationType,
		SubjectTemplate:     input.SubjectTemplate,
		MessageTemplate:     input.MessageTemplate,
		Variables:           input.Variables,
		Category:            input.Category,
		IsPublic:            input.IsPublic,
		DefaultAdvanceHours: input.DefaultAdvanceHours,
		DefaultFrequency:    input.DefaultFrequency,
		CreatorID:           creatorID,
	}
	if err := s.store.Create(ctx, tmpl); err != nil {
		return nil, err
	}

	s.logger.Info("reminder template created",
		"template_id", tmpl.ID,
		"creator_id", creatorID,
		"notification_type", string(tmpl.NotificationType),
	)
	return tmpl, nil
}

// GetVisible returns a template the caller may use: system templates, public
// templates, and the caller's own.
func (s *Service) GetVisible(ctx context.Context, id, callerID string) (*types.ReminderTemplate, error) {
	tmpl, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tmpl == nil || !visibleTo(tmpl, callerID) {
		// Hidden templates are reported as absent so existence does not leak.
		return nil, types.NewAppError(types.ErrCodeNotFoundTemplate, "template not found: "+id, nil)
	}
	return tmpl, nil
}

// ListTemplates returns a page of templates visible to the caller.
func (s *Service) ListTemplates(ctx context.Context, callerID string, filter db.TemplateFilter, page types.Pagination) ([]*types.ReminderTemplate, int, error) {
	filter.CallerID = callerID
	return s.store.List(ctx, filter, page)
}

// CreateRuleInput carries the caller-supplied fields of a new automation rule.
type CreateRuleInput struct {
	Name         string
	Description  string
	TriggerEvent string
	Conditions   map[string]any
	TemplateID   string

	DelayHours   int
	AdvanceHours int

	ApplyToAllEvents bool
}

// CreateRule validates and persists a new automation rule. The referenced
// template must exist and be usable by the creator; the rule inherits its
// notification type.
func (s *Service) CreateRule(ctx context.Context, creatorID string, input CreateRuleInput) (*types.AutomationRule, error) {
	if input.Name == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "name is required", nil)
	}
	if input.TriggerEvent == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "trigger_event is required", nil)
	}

	tmpl, err := s.GetVisible(ctx, input.TemplateID, creatorID)
	if err != nil {
		return nil, err
	}

	rule := &types.AutomationRule{
		Name:             input.Name,
		Description:      input.Description,
		TriggerEvent:     input.TriggerEvent,
		Conditions:       input.Conditions,
		NotificationType: tmpl.NotificationType,
		TemplateID:       tmpl.ID,
		DelayHours:       input.DelayHours,
		AdvanceHours:     input.AdvanceHours,
		IsActive:         true,
		ApplyToAllEvents: input.ApplyToAllEvents,
		CreatorID:        creatorID,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("automation rule created",
		"rule_id", rule.ID,
		"template_id", tmpl.ID,
		"trigger_event", rule.TriggerEvent,
	)
	return rule, nil
}

// ListRules returns a page of the creator's automation rules.
func (s *Service) ListRules(ctx context.Context, creatorID string, filter db.AutomationRuleFilter, page types.Pagination) ([]*types.AutomationRule, int, error) {
	return s.rules.ListForCreator(ctx, creatorID, filter, page)
}

// Render substitutes {name} placeholders in tmpl with values from vars.
// Placeholders without a value are left as-is.
func Render(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func visibleTo(tmpl *types.ReminderTemplate, callerID string) bool {
	return tmpl.IsSystem || tmpl.IsPublic || tmpl.CreatorID == callerID
}

func validNotificationType(nt types.NotificationType) bool {
	for _, known := range types.AllNotificationTypes {
		if nt == known {
			return true
		}
	}
	return false
}
