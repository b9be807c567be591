package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gatherly/internal/types"
)

// AutomationRuleRepository provides data access for the automation_rules
// table. Match conditions are stored as a JSON object in a text column.
type AutomationRuleRepository struct {
	db DBTX
}

// NewAutomationRuleRepository creates a new AutomationRuleRepository backed
// by the given database connection (pool or transaction).
func NewAutomationRuleRepository(db DBTX) *AutomationRuleRepository {
	return &AutomationRuleRepository{db: db}
}

const automationRuleColumns = `id, name, description, trigger_event,
	trigger_conditions, notification_type, template_id, delay_hours,
	advance_hours, is_active, apply_to_all_events, creator_id, created_at,
	updated_at`

// Create inserts a new automation rule. The ID is generated when empty.
func (r *AutomationRuleRepository) Create(ctx context.Context, rule *types.AutomationRule) error {
	if rule.ID == "" {
		rule.ID = "rule_" + uuid.New().String()
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO automation_rules
		 (id, name, description, trigger_event, trigger_conditions,
		  notification_type, template_id, delay_hours, advance_hours,
		  is_active, apply_to_all_events, creator_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		rule.ID,
		rule.Name,
		nilIfEmpty(rule.Description),
		rule.TriggerEvent,
		conditionsJSON(rule.Conditions),
		string(rule.NotificationType),
		rule.TemplateID,
		rule.DelayHours,
		rule.AdvanceHours,
		rule.IsActive,
		rule.ApplyToAllEvents,
		rule.CreatorID,
	)
	if err := row.Scan(&rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create automation rule", err)
	}
	return nil
}

// AutomationRuleFilter narrows ListForCreator results.
type AutomationRuleFilter struct {
	TriggerEvent string
	ActiveOnly   bool
}

// ListForCreator returns a page of the creator's automation rules plus the
// total count, newest first.
func (r *AutomationRuleRepository) ListForCreator(ctx context.Context, creatorID string, filter AutomationRuleFilter, page types.Pagination) ([]*types.AutomationRule, int, error) {
	page = page.Normalize()

	conditions := []string{"creator_id = $1"}
	args := []any{creatorID}
	argIdx := 2

	if filter.TriggerEvent != "" {
		conditions = append(conditions, fmt.Sprintf("trigger_event = $%d", argIdx))
		args = append(args, filter.TriggerEvent)
		argIdx++
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM automation_rules `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count automation rules", err)
	}

	query := fmt.Sprintf(
		`SELECT `+automationRuleColumns+` FROM automation_rules %s
		 ORDER BY created_at DESC
		 LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1,
	)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to list automation rules", err)
	}
	defer rows.Close()

	rules, err := scanAutomationRules(rows)
	if err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

func scanAutomationRules(rows pgx.Rows) ([]*types.AutomationRule, error) {
	var rules []*types.AutomationRule
	for rows.Next() {
		var (
			rule        types.AutomationRule
			description *string
			conditions  *string
			notifType   string
		)
		err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&description,
			&rule.TriggerEvent,
			&conditions,
			&notifType,
			&rule.TemplateID,
			&rule.DelayHours,
			&rule.AdvanceHours,
			&rule.IsActive,
			&rule.ApplyToAllEvents,
			&rule.CreatorID,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan automation rule row", err)
		}
		rule.Description = derefString(description)
		rule.NotificationType = types.NotificationType(notifType)
		if conditions != nil && *conditions != "" {
			// Malformed JSON degrades to no match conditions.
			_ = json.Unmarshal([]byte(*conditions), &rule.Conditions)
		}
		rules = append(rules, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating automation rule rows", err)
	}
	return rules, nil
}

// conditionsJSON serializes the match conditions, mapping empty to NULL.
func conditionsJSON(conditions map[string]any) any {
	if len(conditions) == 0 {
		return nil
	}
	b, err := json.Marshal(conditions)
	if err != nil {
		return nil
	}
	return string(b)
}
