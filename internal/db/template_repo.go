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

// TemplateRepository provides data access for the reminder_templates table.
// Variable name lists are stored as a JSON array in a text column.
type TemplateRepository struct {
	db DBTX
}

// NewTemplateRepository creates a new TemplateRepository backed by the given
// database connection (pool or transaction).
func NewTemplateRepository(db DBTX) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, name, description, notification_type,
	subject_template, message_template, template_variables, category,
	is_public, is_system, is_active, default_advance_hours, default_frequency,
	creator_id, created_at, updated_at`

// Create inserts a new template. The ID is generated when empty.
func (r *TemplateRepository) Create(ctx context.Context, tmpl *types.ReminderTemplate) error {
	if tmpl.ID == "" {
		tmpl.ID = "tmpl_" + uuid.New().String()
	}
	if tmpl.DefaultFrequency == "" {
		tmpl.DefaultFrequency = types.FrequencyOnce
	}
	tmpl.IsActive = true

	row := r.db.QueryRow(ctx,
		`INSERT INTO reminder_templates
		 (id, name, description, notification_type, subject_template,
		  message_template, template_variables, category, is_public, is_system,
		  is_active, default_advance_hours, default_frequency, creator_id,
		  created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11, $12, $13,
		         NOW(), NOW())
		 RETURNING created_at, updated_at`,
		tmpl.ID,
		tmpl.Name,
		nilIfEmpty(tmpl.Description),
		string(tmpl.NotificationType),
		tmpl.SubjectTemplate,
		tmpl.MessageTemplate,
		variablesJSON(tmpl.Variables),
		nilIfEmpty(tmpl.Category),
		tmpl.IsPublic,
		tmpl.IsSystem,
		tmpl.DefaultAdvanceHours,
		string(tmpl.DefaultFrequency),
		nilIfEmpty(tmpl.CreatorID),
	)
	if err := row.Scan(&tmpl.CreatedAt, &tmpl.UpdatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create template", err)
	}
	return nil
}

// GetByID returns the template, or nil when absent or inactive.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*types.ReminderTemplate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+templateColumns+` FROM reminder_templates
		 WHERE id = $1 AND is_active = TRUE`,
		id,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get template", err)
	}
	defer rows.Close()

	tmpls, err := scanTemplates(rows)
	if err != nil {
		return nil, err
	}
	if len(tmpls) == 0 {
		return nil, nil
	}
	return tmpls[0], nil
}

// TemplateFilter narrows List results. CallerID scopes visibility: a caller
// sees system templates, public templates, and their own.
type TemplateFilter struct {
	NotificationType types.NotificationType
	Category         string
	CallerID         string
	OwnOnly          bool
}

// List returns a page of templates visible to the caller plus the total
// count, newest first.
func (r *TemplateRepository) List(ctx context.Context, filter TemplateFilter, page types.Pagination) ([]*types.ReminderTemplate, int, error) {
	page = page.Normalize()

	conditions := []string{"is_active = TRUE"}
	args := []any{}
	argIdx := 1

	if filter.OwnOnly {
		conditions = append(conditions, fmt.Sprintf("creator_id = $%d", argIdx))
		args = append(args, filter.CallerID)
		argIdx++
	} else {
		conditions = append(conditions,
			fmt.Sprintf("(is_system OR is_public OR creator_id = $%d)", argIdx))
		args = append(args, filter.CallerID)
		argIdx++
	}
	if filter.NotificationType != "" {
		conditions = append(conditions, fmt.Sprintf("notification_type = $%d", argIdx))
		args = append(args, string(filter.NotificationType))
		argIdx++
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, filter.Category)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM reminder_templates `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count templates", err)
	}

	query := fmt.Sprintf(
		`SELECT `+templateColumns+` FROM reminder_templates %s
		 ORDER BY is_system DESC, created_at DESC
		 LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1,
	)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to list templates", err)
	}
	defer rows.Close()

	tmpls, err := scanTemplates(rows)
	if err != nil {
		return nil, 0, err
	}
	return tmpls, total, nil
}

func scanTemplates(rows pgx.Rows) ([]*types.ReminderTemplate, error) {
	var tmpls []*types.ReminderTemplate
	for rows.Next() {
		var (
			tmpl        types.ReminderTemplate
			description *string
			notifType   string
			variables   *string
			category    *string
			frequency   string
			creatorID   *string
		)
		err := rows.Scan(
			&tmpl.ID,
			&tmpl.Name,
			&description,
			&notifType,
			&tmpl.SubjectTemplate,
			&tmpl.MessageTemplate,
			&variables,
			&category,
			&tmpl.IsPublic,
			&tmpl.IsSystem,
			&tmpl.IsActive,
			&tmpl.DefaultAdvanceHours,
			&frequency,
			&creatorID,
			&tmpl.CreatedAt,
			&tmpl.UpdatedAt,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan template row", err)
		}
		tmpl.Description = derefString(description)
		tmpl.NotificationType = types.NotificationType(notifType)
		tmpl.Category = derefString(category)
		tmpl.DefaultFrequency = types.ReminderFrequency(frequency)
		tmpl.CreatorID = derefString(creatorID)
		if variables != nil && *variables != "" {
			// Malformed JSON degrades to no declared variables.
			_ = json.Unmarshal([]byte(*variables), &tmpl.Variables)
		}
		tmpls = append(tmpls, &tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating template rows", err)
	}
	return tmpls, nil
}

// variablesJSON serializes the placeholder name list, mapping empty to NULL.
func variablesJSON(names []string) any {
	if len(names) == 0 {
		return nil
	}
	b, err := json.Marshal(names)
	if err != nil {
		return nil
	}
	return string(b)
}
