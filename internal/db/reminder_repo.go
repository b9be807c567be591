package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gatherly/internal/types"
)

// ReminderRepository provides data access for the reminders table.
// Target user lists are stored as a JSON array in a text column; everything
// else is flat columns.
type ReminderRepository struct {
	db DBTX
}

// NewReminderRepository creates a new ReminderRepository backed by the given
// database connection (pool or transaction).
func NewReminderRepository(db DBTX) *ReminderRepository {
	return &ReminderRepository{db: db}
}

const reminderColumns = `id, title, message, notification_type, scheduled_time,
	sent_at, frequency, recurrence_count, recurrence_sent, status, is_active,
	auto_generated, send_email, send_sms, send_push, send_in_app,
	target_all_guests, target_user_ids, target_rsvp_status, event_id,
	creator_id, created_at, updated_at`

// Create inserts a new reminder. The ID is generated when empty.
func (r *ReminderRepository) Create(ctx context.Context, rem *types.Reminder) error {
	if rem.ID == "" {
		rem.ID = "rem_" + uuid.New().String()
	}
	if rem.Status == "" {
		rem.Status = types.ReminderPending
	}
	if rem.Frequency == "" {
		rem.Frequency = types.FrequencyOnce
	}
	if rem.RecurrenceCount == 0 {
		rem.RecurrenceCount = 1
	}
	rem.IsActive = true

	row := r.db.QueryRow(ctx,
		`INSERT INTO reminders
		 (id, title, message, notification_type, scheduled_time, frequency,
		  recurrence_count, recurrence_sent, status, is_active, auto_generated,
		  send_email, send_sms, send_push, send_in_app, target_all_guests,
		  target_user_ids, target_rsvp_status, event_id, creator_id,
		  created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, TRUE, $9, $10, $11, $12,
		         $13, $14, $15, $16, $17, $18, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		rem.ID,
		rem.Title,
		rem.Message,
		string(rem.NotificationType),
		rem.ScheduledTime,
		string(rem.Frequency),
		rem.RecurrenceCount,
		string(rem.Status),
		rem.AutoGenerated,
		rem.SendEmail,
		rem.SendSMS,
		rem.SendPush,
		rem.SendInApp,
		rem.TargetAllGuests,
		targetIDsJSON(rem.TargetUserIDs),
		nilIfEmpty(string(rem.TargetRSVPStatus)),
		rem.EventID,
		rem.CreatorID,
	)
	if err := row.Scan(&rem.CreatedAt, &rem.UpdatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create reminder", err)
	}
	return nil
}

// GetByID returns the reminder, or nil when absent or soft-deleted.
func (r *ReminderRepository) GetByID(ctx context.Context, id string) (*types.Reminder, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get reminder", err)
	}
	defer rows.Close()

	rems, err := scanReminders(rows)
	if err != nil {
		return nil, err
	}
	if len(rems) == 0 {
		return nil, nil
	}
	return rems[0], nil
}

// ReminderFilter narrows ListForEvent results.
type ReminderFilter struct {
	NotificationType types.NotificationType
	Status           types.ReminderStatus
	CreatorID        string
	Frequency        types.ReminderFrequency
}

// ListForEvent returns a page of an event's reminders plus the total count.
func (r *ReminderRepository) ListForEvent(ctx context.Context, eventID string, filter ReminderFilter, page types.Pagination) ([]*types.Reminder, int, error) {
	page = page.Normalize()

	conditions := []string{"event_id = $1", "deleted_at IS NULL"}
	args := []any{eventID}
	argIdx := 2

	if filter.NotificationType != "" {
		conditions = append(conditions, fmt.Sprintf("notification_type = $%d", argIdx))
		args = append(args, string(filter.NotificationType))
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.CreatorID != "" {
		conditions = append(conditions, fmt.Sprintf("creator_id = $%d", argIdx))
		args = append(args, filter.CreatorID)
		argIdx++
	}
	if filter.Frequency != "" {
		conditions = append(conditions, fmt.Sprintf("frequency = $%d", argIdx))
		args = append(args, string(filter.Frequency))
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM reminders `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count reminders", err)
	}

	query := fmt.Sprintf(
		`SELECT `+reminderColumns+` FROM reminders %s
		 ORDER BY scheduled_time
		 LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1,
	)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to list reminders", err)
	}
	defer rows.Close()

	rems, err := scanReminders(rows)
	if err != nil {
		return nil, 0, err
	}
	return rems, total, nil
}

// ReminderPatch carries the mutable fields of a reminder edit. Nil pointers
// leave the column unchanged.
type ReminderPatch struct {
	Title            *string
	Message          *string
	ScheduledTime    *time.Time
	Frequency        *types.ReminderFrequency
	IsActive         *bool
	SendEmail        *bool
	SendSMS          *bool
	SendPush         *bool
	SendInApp        *bool
	TargetAllGuests  *bool
	TargetUserIDs    *[]string
	TargetRSVPStatus *types.RSVPStatus
}

// Update applies a patch and returns the updated reminder. Returns nil when
// the reminder does not exist.
func (r *ReminderRepository) Update(ctx context.Context, id string, patch ReminderPatch) (*types.Reminder, error) {
	var sets []string
	var args []any
	argIdx := 1

	set := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, val)
		argIdx++
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Message != nil {
		set("message", *patch.Message)
	}
	if patch.ScheduledTime != nil {
		set("scheduled_time", *patch.ScheduledTime)
	}
	if patch.Frequency != nil {
		set("frequency", string(*patch.Frequency))
	}
	if patch.IsActive != nil {
		set("is_active", *patch.IsActive)
	}
	if patch.SendEmail != nil {
		set("send_email", *patch.SendEmail)
	}
	if patch.SendSMS != nil {
		set("send_sms", *patch.SendSMS)
	}
	if patch.SendPush != nil {
		set("send_push", *patch.SendPush)
	}
	if patch.SendInApp != nil {
		set("send_in_app", *patch.SendInApp)
	}
	if patch.TargetAllGuests != nil {
		set("target_all_guests", *patch.TargetAllGuests)
	}
	if patch.TargetUserIDs != nil {
		set("target_user_ids", targetIDsJSON(*patch.TargetUserIDs))
	}
	if patch.TargetRSVPStatus != nil {
		set("target_rsvp_status", nilIfEmpty(string(*patch.TargetRSVPStatus)))
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	sets = append(sets, "updated_at = NOW()")
	query := fmt.Sprintf(
		`UPDATE reminders SET %s WHERE id = $%d AND deleted_at IS NULL`,
		strings.Join(sets, ", "), argIdx,
	)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to update reminder", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// SoftDelete disables a reminder and stamps deleted_at. History in the
// notification log is preserved.
func (r *ReminderRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE reminders SET
			is_active = FALSE,
			status = 'cancelled',
			deleted_at = NOW(),
			updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to delete reminder", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkSent records a completed send pass over a reminder, bumping the
// recurrence counter. A daily or weekly reminder with occurrences left keeps
// status pending and has its scheduled_time advanced by one interval;
// otherwise the reminder is marked sent. Returns the updated reminder, or nil
// when the row is absent or soft-deleted.
func (r *ReminderRepository) MarkSent(ctx context.Context, id string, at time.Time) (*types.Reminder, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE reminders SET
			sent_at = $2,
			recurrence_sent = recurrence_sent + 1,
			status = CASE
				WHEN frequency IN ('daily', 'weekly') AND recurrence_sent + 1 < recurrence_count
				THEN status ELSE 'sent' END,
			scheduled_time = CASE
				WHEN frequency = 'daily' AND recurrence_sent + 1 < recurrence_count
				THEN scheduled_time + INTERVAL '1 day'
				WHEN frequency = 'weekly' AND recurrence_sent + 1 < recurrence_count
				THEN scheduled_time + INTERVAL '7 days'
				ELSE scheduled_time END,
			updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING `+reminderColumns,
		id, at,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to mark reminder sent", err)
	}
	defer rows.Close()

	rems, err := scanReminders(rows)
	if err != nil {
		return nil, err
	}
	if len(rems) == 0 {
		return nil, nil
	}
	return rems[0], nil
}

func scanReminders(rows pgx.Rows) ([]*types.Reminder, error) {
	var rems []*types.Reminder
	for rows.Next() {
		var (
			rem        types.Reminder
			notifType  string
			sentAt     *time.Time
			frequency  string
			status     string
			targetIDs  *string
			rsvpStatus *string
		)
		err := rows.Scan(
			&rem.ID,
			&rem.Title,
			&rem.Message,
			&notifType,
			&rem.ScheduledTime,
			&sentAt,
			&frequency,
			&rem.RecurrenceCount,
			&rem.RecurrenceSent,
			&status,
			&rem.IsActive,
			&rem.AutoGenerated,
			&rem.SendEmail,
			&rem.SendSMS,
			&rem.SendPush,
			&rem.SendInApp,
			&rem.TargetAllGuests,
			&targetIDs,
			&rsvpStatus,
			&rem.EventID,
			&rem.CreatorID,
			&rem.CreatedAt,
			&rem.UpdatedAt,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reminder row", err)
		}
		rem.NotificationType = types.NotificationType(notifType)
		rem.SentAt = derefTime(sentAt)
		rem.Frequency = types.ReminderFrequency(frequency)
		rem.Status = types.ReminderStatus(status)
		rem.TargetRSVPStatus = types.RSVPStatus(derefString(rsvpStatus))
		if targetIDs != nil && *targetIDs != "" {
			// Malformed JSON degrades to no explicit targets.
			_ = json.Unmarshal([]byte(*targetIDs), &rem.TargetUserIDs)
		}
		rems = append(rems, &rem)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating reminder rows", err)
	}
	return rems, nil
}

// targetIDsJSON serializes the explicit target list, mapping empty to NULL.
func targetIDsJSON(ids []string) any {
	if len(ids) == 0 {
		return nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return nil
	}
	return string(b)
}
