package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gatherly/internal/types"
)

// LogRepository provides data access for the notification log. Rows are
// append-only except for read_at, which the in-app inbox updates.
type LogRepository struct {
	db DBTX
}

// NewLogRepository creates a new LogRepository.
func NewLogRepository(db DBTX) *LogRepository {
	return &LogRepository{db: db}
}

const logColumns = `id, notification_type, channel, subject, message, sent_at,
	delivered_at, read_at, status, error_message, reminder_id, event_id,
	recipient_id, created_at`

// Append inserts a log row. The ID is generated when empty.
func (r *LogRepository) Append(ctx context.Context, entry *types.NotificationLog) error {
	if entry.ID == "" {
		entry.ID = "log_" + uuid.New().String()
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO notification_logs
		 (id, notification_type, channel, subject, message, sent_at,
		  delivered_at, read_at, status, error_message, reminder_id, event_id,
		  recipient_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $9, $10, $11, $12, NOW())
		 RETURNING created_at`,
		entry.ID,
		string(entry.NotificationType),
		string(entry.Channel),
		entry.Subject,
		entry.Message,
		nilIfZeroTime(entry.SentAt),
		nilIfZeroTime(entry.DeliveredAt),
		string(entry.Status),
		nilIfEmpty(entry.ErrorMessage),
		nilIfEmpty(entry.ReminderID),
		nilIfEmpty(entry.EventID),
		entry.RecipientID,
	)
	if err := row.Scan(&entry.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to append notification log", err)
	}
	return nil
}

// LogFilter narrows List results. Zero values are ignored.
type LogFilter struct {
	RecipientID      string
	EventID          string
	ReminderID       string
	Channel          types.Channel
	Status           types.LogStatus
	NotificationType types.NotificationType
	Since            time.Time
}

// List returns a page of log rows, newest first, plus the total count.
func (r *LogRepository) List(ctx context.Context, filter LogFilter, page types.Pagination) ([]*types.NotificationLog, int, error) {
	page = page.Normalize()

	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	add := func(cond string, val any) {
		conditions = append(conditions, fmt.Sprintf(cond, argIdx))
		args = append(args, val)
		argIdx++
	}

	if filter.RecipientID != "" {
		add("recipient_id = $%d", filter.RecipientID)
	}
	if filter.EventID != "" {
		add("event_id = $%d", filter.EventID)
	}
	if filter.ReminderID != "" {
		add("reminder_id = $%d", filter.ReminderID)
	}
	if filter.Channel != "" {
		add("channel = $%d", string(filter.Channel))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.NotificationType != "" {
		add("notification_type = $%d", string(filter.NotificationType))
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notification_logs `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count notification logs", err)
	}

	query := fmt.Sprintf(
		`SELECT `+logColumns+` FROM notification_logs %s
		 ORDER BY created_at DESC
		 LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1,
	)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to list notification logs", err)
	}
	defer rows.Close()

	entries, err := scanLogs(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListInbox returns a user's in-app notifications, newest first. When
// unreadOnly is set, rows with read_at stamped are skipped.
func (r *LogRepository) ListInbox(ctx context.Context, userID string, unreadOnly bool, page types.Pagination) ([]*types.NotificationLog, int, error) {
	page = page.Normalize()

	where := `WHERE recipient_id = $1 AND channel = 'in_app' AND status = 'sent'`
	if unreadOnly {
		where += ` AND read_at IS NULL`
	}

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notification_logs `+where, userID,
	).Scan(&total); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count inbox", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+logColumns+` FROM notification_logs `+where+`
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to list inbox", err)
	}
	defer rows.Close()

	entries, err := scanLogs(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// UnreadCount returns the number of unread in-app notifications for a user.
func (r *LogRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notification_logs
		 WHERE recipient_id = $1 AND channel = 'in_app' AND status = 'sent'
		   AND read_at IS NULL`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count unread notifications", err)
	}
	return count, nil
}

// MarkRead stamps read_at on one of the user's in-app rows. Returns false
// when the row does not exist or belongs to someone else. Already-read rows
// are left unchanged and report true.
func (r *LogRepository) MarkRead(ctx context.Context, userID, logID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE notification_logs SET read_at = COALESCE(read_at, NOW())
		 WHERE id = $1 AND recipient_id = $2 AND channel = 'in_app'`,
		logID, userID,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to mark notification read", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkAllRead stamps read_at on all of the user's unread in-app rows and
// returns how many were updated.
func (r *LogRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE notification_logs SET read_at = NOW()
		 WHERE recipient_id = $1 AND channel = 'in_app' AND status = 'sent'
		   AND read_at IS NULL`,
		userID,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to mark notifications read", err)
	}
	return int(tag.RowsAffected()), nil
}

// Analytics aggregates log rows over the trailing day window. Delivery rate
// is sent over total, 0 when the window is empty.
func (r *LogRepository) Analytics(ctx context.Context, eventID string, days int) (*types.NotificationAnalytics, error) {
	if days <= 0 {
		days = 30
	}

	conditions := []string{"created_at >= NOW() - ($1 * INTERVAL '1 day')"}
	args := []any{days}
	if eventID != "" {
		conditions = append(conditions, "event_id = $2")
		args = append(args, eventID)
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	rows, err := r.db.Query(ctx,
		`SELECT notification_type, channel, status, COUNT(*)
		 FROM notification_logs `+where+`
		 GROUP BY notification_type, channel, status`,
		args...,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to aggregate notification logs", err)
	}
	defer rows.Close()

	analytics := &types.NotificationAnalytics{
		ByType:    map[string]int{},
		ByChannel: map[string]int{},
		ByStatus:  map[string]int{},
	}
	total := 0
	for rows.Next() {
		var nt, channel, status string
		var count int
		if err := rows.Scan(&nt, &channel, &status, &count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan analytics row", err)
		}
		analytics.ByType[nt] += count
		analytics.ByChannel[channel] += count
		analytics.ByStatus[status] += count
		total += count
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating analytics rows", err)
	}

	analytics.TotalSent = analytics.ByStatus[string(types.LogSent)]
	if total > 0 {
		analytics.DeliveryRate = float64(analytics.TotalSent) / float64(total)
	}
	return analytics, nil
}

func scanLogs(rows pgx.Rows) ([]*types.NotificationLog, error) {
	var entries []*types.NotificationLog
	for rows.Next() {
		var (
			entry       types.NotificationLog
			notifType   string
			channel     string
			sentAt      *time.Time
			deliveredAt *time.Time
			readAt      *time.Time
			status      string
			errMessage  *string
			reminderID  *string
			eventID     *string
		)
		err := rows.Scan(
			&entry.ID,
			&notifType,
			&channel,
			&entry.Subject,
			&entry.Message,
			&sentAt,
			&deliveredAt,
			&readAt,
			&status,
			&errMessage,
			&reminderID,
			&eventID,
			&entry.RecipientID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification log row", err)
		}
		entry.NotificationType = types.NotificationType(notifType)
		entry.Channel = types.Channel(channel)
		entry.SentAt = derefTime(sentAt)
		entry.DeliveredAt = derefTime(deliveredAt)
		entry.ReadAt = derefTime(readAt)
		entry.Status = types.LogStatus(status)
		entry.ErrorMessage = derefString(errMessage)
		entry.ReminderID = derefString(reminderID)
		entry.EventID = derefString(eventID)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating notification log rows", err)
	}
	return entries, nil
}
