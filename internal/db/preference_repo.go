package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gatherly/internal/types"
)

// PreferenceRepository provides data access for notification preferences,
// keyed by (user, notification type).
type PreferenceRepository struct {
	db DBTX
}

// NewPreferenceRepository creates a new PreferenceRepository.
func NewPreferenceRepository(db DBTX) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

const preferenceColumns = `id, user_id, notification_type, email_enabled,
	sms_enabled, push_enabled, in_app_enabled, advance_notice_hours,
	quiet_hours_start, quiet_hours_end, max_daily, created_at, updated_at`

// Get returns the stored preference row for one (user, type) pair, or nil
// when the user has never saved one.
func (r *PreferenceRepository) Get(ctx context.Context, userID string, nt types.NotificationType) (*types.NotificationPreference, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+preferenceColumns+` FROM notification_preferences
		 WHERE user_id = $1 AND notification_type = $2`,
		userID, string(nt),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get preference", err)
	}
	defer rows.Close()

	prefs, err := scanPreferences(rows)
	if err != nil {
		return nil, err
	}
	if len(prefs) == 0 {
		return nil, nil
	}
	return prefs[0], nil
}

// ListForUser returns all stored preference rows for a user.
func (r *PreferenceRepository) ListForUser(ctx context.Context, userID string) ([]*types.NotificationPreference, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+preferenceColumns+` FROM notification_preferences
		 WHERE user_id = $1
		 ORDER BY notification_type`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list preferences", err)
	}
	defer rows.Close()

	return scanPreferences(rows)
}

// Upsert writes a preference row, replacing any existing row for the same
// (user, type) pair.
func (r *PreferenceRepository) Upsert(ctx context.Context, pref *types.NotificationPreference) error {
	if pref.ID == "" {
		pref.ID = "pref_" + uuid.New().String()
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO notification_preferences
		 (id, user_id, notification_type, email_enabled, sms_enabled,
		  push_enabled, in_app_enabled, advance_notice_hours,
		  quiet_hours_start, quiet_hours_end, max_daily, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		 ON CONFLICT (user_id, notification_type) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			push_enabled = EXCLUDED.push_enabled,
			in_app_enabled = EXCLUDED.in_app_enabled,
			advance_notice_hours = EXCLUDED.advance_notice_hours,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			max_daily = EXCLUDED.max_daily,
			updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		pref.ID,
		pref.UserID,
		string(pref.NotificationType),
		pref.EmailEnabled,
		pref.SMSEnabled,
		pref.PushEnabled,
		pref.InAppEnabled,
		pref.AdvanceNoticeHours,
		nilIfEmpty(pref.QuietHoursStart),
		nilIfEmpty(pref.QuietHoursEnd),
		pref.MaxDaily,
	)
	if err := row.Scan(&pref.ID, &pref.CreatedAt, &pref.UpdatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert preference", err)
	}
	return nil
}

// SeedDefaults inserts default rows for every notification type the user
// does not already have a row for, and returns how many were created.
func (r *PreferenceRepository) SeedDefaults(ctx context.Context, userID string) (int, error) {
	created := 0
	for _, nt := range types.AllNotificationTypes {
		def := types.DefaultPreference(userID, nt)
		tag, err := r.db.Exec(ctx,
			`INSERT INTO notification_preferences
			 (id, user_id, notification_type, email_enabled, sms_enabled,
			  push_enabled, in_app_enabled, advance_notice_hours,
			  quiet_hours_start, quiet_hours_end, max_daily, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
			 ON CONFLICT (user_id, notification_type) DO NOTHING`,
			"pref_"+uuid.New().String(),
			userID,
			string(nt),
			def.EmailEnabled,
			def.SMSEnabled,
			def.PushEnabled,
			def.InAppEnabled,
			def.AdvanceNoticeHours,
			def.QuietHoursStart,
			def.QuietHoursEnd,
			def.MaxDaily,
		)
		if err != nil {
			return created, types.NewAppError(types.ErrCodeInternalDB, "failed to seed preferences", err)
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

// DeleteForUser removes all of a user's preference rows, returning them to
// system defaults.
func (r *PreferenceRepository) DeleteForUser(ctx context.Context, userID string) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notification_preferences WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete preferences", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanPreferences(rows pgx.Rows) ([]*types.NotificationPreference, error) {
	var prefs []*types.NotificationPreference
	for rows.Next() {
		var (
			pref       types.NotificationPreference
			notifType  string
			quietStart *string
			quietEnd   *string
		)
		err := rows.Scan(
			&pref.ID,
			&pref.UserID,
			&notifType,
			&pref.EmailEnabled,
			&pref.SMSEnabled,
			&pref.PushEnabled,
			&pref.InAppEnabled,
			&pref.AdvanceNoticeHours,
			&quietStart,
			&quietEnd,
			&pref.MaxDaily,
			&pref.CreatedAt,
			&pref.UpdatedAt,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan preference row", err)
		}
		pref.NotificationType = types.NotificationType(notifType)
		pref.QuietHoursStart = derefString(quietStart)
		pref.QuietHoursEnd = derefString(quietEnd)
		prefs = append(prefs, &pref)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating preference rows", err)
	}
	return prefs, nil
}
