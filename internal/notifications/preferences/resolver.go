// Package preferences resolves a user's effective notification settings.
//
// A user may never have saved preferences; the resolver then falls back to
// system defaults without persisting anything. Stored rows always win over
// defaults, one row per (user, notification type).
package preferences

import (
	"context"
	"regexp"

	"gatherly/internal/types"
)

// PreferenceStore abstracts the persistence operations the resolver needs.
type PreferenceStore interface {
	// Get returns the stored row for one (user, type) pair, or nil when the
	// user has never saved one.
	Get(ctx context.Context, userID string, nt types.NotificationType) (*types.NotificationPreference, error)
	// ListForUser returns all stored rows for a user.
	ListForUser(ctx context.Context, userID string) ([]*types.NotificationPreference, error)
	// Upsert writes a row, replacing any existing one for the same pair.
	Upsert(ctx context.Context, pref *types.NotificationPreference) error
	// SeedDefaults inserts default rows for types the user has none for.
	SeedDefaults(ctx context.Context, userID string) (int, error)
	// DeleteForUser removes all of a user's rows.
	DeleteForUser(ctx context.Context, userID string) (int, error)
}

// Resolver looks up effective notification preferences, falling back to
// system defaults for users who never saved any.
type Resolver struct {
	store  PreferenceStore
	logger types.Logger
}

// NewResolver creates a Resolver.
func NewResolver(store PreferenceStore, logger types.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve returns the user's effective preference for a notification type.
// Missing rows resolve to system defaults; the default is never persisted
// here, so a later explicit save still creates the row.
func (r *Resolver) Resolve(ctx context.Context, userID string, nt types.NotificationType) (*types.NotificationPreference, error) {
	pref, err := r.store.Get(ctx, userID, nt)
	if err != nil {
		return nil, err
	}
	if pref == nil {
		def := types.DefaultPreference(userID, nt)
		return &def, nil
	}
	return pref, nil
}

// ResolveAll returns one effective preference per notification type, merging
// stored rows with defaults for the rest.
func (r *Resolver) ResolveAll(ctx context.Context, userID string) ([]*types.NotificationPreference, error) {
	stored, err := r.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byType := make(map[types.NotificationType]*types.NotificationPreference, len(stored))
	for _, pref := range stored {
		byType[pref.NotificationType] = pref
	}

	out := make([]*types.NotificationPreference, 0, len(types.AllNotificationTypes))
	for _, nt := range types.AllNotificationTypes {
		if pref, ok := byType[nt]; ok {
			out = append(out, pref)
			continue
		}
		def := types.DefaultPreference(userID, nt)
		out = append(out, &def)
	}
	return out, nil
}

var quietHoursRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Save validates and persists a preference row.
func (r *Resolver) Save(ctx context.Context, pref *types.NotificationPreference) error {
	if pref.UserID == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "user_id is required", nil)
	}
	if !validNotificationType(pref.NotificationType) {
		return types.NewAppError(types.ErrCodeValidationInvalidType,
			"unknown notification type: "+string(pref.NotificationType), nil)
	}
	// Quiet hours are all-or-nothing: both bounds set, or both empty.
	if (pref.QuietHoursStart == "") != (pref.QuietHoursEnd == "") {
		return types.NewAppError(types.ErrCodeValidationMissingField,
			"quiet_hours_start and quiet_hours_end must be set together", nil)
	}
	if pref.QuietHoursStart != "" {
		if !quietHoursRe.MatchString(pref.QuietHoursStart) || !quietHoursRe.MatchString(pref.QuietHoursEnd) {
			return types.NewAppError(types.ErrCodeValidationInvalidTime,
				"quiet hours must be HH:MM in 24 hour time", nil)
		}
	}
	if pref.AdvanceNoticeHours < 0 {
		return types.NewAppError(types.ErrCodeValidationInvalidTime,
			"advance_notice_hours must not be negative", nil)
	}
	if pref.MaxDaily < 0 {
		return types.NewAppError(types.ErrCodeValidationInvalidTime,
			"max_daily must not be negative", nil)
	}

	if err := r.store.Upsert(ctx, pref); err != nil {
		return err
	}
	r.logger.Info("preference saved",
		"user_id", pref.UserID,
		"notification_type", string(pref.NotificationType),
	)
	return nil
}

// Seed creates default rows for every notification type the user has none
// for, reporting how many were created. Existing rows are untouched.
func (r *Resolver) Seed(ctx context.Context, userID string) (int, error) {
	return r.store.SeedDefaults(ctx, userID)
}

// Reset removes all of a user's stored rows, returning them to defaults.
func (r *Resolver) Reset(ctx context.Context, userID string) (int, error) {
	return r.store.DeleteForUser(ctx, userID)
}

func validNotificationType(nt types.NotificationType) bool {
	for _, known := range types.AllNotificationTypes {
		if nt == known {
			return true
		}
	}
	return false
}
