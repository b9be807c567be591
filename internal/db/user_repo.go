package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gatherly/internal/types"
)

// UserRepository reads the slices of the users and events domains the
// notification pipeline needs: contact addresses, guest lists, event timing,
// and the push device registry.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// GetUser returns a user's contact record, or nil when absent.
func (r *UserRepository) GetUser(ctx context.Context, id string) (*types.User, error) {
	var (
		user  types.User
		phone *string
		name  *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, email, phone_number, full_name FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &phone, &name)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get user", err)
	}
	user.PhoneNumber = derefString(phone)
	user.FullName = derefString(name)
	return &user, nil
}

// GetEvent returns the event fields reminder scheduling needs, or nil when
// absent.
func (r *UserRepository) GetEvent(ctx context.Context, id string) (*types.Event, error) {
	var (
		event     types.Event
		dressCode *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, title, start_datetime, dress_code, creator_id
		 FROM events WHERE id = $1 AND deleted_at IS NULL`,
		id,
	).Scan(&event.ID, &event.Title, &event.StartDateTime, &dressCode, &event.CreatorID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get event", err)
	}
	event.DressCode = derefString(dressCode)
	return &event, nil
}

// ListGuests returns an event's guests, optionally filtered by RSVP status.
func (r *UserRepository) ListGuests(ctx context.Context, eventID string, rsvp types.RSVPStatus) ([]*types.Guest, error) {
	query := `SELECT user_id, rsvp_status FROM event_guests WHERE event_id = $1`
	args := []any{eventID}
	if rsvp != "" {
		query += ` AND rsvp_status = $2`
		args = append(args, string(rsvp))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list guests", err)
	}
	defer rows.Close()

	var guests []*types.Guest
	for rows.Next() {
		var (
			guest  types.Guest
			status string
		)
		if err := rows.Scan(&guest.UserID, &status); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan guest row", err)
		}
		guest.RSVPStatus = types.RSVPStatus(status)
		guests = append(guests, &guest)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating guest rows", err)
	}
	return guests, nil
}

// IsGuest reports whether the user is on the event's guest list.
func (r *UserRepository) IsGuest(ctx context.Context, eventID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM event_guests WHERE event_id = $1 AND user_id = $2
		 )`,
		eventID, userID,
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check guest membership", err)
	}
	return exists, nil
}

// RegisterDevice upserts a push device by token. Re-registering an existing
// token reactivates it and refreshes its metadata.
func (r *UserRepository) RegisterDevice(ctx context.Context, dev *types.Device) error {
	if dev.ID == "" {
		dev.ID = "dev_" + uuid.New().String()
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO devices
		 (id, user_id, token, platform, device_name, is_active, last_used_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		 ON CONFLICT (token) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			device_name = EXCLUDED.device_name,
			is_active = TRUE,
			last_used_at = NOW()
		 RETURNING id, last_used_at, created_at`,
		dev.ID,
		dev.UserID,
		dev.Token,
		string(dev.Platform),
		nilIfEmpty(dev.DeviceName),
	)
	if err := row.Scan(&dev.ID, &dev.LastUsedAt, &dev.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to register device", err)
	}
	dev.IsActive = true
	return nil
}

// DeactivateDevice marks one of the user's devices inactive. Returns false
// when the device does not exist or belongs to someone else.
func (r *UserRepository) DeactivateDevice(ctx context.Context, userID, deviceID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE devices SET is_active = FALSE
		 WHERE id = $1 AND user_id = $2`,
		deviceID, userID,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to deactivate device", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeactivateToken marks a device inactive by its push token. Used when the
// push provider reports the token as no longer registered.
func (r *UserRepository) DeactivateToken(ctx context.Context, token string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE devices SET is_active = FALSE WHERE token = $1`,
		token,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to deactivate device token", err)
	}
	return nil
}

// ListDevices returns a user's registered devices, active first.
func (r *UserRepository) ListDevices(ctx context.Context, userID string) ([]*types.Device, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, token, platform, device_name, is_active,
		        last_used_at, created_at
		 FROM devices WHERE user_id = $1
		 ORDER BY is_active DESC, last_used_at DESC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list devices", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

// ActiveTokens returns the push tokens of a user's active devices.
func (r *UserRepository) ActiveTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT token FROM devices WHERE user_id = $1 AND is_active = TRUE`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list device tokens", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan device token", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating device tokens", err)
	}
	return tokens, nil
}

func scanDevices(rows pgx.Rows) ([]*types.Device, error) {
	var devices []*types.Device
	for rows.Next() {
		var (
			dev      types.Device
			platform string
			name     *string
			lastUsed *time.Time
		)
		err := rows.Scan(
			&dev.ID,
			&dev.UserID,
			&dev.Token,
			&platform,
			&name,
			&dev.IsActive,
			&lastUsed,
			&dev.CreatedAt,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan device row", err)
		}
		dev.Platform = types.DevicePlatform(platform)
		dev.DeviceName = derefString(name)
		dev.LastUsedAt = derefTime(lastUsed)
		devices = append(devices, &dev)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating device rows", err)
	}
	return devices, nil
}
