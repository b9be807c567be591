package preferences

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

func (nopLogger) With(...any) types.Logger { return nopLogger{} }

type mockPrefStore struct {
	getFn         func(ctx context.Context, userID string, nt types.NotificationType) (*types.NotificationPreference, error)
	listForUserFn func(ctx context.Context, userID string) ([]*types.NotificationPreference, error)

	upserted []*types.NotificationPreference
	seeded   int
	deleted  int
}

func (m *mockPrefStore) Get(ctx context.Context, userID string, nt types.NotificationType) (*types.NotificationPreference, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, nt)
	}
	return nil, nil
}

func (m *mockPrefStore) ListForUser(ctx context.Context, userID string) ([]*types.NotificationPreference, error) {
	if m.listForUserFn != nil {
		return m.listForUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockPrefStore) Upsert(ctx context.Context, pref *types.NotificationPreference) error {
	m.upserted = append(m.upserted, pref)
	return nil
}

func (m *mockPrefStore) SeedDefaults(ctx context.Context, userID string) (int, error) {
	return m.seeded, nil
}

func (m *mockPrefStore) DeleteForUser(ctx context.Context, userID string) (int, error) {
	return m.deleted, nil
}

func TestResolveFallsBackToDefaults(t *testing.T) {
	resolver := NewResolver(&mockPrefStore{}, nopLogger{})

	pref, err := resolver.Resolve(context.Background(), "usr_1", types.TypeEventReminder)
	require.NoError(t, err)

	assert.Equal(t, "usr_1", pref.UserID)
	assert.Equal(t, types.TypeEventReminder, pref.NotificationType)
	assert.True(t, pref.EmailEnabled)
	assert.False(t, pref.SMSEnabled)
	assert.Empty(t, pref.ID, "defaults must not look persisted")
}

func TestResolvePrefersStoredRow(t *testing.T) {
	stored := &types.NotificationPreference{
		ID:               "pref_1",
		UserID:           "usr_1",
		NotificationType: types.TypeEventReminder,
		EmailEnabled:     false,
		SMSEnabled:       true,
	}
	store := &mockPrefStore{
		getFn: func(ctx context.Context, userID string, nt types.NotificationType) (*types.NotificationPreference, error) {
			return stored, nil
		},
	}
	resolver := NewResolver(store, nopLogger{})

	pref, err := resolver.Resolve(context.Background(), "usr_1", types.TypeEventReminder)
	require.NoError(t, err)
	assert.Same(t, stored, pref)
}

func TestResolvePropagatesStoreError(t *testing.T) {
	store := &mockPrefStore{
		getFn: func(ctx context.Context, userID string, nt types.NotificationType) (*types.NotificationPreference, error) {
			return nil, errors.New("db down")
		},
	}
	resolver := NewResolver(store, nopLogger{})

	_, err := resolver.Resolve(context.Background(), "usr_1", types.TypeEventReminder)
	assert.Error(t, err)
}

func TestResolveAllMergesStoredOverDefaults(t *testing.T) {
	store := &mockPrefStore{
		listForUserFn: func(ctx context.Context, userID string) ([]*types.NotificationPreference, error) {
			return []*types.NotificationPreference{
				{ID: "pref_1", UserID: "usr_1", NotificationType: types.TypeRSVPReminder, SMSEnabled: true},
			}, nil
		},
	}
	resolver := NewResolver(store, nopLogger{})

	prefs, err := resolver.ResolveAll(context.Background(), "usr_1")
	require.NoError(t, err)
	require.Len(t, prefs, len(types.AllNotificationTypes))

	byType := make(map[types.NotificationType]*types.NotificationPreference)
	for _, p := range prefs {
		byType[p.NotificationType] = p
	}
	assert.True(t, byType[types.TypeRSVPReminder].SMSEnabled, "stored row should win")
	assert.Equal(t, "pref_1", byType[types.TypeRSVPReminder].ID)
	assert.False(t, byType[types.TypeEventReminder].SMSEnabled, "unstored type gets defaults")
	assert.Empty(t, byType[types.TypeEventReminder].ID)
}

func TestSaveValidation(t *testing.T) {
	valid := func() *types.NotificationPreference {
		return &types.NotificationPreference{
			UserID:           "usr_1",
			NotificationType: types.TypeEventReminder,
			QuietHoursStart:  "22:00",
			QuietHoursEnd:    "08:00",
		}
	}

	tests := []struct {
		name     string
		mutate   func(*types.NotificationPreference)
		wantCode types.ErrorCode
	}{
		{
			name:     "missing user id",
			mutate:   func(p *types.NotificationPreference) { p.UserID = "" },
			wantCode: types.ErrCodeValidationMissingField,
		},
		{
			name:     "unknown notification type",
			mutate:   func(p *types.NotificationPreference) { p.NotificationType = "carrier_pigeon" },
			wantCode: types.ErrCodeValidationInvalidType,
		},
		{
			name:     "quiet hours start without end",
			mutate:   func(p *types.NotificationPreference) { p.QuietHoursEnd = "" },
			wantCode: types.ErrCodeValidationMissingField,
		},
		{
			name:     "quiet hours bad format",
			mutate:   func(p *types.NotificationPreference) { p.QuietHoursStart = "10pm" },
			wantCode: types.ErrCodeValidationInvalidTime,
		},
		{
			name:     "negative advance notice",
			mutate:   func(p *types.NotificationPreference) { p.AdvanceNoticeHours = -1 },
			wantCode: types.ErrCodeValidationInvalidTime,
		},
		{
			name:     "negative max daily",
			mutate:   func(p *types.NotificationPreference) { p.MaxDaily = -5 },
			wantCode: types.ErrCodeValidationInvalidTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockPrefStore{}
			resolver := NewResolver(store, nopLogger{})

			pref := valid()
			tt.mutate(pref)

			err := resolver.Save(context.Background(), pref)
			require.Error(t, err)

			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Empty(t, store.upserted, "invalid preference must not reach the store")
		})
	}
}

func TestSaveValidPreference(t *testing.T) {
	store := &mockPrefStore{}
	resolver := NewResolver(store, nopLogger{})

	pref := &types.NotificationPreference{
		UserID:           "usr_1",
		NotificationType: types.TypePaymentReminder,
		EmailEnabled:     true,
	}
	require.NoError(t, resolver.Save(context.Background(), pref))
	require.Len(t, store.upserted, 1)
	assert.Same(t, pref, store.upserted[0])
}
