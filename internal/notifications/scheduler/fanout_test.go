package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/internal/types"
)

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		nt   types.NotificationType
		want int
	}{
		{types.TypeEventReminder, 1},
		{types.TypePaymentReminder, 2},
		{types.TypeRSVPReminder, 3},
		{types.TypeTaskReminder, 4},
		{types.TypeDressCodeReminder, 5},
		{types.TypeCustom, 5},
		{types.TypeWeatherAlert, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriorityFor(tt.nt), "priority for %s", tt.nt)
	}
}

func TestFanOutEmptyChannelIntersection(t *testing.T) {
	queue := &mockQueueStore{}
	dir := &mockDirectory{
		event:  &types.Event{ID: "evt_1", CreatorID: "usr_host"},
		guests: []*types.Guest{{UserID: "usr_a", RSVPStatus: types.RSVPAccepted}},
	}
	// The user only allows push; the reminder only uses SMS.
	prefs := &mockResolver{pref: &types.NotificationPreference{
		NotificationType: types.TypeCustom,
		PushEnabled:      true,
	}}
	svc := newTestService(&mockReminderStore{}, queue, dir, prefs)

	rem := &types.Reminder{
		ID: "rem_1", EventID: "evt_1",
		NotificationType: types.TypeCustom,
		ScheduledTime:    schedNow.Add(24 * time.Hour),
		SendSMS:          true,
		TargetAllGuests:  true,
	}
	enqueued, err := svc.fanOut(context.Background(), rem)
	require.NoError(t, err)
	assert.Zero(t, enqueued, "no overlap between reminder channels and user preference")
	assert.Empty(t, queue.enqueued)
}

func TestFanOutAppliesQuietHours(t *testing.T) {
	queue := &mockQueueStore{}
	dir := &mockDirectory{
		guests: []*types.Guest{{UserID: "usr_a", RSVPStatus: types.RSVPAccepted}},
	}
	prefs := &mockResolver{pref: &types.NotificationPreference{
		EmailEnabled:    true,
		QuietHoursStart: "22:00",
		QuietHoursEnd:   "08:00",
	}}
	svc := newTestService(&mockReminderStore{}, queue, dir, prefs)

	// Trigger at 23:30 lands in the quiet window.
	trigger := time.Date(2026, 5, 3, 23, 30, 0, 0, time.UTC)
	rem := &types.Reminder{
		ID: "rem_1", EventID: "evt_1",
		NotificationType: types.TypeEventReminder,
		ScheduledTime:    trigger,
		SendEmail:        true,
		TargetAllGuests:  true,
	}
	enqueued, err := svc.fanOut(context.Background(), rem)
	require.NoError(t, err)
	require.Equal(t, 1, enqueued)

	job := queue.enqueued[0]
	assert.Equal(t, time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC), job.ScheduledFor,
		"send pushed to the quiet window's end")
}

func TestFanOutPerUserFailureSkipsOnlyThatUser(t *testing.T) {
	queue := &mockQueueStore{}
	dir := &mockDirectory{
		guests: []*types.Guest{
			{UserID: "usr_broken", RSVPStatus: types.RSVPAccepted},
			{UserID: "usr_ok", RSVPStatus: types.RSVPAccepted},
		},
	}
	prefs := &selectiveResolver{failFor: "usr_broken"}
	svc := newTestService(&mockReminderStore{}, queue, dir, prefs)

	rem := &types.Reminder{
		ID: "rem_1", EventID: "evt_1",
		NotificationType: types.TypeEventReminder,
		ScheduledTime:    schedNow.Add(24 * time.Hour),
		SendEmail:        true,
		TargetAllGuests:  true,
	}
	enqueued, err := svc.fanOut(context.Background(), rem)
	require.NoError(t, err)
	assert.Equal(t, 1, enqueued)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "usr_ok", queue.enqueued[0].RecipientID)
}

// selectiveResolver fails preference resolution for one user only.
type selectiveResolver struct {
	failFor string
}

func (r *selectiveResolver) Resolve(ctx context.Context, userID string, nt types.NotificationType) (*types.NotificationPreference, error) {
	if userID == r.failFor {
		return nil, assert.AnError
	}
	def := types.DefaultPreference(userID, nt)
	return &def, nil
}

func TestResolveTargets(t *testing.T) {
	dir := &mockDirectory{
		guests: []*types.Guest{
			{UserID: "usr_a", RSVPStatus: types.RSVPAccepted},
			{UserID: "usr_b", RSVPStatus: types.RSVPPending},
			{UserID: "usr_c", RSVPStatus: types.RSVPAccepted},
		},
	}
	svc := newTestService(&mockReminderStore{}, &mockQueueStore{}, dir, nil)
	ctx := context.Background()

	t.Run("all guests", func(t *testing.T) {
		targets, err := svc.resolveTargets(ctx, &types.Reminder{TargetAllGuests: true})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"usr_a", "usr_b", "usr_c"}, targets)
	})

	t.Run("rsvp filter", func(t *testing.T) {
		targets, err := svc.resolveTargets(ctx, &types.Reminder{TargetRSVPStatus: types.RSVPAccepted})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"usr_a", "usr_c"}, targets)
	})

	t.Run("explicit ids win", func(t *testing.T) {
		targets, err := svc.resolveTargets(ctx, &types.Reminder{TargetUserIDs: []string{"usr_b"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"usr_b"}, targets)
	})

	t.Run("explicit ids narrowed by rsvp", func(t *testing.T) {
		targets, err := svc.resolveTargets(ctx, &types.Reminder{
			TargetUserIDs:    []string{"usr_a", "usr_b"},
			TargetRSVPStatus: types.RSVPAccepted,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"usr_a"}, targets)
	})
}
