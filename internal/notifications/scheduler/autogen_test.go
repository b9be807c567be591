package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/internal/types"
)

func autoTestService(event *types.Event) (*Service, *mockReminderStore, *mockQueueStore) {
	rems := &mockReminderStore{}
	queue := &mockQueueStore{}
	dir := &mockDirectory{
		event:  event,
		guests: []*types.Guest{{UserID: "usr_a", RSVPStatus: types.RSVPPending}},
	}
	return newTestService(rems, queue, dir, nil), rems, queue
}

func typesOf(rems []*types.Reminder) []types.NotificationType {
	out := make([]types.NotificationType, 0, len(rems))
	for _, r := range rems {
		out = append(out, r.NotificationType)
	}
	return out
}

func TestCreateAutomaticRemindersTenDaysOut(t *testing.T) {
	// Event 10 days out: the 30-day mark has passed, RSVP applies (>7 days),
	// and the 7-day, 1-day, and day-of marks are still ahead.
	start := schedNow.AddDate(0, 0, 10)
	svc, rems, _ := autoTestService(&types.Event{
		ID: "evt_1", Title: "Summer Picnic", CreatorID: "usr_host", StartDateTime: start,
	})

	created, err := svc.CreateAutomaticReminders(context.Background(), "evt_1")
	require.NoError(t, err)
	require.Len(t, created, 4)

	assert.Equal(t, []types.NotificationType{
		types.TypeRSVPReminder,
		types.TypeEventReminder,
		types.TypeEventReminder,
		types.TypeEventReminder,
	}, typesOf(created))

	// RSVP fires 7 days before the event.
	assert.Equal(t, start.AddDate(0, 0, -7), created[0].ScheduledTime)

	for _, rem := range created {
		assert.True(t, rem.AutoGenerated)
		assert.True(t, rem.TargetAllGuests)
		assert.True(t, rem.SendEmail)
		assert.True(t, rem.SendPush)
		assert.True(t, rem.SendInApp)
		assert.False(t, rem.SendSMS, "generated reminders never use SMS")
		assert.Equal(t, "usr_host", rem.CreatorID)
	}
	assert.Len(t, rems.created, 4)
}

func TestCreateAutomaticRemindersFarOut(t *testing.T) {
	// 60 days out with a dress code: everything applies.
	start := schedNow.AddDate(0, 0, 60)
	svc, _, _ := autoTestService(&types.Event{
		ID: "evt_1", Title: "Gala", CreatorID: "usr_host",
		StartDateTime: start, DressCode: "black tie",
	})

	created, err := svc.CreateAutomaticReminders(context.Background(), "evt_1")
	require.NoError(t, err)

	// RSVP + 4 event offsets + dress code.
	require.Len(t, created, 6)
	assert.Equal(t, types.TypeDressCodeReminder, created[5].NotificationType)
	assert.Equal(t, start.AddDate(0, 0, -3), created[5].ScheduledTime)
}

func TestCreateAutomaticRemindersImminentEvent(t *testing.T) {
	// Event in 6 hours: every countdown trigger except day-of has passed.
	start := schedNow.Add(6 * time.Hour)
	svc, _, _ := autoTestService(&types.Event{
		ID: "evt_1", Title: "Brunch", CreatorID: "usr_host", StartDateTime: start,
	})

	created, err := svc.CreateAutomaticReminders(context.Background(), "evt_1")
	require.NoError(t, err)

	require.Len(t, created, 1)
	assert.Equal(t, types.TypeEventReminder, created[0].NotificationType)
	assert.Equal(t, start, created[0].ScheduledTime)
}

func TestCreateAutomaticRemindersNoDressCodeForNearEvent(t *testing.T) {
	// Dress code declared but the event is only 2 days out; the 3-day
	// trigger has passed.
	start := schedNow.AddDate(0, 0, 2)
	svc, _, _ := autoTestService(&types.Event{
		ID: "evt_1", Title: "Dinner", CreatorID: "usr_host",
		StartDateTime: start, DressCode: "smart casual",
	})

	created, err := svc.CreateAutomaticReminders(context.Background(), "evt_1")
	require.NoError(t, err)

	for _, rem := range created {
		assert.NotEqual(t, types.TypeDressCodeReminder, rem.NotificationType)
		assert.NotEqual(t, types.TypeRSVPReminder, rem.NotificationType)
	}
}

func TestCreateAutomaticRemindersEventNotFound(t *testing.T) {
	svc := newTestService(&mockReminderStore{}, &mockQueueStore{}, &mockDirectory{}, nil)

	_, err := svc.CreateAutomaticReminders(context.Background(), "evt_missing")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundEvent, appErr.Code)
}
