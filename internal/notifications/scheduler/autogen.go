package scheduler

import (
	"context"
	"fmt"
	"time"

	"gatherly/internal/types"
)

// Offsets for automatically generated reminders, relative to the event start.
var eventReminderOffsets = []struct {
	days  int
	label string
}{
	{30, "in 30 days"},
	{7, "in 7 days"},
	{1, "tomorrow"},
	{0, "today"},
}

// CreateAutomaticReminders synthesizes the standard reminder set for an
// event and returns the reminders created:
//
//   - an RSVP reminder 7 days out, only when the event is more than 7 days away
//   - event reminders at 30 days, 7 days, 1 day, and day-of, each skipped
//     when its trigger has already passed
//   - a dress code reminder 3 days out, when the event declares a dress code
//     and is more than 3 days away
//
// Generated reminders target all guests, are flagged auto_generated, and use
// email, push, and in-app channels. SMS stays opt-in through explicit
// reminders.
func (s *Service) CreateAutomaticReminders(ctx context.Context, eventID string) ([]*types.Reminder, error) {
	event, err := s.directory.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundEvent, "event not found: "+eventID, nil)
	}

	now := s.clock.Now()
	start := event.StartDateTime
	var created []*types.Reminder

	appendReminder := func(rem *types.Reminder) {
		if err := s.reminders.Create(ctx, rem); err != nil {
			s.logger.Error("failed to create automatic reminder",
				"event_id", eventID,
				"title", rem.Title,
				"error", err.Error(),
			)
			return
		}
		if _, err := s.fanOut(ctx, rem); err != nil {
			s.logger.Error("automatic reminder fan-out failed",
				"reminder_id", rem.ID,
				"error", err.Error(),
			)
		}
		created = append(created, rem)
	}

	if start.Sub(now) > 7*24*time.Hour {
		appendReminder(&types.Reminder{
			Title:            fmt.Sprintf("RSVP for %s", event.Title),
			Message:          fmt.Sprintf("Please confirm your attendance for %s.", event.Title),
			NotificationType: types.TypeRSVPReminder,
			ScheduledTime:    start.AddDate(0, 0, -7),
			Frequency:        types.FrequencyOnce,
			RecurrenceCount:  1,
			AutoGenerated:    true,
			SendEmail:        true,
			SendPush:         true,
			SendInApp:        true,
			TargetAllGuests:  true,
			EventID:          eventID,
			CreatorID:        event.CreatorID,
		})
	}

	for _, offset := range eventReminderOffsets {
		trigger := start.AddDate(0, 0, -offset.days)
		if !trigger.After(now) {
			continue
		}
		appendReminder(&types.Reminder{
			Title:            fmt.Sprintf("%s is %s", event.Title, offset.label),
			Message:          fmt.Sprintf("%s starts %s.", event.Title, start.Format("Monday, January 2 at 15:04 MST")),
			NotificationType: types.TypeEventReminder,
			ScheduledTime:    trigger,
			Frequency:        types.FrequencyOnce,
			RecurrenceCount:  1,
			AutoGenerated:    true,
			SendEmail:        true,
			SendPush:         true,
			SendInApp:        true,
			TargetAllGuests:  true,
			EventID:          eventID,
			CreatorID:        event.CreatorID,
		})
	}

	if event.DressCode != "" && start.Sub(now) > 3*24*time.Hour {
		appendReminder(&types.Reminder{
			Title:            fmt.Sprintf("Dress code for %s", event.Title),
			Message:          fmt.Sprintf("A reminder that the dress code for %s is: %s.", event.Title, event.DressCode),
			NotificationType: types.TypeDressCodeReminder,
			ScheduledTime:    start.AddDate(0, 0, -3),
			Frequency:        types.FrequencyOnce,
			RecurrenceCount:  1,
			AutoGenerated:    true,
			SendEmail:        true,
			SendPush:         true,
			SendInApp:        true,
			TargetAllGuests:  true,
			EventID:          eventID,
			CreatorID:        event.CreatorID,
		})
	}

	s.logger.Info("automatic reminders created",
		"event_id", eventID,
		"count", len(created),
	)
	return created, nil
}
