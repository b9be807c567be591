package scheduler

import (
	"context"

	"gatherly/internal/notifications/preferences"
	"gatherly/internal/types"
)

// PriorityFor maps a notification type to its queue priority. Lower numbers
// are processed first.
func PriorityFor(nt types.NotificationType) int {
	switch nt {
	case types.TypeEventReminder:
		return 1
	case types.TypePaymentReminder:
		return 2
	case types.TypeRSVPReminder:
		return 3
	case types.TypeTaskReminder:
		return 4
	default:
		return 5
	}
}

// fanOut expands one reminder into queue jobs: one per target user per
// channel enabled by both the reminder's flags and that user's preference.
// Each job's scheduled_for is the reminder trigger shifted by the user's
// advance notice and pushed out of their quiet hours.
//
// A failure resolving or enqueueing one user is logged and skipped; the
// remaining targets still get their jobs.
func (s *Service) fanOut(ctx context.Context, rem *types.Reminder) (int, error) {
	targets, err := s.resolveTargets(ctx, rem)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, userID := range targets {
		pref, err := s.prefs.Resolve(ctx, userID, rem.NotificationType)
		if err != nil {
			s.logger.Error("preference resolution failed during fan-out",
				"reminder_id", rem.ID,
				"user_id", userID,
				"error", err.Error(),
			)
			continue
		}

		channels := preferences.ChannelsFor(rem, pref)
		if len(channels) == 0 {
			continue
		}

		scheduledFor := preferences.EffectiveSendTime(pref, rem.ScheduledTime)
		for _, channel := range channels {
			job := &types.QueueJob{
				NotificationType: rem.NotificationType,
				Channel:          channel,
				Subject:          rem.Title,
				Message:          rem.Message,
				ScheduledFor:     scheduledFor,
				Priority:         PriorityFor(rem.NotificationType),
				ReminderID:       rem.ID,
				EventID:          rem.EventID,
				RecipientID:      userID,
			}
			if err := s.queue.Enqueue(ctx, job); err != nil {
				s.logger.Error("failed to enqueue notification job",
					"reminder_id", rem.ID,
					"user_id", userID,
					"channel", string(channel),
					"error", err.Error(),
				)
				continue
			}
			enqueued++
		}
	}
	return enqueued, nil
}

// resolveTargets returns the user IDs a reminder addresses. Explicit IDs
// win; otherwise the guest list, optionally narrowed by RSVP status.
func (s *Service) resolveTargets(ctx context.Context, rem *types.Reminder) ([]string, error) {
	if len(rem.TargetUserIDs) > 0 {
		if rem.TargetRSVPStatus == "" {
			return rem.TargetUserIDs, nil
		}
		// Explicit IDs narrowed to those whose RSVP matches.
		guests, err := s.directory.ListGuests(ctx, rem.EventID, rem.TargetRSVPStatus)
		if err != nil {
			return nil, err
		}
		matching := make(map[string]bool, len(guests))
		for _, g := range guests {
			matching[g.UserID] = true
		}
		var out []string
		for _, id := range rem.TargetUserIDs {
			if matching[id] {
				out = append(out, id)
			}
		}
		return out, nil
	}

	rsvp := types.RSVPStatus("")
	if !rem.TargetAllGuests {
		rsvp = rem.TargetRSVPStatus
	}
	guests, err := s.directory.ListGuests(ctx, rem.EventID, rsvp)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(guests))
	for _, g := range guests {
		out = append(out, g.UserID)
	}
	return out, nil
}
