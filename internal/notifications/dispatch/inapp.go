package dispatch

import (
	"context"
	"time"

	"gatherly/internal/types"
)

// InboxStore abstracts the notification log append used for in-app rows.
type InboxStore interface {
	Append(ctx context.Context, entry *types.NotificationLog) error
}

// InAppSender delivers jobs over the realtime connection and always writes
// the inbox row, so offline users see the notification on their next fetch.
// The inbox row doubles as the delivery's log entry.
type InAppSender struct {
	realtime types.RealtimeNotifier
	inbox    InboxStore
	clock    types.Clock
	logger   types.Logger
}

// NewInAppSender creates an InAppSender.
func NewInAppSender(realtime types.RealtimeNotifier, inbox InboxStore, clock types.Clock, logger types.Logger) *InAppSender {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &InAppSender{realtime: realtime, inbox: inbox, clock: clock, logger: logger}
}

// Channel reports the channel this sender serves.
func (s *InAppSender) Channel() types.Channel { return types.ChannelInApp }

// inAppPayload is the realtime frame pushed to live connections.
type inAppPayload struct {
	Type             string    `json:"type"`
	ID               string    `json:"id"`
	NotificationType string    `json:"notification_type"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	EventID          string    `json:"event_id,omitempty"`
	SentAt           time.Time `json:"sent_at"`
}

// Deliver persists the inbox row and pushes the payload to any live
// connections. Success means either side worked; a user with no live
// connection still gets the notification from their inbox.
func (s *InAppSender) Deliver(ctx context.Context, job *types.QueueJob) (bool, string) {
	now := s.clock.Now()

	entry := &types.NotificationLog{
		NotificationType: job.NotificationType,
		Channel:          types.ChannelInApp,
		Subject:          job.Subject,
		Message:          job.Message,
		SentAt:           now,
		DeliveredAt:      now,
		Status:           types.LogSent,
		ReminderID:       job.ReminderID,
		EventID:          job.EventID,
		RecipientID:      job.RecipientID,
	}
	persistErr := s.inbox.Append(ctx, entry)
	if persistErr != nil {
		s.logger.Error("failed to persist in-app notification",
			"job_id", job.ID,
			"error", persistErr.Error(),
		)
	}

	pushed := false
	if s.realtime != nil {
		pushed = s.realtime.SendUserNotification(job.RecipientID, inAppPayload{
			Type:             "notification",
			ID:               entry.ID,
			NotificationType: string(job.NotificationType),
			Title:            job.Subject,
			Message:          job.Message,
			EventID:          job.EventID,
			SentAt:           now,
		})
	}

	if !pushed && persistErr != nil {
		return false, "in-app delivery failed: no live connection and inbox write failed"
	}
	return true, ""
}

var _ types.ChannelSender = (*InAppSender)(nil)
