package dispatch

import (
	"context"
	"errors"
	"fmt"

	"gatherly/internal/external"
	"gatherly/internal/types"
)

// DeviceStore abstracts the device registry operations the push sender needs.
type DeviceStore interface {
	// ActiveTokens returns the push tokens of a user's active devices.
	ActiveTokens(ctx context.Context, userID string) ([]string, error)
	// DeactivateToken marks a token inactive after the provider reports it
	// as no longer registered.
	DeactivateToken(ctx context.Context, token string) error
}

// PushSender delivers push jobs to all of a recipient's active devices.
type PushSender struct {
	devices  DeviceStore
	provider external.PushProvider
	logger   types.Logger
}

// NewPushSender creates a PushSender.
func NewPushSender(devices DeviceStore, provider external.PushProvider, logger types.Logger) *PushSender {
	return &PushSender{devices: devices, provider: provider, logger: logger}
}

// Channel reports the channel this sender serves.
func (s *PushSender) Channel() types.Channel { return types.ChannelPush }

// Deliver multicasts the job to every active device token. Delivery counts
// as success when at least one device accepts it. Stale tokens reported by
// the provider are deactivated as a side effect.
func (s *PushSender) Deliver(ctx context.Context, job *types.QueueJob) (bool, string) {
	if s.provider == nil {
		return false, "push channel not configured"
	}

	tokens, err := s.devices.ActiveTokens(ctx, job.RecipientID)
	if err != nil {
		return false, fmt.Sprintf("device lookup failed: %v", err)
	}
	if len(tokens) == 0 {
		return false, "recipient has no active devices"
	}

	data := map[string]string{
		"notification_type": string(job.NotificationType),
	}
	if job.EventID != "" {
		data["event_id"] = job.EventID
	}
	if job.ReminderID != "" {
		data["reminder_id"] = job.ReminderID
	}

	accepted := 0
	var lastErr error
	for _, token := range tokens {
		err := s.provider.SendPush(ctx, external.PushInput{
			Token: token,
			Title: job.Subject,
			Body:  job.Message,
			Data:  data,
		})
		if err == nil {
			accepted++
			continue
		}
		lastErr = err

		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundDevice {
			if deactivateErr := s.devices.DeactivateToken(ctx, token); deactivateErr != nil {
				s.logger.Error("failed to deactivate stale push token",
					"user_id", job.RecipientID,
					"error", deactivateErr.Error(),
				)
			}
		}
	}

	if accepted == 0 {
		return false, fmt.Sprintf("no device accepted the push (%d tokens): %v", len(tokens), lastErr)
	}

	s.logger.Info("push delivered",
		"job_id", job.ID,
		"devices_accepted", accepted,
		"devices_total", len(tokens),
	)
	return true, ""
}

var _ types.ChannelSender = (*PushSender)(nil)
