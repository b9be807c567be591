package dispatch

import (
	"context"
	"fmt"

	"gatherly/internal/external"
	"gatherly/internal/types"
)

// SMSSender delivers SMS jobs through the configured SMS provider.
type SMSSender struct {
	users    RecipientStore
	provider external.SMSProvider
	logger   types.Logger
}

// NewSMSSender creates an SMSSender.
func NewSMSSender(users RecipientStore, provider external.SMSProvider, logger types.Logger) *SMSSender {
	return &SMSSender{users: users, provider: provider, logger: logger}
}

// Channel reports the channel this sender serves.
func (s *SMSSender) Channel() types.Channel { return types.ChannelSMS }

// Deliver sends the job as a text message. A missing phone number or an
// unconfigured provider is a soft failure.
func (s *SMSSender) Deliver(ctx context.Context, job *types.QueueJob) (bool, string) {
	if s.provider == nil {
		return false, "sms channel not configured"
	}

	user, err := s.users.GetUser(ctx, job.RecipientID)
	if err != nil {
		return false, fmt.Sprintf("recipient lookup failed: %v", err)
	}
	if user == nil {
		return false, "recipient not found"
	}
	if user.PhoneNumber == "" {
		return false, "recipient has no phone number"
	}

	text := job.Message
	if job.Subject != "" {
		text = job.Subject + ": " + job.Message
	}

	msgID, err := s.provider.SendSMS(ctx, external.SMSInput{
		To:          user.PhoneNumber,
		Message:     text,
		ReferenceID: job.ID,
	})
	if err != nil {
		return false, fmt.Sprintf("sms send failed: %v", err)
	}

	s.logger.Info("sms delivered",
		"job_id", job.ID,
		"provider_msg_id", msgID,
	)
	return true, ""
}

var _ types.ChannelSender = (*SMSSender)(nil)
