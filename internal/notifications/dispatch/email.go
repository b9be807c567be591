package dispatch

import (
	"context"
	"fmt"
	"html"

	"gatherly/internal/external"
	"gatherly/internal/types"
)

// RecipientStore abstracts the user lookup senders need.
type RecipientStore interface {
	GetUser(ctx context.Context, id string) (*types.User, error)
}

// EmailSender delivers email jobs through the configured email provider.
type EmailSender struct {
	users    RecipientStore
	provider external.EmailProvider
	logger   types.Logger
}

// NewEmailSender creates an EmailSender.
func NewEmailSender(users RecipientStore, provider external.EmailProvider, logger types.Logger) *EmailSender {
	return &EmailSender{users: users, provider: provider, logger: logger}
}

// Channel reports the channel this sender serves.
func (s *EmailSender) Channel() types.Channel { return types.ChannelEmail }

// Deliver sends the job as an email. A recipient without an email address is
// a soft failure, not an error.
func (s *EmailSender) Deliver(ctx context.Context, job *types.QueueJob) (bool, string) {
	if s.provider == nil {
		return false, "email channel not configured"
	}

	user, err := s.users.GetUser(ctx, job.RecipientID)
	if err != nil {
		return false, fmt.Sprintf("recipient lookup failed: %v", err)
	}
	if user == nil {
		return false, "recipient not found"
	}
	if user.Email == "" {
		return false, "recipient has no email address"
	}

	msgID, err := s.provider.SendEmail(ctx, external.EmailInput{
		To:          user.Email,
		Subject:     job.Subject,
		BodyHTML:    renderEmailBody(job),
		BodyText:    job.Message,
		ReferenceID: job.ID,
	})
	if err != nil {
		return false, fmt.Sprintf("email send failed: %v", err)
	}

	s.logger.Info("email delivered",
		"job_id", job.ID,
		"provider_msg_id", msgID,
	)
	return true, ""
}

// renderEmailBody wraps the plain message in a minimal HTML shell.
func renderEmailBody(job *types.QueueJob) string {
	return fmt.Sprintf(
		"<div><h2>%s</h2><p>%s</p></div>",
		html.EscapeString(job.Subject),
		html.EscapeString(job.Message),
	)
}

var _ types.ChannelSender = (*EmailSender)(nil)
