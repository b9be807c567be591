package external

import "context"

// EmailInput is the pre-rendered content of one outbound email.
type EmailInput struct {
	To       string
	Subject  string
	BodyHTML string
	BodyText string
	// ReferenceID correlates the provider send with the internal queue job.
	ReferenceID string
}

// SMSInput is the content of one outbound text message.
type SMSInput struct {
	To          string
	Message     string
	ReferenceID string
}

// PushInput is one push message addressed to a single device token.
type PushInput struct {
	Token string
	Title string
	Body  string
	// Data is attached to the message for client-side routing.
	Data map[string]string
}

// EmailProvider abstracts the transactional email vendor (Resend).
type EmailProvider interface {
	// SendEmail transmits a pre-rendered email and returns the provider's
	// message ID for tracking.
	SendEmail(ctx context.Context, input EmailInput) (providerMsgID string, err error)
}

// SMSProvider abstracts the SMS vendor (Termii).
type SMSProvider interface {
	// SendSMS transmits a text message and returns the provider's message ID.
	SendSMS(ctx context.Context, input SMSInput) (providerMsgID string, err error)
}

// PushProvider abstracts the mobile/web push vendor (FCM).
type PushProvider interface {
	// SendPush delivers one push message to one device token.
	// An ErrCodeNotFoundDevice error means the token is no longer registered
	// and should be deactivated; other errors are transient.
	SendPush(ctx context.Context, input PushInput) error
}
