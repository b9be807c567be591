package external

import (
	"context"
	"fmt"
	"log/slog"
)

// Stub implementations let the application boot in local/test mode without
// real vendor credentials. They log every call and return predictable,
// safe values.

// StubEmailProvider implements EmailProvider by logging and succeeding.
type StubEmailProvider struct {
	logger *slog.Logger
}

// NewStubEmailProvider creates a new StubEmailProvider.
func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) SendEmail(ctx context.Context, input EmailInput) (string, error) {
	s.logger.InfoContext(ctx, "stub: SendEmail called",
		"to", input.To,
		"subject", input.Subject,
	)
	return fmt.Sprintf("email_stub_%s", input.ReferenceID), nil
}

// StubSMSProvider implements SMSProvider by logging and succeeding.
type StubSMSProvider struct {
	logger *slog.Logger
}

// NewStubSMSProvider creates a new StubSMSProvider.
func NewStubSMSProvider(logger *slog.Logger) *StubSMSProvider {
	return &StubSMSProvider{logger: logger}
}

func (s *StubSMSProvider) SendSMS(ctx context.Context, input SMSInput) (string, error) {
	s.logger.InfoContext(ctx, "stub: SendSMS called",
		"to", input.To,
	)
	return fmt.Sprintf("sms_stub_%s", input.ReferenceID), nil
}

// StubPushProvider implements PushProvider by logging and succeeding.
type StubPushProvider struct {
	logger *slog.Logger
}

// NewStubPushProvider creates a new StubPushProvider.
func NewStubPushProvider(logger *slog.Logger) *StubPushProvider {
	return &StubPushProvider{logger: logger}
}

func (s *StubPushProvider) SendPush(ctx context.Context, input PushInput) error {
	s.logger.InfoContext(ctx, "stub: SendPush called",
		"title", input.Title,
	)
	return nil
}

var (
	_ EmailProvider = (*StubEmailProvider)(nil)
	_ SMSProvider   = (*StubSMSProvider)(nil)
	_ PushProvider  = (*StubPushProvider)(nil)
)
