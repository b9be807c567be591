package external

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"gatherly/internal/config"
)

// ClientRegistry holds the delivery vendor clients. It is the single point of
// access for the rest of the application to reach third-party services. In
// local mode, or when a vendor's credentials are absent, the corresponding
// slot gets a stub that logs instead of calling out.
type ClientRegistry struct {
	Email EmailProvider
	SMS   SMSProvider
	Push  PushProvider
}

// NewClientRegistry instantiates vendor clients from configuration. Real
// clients get a strict 10 second HTTP timeout; slow vendors must not stall
// the worker loop.
func NewClientRegistry(cfg *config.Config, logger *slog.Logger) *ClientRegistry {
	local := cfg.Environment == "local"

	httpClient := &http.Client{Timeout: 10 * time.Second}

	reg := &ClientRegistry{}

	if local || cfg.Email.ResendAPIKey == "" {
		reg.Email = NewStubEmailProvider(logger)
	} else {
		reg.Email = NewResendClient(httpClient, ResendClientConfig{
			APIKey:      cfg.Email.ResendAPIKey,
			FromAddress: cfg.Email.FromAddress,
			Logger:      logger,
		})
	}

	if local || cfg.SMS.TermiiAPIKey == "" {
		reg.SMS = NewStubSMSProvider(logger)
	} else {
		reg.SMS = NewTermiiClient(httpClient, TermiiClientConfig{
			APIKey:   cfg.SMS.TermiiAPIKey,
			SenderID: cfg.SMS.SenderID,
			Logger:   logger,
		})
	}

	if local || cfg.Push.FCMProjectID == "" {
		reg.Push = NewStubPushProvider(logger)
	} else {
		accessToken := cfg.Push.FCMAccessToken
		reg.Push = NewFCMClient(httpClient, FCMClientConfig{
			ProjectID: cfg.Push.FCMProjectID,
			TokenSource: func(ctx context.Context) (string, error) {
				return accessToken, nil
			},
			Logger: logger,
		})
	}

	return reg
}
