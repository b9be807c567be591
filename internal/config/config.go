// Package config defines the global configuration structure for the gatherly
// notification platform. Configuration is loaded once at process start and is
// immutable thereafter, following 12-Factor principles: values come from the
// OS environment, with a local .env file as a development convenience.
//
// Any missing required value or invalid format fails the process immediately
// on startup.
package config

import "time"

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"gatherly-notifications"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Email    EmailConfig
	SMS      SMSConfig
	Push     PushConfig
	Worker   WorkerConfig
	Realtime RealtimeConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// EmailConfig holds the outbound email provider (Resend) settings.
type EmailConfig struct {
	ResendAPIKey string `envconfig:"RESEND_API_KEY"`
	FromAddress  string `envconfig:"EMAIL_FROM" default:"notifications@gatherly.app"`
	FromName     string `envconfig:"EMAIL_FROM_NAME" default:"Gatherly"`
}

// SMSConfig holds the outbound SMS provider (Termii) settings. An empty API
// key leaves the channel unconfigured; SMS jobs then fail softly.
type SMSConfig struct {
	TermiiAPIKey string `envconfig:"TERMII_API_KEY"`
	SenderID     string `envconfig:"TERMII_SENDER_ID" default:"Gatherly"`
}

// PushConfig holds Firebase Cloud Messaging settings.
type PushConfig struct {
	FCMProjectID   string `envconfig:"FCM_PROJECT_ID"`
	FCMAccessToken string `envconfig:"FCM_ACCESS_TOKEN"`
}

// WorkerConfig tunes the queue worker loop.
type WorkerConfig struct {
	BatchSize    int           `envconfig:"WORKER_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"1m"`
	RetrySweep   time.Duration `envconfig:"WORKER_RETRY_SWEEP_INTERVAL" default:"15m"`
}

// RealtimeConfig tunes the websocket connection manager.
type RealtimeConfig struct {
	PingInterval   time.Duration `envconfig:"WS_PING_INTERVAL" default:"30s"`
	WriteTimeout   time.Duration `envconfig:"WS_WRITE_TIMEOUT" default:"10s"`
	AllowedOrigins []string      `envconfig:"WS_ALLOWED_ORIGINS" default:"*"`
}
