package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used throughout the
// platform. cmd mains adapt *slog.Logger to this.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// ChannelSender delivers one queue job over a single channel. Implementations
// must never let an adapter failure escape as an error that would abort the
// worker batch: every failure is a false return.
type ChannelSender interface {
	// Channel returns the channel this sender serves.
	Channel() Channel

	// Deliver attempts delivery of the job to its recipient. The returned
	// bool is the only outcome signal; reason strings feed the job's
	// error_message and the notification log.
	Deliver(ctx context.Context, job *QueueJob) (delivered bool, reason string)
}

// RealtimeNotifier is the slice of the connection manager the in-app sender
// needs: fan out one payload to all of a user's live connections.
type RealtimeNotifier interface {
	SendUserNotification(userID string, payload any) bool
	IsUserOnline(userID string) bool
}
