package types

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestQueueJobReadyToSend(t *testing.T) {
	tests := []struct {
		name string
		job  QueueJob
		want bool
	}{
		{
			name: "queued and due",
			job:  QueueJob{Status: JobQueued, ScheduledFor: testNow.Add(-time.Minute), Attempts: 0, MaxAttempts: 3},
			want: true,
		},
		{
			name: "due exactly now",
			job:  QueueJob{Status: JobQueued, ScheduledFor: testNow, Attempts: 0, MaxAttempts: 3},
			want: true,
		},
		{
			name: "scheduled in the future",
			job:  QueueJob{Status: JobQueued, ScheduledFor: testNow.Add(time.Minute), Attempts: 0, MaxAttempts: 3},
			want: false,
		},
		{
			name: "already processing",
			job:  QueueJob{Status: JobProcessing, ScheduledFor: testNow.Add(-time.Minute), Attempts: 0, MaxAttempts: 3},
			want: false,
		},
		{
			name: "cancelled",
			job:  QueueJob{Status: JobCancelled, ScheduledFor: testNow.Add(-time.Minute), Attempts: 0, MaxAttempts: 3},
			want: false,
		},
		{
			name: "attempts exhausted",
			job:  QueueJob{Status: JobQueued, ScheduledFor: testNow.Add(-time.Minute), Attempts: 3, MaxAttempts: 3},
			want: false,
		},
		{
			name: "one attempt left",
			job:  QueueJob{Status: JobQueued, ScheduledFor: testNow.Add(-time.Minute), Attempts: 2, MaxAttempts: 3},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.job.ReadyToSend(testNow); got != tt.want {
				t.Errorf("ReadyToSend() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueueJobRetryEligible(t *testing.T) {
	tests := []struct {
		name string
		job  QueueJob
		want bool
	}{
		{
			name: "failed past cool-off",
			job:  QueueJob{Status: JobFailed, Attempts: 1, MaxAttempts: 3, LastAttemptAt: testNow.Add(-35 * time.Minute)},
			want: true,
		},
		{
			name: "failed inside cool-off",
			job:  QueueJob{Status: JobFailed, Attempts: 1, MaxAttempts: 3, LastAttemptAt: testNow.Add(-10 * time.Minute)},
			want: false,
		},
		{
			name: "exactly at cool-off boundary",
			job:  QueueJob{Status: JobFailed, Attempts: 1, MaxAttempts: 3, LastAttemptAt: testNow.Add(-30 * time.Minute)},
			want: false,
		},
		{
			name: "failed with no recorded attempt time",
			job:  QueueJob{Status: JobFailed, Attempts: 1, MaxAttempts: 3},
			want: true,
		},
		{
			name: "attempts exhausted",
			job:  QueueJob{Status: JobFailed, Attempts: 3, MaxAttempts: 3, LastAttemptAt: testNow.Add(-2 * time.Hour)},
			want: false,
		},
		{
			name: "queued job is not retry material",
			job:  QueueJob{Status: JobQueued, Attempts: 1, MaxAttempts: 3, LastAttemptAt: testNow.Add(-2 * time.Hour)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.job.RetryEligible(testNow); got != tt.want {
				t.Errorf("RetryEligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultPreference(t *testing.T) {
	pref := DefaultPreference("usr_1", TypeEventReminder)

	if !pref.EmailEnabled || !pref.PushEnabled || !pref.InAppEnabled {
		t.Error("email, push, and in-app should default to enabled")
	}
	if pref.SMSEnabled {
		t.Error("sms should default to disabled")
	}
	if pref.AdvanceNoticeHours != 0 {
		t.Errorf("advance notice should default to 0, got %d", pref.AdvanceNoticeHours)
	}
	if pref.QuietHoursStart != "22:00" || pref.QuietHoursEnd != "08:00" {
		t.Errorf("unexpected default quiet hours %s-%s", pref.QuietHoursStart, pref.QuietHoursEnd)
	}
	if pref.ID != "" {
		t.Error("defaults must not carry a row id")
	}
}
