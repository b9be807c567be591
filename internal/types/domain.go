package types

import "time"

// Reminder is a scheduled intent to notify one or more users about an
// event-related occurrence. A reminder never carries delivery state itself;
// delivery happens through the queue jobs fanned out from it.
type Reminder struct {
	ID               string
	Title            string
	Message          string
	NotificationType NotificationType
	ScheduledTime    time.Time
	SentAt           time.Time

	Frequency       ReminderFrequency
	RecurrenceCount int
	RecurrenceSent  int

	Status        ReminderStatus
	IsActive      bool
	AutoGenerated bool

	// Per-channel send flags. A channel is only used when the reminder flag
	// AND the target user's preference both enable it.
	SendEmail bool
	SendSMS   bool
	SendPush  bool
	SendInApp bool

	// Targeting
	TargetAllGuests  bool
	TargetUserIDs    []string
	TargetRSVPStatus RSVPStatus

	EventID   string
	CreatorID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// QueueJob is one channel- and recipient-specific unit of delivery derived
// from a reminder (or created ad hoc for a test send).
type QueueJob struct {
	ID               string
	NotificationType NotificationType
	Channel          Channel

	Subject string
	Message string

	ScheduledFor time.Time
	// Priority runs 1 (highest) to 10 (lowest).
	Priority int

	Status        JobStatus
	Attempts      int
	MaxAttempts   int
	LastAttemptAt time.Time
	ErrorMessage  string

	ReminderID  string // empty for ad hoc jobs
	EventID     string // empty for ad hoc jobs
	RecipientID string

	CreatedAt time.Time
}

// ReadyToSend reports whether the job matches the ready predicate: queued,
// due, and under the attempt cap.
func (j *QueueJob) ReadyToSend(now time.Time) bool {
	return j.Status == JobQueued &&
		!now.Before(j.ScheduledFor) &&
		j.Attempts < j.MaxAttempts
}

// RetryEligible reports whether a failed job may be swept back to queued.
// The 30 minute cool-off prevents hammering a broken channel.
func (j *QueueJob) RetryEligible(now time.Time) bool {
	return j.Status == JobFailed &&
		j.Attempts < j.MaxAttempts &&
		(j.LastAttemptAt.IsZero() || now.Sub(j.LastAttemptAt) > 30*time.Minute)
}

// NotificationLog is an immutable record of an attempted or completed
// delivery. In-app rows double as the user's notification inbox; ReadAt is
// the only field ever updated after insert.
type NotificationLog struct {
	ID               string
	NotificationType NotificationType
	Channel          Channel

	Subject string
	Message string

	SentAt      time.Time
	DeliveredAt time.Time
	ReadAt      time.Time

	Status       LogStatus
	ErrorMessage string

	ReminderID  string
	EventID     string
	RecipientID string

	CreatedAt time.Time
}

// NotificationPreference holds a user's delivery settings for one
// notification type. Exactly one row exists per (user, type) once seeded;
// before seeding, system defaults apply.
type NotificationPreference struct {
	ID               string
	UserID           string
	NotificationType NotificationType

	EmailEnabled bool
	SMSEnabled   bool
	PushEnabled  bool
	InAppEnabled bool

	AdvanceNoticeHours int
	QuietHoursStart    string // "HH:MM", empty disables quiet hours
	QuietHoursEnd      string
	MaxDaily           int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultPreference returns the system default settings for a notification
// type. AdvanceNoticeHours defaults to 0 so a send is never silently moved
// earlier than the reminder's trigger time.
func DefaultPreference(userID string, nt NotificationType) NotificationPreference {
	return NotificationPreference{
		UserID:             userID,
		NotificationType:   nt,
		EmailEnabled:       true,
		SMSEnabled:         false,
		PushEnabled:        true,
		InAppEnabled:       true,
		AdvanceNoticeHours: 0,
		QuietHoursStart:    "22:00",
		QuietHoursEnd:      "08:00",
		MaxDaily:           10,
	}
}

// ReminderTemplate is a reusable subject/message pair with {placeholder}
// variables, instantiated into reminders. System templates ship with the
// service; user templates are private unless marked public.
type ReminderTemplate struct {
	ID               string
	Name             string
	Description      string
	NotificationType NotificationType

	SubjectTemplate string
	MessageTemplate string
	// Variables lists the placeholder names the templates reference.
	Variables []string

	Category string
	IsPublic bool
	IsSystem bool
	IsActive bool

	DefaultAdvanceHours int
	DefaultFrequency    ReminderFrequency

	CreatorID string // empty for system templates

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AutomationRule describes when a template should be instantiated without a
// human creating the reminder: a trigger event name, optional JSON match
// conditions, and timing offsets. Rule evaluation is driven by the events
// service calling the automatic-reminder endpoint.
type AutomationRule struct {
	ID          string
	Name        string
	Description string

	TriggerEvent string
	Conditions   map[string]any

	NotificationType NotificationType
	TemplateID       string

	DelayHours   int
	AdvanceHours int

	IsActive         bool
	ApplyToAllEvents bool

	CreatorID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Device is a registered push target for a user.
type Device struct {
	ID         string
	UserID     string
	Token      string
	Platform   DevicePlatform
	DeviceName string
	IsActive   bool
	LastUsedAt time.Time
	CreatedAt  time.Time
}

// Event is the slice of the events domain this subsystem needs: enough to
// compute automatic reminder offsets and resolve guest lists. The events
// service owns the full entity.
type Event struct {
	ID            string
	Title         string
	StartDateTime time.Time
	DressCode     string
	CreatorID     string
}

// User is the recipient slice of the users domain: contact addresses only.
type User struct {
	ID          string
	Email       string
	PhoneNumber string
	FullName    string
}

// Guest is one event invitee with their RSVP state, used for reminder
// targeting.
type Guest struct {
	UserID     string
	RSVPStatus RSVPStatus
}

// QueueStatus is the operator-facing snapshot returned by the queue status
// endpoint.
type QueueStatus struct {
	CountsByStatus  map[JobStatus]int `json:"counts_by_status"`
	NextScheduledAt *time.Time        `json:"next_scheduled_at,omitempty"`
	LastProcessedAt *time.Time        `json:"last_processed_at,omitempty"`
}

// NotificationAnalytics aggregates log rows over a day window.
type NotificationAnalytics struct {
	TotalSent    int            `json:"total_sent"`
	DeliveryRate float64        `json:"delivery_rate"`
	ByType       map[string]int `json:"by_type"`
	ByChannel    map[string]int `json:"by_channel"`
	ByStatus     map[string]int `json:"by_status"`
}
