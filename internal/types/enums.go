package types

// NotificationType categorizes what a reminder or notification is about.
type NotificationType string

const (
	TypeRSVPReminder      NotificationType = "rsvp_reminder"
	TypePaymentReminder   NotificationType = "payment_reminder"
	TypeDressCodeReminder NotificationType = "dress_code_reminder"
	TypeEventReminder     NotificationType = "event_reminder"
	TypeTaskReminder      NotificationType = "task_reminder"
	TypeTimelineReminder  NotificationType = "timeline_reminder"
	TypeWeatherAlert      NotificationType = "weather_alert"
	TypeBudgetAlert       NotificationType = "budget_alert"
	TypeCustom            NotificationType = "custom"
)

// AllNotificationTypes lists every notification type. Used by the preference
// seeder, which creates one default row per type.
var AllNotificationTypes = []NotificationType{
	TypeRSVPReminder,
	TypePaymentReminder,
	TypeDressCodeReminder,
	TypeEventReminder,
	TypeTaskReminder,
	TypeTimelineReminder,
	TypeWeatherAlert,
	TypeBudgetAlert,
	TypeCustom,
}

// Channel identifies a delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// ReminderStatus represents the lifecycle state of a reminder.
type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSent      ReminderStatus = "sent"
	ReminderFailed    ReminderStatus = "failed"
	ReminderCancelled ReminderStatus = "cancelled"
)

// ReminderFrequency controls recurrence of a reminder.
type ReminderFrequency string

const (
	FrequencyOnce   ReminderFrequency = "once"
	FrequencyDaily  ReminderFrequency = "daily"
	FrequencyWeekly ReminderFrequency = "weekly"
	FrequencyCustom ReminderFrequency = "custom"
)

// JobStatus represents the processing state of a queue job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobSent       JobStatus = "sent"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// LogStatus is the terminal outcome recorded in the notification log.
type LogStatus string

const (
	LogSent   LogStatus = "sent"
	LogFailed LogStatus = "failed"
)

// DevicePlatform identifies the platform of a registered push device.
type DevicePlatform string

const (
	PlatformIOS     DevicePlatform = "ios"
	PlatformAndroid DevicePlatform = "android"
	PlatformWeb     DevicePlatform = "web"
)

// RSVPStatus is the invitation response state used for reminder targeting.
type RSVPStatus string

const (
	RSVPPending  RSVPStatus = "pending"
	RSVPAccepted RSVPStatus = "accepted"
	RSVPDeclined RSVPStatus = "declined"
	RSVPMaybe    RSVPStatus = "maybe"
)
