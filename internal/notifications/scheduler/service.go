// Package scheduler owns the reminder lifecycle: creation, edits, deletion,
// automatic generation from event milestones, and the fan-out that turns one
// reminder into per-user per-channel queue jobs.
package scheduler

import (
	"context"
	"time"

	"gatherly/internal/db"
	"gatherly/internal/notifications/preferences"
	"gatherly/internal/notifications/templates"
	"gatherly/internal/types"
)

// ReminderStore abstracts the reminder persistence operations the service
// needs.
type ReminderStore interface {
	Create(ctx context.Context, rem *types.Reminder) error
	GetByID(ctx context.Context, id string) (*types.Reminder, error)
	ListForEvent(ctx context.Context, eventID string, filter db.ReminderFilter, page types.Pagination) ([]*types.Reminder, int, error)
	Update(ctx context.Context, id string, patch db.ReminderPatch) (*types.Reminder, error)
	SoftDelete(ctx context.Context, id string) (bool, error)
	MarkSent(ctx context.Context, id string, at time.Time) (*types.Reminder, error)
}

// QueueStore abstracts the queue operations the scheduler touches. The
// worker owns the rest of the queue surface.
type QueueStore interface {
	Enqueue(ctx context.Context, job *types.QueueJob) error
	CancelByReminder(ctx context.Context, reminderID string) (int, error)
}

// DirectoryStore abstracts the event and guest lookups used for targeting
// and authorization.
type DirectoryStore interface {
	GetEvent(ctx context.Context, id string) (*types.Event, error)
	ListGuests(ctx context.Context, eventID string, rsvp types.RSVPStatus) ([]*types.Guest, error)
	IsGuest(ctx context.Context, eventID, userID string) (bool, error)
}

// PreferenceResolver returns a user's effective preference for one
// notification type.
type PreferenceResolver interface {
	Resolve(ctx context.Context, userID string, nt types.NotificationType) (*types.NotificationPreference, error)
}

// TemplateSource returns a template the caller may instantiate.
type TemplateSource interface {
	GetVisible(ctx context.Context, id, callerID string) (*types.ReminderTemplate, error)
}

// Service implements the reminder scheduling operations.
type Service struct {
	reminders ReminderStore
	queue     QueueStore
	directory DirectoryStore
	prefs     PreferenceResolver
	templates TemplateSource
	clock     types.Clock
	logger    types.Logger
}

// ServiceConfig holds the dependencies for creating a Service.
type ServiceConfig struct {
	Reminders ReminderStore
	Queue     QueueStore
	Directory DirectoryStore
	Prefs     PreferenceResolver
	// Templates is optional; without it CreateReminderFromTemplate reports
	// every template as absent.
	Templates TemplateSource
	Clock     types.Clock
	Logger    types.Logger
}

// NewService creates a scheduler Service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Service{
		reminders: cfg.Reminders,
		queue:     cfg.Queue,
		directory: cfg.Directory,
		prefs:     cfg.Prefs,
		templates: cfg.Templates,
		clock:     clock,
		logger:    cfg.Logger,
	}
}

// CreateReminderInput carries the caller-supplied fields of a new reminder.
type CreateReminderInput struct {
	Title            string
	Message          string
	NotificationType types.NotificationType
	ScheduledTime    time.Time
	Frequency        types.ReminderFrequency
	RecurrenceCount  int

	SendEmail bool
	SendSMS   bool
	SendPush  bool
	SendInApp bool

	TargetAllGuests  bool
	TargetUserIDs    []string
	TargetRSVPStatus types.RSVPStatus
}

// CreateReminder validates, persists, and fans out a new reminder. The
// creator must be the event's creator or one of its guests.
func (s *Service) CreateReminder(ctx context.Context, eventID, creatorID string, input CreateReminderInput) (*types.Reminder, error) {
	event, err := s.directory.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundEvent, "event not found: "+eventID, nil)
	}

	if event.CreatorID != creatorID {
		isGuest, err := s.directory.IsGuest(ctx, eventID, creatorID)
		if err != nil {
			return nil, err
		}
		if !isGuest {
			return nil, types.NewAppError(types.ErrCodePermissionEvent,
				"only the event creator or a guest may create reminders", nil)
		}
	}

	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	rem := &types.Reminder{
		Title:            input.Title,
		Message:          input.Message,
		NotificationType: input.NotificationType,
		ScheduledTime:    input.ScheduledTime.UTC(),
		Frequency:        input.Frequency,
		RecurrenceCount:  input.RecurrenceCount,
		SendEmail:        input.SendEmail,
		SendSMS:          input.SendSMS,
		SendPush:         input.SendPush,
		SendInApp:        input.SendInApp,
		TargetAllGuests:  input.TargetAllGuests,
		TargetUserIDs:    input.TargetUserIDs,
		TargetRSVPStatus: input.TargetRSVPStatus,
		EventID:          eventID,
		CreatorID:        creatorID,
	}
	if err := s.reminders.Create(ctx, rem); err != nil {
		return nil, err
	}

	enqueued, err := s.fanOut(ctx, rem)
	if err != nil {
		// The reminder row exists; fan-out can be repaired by an edit.
		s.logger.Error("reminder fan-out failed",
			"reminder_id", rem.ID,
			"error", err.Error(),
		)
		return rem, nil
	}

	s.logger.Info("reminder created",
		"reminder_id", rem.ID,
		"event_id", eventID,
		"jobs_enqueued", enqueued,
	)
	return rem, nil
}

// FromTemplateInput carries the instantiation parameters for creating a
// reminder from a template. Channel flags and targeting come from the
// caller; title, message, type, and frequency come from the template.
type FromTemplateInput struct {
	TemplateID    string
	Variables     map[string]string
	ScheduledTime time.Time

	SendEmail bool
	SendSMS   bool
	SendPush  bool
	SendInApp bool

	TargetAllGuests  bool
	TargetUserIDs    []string
	TargetRSVPStatus types.RSVPStatus
}

// CreateReminderFromTemplate renders a template with the supplied variables
// and creates the resulting reminder through the normal create path, so
// authorization, validation, and fan-out all apply.
func (s *Service) CreateReminderFromTemplate(ctx context.Context, eventID, creatorID string, input FromTemplateInput) (*types.Reminder, error) {
	if s.templates == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundTemplate,
			"template not found: "+input.TemplateID, nil)
	}
	tmpl, err := s.templates.GetVisible(ctx, input.TemplateID, creatorID)
	if err != nil {
		return nil, err
	}

	return s.CreateReminder(ctx, eventID, creatorID, CreateReminderInput{
		Title:            templates.Render(tmpl.SubjectTemplate, input.Variables),
		Message:          templates.Render(tmpl.MessageTemplate, input.Variables),
		NotificationType: tmpl.NotificationType,
		ScheduledTime:    input.ScheduledTime,
		Frequency:        tmpl.DefaultFrequency,
		SendEmail:        input.SendEmail,
		SendSMS:          input.SendSMS,
		SendPush:         input.SendPush,
		SendInApp:        input.SendInApp,
		TargetAllGuests:  input.TargetAllGuests,
		TargetUserIDs:    input.TargetUserIDs,
		TargetRSVPStatus: input.TargetRSVPStatus,
	})
}

// GetReminder returns a reminder visible to the caller: its creator, the
// event's creator, or one of the event's guests.
func (s *Service) GetReminder(ctx context.Context, id, callerID string) (*types.Reminder, error) {
	rem, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rem == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundReminder, "reminder not found: "+id, nil)
	}
	if err := s.authorizeRead(ctx, rem, callerID); err != nil {
		return nil, err
	}
	return rem, nil
}

// ListReminders returns a page of an event's reminders. Visibility follows
// the same rule as GetReminder.
func (s *Service) ListReminders(ctx context.Context, eventID, callerID string, filter db.ReminderFilter, page types.Pagination) ([]*types.Reminder, int, error) {
	event, err := s.directory.GetEvent(ctx, eventID)
	if err != nil {
		return nil, 0, err
	}
	if event == nil {
		return nil, 0, types.NewAppError(types.ErrCodeNotFoundEvent, "event not found: "+eventID, nil)
	}
	if event.CreatorID != callerID {
		isGuest, err := s.directory.IsGuest(ctx, eventID, callerID)
		if err != nil {
			return nil, 0, err
		}
		if !isGuest {
			return nil, 0, types.NewAppError(types.ErrCodePermissionEvent,
				"only the event creator or a guest may list reminders", nil)
		}
	}
	return s.reminders.ListForEvent(ctx, eventID, filter, page)
}

// UpdateReminder applies a patch after checking the editor's permission.
// A change to the schedule, frequency, channels, or targeting cancels the
// reminder's queued jobs and re-runs the fan-out. Deactivating cancels the
// queued jobs without replacing them; reactivating restores them. A reminder
// that is inactive or past pending never gains new jobs from an edit.
func (s *Service) UpdateReminder(ctx context.Context, id, editorID string, patch db.ReminderPatch) (*types.Reminder, error) {
	rem, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rem == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundReminder, "reminder not found: "+id, nil)
	}
	if err := s.authorizeEdit(ctx, rem, editorID); err != nil {
		return nil, err
	}

	if patch.ScheduledTime != nil && !patch.ScheduledTime.After(s.clock.Now()) {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidTime,
			"scheduled_time must be in the future", nil)
	}

	updated, err := s.reminders.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundReminder, "reminder not found: "+id, nil)
	}

	deactivated := patch.IsActive != nil && !*patch.IsActive
	reactivated := patch.IsActive != nil && *patch.IsActive && !rem.IsActive

	switch {
	case deactivated:
		cancelled, err := s.queue.CancelByReminder(ctx, id)
		if err != nil {
			return nil, err
		}
		s.logger.Info("reminder deactivated",
			"reminder_id", id,
			"jobs_cancelled", cancelled,
		)
	case (requiresRequeue(patch) || reactivated) && updated.IsActive && updated.Status == types.ReminderPending:
		cancelled, err := s.queue.CancelByReminder(ctx, id)
		if err != nil {
			return nil, err
		}
		enqueued, err := s.fanOut(ctx, updated)
		if err != nil {
			s.logger.Error("reminder re-fan-out failed",
				"reminder_id", id,
				"error", err.Error(),
			)
			return updated, nil
		}
		s.logger.Info("reminder rescheduled",
			"reminder_id", id,
			"jobs_cancelled", cancelled,
			"jobs_enqueued", enqueued,
		)
	}
	return updated, nil
}

// DeleteReminder cancels the reminder's queued jobs and soft-deletes the
// row. Log history is preserved.
func (s *Service) DeleteReminder(ctx context.Context, id, editorID string) error {
	rem, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rem == nil {
		return types.NewAppError(types.ErrCodeNotFoundReminder, "reminder not found: "+id, nil)
	}
	if err := s.authorizeEdit(ctx, rem, editorID); err != nil {
		return err
	}

	cancelled, err := s.queue.CancelByReminder(ctx, id)
	if err != nil {
		return err
	}
	deleted, err := s.reminders.SoftDelete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return types.NewAppError(types.ErrCodeNotFoundReminder, "reminder not found: "+id, nil)
	}

	s.logger.Info("reminder deleted",
		"reminder_id", id,
		"jobs_cancelled", cancelled,
	)
	return nil
}

// SendTestNotification enqueues one immediate ad hoc job so a user can
// verify a channel end to end. It bypasses preference channel filtering on
// purpose; quiet hours still apply.
func (s *Service) SendTestNotification(ctx context.Context, userID string, channel types.Channel, title, message string) (*types.QueueJob, error) {
	switch channel {
	case types.ChannelEmail, types.ChannelSMS, types.ChannelPush, types.ChannelInApp:
	default:
		return nil, types.NewAppError(types.ErrCodeValidationInvalidChannel,
			"unknown channel: "+string(channel), nil)
	}
	if title == "" {
		title = "Test notification"
	}
	if message == "" {
		message = "This is a test notification from Gatherly."
	}

	scheduledFor := s.clock.Now()
	if pref, err := s.prefs.Resolve(ctx, userID, types.TypeCustom); err == nil {
		scheduledFor = preferences.AdjustForQuietHours(pref, scheduledFor)
	}

	job := &types.QueueJob{
		NotificationType: types.TypeCustom,
		Channel:          channel,
		Subject:          title,
		Message:          message,
		ScheduledFor:     scheduledFor,
		Priority:         PriorityFor(types.TypeCustom),
		RecipientID:      userID,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// CompleteSendPass records that a reminder's queue jobs finished a delivery
// pass. The repository bumps recurrence_sent and either closes the reminder
// or advances a recurring one to its next occurrence; an advanced reminder
// gets its next occurrence fanned out here.
func (s *Service) CompleteSendPass(ctx context.Context, reminderID string) error {
	rem, err := s.reminders.MarkSent(ctx, reminderID, s.clock.Now())
	if err != nil {
		return err
	}
	if rem == nil {
		// Deleted between dispatch and completion; nothing left to advance.
		return nil
	}
	if rem.IsActive && rem.Status == types.ReminderPending {
		enqueued, err := s.fanOut(ctx, rem)
		if err != nil {
			s.logger.Error("recurring reminder fan-out failed",
				"reminder_id", reminderID,
				"error", err.Error(),
			)
			return nil
		}
		s.logger.Info("recurring reminder advanced",
			"reminder_id", reminderID,
			"occurrence", rem.RecurrenceSent,
			"next_at", rem.ScheduledTime,
			"jobs_enqueued", enqueued,
		)
	}
	return nil
}

func (s *Service) validateInput(input CreateReminderInput) error {
	if input.Title == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "title is required", nil)
	}
	if input.Message == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "message is required", nil)
	}
	switch input.NotificationType {
	case "":
		return types.NewAppError(types.ErrCodeValidationMissingField, "notification_type is required", nil)
	default:
		valid := false
		for _, nt := range types.AllNotificationTypes {
			if input.NotificationType == nt {
				valid = true
				break
			}
		}
		if !valid {
			return types.NewAppError(types.ErrCodeValidationInvalidType,
				"unknown notification type: "+string(input.NotificationType), nil)
		}
	}
	if !input.ScheduledTime.After(s.clock.Now()) {
		return types.NewAppError(types.ErrCodeValidationInvalidTime,
			"scheduled_time must be in the future", nil)
	}
	if !input.TargetAllGuests && len(input.TargetUserIDs) == 0 && input.TargetRSVPStatus == "" {
		return types.NewAppError(types.ErrCodeValidationInvalidTarget,
			"reminder must target all guests, explicit users, or an RSVP status", nil)
	}
	return nil
}

// authorizeEdit enforces the write rule: the editor must be the reminder's
// creator or the event's creator.
func (s *Service) authorizeEdit(ctx context.Context, rem *types.Reminder, editorID string) error {
	if rem.CreatorID == editorID {
		return nil
	}
	event, err := s.directory.GetEvent(ctx, rem.EventID)
	if err != nil {
		return err
	}
	if event != nil && event.CreatorID == editorID {
		return nil
	}
	return types.NewAppError(types.ErrCodePermissionReminder,
		"only the reminder creator or event creator may modify this reminder", nil)
}

// authorizeRead allows the reminder creator, the event creator, and the
// event's guests.
func (s *Service) authorizeRead(ctx context.Context, rem *types.Reminder, callerID string) error {
	if rem.CreatorID == callerID {
		return nil
	}
	event, err := s.directory.GetEvent(ctx, rem.EventID)
	if err != nil {
		return err
	}
	if event != nil && event.CreatorID == callerID {
		return nil
	}
	isGuest, err := s.directory.IsGuest(ctx, rem.EventID, callerID)
	if err != nil {
		return err
	}
	if isGuest {
		return nil
	}
	return types.NewAppError(types.ErrCodePermissionReminder,
		"not allowed to view this reminder", nil)
}

// requiresRequeue reports whether a patch invalidates already-enqueued jobs.
func requiresRequeue(patch db.ReminderPatch) bool {
	return patch.ScheduledTime != nil ||
		patch.Frequency != nil ||
		patch.SendEmail != nil ||
		patch.SendSMS != nil ||
		patch.SendPush != nil ||
		patch.SendInApp != nil ||
		patch.TargetAllGuests != nil ||
		patch.TargetUserIDs != nil ||
		patch.TargetRSVPStatus != nil
}
