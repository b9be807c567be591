// Package worker drains the delivery queue. One pass fetches a batch of due
// jobs, claims each with a compare-and-set status update, dispatches it, and
// records the outcome in the job row and the notification log.
//
// Processing within a pass is strictly sequential. Safety under concurrent
// passes comes from the claim: a job already taken by another pass fails its
// status check and is skipped.
package worker

import (
	"context"
	"time"

	"gatherly/internal/types"
)

// QueueStore abstracts the queue operations the worker drives.
type QueueStore interface {
	FetchReady(ctx context.Context, limit int) ([]*types.QueueJob, error)
	// Claim transitions a job from queued to processing, reporting whether
	// this caller won the job.
	Claim(ctx context.Context, jobID string) (bool, error)
	MarkSent(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID, errMessage string) error
	FetchFailedForRetry(ctx context.Context, limit int) ([]*types.QueueJob, error)
	Requeue(ctx context.Context, jobID string) (bool, error)
}

// Dispatcher delivers one job through its channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *types.QueueJob) (delivered bool, reason string)
}

// LogStore abstracts the notification log append.
type LogStore interface {
	Append(ctx context.Context, entry *types.NotificationLog) error
}

// ReminderCompleter records that a reminder's jobs finished a send pass, so
// the reminder's status and recurrence can advance.
type ReminderCompleter interface {
	CompleteSendPass(ctx context.Context, reminderID string) error
}

// Worker processes pending delivery jobs.
type Worker struct {
	queue      QueueStore
	dispatcher Dispatcher
	logs       LogStore
	reminders  ReminderCompleter
	clock      types.Clock
	logger     types.Logger
	batchSize  int
}

// Config holds the dependencies for creating a Worker.
type Config struct {
	Queue      QueueStore
	Dispatcher Dispatcher
	Logs       LogStore
	// Reminders is optional; without it reminder rows keep their status and
	// recurrence untouched by delivery.
	Reminders ReminderCompleter
	Clock     types.Clock
	Logger    types.Logger
	// BatchSize caps jobs per pass; 0 means 50.
	BatchSize int
}

// New creates a Worker.
func New(cfg Config) *Worker {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	return &Worker{
		queue:      cfg.Queue,
		dispatcher: cfg.Dispatcher,
		logs:       cfg.Logs,
		reminders:  cfg.Reminders,
		clock:      clock,
		logger:     cfg.Logger,
		batchSize:  batch,
	}
}

// ProcessPending runs one delivery pass and returns how many jobs were
// processed (sent or failed; skipped claims do not count). A limit of 0
// falls back to the worker's batch size.
//
// No single job failure aborts the pass.
func (w *Worker) ProcessPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = w.batchSize
	}

	jobs, err := w.queue.FetchReady(ctx, limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	deliveredReminders := make(map[string]bool)
	for _, job := range jobs {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}

		claimed, err := w.queue.Claim(ctx, job.ID)
		if err != nil {
			w.logger.Error("failed to claim job",
				"job_id", job.ID,
				"error", err.Error(),
			)
			continue
		}
		if !claimed {
			// Another pass took it between fetch and claim.
			continue
		}

		if w.processOne(ctx, job) && job.ReminderID != "" {
			deliveredReminders[job.ReminderID] = true
		}
		processed++
	}

	w.completeReminders(ctx, deliveredReminders)

	if processed > 0 {
		w.logger.Info("delivery pass complete",
			"fetched", len(jobs),
			"processed", processed,
		)
	}
	return processed, nil
}

// completeReminders advances each reminder that had at least one job
// delivered this pass. Once per reminder per pass, after the batch, so a
// recurring reminder's next fan-out never lands inside the pass that sent it.
func (w *Worker) completeReminders(ctx context.Context, reminderIDs map[string]bool) {
	if w.reminders == nil {
		return
	}
	for id := range reminderIDs {
		if err := w.reminders.CompleteSendPass(ctx, id); err != nil {
			w.logger.Error("failed to complete reminder send pass",
				"reminder_id", id,
				"error", err.Error(),
			)
		}
	}
}

// processOne dispatches a claimed job, records the outcome, and reports
// whether the job was delivered.
func (w *Worker) processOne(ctx context.Context, job *types.QueueJob) bool {
	delivered, reason := w.dispatcher.Dispatch(ctx, job)

	if delivered {
		if err := w.queue.MarkSent(ctx, job.ID); err != nil {
			w.logger.Error("failed to mark job sent",
				"job_id", job.ID,
				"error", err.Error(),
			)
		}
		// In-app deliveries write their own inbox row, which doubles as the
		// log entry. Logging here again would duplicate it.
		if job.Channel != types.ChannelInApp {
			w.appendLog(ctx, job, types.LogSent, "")
		}
		return true
	}

	if err := w.queue.MarkFailed(ctx, job.ID, reason); err != nil {
		w.logger.Error("failed to mark job failed",
			"job_id", job.ID,
			"error", err.Error(),
		)
	}
	w.appendLog(ctx, job, types.LogFailed, reason)

	w.logger.Warn("notification delivery failed",
		"job_id", job.ID,
		"channel", string(job.Channel),
		"recipient_id", job.RecipientID,
		"reason", reason,
	)
	return false
}

func (w *Worker) appendLog(ctx context.Context, job *types.QueueJob, status types.LogStatus, errMessage string) {
	now := w.clock.Now()
	entry := &types.NotificationLog{
		NotificationType: job.NotificationType,
		Channel:          job.Channel,
		Subject:          job.Subject,
		Message:          job.Message,
		SentAt:           now,
		Status:           status,
		ErrorMessage:     errMessage,
		ReminderID:       job.ReminderID,
		EventID:          job.EventID,
		RecipientID:      job.RecipientID,
	}
	if status == types.LogSent {
		entry.DeliveredAt = now
	}
	if err := w.logs.Append(ctx, entry); err != nil {
		w.logger.Error("failed to append notification log",
			"job_id", job.ID,
			"error", err.Error(),
		)
	}
}

// RetrySweep requeues failed jobs that are past their cool-off and under the
// attempt cap, returning how many were requeued. Attempts are not reset, so
// the cap stays cumulative.
func (w *Worker) RetrySweep(ctx context.Context) (int, error) {
	jobs, err := w.queue.FetchFailedForRetry(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, job := range jobs {
		ok, err := w.queue.Requeue(ctx, job.ID)
		if err != nil {
			w.logger.Error("failed to requeue job",
				"job_id", job.ID,
				"error", err.Error(),
			)
			continue
		}
		if ok {
			requeued++
		}
	}

	if requeued > 0 {
		w.logger.Info("retry sweep complete", "requeued", requeued)
	}
	return requeued, nil
}

// Run drives the worker on timers until the context is cancelled: a
// delivery pass every pollInterval and a retry sweep every sweepInterval.
func (w *Worker) Run(ctx context.Context, pollInterval, sweepInterval time.Duration) error {
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	w.logger.Info("worker loop started",
		"poll_interval", pollInterval.String(),
		"sweep_interval", sweepInterval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker loop stopping")
			return ctx.Err()
		case <-poll.C:
			if _, err := w.ProcessPending(ctx, 0); err != nil && ctx.Err() == nil {
				w.logger.Error("delivery pass failed", "error", err.Error())
			}
		case <-sweep.C:
			if _, err := w.RetrySweep(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("retry sweep failed", "error", err.Error())
			}
		}
	}
}
