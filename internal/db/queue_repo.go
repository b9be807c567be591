package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gatherly/internal/types"
)

// QueueRepository provides data access for the notification_queue table.
// The queue table is the single coordination point of the delivery pipeline:
// the scheduler fans jobs into it and the worker drains it. All status
// transitions use compare-and-set WHERE clauses so concurrent fan-out and
// worker passes stay safe (a job is never picked up twice).
type QueueRepository struct {
	db DBTX
}

// NewQueueRepository creates a new QueueRepository backed by the given
// database connection (pool or transaction).
func NewQueueRepository(db DBTX) *QueueRepository {
	return &QueueRepository{db: db}
}

const queueColumns = `id, notification_type, channel, subject, message,
	scheduled_for, priority, status, attempts, max_attempts,
	last_attempt_at, error_message, reminder_id, event_id, recipient_id,
	created_at`

// Enqueue inserts a new job with status=queued and attempts=0. The caller may
// leave ID empty; a prefixed UUID is generated. MaxAttempts defaults to 3.
func (r *QueueRepository) Enqueue(ctx context.Context, job *types.QueueJob) error {
	if job.ID == "" {
		job.ID = "job_" + uuid.New().String()
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = 3
	}
	if job.Priority == 0 {
		job.Priority = 5
	}
	job.Status = types.JobQueued
	job.Attempts = 0

	row := r.db.QueryRow(ctx,
		`INSERT INTO notification_queue
		 (id, notification_type, channel, subject, message, scheduled_for,
		  priority, status, attempts, max_attempts, reminder_id, event_id,
		  recipient_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $11, $12, NOW())
		 RETURNING created_at`,
		job.ID,
		string(job.NotificationType),
		string(job.Channel),
		nilIfEmpty(job.Subject),
		job.Message,
		job.ScheduledFor,
		job.Priority,
		string(job.Status),
		job.MaxAttempts,
		nilIfEmpty(job.ReminderID),
		nilIfEmpty(job.EventID),
		job.RecipientID,
	)
	if err := row.Scan(&job.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to enqueue notification job", err)
	}
	return nil
}

// FetchReady returns jobs matching the ready-to-send predicate: queued, due,
// and under the attempt cap. Ordered by priority ascending then scheduled_for
// ascending, capped at limit.
func (r *QueueRepository) FetchReady(ctx context.Context, limit int) ([]*types.QueueJob, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+queueColumns+`
		 FROM notification_queue
		 WHERE status = 'queued'
		   AND scheduled_for <= NOW()
		   AND attempts < max_attempts
		 ORDER BY priority, scheduled_for
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch ready jobs", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// Claim transitions a job from queued to processing. The compare-and-set
// WHERE clause makes this the mutual-exclusion point between concurrent
// worker passes: it returns false when another pass already took the job.
func (r *QueueRepository) Claim(ctx context.Context, jobID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE notification_queue SET status = 'processing'
		 WHERE id = $1 AND status = 'queued'`,
		jobID,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim job", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkSent records a successful delivery: status=sent and last_attempt_at.
func (r *QueueRepository) MarkSent(ctx context.Context, jobID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE notification_queue SET
			status = 'sent',
			last_attempt_at = NOW(),
			error_message = NULL
		 WHERE id = $1`,
		jobID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark job sent", err)
	}
	return nil
}

// MarkFailed records a failed attempt: status=failed, attempts incremented
// (clamped to max_attempts so the invariant attempts <= max_attempts holds),
// last_attempt_at and error_message set.
func (r *QueueRepository) MarkFailed(ctx context.Context, jobID string, reason string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE notification_queue SET
			status = 'failed',
			attempts = LEAST(attempts + 1, max_attempts),
			last_attempt_at = NOW(),
			error_message = $2
		 WHERE id = $1`,
		jobID,
		nilIfEmpty(reason),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark job failed", err)
	}
	return nil
}

// CancelByReminder transitions all still-queued jobs for a reminder to
// cancelled. Jobs already processing or terminal are left untouched;
// cancellation is cooperative and coarse. Returns the number of jobs
// cancelled.
func (r *QueueRepository) CancelByReminder(ctx context.Context, reminderID string) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE notification_queue SET status = 'cancelled'
		 WHERE reminder_id = $1 AND status = 'queued'`,
		reminderID,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to cancel jobs for reminder", err)
	}
	return int(tag.RowsAffected()), nil
}

// FetchFailedForRetry returns jobs matching the retry-eligible predicate:
// failed, under the attempt cap, and last attempted more than 30 minutes ago.
func (r *QueueRepository) FetchFailedForRetry(ctx context.Context, limit int) ([]*types.QueueJob, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+queueColumns+`
		 FROM notification_queue
		 WHERE status = 'failed'
		   AND attempts < max_attempts
		   AND (last_attempt_at IS NULL OR last_attempt_at < NOW() - INTERVAL '30 minutes')
		 ORDER BY priority, scheduled_for
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch retry-eligible jobs", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// Requeue resets a failed job to queued for another delivery attempt. The
// attempts counter is not reset, so max_attempts is enforced cumulatively
// across retries. Returns false when the job is no longer failed.
func (r *QueueRepository) Requeue(ctx context.Context, jobID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE notification_queue SET status = 'queued'
		 WHERE id = $1 AND status = 'failed'`,
		jobID,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to requeue job", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByID returns a single job, or nil when absent. Absent rows are not a
// domain error for queue lookups.
func (r *QueueRepository) GetByID(ctx context.Context, jobID string) (*types.QueueJob, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+queueColumns+` FROM notification_queue WHERE id = $1`,
		jobID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get job", err)
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

// Status returns queue counts by status plus the next scheduled send time,
// for the operator-facing queue status endpoint.
func (r *QueueRepository) Status(ctx context.Context) (*types.QueueStatus, error) {
	rows, err := r.db.Query(ctx,
		`SELECT status, COUNT(*) FROM notification_queue GROUP BY status`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to count queue statuses", err)
	}
	defer rows.Close()

	status := &types.QueueStatus{CountsByStatus: map[types.JobStatus]int{}}
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan status count", err)
		}
		status.CountsByStatus[types.JobStatus(s)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating status counts", err)
	}

	var next, last *time.Time
	row := r.db.QueryRow(ctx,
		`SELECT
			(SELECT MIN(scheduled_for) FROM notification_queue WHERE status = 'queued'),
			(SELECT MAX(last_attempt_at) FROM notification_queue)`,
	)
	if err := row.Scan(&next, &last); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read queue watermarks", err)
	}
	status.NextScheduledAt = next
	status.LastProcessedAt = last

	return status, nil
}

// scanJobs reads queue rows into QueueJob structs, handling nullable columns
// with pointer types.
func scanJobs(rows pgx.Rows) ([]*types.QueueJob, error) {
	var jobs []*types.QueueJob
	for rows.Next() {
		var (
			j             types.QueueJob
			notifType     string
			channel       string
			subject       *string
			status        string
			lastAttemptAt *time.Time
			errorMessage  *string
			reminderID    *string
			eventID       *string
		)
		err := rows.Scan(
			&j.ID,
			&notifType,
			&channel,
			&subject,
			&j.Message,
			&j.ScheduledFor,
			&j.Priority,
			&status,
			&j.Attempts,
			&j.MaxAttempts,
			&lastAttemptAt,
			&errorMessage,
			&reminderID,
			&eventID,
			&j.RecipientID,
			&j.CreatedAt,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan queue row", err)
		}
		j.NotificationType = types.NotificationType(notifType)
		j.Channel = types.Channel(channel)
		j.Subject = derefString(subject)
		j.Status = types.JobStatus(status)
		j.LastAttemptAt = derefTime(lastAttemptAt)
		j.ErrorMessage = derefString(errorMessage)
		j.ReminderID = derefString(reminderID)
		j.EventID = derefString(eventID)
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating queue rows", err)
	}
	return jobs, nil
}
