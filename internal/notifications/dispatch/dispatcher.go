// Package dispatch routes queue jobs to their delivery channel. Each channel
// has one sender implementing types.ChannelSender; the dispatcher selects by
// the job's channel tag.
//
// The delivery path never returns errors. A channel failure of any kind is
// reported as a false return with a reason string, so one broken vendor
// degrades its own jobs and nothing else.
package dispatch

import (
	"context"
	"fmt"

	"gatherly/internal/types"
)

// Dispatcher fans a job out to the sender registered for its channel.
type Dispatcher struct {
	senders map[types.Channel]types.ChannelSender
	logger  types.Logger
}

// NewDispatcher creates a Dispatcher from the given senders, keyed by their
// reported channel.
func NewDispatcher(logger types.Logger, senders ...types.ChannelSender) *Dispatcher {
	byChannel := make(map[types.Channel]types.ChannelSender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &Dispatcher{senders: byChannel, logger: logger}
}

// Dispatch delivers one job through its channel's sender. It never panics
// and never returns an error; all failure modes collapse to (false, reason).
func (d *Dispatcher) Dispatch(ctx context.Context, job *types.QueueJob) (delivered bool, reason string) {
	sender, ok := d.senders[job.Channel]
	if !ok {
		return false, fmt.Sprintf("no sender registered for channel %q", job.Channel)
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("channel sender panicked",
				"job_id", job.ID,
				"channel", string(job.Channel),
				"panic", fmt.Sprintf("%v", r),
			)
			delivered = false
			reason = fmt.Sprintf("sender panic: %v", r)
		}
	}()

	return sender.Deliver(ctx, job)
}
