// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package notify

import (
	"context"
	"time"

	"github.com/tomtom215/discordeerr/internal/logging"
	"github.com/tomtom215/discordeerr/internal/metrics"
	"github.com/tomtom215/discordeerr/internal/models"
)

// eventRetention is how long processed webhook events are kept for the
// audit trail before the worker sweeps them.
const eventRetention = 30 * 24 * time.Hour

// pruneInterval is how often the retention sweep runs.
const pruneInterval = 12 * time.Hour

// EventLogger records delivery outcomes for logged webhook events and
// expires old ones. Implemented by the store.
type EventLogger interface {
	MarkEventProcessed(ctx context.Context, id int64, sentDM, sentChannel bool, seerrUserID int64) error
	PruneEvents(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Task is one queued delivery: a normalized event plus its event-log row.
type Task struct {
	Event *models.NotificationEvent

	// LogID is the webhook_events row to update after delivery, or 0
	// when the event was not logged.
	LogID int64
}

// Worker drains the dispatch queue. The webhook handler acknowledges
// Seerr as soon as the event is queued; the worker does the slow Discord
// work off the request path.
type Worker struct {
	dispatcher *Dispatcher
	events     EventLogger
	queue      chan Task
}

// NewWorker creates a worker with a bounded queue.
func NewWorker(dispatcher *Dispatcher, events EventLogger, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Worker{
		dispatcher: dispatcher,
		events:     events,
		queue:      make(chan Task, queueSize),
	}
}

// Enqueue hands a task to the worker. It reports false when the queue is
// full; the caller has already acknowledged the webhook, so the event is
// dropped with only its log row recording the miss.
func (w *Worker) Enqueue(task Task) bool {
	select {
	case w.queue <- task:
		metrics.DispatchQueueDepth.Set(float64(len(w.queue)))
		return true
	default:
		return false
	}
}

// Serve implements suture.Service: it processes tasks until the context
// is canceled, sweeping expired event-log rows on the way.
func (w *Worker) Serve(ctx context.Context) error {
	w.prune(ctx)
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.prune(ctx)
		case task := <-w.queue:
			metrics.DispatchQueueDepth.Set(float64(len(w.queue)))
			w.process(ctx, task)
		}
	}
}

func (w *Worker) process(ctx context.Context, task Task) {
	outcome, err := w.dispatcher.Dispatch(ctx, task.Event)
	if err != nil {
		logging.Ctx(ctx).Error().
			Err(err).
			Str("type", string(task.Event.Type)).
			Msg("notification delivery failed")
	}

	if task.LogID != 0 && w.events != nil {
		if err := w.events.MarkEventProcessed(ctx, task.LogID, outcome.DMSent, outcome.ChannelPosted, outcome.SeerrUserID); err != nil {
			logging.Ctx(ctx).Error().Err(err).Int64("event_id", task.LogID).Msg("failed to record delivery outcome")
		}
	}
}

func (w *Worker) prune(ctx context.Context) {
	if w.events == nil {
		return
	}
	n, err := w.events.PruneEvents(ctx, eventRetention)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("failed to prune webhook events")
		return
	}
	if n > 0 {
		logging.Ctx(ctx).Info().Int64("removed", n).Msg("pruned expired webhook events")
	}
}

// String implements fmt.Stringer for supervisor logging.
func (w *Worker) String() string {
	return "dispatch-worker"
}
