package notify

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/veranemoloko/hls-downloader/internal/domain"
	"github.com/veranemoloko/hls-downloader/internal/metrics"
)

const defaultBuffer = 64

// Sink delivers a status event somewhere outside the process.
type Sink interface {
	Send(ctx context.Context, ev domain.StatusEvent) error
}

// Notifier decouples event producers from slow sinks. Publish never blocks:
// when the buffer is full the oldest pending event is dropped.
type Notifier struct {
	events  chan domain.StatusEvent
	sinks   []Sink
	logger  *slog.Logger
	dropped atomic.Int64
}

// New creates a Notifier with room for buffer pending events.
func New(buffer int, logger *slog.Logger, sinks ...Sink) *Notifier {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Notifier{
		events: make(chan domain.StatusEvent, buffer),
		sinks:  sinks,
		logger: logger,
	}
}

// Publish queues ev for delivery.
func (n *Notifier) Publish(ev domain.StatusEvent) {
	for {
		select {
		case n.events <- ev:
			return
		default:
		}

		select {
		case old := <-n.events:
			n.dropped.Add(1)
			metrics.NotificationsDropped.Inc()
			n.logger.Warn("notifier lagging, dropped event", "job_id", old.JobID, "phase", old.Phase)
		default:
		}
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (n *Notifier) Dropped() int64 {
	return n.dropped.Load()
}

// Run delivers events to every sink until ctx is done. Sink errors are
// logged and never returned. Events still buffered on shutdown are flushed
// with a background context so that final statuses are not lost.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-n.events:
			n.deliver(ctx, ev)
		case <-ctx.Done():
			n.flush()
			return nil
		}
	}
}

func (n *Notifier) flush() {
	for {
		select {
		case ev := <-n.events:
			n.deliver(context.Background(), ev)
		default:
			return
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, ev domain.StatusEvent) {
	for _, sink := range n.sinks {
		if err := sink.Send(ctx, ev); err != nil {
			metrics.NotificationsFailed.Inc()
			n.logger.Warn("status notification failed",
				"job_id", ev.JobID,
				"phase", ev.Phase,
				"error", err,
			)
		}
	}
}
