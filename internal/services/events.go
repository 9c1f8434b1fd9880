package services

import (
	"context"
	"log/slog"
	"time"

	"budgetboard/internal/amqp"
	"budgetboard/internal/crossfilter"
	"budgetboard/internal/metrics"
)

// FilterChangedPublisher is implemented by *amqp.Client.
type FilterChangedPublisher interface {
	PublishFilterChanged(ctx context.Context, msg *amqp.FilterChangedMessage) error
}

// FilterEventPublisher forwards filter changes to the broker from its own
// goroutine, so a slow broker never holds a session lock. Events that do not
// fit in the buffer are dropped.
type FilterEventPublisher struct {
	publisher FilterChangedPublisher
	queue     chan *amqp.FilterChangedMessage
}

func NewFilterEventPublisher(publisher FilterChangedPublisher, buffer int) *FilterEventPublisher {
	return &FilterEventPublisher{
		publisher: publisher,
		queue:     make(chan *amqp.FilterChangedMessage, buffer),
	}
}

// Enqueue implements FilterEventSink.
func (p *FilterEventPublisher) Enqueue(sessionID string, ev crossfilter.ChangeEvent) {
	msg := &amqp.FilterChangedMessage{
		SessionID: sessionID,
		Dimension: ev.Dimension,
		Selected:  ev.Selected,
		Total:     ev.Total,
		Timestamp: time.Now(),
	}
	if ev.Filter != nil {
		msg.Filter = ev.Filter.String()
	}
	select {
	case p.queue <- msg:
	default:
		metrics.ObserveEvent("dropped")
	}
}

// Run publishes queued events until ctx is done.
func (p *FilterEventPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-p.queue:
			if err := p.publisher.PublishFilterChanged(ctx, msg); err != nil {
				metrics.ObserveEvent("error")
				slog.WarnContext(ctx, "Failed to publish filter changed event",
					"session_id", msg.SessionID,
					"dimension", msg.Dimension,
					"error", err)
				continue
			}
			metrics.ObserveEvent("published")
		}
	}
}
