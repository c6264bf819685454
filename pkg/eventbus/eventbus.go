// Package eventbus carries inbound platform events to the engine over a
// watermill topic. A single subscriber goroutine preserves publish order, so
// events reach the dispatch pass one at a time.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/chatflow-io/chatflow/pkg/events"
)

const Topic = "chatflow.events"

const kindMetadataKey = "event_kind"

// Handler consumes one inbound event. Returning an error nacks the message.
type Handler func(ctx context.Context, ev events.Event) error

type EventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
}

func New(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *EventBus {
	return &EventBus{
		publisher:  pub,
		subscriber: sub,
		logger:     logger.With("module", "event_bus"),
	}
}

func (b *EventBus) Publish(_ context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", ev.ID, err)
	}

	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set(kindMetadataKey, string(ev.Kind))

	return b.publisher.Publish(Topic, msg)
}

// Subscribe starts the consumer goroutine. Events are handed to the handler
// in publish order until the context is cancelled or the bus is closed.
func (b *EventBus) Subscribe(ctx context.Context, handler Handler) error {
	messages, err := b.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", Topic, err)
	}

	go func() {
		for msg := range messages {
			var ev events.Event

			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.logger.Error("Failed to decode event", "message_id", msg.UUID, "error", err)
				msg.Nack()

				continue
			}

			if err := handler(ctx, ev); err != nil {
				b.logger.Error("Failed to handle event", "event_id", ev.ID, "kind", ev.Kind, "error", err)
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (b *EventBus) Close() error {
	if err := b.publisher.Close(); err != nil {
		return err
	}

	return b.subscriber.Close()
}
