package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/ReviewGo/pkg/kafka"
)

// EventsTopic carries review lifecycle events to the notifier.
var EventsTopic = kafka.Topic("review", "events")

const eventSource = "review-service"

// Publisher publishes envelopes to a topic. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// KafkaSink hands events to Kafka for durable delivery by the notifier.
type KafkaSink struct {
	publisher Publisher
	topic     string
}

// NewKafkaSink creates a sink publishing to EventsTopic.
func NewKafkaSink(publisher Publisher) *KafkaSink {
	return &KafkaSink{publisher: publisher, topic: EventsTopic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, event *Event) error {
	envelope, err := ToEnvelope(event)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, s.topic, envelope)
}

// ToEnvelope wraps event in a Kafka envelope keyed by review id. The
// envelope id equals the event id so consumers can deduplicate on it.
func ToEnvelope(event *Event) (*kafka.Event, error) {
	envelope, err := kafka.NewEvent(string(event.Type), event.ReviewID, "review", eventSource, event)
	if err != nil {
		return nil, fmt.Errorf("build %s envelope: %w", event.Type, err)
	}
	envelope.EventID = event.ID
	envelope.Timestamp = event.OccurredAt
	return envelope, nil
}

// FromEnvelope extracts the review event carried by envelope.
func FromEnvelope(envelope *kafka.Event) (*Event, error) {
	var event Event
	if err := envelope.UnmarshalData(&event); err != nil {
		return nil, fmt.Errorf("decode %s event %s: %w", envelope.EventType, envelope.EventID, err)
	}
	if event.ID == "" {
		event.ID = envelope.EventID
	}
	return &event, nil
}

// KafkaHandler returns a consumer handler that decodes review events and
// delivers them to sinks. Any sink failure fails the message so the consumer
// retries it, which means sinks that already succeeded may see it again.
func KafkaHandler(sinks []Sink, timeout time.Duration, logger *slog.Logger) kafka.Handler {
	return func(ctx context.Context, envelope *kafka.Event) error {
		event, err := FromEnvelope(envelope)
		if err != nil {
			return err
		}
		return Deliver(ctx, sinks, event, timeout, logger)
	}
}
