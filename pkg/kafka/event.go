package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// EnvelopeVersion is the newest envelope layout this package understands.
const EnvelopeVersion = 1

// ErrInvalidEnvelope marks payloads that decode but cannot be processed.
// Retrying them is pointless.
var ErrInvalidEnvelope = errors.New("invalid event envelope")

// Event is the envelope for every message on a ReviewGo topic.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent wraps data in an envelope with a fresh id and the current time.
func NewEvent(eventType, aggregateID, aggregateType, source string, data any) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       EnvelopeVersion,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          payload,
	}, nil
}

// WithCorrelationID sets the correlation ID on the event.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// Encode serializes the envelope.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses an envelope and checks that it can be handled.
func DecodeEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := event.validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

func (e *Event) validate() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("%w: missing event_id", ErrInvalidEnvelope)
	case e.EventType == "":
		return fmt.Errorf("%w: event %s has no event_type", ErrInvalidEnvelope, e.EventID)
	case e.Version < 1 || e.Version > EnvelopeVersion:
		return fmt.Errorf("%w: event %s has unsupported version %d", ErrInvalidEnvelope, e.EventID, e.Version)
	case len(e.Data) == 0:
		return fmt.Errorf("%w: event %s has no data", ErrInvalidEnvelope, e.EventID)
	}
	return nil
}

// UnmarshalData deserializes the event data payload into target.
func (e *Event) UnmarshalData(target any) error {
	return json.Unmarshal(e.Data, target)
}

// message builds the Kafka record for topic. Records are keyed by aggregate
// id so all events of one review land on the same partition, in order.
func (e *Event) message(topic string) (kafka.Message, error) {
	value, err := e.Encode()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %s: %w", e.EventID, err)
	}

	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(e.EventID)},
		{Key: "event_type", Value: []byte(e.EventType)},
		{Key: "source", Value: []byte(e.Source)},
	}
	if e.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: "correlation_id", Value: []byte(e.CorrelationID)})
	}

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(e.AggregateID),
		Value:   value,
		Headers: headers,
		Time:    e.Timestamp,
	}, nil
}
