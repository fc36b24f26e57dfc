package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// TopicPrefix namespaces every topic the platform owns.
const TopicPrefix = "reviewgo"

// Topic joins the prefix, domain and action: Topic("review", "events")
// is "reviewgo.review.events".
func Topic(domain, action string) string {
	return strings.Join([]string{TopicPrefix, domain, action}, ".")
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerConfig holds Kafka producer configuration.
type ProducerConfig struct {
	Brokers      []string
	BatchSize    int
	BatchTimeout time.Duration
	Async        bool
}

// DefaultProducerConfig returns synchronous, small-batch defaults.
func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:      brokers,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// newWriter builds a hash-balanced writer that waits for all in-sync
// replicas, so equal keys keep their order on one partition.
func newWriter(cfg ProducerConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		Async:                  cfg.Async,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Producer publishes envelopes keyed by aggregate id.
type Producer struct {
	writer  messageWriter
	brokers []string
	logger  *slog.Logger
}

// NewProducer creates a producer for cfg.Brokers.
func NewProducer(cfg ProducerConfig, logger *slog.Logger) *Producer {
	return &Producer{writer: newWriter(cfg), brokers: cfg.Brokers, logger: logger}
}

// Publish writes event to topic and records publish metrics.
func (p *Producer) Publish(ctx context.Context, topic string, event *Event) error {
	msg, err := event.message(topic)
	if err != nil {
		return err
	}

	log := p.logger.With(
		slog.String("topic", topic),
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
	)

	start := time.Now()
	err = p.writer.WriteMessages(ctx, msg)
	producerPublishDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	if err != nil {
		producerPublishErrors.WithLabelValues(topic).Inc()
		log.ErrorContext(ctx, "publish failed", slog.String("error", err.Error()))
		return fmt.Errorf("publish %s to %s: %w", event.EventType, topic, err)
	}

	producerMessagesPublished.WithLabelValues(topic).Inc()
	log.DebugContext(ctx, "event published")
	return nil
}

// Ping checks broker connectivity.
func (p *Producer) Ping(ctx context.Context) error {
	return PingBrokers(ctx, p.brokers)
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// PingBrokers succeeds as soon as one broker answers a metadata request.
func PingBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}

	errs := make([]error, 0, len(brokers))
	for _, addr := range brokers {
		err := pingBroker(ctx, addr)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", addr, err))
	}
	return fmt.Errorf("kafka: no broker reachable: %w", errors.Join(errs...))
}

func pingBroker(ctx context.Context, addr string) error {
	conn, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Brokers()
	return err
}
