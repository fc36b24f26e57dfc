package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// messageReader is the subset of *kafka.Reader used by Consumer.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type dlqPublisher interface {
	Publish(ctx context.Context, msg kafka.Message, lastErr error, consumerGroup string) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers      []string
	GroupID      string
	Topic        string
	MinBytes     int
	MaxBytes     int
	MaxRetries   int
	RetryBackoff time.Duration
	// EnableDLQ routes messages that exhaust their retries to Topic + ".dlq"
	// instead of committing and dropping them.
	EnableDLQ bool
}

// Consumer reads events from one topic within a consumer group. Offsets are
// committed only after the handler succeeds, the message is dead-lettered,
// or the payload cannot be decoded, giving at-least-once delivery.
type Consumer struct {
	reader     messageReader
	dlq        dlqPublisher
	handler    Handler
	topic      string
	group      string
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	closeOnce  sync.Once
}

// NewConsumer creates a consumer for cfg.Topic in cfg.GroupID.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})

	var dlq dlqPublisher
	if cfg.EnableDLQ {
		dlq = NewDLQProducer(cfg.Brokers, logger)
	}
	return newConsumer(r, dlq, cfg, handler, logger)
}

func newConsumer(r messageReader, dlq dlqPublisher, cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	return &Consumer{
		reader:     r,
		dlq:        dlq,
		handler:    handler,
		topic:      cfg.Topic,
		group:      cfg.GroupID,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		logger:     logger,
	}
}

// Start consumes messages until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", slog.String("topic", c.topic), slog.String("group", c.group))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("consumer stopping", slog.String("topic", c.topic))
				return nil
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}

		if !c.process(ctx, msg) {
			return nil
		}
	}
}

// process handles one message and reports whether consumption should continue.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	start := time.Now()
	defer func() {
		consumerProcessingDuration.WithLabelValues(c.topic, c.group).Observe(time.Since(start).Seconds())
	}()

	event, err := DecodeEvent(msg.Value)
	if err != nil {
		c.logger.Error("rejecting undecodable message",
			slog.String("error", err.Error()),
			slog.Int64("offset", msg.Offset),
		)
		c.fail(ctx, msg, err)
		return true
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			break
		}
		c.logger.Warn("handler failed",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
			slog.String("error", lastErr.Error()),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", c.maxRetries),
		)
		if attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			// Leave the offset uncommitted so the message is redelivered.
			return false
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}

	if lastErr != nil {
		c.fail(ctx, msg, lastErr)
		return true
	}

	consumerMessagesProcessed.WithLabelValues(c.topic, c.group).Inc()
	c.commit(ctx, msg)
	return true
}

// fail dead-letters msg when a DLQ is configured, then commits it.
func (c *Consumer) fail(ctx context.Context, msg kafka.Message, lastErr error) {
	consumerMessagesFailed.WithLabelValues(c.topic, c.group).Inc()

	if c.dlq != nil {
		if err := c.dlq.Publish(ctx, msg, lastErr, c.group); err != nil {
			// Without the DLQ copy the message must stay uncommitted.
			c.logger.Error("dead-letter publish failed, offset not committed",
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
			return
		}
		consumerDLQPublished.WithLabelValues(c.topic, c.group).Inc()
	} else {
		c.logger.Error("dropping message after retries",
			slog.Int64("offset", msg.Offset),
			slog.String("error", lastErr.Error()),
		)
	}
	c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit message",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// Close closes the reader and the DLQ producer. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
		if c.dlq != nil {
			err = errors.Join(err, c.dlq.Close())
		}
	})
	return err
}
