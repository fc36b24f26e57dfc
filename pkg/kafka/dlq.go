package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQSuffix is appended to a topic name to form its dead-letter topic.
const DLQSuffix = ".dlq"

// Headers added to dead-lettered messages. The original headers are kept.
const (
	HeaderDLQTopic     = "dlq.original_topic"
	HeaderDLQPartition = "dlq.original_partition"
	HeaderDLQOffset    = "dlq.original_offset"
	HeaderDLQGroup     = "dlq.consumer_group"
	HeaderDLQError     = "dlq.error"
)

// DLQTopic returns the dead-letter topic for topic.
func DLQTopic(topic string) string {
	return topic + DLQSuffix
}

// DLQProducer parks messages that exhausted their retries.
type DLQProducer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewDLQProducer creates a DLQ producer. Messages are written one at a
// time since each one is already a failure.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	w := newWriter(ProducerConfig{Brokers: brokers, BatchSize: 1, BatchTimeout: 100 * time.Millisecond})
	return &DLQProducer{writer: w, logger: logger}
}

// Publish copies msg to its dead-letter topic with its source position,
// the consumer group and the last handler error attached as headers.
func (d *DLQProducer) Publish(ctx context.Context, msg kafka.Message, lastErr error, group string) error {
	topic := DLQTopic(msg.Topic)

	headers := append([]kafka.Header(nil), msg.Headers...)
	add := func(k, v string) { headers = append(headers, kafka.Header{Key: k, Value: []byte(v)}) }
	add(HeaderDLQTopic, msg.Topic)
	add(HeaderDLQPartition, strconv.Itoa(msg.Partition))
	add(HeaderDLQOffset, strconv.FormatInt(msg.Offset, 10))
	add(HeaderDLQGroup, group)
	if lastErr != nil {
		add(HeaderDLQError, lastErr.Error())
	}

	dead := kafka.Message{Topic: topic, Key: msg.Key, Value: msg.Value, Headers: headers}
	if err := d.writer.WriteMessages(ctx, dead); err != nil {
		return fmt.Errorf("dead-letter to %s: %w", topic, err)
	}

	d.logger.WarnContext(ctx, "message dead-lettered",
		slog.String("dlq_topic", topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
		slog.String("consumer_group", group),
	)
	return nil
}

// Close closes the underlying writer.
func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
