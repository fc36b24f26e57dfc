package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/ReviewGo/pkg/tracing"
)

// DispatcherConfig sizes the dispatch queue and worker pool.
type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SinkTimeout time.Duration
}

// DefaultDispatcherConfig returns a 256-slot queue, 4 workers and a 10s
// per-sink timeout.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{QueueSize: 256, Workers: 4, SinkTimeout: 10 * time.Second}
}

// Dispatcher fans events out to sinks from a bounded queue. Publish never
// blocks; every sink is attempted independently with its own timeout.
type Dispatcher struct {
	cfg    DispatcherConfig
	sinks  []Sink
	logger *slog.Logger

	mu      sync.RWMutex
	queue   chan Event
	closed  bool
	started bool
	wg      sync.WaitGroup
	start   sync.Once
}

// NewDispatcher creates a dispatcher. Call Start to launch the workers.
func NewDispatcher(cfg DispatcherConfig, sinks []Sink, logger *slog.Logger) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = def.SinkTimeout
	}
	return &Dispatcher{
		cfg:    cfg,
		sinks:  sinks,
		logger: logger,
		queue:  make(chan Event, cfg.QueueSize),
	}
}

// Sinks returns the names of the configured sinks.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Start launches the worker pool. Subsequent calls, and calls after
// Shutdown, are no-ops.
func (d *Dispatcher) Start() {
	d.start.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.closed {
			return
		}
		d.started = true
		for i := 0; i < d.cfg.Workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
		d.logger.Info("notification dispatcher started",
			slog.Int("workers", d.cfg.Workers),
			slog.Int("queue_size", d.cfg.QueueSize),
			slog.Any("sinks", d.Sinks()),
		)
	})
}

// Publish enqueues event and reports whether it was accepted. A full or
// closed queue drops the event.
func (d *Dispatcher) Publish(ctx context.Context, event Event) bool {
	if len(d.sinks) == 0 {
		return true
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ctx, event, "dispatcher closed")
		return false
	}

	select {
	case d.queue <- event:
		queueDepth.Inc()
		return true
	default:
		d.drop(ctx, event, "queue full")
		return false
	}
}

func (d *Dispatcher) drop(ctx context.Context, event Event, reason string) {
	droppedTotal.WithLabelValues(string(event.Type)).Inc()
	d.logger.WarnContext(ctx, "notification dropped",
		slog.String("reason", reason),
		slog.String("event_id", event.ID),
		slog.String("type", string(event.Type)),
		slog.String("review_id", event.ReviewID),
	)
}

// Shutdown stops accepting events and waits for queued ones to be
// delivered, or for ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	started := d.started
	d.mu.Unlock()

	if !started {
		d.discardQueued(ctx)
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification dispatcher shutdown: %w", ctx.Err())
	}
}

// discardQueued empties the queue of a dispatcher whose workers never ran.
func (d *Dispatcher) discardQueued(ctx context.Context) {
	n := 0
	for event := range d.queue {
		queueDepth.Dec()
		d.drop(ctx, event, "dispatcher never started")
		n++
	}
	if n > 0 {
		d.logger.ErrorContext(ctx, "notification dispatcher shut down before start",
			slog.Int("undelivered", n),
		)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for event := range d.queue {
		queueDepth.Dec()
		_ = Deliver(context.Background(), d.sinks, &event, d.cfg.SinkTimeout, d.logger)
	}
}

// Deliver sends event to every sink, each under its own timeout. A failing
// or panicking sink does not stop the others. The joined sink errors are
// returned so callers that retry can see them.
func Deliver(ctx context.Context, sinks []Sink, event *Event, timeout time.Duration, logger *slog.Logger) error {
	var errs []error
	for _, sink := range sinks {
		if err := sendOne(ctx, sink, event, timeout); err != nil {
			deliveriesTotal.WithLabelValues(sink.Name(), string(event.Type), "failed").Inc()
			logger.ErrorContext(ctx, "notification delivery failed",
				slog.String("sink", sink.Name()),
				slog.String("event_id", event.ID),
				slog.String("type", string(event.Type)),
				slog.String("review_id", event.ReviewID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		deliveriesTotal.WithLabelValues(sink.Name(), string(event.Type), "delivered").Inc()
	}
	return errors.Join(errs...)
}

func sendOne(ctx context.Context, sink Sink, event *Event, timeout time.Duration) (err error) {
	ctx, span := tracing.Start(ctx, "github.com/utafrali/ReviewGo/internal/notify", "notify.send",
		attribute.String("notify.sink", sink.Name()),
		attribute.String("notify.event_type", string(event.Type)),
	)
	defer func() {
		_ = tracing.RecordError(span, err)
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return sink.Send(ctx, event)
}
