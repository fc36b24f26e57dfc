package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/ReviewGo/internal/config"
	"github.com/utafrali/ReviewGo/internal/notify"
	"github.com/utafrali/ReviewGo/internal/repository/postgres"
	"github.com/utafrali/ReviewGo/pkg/database"
	"github.com/utafrali/ReviewGo/pkg/health"
	pkgkafka "github.com/utafrali/ReviewGo/pkg/kafka"
	"github.com/utafrali/ReviewGo/pkg/middleware"
	"github.com/utafrali/ReviewGo/pkg/tracing"
)

// NotifierName identifies the notification consumer process.
const NotifierName = "review-notifier"

const (
	deliveryRetries = 5
	deliveryBackoff = 2 * time.Second
)

// Notifier consumes review events from Kafka and delivers them to the
// configured sinks. Delivered event ids are remembered in Redis so a
// redelivered message is not sent twice.
type Notifier struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	consumer       *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewNotifier creates the notifier, initializing all dependencies.
func NewNotifier(cfg *config.Config, logger *slog.Logger) (*Notifier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(NotifierName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// The email sink resolves recipients from the users table.
	pgCfg := cfg.Postgres()
	pgCfg.ApplicationName = NotifierName
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	sinks := directSinks(cfg, postgres.NewStore(pool).Repositories().Users, logger)
	if len(sinks) == 0 {
		_ = redisClient.Close()
		pool.Close()
		return nil, errors.New("no notification sinks enabled")
	}
	logger.Info("notification sinks configured", slog.Any("sinks", sinkNames(sinks)))

	dedup := pkgkafka.NewRedisIdempotencyStore(redisClient, "reviewgo:notify:delivered:", cfg.NotifyDedupTTL)
	consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:      cfg.KafkaBrokers,
		GroupID:      cfg.KafkaConsumerGroup,
		Topic:        notify.EventsTopic,
		MinBytes:     1,
		MaxBytes:     10e6,
		MaxRetries:   deliveryRetries,
		RetryBackoff: deliveryBackoff,
		EnableDLQ:    true,
	}, pkgkafka.IdempotentHandler(dedup, notify.EventsTopic,
		notify.KafkaHandler(sinks, cfg.NotifySinkTimeout, logger), logger), logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterCritical("kafka", func(ctx context.Context) error {
		return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
	})

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Notifier{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		consumer:       consumer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the consumer and the health server, then blocks until the
// context is canceled.
func (n *Notifier) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		n.logger.Info("starting event consumer",
			slog.String("topic", notify.EventsTopic),
			slog.String("group", n.cfg.KafkaConsumerGroup),
		)
		if err := n.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("kafka consumer: %w", err)
		}
	}()

	go func() {
		n.logger.Info("starting HTTP server", slog.String("addr", n.httpServer.Addr))
		if err := n.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		n.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = n.Shutdown()
		return err
	}

	return n.Shutdown()
}

// Shutdown gracefully stops all components.
func (n *Notifier) Shutdown() error {
	n.logger.Info("shutting down notifier...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), n.cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := n.httpServer.Shutdown(shutdownCtx); err != nil {
		n.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := n.consumer.Close(); err != nil {
		n.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
	}

	if err := n.redis.Close(); err != nil {
		n.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	n.pool.Close()

	if err := n.tracerShutdown(shutdownCtx); err != nil {
		n.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	n.logger.Info("notifier shutdown complete")
	return nil
}
