package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/ReviewGo/internal/auth"
	"github.com/utafrali/ReviewGo/internal/cache"
	"github.com/utafrali/ReviewGo/internal/config"
	handler "github.com/utafrali/ReviewGo/internal/handler/http"
	"github.com/utafrali/ReviewGo/internal/notify"
	"github.com/utafrali/ReviewGo/internal/repository/postgres"
	"github.com/utafrali/ReviewGo/internal/search"
	"github.com/utafrali/ReviewGo/internal/search/elasticsearch"
	"github.com/utafrali/ReviewGo/internal/search/memory"
	"github.com/utafrali/ReviewGo/internal/service"
	"github.com/utafrali/ReviewGo/pkg/database"
	"github.com/utafrali/ReviewGo/pkg/health"
	pkgkafka "github.com/utafrali/ReviewGo/pkg/kafka"
	"github.com/utafrali/ReviewGo/pkg/middleware"
	"github.com/utafrali/ReviewGo/pkg/tracing"
)

// ServerName identifies the API process in logs, traces and metrics.
const ServerName = "review-server"

// App wires together all dependencies and runs the review API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dispatcher     *notify.Dispatcher
	limiter        *middleware.RateLimiter
	scheduler      *Scheduler
	jobs           []Job
	reviews        *service.ReviewService
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(ServerName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool and schema.
	database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	pgCfg := cfg.Postgres()
	pgCfg.ApplicationName = ServerName
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RunMigrations(ctx, pool, postgres.Migrations(), logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, ServerName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Initialize Redis client.
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))

	// Search engine.
	engine, esEngine, err := newSearchEngine(ctx, cfg, logger)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, err
	}

	hasher, err := service.NewAddressHasher(cfg.IPHashKey)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("address hasher: %w", err)
	}

	store := postgres.NewStore(pool)
	repos := store.Repositories()
	reviewCache := cache.NewReviewCache(redisClient, cfg.ReviewListCacheTTL, cfg.ReviewAnalyticsTTL)

	// Notifications leave through Kafka when enabled and the notifier
	// process delivers them. Otherwise this process delivers directly.
	var (
		producer *pkgkafka.Producer
		sinks    []notify.Sink
	)
	if cfg.NotifyKafka {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		sinks = []notify.Sink{notify.NewKafkaSink(producer)}
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		sinks = directSinks(cfg, repos.Users, logger)
	}
	dispatcher := notify.NewDispatcher(cfg.Dispatcher(), sinks, logger)
	logger.Info("notification dispatcher configured", slog.Any("sinks", dispatcher.Sinks()))

	// Build the dependency graph.
	deps := service.ReviewDeps{
		Repos:    repos,
		Tx:       store,
		Cache:    reviewCache,
		Search:   engine,
		Notifier: dispatcher,
		Hasher:   hasher,
		Policy:   cfg.ReviewPolicy(),
		Logger:   logger,
	}
	reviewService := service.NewReviewService(deps)
	adService := service.NewAdService(repos.Ads, repos.Companies, logger)
	retentionService := service.NewRetentionService(repos.Reviews, cfg.IPRetention, logger)
	services := handler.Services{
		Reviews:    reviewService,
		Moderation: service.NewModerationService(deps),
		Companies:  service.NewCompanyService(repos, store, reviewCache, logger),
		Ads:        adService,
		Analytics:  service.NewAnalyticsService(repos.Reviews, repos.Companies, store.Analytics(), reviewCache, logger),
		Export:     service.NewExportService(repos.Reviews, repos.Companies, logger),
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}
	if esEngine != nil {
		healthHandler.RegisterNonCritical("elasticsearch", esEngine.Ping)
	}

	// HTTP router.
	limiter := middleware.NewRateLimiter(cfg.CreateRatePerSecond, cfg.CreateRateBurst, 10*time.Minute, logger)
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	router := handler.NewRouter(services, handler.RouterConfig{
		ServiceName:    ServerName,
		Validate:       auth.NewJWTValidator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTLeeway).TokenValidator(),
		CreateLimiter:  limiter,
		CORS:           corsCfg,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		TrustedProxies: cfg.TrustedProxyCIDRs,
	}, healthHandler, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		redis:      redisClient,
		producer:   producer,
		dispatcher: dispatcher,
		limiter:    limiter,
		scheduler:  NewScheduler(logger),
		jobs: []Job{
			{Name: "expire-ads", Spec: cfg.CronExpireAds, Run: adService.ExpireAds},
			{Name: "scrub-ip-addresses", Spec: cfg.CronScrubIPs, Run: func(ctx context.Context) (int64, error) {
				return retentionService.ScrubIPAddresses(ctx, time.Now().UTC())
			}},
		},
		reviews:        reviewService,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// newSearchEngine returns the configured engine. The Elasticsearch engine is
// also returned on its own so its health can be checked.
func newSearchEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (search.Engine, *elasticsearch.Engine, error) {
	if cfg.SearchEngine != config.SearchElasticsearch {
		logger.Info("using in-memory search engine")
		return memory.New(), nil, nil
	}

	es, err := elasticsearch.New(cfg.ElasticsearchURLs, cfg.ElasticsearchIndex, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	if err := es.EnsureIndex(ctx); err != nil {
		return nil, nil, fmt.Errorf("ensure search index: %w", err)
	}
	logger.Info("connected to Elasticsearch",
		slog.Any("addresses", cfg.ElasticsearchURLs),
		slog.String("index", cfg.ElasticsearchIndex),
	)
	return es, es, nil
}

// Run starts the HTTP server, the notification workers and the scheduled
// jobs, then blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.dispatcher.Start()
	go a.limiter.Run(ctx)

	for _, job := range a.jobs {
		if err := a.scheduler.Add(ctx, job); err != nil {
			_ = a.Shutdown()
			return err
		}
	}
	a.scheduler.Start()

	// The search index is derived data; rebuild it from approved reviews.
	go func() {
		n, err := a.reviews.Reindex(ctx)
		if err != nil {
			a.logger.Error("search reindex failed", slog.String("error", err.Error()))
			return
		}
		a.logger.Info("search index rebuilt", slog.Int("documents", n))
	}()

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components. Queued notifications are
// drained before the Kafka producer closes.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Error("scheduler stop error", slog.String("error", err.Error()))
	}

	if err := a.dispatcher.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("notification drain error", slog.String("error", err.Error()))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.pool.Close()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
