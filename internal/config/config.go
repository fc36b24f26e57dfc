package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/notify"
	pkgconfig "github.com/utafrali/ReviewGo/pkg/config"
	"github.com/utafrali/ReviewGo/pkg/database"
	"github.com/utafrali/ReviewGo/pkg/tracing"
)

// Search engine backends.
const (
	SearchMemory        = "memory"
	SearchElasticsearch = "elasticsearch"
)

// Config holds all configuration for the review server and the notifier.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort            int           `env:"HTTP_PORT" envDefault:"8080"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"reviewgo"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"reviewgo_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"reviewgo"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns        int32         `env:"POSTGRES_MAX_CONNS" envDefault:"25"`
	DBMinConns        int32         `env:"POSTGRES_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime time.Duration `env:"POSTGRES_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime time.Duration `env:"POSTGRES_MAX_CONN_IDLE_TIME" envDefault:"30m"`

	// Slow query logging
	SlowQueryThreshold time.Duration `env:"POSTGRES_SLOW_QUERY" envDefault:"500ms"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"reviewgo-notifier"`

	// Search
	SearchEngine       string   `env:"SEARCH_ENGINE" envDefault:"memory"`
	ElasticsearchURLs  []string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200" envSeparator:","`
	ElasticsearchIndex string   `env:"ELASTICSEARCH_INDEX" envDefault:"reviews"`

	// Access tokens issued by the identity provider
	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer string        `env:"JWT_ISSUER"`
	JWTLeeway time.Duration `env:"JWT_LEEWAY" envDefault:"30s"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Review rules
	ReviewMinText         int           `env:"REVIEW_MIN_TEXT" envDefault:"10"`
	ReviewMaxText         int           `env:"REVIEW_MAX_TEXT" envDefault:"1000"`
	ReviewMaxPerIP        int           `env:"REVIEW_MAX_PER_IP" envDefault:"5"`
	ReviewIPWindow        time.Duration `env:"REVIEW_IP_WINDOW" envDefault:"24h"`
	ReviewReportThreshold int           `env:"REVIEW_REPORT_THRESHOLD" envDefault:"3"`
	ReviewListCacheTTL    time.Duration `env:"REVIEW_LIST_CACHE_TTL" envDefault:"5m"`
	ReviewAnalyticsTTL    time.Duration `env:"REVIEW_ANALYTICS_CACHE_TTL" envDefault:"1h"`

	// IP retention
	IPRetention time.Duration `env:"IP_RETENTION" envDefault:"720h"`
	IPHashKey   string        `env:"IP_HASH_KEY" envDefault:"dev-ip-hash-key"`

	// Notifications
	NotifyQueueSize   int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
	NotifyWorkers     int           `env:"NOTIFY_WORKERS" envDefault:"4"`
	NotifySinkTimeout time.Duration `env:"NOTIFY_SINK_TIMEOUT" envDefault:"10s"`
	NotifyEmail       bool          `env:"NOTIFY_EMAIL_ENABLED" envDefault:"false"`
	NotifySlack       bool          `env:"NOTIFY_SLACK_ENABLED" envDefault:"false"`
	NotifyWebhook     bool          `env:"NOTIFY_WEBHOOK_ENABLED" envDefault:"false"`
	NotifyKafka       bool          `env:"NOTIFY_KAFKA_ENABLED" envDefault:"false"`
	SlackWebhookURL   string        `env:"NOTIFY_SLACK_WEBHOOK_URL"`
	WebhookURL        string        `env:"NOTIFY_WEBHOOK_URL"`
	WebhookSecret     string        `env:"NOTIFY_WEBHOOK_SECRET"`
	AdminEmail        string        `env:"NOTIFY_ADMIN_EMAIL"`
	NotifyDedupTTL    time.Duration `env:"NOTIFY_DEDUP_TTL" envDefault:"168h"`

	// SMTP
	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"noreply@reviewgo.local"`

	// Background jobs (robfig/cron spec strings)
	CronExpireAds string `env:"CRON_EXPIRE_ADS" envDefault:"@every 15m"`
	CronScrubIPs  string `env:"CRON_SCRUB_IPS" envDefault:"@hourly"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	// Reverse proxies whose X-Forwarded-For is trusted. Empty means the TCP
	// peer is the client.
	TrustedProxyCIDRs []string `env:"TRUSTED_PROXY_CIDRS" envSeparator:","`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Per-IP request throttle on review submission
	CreateRatePerSecond float64 `env:"CREATE_RATE_PER_SECOND" envDefault:"0.2"`
	CreateRateBurst     int     `env:"CREATE_RATE_BURST" envDefault:"3"`
}

// Load reads configuration from the environment after applying any dotenv
// files given.
func Load(dotenvFiles ...string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, dotenvFiles...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.SearchEngine != SearchMemory && c.SearchEngine != SearchElasticsearch {
		return fmt.Errorf("SEARCH_ENGINE must be %q or %q, got %q", SearchMemory, SearchElasticsearch, c.SearchEngine)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Environment == "production" && strings.HasPrefix(c.JWTSecret, "dev-") {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.ReviewMinText < 1 || c.ReviewMaxText < c.ReviewMinText {
		return fmt.Errorf("REVIEW_MIN_TEXT and REVIEW_MAX_TEXT must satisfy 1 <= min <= max, got %d and %d", c.ReviewMinText, c.ReviewMaxText)
	}
	if c.ReviewMaxPerIP < 1 {
		return fmt.Errorf("REVIEW_MAX_PER_IP must be positive, got %d", c.ReviewMaxPerIP)
	}
	if c.ReviewIPWindow <= 0 {
		return fmt.Errorf("REVIEW_IP_WINDOW must be positive, got %s", c.ReviewIPWindow)
	}
	if c.ReviewReportThreshold < 1 {
		return fmt.Errorf("REVIEW_REPORT_THRESHOLD must be positive, got %d", c.ReviewReportThreshold)
	}
	if len(c.IPHashKey) == 0 || len(c.IPHashKey) > 64 {
		return fmt.Errorf("IP_HASH_KEY must be 1 to 64 bytes")
	}
	if c.NotifyQueueSize < 1 || c.NotifyWorkers < 1 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE and NOTIFY_WORKERS must be positive")
	}
	if c.NotifySlack && c.SlackWebhookURL == "" {
		return fmt.Errorf("NOTIFY_SLACK_WEBHOOK_URL is required when Slack notifications are enabled")
	}
	if c.NotifyWebhook && c.WebhookURL == "" {
		return fmt.Errorf("NOTIFY_WEBHOOK_URL is required when webhook notifications are enabled")
	}
	if c.NotifyKafka && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when Kafka notifications are enabled")
	}
	if c.CreateRatePerSecond <= 0 || c.CreateRateBurst < 1 {
		return fmt.Errorf("CREATE_RATE_PER_SECOND and CREATE_RATE_BURST must be positive")
	}
	return nil
}

// Postgres returns the connection pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: c.DBMaxConnLifetime,
		MaxConnIdleTime: c.DBMaxConnIdleTime,
	}
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// Tracing returns the tracer configuration for the named service.
func (c *Config) Tracing(serviceName string) tracing.Config {
	tc := tracing.DefaultConfig(serviceName)
	tc.Environment = c.Environment
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	tc.Enabled = c.OTELEnabled
	return tc
}

// ReviewPolicy returns the review submission and moderation rules.
func (c *Config) ReviewPolicy() domain.ReviewPolicy {
	return domain.ReviewPolicy{
		MinTextLength:   c.ReviewMinText,
		MaxTextLength:   c.ReviewMaxText,
		MaxPerIP:        c.ReviewMaxPerIP,
		IPWindow:        c.ReviewIPWindow,
		ReportThreshold: c.ReviewReportThreshold,
	}
}

// Dispatcher returns the notification queue configuration.
func (c *Config) Dispatcher() notify.DispatcherConfig {
	return notify.DispatcherConfig{
		QueueSize:   c.NotifyQueueSize,
		Workers:     c.NotifyWorkers,
		SinkTimeout: c.NotifySinkTimeout,
	}
}

// Email returns the SMTP sink configuration.
func (c *Config) Email() notify.EmailConfig {
	return notify.EmailConfig{
		Host:       c.SMTPHost,
		Port:       c.SMTPPort,
		Username:   c.SMTPUsername,
		Password:   c.SMTPPassword,
		From:       c.SMTPFrom,
		AdminEmail: c.AdminEmail,
	}
}
