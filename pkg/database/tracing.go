package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/utafrali/ReviewGo/pkg/database"

	// maxLoggedStatement bounds the SQL text attached to slow query logs.
	maxLoggedStatement = 512
)

var queryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "reviewgo_db_query_duration_seconds",
		Help:    "Duration of database statements by operation and outcome.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	},
	[]string{"operation", "outcome"},
)

type slowQueryLog struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowQueries atomic.Pointer[slowQueryLog]

// SetSlowQueryLogging logs statements that take at least threshold as
// warnings. A zero threshold or nil logger turns it off.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	if threshold <= 0 || logger == nil {
		slowQueries.Store(nil)
		return
	}
	slowQueries.Store(&slowQueryLog{threshold: threshold, logger: logger})
}

// TraceQuery starts a client span for one statement and returns the function
// that ends it. The end function records the duration histogram and, when
// enabled, the slow query warning:
//
//	ctx, end := database.TraceQuery(ctx, "select", "SELECT ... FROM reviews WHERE id = $1")
//	defer func() { end(err) }()
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		elapsed := time.Since(start)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		queryDuration.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())

		slow := slowQueries.Load()
		if slow == nil || elapsed < slow.threshold {
			return
		}
		attrs := []any{
			slog.String("operation", operation),
			slog.String("statement", truncate(statement, maxLoggedStatement)),
			slog.Duration("duration", elapsed),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		slow.logger.WarnContext(ctx, "slow query detected", attrs...)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
