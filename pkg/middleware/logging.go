package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/ReviewGo/pkg/logger"
)

// CorrelationHeader carries the request correlation id in both directions.
const CorrelationHeader = "X-Correlation-ID"

// RequestLogging assigns a correlation id, stores a request-scoped logger in
// the context and logs one line per request once the handler returns.
//
// Mount after Tracing so the scoped logger picks up trace_id and span_id.
func RequestLogging(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			correlationID := r.Header.Get(CorrelationHeader)
			if correlationID == "" {
				correlationID = uuid.NewString()
			}
			w.Header().Set(CorrelationHeader, correlationID)

			ctx := logger.WithCorrelationID(r.Context(), correlationID)
			scoped := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, scoped)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rec.status == http.StatusTooManyRequests:
				level = slog.LevelWarn
			}
			scoped.Log(ctx, level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routePattern(r)),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", rec.bytes),
				slog.String("remote_ip", ClientIP(r)),
				slog.String("user_agent", r.UserAgent()),
			)
		})
	}
}

// UserLogger enriches the request-scoped logger with the authenticated user
// id. Mount inside routes that run Auth.
func UserLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := UserIDFromContext(ctx); id != "" {
			ctx = logger.WithUserID(ctx, id)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", id)))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
