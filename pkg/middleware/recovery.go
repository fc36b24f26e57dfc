package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recovery turns a handler panic into a 500 envelope and an error log that
// carries the stack and the request's correlation id. http.ErrAbortHandler
// is re-raised so net/http can abort the connection as intended.
func Recovery(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				// Recovery wraps RequestLogging, so the correlation id is only
				// visible on the response headers.
				base.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("correlation_id", w.Header().Get(CorrelationHeader)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
