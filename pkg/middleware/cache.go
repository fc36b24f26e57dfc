package middleware

import (
	"fmt"
	"net/http"
	"time"
)

// CacheControl marks successful GET and HEAD responses as publicly
// cacheable for maxAge. Error responses and authenticated requests are left
// uncached.
func CacheControl(maxAge time.Duration) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if (r.Method != http.MethodGet && r.Method != http.MethodHead) || r.Header.Get("Authorization") != "" {
				next.ServeHTTP(w, r)
				return
			}

			rec := newStatusRecorder(w)
			rec.beforeHeader = func(status int) {
				if status >= 200 && status < 300 {
					w.Header().Set("Cache-Control", value)
				}
			}
			next.ServeHTTP(rec, r)
		})
	}
}
