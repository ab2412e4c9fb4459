package middleware

import (
	"context"
	"net/http"
	"time"
)

const timeoutBody = `{"detail":"Request timeout"}`

// Timeout bounds handler time. The ingestion store call ignores this deadline
// so an insert that has started is never abandoned.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			r = r.WithContext(ctx)

			timeoutHandler := http.TimeoutHandler(
				next,
				timeout,
				timeoutBody,
			)

			timeoutHandler.ServeHTTP(w, r)
		})
	}
}
