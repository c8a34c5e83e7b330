package middleware

import (
	"net/http"

	"golang.org/x/sync/semaphore"

	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/metrics"
)

// ConcurrencyLimit admits at most n requests at a time and answers 503
// immediately when saturated. A non-positive n disables the limit. m may
// be nil.
func ConcurrencyLimit(n int, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if n <= 0 {
			return next
		}
		sem := semaphore.NewWeighted(int64(n))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sem.TryAcquire(1) {
				if m != nil {
					m.RequestsRejected.Inc()
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"too many concurrent requests"}` + "\n"))
				return
			}
			defer sem.Release(1)
			next.ServeHTTP(w, r)
		})
	}
}
