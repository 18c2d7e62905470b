package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/hatacrm/internal/infra/observability"

	"github.com/go-chi/chi/v5"
)

// RequestMetrics records the duration of every API request under its route
// pattern, so /api/bookings/7 and /api/bookings/8 share one series.
func RequestMetrics(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			pattern := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				pattern = rctx.RoutePattern()
			}
			metrics.RecordRequestDuration(r.Method+" "+pattern, time.Since(start))
		})
	}
}
