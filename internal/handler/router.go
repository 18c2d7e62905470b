// Package handler exposes the HTTP API: bookings and their payments,
// apartments, expenses, and the cached analytics reports.
package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/infra/observability"
	"github.com/boddenberg/hatacrm/internal/port"
	"github.com/boddenberg/hatacrm/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services groups the use cases the router dispatches to.
type Services struct {
	Bookings   *service.BookingService
	Apartments *service.ApartmentService
	Expenses   *service.ExpenseService
	Analytics  *service.AnalyticsService
}

// NewRouter creates the HTTP router with all routes and middleware.
// db may be nil, in which case /healthz reports only the API itself.
func NewRouter(svc Services, db port.Pinger, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(db, metrics))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(RequestMetrics(metrics))

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", listBookingsHandler(svc.Bookings, logger))
			r.Post("/", createBookingHandler(svc.Bookings, logger))
			r.Get("/{id}", getBookingHandler(svc.Bookings, logger))
			r.Put("/{id}", updateBookingHandler(svc.Bookings, logger))
			r.Patch("/{id}", patchBookingFlagsHandler(svc.Bookings, logger))
			r.Delete("/{id}", deleteBookingHandler(svc.Bookings, logger))

			r.Get("/{id}/payments", listPaymentsHandler(svc.Bookings, logger))
			r.Post("/{id}/payments", createPaymentHandler(svc.Bookings, logger))
			r.Patch("/{id}/payments/{paymentId}", updatePaymentHandler(svc.Bookings, logger))
			r.Delete("/{id}/payments/{paymentId}", deletePaymentHandler(svc.Bookings, logger))
		})

		r.Route("/apartments", func(r chi.Router) {
			r.Get("/", listApartmentsHandler(svc.Apartments, logger))
			r.Post("/", createApartmentHandler(svc.Apartments, logger))
			r.Patch("/{id}", updateApartmentHandler(svc.Apartments, logger))
			r.Put("/{id}", updateApartmentHandler(svc.Apartments, logger))
			r.Delete("/{id}", deleteApartmentHandler(svc.Apartments, logger))
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", listExpensesHandler(svc.Expenses, logger))
			r.Post("/", createExpenseHandler(svc.Expenses, logger))
			r.Patch("/{id}", updateExpenseHandler(svc.Expenses, logger))
			r.Put("/{id}", updateExpenseHandler(svc.Expenses, logger))
			r.Delete("/{id}", deleteExpenseHandler(svc.Expenses, logger))
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/monthly", monthlyHandler(svc.Analytics, logger))
			r.Get("/by-apartment", byApartmentHandler(svc.Analytics, logger))
			r.Get("/expenses-by-category", expensesByCategoryHandler(svc.Analytics, logger))
			r.Post("/refresh", refreshHandler(svc.Analytics, logger))
		})
	})

	return r
}

// ============================================================
// Health
// ============================================================

func healthzHandler(db port.Pinger, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "hatacrm-api", Status: "healthy", LastChecked: now},
		}

		if db != nil {
			start := time.Now()
			err := db.Ping(r.Context())
			check := domain.ServiceHealth{
				Name:        "postgres",
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				check.Status = "unhealthy"
				check.Error = err.Error()
			}
			services = append(services, check)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
		}

		status := http.StatusOK
		if overallStatus == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
			Refresh:  metrics.RefreshStats(),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
