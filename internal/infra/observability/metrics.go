package observability

import (
	"time"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Cache lookup results.
const (
	CacheHit    = "hit"    // served from the in-process cache
	CacheMiss   = "miss"   // read from the aggregate table
	CacheAbsent = "absent" // never refreshed, served as zeros
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	bookingConflicts prometheus.Counter
	refreshDuration  prometheus.Histogram
	refreshTotal     *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	storeErrors      *prometheus.CounterVec
	publishTotal     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hatacrm_request_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		bookingConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hatacrm_booking_conflicts_total",
				Help: "Booking writes rejected because the dates overlap an active booking.",
			},
		),
		refreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hatacrm_refresh_duration_seconds",
				Help:    "Duration of a full analytics refresh of one year.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		refreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hatacrm_refresh_total",
				Help: "Analytics refreshes by outcome.",
			},
			[]string{"status"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hatacrm_cache_lookups_total",
				Help: "Analytics cache lookups by result.",
			},
			[]string{"result"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hatacrm_store_errors_total",
				Help: "Unexpected storage errors by operation.",
			},
			[]string{"op"},
		),
		publishTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hatacrm_refresh_jobs_published_total",
				Help: "Refresh jobs sent to the broker by outcome.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) IncrBookingConflict() {
	m.bookingConflicts.Inc()
}

// RecordRefresh records one refresh and its outcome.
func (m *Metrics) RecordRefresh(d time.Duration, err error) {
	m.refreshDuration.Observe(d.Seconds())
	if err != nil {
		m.refreshTotal.WithLabelValues("error").Inc()
		return
	}
	m.refreshTotal.WithLabelValues("success").Inc()
}

func (m *Metrics) IncrCacheLookup(result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrStoreError(op string) {
	m.storeErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) IncrPublish(status string) {
	m.publishTotal.WithLabelValues(status).Inc()
}

// RefreshStats returns the refresh counters for GET /healthz.
func (m *Metrics) RefreshStats() *domain.RefreshStats {
	return &domain.RefreshStats{
		Succeeded:        int64(getCounterValue(m.refreshTotal.WithLabelValues("success"))),
		Failed:           int64(getCounterValue(m.refreshTotal.WithLabelValues("error"))),
		BookingConflicts: int64(getCounterValue(m.bookingConflicts)),
	}
}

// CacheLookups returns the cumulative count for one lookup result.
func (m *Metrics) CacheLookups(result string) float64 {
	return getCounterValue(m.cacheLookups.WithLabelValues(result))
}

func (m *Metrics) StoreErrors(op string) float64 {
	return getCounterValue(m.storeErrors.WithLabelValues(op))
}

// getCounterValue extracts the current float64 value of a counter.
func getCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
