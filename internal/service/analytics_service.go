package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/infra/observability"
	"github.com/boddenberg/hatacrm/internal/infra/resilience"
	"github.com/boddenberg/hatacrm/internal/port"
	"github.com/boddenberg/hatacrm/internal/revenue"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var analyticsTracer = otel.Tracer("service/analytics")

// aggregateReadTimeout bounds a shared cache-table read. The read is detached
// from any single caller, so one disconnect does not fail the others.
const aggregateReadTimeout = 5 * time.Second

// AnalyticsService serves the financial reports from the aggregate cache
// and recomputes them on refresh. Readers never compute anything: a period
// that was never refreshed reads as zeros.
type AnalyticsService struct {
	cache     port.AggregateCache
	local     port.Cache[[]byte] // optional in-process copy of cache rows
	ledger    port.LedgerReader
	publisher port.RefreshPublisher // optional, enables async refresh
	bulkhead  *resilience.Bulkhead
	cb        *gobreaker.CircuitBreaker
	reads     singleflight.Group
	metrics   *observability.Metrics
	logger    *zap.Logger

	// generations guards the local copy against late writers: a read only
	// fills it if no refresh replaced the key while the read was in flight.
	genMu       sync.Mutex
	generations map[string]uint64
}

// NewAnalyticsService wires the analytics use cases. local and publisher may be nil.
func NewAnalyticsService(
	cache port.AggregateCache,
	local port.Cache[[]byte],
	ledger port.LedgerReader,
	publisher port.RefreshPublisher,
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		cache:     cache,
		local:     local,
		ledger:    ledger,
		publisher: publisher,
		bulkhead:  bulkhead,
		cb:        resilience.NewCircuitBreaker("analytics-cache"),
		metrics:   metrics,
		logger:    logger,

		generations: make(map[string]uint64),
	}
}

// ============================================================
// Reads
// ============================================================

func (s *AnalyticsService) Monthly(ctx context.Context, year int) (*domain.MonthlyReport, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.Monthly")
	defer span.End()

	if err := domain.ValidateYear(year); err != nil {
		return nil, err
	}
	return readReport(ctx, s, domain.CacheKey(domain.ReportMonthly, year, 0), func() *domain.MonthlyReport {
		return domain.EmptyMonthlyReport(year)
	})
}

func (s *AnalyticsService) ByApartment(ctx context.Context, year, month int) (*domain.ApartmentReport, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.ByApartment")
	defer span.End()

	if err := validateReportPeriod(year, month); err != nil {
		return nil, err
	}
	return readReport(ctx, s, domain.CacheKey(domain.ReportByApartment, year, month), domain.EmptyApartmentReport)
}

func (s *AnalyticsService) ExpensesByCategory(ctx context.Context, year, month int) ([]domain.CategoryAmount, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.ExpensesByCategory")
	defer span.End()

	if err := validateReportPeriod(year, month); err != nil {
		return nil, err
	}
	return readReport(ctx, s, domain.CacheKey(domain.ReportExpensesByCategory, year, month), func() []domain.CategoryAmount {
		return []domain.CategoryAmount{}
	})
}

func validateReportPeriod(year, month int) error {
	if err := domain.ValidateYear(year); err != nil {
		return err
	}
	return domain.ValidateMonth(month)
}

// readReport decodes the cached payload of key, or returns empty() when
// the key was never written.
func readReport[T any](ctx context.Context, s *AnalyticsService, key string, empty func() T) (T, error) {
	payload, ok, err := s.readAggregate(ctx, key)
	if err != nil || !ok {
		return empty(), err
	}
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		s.logger.Error("corrupt aggregate payload", zap.String("cache_key", key), zap.Error(err))
		var zero T
		return zero, &domain.ErrStorage{Op: "decode_aggregate", Err: err}
	}
	return out, nil
}

// readAggregate checks the in-process cache, then the aggregate table.
// Concurrent misses on one key share a single database read; a caller that
// gives up returns at once while the shared read runs to completion.
func (s *AnalyticsService) readAggregate(ctx context.Context, key string) ([]byte, bool, error) {
	if s.local != nil {
		if payload, ok := s.local.Get(key); ok {
			s.metrics.IncrCacheLookup(observability.CacheHit)
			return payload, true, nil
		}
	}

	readCtx := context.WithoutCancel(ctx)
	ch := s.reads.DoChan(key, func() (any, error) {
		gen := s.generation(key)

		ctx, cancel := context.WithTimeout(readCtx, aggregateReadTimeout)
		defer cancel()

		var (
			payload []byte
			found   bool
		)
		err := resilience.Guard(s.cb, func() error {
			var err error
			payload, found, err = s.cache.ReadAggregate(ctx, key)
			return err
		})
		if err != nil {
			return nil, err
		}
		if !found {
			return []byte(nil), nil
		}
		s.storeLocal(key, gen, payload)
		return payload, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, false, res.Err
	}

	payload := res.Val.([]byte)
	if payload == nil {
		s.metrics.IncrCacheLookup(observability.CacheAbsent)
		return nil, false, nil
	}
	s.metrics.IncrCacheLookup(observability.CacheMiss)
	return payload, true, nil
}

func (s *AnalyticsService) generation(key string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[key]
}

// storeLocal caches payload unless key was refreshed after gen was taken.
func (s *AnalyticsService) storeLocal(key string, gen uint64, payload []byte) {
	if s.local == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generations[key] == gen {
		s.local.Set(key, payload)
	}
}

// invalidate drops the local copy of key after an upsert. Reads already in
// flight may still return the old row to their callers but can no longer
// cache it, and later reads do not join them.
func (s *AnalyticsService) invalidate(key string) {
	s.reads.Forget(key)
	if s.local == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generations[key]++
	s.local.Delete(key)
}

// ============================================================
// Refresh
// ============================================================

// Refresh recomputes every aggregate of the year from one ledger snapshot
// and upserts them key by key. Each upsert replaces its key atomically, so a
// failure part way leaves earlier keys at their new value and later keys at
// their previous one. Concurrent refreshes of the same year both write full
// values; the last one wins.
func (s *AnalyticsService) Refresh(ctx context.Context, year int) (*domain.RefreshResult, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.Refresh")
	defer span.End()
	span.SetAttributes(attribute.Int("year", year))

	if err := domain.ValidateYear(year); err != nil {
		return nil, err
	}
	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.bulkhead.Release()

	start := time.Now()
	keys, err := s.refresh(ctx, year)
	elapsed := time.Since(start)
	s.metrics.RecordRefresh(elapsed, err)
	if err != nil {
		s.logger.Error("analytics refresh failed", zap.Int("year", year), zap.Error(err))
		return nil, err
	}

	s.logger.Info("analytics refreshed",
		zap.Int("year", year),
		zap.Int("keys", len(keys)),
		zap.Duration("duration", elapsed),
	)
	return &domain.RefreshResult{OK: true, Year: year, Keys: keys, DurationMs: elapsed.Milliseconds()}, nil
}

func (s *AnalyticsService) refresh(ctx context.Context, year int) ([]string, error) {
	ledger, err := s.ledger.LoadLedger(ctx, domain.YearPeriod(year))
	if err != nil {
		return nil, err
	}

	aggregates := revenue.BuildYear(year, ledger)
	keys := make([]string, 0, len(aggregates))
	for _, a := range aggregates {
		payload, err := json.Marshal(a.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", a.Key, err)
		}
		if err := s.cache.UpsertAggregate(ctx, a.Key, payload); err != nil {
			return nil, err
		}
		s.invalidate(a.Key)
		keys = append(keys, a.Key)
	}
	return keys, nil
}

// RefreshYears refreshes several years concurrently; the bulkhead bounds
// how many run at once.
func (s *AnalyticsService) RefreshYears(ctx context.Context, years []int) ([]*domain.RefreshResult, error) {
	results := make([]*domain.RefreshResult, len(years))
	g, gCtx := errgroup.WithContext(ctx)
	for i, year := range years {
		g.Go(func() error {
			r, err := s.Refresh(gCtx, year)
			if err != nil {
				return fmt.Errorf("refresh %d: %w", year, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RequestRefresh queues a refresh of the year for the background worker.
func (s *AnalyticsService) RequestRefresh(ctx context.Context, year int) (*domain.RefreshAccepted, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.RequestRefresh")
	defer span.End()

	if err := domain.ValidateYear(year); err != nil {
		return nil, err
	}
	if s.publisher == nil {
		return nil, &domain.ErrUnavailable{Feature: "async refresh"}
	}

	job := &domain.RefreshJob{ID: uuid.NewString(), Year: year, RequestedAt: time.Now().UTC()}
	if err := s.publisher.PublishRefresh(ctx, job); err != nil {
		return nil, err
	}
	return &domain.RefreshAccepted{JobID: job.ID, Year: year, Status: "queued"}, nil
}

// HandleRefreshJob runs a queued refresh. It is the worker's message handler.
func (s *AnalyticsService) HandleRefreshJob(ctx context.Context, job *domain.RefreshJob) error {
	s.logger.Info("running queued refresh",
		zap.String("job_id", job.ID),
		zap.Int("year", job.Year),
		zap.Duration("queued_for", time.Since(job.RequestedAt)),
	)
	_, err := s.Refresh(ctx, job.Year)
	return err
}
