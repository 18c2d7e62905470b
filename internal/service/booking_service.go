// Package service provides the business logic layer (use cases):
// bookings and their payments, apartments, expenses and analytics.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/infra/observability"
	"github.com/boddenberg/hatacrm/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var bookingTracer = otel.Tracer("service/booking")

// Bounds used when the calendar asks for bookings without a window.
var (
	defaultWindowStart = domain.NewDate(2000, time.January, 1)
	defaultWindowEnd   = domain.NewDate(2100, time.January, 1)
)

// BookingService handles bookings and their itemized payments. Every write
// that can move a stay runs lock, overlap check and write in one transaction.
type BookingService struct {
	store    port.BookingStore
	payments port.PaymentStore
	overlap  *OverlapValidator
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func NewBookingService(store port.BookingStore, payments port.PaymentStore, metrics *observability.Metrics, logger *zap.Logger) *BookingService {
	return &BookingService{
		store:    store,
		payments: payments,
		overlap:  NewOverlapValidator(logger),
		metrics:  metrics,
		logger:   logger,
	}
}

// ============================================================
// Bookings
// ============================================================

// ListBookings returns bookings visible in [start, end). Zero bounds are open.
func (s *BookingService) ListBookings(ctx context.Context, start, end domain.Date) ([]domain.BookingView, error) {
	ctx, span := bookingTracer.Start(ctx, "BookingService.ListBookings")
	defer span.End()

	if start.IsZero() {
		start = defaultWindowStart
	}
	if end.IsZero() {
		end = defaultWindowEnd
	}
	window := domain.Period{Start: start, End: end}
	if !window.Valid() {
		return nil, &domain.ErrValidation{Field: "end", Message: "must be after start"}
	}
	return s.store.ListBookings(ctx, window)
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	ctx, span := bookingTracer.Start(ctx, "BookingService.GetBooking")
	defer span.End()
	span.SetAttributes(attribute.Int64("booking.id", id))

	return s.store.GetBooking(ctx, id)
}

// CreateBooking validates the request and inserts the booking unless its
// stay overlaps an active booking of the same apartment.
func (s *BookingService) CreateBooking(ctx context.Context, req *domain.CreateBookingRequest) (*domain.Booking, error) {
	ctx, span := bookingTracer.Start(ctx, "BookingService.CreateBooking")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("booking_create", time.Since(start))
	}()

	b, err := req.ToBooking()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("apartment.id", b.ApartmentID))

	var saved *domain.Booking
	err = s.store.WithinTx(ctx, func(tx port.BookingTx) error {
		if err := tx.LockApartment(ctx, b.ApartmentID); err != nil {
			return err
		}
		if b.Status.Active() {
			if err := s.overlap.Validate(ctx, tx, b.ApartmentID, b.Stay(), 0); err != nil {
				return err
			}
		}
		var err error
		saved, err = tx.InsertBooking(ctx, b)
		return err
	})
	if err != nil {
		s.recordConflict(err)
		return nil, err
	}

	s.logger.Info("booking created",
		zap.Int64("booking_id", saved.ID),
		zap.Int64("apartment_id", saved.ApartmentID),
		zap.String("stay", saved.Stay().String()),
	)
	return saved, nil
}

// UpdateBooking merges the request into the stored booking, re-validates it
// and re-checks overlap against the target apartment, ignoring the booking
// itself. A booking moved to another apartment locks the target apartment.
func (s *BookingService) UpdateBooking(ctx context.Context, id int64, req *domain.UpdateBookingRequest) (*domain.Booking, error) {
	ctx, span := bookingTracer.Start(ctx, "BookingService.UpdateBooking")
	defer span.End()
	span.SetAttributes(attribute.Int64("booking.id", id))

	var saved *domain.Booking
	err := s.store.WithinTx(ctx, func(tx port.BookingTx) error {
		current, err := tx.GetBookingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		merged, err := req.Apply(*current)
		if err != nil {
			return err
		}
		if err := tx.LockApartment(ctx, merged.ApartmentID); err != nil {
			return err
		}
		if merged.Status.Active() {
			if err := s.overlap.Validate(ctx, tx, merged.ApartmentID, merged.Stay(), id); err != nil {
				return err
			}
		}
		saved, err = tx.UpdateBooking(ctx, merged)
		return err
	})
	if err != nil {
		s.recordConflict(err)
		return nil, err
	}

	s.logger.Info("booking updated", zap.Int64("booking_id", id), zap.String("status", string(saved.Status)))
	return saved, nil
}

// UpdateBookingFlags toggles the legacy payment flags. Dates are untouched,
// so no overlap check is needed.
func (s *BookingService) UpdateBookingFlags(ctx context.Context, id int64, req *domain.BookingFlagsRequest) (*domain.Booking, error) {
	ctx, span := bookingTracer.Start(ctx, "BookingService.UpdateBookingFlags")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.store.UpdateBookingFlags(ctx, id, req)
}

func (s *BookingService) DeleteBooking(ctx context.Context, id int64) error {
	ctx, span := bookingTracer.Start(ctx, "BookingService.DeleteBooking")
	defer span.End()

	if err := s.store.DeleteBooking(ctx, id); err != nil {
		return err
	}
	s.logger.Info("booking deleted", zap.Int64("booking_id", id))
	return nil
}

func (s *BookingService) recordConflict(err error) {
	var conflict *domain.ErrBookingConflict
	if errors.As(err, &conflict) {
		s.metrics.IncrBookingConflict()
	}
}
