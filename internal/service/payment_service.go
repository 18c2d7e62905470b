package service

import (
	"context"

	"github.com/boddenberg/hatacrm/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Booking payments
// ============================================================

// requireBooking turns a missing parent booking into a not-found error.
func (s *BookingService) requireBooking(ctx context.Context, bookingID int64) error {
	ok, err := s.payments.BookingExists(ctx, bookingID)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.ErrNotFound{Resource: "booking", ID: formatID(bookingID)}
	}
	return nil
}

func (s *BookingService) ListPayments(ctx context.Context, bookingID int64) ([]domain.Payment, error) {
	ctx, span := bookingTracer.Start(ctx, "BookingService.ListPayments")
	defer span.End()

	if err := s.requireBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.payments.ListPayments(ctx, bookingID)
}

func (s *BookingService) CreatePayment(ctx context.Context, bookingID int64, req *domain.CreatePaymentRequest) (*domain.Payment, error) {
	ctx, span := bookingTracer.Start(ctx, "BookingService.CreatePayment")
	defer span.End()

	p, err := req.ToPayment(bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.requireBooking(ctx, bookingID); err != nil {
		return nil, err
	}

	saved, err := s.payments.CreatePayment(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment recorded",
		zap.Int64("booking_id", bookingID),
		zap.Int64("payment_id", saved.ID),
		zap.String("type", string(saved.Type)),
		zap.Bool("paid", saved.Paid),
	)
	return saved, nil
}

// UpdatePayment applies a partial update. Toggling paid back to false is allowed.
func (s *BookingService) UpdatePayment(ctx context.Context, bookingID, paymentID int64, req *domain.UpdatePaymentRequest) (*domain.Payment, error) {
	ctx, span := bookingTracer.Start(ctx, "BookingService.UpdatePayment")
	defer span.End()

	if err := s.requireBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	current, err := s.payments.GetPayment(ctx, bookingID, paymentID)
	if err != nil {
		return nil, err
	}
	merged, err := req.Apply(*current)
	if err != nil {
		return nil, err
	}
	return s.payments.UpdatePayment(ctx, merged)
}

func (s *BookingService) DeletePayment(ctx context.Context, bookingID, paymentID int64) error {
	ctx, span := bookingTracer.Start(ctx, "BookingService.DeletePayment")
	defer span.End()

	if err := s.requireBooking(ctx, bookingID); err != nil {
		return err
	}
	return s.payments.DeletePayment(ctx, bookingID, paymentID)
}
