package service

import (
	"context"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/port"

	"go.uber.org/zap"
)

// OverlapValidator rejects a stay that intersects an active booking of the
// same apartment. Stays are half-open, so a checkout day is free for the
// next check-in.
//
// It must run inside the write transaction, after the apartment is locked,
// so that no concurrent writer can slip a booking in between the check and
// the insert.
type OverlapValidator struct {
	logger *zap.Logger
}

func NewOverlapValidator(logger *zap.Logger) *OverlapValidator {
	return &OverlapValidator{logger: logger}
}

// Validate returns *domain.ErrBookingConflict listing the conflicting
// bookings, or nil. excludeID is the booking being edited (0 on create).
func (v *OverlapValidator) Validate(ctx context.Context, tx port.BookingTx, apartmentID int64, stay domain.Period, excludeID int64) error {
	ids, err := tx.FindOverlapping(ctx, apartmentID, stay, excludeID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	v.logger.Info("booking overlaps existing stay",
		zap.Int64("apartment_id", apartmentID),
		zap.String("stay", stay.String()),
		zap.Int64s("conflicting_ids", ids),
	)
	return &domain.ErrBookingConflict{
		ApartmentID:    apartmentID,
		Start:          stay.Start,
		End:            stay.End,
		ConflictingIDs: ids,
	}
}
