package postgres

import (
	"database/sql"
	"errors"

	"github.com/boddenberg/hatacrm/internal/domain"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgreSQL SQLSTATE codes the adapter translates.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeExclusionViolation  = "23P01"
)

// constraintFields names the request field behind each constraint.
var constraintFields = map[string]string{
	"bookings_apartment_id_fkey":       "apartment_id",
	"expenses_apartment_id_fkey":       "apartment_id",
	"booking_payments_booking_id_fkey": "booking_id",
	"apartments_name_active_key":       "name",
	"bookings_dates_check":             "end_date",
	"bookings_status_check":            "status",
	"booking_payments_type_check":      "type",
	"booking_payments_method_check":    "payment_method",
	"booking_payments_period_check":    "period_end",
	"booking_payments_amount_check":    "amount",
	"expenses_amount_check":            "amount",
	"apartments_base_price_check":      "base_price",
}

func constraintField(constraint string) string {
	if f, ok := constraintFields[constraint]; ok {
		return f
	}
	return constraint
}

// mapError translates driver errors into domain errors. Anything it does not
// recognize becomes an opaque *domain.ErrStorage and is counted and logged.
func (d *DB) mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeForeignKeyViolation:
			return &domain.ErrValidation{Field: constraintField(pqErr.Constraint), Message: "references a record that does not exist"}
		case codeUniqueViolation:
			return &domain.ErrValidation{Field: constraintField(pqErr.Constraint), Message: "already exists"}
		case codeCheckViolation:
			return &domain.ErrValidation{Field: constraintField(pqErr.Constraint), Message: "violates " + pqErr.Constraint}
		}
	}

	var (
		validation *domain.ErrValidation
		notFound   *domain.ErrNotFound
		conflict   *domain.ErrBookingConflict
	)
	if errors.As(err, &validation) || errors.As(err, &notFound) || errors.As(err, &conflict) {
		return err
	}

	d.metrics.IncrStoreError(op)
	d.logger.Error("storage error", zap.String("op", op), zap.Error(err))
	return &domain.ErrStorage{Op: op, Err: err}
}

// isExclusionViolation reports whether err is the booking overlap constraint firing.
func isExclusionViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeExclusionViolation
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
