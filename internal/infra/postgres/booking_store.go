package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Bookings
// ============================================================

const bookingColumns = `b.id, b.apartment_id, b.client_name, b.client_phone, b.start_date, b.end_date,
	b.check_in_time, b.check_out_time, b.status, b.total_price, b.daily_rate, b.prepayment,
	b.prepayment_paid, b.full_amount_paid, b.deposit, b.adults, b.children, b.booking_source,
	b.notes, b.created_at`

func scanBooking(row rowScanner, extra ...any) (*domain.Booking, error) {
	var (
		b                        domain.Booking
		clientName, clientPhone  sql.NullString
		checkIn, checkOut, notes sql.NullString
	)
	dest := []any{
		&b.ID, &b.ApartmentID, &clientName, &clientPhone, &b.StartDate, &b.EndDate,
		&checkIn, &checkOut, &b.Status, &b.TotalPrice, &b.DailyRate, &b.Prepayment,
		&b.PrepaymentPaid, &b.FullAmountPaid, &b.Deposit, &b.Adults, &b.Children, &b.BookingSource,
		&notes, &b.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	b.ClientName = clientName.String
	b.ClientPhone = clientPhone.String
	b.CheckInTime = checkIn.String
	b.CheckOutTime = checkOut.String
	b.Notes = notes.String
	return &b, nil
}

func bookingNotFound(id int64) error {
	return &domain.ErrNotFound{Resource: "booking", ID: strconv.FormatInt(id, 10)}
}

// ListBookings returns bookings touching the window (start_date < end AND
// end_date >= start, so a checkout on the first visible day still shows)
// with their paid totals.
func (d *DB) ListBookings(ctx context.Context, window domain.Period) ([]domain.BookingView, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListBookings")
	defer span.End()

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`,
			COALESCE((SELECT SUM(p.amount) FROM booking_payments p WHERE p.booking_id = b.id AND p.paid), 0),
			(SELECT COUNT(*) FROM booking_payments p WHERE p.booking_id = b.id AND p.paid)
		FROM bookings b
		WHERE b.start_date < $2 AND b.end_date >= $1
		ORDER BY b.start_date, b.id`,
		window.Start, window.End,
	)
	if err != nil {
		return nil, d.mapError("list_bookings", err)
	}
	defer rows.Close()

	out := []domain.BookingView{}
	for rows.Next() {
		var v domain.BookingView
		b, err := scanBooking(rows, &v.PaidAmount, &v.PaidPaymentCount)
		if err != nil {
			return nil, d.mapError("list_bookings", err)
		}
		v.Booking = *b
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, d.mapError("list_bookings", err)
	}
	return out, nil
}

// GetBooking returns the booking with its payments.
func (d *DB) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetBooking")
	defer span.End()
	span.SetAttributes(attribute.Int64("booking.id", id))

	row := d.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, id)
	b, err := scanBooking(row)
	if isNoRows(err) {
		return nil, bookingNotFound(id)
	}
	if err != nil {
		return nil, d.mapError("get_booking", err)
	}

	payments, err := d.ListPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Payments = payments
	return b, nil
}

// UpdateBookingFlags sets the legacy payment flags that are present in req.
func (d *DB) UpdateBookingFlags(ctx context.Context, id int64, req *domain.BookingFlagsRequest) (*domain.Booking, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateBookingFlags")
	defer span.End()

	row := d.db.QueryRowContext(ctx, `
		UPDATE bookings AS b SET
			prepayment_paid = COALESCE($1, b.prepayment_paid),
			full_amount_paid = COALESCE($2, b.full_amount_paid)
		WHERE b.id = $3
		RETURNING `+bookingColumns,
		req.PrepaymentPaid, req.FullAmountPaid, id,
	)
	b, err := scanBooking(row)
	if isNoRows(err) {
		return nil, bookingNotFound(id)
	}
	if err != nil {
		return nil, d.mapError("update_booking_flags", err)
	}
	return b, nil
}

// DeleteBooking hard-deletes a booking; its payments cascade.
func (d *DB) DeleteBooking(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteBooking")
	defer span.End()

	res, err := d.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return d.mapError("delete_booking", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return d.mapError("delete_booking", err)
	}
	if n == 0 {
		return bookingNotFound(id)
	}
	return nil
}

// ============================================================
// Booking write transaction
// ============================================================

// WithinTx runs fn in a READ COMMITTED transaction. Writers serialize on the
// apartment row (LockApartment), so each statement after the lock sees every
// booking committed by a previous writer of the same apartment.
func (d *DB) WithinTx(ctx context.Context, fn func(tx port.BookingTx) error) (err error) {
	ctx, span := tracer.Start(ctx, "Postgres.WithinTx")
	defer span.End()

	sqlTx, err := d.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return d.mapError("begin_tx", err)
	}
	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				d.logger.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(&bookingTx{tx: sqlTx, d: d}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return d.mapError("commit_tx", err)
	}
	return nil
}

type bookingTx struct {
	tx *sql.Tx
	d  *DB
}

func (t *bookingTx) LockApartment(ctx context.Context, apartmentID int64) error {
	var id int64
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM apartments WHERE id = $1 FOR UPDATE`, apartmentID).Scan(&id)
	if isNoRows(err) {
		return &domain.ErrValidation{Field: "apartment_id", Message: fmt.Sprintf("apartment %d does not exist", apartmentID)}
	}
	return t.d.mapError("lock_apartment", err)
}

func (t *bookingTx) FindOverlapping(ctx context.Context, apartmentID int64, stay domain.Period, excludeID int64) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id FROM bookings
		WHERE apartment_id = $1
			AND status <> 'CANCELLED'
			AND start_date < $3 AND end_date > $2
			AND id <> $4
		ORDER BY id`,
		apartmentID, stay.Start, stay.End, excludeID,
	)
	if err != nil {
		return nil, t.d.mapError("find_overlapping", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, t.d.mapError("find_overlapping", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, t.d.mapError("find_overlapping", err)
	}
	return ids, nil
}

func (t *bookingTx) GetBookingForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1 FOR UPDATE`, id)
	b, err := scanBooking(row)
	if isNoRows(err) {
		return nil, bookingNotFound(id)
	}
	if err != nil {
		return nil, t.d.mapError("get_booking_for_update", err)
	}
	return b, nil
}

func (t *bookingTx) InsertBooking(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	row := t.tx.QueryRowContext(ctx, `
		INSERT INTO bookings AS b (
			apartment_id, client_name, client_phone, start_date, end_date,
			check_in_time, check_out_time, status, total_price, daily_rate, prepayment,
			prepayment_paid, full_amount_paid, deposit, adults, children, booking_source, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING `+bookingColumns,
		b.ApartmentID, nullString(b.ClientName), nullString(b.ClientPhone), b.StartDate, b.EndDate,
		nullString(b.CheckInTime), nullString(b.CheckOutTime), b.Status, b.TotalPrice, b.DailyRate, b.Prepayment,
		b.PrepaymentPaid, b.FullAmountPaid, b.Deposit, b.Adults, b.Children, b.BookingSource, nullString(b.Notes),
	)
	saved, err := scanBooking(row)
	if err != nil {
		if isExclusionViolation(err) {
			return nil, &domain.ErrBookingConflict{ApartmentID: b.ApartmentID, Start: b.StartDate, End: b.EndDate}
		}
		return nil, t.d.mapError("insert_booking", err)
	}
	return saved, nil
}

func (t *bookingTx) UpdateBooking(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	row := t.tx.QueryRowContext(ctx, `
		UPDATE bookings AS b SET
			apartment_id = $1, client_name = $2, client_phone = $3, start_date = $4, end_date = $5,
			check_in_time = $6, check_out_time = $7, status = $8, total_price = $9, daily_rate = $10,
			prepayment = $11, deposit = $12, adults = $13, children = $14, booking_source = $15, notes = $16
		WHERE b.id = $17
		RETURNING `+bookingColumns,
		b.ApartmentID, nullString(b.ClientName), nullString(b.ClientPhone), b.StartDate, b.EndDate,
		nullString(b.CheckInTime), nullString(b.CheckOutTime), b.Status, b.TotalPrice, b.DailyRate,
		b.Prepayment, b.Deposit, b.Adults, b.Children, b.BookingSource, nullString(b.Notes),
		b.ID,
	)
	saved, err := scanBooking(row)
	if isNoRows(err) {
		return nil, bookingNotFound(b.ID)
	}
	if err != nil {
		if isExclusionViolation(err) {
			return nil, &domain.ErrBookingConflict{ApartmentID: b.ApartmentID, Start: b.StartDate, End: b.EndDate}
		}
		return nil, t.d.mapError("update_booking", err)
	}
	return saved, nil
}
