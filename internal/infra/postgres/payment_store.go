package postgres

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/boddenberg/hatacrm/internal/domain"
)

const paymentColumns = `id, booking_id, type, amount, payment_date, paid, payment_method, period_start, period_end, created_at`

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p      domain.Payment
		method sql.NullString
	)
	if err := row.Scan(&p.ID, &p.BookingID, &p.Type, &p.Amount, &p.PaymentDate, &p.Paid,
		&method, &p.PeriodStart, &p.PeriodEnd, &p.CreatedAt); err != nil {
		return nil, err
	}
	if method.Valid {
		m := domain.PaymentMethod(method.String)
		p.PaymentMethod = &m
	}
	return &p, nil
}

func paymentNotFound(id int64) error {
	return &domain.ErrNotFound{Resource: "payment", ID: strconv.FormatInt(id, 10)}
}

func methodArg(m *domain.PaymentMethod) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*m), Valid: true}
}

func (d *DB) BookingExists(ctx context.Context, bookingID int64) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`, bookingID).Scan(&exists)
	if err != nil {
		return false, d.mapError("booking_exists", err)
	}
	return exists, nil
}

// ListPayments returns a booking's payments ordered by type, then date.
func (d *DB) ListPayments(ctx context.Context, bookingID int64) ([]domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListPayments")
	defer span.End()

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM booking_payments
		WHERE booking_id = $1
		ORDER BY type, payment_date, id`, bookingID)
	if err != nil {
		return nil, d.mapError("list_payments", err)
	}
	defer rows.Close()

	out := []domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, d.mapError("list_payments", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, d.mapError("list_payments", err)
	}
	return out, nil
}

func (d *DB) GetPayment(ctx context.Context, bookingID, paymentID int64) (*domain.Payment, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM booking_payments
		WHERE id = $1 AND booking_id = $2`, paymentID, bookingID)
	p, err := scanPayment(row)
	if isNoRows(err) {
		return nil, paymentNotFound(paymentID)
	}
	if err != nil {
		return nil, d.mapError("get_payment", err)
	}
	return p, nil
}

func (d *DB) CreatePayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreatePayment")
	defer span.End()

	row := d.db.QueryRowContext(ctx, `
		INSERT INTO booking_payments (booking_id, type, amount, payment_date, paid, payment_method, period_start, period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+paymentColumns,
		p.BookingID, p.Type, p.Amount, p.PaymentDate, p.Paid, methodArg(p.PaymentMethod), p.PeriodStart, p.PeriodEnd,
	)
	saved, err := scanPayment(row)
	if err != nil {
		return nil, d.mapError("create_payment", err)
	}
	return saved, nil
}

func (d *DB) UpdatePayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdatePayment")
	defer span.End()

	row := d.db.QueryRowContext(ctx, `
		UPDATE booking_payments SET
			type = $1, amount = $2, payment_date = $3, paid = $4,
			payment_method = $5, period_start = $6, period_end = $7
		WHERE id = $8 AND booking_id = $9
		RETURNING `+paymentColumns,
		p.Type, p.Amount, p.PaymentDate, p.Paid, methodArg(p.PaymentMethod), p.PeriodStart, p.PeriodEnd,
		p.ID, p.BookingID,
	)
	saved, err := scanPayment(row)
	if isNoRows(err) {
		return nil, paymentNotFound(p.ID)
	}
	if err != nil {
		return nil, d.mapError("update_payment", err)
	}
	return saved, nil
}

func (d *DB) DeletePayment(ctx context.Context, bookingID, paymentID int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM booking_payments WHERE id = $1 AND booking_id = $2`, paymentID, bookingID)
	if err != nil {
		return d.mapError("delete_payment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return d.mapError("delete_payment", err)
	}
	if n == 0 {
		return paymentNotFound(paymentID)
	}
	return nil
}
