package postgres

import (
	"context"
	"database/sql"

	"github.com/boddenberg/hatacrm/internal/domain"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Aggregate cache
// ============================================================

// UpsertAggregate replaces one cache row in a single statement, so readers
// see either the previous payload or the new one.
func (d *DB) UpsertAggregate(ctx context.Context, key string, payload []byte) error {
	ctx, span := tracer.Start(ctx, "Postgres.UpsertAggregate")
	defer span.End()
	span.SetAttributes(attribute.String("cache.key", key))

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO analytics_cache (cache_key, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (cache_key) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		key, string(payload),
	)
	return d.mapError("upsert_aggregate", err)
}

func (d *DB) ReadAggregate(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ReadAggregate")
	defer span.End()
	span.SetAttributes(attribute.String("cache.key", key))

	var payload []byte
	err := d.db.QueryRowContext(ctx, `SELECT data FROM analytics_cache WHERE cache_key = $1`, key).Scan(&payload)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, d.mapError("read_aggregate", err)
	}
	return payload, true, nil
}

// ============================================================
// Ledger snapshot
// ============================================================

// LoadLedger reads everything a refresh of the period needs inside one
// REPEATABLE READ transaction, so bookings, payments and expenses come from
// the same snapshot.
func (d *DB) LoadLedger(ctx context.Context, period domain.Period) (*domain.Ledger, error) {
	ctx, span := tracer.Start(ctx, "Postgres.LoadLedger")
	defer span.End()
	span.SetAttributes(attribute.String("period", period.String()))

	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, d.mapError("load_ledger", err)
	}
	defer tx.Rollback()

	bookings, err := d.ledgerBookings(ctx, tx, period)
	if err != nil {
		return nil, err
	}
	expenses, err := d.ledgerExpenses(ctx, tx, period)
	if err != nil {
		return nil, err
	}
	apartments, err := d.ledgerApartments(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, d.mapError("load_ledger", err)
	}

	d.logger.Debug("ledger loaded",
		zap.String("period", period.String()),
		zap.Int("bookings", len(bookings)),
		zap.Int("expenses", len(expenses)),
		zap.Int("apartments", len(apartments)),
	)
	return &domain.Ledger{Bookings: bookings, Expenses: expenses, Apartments: apartments}, nil
}

func (d *DB) ledgerBookings(ctx context.Context, tx *sql.Tx, period domain.Period) ([]domain.Booking, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings b
		WHERE b.status <> 'CANCELLED' AND b.start_date < $2 AND b.end_date > $1
		ORDER BY b.id`, period.Start, period.End)
	if err != nil {
		return nil, d.mapError("load_ledger_bookings", err)
	}
	defer rows.Close()

	bookings := []domain.Booking{}
	index := map[int64]int{}
	ids := []int64{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, d.mapError("load_ledger_bookings", err)
		}
		index[b.ID] = len(bookings)
		ids = append(ids, b.ID)
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, d.mapError("load_ledger_bookings", err)
	}
	if len(ids) == 0 {
		return bookings, nil
	}

	prows, err := tx.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM booking_payments
		WHERE booking_id = ANY($1)
		ORDER BY booking_id, id`, pq.Array(ids))
	if err != nil {
		return nil, d.mapError("load_ledger_payments", err)
	}
	defer prows.Close()

	for prows.Next() {
		p, err := scanPayment(prows)
		if err != nil {
			return nil, d.mapError("load_ledger_payments", err)
		}
		if i, ok := index[p.BookingID]; ok {
			bookings[i].Payments = append(bookings[i].Payments, *p)
		}
	}
	if err := prows.Err(); err != nil {
		return nil, d.mapError("load_ledger_payments", err)
	}
	return bookings, nil
}

func (d *DB) ledgerExpenses(ctx context.Context, tx *sql.Tx, period domain.Period) ([]domain.Expense, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE date >= $1 AND date < $2
		ORDER BY date, id`, period.Start, period.End)
	if err != nil {
		return nil, d.mapError("load_ledger_expenses", err)
	}
	defer rows.Close()

	out := []domain.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, d.mapError("load_ledger_expenses", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, d.mapError("load_ledger_expenses", err)
	}
	return out, nil
}

func (d *DB) ledgerApartments(ctx context.Context, tx *sql.Tx) ([]domain.Apartment, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+apartmentColumns+` FROM apartments
		WHERE deleted_at IS NULL
		ORDER BY name, id`)
	if err != nil {
		return nil, d.mapError("load_ledger_apartments", err)
	}
	defer rows.Close()
	return d.collectApartments(rows, "load_ledger_apartments")
}
