package postgres

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/boddenberg/hatacrm/internal/domain"
)

const expenseColumns = `id, category, description, apartment_id, amount, date, created_at`

func scanExpense(row rowScanner) (*domain.Expense, error) {
	var (
		e           domain.Expense
		description sql.NullString
		apartmentID sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.Category, &description, &apartmentID, &e.Amount, &e.Date, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Description = description.String
	if apartmentID.Valid {
		id := apartmentID.Int64
		e.ApartmentID = &id
	}
	return &e, nil
}

func expenseNotFound(id int64) error {
	return &domain.ErrNotFound{Resource: "expense", ID: strconv.FormatInt(id, 10)}
}

func apartmentArg(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// ListExpenses returns expenses newest first, restricted to period when set.
func (d *DB) ListExpenses(ctx context.Context, period *domain.Period) ([]domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListExpenses")
	defer span.End()

	var (
		rows *sql.Rows
		err  error
	)
	if period != nil {
		rows, err = d.db.QueryContext(ctx, `
			SELECT `+expenseColumns+` FROM expenses
			WHERE date >= $1 AND date < $2
			ORDER BY date DESC, id DESC`, period.Start, period.End)
	} else {
		rows, err = d.db.QueryContext(ctx, `
			SELECT `+expenseColumns+` FROM expenses
			ORDER BY date DESC, id DESC`)
	}
	if err != nil {
		return nil, d.mapError("list_expenses", err)
	}
	defer rows.Close()

	out := []domain.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, d.mapError("list_expenses", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, d.mapError("list_expenses", err)
	}
	return out, nil
}

func (d *DB) GetExpense(ctx context.Context, id int64) (*domain.Expense, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id)
	e, err := scanExpense(row)
	if isNoRows(err) {
		return nil, expenseNotFound(id)
	}
	if err != nil {
		return nil, d.mapError("get_expense", err)
	}
	return e, nil
}

func (d *DB) CreateExpense(ctx context.Context, e *domain.Expense) (*domain.Expense, error) {
	row := d.db.QueryRowContext(ctx, `
		INSERT INTO expenses (category, description, apartment_id, amount, date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+expenseColumns,
		e.Category, nullString(e.Description), apartmentArg(e.ApartmentID), e.Amount, e.Date,
	)
	saved, err := scanExpense(row)
	if err != nil {
		return nil, d.mapError("create_expense", err)
	}
	return saved, nil
}

func (d *DB) UpdateExpense(ctx context.Context, e *domain.Expense) (*domain.Expense, error) {
	row := d.db.QueryRowContext(ctx, `
		UPDATE expenses SET category = $1, description = $2, apartment_id = $3, amount = $4, date = $5
		WHERE id = $6
		RETURNING `+expenseColumns,
		e.Category, nullString(e.Description), apartmentArg(e.ApartmentID), e.Amount, e.Date, e.ID,
	)
	saved, err := scanExpense(row)
	if isNoRows(err) {
		return nil, expenseNotFound(e.ID)
	}
	if err != nil {
		return nil, d.mapError("update_expense", err)
	}
	return saved, nil
}

func (d *DB) DeleteExpense(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return d.mapError("delete_expense", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return d.mapError("delete_expense", err)
	}
	if n == 0 {
		return expenseNotFound(id)
	}
	return nil
}
