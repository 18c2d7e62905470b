package postgres

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/boddenberg/hatacrm/internal/domain"
)

const apartmentColumns = `id, name, address, description, base_price, created_at, deleted_at`

func scanApartment(row rowScanner) (*domain.Apartment, error) {
	var (
		a                    domain.Apartment
		address, description sql.NullString
		deletedAt            sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Name, &address, &description, &a.BasePrice, &a.CreatedAt, &deletedAt); err != nil {
		return nil, err
	}
	a.Address = address.String
	a.Description = description.String
	if deletedAt.Valid {
		t := deletedAt.Time
		a.DeletedAt = &t
	}
	return &a, nil
}

func apartmentNotFound(id int64) error {
	return &domain.ErrNotFound{Resource: "apartment", ID: strconv.FormatInt(id, 10)}
}

// ListApartments returns apartments that are not soft-deleted, by name.
func (d *DB) ListApartments(ctx context.Context) ([]domain.Apartment, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListApartments")
	defer span.End()

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+apartmentColumns+` FROM apartments
		WHERE deleted_at IS NULL
		ORDER BY name, id`)
	if err != nil {
		return nil, d.mapError("list_apartments", err)
	}
	defer rows.Close()
	return d.collectApartments(rows, "list_apartments")
}

func (d *DB) collectApartments(rows *sql.Rows, op string) ([]domain.Apartment, error) {
	out := []domain.Apartment{}
	for rows.Next() {
		a, err := scanApartment(rows)
		if err != nil {
			return nil, d.mapError(op, err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, d.mapError(op, err)
	}
	return out, nil
}

// GetApartment returns an apartment, including a soft-deleted one.
func (d *DB) GetApartment(ctx context.Context, id int64) (*domain.Apartment, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+apartmentColumns+` FROM apartments WHERE id = $1`, id)
	a, err := scanApartment(row)
	if isNoRows(err) {
		return nil, apartmentNotFound(id)
	}
	if err != nil {
		return nil, d.mapError("get_apartment", err)
	}
	return a, nil
}

func (d *DB) CreateApartment(ctx context.Context, a *domain.Apartment) (*domain.Apartment, error) {
	row := d.db.QueryRowContext(ctx, `
		INSERT INTO apartments (name, address, description, base_price)
		VALUES ($1, $2, $3, $4)
		RETURNING `+apartmentColumns,
		a.Name, nullString(a.Address), nullString(a.Description), a.BasePrice,
	)
	saved, err := scanApartment(row)
	if err != nil {
		return nil, d.mapError("create_apartment", err)
	}
	return saved, nil
}

// UpdateApartment only touches live apartments.
func (d *DB) UpdateApartment(ctx context.Context, a *domain.Apartment) (*domain.Apartment, error) {
	row := d.db.QueryRowContext(ctx, `
		UPDATE apartments SET name = $1, address = $2, description = $3, base_price = $4
		WHERE id = $5 AND deleted_at IS NULL
		RETURNING `+apartmentColumns,
		a.Name, nullString(a.Address), nullString(a.Description), a.BasePrice, a.ID,
	)
	saved, err := scanApartment(row)
	if isNoRows(err) {
		return nil, apartmentNotFound(a.ID)
	}
	if err != nil {
		return nil, d.mapError("update_apartment", err)
	}
	return saved, nil
}

// SoftDeleteApartment stamps deleted_at. Bookings and expenses keep
// pointing at the row.
func (d *DB) SoftDeleteApartment(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `UPDATE apartments SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return d.mapError("delete_apartment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return d.mapError("delete_apartment", err)
	}
	if n == 0 {
		return apartmentNotFound(id)
	}
	return nil
}
