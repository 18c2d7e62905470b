package domain

import (
	"strings"
	"time"
)

// Apartment is a rentable unit. Deleted apartments keep their rows so
// historical bookings and expenses still resolve.
type Apartment struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Address     string     `json:"address,omitempty"`
	Description string     `json:"description,omitempty"`
	BasePrice   float64    `json:"base_price"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// CreateApartmentRequest is the body of POST /api/apartments.
type CreateApartmentRequest struct {
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Description string  `json:"description"`
	BasePrice   float64 `json:"base_price"`
}

func (r *CreateApartmentRequest) ToApartment() (*Apartment, error) {
	a := &Apartment{
		Name:        strings.TrimSpace(r.Name),
		Address:     strings.TrimSpace(r.Address),
		Description: strings.TrimSpace(r.Description),
		BasePrice:   r.BasePrice,
	}
	if a.Name == "" {
		return nil, &ErrValidation{Field: "name", Message: "required"}
	}
	if a.BasePrice < 0 {
		return nil, &ErrValidation{Field: "base_price", Message: "must not be negative"}
	}
	return a, nil
}

// UpdateApartmentRequest is the body of PATCH /api/apartments/{id}.
type UpdateApartmentRequest struct {
	Name        *string  `json:"name"`
	Address     *string  `json:"address"`
	Description *string  `json:"description"`
	BasePrice   *float64 `json:"base_price"`
}

func (r *UpdateApartmentRequest) Apply(a Apartment) (*Apartment, error) {
	if r.Name == nil && r.Address == nil && r.Description == nil && r.BasePrice == nil {
		return nil, &ErrValidation{Field: "body", Message: "no fields to update"}
	}
	if r.Name != nil {
		a.Name = strings.TrimSpace(*r.Name)
		if a.Name == "" {
			return nil, &ErrValidation{Field: "name", Message: "must not be empty"}
		}
	}
	if r.Address != nil {
		a.Address = strings.TrimSpace(*r.Address)
	}
	if r.Description != nil {
		a.Description = strings.TrimSpace(*r.Description)
	}
	if r.BasePrice != nil {
		if *r.BasePrice < 0 {
			return nil, &ErrValidation{Field: "base_price", Message: "must not be negative"}
		}
		a.BasePrice = *r.BasePrice
	}
	return &a, nil
}
