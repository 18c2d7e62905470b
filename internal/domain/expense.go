package domain

import (
	"strings"
	"time"
)

// Expense is a cost booked on a single day, optionally against one apartment.
type Expense struct {
	ID          int64     `json:"id"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	ApartmentID *int64    `json:"apartment_id"`
	Amount      float64   `json:"amount"`
	Date        Date      `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateExpenseRequest is the body of POST /api/expenses.
type CreateExpenseRequest struct {
	Category    string  `json:"category"`
	Description string  `json:"description"`
	ApartmentID *int64  `json:"apartment_id"`
	Amount      float64 `json:"amount"`
	Date        Date    `json:"date"`
}

// ToExpense applies defaults (date = today) and validates.
func (r *CreateExpenseRequest) ToExpense() (*Expense, error) {
	e := &Expense{
		Category:    strings.TrimSpace(r.Category),
		Description: strings.TrimSpace(r.Description),
		ApartmentID: normalizeApartmentRef(r.ApartmentID),
		Amount:      r.Amount,
		Date:        r.Date,
	}
	if e.Date.IsZero() {
		e.Date = Today()
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Expense) validate() error {
	if e.Category == "" {
		return &ErrValidation{Field: "category", Message: "required"}
	}
	if e.Amount < 0 {
		return &ErrValidation{Field: "amount", Message: "must not be negative"}
	}
	if e.ApartmentID != nil && *e.ApartmentID < 0 {
		return &ErrValidation{Field: "apartment_id", Message: "invalid apartment id"}
	}
	return nil
}

// normalizeApartmentRef treats 0 as "no apartment".
func normalizeApartmentRef(id *int64) *int64 {
	if id == nil || *id == 0 {
		return nil
	}
	v := *id
	return &v
}

// UpdateExpenseRequest is the body of PATCH /api/expenses/{id}.
// apartment_id 0 detaches the expense from its apartment.
type UpdateExpenseRequest struct {
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
	ApartmentID *int64   `json:"apartment_id"`
	Amount      *float64 `json:"amount"`
	Date        *Date    `json:"date"`
}

func (r *UpdateExpenseRequest) Apply(e Expense) (*Expense, error) {
	if r.Category == nil && r.Description == nil && r.ApartmentID == nil && r.Amount == nil && r.Date == nil {
		return nil, &ErrValidation{Field: "body", Message: "no fields to update"}
	}
	if r.Category != nil {
		e.Category = strings.TrimSpace(*r.Category)
	}
	if r.Description != nil {
		e.Description = strings.TrimSpace(*r.Description)
	}
	if r.ApartmentID != nil {
		e.ApartmentID = normalizeApartmentRef(r.ApartmentID)
	}
	if r.Amount != nil {
		e.Amount = *r.Amount
	}
	if r.Date != nil {
		if r.Date.IsZero() {
			return nil, &ErrValidation{Field: "date", Message: "must not be empty"}
		}
		e.Date = *r.Date
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
