package domain

import (
	"strings"
	"time"
)

// ============================================================
// Bookings
// ============================================================

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending    BookingStatus = "PENDING"
	BookingConfirmed  BookingStatus = "CONFIRMED"
	BookingCheckedIn  BookingStatus = "CHECKED_IN"
	BookingCheckedOut BookingStatus = "CHECKED_OUT"
	BookingCancelled  BookingStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCheckedIn, BookingCheckedOut, BookingCancelled:
		return true
	}
	return false
}

// Active reports whether the booking holds its dates and earns revenue.
func (s BookingStatus) Active() bool {
	return s != BookingCancelled
}

const DefaultBookingSource = "Direct"

// Booking is a stay of nights [StartDate, EndDate) in one apartment.
// EndDate is the checkout day and is never itself a night.
type Booking struct {
	ID             int64         `json:"id"`
	ApartmentID    int64         `json:"apartment_id"`
	ClientName     string        `json:"client_name,omitempty"`
	ClientPhone    string        `json:"client_phone,omitempty"`
	StartDate      Date          `json:"start_date"`
	EndDate        Date          `json:"end_date"`
	CheckInTime    string        `json:"check_in_time,omitempty"`
	CheckOutTime   string        `json:"check_out_time,omitempty"`
	Status         BookingStatus `json:"status"`
	TotalPrice     float64       `json:"total_price"`
	DailyRate      float64       `json:"daily_rate"`
	Prepayment     float64       `json:"prepayment"`
	PrepaymentPaid bool          `json:"prepayment_paid"`
	FullAmountPaid bool          `json:"full_amount_paid"`
	Deposit        float64       `json:"deposit"`
	Adults         int           `json:"adults"`
	Children       int           `json:"children"`
	BookingSource  string        `json:"booking_source"`
	Notes          string        `json:"notes,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	Payments       []Payment     `json:"payments,omitempty"`
}

// Stay returns the booking's nights as a half-open period.
func (b *Booking) Stay() Period {
	return Period{Start: b.StartDate, End: b.EndDate}
}

// Validate checks the invariants of a complete booking record.
func (b *Booking) Validate() error {
	if b.ApartmentID <= 0 {
		return &ErrValidation{Field: "apartment_id", Message: "required"}
	}
	if b.StartDate.IsZero() {
		return &ErrValidation{Field: "start_date", Message: "required"}
	}
	if b.EndDate.IsZero() {
		return &ErrValidation{Field: "end_date", Message: "required"}
	}
	if !b.EndDate.After(b.StartDate) {
		return &ErrValidation{Field: "end_date", Message: "must be after start_date"}
	}
	if !b.Status.Valid() {
		return &ErrValidation{Field: "status", Message: "unknown status " + string(b.Status)}
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"total_price", b.TotalPrice},
		{"daily_rate", b.DailyRate},
		{"prepayment", b.Prepayment},
		{"deposit", b.Deposit},
	} {
		if f.value < 0 {
			return &ErrValidation{Field: f.name, Message: "must not be negative"}
		}
	}
	if b.Adults < 0 {
		return &ErrValidation{Field: "adults", Message: "must not be negative"}
	}
	if b.Children < 0 {
		return &ErrValidation{Field: "children", Message: "must not be negative"}
	}
	if err := validateClock("check_in_time", b.CheckInTime); err != nil {
		return err
	}
	return validateClock("check_out_time", b.CheckOutTime)
}

func validateClock(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.Parse("15:04", v); err != nil {
		return &ErrValidation{Field: field, Message: "expected HH:MM"}
	}
	return nil
}

// BookingView is a booking as listed on the calendar, with its paid totals.
type BookingView struct {
	Booking
	PaidAmount       float64 `json:"paid_amount"`
	PaidPaymentCount int     `json:"paid_payment_count"`
}

// ============================================================
// Booking requests
// ============================================================

// CreateBookingRequest is the body of POST /api/bookings.
type CreateBookingRequest struct {
	ApartmentID    int64         `json:"apartment_id"`
	ClientName     string        `json:"client_name"`
	ClientPhone    string        `json:"client_phone"`
	StartDate      Date          `json:"start_date"`
	EndDate        Date          `json:"end_date"`
	CheckInTime    string        `json:"check_in_time"`
	CheckOutTime   string        `json:"check_out_time"`
	Status         BookingStatus `json:"status"`
	TotalPrice     float64       `json:"total_price"`
	DailyRate      float64       `json:"daily_rate"`
	Prepayment     float64       `json:"prepayment"`
	PrepaymentPaid bool          `json:"prepayment_paid"`
	FullAmountPaid bool          `json:"full_amount_paid"`
	Deposit        float64       `json:"deposit"`
	Adults         *int          `json:"adults"`
	Children       int           `json:"children"`
	BookingSource  string        `json:"booking_source"`
	Notes          string        `json:"notes"`
}

// ToBooking applies defaults and validates the resulting record.
func (r *CreateBookingRequest) ToBooking() (*Booking, error) {
	if strings.TrimSpace(r.ClientPhone) == "" {
		return nil, &ErrValidation{Field: "client_phone", Message: "required"}
	}
	b := &Booking{
		ApartmentID:    r.ApartmentID,
		ClientName:     strings.TrimSpace(r.ClientName),
		ClientPhone:    strings.TrimSpace(r.ClientPhone),
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		CheckInTime:    r.CheckInTime,
		CheckOutTime:   r.CheckOutTime,
		Status:         r.Status,
		TotalPrice:     r.TotalPrice,
		DailyRate:      r.DailyRate,
		Prepayment:     r.Prepayment,
		PrepaymentPaid: r.PrepaymentPaid,
		FullAmountPaid: r.FullAmountPaid,
		Deposit:        r.Deposit,
		Adults:         1,
		Children:       r.Children,
		BookingSource:  strings.TrimSpace(r.BookingSource),
		Notes:          r.Notes,
	}
	if r.Adults != nil {
		b.Adults = *r.Adults
	}
	if b.Status == "" {
		b.Status = BookingConfirmed
	}
	if b.BookingSource == "" {
		b.BookingSource = DefaultBookingSource
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBookingRequest is the body of PUT /api/bookings/{id}.
// Absent fields keep their current value.
type UpdateBookingRequest struct {
	ApartmentID    *int64         `json:"apartment_id"`
	ClientName     *string        `json:"client_name"`
	ClientPhone    *string        `json:"client_phone"`
	StartDate      *Date          `json:"start_date"`
	EndDate        *Date          `json:"end_date"`
	CheckInTime    *string        `json:"check_in_time"`
	CheckOutTime   *string        `json:"check_out_time"`
	Status         *BookingStatus `json:"status"`
	TotalPrice     *float64       `json:"total_price"`
	DailyRate      *float64       `json:"daily_rate"`
	Prepayment     *float64       `json:"prepayment"`
	Deposit        *float64       `json:"deposit"`
	Adults         *int           `json:"adults"`
	Children       *int           `json:"children"`
	BookingSource  *string        `json:"booking_source"`
	Notes          *string        `json:"notes"`
}

// Apply merges the request into a copy of b and validates the result.
func (r *UpdateBookingRequest) Apply(b Booking) (*Booking, error) {
	if r.ApartmentID != nil {
		b.ApartmentID = *r.ApartmentID
	}
	if r.ClientName != nil {
		b.ClientName = strings.TrimSpace(*r.ClientName)
	}
	if r.ClientPhone != nil {
		if strings.TrimSpace(*r.ClientPhone) == "" {
			return nil, &ErrValidation{Field: "client_phone", Message: "must not be empty"}
		}
		b.ClientPhone = strings.TrimSpace(*r.ClientPhone)
	}
	if r.StartDate != nil {
		b.StartDate = *r.StartDate
	}
	if r.EndDate != nil {
		b.EndDate = *r.EndDate
	}
	if r.CheckInTime != nil {
		b.CheckInTime = *r.CheckInTime
	}
	if r.CheckOutTime != nil {
		b.CheckOutTime = *r.CheckOutTime
	}
	if r.Status != nil {
		b.Status = *r.Status
	}
	if r.TotalPrice != nil {
		b.TotalPrice = *r.TotalPrice
	}
	if r.DailyRate != nil {
		b.DailyRate = *r.DailyRate
	}
	if r.Prepayment != nil {
		b.Prepayment = *r.Prepayment
	}
	if r.Deposit != nil {
		b.Deposit = *r.Deposit
	}
	if r.Adults != nil {
		b.Adults = *r.Adults
	}
	if r.Children != nil {
		b.Children = *r.Children
	}
	if r.BookingSource != nil {
		b.BookingSource = strings.TrimSpace(*r.BookingSource)
	}
	if r.Notes != nil {
		b.Notes = *r.Notes
	}
	b.Payments = nil
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// BookingFlagsRequest is the body of PATCH /api/bookings/{id}.
type BookingFlagsRequest struct {
	PrepaymentPaid *bool `json:"prepayment_paid"`
	FullAmountPaid *bool `json:"full_amount_paid"`
}

func (r *BookingFlagsRequest) Validate() error {
	if r.PrepaymentPaid == nil && r.FullAmountPaid == nil {
		return &ErrValidation{Field: "prepayment_paid", Message: "prepayment_paid or full_amount_paid is required"}
	}
	return nil
}
