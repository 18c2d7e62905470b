package domain

import "time"

// ============================================================
// Booking payments
// ============================================================

// PaymentType classifies a payment row.
type PaymentType string

const (
	PaymentPrepayment PaymentType = "prepayment"
	PaymentMain       PaymentType = "main"
	PaymentExtra      PaymentType = "extra"
	PaymentCleaning   PaymentType = "cleaning"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentPrepayment, PaymentMain, PaymentExtra, PaymentCleaning:
		return true
	}
	return false
}

// PaymentMethod is how the guest paid.
type PaymentMethod string

const (
	MethodCash PaymentMethod = "cash"
	MethodCard PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodCash || m == MethodCard
}

// Payment is one itemized payment of a booking. PeriodStart/PeriodEnd
// are only set on "main" payments and name the part of the stay covered.
type Payment struct {
	ID            int64          `json:"id"`
	BookingID     int64          `json:"booking_id"`
	Type          PaymentType    `json:"type"`
	Amount        float64        `json:"amount"`
	PaymentDate   Date           `json:"payment_date"`
	Paid          bool           `json:"paid"`
	PaymentMethod *PaymentMethod `json:"payment_method"`
	PeriodStart   Date           `json:"period_start"`
	PeriodEnd     Date           `json:"period_end"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Validate checks a complete payment record.
func (p *Payment) Validate() error {
	if !p.Type.Valid() {
		return &ErrValidation{Field: "type", Message: "must be one of prepayment, main, extra, cleaning"}
	}
	if p.Amount < 0 {
		return &ErrValidation{Field: "amount", Message: "must not be negative"}
	}
	if p.PaymentMethod != nil && !p.PaymentMethod.Valid() {
		return &ErrValidation{Field: "payment_method", Message: "must be cash or card"}
	}
	if p.PeriodStart.IsZero() && p.PeriodEnd.IsZero() {
		return nil
	}
	if p.Type != PaymentMain {
		return &ErrValidation{Field: "period_start", Message: "only allowed for main payments"}
	}
	if p.PeriodStart.IsZero() || p.PeriodEnd.IsZero() {
		return &ErrValidation{Field: "period_end", Message: "period_start and period_end must be set together"}
	}
	if !p.PeriodEnd.After(p.PeriodStart) {
		return &ErrValidation{Field: "period_end", Message: "must be after period_start"}
	}
	return nil
}

// parseMethod maps "" to no method.
func parseMethod(s string) (*PaymentMethod, error) {
	if s == "" {
		return nil, nil
	}
	m := PaymentMethod(s)
	if !m.Valid() {
		return nil, &ErrValidation{Field: "payment_method", Message: "must be cash or card"}
	}
	return &m, nil
}

// CreatePaymentRequest is the body of POST /api/bookings/{id}/payments.
type CreatePaymentRequest struct {
	Type          PaymentType `json:"type"`
	Amount        float64     `json:"amount"`
	PaymentDate   Date        `json:"payment_date"`
	Paid          bool        `json:"paid"`
	PaymentMethod string      `json:"payment_method"`
	PeriodStart   Date        `json:"period_start"`
	PeriodEnd     Date        `json:"period_end"`
}

// ToPayment applies defaults (payment_date = today) and validates.
func (r *CreatePaymentRequest) ToPayment(bookingID int64) (*Payment, error) {
	method, err := parseMethod(r.PaymentMethod)
	if err != nil {
		return nil, err
	}
	p := &Payment{
		BookingID:     bookingID,
		Type:          r.Type,
		Amount:        r.Amount,
		PaymentDate:   r.PaymentDate,
		Paid:          r.Paid,
		PaymentMethod: method,
		PeriodStart:   r.PeriodStart,
		PeriodEnd:     r.PeriodEnd,
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = Today()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePaymentRequest is the body of PATCH /api/bookings/{bookingId}/payments/{paymentId}.
// An empty payment_method clears it; an empty period date clears it.
type UpdatePaymentRequest struct {
	Type          *PaymentType `json:"type"`
	Amount        *float64     `json:"amount"`
	PaymentDate   *Date        `json:"payment_date"`
	Paid          *bool        `json:"paid"`
	PaymentMethod *string      `json:"payment_method"`
	PeriodStart   *Date        `json:"period_start"`
	PeriodEnd     *Date        `json:"period_end"`
}

func (r *UpdatePaymentRequest) empty() bool {
	return r.Type == nil && r.Amount == nil && r.PaymentDate == nil && r.Paid == nil &&
		r.PaymentMethod == nil && r.PeriodStart == nil && r.PeriodEnd == nil
}

// Apply merges the request into a copy of p and validates the result.
func (r *UpdatePaymentRequest) Apply(p Payment) (*Payment, error) {
	if r.empty() {
		return nil, &ErrValidation{Field: "body", Message: "no fields to update"}
	}
	if r.Type != nil {
		p.Type = *r.Type
	}
	if r.Amount != nil {
		p.Amount = *r.Amount
	}
	if r.PaymentDate != nil {
		if r.PaymentDate.IsZero() {
			return nil, &ErrValidation{Field: "payment_date", Message: "must not be empty"}
		}
		p.PaymentDate = *r.PaymentDate
	}
	if r.Paid != nil {
		p.Paid = *r.Paid
	}
	if r.PaymentMethod != nil {
		method, err := parseMethod(*r.PaymentMethod)
		if err != nil {
			return nil, err
		}
		p.PaymentMethod = method
	}
	if r.PeriodStart != nil {
		p.PeriodStart = *r.PeriodStart
	}
	if r.PeriodEnd != nil {
		p.PeriodEnd = *r.PeriodEnd
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
