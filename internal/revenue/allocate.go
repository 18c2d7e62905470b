package revenue

import "github.com/boddenberg/hatacrm/internal/domain"

// ResolvePaid returns how much of a booking has actually been paid.
//
// Once a booking has any payment row, the itemized rows are authoritative
// and the legacy flags are ignored. Without rows the legacy flags apply.
func ResolvePaid(b *domain.Booking, payments []domain.Payment) float64 {
	if len(payments) > 0 {
		var paid float64
		for _, p := range payments {
			if p.Paid {
				paid += p.Amount
			}
		}
		return paid
	}

	var paid float64
	if b.PrepaymentPaid {
		paid += b.Prepayment
	}
	if b.FullAmountPaid {
		paid += b.TotalPrice - b.Prepayment
	}
	return paid
}

// Allocate spreads paid evenly over the booking's nights and returns the share
// of the nights that start inside [periodStart, periodEnd).
func Allocate(b *domain.Booking, paid float64, periodStart, periodEnd domain.Date) float64 {
	n := TotalNights(b.StartDate, b.EndDate)
	if n <= 0 || paid <= 0 {
		return 0
	}
	nights := NightsInPeriod(b.StartDate, b.EndDate, periodStart, periodEnd)
	if nights == 0 {
		return 0
	}
	return paid / float64(n) * float64(nights)
}

// earning is a booking that contributes revenue, with its paid amount resolved once.
type earning struct {
	booking *domain.Booking
	paid    float64
}

// earnings keeps the active bookings that have a positive paid amount,
// preserving ledger order so float sums are reproducible.
func earnings(bookings []domain.Booking) []earning {
	out := make([]earning, 0, len(bookings))
	for i := range bookings {
		b := &bookings[i]
		if !b.Status.Active() {
			continue
		}
		paid := ResolvePaid(b, b.Payments)
		if paid <= 0 {
			continue
		}
		out = append(out, earning{booking: b, paid: paid})
	}
	return out
}

func incomeFor(es []earning, p domain.Period, keep func(*domain.Booking) bool) float64 {
	var income float64
	for _, e := range es {
		if keep != nil && !keep(e.booking) {
			continue
		}
		income += Allocate(e.booking, e.paid, p.Start, p.End)
	}
	return income
}
