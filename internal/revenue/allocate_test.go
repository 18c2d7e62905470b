package revenue_test

import (
	"testing"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/revenue"

	"github.com/stretchr/testify/assert"
)

func TestResolvePaid_LegacyFlags(t *testing.T) {
	b := &domain.Booking{TotalPrice: 3000, Prepayment: 1000}

	assert.Equal(t, 0.0, revenue.ResolvePaid(b, nil))

	b.PrepaymentPaid = true
	assert.Equal(t, 1000.0, revenue.ResolvePaid(b, nil))

	b.FullAmountPaid = true
	assert.Equal(t, 3000.0, revenue.ResolvePaid(b, nil))

	b.PrepaymentPaid = false
	assert.Equal(t, 2000.0, revenue.ResolvePaid(b, nil))
}

func TestResolvePaid_PaymentsSupersedeFlags(t *testing.T) {
	b := &domain.Booking{TotalPrice: 3000, Prepayment: 1000, PrepaymentPaid: true, FullAmountPaid: true}

	payments := []domain.Payment{
		{Type: domain.PaymentPrepayment, Amount: 500, Paid: true},
		{Type: domain.PaymentMain, Amount: 2000, Paid: false},
		{Type: domain.PaymentCleaning, Amount: 150, Paid: true},
	}
	assert.Equal(t, 650.0, revenue.ResolvePaid(b, payments))

	// a single unpaid row still overrides the flags
	unpaid := []domain.Payment{{Type: domain.PaymentMain, Amount: 3000}}
	assert.Equal(t, 0.0, revenue.ResolvePaid(b, unpaid))
}

func TestAllocate_MonthBoundarySplit(t *testing.T) {
	b := &domain.Booking{StartDate: d("2024-02-28"), EndDate: d("2024-03-02")}

	feb := domain.MonthPeriod(2024, 2)
	mar := domain.MonthPeriod(2024, 3)

	assert.InDelta(t, 2000.0, revenue.Allocate(b, 3000, feb.Start, feb.End), 1e-9)
	assert.InDelta(t, 1000.0, revenue.Allocate(b, 3000, mar.Start, mar.End), 1e-9)
}

func TestAllocate_ZeroCases(t *testing.T) {
	p := domain.MonthPeriod(2024, 5)

	invalid := &domain.Booking{StartDate: d("2024-05-05"), EndDate: d("2024-05-01")}
	assert.Equal(t, 0.0, revenue.Allocate(invalid, 1000, p.Start, p.End))

	unpaid := &domain.Booking{StartDate: d("2024-05-01"), EndDate: d("2024-05-05")}
	assert.Equal(t, 0.0, revenue.Allocate(unpaid, 0, p.Start, p.End))

	outside := &domain.Booking{StartDate: d("2024-07-01"), EndDate: d("2024-07-05")}
	assert.Equal(t, 0.0, revenue.Allocate(outside, 1000, p.Start, p.End))
}

func TestAllocate_ConservesPaidAmount(t *testing.T) {
	stays := [][2]string{
		{"2024-01-15", "2024-04-02"},
		{"2024-02-28", "2024-03-02"},
		{"2024-12-20", "2025-01-07"},
	}
	const paid = 1234.56
	for _, s := range stays {
		b := &domain.Booking{StartDate: d(s[0]), EndDate: d(s[1])}
		var sum float64
		for y := b.StartDate.Year(); y <= b.EndDate.Year(); y++ {
			for m := 1; m <= 12; m++ {
				p := domain.MonthPeriod(y, m)
				sum += revenue.Allocate(b, paid, p.Start, p.End)
			}
		}
		assert.InDelta(t, paid, sum, 1e-6, "stay %s..%s", s[0], s[1])
	}
}
