package revenue_test

import (
	"encoding/json"
	"testing"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/revenue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aptID(id int64) *int64 { return &id }

func sampleLedger() *domain.Ledger {
	return &domain.Ledger{
		Apartments: []domain.Apartment{
			{ID: 2, Name: "Sea View"},
			{ID: 1, Name: "City Loft"},
		},
		Bookings: []domain.Booking{
			{
				ID: 10, ApartmentID: 1, Status: domain.BookingConfirmed,
				StartDate: d("2024-02-28"), EndDate: d("2024-03-02"),
				TotalPrice: 3000, FullAmountPaid: true,
			},
			{
				ID: 11, ApartmentID: 2, Status: domain.BookingConfirmed,
				StartDate: d("2024-03-10"), EndDate: d("2024-03-12"),
				TotalPrice: 800, Prepayment: 200,
				Payments: []domain.Payment{
					{Type: domain.PaymentPrepayment, Amount: 200, Paid: true},
					{Type: domain.PaymentMain, Amount: 600, Paid: true},
				},
			},
			{
				ID: 12, ApartmentID: 2, Status: domain.BookingCancelled,
				StartDate: d("2024-03-20"), EndDate: d("2024-03-25"),
				TotalPrice: 5000, FullAmountPaid: true,
			},
			{
				ID: 13, ApartmentID: 1, Status: domain.BookingConfirmed,
				StartDate: d("2024-04-01"), EndDate: d("2024-04-05"),
				TotalPrice: 1000,
			},
			{
				// apartment 3 is deleted: counted monthly, absent from the per-apartment rows
				ID: 14, ApartmentID: 3, Status: domain.BookingCheckedOut,
				StartDate: d("2024-03-01"), EndDate: d("2024-03-02"),
				TotalPrice: 100, FullAmountPaid: true,
			},
		},
		Expenses: []domain.Expense{
			{Category: "util", Amount: 500, Date: d("2024-03-03"), ApartmentID: aptID(1)},
			{Category: "util", Amount: 300, Date: d("2024-03-15"), ApartmentID: aptID(2)},
			{Category: "clean", Amount: 200, Date: d("2024-03-20")},
			{Category: "tax", Amount: 50, Date: d("2024-06-01")},
		},
	}
}

func TestBuildMonthly(t *testing.T) {
	r := revenue.BuildMonthly(2024, sampleLedger())

	require.Len(t, r.Months, 12)
	assert.Equal(t, 2024, r.Year)

	feb, mar, apr, jun := r.Months[1], r.Months[2], r.Months[3], r.Months[5]
	assert.Equal(t, 2, feb.Month)
	assert.InDelta(t, 2000, feb.Income, 1e-9)
	assert.InDelta(t, 1000+800+100, mar.Income, 1e-9)
	assert.InDelta(t, 1000, mar.Expenses, 1e-9)
	assert.InDelta(t, 900, mar.Balance, 1e-9)
	assert.Zero(t, apr.Income, "unpaid booking earns nothing")
	assert.InDelta(t, -50, jun.Balance, 1e-9)

	assert.InDelta(t, 3900, r.TotalIncome, 1e-9)
	assert.InDelta(t, 1050, r.TotalExpenses, 1e-9)
	assert.InDelta(t, 2850, r.TotalBalance, 1e-9)
}

func TestBuildByApartment(t *testing.T) {
	r := revenue.BuildByApartment(domain.MonthPeriod(2024, 3), sampleLedger())

	require.Len(t, r.Apartments, 2)
	assert.Equal(t, "City Loft", r.Apartments[0].Name)
	assert.Equal(t, "Sea View", r.Apartments[1].Name)

	assert.InDelta(t, 1000, r.Apartments[0].Income, 1e-9)
	assert.InDelta(t, 500, r.Apartments[0].Expenses, 1e-9)
	assert.InDelta(t, 500, r.Apartments[0].Balance, 1e-9)
	assert.InDelta(t, 800, r.Apartments[1].Income, 1e-9)
	assert.InDelta(t, 300, r.Apartments[1].Expenses, 1e-9)

	assert.Zero(t, r.NoApartment.Income)
	assert.InDelta(t, 200, r.NoApartment.Expenses, 1e-9)
	assert.InDelta(t, -200, r.NoApartment.Balance, 1e-9)

	assert.InDelta(t, 1800, r.TotalIncome, 1e-9)
	assert.InDelta(t, 1000, r.TotalExpenses, 1e-9)
	assert.InDelta(t, 800, r.TotalBalance, 1e-9)
}

func TestBuildByApartment_NoUnattributedEncodesPositiveZero(t *testing.T) {
	r := revenue.BuildByApartment(domain.MonthPeriod(2024, 1), sampleLedger())

	b, err := json.Marshal(r.NoApartment)
	require.NoError(t, err)
	assert.JSONEq(t, `{"income":0,"expenses":0,"balance":0}`, string(b))
	assert.NotContains(t, string(b), "-0")
}

func TestBuildExpensesByCategory(t *testing.T) {
	got := revenue.BuildExpensesByCategory(domain.MonthPeriod(2024, 3), sampleLedger().Expenses)

	assert.Equal(t, []domain.CategoryAmount{
		{Category: "util", Amount: 800},
		{Category: "clean", Amount: 200},
	}, got)

	empty := revenue.BuildExpensesByCategory(domain.MonthPeriod(2024, 1), sampleLedger().Expenses)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestBuildExpensesByCategory_TiesByName(t *testing.T) {
	expenses := []domain.Expense{
		{Category: "b", Amount: 100, Date: d("2024-01-02")},
		{Category: "a", Amount: 100, Date: d("2024-01-03")},
		{Category: "c", Amount: 300, Date: d("2024-01-04")},
	}
	got := revenue.BuildExpensesByCategory(domain.YearPeriod(2024), expenses)

	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Category)
	assert.Equal(t, "a", got[1].Category)
	assert.Equal(t, "b", got[2].Category)
}

func TestBuildYear_KeysAndIdempotence(t *testing.T) {
	first := revenue.BuildYear(2024, sampleLedger())
	second := revenue.BuildYear(2024, sampleLedger())

	keys := make([]string, len(first))
	for i, a := range first {
		keys[i] = a.Key
	}
	assert.Equal(t, domain.YearCacheKeys(2024), keys)
	assert.Len(t, keys, 27)

	for i := range first {
		a, err := json.Marshal(first[i].Value)
		require.NoError(t, err)
		b, err := json.Marshal(second[i].Value)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), "key %s", first[i].Key)
	}
}

func TestBuildYear_UnpaidPaymentsExcluded(t *testing.T) {
	l := &domain.Ledger{
		Apartments: []domain.Apartment{{ID: 1, Name: "Loft"}},
		Bookings: []domain.Booking{{
			ID: 1, ApartmentID: 1, Status: domain.BookingConfirmed,
			StartDate: d("2024-05-01"), EndDate: d("2024-05-05"),
			TotalPrice: 1000, Prepayment: 300,
		}},
	}
	for _, a := range revenue.BuildYear(2024, l) {
		switch v := a.Value.(type) {
		case *domain.MonthlyReport:
			assert.Zero(t, v.TotalIncome)
		case *domain.ApartmentReport:
			assert.Zero(t, v.TotalIncome, a.Key)
		}
	}
}
