package revenue

import (
	"sort"

	"github.com/boddenberg/hatacrm/internal/domain"
)

// Aggregate is one cache entry produced by a refresh.
type Aggregate struct {
	Key   string
	Value any
}

// BuildYear computes every aggregate of the year from the ledger, in the
// order of domain.YearCacheKeys.
func BuildYear(year int, l *domain.Ledger) []Aggregate {
	es := earnings(l.Bookings)

	out := make([]Aggregate, 0, 27)
	out = append(out, Aggregate{
		Key:   domain.CacheKey(domain.ReportMonthly, year, 0),
		Value: buildMonthly(year, es, l.Expenses),
	})
	for m := 0; m <= 12; m++ {
		out = append(out, Aggregate{
			Key:   domain.CacheKey(domain.ReportByApartment, year, m),
			Value: buildByApartment(domain.ReportPeriod(year, m), es, l),
		})
	}
	for m := 0; m <= 12; m++ {
		out = append(out, Aggregate{
			Key:   domain.CacheKey(domain.ReportExpensesByCategory, year, m),
			Value: BuildExpensesByCategory(domain.ReportPeriod(year, m), l.Expenses),
		})
	}
	return out
}

// BuildMonthly computes income, expenses and balance for each month of the year.
func BuildMonthly(year int, l *domain.Ledger) *domain.MonthlyReport {
	return buildMonthly(year, earnings(l.Bookings), l.Expenses)
}

func buildMonthly(year int, es []earning, expenses []domain.Expense) *domain.MonthlyReport {
	r := &domain.MonthlyReport{Year: year, Months: make([]domain.MonthSummary, 0, 12)}
	for m := 1; m <= 12; m++ {
		p := domain.MonthPeriod(year, m)
		income := incomeFor(es, p, nil)
		spent := sumExpenses(expenses, p, nil)
		r.Months = append(r.Months, domain.MonthSummary{
			Month:    m,
			Year:     year,
			Income:   income,
			Expenses: spent,
			Balance:  income - spent,
		})
	}
	for _, ms := range r.Months {
		r.TotalIncome += ms.Income
		r.TotalExpenses += ms.Expenses
	}
	r.TotalBalance = r.TotalIncome - r.TotalExpenses
	return r
}

// BuildByApartment computes per-apartment totals for the period. Only the
// ledger's apartments (those not deleted) get a row; expenses without an
// apartment land in NoApartment.
func BuildByApartment(p domain.Period, l *domain.Ledger) *domain.ApartmentReport {
	return buildByApartment(p, earnings(l.Bookings), l)
}

func buildByApartment(p domain.Period, es []earning, l *domain.Ledger) *domain.ApartmentReport {
	apartments := make([]domain.Apartment, len(l.Apartments))
	copy(apartments, l.Apartments)
	sort.SliceStable(apartments, func(i, j int) bool {
		if apartments[i].Name != apartments[j].Name {
			return apartments[i].Name < apartments[j].Name
		}
		return apartments[i].ID < apartments[j].ID
	})

	r := &domain.ApartmentReport{Apartments: make([]domain.ApartmentSummary, 0, len(apartments))}
	for _, a := range apartments {
		id := a.ID
		income := incomeFor(es, p, func(b *domain.Booking) bool { return b.ApartmentID == id })
		spent := sumExpenses(l.Expenses, p, func(e *domain.Expense) bool {
			return e.ApartmentID != nil && *e.ApartmentID == id
		})
		r.Apartments = append(r.Apartments, domain.ApartmentSummary{
			ID:       a.ID,
			Name:     a.Name,
			Income:   income,
			Expenses: spent,
			Balance:  income - spent,
		})
		r.TotalIncome += income
		r.TotalExpenses += spent
	}

	unattributed := sumExpenses(l.Expenses, p, func(e *domain.Expense) bool { return e.ApartmentID == nil })
	r.NoApartment = domain.UnattributedSummary{
		Income:   0,
		Expenses: unattributed,
		Balance:  0 - unattributed, // not -unattributed: that encodes as -0
	}
	r.TotalExpenses += unattributed
	r.TotalBalance = r.TotalIncome - r.TotalExpenses
	return r
}

// BuildExpensesByCategory groups the period's expenses by category, largest first.
// Ties are ordered by category name.
func BuildExpensesByCategory(p domain.Period, expenses []domain.Expense) []domain.CategoryAmount {
	totals := make(map[string]float64)
	for i := range expenses {
		e := &expenses[i]
		if !p.Contains(e.Date) {
			continue
		}
		totals[e.Category] += e.Amount
	}

	out := make([]domain.CategoryAmount, 0, len(totals))
	for c, amount := range totals {
		out = append(out, domain.CategoryAmount{Category: c, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func sumExpenses(expenses []domain.Expense, p domain.Period, keep func(*domain.Expense) bool) float64 {
	var total float64
	for i := range expenses {
		e := &expenses[i]
		if !p.Contains(e.Date) {
			continue
		}
		if keep != nil && !keep(e) {
			continue
		}
		total += e.Amount
	}
	return total
}
