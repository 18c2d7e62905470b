package domain

import (
	"fmt"
	"time"
)

// ============================================================
// Analytics reports (cached payloads)
// ============================================================

// MonthSummary is one month of the monthly report.
type MonthSummary struct {
	Month    int     `json:"month"`
	Year     int     `json:"year"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Balance  float64 `json:"balance"`
}

// MonthlyReport is served by GET /api/analytics/monthly.
type MonthlyReport struct {
	Year          int            `json:"year"`
	Months        []MonthSummary `json:"months"`
	TotalIncome   float64        `json:"totalIncome"`
	TotalExpenses float64        `json:"totalExpenses"`
	TotalBalance  float64        `json:"totalBalance"`
}

// EmptyMonthlyReport is what readers get for a year that was never refreshed.
func EmptyMonthlyReport(year int) *MonthlyReport {
	r := &MonthlyReport{Year: year, Months: make([]MonthSummary, 12)}
	for i := range r.Months {
		r.Months[i] = MonthSummary{Month: i + 1, Year: year}
	}
	return r
}

// ApartmentSummary is one apartment row of the per-apartment report.
type ApartmentSummary struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Balance  float64 `json:"balance"`
}

// UnattributedSummary holds expenses booked without an apartment. Income is always 0.
type UnattributedSummary struct {
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Balance  float64 `json:"balance"`
}

// ApartmentReport is served by GET /api/analytics/by-apartment.
type ApartmentReport struct {
	Apartments    []ApartmentSummary  `json:"apartments"`
	NoApartment   UnattributedSummary `json:"noApartment"`
	TotalIncome   float64             `json:"totalIncome"`
	TotalExpenses float64             `json:"totalExpenses"`
	TotalBalance  float64             `json:"totalBalance"`
}

// EmptyApartmentReport is what readers get for a period that was never refreshed.
func EmptyApartmentReport() *ApartmentReport {
	return &ApartmentReport{Apartments: []ApartmentSummary{}}
}

// CategoryAmount is one row of the expenses-by-category report.
type CategoryAmount struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// ============================================================
// Aggregate cache keys
// ============================================================

// ReportKind names one family of cached aggregates.
type ReportKind string

const (
	ReportMonthly            ReportKind = "monthly"
	ReportByApartment        ReportKind = "by_apartment"
	ReportExpensesByCategory ReportKind = "expenses_by_category"
)

// CacheKey derives the aggregate cache key of (kind, year, month).
// month 0 addresses the whole year.
func CacheKey(kind ReportKind, year, month int) string {
	if month == 0 {
		return fmt.Sprintf("%s_%d", kind, year)
	}
	return fmt.Sprintf("%s_%d_%d", kind, year, month)
}

// YearCacheKeys lists every key a refresh of the year writes, in write order.
func YearCacheKeys(year int) []string {
	keys := []string{CacheKey(ReportMonthly, year, 0)}
	for _, kind := range []ReportKind{ReportByApartment, ReportExpensesByCategory} {
		keys = append(keys, CacheKey(kind, year, 0))
		for m := 1; m <= 12; m++ {
			keys = append(keys, CacheKey(kind, year, m))
		}
	}
	return keys
}

// ============================================================
// Refresh
// ============================================================

// Ledger is the consistent snapshot a refresh computes from: active
// bookings (with payments) overlapping the year, the year's expenses,
// and the apartments that are not deleted.
type Ledger struct {
	Bookings   []Booking
	Expenses   []Expense
	Apartments []Apartment
}

// RefreshRequest is the body of POST /api/analytics/refresh.
type RefreshRequest struct {
	Year int `json:"year"`
}

// RefreshResult is returned once every key of the year has been written.
type RefreshResult struct {
	OK         bool     `json:"ok"`
	Year       int      `json:"year"`
	Keys       []string `json:"keys"`
	DurationMs int64    `json:"durationMs"`
}

// RefreshJob is an asynchronous refresh request carried over the message broker.
type RefreshJob struct {
	ID          string    `json:"id"`
	Year        int       `json:"year"`
	RequestedAt time.Time `json:"requested_at"`
}

// RefreshAccepted is returned when a refresh was queued instead of run inline.
type RefreshAccepted struct {
	JobID  string `json:"jobId"`
	Year   int    `json:"year"`
	Status string `json:"status"`
}
