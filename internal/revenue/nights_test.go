package revenue_test

import (
	"testing"
	"time"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/revenue"

	"github.com/stretchr/testify/assert"
)

func d(s string) domain.Date {
	v, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestTotalNights(t *testing.T) {
	tests := []struct {
		name       string
		start, end domain.Date
		want       int
	}{
		{"three nights across month end", d("2024-02-28"), d("2024-03-02"), 3},
		{"leap day counts", d("2024-02-27"), d("2024-03-02"), 4},
		{"single night", d("2024-05-01"), d("2024-05-02"), 1},
		{"across new year", d("2023-12-30"), d("2024-01-02"), 3},
		{"same day", d("2024-05-01"), d("2024-05-01"), 0},
		{"end before start", d("2024-05-05"), d("2024-05-01"), 0},
		{"missing start", domain.Date{}, d("2024-05-01"), 0},
		{"missing end", d("2024-05-01"), domain.Date{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, revenue.TotalNights(tt.start, tt.end))
		})
	}
}

func TestNightsInPeriod(t *testing.T) {
	start, end := d("2024-02-28"), d("2024-03-02")

	feb := domain.MonthPeriod(2024, 2)
	mar := domain.MonthPeriod(2024, 3)
	apr := domain.MonthPeriod(2024, 4)

	assert.Equal(t, 2, revenue.NightsInPeriod(start, end, feb.Start, feb.End))
	assert.Equal(t, 1, revenue.NightsInPeriod(start, end, mar.Start, mar.End))
	assert.Equal(t, 0, revenue.NightsInPeriod(start, end, apr.Start, apr.End))

	// checkout on the first of the month is not a night of that month
	assert.Equal(t, 0, revenue.NightsInPeriod(d("2024-01-30"), d("2024-02-01"), feb.Start, feb.End))

	assert.Equal(t, 0, revenue.NightsInPeriod(end, start, feb.Start, feb.End))
	assert.Equal(t, 0, revenue.NightsInPeriod(start, end, domain.Date{}, feb.End))
}

func TestNightsInPeriod_MonthsSumToTotal(t *testing.T) {
	stays := [][2]string{
		{"2024-01-01", "2024-12-31"},
		{"2024-02-28", "2024-03-02"},
		{"2024-02-28", "2024-03-01"}, // leap day
		{"2023-02-28", "2023-03-01"},
		{"2024-06-15", "2024-08-20"},
		{"2024-11-30", "2024-12-01"},
	}
	for _, s := range stays {
		start, end := d(s[0]), d(s[1])
		sum := 0
		for m := 1; m <= 12; m++ {
			p := domain.MonthPeriod(start.Year(), m)
			sum += revenue.NightsInPeriod(start, end, p.Start, p.End)
		}
		assert.Equal(t, revenue.TotalNights(start, end), sum, "stay %s..%s", s[0], s[1])
	}
}

func TestNightsInPeriod_YearBoundary(t *testing.T) {
	start, end := d("2023-12-30"), d("2024-01-02")
	y23 := domain.YearPeriod(2023)
	y24 := domain.YearPeriod(2024)

	assert.Equal(t, 2, revenue.NightsInPeriod(start, end, y23.Start, y23.End))
	assert.Equal(t, 1, revenue.NightsInPeriod(start, end, y24.Start, y24.End))
	assert.Equal(t, time.January, y24.Start.Month())
}
