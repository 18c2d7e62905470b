package domain

import (
	"fmt"
	"time"
)

// Period is a half-open calendar range [Start, End).
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Valid reports whether both bounds are set and End is after Start.
func (p Period) Valid() bool {
	return !p.Start.IsZero() && !p.End.IsZero() && p.End.After(p.Start)
}

// Overlaps reports whether two half-open ranges intersect.
// Ranges that only touch (one's End equals the other's Start) do not overlap.
func (p Period) Overlaps(o Period) bool {
	return p.Start.Before(o.End) && p.End.After(o.Start)
}

// Contains reports whether d falls inside [Start, End).
func (p Period) Contains(d Date) bool {
	return !d.IsZero() && !d.Before(p.Start) && d.Before(p.End)
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s)", p.Start, p.End)
}

// YearPeriod returns [Y-01-01, Y+1-01-01).
func YearPeriod(year int) Period {
	start := NewDate(year, time.January, 1)
	return Period{Start: start, End: start.AddMonths(12)}
}

// MonthPeriod returns the calendar month as a half-open range.
func MonthPeriod(year, month int) Period {
	start := NewDate(year, time.Month(month), 1)
	return Period{Start: start, End: start.AddMonths(1)}
}

// ReportPeriod resolves (year, month) into a period; month 0 means the whole year.
func ReportPeriod(year, month int) Period {
	if month == 0 {
		return YearPeriod(year)
	}
	return MonthPeriod(year, month)
}

const (
	MinYear = 1970
	MaxYear = 9999
)

// ValidateYear rejects years outside the supported range.
func ValidateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return &ErrValidation{Field: "year", Message: fmt.Sprintf("must be between %d and %d", MinYear, MaxYear)}
	}
	return nil
}

// ValidateMonth accepts 0 (no month) or 1..12.
func ValidateMonth(month int) error {
	if month < 0 || month > 12 {
		return &ErrValidation{Field: "month", Message: "must be between 1 and 12"}
	}
	return nil
}
