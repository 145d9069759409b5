package model

import (
	"fmt"
	"strings"
)

// Filter is an optional conjunction of constraints over scored bookings. The
// zero value matches every row.
type Filter struct {
	StartDate *Date  `json:"start_date,omitempty"` // inclusive
	EndDate   *Date  `json:"end_date,omitempty"`   // inclusive
	Lane      string `json:"lane,omitempty"`
	POL       string `json:"pol,omitempty"`
	POD       string `json:"pod,omitempty"`
	Month     int    `json:"month,omitempty"` // 1-12
	Year      int    `json:"year,omitempty"`
}

// IsEmpty reports whether the filter has no constraints.
func (f Filter) IsEmpty() bool {
	return f.StartDate == nil && f.EndDate == nil && f.Lane == "" && f.POL == "" &&
		f.POD == "" && f.Month == 0 && f.Year == 0
}

// Validate rejects out-of-range months and years and inverted date ranges.
func (f Filter) Validate() error {
	var cols []string
	var reasons []string
	if f.Month < 0 || f.Month > 12 {
		cols = append(cols, "month")
		reasons = append(reasons, fmt.Sprintf("month %d out of range 1-12", f.Month))
	}
	if f.Year < 0 {
		cols = append(cols, "year")
		reasons = append(reasons, fmt.Sprintf("year %d is negative", f.Year))
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		cols = append(cols, "start_date", "end_date")
		reasons = append(reasons, fmt.Sprintf("start_date %s after end_date %s", f.StartDate, f.EndDate))
	}
	if len(reasons) > 0 {
		return &ValidationError{Reason: "invalid filter: " + strings.Join(reasons, "; "), Columns: cols}
	}
	return nil
}

// constrainsDate reports whether any date-derived constraint is set.
func (f Filter) constrainsDate() bool {
	return f.StartDate != nil || f.EndDate != nil || f.Month != 0 || f.Year != 0
}

// Match reports whether a scored booking satisfies every constraint. Rows
// without a booking date never match a date, month or year constraint.
func (f Filter) Match(b ScoredBooking) bool {
	if f.Lane != "" && Str(b.Lane) != f.Lane {
		return false
	}
	if f.POL != "" && Str(b.POL) != f.POL {
		return false
	}
	if f.POD != "" && Str(b.POD) != f.POD {
		return false
	}
	if !f.constrainsDate() {
		return true
	}
	if b.BookingDate == nil {
		return false
	}
	d := *b.BookingDate
	if f.StartDate != nil && d.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && d.After(*f.EndDate) {
		return false
	}
	if f.Month != 0 && int(d.Month()) != f.Month {
		return false
	}
	if f.Year != 0 && d.Year() != f.Year {
		return false
	}
	return true
}

// Key returns a stable string form of the filter, used for cache keys.
func (f Filter) Key() string {
	var b strings.Builder
	if f.StartDate != nil {
		fmt.Fprintf(&b, "start=%s;", f.StartDate)
	}
	if f.EndDate != nil {
		fmt.Fprintf(&b, "end=%s;", f.EndDate)
	}
	if f.Lane != "" {
		fmt.Fprintf(&b, "lane=%s;", f.Lane)
	}
	if f.POL != "" {
		fmt.Fprintf(&b, "pol=%s;", f.POL)
	}
	if f.POD != "" {
		fmt.Fprintf(&b, "pod=%s;", f.POD)
	}
	if f.Month != 0 {
		fmt.Fprintf(&b, "month=%d;", f.Month)
	}
	if f.Year != 0 {
		fmt.Fprintf(&b, "year=%d;", f.Year)
	}
	if b.Len() == 0 {
		return "all"
	}
	return b.String()
}
