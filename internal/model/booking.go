package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the wire and storage format of a calendar date.
const DateLayout = "2006-01-02"

// Date is a calendar date without time-of-day. The zero value is invalid; use
// *Date for optional dates.
type Date struct {
	time.Time
}

// NewDate returns the date of t in UTC, truncated to midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, eris.Wrapf(err, "model: parse date %q", s)
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD" or an RFC 3339 timestamp.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return eris.Wrap(err, "model: decode date")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Booking is the canonical booking record produced by ingestion. Every field
// except BookingID is optional.
type Booking struct {
	BookingID      string  `json:"booking_id"`
	BookingDate    *Date   `json:"booking_date"`
	POL            *string `json:"pol"`
	POD            *string `json:"pod"`
	Lane           *string `json:"lane"`
	ContainerState *string `json:"container_state"`
	Bundle         *string `json:"bundle"`
}

// Features are the calendar fields derived from a booking date. All fields are
// nil when the booking has no date.
type Features struct {
	Year      *int  `json:"year"`
	Month     *int  `json:"month"`
	Day       *int  `json:"day"`
	DayOfWeek *int  `json:"day_of_week"` // Monday=0
	IsWeekend *bool `json:"is_weekend"`
}

// ScoredBooking is a booking enriched with both model outputs. Rows are never
// updated once persisted.
type ScoredBooking struct {
	Booking

	ID                     int64     `json:"id,omitempty"`
	BatchID                string    `json:"batch_id,omitempty"`
	CancelProbability      float64   `json:"cancel_probability"`
	CancelRisk             RiskLabel `json:"cancel_risk"`
	BrokenRouteProbability float64   `json:"broken_route_probability"`
	BrokenRouteRisk        RiskLabel `json:"broken_route_risk"`
	CreatedAt              time.Time `json:"created_at"`
}

// Str dereferences an optional string, returning "" for nil.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// StrPtr returns a pointer to s, or nil when s is blank.
func StrPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// DatePtr returns a pointer to a copy of d.
func DatePtr(d Date) *Date {
	return &d
}
