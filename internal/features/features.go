// Package features derives model inputs from canonical booking records. The
// same Prepare function feeds both the exported training matrix and live
// scoring.
package features

import (
	"strconv"
	"time"

	"github.com/sells-group/booking-risk/internal/model"
)

// UnknownCategory replaces missing categorical values.
const UnknownCategory = "unknown"

// Categorical and Numerical are the encoded feature columns, in matrix order.
var (
	Categorical = []string{
		model.FieldPOL,
		model.FieldPOD,
		model.FieldLane,
		model.FieldContainerState,
		model.FieldBundle,
	}
	Numerical = []string{"year", "month", "day", "day_of_week"}
)

// Row is one fully imputed feature row.
type Row struct {
	Categorical []string  // aligned with Categorical
	Numerical   []float64 // aligned with Numerical
}

// Engineer derives calendar features from a booking date. Monday is day 0 and
// Saturday/Sunday are weekend days.
func Engineer(d *model.Date) model.Features {
	if d == nil {
		return model.Features{}
	}
	year, month, day := d.Year(), int(d.Month()), d.Day()
	dow := mondayIndex(d.Weekday())
	weekend := dow >= 5
	return model.Features{
		Year:      &year,
		Month:     &month,
		Day:       &day,
		DayOfWeek: &dow,
		IsWeekend: &weekend,
	}
}

func mondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// Prepare engineers and imputes one booking: missing categories become
// UnknownCategory and missing numeric features become 0.
func Prepare(b model.Booking) Row {
	f := Engineer(b.BookingDate)

	row := Row{
		Categorical: make([]string, len(Categorical)),
		Numerical:   make([]float64, len(Numerical)),
	}
	for i, name := range Categorical {
		row.Categorical[i] = UnknownCategory
		if v := b.Categorical(name); v != nil && *v != "" {
			row.Categorical[i] = *v
		}
	}
	for i, v := range []*int{f.Year, f.Month, f.Day, f.DayOfWeek} {
		if v != nil {
			row.Numerical[i] = float64(*v)
		}
	}
	return row
}

// PrepareAll runs Prepare over a batch, preserving order.
func PrepareAll(bookings []model.Booking) []Row {
	rows := make([]Row, len(bookings))
	for i, b := range bookings {
		rows[i] = Prepare(b)
	}
	return rows
}

// Header returns the column names of a training matrix row.
func Header() []string {
	h := make([]string, 0, len(Categorical)+len(Numerical))
	h = append(h, Categorical...)
	return append(h, Numerical...)
}

// Strings renders the row in Header order.
func (r Row) Strings() []string {
	out := make([]string, 0, len(r.Categorical)+len(r.Numerical))
	out = append(out, r.Categorical...)
	for _, v := range r.Numerical {
		out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return out
}
