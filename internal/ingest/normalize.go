package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/booking-risk/internal/model"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"02-Jan-2006",
	"2006-01-02 15:04:05.000000",
}

// excelEpoch is day zero of the 1900 spreadsheet date system.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseBookingDate parses a date cell. Spreadsheet input also accepts serial
// day numbers. Unparseable values yield nil.
func ParseBookingDate(s string, format Format) *model.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.DatePtr(model.DateOf(t))
		}
	}
	if format == FormatXLSX {
		if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial < 2958466 {
			days := int(math.Floor(serial))
			return model.DatePtr(model.DateOf(excelEpoch.AddDate(0, 0, days)))
		}
	}
	return nil
}

// Options controls normalization.
type Options struct {
	// RequiredColumns are canonical names that must be bound by a source column.
	RequiredColumns []string
}

// Normalize maps a raw table onto canonical booking records. Source columns are
// matched through Synonyms; when several map to the same canonical name the
// first one wins. Blank rows are skipped. A missing or blank booking id is
// replaced by the row's 0-based position.
func Normalize(source string, format Format, table *Table, opts Options) ([]model.Booking, *model.ValidationReport, error) {
	report := &model.ValidationReport{
		Source:         source,
		Columns:        append([]string{}, table.Header...),
		TotalColumns:   len(table.Header),
		MappedColumns:  make(map[string]string),
		IgnoredColumns: []string{},
		DroppedColumns: []string{},
		MissingColumns: []string{},
		MissingValues:  make(map[string]string),
		Status:         model.ValidationPassed,
	}

	bound := make(map[string]int, len(model.CanonicalFields))
	for i, h := range table.Header {
		canonical, ok := CanonicalName(h)
		if !ok {
			report.IgnoredColumns = append(report.IgnoredColumns, h)
			continue
		}
		if _, taken := bound[canonical]; taken {
			report.DroppedColumns = append(report.DroppedColumns, h)
			continue
		}
		bound[canonical] = i
		report.MappedColumns[h] = canonical
	}
	for _, f := range model.CanonicalFields {
		if _, ok := bound[f]; !ok {
			report.MissingColumns = append(report.MissingColumns, f)
		}
	}

	missing := make(map[string]int, len(bound))
	bookings := make([]model.Booking, 0, len(table.Rows))
	for _, row := range table.Rows {
		if blankRow(row) {
			continue
		}
		idx := len(bookings)
		cell := func(field string) string {
			col, ok := bound[field]
			if !ok || col >= len(row) {
				return ""
			}
			v := strings.TrimSpace(row[col])
			if v == "" {
				missing[field]++
			}
			return v
		}

		b := model.Booking{
			BookingID:      cell(model.FieldBookingID),
			POL:            model.StrPtr(cell(model.FieldPOL)),
			POD:            model.StrPtr(cell(model.FieldPOD)),
			Lane:           model.StrPtr(cell(model.FieldLane)),
			ContainerState: model.StrPtr(cell(model.FieldContainerState)),
			Bundle:         model.StrPtr(cell(model.FieldBundle)),
		}
		if raw := cell(model.FieldBookingDate); raw != "" {
			b.BookingDate = ParseBookingDate(raw, format)
			if b.BookingDate == nil {
				report.UnparsedDates++
			}
		}
		if b.BookingID == "" {
			b.BookingID = strconv.Itoa(idx)
			report.SynthesizedIDs++
		}
		bookings = append(bookings, b)
	}

	report.TotalRows = len(bookings)
	for field := range bound {
		pct := 0.0
		if report.TotalRows > 0 {
			pct = float64(missing[field]) / float64(report.TotalRows) * 100
		}
		report.MissingValues[field] = fmt.Sprintf("%.2f%%", pct)
	}

	if report.TotalRows == 0 {
		report.Status = model.ValidationFailed
		return nil, report, &model.ValidationError{Reason: "empty dataset", Report: report}
	}

	var absent []string
	for _, f := range opts.RequiredColumns {
		if _, ok := bound[f]; !ok {
			absent = append(absent, f)
		}
	}
	if len(absent) > 0 {
		report.Status = model.ValidationFailed
		return nil, report, &model.ValidationError{Reason: "missing required columns", Columns: absent, Report: report}
	}

	return bookings, report, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
