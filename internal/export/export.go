// Package export writes scored bookings and feature matrices as CSV or XLSX.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/booking-risk/internal/features"
	"github.com/sells-group/booking-risk/internal/model"
)

// Format is an output file format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// FormatOf picks the output format from a file extension.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "csv":
		return CSV, nil
	case "xlsx":
		return XLSX, nil
	default:
		return "", &model.UnsupportedFormatError{Format: ext}
	}
}

// Table is a header plus typed rows. Cells are string, float64, int or nil.
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]any
}

// ScoredHeader is the column order of a scored booking export.
var ScoredHeader = []string{
	model.FieldBookingID,
	model.FieldBookingDate,
	model.FieldPOL,
	model.FieldPOD,
	model.FieldLane,
	model.FieldContainerState,
	model.FieldBundle,
	"cancel_probability",
	"cancel_risk",
	"broken_route_probability",
	"broken_route_risk",
}

// Scored builds the export table of scored bookings.
func Scored(rows []model.ScoredBooking) Table {
	t := Table{Sheet: "bookings", Header: ScoredHeader, Rows: make([][]any, len(rows))}
	for i, r := range rows {
		var date any
		if r.BookingDate != nil {
			date = r.BookingDate.String()
		}
		t.Rows[i] = []any{
			r.BookingID,
			date,
			optional(r.POL),
			optional(r.POD),
			optional(r.Lane),
			optional(r.ContainerState),
			optional(r.Bundle),
			r.CancelProbability,
			string(r.CancelRisk),
			r.BrokenRouteProbability,
			string(r.BrokenRouteRisk),
		}
	}
	return t
}

// Features builds the training matrix of bookings: the booking id followed by
// the prepared feature columns.
func Features(bookings []model.Booking) Table {
	header := append([]string{model.FieldBookingID}, features.Header()...)
	t := Table{Sheet: "features", Header: header, Rows: make([][]any, len(bookings))}
	for i, b := range bookings {
		row := features.Prepare(b)
		cells := make([]any, 0, len(header))
		cells = append(cells, b.BookingID)
		for _, c := range row.Categorical {
			cells = append(cells, c)
		}
		for _, v := range row.Numerical {
			cells = append(cells, v)
		}
		t.Rows[i] = cells
	}
	return t
}

func optional(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func cellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case int:
		return strconv.Itoa(c)
	default:
		return ""
	}
}

// WriteCSV writes t with a header row. Nil cells are written empty.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	record := make([]string, len(t.Header))
	for i, row := range t.Rows {
		for j := range record {
			record[j] = ""
			if j < len(row) {
				record[j] = cellString(row[j])
			}
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrapf(err, "export: write csv row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes t to a single-sheet workbook with a bold, frozen header.
func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return eris.Wrap(err, "export: name sheet")
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return eris.Wrap(err, "export: open stream writer")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return eris.Wrap(err, "export: header style")
	}
	if err := sw.SetPanes(&excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return eris.Wrap(err, "export: freeze header")
	}

	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return eris.Wrap(err, "export: write xlsx header")
	}
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return eris.Wrapf(err, "export: cell name for row %d", i)
		}
		if err := sw.SetRow(cell, row); err != nil {
			return eris.Wrapf(err, "export: write xlsx row %d", i)
		}
	}
	if err := sw.Flush(); err != nil {
		return eris.Wrap(err, "export: flush xlsx")
	}
	_, err = f.WriteTo(w)
	return eris.Wrap(err, "export: write xlsx")
}

// Write writes t in format.
func Write(w io.Writer, format Format, t Table) error {
	switch format {
	case CSV:
		return WriteCSV(w, t)
	case XLSX:
		return WriteXLSX(w, t)
	default:
		return &model.UnsupportedFormatError{Format: string(format)}
	}
}

// ToFile writes t to path in the format implied by its extension.
func ToFile(path string, t Table) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := Write(out, format, t); err != nil {
		_ = out.Close()
		return err
	}
	return eris.Wrapf(out.Close(), "export: close %s", path)
}
