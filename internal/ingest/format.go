package ingest

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/sells-group/booking-risk/internal/fetcher"
	"github.com/sells-group/booking-risk/internal/model"
)

// Format is a recognized input file type.
type Format string

const (
	FormatCSV       Format = "csv"
	FormatTSV       Format = "tsv"
	FormatXLSX      Format = "xlsx"
	FormatJSON      Format = "json"
	FormatJSONLines Format = "jsonl"
)

var extensions = map[string]Format{
	".csv":    FormatCSV,
	".tsv":    FormatTSV,
	".xlsx":   FormatXLSX,
	".xlsm":   FormatXLSX,
	".json":   FormatJSON,
	".jsonl":  FormatJSONLines,
	".ndjson": FormatJSONLines,
}

// DetectFormat maps a file name to its Format by extension, case-insensitively.
func DetectFormat(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	f, ok := extensions[ext]
	if !ok {
		return "", &model.UnsupportedFormatError{Format: ext}
	}
	return f, nil
}

// Table is a raw rectangular input: a header row plus data rows. Rows may be
// shorter or longer than the header.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable parses r according to format.
func ReadTable(ctx context.Context, format Format, r io.Reader) (*Table, error) {
	var (
		header []string
		rows   [][]string
		err    error
	)

	switch format {
	case FormatCSV:
		header, rows, err = fetcher.ReadCSVTable(ctx, r, 0)
	case FormatTSV:
		header, rows, err = fetcher.ReadCSVTable(ctx, r, '\t')
	case FormatJSON:
		header, rows, err = fetcher.ReadJSONTable(ctx, r, false)
	case FormatJSONLines:
		header, rows, err = fetcher.ReadJSONTable(ctx, r, true)
	case FormatXLSX:
		var all [][]string
		all, err = fetcher.ReadXLSXFrom(r, fetcher.XLSXOptions{})
		if err == nil && len(all) > 0 {
			header, rows = all[0], all[1:]
		}
	default:
		return nil, &model.UnsupportedFormatError{Format: string(format)}
	}
	if err != nil {
		return nil, err
	}

	return &Table{Header: header, Rows: rows}, nil
}
