// Package ingest reads booking files in any supported format and normalizes
// them onto the canonical booking schema.
package ingest

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/booking-risk/internal/fetcher"
	"github.com/sells-group/booking-risk/internal/model"
)

// Result is a normalized batch with its validation report.
type Result struct {
	Source   string
	Format   Format
	Bookings []model.Booking
	Report   *model.ValidationReport
}

// Opener resolves a source (path or URL) to a stream and a file name.
type Opener interface {
	Open(ctx context.Context, source string) (io.ReadCloser, string, error)
}

// Ingest reads a named stream and normalizes it. The name's extension selects
// the parser. Errors are UnsupportedFormatError, ValidationError (empty dataset
// or missing required columns) or wrapped read errors.
func Ingest(ctx context.Context, name string, r io.Reader, opts Options) (*Result, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}

	table, err := ReadTable(ctx, format, r)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", name)
	}

	bookings, report, err := Normalize(name, format, table, opts)
	if err != nil {
		return &Result{Source: name, Format: format, Report: report}, err
	}

	zap.L().Info("ingest: normalized",
		zap.String("source", name),
		zap.String("format", string(format)),
		zap.Int("rows", report.TotalRows),
		zap.Int("ignored_columns", len(report.IgnoredColumns)),
		zap.Int("unparsed_dates", report.UnparsedDates),
	)

	return &Result{Source: name, Format: format, Bookings: bookings, Report: report}, nil
}

// IngestSource opens a path or URL through opener and ingests it.
func IngestSource(ctx context.Context, opener Opener, source string, opts Options) (*Result, error) {
	if _, err := DetectFormat(fetcher.SourceName(source)); err != nil {
		return nil, err
	}

	rc, name, err := opener.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	res, err := Ingest(ctx, name, rc, opts)
	if res != nil {
		res.Source = source
		if res.Report != nil {
			res.Report.Source = source
		}
	}
	return res, err
}
