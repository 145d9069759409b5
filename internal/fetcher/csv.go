package fetcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sniffCandidates are the delimiters tried on the header line, in tie-break order.
var sniffCandidates = []rune{',', ';', '\t', '|'}

// CSVRecord is one parsed row and the line it started on.
type CSVRecord struct {
	Line   int
	Fields []string
}

// CSVOptions configures StreamCSV.
type CSVOptions struct {
	Delimiter rune // 0 sniffs the delimiter from the first line
	TrimSpace bool
}

// DecodeText strips a UTF-8 byte order mark and converts UTF-16 input (detected
// by its BOM) to UTF-8. Input without a BOM passes through unchanged.
func DecodeText(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(transform.Nop))
}

// SniffDelimiter picks the candidate delimiter occurring most often in line,
// ignoring quoted text. It returns ',' when none occurs.
func SniffDelimiter(line string) rune {
	counts := make(map[rune]int, len(sniffCandidates))
	quoted := false
	for _, c := range line {
		if c == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			counts[c]++
		}
	}
	best := ','
	for _, c := range sniffCandidates {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// StreamCSV parses delimited text on a goroutine and sends every record,
// header included, to the returned channel. Rows may have any width. The error
// channel receives at most one error; both channels are closed when done.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan CSVRecord, <-chan error) {
	recCh := make(chan CSVRecord, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		br := bufio.NewReader(DecodeText(r))
		delim := opts.Delimiter
		if delim == 0 {
			peek, _ := br.Peek(4096)
			first, _, _ := bytes.Cut(peek, []byte{'\n'})
			delim = SniffDelimiter(string(first))
		}

		reader := csv.NewReader(br)
		reader.Comma = delim
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		for {
			if err := ctx.Err(); err != nil {
				errCh <- eris.Wrap(err, "csv: context cancelled")
				return
			}

			fields, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			if opts.TrimSpace {
				for i := range fields {
					fields[i] = strings.TrimSpace(fields[i])
				}
			}
			line, _ := reader.FieldPos(0)

			select {
			case recCh <- CSVRecord{Line: line, Fields: fields}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return recCh, errCh
}

// ReadCSVTable reads a whole delimited stream with trimmed fields. The first
// record is the header. A zero delimiter is sniffed.
func ReadCSVTable(ctx context.Context, r io.Reader, delimiter rune) (header []string, rows [][]string, err error) {
	recCh, errCh := StreamCSV(ctx, r, CSVOptions{Delimiter: delimiter, TrimSpace: true})

	for rec := range recCh {
		if header == nil {
			header = rec.Fields
			continue
		}
		rows = append(rows, rec.Fields)
	}
	if err := <-errCh; err != nil {
		return nil, nil, err
	}
	return header, rows, nil
}
