package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// Record is one JSON object flattened to strings, with keys in document order.
// Null values are stored as "".
type Record struct {
	Keys   []string
	Values map[string]string
}

// Get returns the value for key and whether the key was present.
func (r Record) Get(key string) (string, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// DecodeJSONRecords streams the objects of a JSON array ([{...},{...}]) or, when
// lines is true, a sequence of newline-delimited objects.
// Both channels are closed when processing completes.
func DecodeJSONRecords(ctx context.Context, r io.Reader, lines bool) (<-chan Record, <-chan error) {
	outCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(DecodeText(r))

		if !lines {
			tok, err := decoder.Token()
			if err != nil {
				if err == io.EOF {
					return
				}
				errCh <- eris.Wrap(err, "json: read opening token")
				return
			}
			delim, ok := tok.(json.Delim)
			if !ok || delim != '[' {
				errCh <- eris.Errorf("json: expected '[', got %v", tok)
				return
			}
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			rec, err := decodeRecord(decoder)
			if err != nil {
				errCh <- err
				return
			}

			select {
			case outCh <- rec:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		if !lines {
			if _, err := decoder.Token(); err != nil && err != io.EOF {
				errCh <- eris.Wrap(err, "json: read closing token")
			}
		}
	}()

	return outCh, errCh
}

func decodeRecord(decoder *json.Decoder) (Record, error) {
	tok, err := decoder.Token()
	if err != nil {
		return Record{}, eris.Wrap(err, "json: read object")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Record{}, eris.Errorf("json: expected object, got %v", tok)
	}

	rec := Record{Values: make(map[string]string)}
	for decoder.More() {
		keyTok, err := decoder.Token()
		if err != nil {
			return Record{}, eris.Wrap(err, "json: read key")
		}
		key, ok := keyTok.(string)
		if !ok {
			return Record{}, eris.Errorf("json: expected key, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			return Record{}, eris.Wrapf(err, "json: decode value of %q", key)
		}
		if _, dup := rec.Values[key]; dup {
			continue
		}
		rec.Keys = append(rec.Keys, key)
		rec.Values[key] = rawString(raw)
	}

	if _, err := decoder.Token(); err != nil {
		return Record{}, eris.Wrap(err, "json: read object end")
	}
	return rec, nil
}

func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
		return ""
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// ReadJSONTable collects JSON records into a header (first-seen key order across
// all records) and rows aligned to it.
func ReadJSONTable(ctx context.Context, r io.Reader, lines bool) (header []string, rows [][]string, err error) {
	recCh, errCh := DecodeJSONRecords(ctx, r, lines)

	index := make(map[string]int)
	var records []Record
	for rec := range recCh {
		for _, k := range rec.Keys {
			if _, ok := index[k]; !ok {
				index[k] = len(header)
				header = append(header, k)
			}
		}
		records = append(records, rec)
	}
	if err := <-errCh; err != nil {
		return nil, nil, err
	}

	rows = make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(header))
		for k, v := range rec.Values {
			row[index[k]] = v
		}
		rows[i] = row
	}
	return header, rows, nil
}
