package store

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/booking-risk/internal/model"
)

// sqliteChunk bounds the number of bound parameters in an IN list.
const sqliteChunk = 500

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	dateArg:     func(d model.Date) any { return d.String() },
	dateColumn:  "booking_date",
	monthExpr:   "CAST(strftime('%m', booking_date) AS INTEGER)",
	yearExpr:    "CAST(strftime('%Y', booking_date) AS INTEGER)",
}

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS bookings_scored (
	id                       INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id                 TEXT NOT NULL DEFAULT '',
	booking_id               TEXT NOT NULL,
	booking_date             TEXT,
	pol                      TEXT,
	pod                      TEXT,
	lane                     TEXT,
	bundle                   TEXT,
	container_state          TEXT,
	cancel_probability       REAL NOT NULL,
	cancel_risk              TEXT NOT NULL,
	broken_route_probability REAL NOT NULL,
	broken_route_risk        TEXT NOT NULL,
	created_at               DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bookings_scored_booking_id ON bookings_scored(booking_id);
CREATE INDEX IF NOT EXISTS idx_bookings_scored_booking_date ON bookings_scored(booking_date);
CREATE INDEX IF NOT EXISTS idx_bookings_scored_lane ON bookings_scored(lane);
CREATE INDEX IF NOT EXISTS idx_bookings_scored_pol ON bookings_scored(pol);
CREATE INDEX IF NOT EXISTS idx_bookings_scored_pod ON bookings_scored(pod);
CREATE INDEX IF NOT EXISTS idx_bookings_scored_created_at ON bookings_scored(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Insert(ctx context.Context, rows []model.ScoredBooking, opts InsertOptions) (InsertResult, error) {
	var res InsertResult
	if len(rows) == 0 {
		return res, nil
	}
	if err := validateBatch(rows); err != nil {
		return res, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, eris.Wrap(err, "sqlite: begin insert")
	}
	defer tx.Rollback() //nolint:errcheck

	switch opts.Dedupe {
	case DedupeSkip:
		existing, err := s.existingIDs(ctx, tx, ids(rows))
		if err != nil {
			return res, err
		}
		kept := rows[:0:0]
		for _, r := range rows {
			if _, ok := existing[r.BookingID]; ok {
				res.Skipped++
				continue
			}
			kept = append(kept, r)
		}
		rows = kept
	case DedupeReplace:
		n, err := s.deleteIDs(ctx, tx, ids(rows))
		if err != nil {
			return res, err
		}
		res.Replaced = n
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO bookings_scored (`+strings.Join(columns, ", ")+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return res, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	now := batchTime(rows)
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, sqliteRow(r, now)...); err != nil {
			return res, eris.Wrapf(err, "sqlite: insert booking %s", r.BookingID)
		}
		res.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return InsertResult{}, eris.Wrap(err, "sqlite: commit insert")
	}
	zap.L().Debug("sqlite: batch inserted",
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("replaced", res.Replaced),
	)
	return res, nil
}

func sqliteRow(r model.ScoredBooking, now time.Time) []any {
	var date any
	if r.BookingDate != nil {
		date = r.BookingDate.String()
	}
	created := r.CreatedAt.UTC()
	if r.CreatedAt.IsZero() {
		created = now
	}
	return []any{
		r.BatchID, r.BookingID, date,
		nullable(r.POL), nullable(r.POD), nullable(r.Lane), nullable(r.Bundle), nullable(r.ContainerState),
		r.CancelProbability, string(r.CancelRisk),
		r.BrokenRouteProbability, string(r.BrokenRouteRisk),
		created,
	}
}

func inList(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *SQLiteStore) existingIDs(ctx context.Context, tx *sql.Tx, bookingIDs []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	for chunk := range slices.Chunk(bookingIDs, sqliteChunk) {
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT DISTINCT booking_id FROM bookings_scored WHERE booking_id IN (`+inList(len(chunk))+`)`, args...)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: lookup existing bookings")
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close() //nolint:errcheck
				return nil, eris.Wrap(err, "sqlite: scan booking id")
			}
			found[id] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "sqlite: iterate booking ids")
		}
		rows.Close() //nolint:errcheck
	}
	return found, nil
}

func (s *SQLiteStore) deleteIDs(ctx context.Context, tx *sql.Tx, bookingIDs []string) (int, error) {
	total := 0
	for chunk := range slices.Chunk(bookingIDs, sqliteChunk) {
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM bookings_scored WHERE booking_id IN (`+inList(len(chunk))+`)`, args...)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: delete replaced bookings")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		total += int(n)
	}
	return total, nil
}

func (s *SQLiteStore) Query(ctx context.Context, f model.Filter) ([]model.ScoredBooking, error) {
	where, args := whereClause(sqliteDialect, f)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectList(sqliteDialect)+` FROM bookings_scored`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query bookings")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.ScoredBooking{}
	for rows.Next() {
		r, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate bookings")
}

func (s *SQLiteStore) DistinctValues(ctx context.Context, field string) ([]string, error) {
	if err := checkDistinctField(field); err != nil {
		return nil, err
	}
	expr := distinctExpr(sqliteDialect, field)
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT CAST(`+expr+` AS TEXT) AS v FROM bookings_scored
		 WHERE `+expr+` IS NOT NULL AND CAST(`+expr+` AS TEXT) <> '' ORDER BY v`)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: distinct %s", field)
	}
	defer rows.Close() //nolint:errcheck

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan distinct %s", field)
		}
		out = append(out, v)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: iterate distinct %s", field)
}

func (s *SQLiteStore) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	return filterOptions(ctx, s)
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings_scored`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count bookings")
}

func (s *SQLiteStore) Cleanup(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, eris.Wrap(err, "sqlite: begin cleanup")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings_scored`).Scan(&res.Before); err != nil {
		return res, eris.Wrap(err, "sqlite: count before cleanup")
	}
	out, err := tx.ExecContext(ctx, `DELETE FROM bookings_scored WHERE NOT (`+latestOnly+`)`)
	if err != nil {
		return res, eris.Wrap(err, "sqlite: delete duplicates")
	}
	n, err := out.RowsAffected()
	if err != nil {
		return res, eris.Wrap(err, "sqlite: rows affected")
	}
	if err := tx.Commit(); err != nil {
		return CleanupResult{}, eris.Wrap(err, "sqlite: commit cleanup")
	}
	res.Deleted = int(n)
	res.After = res.Before - res.Deleted
	return res, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookings_scored`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear bookings")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
