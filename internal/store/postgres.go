package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/booking-risk/internal/db"
	"github.com/sells-group/booking-risk/internal/model"
)

var postgresDialect = dialect{
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	dateArg:     func(d model.Date) any { return d.Time },
	dateColumn:  "booking_date::text",
	monthExpr:   "EXTRACT(MONTH FROM booking_date)::int",
	yearExpr:    "EXTRACT(YEAR FROM booking_date)::int",
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns           int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns           int32 `yaml:"min_conns" mapstructure:"min_conns"`
	ConnectTimeoutSecs int   `yaml:"connect_timeout_secs" mapstructure:"connect_timeout_secs"`
}

// NewPostgres creates a PostgresStore with a connection pool. The initial ping
// is retried with exponential backoff until the connect timeout elapses.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	timeout := 30 * time.Second
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
		if poolCfg.ConnectTimeoutSecs > 0 {
			timeout = time.Duration(poolCfg.ConnectTimeoutSecs) * time.Second
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = timeout
	err = backoff.RetryNotify(
		func() error { return pool.Ping(ctx) },
		backoff.WithContext(bo, ctx),
		func(err error, wait time.Duration) {
			zap.L().Warn("postgres: ping failed, retrying", zap.Error(err), zap.Duration("wait", wait))
		},
	)
	if err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS bookings_scored (
	id                       BIGSERIAL PRIMARY KEY,
	batch_id                 TEXT NOT NULL DEFAULT '',
	booking_id               TEXT NOT NULL,
	booking_date             DATE,
	pol                      TEXT,
	pod                      TEXT,
	lane                     TEXT,
	bundle                   TEXT,
	container_state          TEXT,
	cancel_probability       DOUBLE PRECISION NOT NULL,
	cancel_risk              TEXT NOT NULL,
	broken_route_probability DOUBLE PRECISION NOT NULL,
	broken_route_risk        TEXT NOT NULL,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bookings_scored_booking_id ON bookings_scored(booking_id);
CREATE INDEX IF NOT EXISTS idx_bookings_scored_booking_date ON bookings_scored(booking_date);
CREATE INDEX IF NOT EXISTS idx_bookings_scored_lane ON bookings_scored(lane);
CREATE INDEX IF NOT EXISTS idx_bookings_scored_pol ON bookings_scored(pol);
CREATE INDEX IF NOT EXISTS idx_bookings_scored_pod ON bookings_scored(pod);
CREATE INDEX IF NOT EXISTS idx_bookings_scored_created_at ON bookings_scored(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Insert writes the batch with COPY inside a single transaction.
func (s *PostgresStore) Insert(ctx context.Context, rows []model.ScoredBooking, opts InsertOptions) (InsertResult, error) {
	var res InsertResult
	if len(rows) == 0 {
		return res, nil
	}
	if err := validateBatch(rows); err != nil {
		return res, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, eris.Wrap(err, "postgres: begin insert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	switch opts.Dedupe {
	case DedupeSkip:
		existing, err := existingIDsPG(ctx, tx, ids(rows))
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
		tag, err := tx.Exec(ctx, `DELETE FROM bookings_scored WHERE booking_id = ANY($1)`, ids(rows))
		if err != nil {
			return res, eris.Wrap(err, "postgres: delete replaced bookings")
		}
		res.Replaced = int(tag.RowsAffected())
	}

	now := batchTime(rows)
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = postgresRow(r, now)
	}
	n, err := db.CopyFrom(ctx, tx, Table, columns, values)
	if err != nil {
		return res, err
	}
	res.Inserted = int(n)

	if err := tx.Commit(ctx); err != nil {
		return InsertResult{}, eris.Wrap(err, "postgres: commit insert")
	}
	zap.L().Debug("postgres: batch inserted",
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("replaced", res.Replaced),
	)
	return res, nil
}

func postgresRow(r model.ScoredBooking, now time.Time) []any {
	var date any
	if r.BookingDate != nil {
		date = r.BookingDate.Time
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

func existingIDsPG(ctx context.Context, tx pgx.Tx, bookingIDs []string) (map[string]struct{}, error) {
	rows, err := tx.Query(ctx,
		`SELECT DISTINCT booking_id FROM bookings_scored WHERE booking_id = ANY($1)`, bookingIDs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lookup existing bookings")
	}
	defer rows.Close()

	found := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan booking id")
		}
		found[id] = struct{}{}
	}
	return found, eris.Wrap(rows.Err(), "postgres: iterate booking ids")
}

func (s *PostgresStore) Query(ctx context.Context, f model.Filter) ([]model.ScoredBooking, error) {
	where, args := whereClause(postgresDialect, f)
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectList(postgresDialect)+` FROM bookings_scored`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query bookings")
	}
	defer rows.Close()

	out := []model.ScoredBooking{}
	for rows.Next() {
		r, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate bookings")
}

func (s *PostgresStore) DistinctValues(ctx context.Context, field string) ([]string, error) {
	if err := checkDistinctField(field); err != nil {
		return nil, err
	}
	expr := distinctExpr(postgresDialect, field)
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT (`+expr+`)::text AS v FROM bookings_scored
		 WHERE `+expr+` IS NOT NULL AND (`+expr+`)::text <> '' ORDER BY v`)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: distinct %s", field)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan distinct %s", field)
		}
		out = append(out, v)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: iterate distinct %s", field)
}

func (s *PostgresStore) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	return filterOptions(ctx, s)
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bookings_scored`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count bookings")
}

func (s *PostgresStore) Cleanup(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, eris.Wrap(err, "postgres: begin cleanup")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM bookings_scored`).Scan(&res.Before); err != nil {
		return res, eris.Wrap(err, "postgres: count before cleanup")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM bookings_scored WHERE NOT (`+latestOnly+`)`)
	if err != nil {
		return res, eris.Wrap(err, "postgres: delete duplicates")
	}
	if err := tx.Commit(ctx); err != nil {
		return CleanupResult{}, eris.Wrap(err, "postgres: commit cleanup")
	}
	res.Deleted = int(tag.RowsAffected())
	res.After = res.Before - res.Deleted
	return res, nil
}

func (s *PostgresStore) Clear(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bookings_scored`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear bookings")
	}
	return int(tag.RowsAffected()), nil
}
