// Package store persists scored bookings and answers filtered reads over them.
package store

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/booking-risk/internal/model"
)

// Table is the scored bookings table name.
const Table = "bookings_scored"

// DedupeMode controls how Insert treats booking ids that are already stored.
type DedupeMode string

const (
	DedupeNone    DedupeMode = "none"    // append every row
	DedupeSkip    DedupeMode = "skip"    // drop incoming rows whose booking_id exists
	DedupeReplace DedupeMode = "replace" // delete stored rows with an incoming booking_id first
)

// ParseDedupeMode validates a dedupe mode string. Empty means DedupeNone.
func ParseDedupeMode(s string) (DedupeMode, error) {
	switch m := DedupeMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return DedupeNone, nil
	case DedupeNone, DedupeSkip, DedupeReplace:
		return m, nil
	default:
		return "", eris.Errorf("store: unknown dedupe mode %q", s)
	}
}

// InsertOptions configures a batch insert.
type InsertOptions struct {
	Dedupe DedupeMode
}

// InsertResult summarizes a batch insert.
type InsertResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Replaced int `json:"replaced"`
}

// CleanupResult summarizes a duplicate cleanup.
type CleanupResult struct {
	Before  int `json:"before"`
	After   int `json:"after"`
	Deleted int `json:"deleted"`
}

// FilterOptions are the distinct values available to dashboard filters.
type FilterOptions struct {
	Lanes []string `json:"lanes"`
	POLs  []string `json:"pols"`
	PODs  []string `json:"pods"`
	Years []int    `json:"years"` // newest first
}

// Store persists scored bookings. Reads return the most recently inserted
// row per booking_id.
type Store interface {
	// Insert writes a batch atomically.
	Insert(ctx context.Context, rows []model.ScoredBooking, opts InsertOptions) (InsertResult, error)
	// Query returns rows matching f, oldest insert first.
	Query(ctx context.Context, f model.Filter) ([]model.ScoredBooking, error)
	// DistinctValues lists the non-empty values of a DistinctFields column, ascending.
	DistinctValues(ctx context.Context, field string) ([]string, error)
	FilterOptions(ctx context.Context) (*FilterOptions, error)
	Count(ctx context.Context) (int, error)

	// Cleanup deletes every row except the newest per booking_id.
	Cleanup(ctx context.Context) (CleanupResult, error)
	// Clear deletes all rows and returns how many were removed.
	Clear(ctx context.Context) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// DistinctFields are the fields accepted by DistinctValues.
var DistinctFields = []string{
	model.FieldLane,
	model.FieldPOL,
	model.FieldPOD,
	model.FieldContainerState,
	model.FieldBundle,
	"year",
}

func checkDistinctField(field string) error {
	for _, f := range DistinctFields {
		if f == field {
			return nil
		}
	}
	return &model.ValidationError{Reason: "unknown distinct field", Columns: []string{field}}
}

// columns lists the insert columns in row order.
var columns = []string{
	"batch_id",
	"booking_id",
	"booking_date",
	"pol",
	"pod",
	"lane",
	"bundle",
	"container_state",
	"cancel_probability",
	"cancel_risk",
	"broken_route_probability",
	"broken_route_risk",
	"created_at",
}

func selectList(d dialect) string {
	return `id, batch_id, booking_id, ` + d.dateColumn + `, pol, pod, lane, bundle, container_state,
	cancel_probability, cancel_risk, broken_route_probability, broken_route_risk, created_at`
}

// latestOnly restricts a read to the newest row per booking_id.
const latestOnly = `id IN (SELECT MAX(id) FROM ` + Table + ` GROUP BY booking_id)`

// dialect abstracts the SQL differences between SQLite and PostgreSQL.
type dialect struct {
	placeholder func(n int) string
	dateArg     func(d model.Date) any
	dateColumn  string // booking_date rendered as YYYY-MM-DD text
	monthExpr   string
	yearExpr    string
}

// whereClause renders the filter plus the latest-row restriction. Placeholders
// are numbered from 1.
func whereClause(d dialect, f model.Filter) (string, []any) {
	conds := []string{latestOnly}
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.Replace(cond, "?", d.placeholder(len(args)), 1))
	}

	if f.StartDate != nil {
		add("booking_date >= ?", d.dateArg(*f.StartDate))
	}
	if f.EndDate != nil {
		add("booking_date <= ?", d.dateArg(*f.EndDate))
	}
	if f.Lane != "" {
		add("lane = ?", f.Lane)
	}
	if f.POL != "" {
		add("pol = ?", f.POL)
	}
	if f.POD != "" {
		add("pod = ?", f.POD)
	}
	if f.Month != 0 {
		add(d.monthExpr+" = ?", f.Month)
	}
	if f.Year != 0 {
		add(d.yearExpr+" = ?", f.Year)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func distinctExpr(d dialect, field string) string {
	if field == "year" {
		return d.yearExpr
	}
	return field
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func ids(rows []model.ScoredBooking) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.BookingID]; ok {
			continue
		}
		seen[r.BookingID] = struct{}{}
		out = append(out, r.BookingID)
	}
	return out
}

func validateBatch(rows []model.ScoredBooking) error {
	for i, r := range rows {
		if r.BookingID == "" {
			return eris.Errorf("store: row %d has empty booking_id", i)
		}
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBooking(s scannable) (model.ScoredBooking, error) {
	var (
		r         model.ScoredBooking
		date      *string
		cancel    string
		broken    string
		createdAt time.Time
	)
	err := s.Scan(&r.ID, &r.BatchID, &r.BookingID, &date, &r.POL, &r.POD, &r.Lane, &r.Bundle, &r.ContainerState,
		&r.CancelProbability, &cancel, &r.BrokenRouteProbability, &broken, &createdAt)
	if err != nil {
		return r, eris.Wrap(err, "store: scan booking")
	}
	if date != nil && *date != "" {
		d, err := model.ParseDate(*date)
		if err != nil {
			return r, eris.Wrapf(err, "store: booking %s date", r.BookingID)
		}
		r.BookingDate = &d
	}
	r.CancelRisk = model.RiskLabel(cancel)
	r.BrokenRouteRisk = model.RiskLabel(broken)
	r.CreatedAt = createdAt.UTC()
	return r, nil
}

// batchTime stamps rows lacking a creation time with a shared timestamp.
func batchTime(rows []model.ScoredBooking) time.Time {
	for _, r := range rows {
		if !r.CreatedAt.IsZero() {
			return r.CreatedAt.UTC()
		}
	}
	return time.Now().UTC()
}

func filterOptions(ctx context.Context, s Store) (*FilterOptions, error) {
	opts := &FilterOptions{}
	for _, f := range []struct {
		field string
		dst   *[]string
	}{
		{model.FieldLane, &opts.Lanes},
		{model.FieldPOL, &opts.POLs},
		{model.FieldPOD, &opts.PODs},
	} {
		vals, err := s.DistinctValues(ctx, f.field)
		if err != nil {
			return nil, err
		}
		*f.dst = vals
	}

	years, err := s.DistinctValues(ctx, "year")
	if err != nil {
		return nil, err
	}
	opts.Years = make([]int, 0, len(years))
	for _, y := range years {
		n, err := strconv.Atoi(y)
		if err != nil {
			return nil, eris.Wrapf(err, "store: parse year %q", y)
		}
		opts.Years = append(opts.Years, n)
	}
	slices.Sort(opts.Years)
	slices.Reverse(opts.Years)
	return opts, nil
}
