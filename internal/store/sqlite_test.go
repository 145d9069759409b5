package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/booking-risk/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func scored(id string, date *model.Date, lane, pol, pod string, cancel float64) model.ScoredBooking {
	return model.ScoredBooking{
		Booking: model.Booking{
			BookingID:      id,
			BookingDate:    date,
			POL:            model.StrPtr(pol),
			POD:            model.StrPtr(pod),
			Lane:           model.StrPtr(lane),
			ContainerState: model.StrPtr("FCL"),
		},
		BatchID:                "batch-1",
		CancelProbability:      cancel,
		CancelRisk:             model.RiskFor(cancel),
		BrokenRouteProbability: 0.2,
		BrokenRouteRisk:        model.RiskLow,
	}
}

func day(y int, m time.Month, d int) *model.Date {
	v := model.NewDate(y, m, d)
	return &v
}

func seed(t *testing.T, st Store) {
	t.Helper()
	_, err := st.Insert(context.Background(), []model.ScoredBooking{
		scored("A", day(2024, time.January, 5), "ASIA-EU", "CNSHA", "NLRTM", 0.9),
		scored("B", day(2024, time.February, 10), "TPEB", "CNSHA", "USLAX", 0.1),
		scored("C", day(2023, time.February, 1), "ASIA-EU", "SGSIN", "NLRTM", 0.5),
		scored("D", nil, "", "", "", 0.4),
	}, InsertOptions{})
	require.NoError(t, err)
}

func TestSQLite_InsertAndQuery(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seed(t, st)

	rows, err := st.Query(ctx, model.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	a := rows[0]
	assert.Equal(t, "A", a.BookingID)
	assert.NotZero(t, a.ID)
	assert.Equal(t, "batch-1", a.BatchID)
	require.NotNil(t, a.BookingDate)
	assert.Equal(t, "2024-01-05", a.BookingDate.String())
	assert.Equal(t, "ASIA-EU", model.Str(a.Lane))
	assert.Nil(t, a.Bundle)
	assert.InDelta(t, 0.9, a.CancelProbability, 1e-9)
	assert.Equal(t, model.RiskHigh, a.CancelRisk)
	assert.False(t, a.CreatedAt.IsZero())

	d := rows[3]
	assert.Nil(t, d.BookingDate)
	assert.Nil(t, d.Lane)
}

func TestSQLite_QueryFilters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seed(t, st)

	tests := []struct {
		name   string
		filter model.Filter
		want   []string
	}{
		{"lane", model.Filter{Lane: "ASIA-EU"}, []string{"A", "C"}},
		{"pol and pod", model.Filter{POL: "CNSHA", POD: "USLAX"}, []string{"B"}},
		{"start date", model.Filter{StartDate: day(2024, time.January, 1)}, []string{"A", "B"}},
		{"end date", model.Filter{EndDate: day(2024, time.January, 5)}, []string{"A", "C"}},
		{"month", model.Filter{Month: 2}, []string{"B", "C"}},
		{"year", model.Filter{Year: 2023}, []string{"C"}},
		{"no match", model.Filter{Lane: "NOPE"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := st.Query(ctx, tt.filter)
			require.NoError(t, err)
			got := []string{}
			for _, r := range rows {
				got = append(got, r.BookingID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLite_QueryReturnsLatestPerBooking(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seed(t, st)

	newer := scored("A", day(2024, time.March, 1), "TPEB", "CNSHA", "USLAX", 0.2)
	_, err := st.Insert(ctx, []model.ScoredBooking{newer}, InsertOptions{})
	require.NoError(t, err)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	rows, err := st.Query(ctx, model.Filter{Lane: "ASIA-EU"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "C", rows[0].BookingID)

	rows, err = st.Query(ctx, model.Filter{})
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestSQLite_InsertDedupe(t *testing.T) {
	ctx := context.Background()

	t.Run("skip", func(t *testing.T) {
		st := newTestSQLiteStore(t)
		seed(t, st)
		res, err := st.Insert(ctx, []model.ScoredBooking{
			scored("A", nil, "", "", "", 0.1),
			scored("E", nil, "", "", "", 0.1),
		}, InsertOptions{Dedupe: DedupeSkip})
		require.NoError(t, err)
		assert.Equal(t, InsertResult{Inserted: 1, Skipped: 1}, res)

		n, err := st.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})

	t.Run("replace", func(t *testing.T) {
		st := newTestSQLiteStore(t)
		seed(t, st)
		res, err := st.Insert(ctx, []model.ScoredBooking{
			scored("A", nil, "", "", "", 0.1),
			scored("B", nil, "", "", "", 0.1),
		}, InsertOptions{Dedupe: DedupeReplace})
		require.NoError(t, err)
		assert.Equal(t, InsertResult{Inserted: 2, Replaced: 2}, res)

		n, err := st.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})
}

func TestSQLite_InsertRejectsEmptyID(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.Insert(context.Background(), []model.ScoredBooking{scored("", nil, "", "", "", 0)}, InsertOptions{})
	require.Error(t, err)

	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_InsertEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)
	res, err := st.Insert(context.Background(), nil, InsertOptions{Dedupe: DedupeSkip})
	require.NoError(t, err)
	assert.Equal(t, InsertResult{}, res)
}

func TestSQLite_DistinctAndFilterOptions(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seed(t, st)

	lanes, err := st.DistinctValues(ctx, "lane")
	require.NoError(t, err)
	assert.Equal(t, []string{"ASIA-EU", "TPEB"}, lanes)

	_, err = st.DistinctValues(ctx, "cancel_risk; DROP TABLE bookings_scored")
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))

	opts, err := st.FilterOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ASIA-EU", "TPEB"}, opts.Lanes)
	assert.Equal(t, []string{"CNSHA", "SGSIN"}, opts.POLs)
	assert.Equal(t, []string{"NLRTM", "USLAX"}, opts.PODs)
	assert.Equal(t, []int{2024, 2023}, opts.Years)
}

func TestSQLite_FilterOptionsEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)
	opts, err := st.FilterOptions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, opts.Lanes)
	assert.Empty(t, opts.Lanes)
	assert.Empty(t, opts.Years)
}

func TestSQLite_CleanupAndClear(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seed(t, st)
	_, err := st.Insert(ctx, []model.ScoredBooking{
		scored("A", nil, "", "", "", 0.1),
		scored("A", nil, "", "", "", 0.2),
	}, InsertOptions{})
	require.NoError(t, err)

	res, err := st.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{Before: 6, After: 4, Deleted: 2}, res)

	rows, err := st.Query(ctx, model.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, r := range rows {
		if r.BookingID == "A" {
			assert.InDelta(t, 0.2, r.CancelProbability, 1e-9)
		}
	}

	n, err := st.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	count, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestParseDedupeMode(t *testing.T) {
	for in, want := range map[string]DedupeMode{"": DedupeNone, "SKIP": DedupeSkip, " replace ": DedupeReplace, "none": DedupeNone} {
		got, err := ParseDedupeMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseDedupeMode("merge")
	assert.Error(t, err)
}

func TestWhereClause(t *testing.T) {
	where, args := whereClause(postgresDialect, model.Filter{Lane: "TPEB", Year: 2024, StartDate: day(2024, time.January, 1)})
	assert.Contains(t, where, "booking_date >= $1")
	assert.Contains(t, where, "lane = $2")
	assert.Contains(t, where, "EXTRACT(YEAR FROM booking_date)::int = $3")
	assert.Len(t, args, 3)

	where, args = whereClause(sqliteDialect, model.Filter{})
	assert.Equal(t, " WHERE "+latestOnly, where)
	assert.Empty(t, args)
}
