package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/booking-risk/internal/analytics"
	"github.com/sells-group/booking-risk/internal/model"
	"github.com/sells-group/booking-risk/internal/pipeline"
	"github.com/sells-group/booking-risk/internal/scorer"
	"github.com/sells-group/booking-risk/internal/store"
)

const januaryCSV = `Booking ID,Booking Date,Port of Loading,Port of Discharge,Trade Lane,Container Type,Bundle
B1,2024-01-05,CNSHA,NLRTM,ASIA-EU,FCL,Basic
B2,2024-01-06,CNSHA,USLAX,TPEB,LCL,Premium
`

const februaryCSV = `booking_id,booking_date,pol,pod,lane
B3,2024-02-01,SGSIN,NLRTM,ASIA-EU
B1,2024-02-02,CNSHA,NLRTM,ASIA-EU
`

// fixedPredictor gives every booking the same probabilities.
type fixedPredictor struct {
	cancel, broken float64
}

func (p fixedPredictor) Score(_ context.Context, bookings []model.Booking) ([]scorer.Prediction, error) {
	out := make([]scorer.Prediction, len(bookings))
	for i := range out {
		out[i] = scorer.Prediction{
			CancelProbability:      p.cancel,
			CancelRisk:             model.RiskFor(p.cancel),
			BrokenRouteProbability: p.broken,
			BrokenRouteRisk:        model.RiskFor(p.broken),
		}
	}
	return out, nil
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestProcessor(t *testing.T) (*pipeline.Processor, store.Store) {
	t.Helper()
	useConfig(t)

	st, err := initStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	proc := pipeline.NewProcessor(newOpener(), pipeline.NewEnricher(fixedPredictor{cancel: 0.7, broken: 0.2}),
		pipeline.WithStore(st),
		pipeline.WithIngestOptions(ingestOptions()),
	)
	return proc, st
}

func TestRunIngest(t *testing.T) {
	proc, st := newTestProcessor(t)
	sources := []string{
		writeSource(t, "january.csv", januaryCSV),
		writeSource(t, "february.csv", februaryCSV),
	}

	results, err := runIngest(context.Background(), proc, sources, pipeline.ProcessOptions{Persist: true}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for i, r := range results {
		assert.Empty(t, r.Error)
		assert.Equal(t, sources[i], r.Source)
		assert.NotEmpty(t, r.BatchID)
		assert.True(t, r.Persisted)
		assert.Equal(t, 2, r.Insert.Inserted)
	}
	assert.NotEqual(t, results[0].BatchID, results[1].BatchID)
	assert.Len(t, scoredRows(results), 4)

	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRunIngest_DedupeSkip(t *testing.T) {
	proc, _ := newTestProcessor(t)
	jan := writeSource(t, "january.csv", januaryCSV)
	feb := writeSource(t, "february.csv", februaryCSV)

	_, err := runIngest(context.Background(), proc, []string{jan}, pipeline.ProcessOptions{Persist: true}, 1)
	require.NoError(t, err)

	results, err := runIngest(context.Background(), proc, []string{feb}, pipeline.ProcessOptions{Persist: true, Dedupe: store.DedupeSkip}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Insert.Inserted)
	assert.Equal(t, 1, results[0].Insert.Skipped)
}

func TestRunIngest_PartialFailure(t *testing.T) {
	proc, st := newTestProcessor(t)
	good := writeSource(t, "january.csv", januaryCSV)
	unsupported := writeSource(t, "notes.txt", "hello")
	missing := filepath.Join(t.TempDir(), "missing.csv")

	results, err := runIngest(context.Background(), proc, []string{good, unsupported, missing}, pipeline.ProcessOptions{Persist: true}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 sources failed")

	require.Len(t, results, 3)
	assert.Empty(t, results[0].Error)
	assert.Contains(t, results[1].Error, "unsupported")
	assert.NotEmpty(t, results[2].Error)

	// Only the good source is written out and stored.
	assert.Len(t, scoredRows(results), 2)
	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunIngest_DryRun(t *testing.T) {
	useConfig(t)
	proc := pipeline.NewProcessor(newOpener(), pipeline.NewEnricher(fixedPredictor{cancel: 0.1, broken: 0.9}))

	results, err := runIngest(context.Background(), proc, []string{writeSource(t, "january.csv", januaryCSV)}, pipeline.ProcessOptions{}, 4)
	require.NoError(t, err)
	assert.False(t, results[0].Persisted)

	rows := scoredRows(results)
	require.Len(t, rows, 2)
	assert.Equal(t, model.RiskLow, rows[0].CancelRisk)
	assert.Equal(t, model.RiskHigh, rows[0].BrokenRouteRisk)
}

func TestRunReport(t *testing.T) {
	proc, st := newTestProcessor(t)
	_, err := runIngest(context.Background(), proc, []string{writeSource(t, "january.csv", januaryCSV)}, pipeline.ProcessOptions{Persist: true}, 1)
	require.NoError(t, err)

	svc := analytics.New(st)
	ctx := context.Background()

	v, err := runReport(ctx, svc, "summary", model.Filter{}, reportParams{})
	require.NoError(t, err)
	sum, ok := v.(*analytics.Summary)
	require.True(t, ok)
	assert.Equal(t, 2, sum.TotalBookings)
	assert.InDelta(t, 70, sum.AvgCancelProb, 1e-9)

	v, err = runReport(ctx, svc, "summary", model.Filter{Lane: "TPEB"}, reportParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, v.(*analytics.Summary).TotalBookings)

	for _, name := range reportViewNames() {
		_, err := runReport(ctx, svc, name, model.Filter{}, reportParams{freq: analytics.Monthly})
		assert.NoError(t, err, name)
	}
}

func TestRunReport_UnknownView(t *testing.T) {
	_, err := runReport(context.Background(), analytics.New(nil), "pie-chart", model.Filter{}, reportParams{})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.Contains(t, err.Error(), "unknown view")
}

func TestReportViewNames(t *testing.T) {
	names := reportViewNames()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "dashboard")
	assert.Contains(t, names, "top-outliers")
	assert.Contains(t, names, "charts")
	assert.Len(t, names, len(reportViews))
}
