package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/booking-risk/internal/model"
)

func scoredRows() []model.ScoredBooking {
	d := model.NewDate(2024, time.March, 4)
	return []model.ScoredBooking{
		{
			Booking: model.Booking{
				BookingID:      "BK1",
				BookingDate:    &d,
				POL:            model.StrPtr("CNSHA"),
				POD:            model.StrPtr("USLAX"),
				Lane:           model.StrPtr("TPEB"),
				ContainerState: model.StrPtr("FCL"),
			},
			CancelProbability:      0.72,
			CancelRisk:             model.RiskHigh,
			BrokenRouteProbability: 0.1,
			BrokenRouteRisk:        model.RiskLow,
		},
		{
			Booking:                model.Booking{BookingID: "BK2"},
			CancelProbability:      0.4,
			CancelRisk:             model.RiskMedium,
			BrokenRouteProbability: 0.35,
			BrokenRouteRisk:        model.RiskMedium,
		},
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"out.csv", CSV, false},
		{"OUT.XLSX", XLSX, false},
		{"out.xls", "", true},
		{"out", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatOf(tt.path)
			if tt.wantErr {
				assert.True(t, model.IsUnsupportedFormat(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteCSV_Scored(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Scored(scoredRows())))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ScoredHeader, records[0])
	assert.Equal(t, []string{"BK1", "2024-03-04", "CNSHA", "USLAX", "TPEB", "FCL", "", "0.72", "High", "0.1", "Low"}, records[1])
	assert.Equal(t, []string{"BK2", "", "", "", "", "", "", "0.4", "Medium", "0.35", "Medium"}, records[2])
}

func TestWriteCSV_Features(t *testing.T) {
	var buf bytes.Buffer
	rows := scoredRows()
	require.NoError(t, WriteCSV(&buf, Features([]model.Booking{rows[0].Booking, rows[1].Booking})))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"booking_id", "pol", "pod", "lane", "container_state", "bundle", "year", "month", "day", "day_of_week"}, records[0])
	// 2024-03-04 is a Monday.
	assert.Equal(t, []string{"BK1", "CNSHA", "USLAX", "TPEB", "FCL", "unknown", "2024", "3", "4", "0"}, records[1])
	assert.Equal(t, []string{"BK2", "unknown", "unknown", "unknown", "unknown", "unknown", "0", "0", "0", "0"}, records[2])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, Scored(scoredRows())))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"bookings"}, f.GetSheetList())
	rows, err := f.GetRows("bookings")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ScoredHeader, rows[0])
	assert.Equal(t, "BK1", rows[1][0])
	assert.Equal(t, "2024-03-04", rows[1][1])
	assert.Equal(t, "0.72", rows[1][7])
	assert.Equal(t, "High", rows[1][8])

	v, err := f.GetCellValue("bookings", "H3")
	require.NoError(t, err)
	assert.Equal(t, "0.4", v)
}

func TestWriteXLSX_DefaultSheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, Table{Header: []string{"a"}, Rows: [][]any{{1}}}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, []string{"Sheet1"}, f.GetSheetList())
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, Format("parquet"), Table{})
	assert.True(t, model.IsUnsupportedFormat(err))
}

func TestToFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "scored.csv")
	require.NoError(t, ToFile(path, Scored(scoredRows())))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "BK1,2024-03-04,CNSHA")

	path = filepath.Join(dir, "scored.xlsx")
	require.NoError(t, ToFile(path, Scored(scoredRows())))
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	_ = f.Close()

	err = ToFile(filepath.Join(dir, "scored.txt"), Scored(nil))
	assert.True(t, model.IsUnsupportedFormat(err))
	_, statErr := os.Stat(filepath.Join(dir, "scored.txt"))
	assert.True(t, os.IsNotExist(statErr))
}
