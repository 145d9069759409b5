package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/booking-risk/internal/model"
)

func TestEngineer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		date    model.Date
		dow     int
		weekend bool
	}{
		{"monday", model.NewDate(2024, time.January, 15), 0, false},
		{"wednesday", model.NewDate(2024, time.January, 17), 2, false},
		{"friday", model.NewDate(2024, time.January, 19), 4, false},
		{"saturday", model.NewDate(2024, time.January, 20), 5, true},
		{"sunday", model.NewDate(2024, time.January, 21), 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := Engineer(&tt.date)
			require.NotNil(t, f.DayOfWeek)
			assert.Equal(t, 2024, *f.Year)
			assert.Equal(t, 1, *f.Month)
			assert.Equal(t, tt.date.Day(), *f.Day)
			assert.Equal(t, tt.dow, *f.DayOfWeek)
			assert.Equal(t, tt.weekend, *f.IsWeekend)
		})
	}
}

func TestEngineerNilDate(t *testing.T) {
	t.Parallel()

	f := Engineer(nil)
	assert.Nil(t, f.Year)
	assert.Nil(t, f.Month)
	assert.Nil(t, f.Day)
	assert.Nil(t, f.DayOfWeek)
	assert.Nil(t, f.IsWeekend)
}

func TestEngineerIdempotent(t *testing.T) {
	t.Parallel()

	d := model.NewDate(2023, time.December, 31)
	assert.Equal(t, Engineer(&d), Engineer(&d))
}

func TestPrepareImputes(t *testing.T) {
	t.Parallel()

	b := model.Booking{
		BookingID: "B1",
		Lane:      model.StrPtr("ASIA-EU"),
		POL:       model.StrPtr("CNSHA"),
	}
	row := Prepare(b)

	assert.Equal(t, []string{"CNSHA", "unknown", "ASIA-EU", "unknown", "unknown"}, row.Categorical)
	assert.Equal(t, []float64{0, 0, 0, 0}, row.Numerical)
}

func TestPrepareWithDate(t *testing.T) {
	t.Parallel()

	d := model.NewDate(2024, time.March, 9) // Saturday
	b := model.Booking{
		BookingID:      "B1",
		BookingDate:    &d,
		POL:            model.StrPtr("CNSHA"),
		POD:            model.StrPtr("NLRTM"),
		Lane:           model.StrPtr("ASIA-EU"),
		ContainerState: model.StrPtr("FCL"),
		Bundle:         model.StrPtr("Premium"),
	}
	row := Prepare(b)

	assert.Equal(t, []string{"CNSHA", "NLRTM", "ASIA-EU", "FCL", "Premium"}, row.Categorical)
	assert.Equal(t, []float64{2024, 3, 9, 5}, row.Numerical)
	assert.Equal(t, []string{"CNSHA", "NLRTM", "ASIA-EU", "FCL", "Premium", "2024", "3", "9", "5"}, row.Strings())
}

func TestPrepareAllPreservesOrder(t *testing.T) {
	t.Parallel()

	rows := PrepareAll([]model.Booking{
		{BookingID: "1", Lane: model.StrPtr("A")},
		{BookingID: "2", Lane: model.StrPtr("B")},
		{BookingID: "3"},
	})
	require.Len(t, rows, 3)
	assert.Equal(t, "A", rows[0].Categorical[2])
	assert.Equal(t, "B", rows[1].Categorical[2])
	assert.Equal(t, UnknownCategory, rows[2].Categorical[2])
}

func TestHeader(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"pol", "pod", "lane", "container_state", "bundle",
		"year", "month", "day", "day_of_week",
	}, Header())
}
