package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRecords(t *testing.T, recCh <-chan CSVRecord, errCh <-chan error) ([]CSVRecord, error) {
	t.Helper()
	var recs []CSVRecord
	for rec := range recCh {
		recs = append(recs, rec)
	}
	for err := range errCh {
		if err != nil {
			return recs, err
		}
	}
	return recs, nil
}

func TestStreamCSV_LineNumbers(t *testing.T) {
	input := "booking_id,lane\nB1,\"ASIA\nEU\"\nB2,TPEB\n"
	recCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{Delimiter: ','})
	recs, err := collectRecords(t, recCh, errCh)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, 1, recs[0].Line)
	assert.Equal(t, []string{"booking_id", "lane"}, recs[0].Fields)
	assert.Equal(t, 2, recs[1].Line)
	assert.Equal(t, "ASIA\nEU", recs[1].Fields[1])
	// The quoted newline pushes the next record to line 4.
	assert.Equal(t, 4, recs[2].Line)
}

func TestStreamCSV_TabDelimitedTrim(t *testing.T) {
	input := "a\tb\n 1 \t 2 \n"
	recCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: '\t',
		TrimSpace: true,
	})
	recs, err := collectRecords(t, recCh, errCh)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"1", "2"}, recs[1].Fields)
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{"booking_id,pol,pod", ','},
		{"booking_id;pol;pod", ';'},
		{"booking_id\tpol\tpod", '\t'},
		{"booking_id|pol|pod", '|'},
		{`"id;x",pol,pod`, ','},
		{"booking_id", ','},
		{"", ','},
	}
	for _, tt := range tests {
		assert.Equal(t, string(tt.want), string(SniffDelimiter(tt.line)), tt.line)
	}
}

func TestReadCSVTable_SniffsSemicolons(t *testing.T) {
	input := "booking_id;pol;pod\nB1;CNSHA;NLRTM\n"
	header, rows, err := ReadCSVTable(context.Background(), strings.NewReader(input), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"booking_id", "pol", "pod"}, header)
	assert.Equal(t, [][]string{{"B1", "CNSHA", "NLRTM"}}, rows)
}

func TestReadCSVTable_StripsUTF8BOM(t *testing.T) {
	input := "\xef\xbb\xbfbooking_id,pol\nB1,CNSHA\n"
	header, rows, err := ReadCSVTable(context.Background(), strings.NewReader(input), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"booking_id", "pol"}, header)
	assert.Equal(t, [][]string{{"B1", "CNSHA"}}, rows)
}

func TestReadCSVTable_DecodesUTF16(t *testing.T) {
	// "id\n1\n" as UTF-16LE with BOM.
	input := string([]byte{0xff, 0xfe, 'i', 0, 'd', 0, '\n', 0, '1', 0, '\n', 0})
	header, rows, err := ReadCSVTable(context.Background(), strings.NewReader(input), ',')
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, header)
	assert.Equal(t, [][]string{{"1"}}, rows)
}

func TestReadCSVTable_RaggedRows(t *testing.T) {
	input := "a,b,c\n1,2\n3,4,5,6\n"
	_, rows, err := ReadCSVTable(context.Background(), strings.NewReader(input), ',')
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 2)
	assert.Len(t, rows[1], 4)
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recCh, errCh := StreamCSV(ctx, strings.NewReader("a\n1\n"), CSVOptions{})
	_, err := collectRecords(t, recCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestReadCSVTable_Empty(t *testing.T) {
	header, rows, err := ReadCSVTable(context.Background(), strings.NewReader(""), 0)
	require.NoError(t, err)
	assert.Nil(t, header)
	assert.Empty(t, rows)
}
