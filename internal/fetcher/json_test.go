package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONRecords_KeyOrder(t *testing.T) {
	input := `[{"lane":"ASIA-EU","booking_no":"B1","origin":"CNSHA","qty":3,"active":true,"note":null}]`
	recCh, errCh := DecodeJSONRecords(context.Background(), strings.NewReader(input), false)

	var recs []Record
	for r := range recCh {
		recs = append(recs, r)
	}
	require.NoError(t, <-errCh)
	require.Len(t, recs, 1)

	assert.Equal(t, []string{"lane", "booking_no", "origin", "qty", "active", "note"}, recs[0].Keys)
	v, ok := recs[0].Get("qty")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	v, _ = recs[0].Get("active")
	assert.Equal(t, "true", v)
	v, ok = recs[0].Get("note")
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestDecodeJSONRecords_NotArray(t *testing.T) {
	recCh, errCh := DecodeJSONRecords(context.Background(), strings.NewReader(`{"a":1}`), false)
	for range recCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '['")
}

func TestDecodeJSONRecords_ElementNotObject(t *testing.T) {
	recCh, errCh := DecodeJSONRecords(context.Background(), strings.NewReader(`[1,2]`), false)
	for range recCh {
	}
	require.Error(t, <-errCh)
}

func TestReadJSONTable_UnionOfKeys(t *testing.T) {
	input := `[{"id":"1","pol":"A"},{"pod":"B","id":"2"}]`
	header, rows, err := ReadJSONTable(context.Background(), strings.NewReader(input), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "pol", "pod"}, header)
	assert.Equal(t, [][]string{{"1", "A", ""}, {"2", "", "B"}}, rows)
}

func TestReadJSONTable_Lines(t *testing.T) {
	input := "{\"id\":\"1\"}\n{\"id\":\"2\",\"lane\":\"TPEB\"}\n"
	header, rows, err := ReadJSONTable(context.Background(), strings.NewReader(input), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "lane"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2", "TPEB"}, rows[1])
}

func TestReadJSONTable_EmptyArray(t *testing.T) {
	header, rows, err := ReadJSONTable(context.Background(), strings.NewReader(`[]`), false)
	require.NoError(t, err)
	assert.Empty(t, header)
	assert.Empty(t, rows)
}

func TestDecodeJSONRecords_DuplicateKeyKeepsFirst(t *testing.T) {
	recCh, errCh := DecodeJSONRecords(context.Background(), strings.NewReader(`[{"a":"1","a":"2"}]`), false)
	var recs []Record
	for r := range recCh {
		recs = append(recs, r)
	}
	require.NoError(t, <-errCh)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"a"}, recs[0].Keys)
	assert.Equal(t, "1", recs[0].Values["a"])
}
