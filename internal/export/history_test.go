package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/midmajor/internal/market"
)

type fakeHistory struct {
	rows []market.HistoryRow
	err  error
}

func (f *fakeHistory) AllHistory(ctx context.Context) ([]market.HistoryRow, error) {
	return f.rows, f.err
}

func TestWriteHistoryCSV(t *testing.T) {
	day1 := time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC)

	source := &fakeHistory{rows: []market.HistoryRow{
		{Team: "Drake", Date: day1, Price: decimal.RequireFromString("0.1")},
		{Team: "Drake", Date: day2, Price: decimal.RequireFromString("0.35")},
		{Team: "Gonzaga", Date: day1, Price: decimal.RequireFromString("22.4")},
	}}

	var buf bytes.Buffer
	n, err := WriteHistoryCSV(context.Background(), source, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	want := "name,date,price\n" +
		"Drake,2026-02-06,0.10\n" +
		"Drake,2026-02-07,0.35\n" +
		"Gonzaga,2026-02-06,22.40\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteHistoryCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteHistoryCSV(context.Background(), &fakeHistory{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, "name,date,price\n", buf.String())
}

func TestWriteHistoryCSVSourceError(t *testing.T) {
	source := &fakeHistory{err: errors.New("storage unavailable")}

	var buf bytes.Buffer
	_, err := WriteHistoryCSV(context.Background(), source, &buf)
	require.Error(t, err)
	assert.Zero(t, buf.Len(), "nothing written on source failure")
}
