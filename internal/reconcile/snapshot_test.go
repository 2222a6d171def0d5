package reconcile

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/midmajor/internal/pricing"
)

func samplePriced() []pricing.PricedTeam {
	return []pricing.PricedTeam{
		{
			Team:       "Gonzaga",
			Conference: "WCC",
			Rating:     decimal.RequireFromString("25.5"),
			Price:      decimal.RequireFromString("22.40"),
		},
		{
			Team:       "Drake",
			Conference: "MVC",
			Rating:     decimal.RequireFromString("3.2"),
			Price:      decimal.RequireFromString("0.10"),
		},
	}
}

func TestSnapshotWrite(t *testing.T) {
	dir := t.TempDir()
	w := NewSnapshotWriter(dir)
	runTime := time.Date(2026, 2, 7, 9, 0, 0, 0, time.UTC)

	path, err := w.Write(runTime, samplePriced())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prices_20260207T090000Z.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, []string{"team", "conference", "rating", "price"}, records[0])
	assert.Equal(t, []string{"Gonzaga", "WCC", "25.5", "22.40"}, records[1])
	assert.Equal(t, []string{"Drake", "MVC", "3.2", "0.10"}, records[2])
}

func TestSnapshotNeverOverwritten(t *testing.T) {
	dir := t.TempDir()
	w := NewSnapshotWriter(dir)
	runTime := time.Date(2026, 2, 7, 9, 0, 0, 0, time.UTC)

	path, err := w.Write(runTime, samplePriced())
	require.NoError(t, err)

	// A second write for the same run timestamp must fail, not clobber.
	_, err = w.Write(runTime, nil)
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Gonzaga", "original snapshot is intact")
}

func TestSnapshotCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "snapshots")
	w := NewSnapshotWriter(dir)

	path, err := w.Write(time.Date(2026, 2, 7, 9, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
