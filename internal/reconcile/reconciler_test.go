package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/midmajor/internal/external/kenpom"
	"github.com/courtside/midmajor/pkg/config"
	"github.com/courtside/midmajor/pkg/logger"
)

type fakeSource struct {
	rows []kenpom.RankingRow
	err  error
}

func (s *fakeSource) FetchRatings(ctx context.Context) ([]kenpom.RankingRow, error) {
	return s.rows, s.err
}

type appliedUpdate struct {
	Team  string
	Price decimal.Decimal
	Date  time.Time
}

type fakeStore struct {
	existing  []string
	failTeams map[string]error
	listErr   error
	applied   []appliedUpdate
}

func (s *fakeStore) ApplyUpdate(ctx context.Context, team string, price decimal.Decimal, date time.Time) error {
	if err, ok := s.failTeams[team]; ok {
		return err
	}
	s.applied = append(s.applied, appliedUpdate{Team: team, Price: price, Date: date})
	return nil
}

func (s *fakeStore) ListTeams(ctx context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.existing, nil
}

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

func newTestReconciler(t *testing.T, source Source, store PriceStore) (*Reconciler, string) {
	t.Helper()
	dir := t.TempDir()
	r := New(source, store, NewSnapshotWriter(dir), testLogger())
	r.now = func() time.Time {
		return time.Date(2026, 2, 7, 9, 0, 0, 0, time.UTC)
	}
	return r, dir
}

func sampleRows() []kenpom.RankingRow {
	return []kenpom.RankingRow{
		{Team: "Gonzaga", Conference: "WCC", AdjEM: "+25.5"},
		{Team: "Duke", Conference: "ACC", AdjEM: "+30.1"},
		{Team: "Drake", Conference: "MVC", AdjEM: "+3.2"},
	}
}

func TestRun(t *testing.T) {
	source := &fakeSource{rows: sampleRows()}
	store := &fakeStore{existing: []string{"Drake", "Wofford"}}
	r, _ := newTestReconciler(t, source, store)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.TeamsPriced)
	assert.Equal(t, 1, report.TeamsSkipped, "Wofford was priced before but absent this run")
	assert.False(t, report.Degraded)
	assert.Empty(t, report.Errors)

	require.Len(t, store.applied, 2)
	assert.Equal(t, "Gonzaga", store.applied[0].Team)
	assert.Equal(t, "22.40", store.applied[0].Price.StringFixed(2))
	assert.Equal(t, "Drake", store.applied[1].Team)
	assert.Equal(t, "0.10", store.applied[1].Price.StringFixed(2))

	// Updates carry the run's civil date.
	wantDate := time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC)
	for _, u := range store.applied {
		assert.True(t, u.Date.Equal(wantDate), "update date = %v", u.Date)
	}

	// The snapshot holds the full priced table.
	require.NotEmpty(t, report.SnapshotPath)
	data, err := os.ReadFile(report.SnapshotPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "team,conference,rating,price")
	assert.Contains(t, string(data), "Gonzaga,WCC,25.5,22.40")
	assert.Contains(t, string(data), "Drake,MVC,3.2,0.10")
	assert.NotContains(t, string(data), "Duke", "excluded teams never appear in the snapshot")
}

func TestRunSourceFailureLeavesStoreUntouched(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("%w: status 503", kenpom.ErrSourceUnavailable)}
	store := &fakeStore{existing: []string{"Drake"}}
	r, dir := newTestReconciler(t, source, store)

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, kenpom.ErrSourceUnavailable))

	// No partial effects of any kind: no updates, no snapshot.
	assert.Empty(t, store.applied)
	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestRunRowErrorIsolated(t *testing.T) {
	rows := append(sampleRows(), kenpom.RankingRow{Team: "Wofford", Conference: "SC", AdjEM: "n/a"})
	source := &fakeSource{rows: rows}
	store := &fakeStore{}
	r, _ := newTestReconciler(t, source, store)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, "Wofford", report.Errors[0].Team)
	assert.Equal(t, "derive", report.Errors[0].Stage)

	// Everyone else is still priced.
	assert.Equal(t, 2, report.TeamsPriced)
	assert.Len(t, store.applied, 2)
	assert.False(t, report.Degraded, "a bad row does not degrade the run")
}

func TestRunStoreFailureDegradesRun(t *testing.T) {
	source := &fakeSource{rows: sampleRows()}
	store := &fakeStore{
		failTeams: map[string]error{"Gonzaga": errors.New("storage unavailable")},
	}
	r, _ := newTestReconciler(t, source, store)

	report, err := r.Run(context.Background())
	require.NoError(t, err, "per-team store failures do not abort the run")

	assert.True(t, report.Degraded)
	assert.Equal(t, 1, report.TeamsPriced)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "Gonzaga", report.Errors[0].Team)
	assert.Equal(t, "store", report.Errors[0].Stage)

	// The failing team's update is skipped, the rest continue.
	require.Len(t, store.applied, 1)
	assert.Equal(t, "Drake", store.applied[0].Team)
}

func TestRunListTeamsFailureDegradesRun(t *testing.T) {
	source := &fakeSource{rows: sampleRows()}
	store := &fakeStore{listErr: errors.New("storage unavailable")}
	r, _ := newTestReconciler(t, source, store)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Degraded)
	assert.Equal(t, 2, report.TeamsPriced, "updates still proceed")
	assert.Equal(t, 0, report.TeamsSkipped)
}

func TestRunEmptyEligibleSet(t *testing.T) {
	source := &fakeSource{rows: []kenpom.RankingRow{
		{Team: "Duke", Conference: "ACC", AdjEM: "+30.1"},
	}}
	store := &fakeStore{existing: []string{"Drake"}}
	r, _ := newTestReconciler(t, source, store)

	report, err := r.Run(context.Background())
	require.NoError(t, err, "zero eligible teams is a valid run")

	assert.Equal(t, 0, report.TeamsPriced)
	assert.Equal(t, 1, report.TeamsSkipped)
	assert.Empty(t, store.applied)
	assert.NotEmpty(t, report.SnapshotPath, "an empty run still archives a snapshot")
}
