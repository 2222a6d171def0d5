package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/courtside/midmajor/internal/external/kenpom"
	"github.com/courtside/midmajor/internal/pricing"
	"github.com/courtside/midmajor/pkg/logger"
)

// Source fetches the raw ranking table.
type Source interface {
	FetchRatings(ctx context.Context) ([]kenpom.RankingRow, error)
}

// PriceStore is the persistent price store the run reconciles into.
type PriceStore interface {
	ApplyUpdate(ctx context.Context, team string, price decimal.Decimal, date time.Time) error
	ListTeams(ctx context.Context) ([]string, error)
}

// RunError records one non-fatal failure inside a run.
type RunError struct {
	Team    string `json:"team,omitempty"`
	Stage   string `json:"stage"` // derive, store, snapshot
	Message string `json:"message"`
}

// RunReport summarizes one reconciliation run.
type RunReport struct {
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	TeamsPriced  int           `json:"teams_priced"`
	TeamsSkipped int           `json:"teams_skipped"`
	Degraded     bool          `json:"degraded"`
	SnapshotPath string        `json:"snapshot_path,omitempty"`
	Errors       []RunError    `json:"errors,omitempty"`
}

// Reconciler orchestrates one pricing run: fetch ratings, derive prices,
// apply each price to the store, and archive a snapshot of the run.
type Reconciler struct {
	source    Source
	store     PriceStore
	snapshots *SnapshotWriter
	logger    *logger.Logger
	now       func() time.Time
}

// New creates a new Reconciler.
func New(source Source, store PriceStore, snapshots *SnapshotWriter, log *logger.Logger) *Reconciler {
	return &Reconciler{
		source:    source,
		store:     store,
		snapshots: snapshots,
		logger:    log.WithField("module", "reconcile"),
		now:       time.Now,
	}
}

// Run executes one reconciliation run.
//
// A fetch failure aborts the run before any store mutation, so the store is
// left exactly as the previous run left it. Row-level derivation failures
// and per-team store failures are recorded in the report and do not stop
// the rest of the run; the store intentionally has no cross-team
// transaction, so partial completion is a reported outcome, not an error
// to roll back. Teams priced in earlier runs but absent from this one keep
// their old price and history untouched.
func (r *Reconciler) Run(ctx context.Context) (*RunReport, error) {
	started := r.now().UTC()
	report := &RunReport{StartedAt: started}

	rows, err := r.source.FetchRatings(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch ratings: %w", err)
	}

	priced, rowErrs := pricing.Derive(rows)
	for _, re := range rowErrs {
		report.Errors = append(report.Errors, RunError{
			Team:    re.Team,
			Stage:   "derive",
			Message: re.Err.Error(),
		})
	}

	// Read the previously priced set before mutating, to report teams that
	// dropped out of this run.
	existing, err := r.store.ListTeams(ctx)
	if err != nil {
		report.Degraded = true
		report.Errors = append(report.Errors, RunError{
			Stage:   "store",
			Message: fmt.Sprintf("list teams: %v", err),
		})
	}

	runDate := time.Date(started.Year(), started.Month(), started.Day(), 0, 0, 0, 0, time.UTC)

	pricedSet := make(map[string]struct{}, len(priced))
	for _, p := range priced {
		if err := r.store.ApplyUpdate(ctx, p.Team, p.Price, runDate); err != nil {
			report.Degraded = true
			report.Errors = append(report.Errors, RunError{
				Team:    p.Team,
				Stage:   "store",
				Message: err.Error(),
			})
			r.logger.WithError(err).WithField("team", p.Team).Error("Price update failed")
			continue
		}
		pricedSet[p.Team] = struct{}{}
		report.TeamsPriced++
	}

	for _, team := range existing {
		if _, ok := pricedSet[team]; !ok {
			report.TeamsSkipped++
		}
	}

	path, err := r.snapshots.Write(started, priced)
	if err != nil {
		report.Degraded = true
		report.Errors = append(report.Errors, RunError{
			Stage:   "snapshot",
			Message: err.Error(),
		})
		r.logger.WithError(err).Error("Snapshot write failed")
	} else {
		report.SnapshotPath = path
	}

	report.Duration = r.now().UTC().Sub(started)

	r.logger.WithFields(map[string]interface{}{
		"teams_priced":  report.TeamsPriced,
		"teams_skipped": report.TeamsSkipped,
		"errors":        len(report.Errors),
		"degraded":      report.Degraded,
		"duration":      report.Duration,
	}).Info("Reconciliation run completed")

	return report, nil
}
