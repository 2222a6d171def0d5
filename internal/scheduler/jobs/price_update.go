package jobs

import (
	"context"
	"fmt"

	"github.com/courtside/midmajor/internal/reconcile"
	"github.com/courtside/midmajor/pkg/config"
	"github.com/courtside/midmajor/pkg/logger"
)

// PriceUpdateJob runs the daily pricing pipeline: scrape the ratings
// table, derive tradable prices, reconcile them into the store.
type PriceUpdateJob struct {
	reconciler *reconcile.Reconciler
	config     *config.Config
	logger     *logger.Logger
}

// NewPriceUpdateJob creates a new price update job.
func NewPriceUpdateJob(r *reconcile.Reconciler, cfg *config.Config, log *logger.Logger) *PriceUpdateJob {
	return &PriceUpdateJob{
		reconciler: r,
		config:     cfg,
		logger:     log,
	}
}

// Name returns the job name
func (j *PriceUpdateJob) Name() string {
	return "price_update"
}

// Schedule returns the cron schedule from config.
func (j *PriceUpdateJob) Schedule() string {
	return j.config.Scheduler.PriceUpdateSpec
}

// Run executes one reconciliation run. A fetch failure surfaces as a job
// error so the scheduler retries the whole run; a degraded run (some teams
// failed to update) is logged but not retried, because re-running would
// re-apply updates for teams that already succeeded today.
func (j *PriceUpdateJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled price update")

	report, err := j.reconciler.Run(ctx)
	if err != nil {
		return fmt.Errorf("price update run: %w", err)
	}

	if report.Degraded {
		j.logger.WithFields(map[string]interface{}{
			"teams_priced": report.TeamsPriced,
			"errors":       len(report.Errors),
		}).Warn("Price update completed degraded")
		return nil
	}

	j.logger.WithFields(map[string]interface{}{
		"teams_priced":  report.TeamsPriced,
		"teams_skipped": report.TeamsSkipped,
		"snapshot":      report.SnapshotPath,
	}).Info("Scheduled price update completed")
	return nil
}
