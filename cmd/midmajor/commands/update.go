package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/courtside/midmajor/internal/external/kenpom"
	"github.com/courtside/midmajor/internal/market"
	"github.com/courtside/midmajor/internal/reconcile"
	"github.com/courtside/midmajor/pkg/config"
	"github.com/courtside/midmajor/pkg/database"
	"github.com/courtside/midmajor/pkg/httputil"
	"github.com/courtside/midmajor/pkg/logger"
)

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Run one price update now",
	Long: `Runs the pricing pipeline once and prints the run report.

This command:
- Fetches the current ratings table from kenpom.com
- Derives a price for every eligible mid-major team
- Applies the prices to the market database
- Archives a CSV snapshot of the run

Example:
  go run ./cmd/midmajor update`,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Midmajor Price Update ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// 4. Wire the pipeline
	kenpomHTTP := httputil.NewWithTimeout(cfg, log, cfg.Kenpom.Timeout).
		DisableRetry().
		WithRateLimit(cfg.Kenpom.RequestsPerMin)
	kenpomClient := kenpom.NewClient(cfg, kenpomHTTP, log)
	priceRepo := market.NewPriceRepository(db.Pool)
	snapshots := reconcile.NewSnapshotWriter(cfg.Snapshot.Dir)
	reconciler := reconcile.New(kenpomClient, priceRepo, snapshots, log)

	// 5. Run
	report, err := reconciler.Run(context.Background())
	if err != nil {
		PrintError(fmt.Sprintf("Price update failed: %v", err))
		return err
	}

	// 6. Print report
	fmt.Println()
	PrintSeparator()
	PrintKeyValue("Started", report.StartedAt.Format("2006-01-02 15:04:05 MST"), 14)
	PrintKeyValue("Duration", report.Duration.String(), 14)
	PrintKeyValue("Teams priced", fmt.Sprintf("%d", report.TeamsPriced), 14)
	PrintKeyValue("Teams skipped", fmt.Sprintf("%d", report.TeamsSkipped), 14)
	PrintKeyValue("Snapshot", report.SnapshotPath, 14)
	PrintSeparator()

	if len(report.Errors) > 0 {
		PrintWarning(fmt.Sprintf("%d error(s) during run", len(report.Errors)))
		for _, e := range report.Errors {
			if e.Team != "" {
				fmt.Printf("   [%s] %s: %s\n", e.Stage, e.Team, e.Message)
			} else {
				fmt.Printf("   [%s] %s\n", e.Stage, e.Message)
			}
		}
	}

	if report.Degraded {
		PrintWarning("Run completed degraded")
	} else {
		PrintSuccess("Price update completed")
	}

	return nil
}
