package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/courtside/midmajor/internal/export"
	"github.com/courtside/midmajor/internal/market"
	"github.com/courtside/midmajor/pkg/config"
	"github.com/courtside/midmajor/pkg/database"
	"github.com/courtside/midmajor/pkg/logger"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the full price history as CSV",
	Long: `Writes the complete price history of every listed team to a CSV file.

Example:
  go run ./cmd/midmajor export --out history.csv
  go run ./cmd/midmajor export            (writes to stdout)`,
	RunE: runExport,
}

var exportOut string

func init() {
	rootCmd.AddCommand(exportCmd)

	// Flags
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
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

	priceRepo := market.NewPriceRepository(db.Pool)

	out := os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	rows, err := export.WriteHistoryCSV(context.Background(), priceRepo, out)
	if err != nil {
		return fmt.Errorf("export history: %w", err)
	}

	if exportOut != "" {
		log.WithFields(map[string]interface{}{
			"rows": rows,
			"file": exportOut,
		}).Info("History exported")
		PrintSuccess(fmt.Sprintf("Exported %d rows to %s", rows, exportOut))
	}

	return nil
}
