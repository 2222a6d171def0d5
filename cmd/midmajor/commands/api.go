package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/courtside/midmajor/internal/api"
	"github.com/courtside/midmajor/internal/api/handlers"
	"github.com/courtside/midmajor/internal/external/kenpom"
	"github.com/courtside/midmajor/internal/market"
	"github.com/courtside/midmajor/internal/reconcile"
	"github.com/courtside/midmajor/internal/scheduler"
	"github.com/courtside/midmajor/internal/scheduler/jobs"
	"github.com/courtside/midmajor/internal/trading"
	"github.com/courtside/midmajor/pkg/config"
	"github.com/courtside/midmajor/pkg/database"
	"github.com/courtside/midmajor/pkg/httputil"
	"github.com/courtside/midmajor/pkg/logger"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server.

This command:
- Serves market data and portfolio endpoints
- Runs the price update scheduler (when enabled)
- Exposes a manual price update trigger

Endpoints:
  GET  /health                       - Health check
  GET  /api/stocks                   - List all teams with prices
  GET  /api/stocks/{name}/price      - Current price for a team
  GET  /api/stocks/{name}/history    - Price history for a team
  POST /api/users                    - Create a user
  GET  /api/users/{id}/portfolio     - Cash, holdings, total value
  GET  /api/users/{id}/transactions  - Transaction history
  POST /api/users/{id}/buy           - Buy shares
  POST /api/users/{id}/sell          - Sell shares
  GET  /api/leaderboard              - Users by portfolio value
  POST /api/admin/update             - Trigger a price update run
  GET  /api/admin/jobs               - Scheduled job statistics

Example:
  go run ./cmd/midmajor api
  go run ./cmd/midmajor api --port 8090`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Midmajor API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Create the ranking source client. Fetches are single-shot; failed
	// runs are retried whole by the scheduler rather than per request.
	kenpomHTTP := httputil.NewWithTimeout(cfg, log, cfg.Kenpom.Timeout).
		DisableRetry().
		WithRateLimit(cfg.Kenpom.RequestsPerMin)
	kenpomClient := kenpom.NewClient(cfg, kenpomHTTP, log)

	// 5. Create repositories and services
	priceRepo := market.NewPriceRepository(db.Pool)
	tradingSvc := trading.NewService(db.Pool, log)

	// 6. Create the reconciler
	snapshots := reconcile.NewSnapshotWriter(cfg.Snapshot.Dir)
	reconciler := reconcile.New(kenpomClient, priceRepo, snapshots, log)

	// 7. Create the scheduler
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(log)
		if err := sched.AddJob(jobs.NewPriceUpdateJob(reconciler, cfg, log)); err != nil {
			return fmt.Errorf("register price update job: %w", err)
		}
		sched.Start()
		defer sched.Stop()

		log.Info("Scheduler started")
	}

	// 8. Create handlers and router
	stockHandler := handlers.NewStockHandler(priceRepo, log)
	tradingHandler := handlers.NewTradingHandler(tradingSvc, log)
	pipelineHandler := handlers.NewPipelineHandler(reconciler, sched, log)
	healthHandler := handlers.NewHealthHandler(db, log)

	router := api.NewRouter(stockHandler, tradingHandler, pipelineHandler, healthHandler, log)

	// 9. Create server
	server := api.New(cfg, log, router)

	// 10. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
