package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/courtside/midmajor/internal/api/handlers"
	"github.com/courtside/midmajor/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	stockHandler *handlers.StockHandler,
	tradingHandler *handlers.TradingHandler,
	pipelineHandler *handlers.PipelineHandler,
	healthHandler *handlers.HealthHandler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthHandler.Check).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Market data endpoints
	api.HandleFunc("/stocks", stockHandler.ListStocks).Methods("GET")
	api.HandleFunc("/stocks/{name}/price", stockHandler.GetPrice).Methods("GET")
	api.HandleFunc("/stocks/{name}/history", stockHandler.GetHistory).Methods("GET")

	// Trading endpoints
	api.HandleFunc("/users", tradingHandler.CreateUser).Methods("POST")
	api.HandleFunc("/users/{id}/portfolio", tradingHandler.GetPortfolio).Methods("GET")
	api.HandleFunc("/users/{id}/transactions", tradingHandler.GetTransactions).Methods("GET")
	api.HandleFunc("/users/{id}/buy", tradingHandler.Buy).Methods("POST")
	api.HandleFunc("/users/{id}/sell", tradingHandler.Sell).Methods("POST")
	api.HandleFunc("/leaderboard", tradingHandler.GetLeaderboard).Methods("GET")

	// Admin endpoints
	api.HandleFunc("/admin/update", pipelineHandler.TriggerUpdate).Methods("POST")
	api.HandleFunc("/admin/jobs", pipelineHandler.GetJobStats).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
