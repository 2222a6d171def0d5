package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/courtside/midmajor/internal/market"
	"github.com/courtside/midmajor/pkg/logger"
)

// StockHandler handles market data API endpoints
type StockHandler struct {
	prices *market.PriceRepository
	logger *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(prices *market.PriceRepository, log *logger.Logger) *StockHandler {
	return &StockHandler{
		prices: prices,
		logger: log,
	}
}

// ListStocks returns all listed teams with their current prices
// GET /api/stocks
func (h *StockHandler) ListStocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stocks, err := h.prices.ListStocks(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list stocks")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve stocks")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(stocks),
		"stocks": stocks,
	})
}

// GetPrice returns the current price for a single team
// GET /api/stocks/{name}/price
func (h *StockHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["name"]

	price, err := h.prices.GetPrice(ctx, name)
	if err != nil {
		if errors.Is(err, market.ErrUnknownTeam) {
			respondError(w, http.StatusNotFound, "Unknown team")
			return
		}
		h.logger.WithError(err).Error("Failed to get price")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve price")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"team":  name,
		"price": price,
	})
}

// GetHistory returns chronological price history for a single team
// GET /api/stocks/{name}/history
func (h *StockHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["name"]

	history, err := h.prices.GetHistory(ctx, name)
	if err != nil {
		if errors.Is(err, market.ErrUnknownTeam) {
			respondError(w, http.StatusNotFound, "Unknown team")
			return
		}
		h.logger.WithError(err).Error("Failed to get price history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve price history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"team":    name,
		"count":   len(history),
		"history": history,
	})
}
