package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/courtside/midmajor/internal/market"
	"github.com/courtside/midmajor/internal/trading"
	"github.com/courtside/midmajor/pkg/logger"
)

// TradingHandler handles trading and portfolio API endpoints
type TradingHandler struct {
	trading *trading.Service
	logger  *logger.Logger
}

// NewTradingHandler creates a new trading handler
func NewTradingHandler(svc *trading.Service, log *logger.Logger) *TradingHandler {
	return &TradingHandler{
		trading: svc,
		logger:  log,
	}
}

// CreateUserRequest represents a user creation request
type CreateUserRequest struct {
	Username string `json:"username"`
}

// CreateUser registers a new user with starting cash
// POST /api/users
func (h *TradingHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" {
		respondError(w, http.StatusBadRequest, "Username is required")
		return
	}

	user, err := h.trading.CreateUser(ctx, req.Username)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create user")
		respondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// GetPortfolio returns a user's cash, holdings and total portfolio value
// GET /api/users/{id}/portfolio
func (h *TradingHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	user, err := h.trading.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, trading.ErrUnknownUser) {
			respondError(w, http.StatusNotFound, "Unknown user")
			return
		}
		h.logger.WithError(err).Error("Failed to get user")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve portfolio")
		return
	}

	holdings, err := h.trading.Holdings(ctx, userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get holdings")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve portfolio")
		return
	}

	value, err := h.trading.PortfolioValue(ctx, userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute portfolio value")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve portfolio")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user":     user,
		"holdings": holdings,
		"value":    value,
	})
}

// GetTransactions returns a user's transaction history, newest first
// GET /api/users/{id}/transactions
func (h *TradingHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	txs, err := h.trading.Transactions(ctx, userID, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get transactions")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve transactions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":        len(txs),
		"transactions": txs,
	})
}

// OrderRequest represents a buy or sell request
type OrderRequest struct {
	Team   string `json:"team"`
	Shares int64  `json:"shares"`
}

// Buy purchases shares of a team at the current price
// POST /api/users/{id}/buy
func (h *TradingHandler) Buy(w http.ResponseWriter, r *http.Request) {
	h.placeOrder(w, r, h.trading.Buy)
}

// Sell sells shares of a team at the current price
// POST /api/users/{id}/sell
func (h *TradingHandler) Sell(w http.ResponseWriter, r *http.Request) {
	h.placeOrder(w, r, h.trading.Sell)
}

func (h *TradingHandler) placeOrder(
	w http.ResponseWriter,
	r *http.Request,
	execute func(ctx context.Context, userID int64, team string, shares int64) (*trading.Transaction, error),
) {
	ctx := r.Context()

	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Team == "" {
		respondError(w, http.StatusBadRequest, "Team is required")
		return
	}

	tx, err := execute(ctx, userID, req.Team, req.Shares)
	if err != nil {
		switch {
		case errors.Is(err, trading.ErrInvalidShares):
			respondError(w, http.StatusBadRequest, "Shares must be positive")
		case errors.Is(err, trading.ErrUnknownUser):
			respondError(w, http.StatusNotFound, "Unknown user")
		case errors.Is(err, market.ErrUnknownTeam):
			respondError(w, http.StatusNotFound, "Unknown team")
		case errors.Is(err, trading.ErrInsufficientCash):
			respondError(w, http.StatusUnprocessableEntity, "Insufficient cash")
		case errors.Is(err, trading.ErrInsufficientShares):
			respondError(w, http.StatusUnprocessableEntity, "Insufficient shares")
		default:
			h.logger.WithError(err).Error("Failed to execute order")
			respondError(w, http.StatusInternalServerError, "Failed to execute order")
		}
		return
	}

	respondJSON(w, http.StatusOK, tx)
}

// GetLeaderboard returns users ranked by total portfolio value
// GET /api/leaderboard
func (h *TradingHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.trading.Leaderboard(ctx, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get leaderboard")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(entries),
		"leaderboard": entries,
	})
}

func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return 0, false
	}
	return id, true
}
