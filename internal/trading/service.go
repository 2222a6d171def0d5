package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/courtside/midmajor/internal/market"
	"github.com/courtside/midmajor/pkg/logger"
)

var (
	// ErrUnknownUser is returned when a user id has no account.
	ErrUnknownUser = errors.New("trading: unknown user")

	// ErrInsufficientCash is returned when a buy costs more than the
	// user's cash balance.
	ErrInsufficientCash = errors.New("trading: insufficient cash")

	// ErrInsufficientShares is returned when a sell exceeds the user's
	// holding.
	ErrInsufficientShares = errors.New("trading: insufficient shares")

	// ErrInvalidShares is returned for a non-positive share count.
	ErrInvalidShares = errors.New("trading: share count must be positive")
)

// startingCash is every new portfolio's initial balance.
var startingCash = decimal.RequireFromString("500.00")

// User is a trading account.
type User struct {
	ID       int64           `json:"id"`
	Username string          `json:"username"`
	Cash     decimal.Decimal `json:"cash"`
}

// Holding is a user's position in one team, valued at the current price.
type Holding struct {
	Team          string          `json:"team"`
	Shares        int64           `json:"shares"`
	PurchasePrice decimal.Decimal `json:"purchase_price"` // average across buys
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Value         decimal.Decimal `json:"value"`
}

// Transaction is one executed trade.
type Transaction struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Team      string          `json:"team"`
	Shares    int64           `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	Side      string          `json:"side"` // buy or sell
	Timestamp time.Time       `json:"timestamp"`
}

// LeaderboardEntry is one row of the portfolio-value leaderboard.
type LeaderboardEntry struct {
	Username       string          `json:"username"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
}

// Service executes trades against current store prices and values
// portfolios. Each trade runs in a single transaction, so it sees either
// the pre-run or post-run price of a concurrent reconciliation, never a
// torn state.
type Service struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewService creates a new trading service.
func NewService(pool *pgxpool.Pool, log *logger.Logger) *Service {
	return &Service{
		pool:   pool,
		logger: log.WithField("module", "trading"),
	}
}

// CreateUser registers a new account with the starting cash balance.
func (s *Service) CreateUser(ctx context.Context, username string) (*User, error) {
	query := `
		INSERT INTO users (username, cash)
		VALUES ($1, $2)
		RETURNING id
	`

	u := &User{Username: username, Cash: startingCash}
	if err := s.pool.QueryRow(ctx, query, username, startingCash).Scan(&u.ID); err != nil {
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}
	return u, nil
}

// GetUser retrieves an account by id.
func (s *Service) GetUser(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT id, username, cash
		FROM users
		WHERE id = $1
	`

	var u User
	err := s.pool.QueryRow(ctx, query, userID).Scan(&u.ID, &u.Username, &u.Cash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownUser, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return &u, nil
}

// Buy purchases shares of a team at its current price.
func (s *Service) Buy(ctx context.Context, userID int64, team string, shares int64) (*Transaction, error) {
	if shares <= 0 {
		return nil, ErrInvalidShares
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin buy: %w", err)
	}
	defer tx.Rollback(ctx)

	price, err := currentPrice(ctx, tx, team)
	if err != nil {
		return nil, err
	}

	var cash decimal.Decimal
	err = tx.QueryRow(ctx, `SELECT cash FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&cash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownUser, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock user %d: %w", userID, err)
	}

	cost := price.Mul(decimal.NewFromInt(shares))
	if cash.LessThan(cost) {
		return nil, fmt.Errorf("%w: need %s, have %s", ErrInsufficientCash, cost.StringFixed(2), cash.StringFixed(2))
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET cash = $1 WHERE id = $2`, cash.Sub(cost), userID); err != nil {
		return nil, fmt.Errorf("debit user %d: %w", userID, err)
	}

	var (
		heldShares int64
		avgPrice   decimal.Decimal
	)
	err = tx.QueryRow(ctx,
		`SELECT shares, purchase_price FROM holdings WHERE user_id = $1 AND stock = $2 FOR UPDATE`,
		userID, team,
	).Scan(&heldShares, &avgPrice)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx,
			`INSERT INTO holdings (user_id, stock, shares, purchase_price) VALUES ($1, $2, $3, $4)`,
			userID, team, shares, price,
		)
		if err != nil {
			return nil, fmt.Errorf("create holding: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("lock holding: %w", err)
	default:
		newAvg := averagePurchasePrice(heldShares, avgPrice, shares, price)
		_, err = tx.Exec(ctx,
			`UPDATE holdings SET shares = $1, purchase_price = $2 WHERE user_id = $3 AND stock = $4`,
			heldShares+shares, newAvg, userID, team,
		)
		if err != nil {
			return nil, fmt.Errorf("update holding: %w", err)
		}
	}

	txn, err := recordTransaction(ctx, tx, userID, team, shares, price, "buy")
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit buy: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"team":    team,
		"shares":  shares,
		"price":   price.StringFixed(2),
	}).Info("Buy executed")

	return txn, nil
}

// Sell liquidates shares of a team at its current price.
func (s *Service) Sell(ctx context.Context, userID int64, team string, shares int64) (*Transaction, error) {
	if shares <= 0 {
		return nil, ErrInvalidShares
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin sell: %w", err)
	}
	defer tx.Rollback(ctx)

	price, err := currentPrice(ctx, tx, team)
	if err != nil {
		return nil, err
	}

	var (
		heldShares int64
		avgPrice   decimal.Decimal
	)
	err = tx.QueryRow(ctx,
		`SELECT shares, purchase_price FROM holdings WHERE user_id = $1 AND stock = $2 FOR UPDATE`,
		userID, team,
	).Scan(&heldShares, &avgPrice)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && heldShares < shares) {
		return nil, fmt.Errorf("%w: selling %d of %s", ErrInsufficientShares, shares, team)
	}
	if err != nil {
		return nil, fmt.Errorf("lock holding: %w", err)
	}

	proceeds := price.Mul(decimal.NewFromInt(shares))
	tag, err := tx.Exec(ctx, `UPDATE users SET cash = cash + $1 WHERE id = $2`, proceeds, userID)
	if err != nil {
		return nil, fmt.Errorf("credit user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownUser, userID)
	}

	if heldShares == shares {
		_, err = tx.Exec(ctx, `DELETE FROM holdings WHERE user_id = $1 AND stock = $2`, userID, team)
	} else {
		_, err = tx.Exec(ctx,
			`UPDATE holdings SET shares = $1 WHERE user_id = $2 AND stock = $3`,
			heldShares-shares, userID, team,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("reduce holding: %w", err)
	}

	txn, err := recordTransaction(ctx, tx, userID, team, shares, price, "sell")
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit sell: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"team":    team,
		"shares":  shares,
		"price":   price.StringFixed(2),
	}).Info("Sell executed")

	return txn, nil
}

// Holdings returns a user's positions valued at current prices.
func (s *Service) Holdings(ctx context.Context, userID int64) ([]Holding, error) {
	query := `
		SELECT h.stock, h.shares, h.purchase_price, s.price
		FROM holdings h
		JOIN stocks s ON s.name = h.stock
		WHERE h.user_id = $1
		ORDER BY h.stock ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("holdings for user %d: %w", userID, err)
	}
	defer rows.Close()

	var holdings []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.Team, &h.Shares, &h.PurchasePrice, &h.CurrentPrice); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		h.Value = h.CurrentPrice.Mul(decimal.NewFromInt(h.Shares)).Round(2)
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// PortfolioValue returns cash plus the current value of all holdings,
// rounded to two decimals.
func (s *Service) PortfolioValue(ctx context.Context, userID int64) (decimal.Decimal, error) {
	query := `
		SELECT u.cash + COALESCE(SUM(h.shares * s.price), 0)
		FROM users u
		LEFT JOIN holdings h ON h.user_id = u.id
		LEFT JOIN stocks s ON s.name = h.stock
		WHERE u.id = $1
		GROUP BY u.cash
	`

	var value decimal.Decimal
	err := s.pool.QueryRow(ctx, query, userID).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: id %d", ErrUnknownUser, userID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("portfolio value for user %d: %w", userID, err)
	}
	return value.Round(2), nil
}

// Leaderboard returns users ranked by portfolio value, best first.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	query := `
		SELECT u.username, u.cash + COALESCE(SUM(h.shares * s.price), 0) AS value
		FROM users u
		LEFT JOIN holdings h ON h.user_id = u.id
		LEFT JOIN stocks s ON s.name = h.stock
		GROUP BY u.id, u.username, u.cash
		ORDER BY value DESC, u.username ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.PortfolioValue); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.PortfolioValue = e.PortfolioValue.Round(2)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Transactions returns a user's trades, most recent first.
func (s *Service) Transactions(ctx context.Context, userID int64, limit int) ([]Transaction, error) {
	query := `
		SELECT id, user_id, team, shares, price, side, ts
		FROM transactions
		WHERE user_id = $1
		ORDER BY ts DESC, id DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("transactions for user %d: %w", userID, err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Team, &t.Shares, &t.Price, &t.Side, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// currentPrice reads a team's price inside a trade transaction.
func currentPrice(ctx context.Context, tx pgx.Tx, team string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := tx.QueryRow(ctx, `SELECT price FROM stocks WHERE name = $1`, team).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s", market.ErrUnknownTeam, team)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("price for %s: %w", team, err)
	}
	return price, nil
}

// recordTransaction appends one row to the trade log.
func recordTransaction(ctx context.Context, tx pgx.Tx, userID int64, team string, shares int64, price decimal.Decimal, side string) (*Transaction, error) {
	txn := &Transaction{
		UserID: userID,
		Team:   team,
		Shares: shares,
		Price:  price,
		Side:   side,
	}

	err := tx.QueryRow(ctx,
		`INSERT INTO transactions (user_id, team, shares, price, side) VALUES ($1, $2, $3, $4, $5) RETURNING id, ts`,
		userID, team, shares, price, side,
	).Scan(&txn.ID, &txn.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", side, err)
	}
	return txn, nil
}

// averagePurchasePrice blends an existing position's average with a new
// buy. Shares bought at multiple prices carry their weighted average.
func averagePurchasePrice(heldShares int64, avgPrice decimal.Decimal, newShares int64, price decimal.Decimal) decimal.Decimal {
	heldValue := avgPrice.Mul(decimal.NewFromInt(heldShares))
	newValue := price.Mul(decimal.NewFromInt(newShares))
	total := decimal.NewFromInt(heldShares + newShares)
	return heldValue.Add(newValue).Div(total).Round(2)
}
