package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrUnknownTeam is returned when a current price or history is requested
// for a team that has never been priced. It is never returned by
// ApplyUpdate: a first listing simply creates the row.
var ErrUnknownTeam = errors.New("market: unknown team")

// Stock is a team's current tradable price.
type Stock struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// PricePoint is one historical price observation for a team.
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// HistoryRow is one row of the full price-history table.
type HistoryRow struct {
	Team  string
	Date  time.Time
	Price decimal.Decimal
}

// PriceRepository is the persistent price store: a current price per team
// plus an append-only history of every price each team has held.
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository.
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// GetPrice retrieves the current price for a team.
func (r *PriceRepository) GetPrice(ctx context.Context, team string) (decimal.Decimal, error) {
	query := `
		SELECT price
		FROM stocks
		WHERE name = $1
	`

	var price decimal.Decimal
	err := r.pool.QueryRow(ctx, query, team).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownTeam, team)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get price for %s: %w", team, err)
	}
	return price, nil
}

// GetHistory retrieves a team's price series in chronological order.
func (r *PriceRepository) GetHistory(ctx context.Context, team string) ([]PricePoint, error) {
	query := `
		SELECT date, price
		FROM stock_price_history
		WHERE name = $1
		ORDER BY date ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, team)
	if err != nil {
		return nil, fmt.Errorf("get history for %s: %w", team, err)
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.Date, &p.Price); err != nil {
			return nil, fmt.Errorf("scan history for %s: %w", team, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get history for %s: %w", team, err)
	}

	// Every priced team has at least one history row, so an empty series
	// means the team was never priced.
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTeam, team)
	}
	return points, nil
}

// ApplyUpdate atomically sets the current price for a team and appends one
// history row, in a single transaction scoped to that team. A concurrent
// trade sees either the pre-run or post-run price, never a torn state, and
// a history row never exists without its matching current-price update.
func (r *PriceRepository) ApplyUpdate(ctx context.Context, team string, price decimal.Decimal, date time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin price update for %s: %w", team, err)
	}
	defer tx.Rollback(ctx)

	upsert := `
		INSERT INTO stocks (name, price)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET
			price = EXCLUDED.price
	`
	if _, err := tx.Exec(ctx, upsert, team, price); err != nil {
		return fmt.Errorf("update price for %s: %w", team, err)
	}

	insert := `
		INSERT INTO stock_price_history (name, date, price)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.Exec(ctx, insert, team, date, price); err != nil {
		return fmt.Errorf("append history for %s: %w", team, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit price update for %s: %w", team, err)
	}
	return nil
}

// ListTeams returns the names of all teams that currently have a price.
func (r *PriceRepository) ListTeams(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM stocks
		ORDER BY name ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, name)
	}
	return teams, rows.Err()
}

// ListStocks returns every team with its current price, cheapest first.
func (r *PriceRepository) ListStocks(ctx context.Context) ([]Stock, error) {
	query := `
		SELECT name, price
		FROM stocks
		ORDER BY price ASC, name ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	defer rows.Close()

	var stocks []Stock
	for rows.Next() {
		var s Stock
		if err := rows.Scan(&s.Name, &s.Price); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

// AllHistory returns the full price-history table ordered by team and date,
// for the offline export.
func (r *PriceRepository) AllHistory(ctx context.Context) ([]HistoryRow, error) {
	query := `
		SELECT name, date, price
		FROM stock_price_history
		ORDER BY name ASC, date ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("all history: %w", err)
	}
	defer rows.Close()

	var history []HistoryRow
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(&h.Team, &h.Date, &h.Price); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}
