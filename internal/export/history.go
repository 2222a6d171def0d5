// Package export writes the full price-history table as a flat CSV file
// for offline analysis. Pure I/O: no transformation beyond rounding prices
// to two decimals.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/courtside/midmajor/internal/market"
)

// HistorySource provides the full price-history table.
type HistorySource interface {
	AllHistory(ctx context.Context) ([]market.HistoryRow, error)
}

// WriteHistoryCSV streams the entire history table to w and returns the
// number of data rows written.
func WriteHistoryCSV(ctx context.Context, source HistorySource, w io.Writer) (int, error) {
	history, err := source.AllHistory(ctx)
	if err != nil {
		return 0, fmt.Errorf("read history: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "date", "price"}); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	for _, h := range history {
		record := []string{h.Team, h.Date.Format("2006-01-02"), h.Price.StringFixed(2)}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("write row for %s: %w", h.Team, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush: %w", err)
	}

	return len(history), nil
}
