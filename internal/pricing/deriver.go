package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/courtside/midmajor/internal/external/kenpom"
)

// ErrInvalidRating marks a row whose rating text could not be parsed.
// It fails that row only; the rest of the run continues.
var ErrInvalidRating = errors.New("pricing: invalid rating")

// majorConferences is the fixed exclusion set. Teams in these conferences
// are not tradable; "Conf" catches the repeated header rows the source
// embeds mid-table.
var majorConferences = map[string]struct{}{
	"ACC":  {},
	"Amer": {},
	"B10":  {},
	"B12":  {},
	"BE":   {},
	"P12":  {},
	"SEC":  {},
	"Conf": {},
}

// priceEpsilon keeps the lowest-rated eligible team priced just above zero.
var priceEpsilon = decimal.NewFromFloat(0.1)

// PricedTeam is one team's derived price for a single run.
type PricedTeam struct {
	Team       string
	Conference string
	Rating     decimal.Decimal
	Price      decimal.Decimal
}

// RowError records a row that failed to derive.
type RowError struct {
	Team string
	Err  error
}

// Derive filters the raw ranking table to tradable teams and computes a
// price for each. The price is a pure function of the rating within the
// run: rating shifted by the negation of the run's minimum rating, plus a
// fixed epsilon, rounded to two decimals. Equal ratings yield equal prices.
//
// An empty eligible set is a valid outcome and returns no rows and no
// errors. Row-level parse failures are returned alongside the successful
// rows; they never abort the derivation.
func Derive(rows []kenpom.RankingRow) ([]PricedTeam, []RowError) {
	var (
		priced  []PricedTeam
		rowErrs []RowError
	)

	for _, row := range rows {
		if _, excluded := majorConferences[row.Conference]; excluded {
			continue
		}

		// Missing ratings are excluded up front; only non-empty text that
		// still fails to parse is reported as a row error.
		if strings.TrimSpace(row.AdjEM) == "" {
			continue
		}

		rating, err := parseRating(row.AdjEM)
		if err != nil {
			rowErrs = append(rowErrs, RowError{
				Team: row.Team,
				Err:  fmt.Errorf("%w: team %q: %v", ErrInvalidRating, row.Team, err),
			})
			continue
		}

		priced = append(priced, PricedTeam{
			Team:       row.Team,
			Conference: row.Conference,
			Rating:     rating,
		})
	}

	if len(priced) == 0 {
		return nil, rowErrs
	}

	floor := priced[0].Rating
	for _, p := range priced[1:] {
		if p.Rating.LessThan(floor) {
			floor = p.Rating
		}
	}

	for i := range priced {
		priced[i].Price = priced[i].Rating.Sub(floor).Add(priceEpsilon).Round(2)
	}

	return priced, rowErrs
}

// parseRating parses a composite rating, stripping the explicit-positive
// marker the source prefixes to non-negative values.
func parseRating(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	return decimal.NewFromString(s)
}
