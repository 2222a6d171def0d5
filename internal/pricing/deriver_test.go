package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/midmajor/internal/external/kenpom"
)

func row(team, conf, adjEM string) kenpom.RankingRow {
	return kenpom.RankingRow{Team: team, Conference: conf, AdjEM: adjEM}
}

func priceOf(t *testing.T, priced []PricedTeam, team string) decimal.Decimal {
	t.Helper()
	for _, p := range priced {
		if p.Team == team {
			return p.Price
		}
	}
	t.Fatalf("team %s not priced", team)
	return decimal.Zero
}

func TestDerive(t *testing.T) {
	rows := []kenpom.RankingRow{
		row("Gonzaga", "WCC", "+25.5"),
		row("Duke", "ACC", "+30.1"),
		row("Drake", "MVC", "+3.2"),
	}

	priced, rowErrs := Derive(rows)
	require.Empty(t, rowErrs)
	require.Len(t, priced, 2, "Duke plays in an excluded conference")

	assert.Equal(t, "22.40", priceOf(t, priced, "Gonzaga").StringFixed(2))
	assert.Equal(t, "0.10", priceOf(t, priced, "Drake").StringFixed(2))

	for _, p := range priced {
		assert.NotEqual(t, "Duke", p.Team)
	}
}

func TestDeriveFloorTeamPricesAtEpsilon(t *testing.T) {
	rows := []kenpom.RankingRow{
		row("Vermont", "AE", "+12.80"),
		row("Longwood", "BSth", "-14.35"),
		row("Murray St", "OVC", "+18.10"),
	}

	priced, rowErrs := Derive(rows)
	require.Empty(t, rowErrs)
	require.Len(t, priced, 3)

	// The minimum-rated team always lands exactly on the epsilon.
	assert.Equal(t, "0.10", priceOf(t, priced, "Longwood").StringFixed(2))

	// Everyone prices strictly above zero.
	for _, p := range priced {
		assert.True(t, p.Price.IsPositive(), "%s priced %s", p.Team, p.Price)
	}
}

func TestDeriveMonotonicInRating(t *testing.T) {
	rows := []kenpom.RankingRow{
		row("A", "WCC", "+10.00"),
		row("B", "WCC", "+5.00"),
		row("C", "WCC", "-2.50"),
		row("D", "WCC", "+5.00"),
	}

	priced, rowErrs := Derive(rows)
	require.Empty(t, rowErrs)
	require.Len(t, priced, 4)

	for _, a := range priced {
		for _, b := range priced {
			if a.Rating.GreaterThan(b.Rating) {
				assert.True(t, a.Price.GreaterThanOrEqual(b.Price),
					"%s (%s) should not price below %s (%s)", a.Team, a.Price, b.Team, b.Price)
			}
		}
	}

	// Equal ratings get equal prices; no tie-break is applied.
	assert.True(t, priceOf(t, priced, "B").Equal(priceOf(t, priced, "D")))
}

func TestDeriveEmptyEligibleSet(t *testing.T) {
	rows := []kenpom.RankingRow{
		row("Duke", "ACC", "+30.1"),
		row("Kansas", "B12", "+28.4"),
		row("Conf", "Conf", "AdjEM"), // embedded repeat header row
	}

	priced, rowErrs := Derive(rows)
	assert.Empty(t, priced, "a run with zero eligible teams is valid")
	assert.Empty(t, rowErrs)
}

func TestDeriveNoRows(t *testing.T) {
	priced, rowErrs := Derive(nil)
	assert.Empty(t, priced)
	assert.Empty(t, rowErrs)
}

func TestDeriveMissingRatingExcluded(t *testing.T) {
	rows := []kenpom.RankingRow{
		row("Drake", "MVC", "+3.2"),
		row("Merrimack", "NEC", ""), // not yet rated
	}

	priced, rowErrs := Derive(rows)
	require.Empty(t, rowErrs, "missing ratings are excluded, not errors")
	require.Len(t, priced, 1)
	assert.Equal(t, "Drake", priced[0].Team)
}

func TestDeriveInvalidRatingIsolatedToRow(t *testing.T) {
	rows := []kenpom.RankingRow{
		row("Gonzaga", "WCC", "+25.5"),
		row("Wofford", "SC", "n/a"),
		row("Drake", "MVC", "+3.2"),
	}

	priced, rowErrs := Derive(rows)

	require.Len(t, rowErrs, 1)
	assert.Equal(t, "Wofford", rowErrs[0].Team)
	assert.True(t, errors.Is(rowErrs[0].Err, ErrInvalidRating))

	// The other teams are still priced, with the floor taken over survivors.
	require.Len(t, priced, 2)
	assert.Equal(t, "22.40", priceOf(t, priced, "Gonzaga").StringFixed(2))
	assert.Equal(t, "0.10", priceOf(t, priced, "Drake").StringFixed(2))
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"+25.53", "25.53", false},
		{"-3.21", "-3.21", false},
		{"0.00", "0", false},
		{" +1.5 ", "1.5", false},
		{"n/a", "", true},
		{"+", "", true},
	}

	for _, tt := range tests {
		got, err := parseRating(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "input %q: got %s", tt.input, got)
	}
}
