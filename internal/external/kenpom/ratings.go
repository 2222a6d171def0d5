package kenpom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RankingRow is one team's raw scraped metrics for a single run.
// All values are kept as page text; parsing happens downstream so that a
// bad cell fails one row, not the whole fetch.
type RankingRow struct {
	Rank       string
	Team       string
	Conference string
	Record     string
	AdjEM      string
}

// ratingColumns is the known column schema of the kenpom ratings table.
// The header is mapped onto this fixed layout; any mismatch in column count
// or in the columns we consume is a hard failure, because a silently
// misaligned table would corrupt every derived price downstream.
var ratingColumns = []string{
	"Rk", "Team", "Conf", "W-L",
	"AdjEM", "AdjO", "AdjORnk", "AdjD", "AdjDRnk",
	"AdjT", "AdjTRnk", "Luck", "LuckRnk",
	"SOSAdjEM", "SOSAdjEMRnk", "OppO", "OppORnk",
	"OppD", "OppDRnk", "NCSOSAdjEM", "NCSOSAdjEMRnk",
}

// Positions of the columns the pipeline consumes.
const (
	colRank = 0
	colTeam = 1
	colConf = 2
	colRec  = 3
	colEM   = 4
)

// parseRatings parses the ratings page HTML into ranking rows.
func parseRatings(r io.Reader) ([]RankingRow, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", ErrFormatChanged, err)
	}

	table := doc.Find("table#ratings-table")
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: ratings table not found", ErrFormatChanged)
	}

	if err := checkHeader(table); err != nil {
		return nil, err
	}

	var rows []RankingRow
	table.Find("tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		// The table repeats its header mid-body; those rows carry no td cells
		// and are skipped here.
		if cells.Length() != len(ratingColumns) {
			return
		}

		rows = append(rows, RankingRow{
			Rank:       cellText(cells, colRank),
			Team:       teamName(cells.Eq(colTeam)),
			Conference: cellText(cells, colConf),
			Record:     cellText(cells, colRec),
			AdjEM:      cellText(cells, colEM),
		})
	})

	return rows, nil
}

// checkHeader verifies the bottom header row against the known schema.
// The page uses a two-row grouped header; the bottom row carries one cell
// per column.
func checkHeader(table *goquery.Selection) error {
	header := table.Find("thead tr").Last().Find("th")
	if header.Length() != len(ratingColumns) {
		return fmt.Errorf("%w: header has %d columns, want %d",
			ErrFormatChanged, header.Length(), len(ratingColumns))
	}

	// Spot-check the columns the pipeline actually reads.
	for _, col := range []struct {
		idx  int
		name string
	}{
		{colTeam, "Team"},
		{colConf, "Conf"},
		{colEM, "AdjEM"},
	} {
		got := strings.TrimSpace(header.Eq(col.idx).Text())
		if got != col.name {
			return fmt.Errorf("%w: column %d is %q, want %q",
				ErrFormatChanged, col.idx, got, col.name)
		}
	}

	return nil
}

// teamName extracts the team name from its cell. The cell text includes a
// tournament seed annotation during March; the team link carries the bare name.
func teamName(cell *goquery.Selection) string {
	if link := cell.Find("a").First(); link.Length() > 0 {
		return strings.TrimSpace(link.Text())
	}
	return strings.TrimSpace(cell.Text())
}

func cellText(cells *goquery.Selection, idx int) string {
	return strings.TrimSpace(cells.Eq(idx).Text())
}
