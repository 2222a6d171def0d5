package reconcile

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/courtside/midmajor/internal/pricing"
)

// snapshotTimeFormat names snapshot files by run timestamp.
const snapshotTimeFormat = "20060102T150405Z"

// SnapshotWriter archives the full priced table of a run as a CSV file for
// audit and debugging. Snapshots are immutable: a file is never overwritten
// once written.
type SnapshotWriter struct {
	dir string
}

// NewSnapshotWriter creates a snapshot writer rooted at dir.
func NewSnapshotWriter(dir string) *SnapshotWriter {
	return &SnapshotWriter{dir: dir}
}

// Write persists one run's priced table. It returns the path of the
// written file.
func (w *SnapshotWriter) Write(runTime time.Time, priced []pricing.PricedTeam) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("prices_%s.csv", runTime.UTC().Format(snapshotTimeFormat))
	path := filepath.Join(w.dir, name)

	// O_EXCL guarantees a run can never clobber an earlier snapshot.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create snapshot %s: %w", name, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"team", "conference", "rating", "price"}); err != nil {
		f.Close()
		return "", fmt.Errorf("write snapshot header: %w", err)
	}

	for _, p := range priced {
		record := []string{p.Team, p.Conference, p.Rating.String(), p.Price.StringFixed(2)}
		if err := cw.Write(record); err != nil {
			f.Close()
			return "", fmt.Errorf("write snapshot row for %s: %w", p.Team, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return "", fmt.Errorf("flush snapshot: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close snapshot: %w", err)
	}

	return path, nil
}
