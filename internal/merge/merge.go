// Package merge implements the merge and compact stages. Merge aggregates
// the raw per-shard counts into one row per distinct value inside the store;
// Compact drops the raw table and reclaims its space.
package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"breachpw/internal/config"
	"breachpw/internal/metrics"
	"breachpw/internal/storage"
)

// Stage names used in logs and metrics.
const (
	Stage        = "merge"
	CompactStage = "compact"
)

var (
	// ErrConservation means the merged table does not hold the same total
	// count as the raw table.
	ErrConservation = errors.New("merge: total count not conserved")

	// ErrMergedMissing means compaction was asked to drop the raw table
	// before the merged table exists.
	ErrMergedMissing = errors.New("merge: merged table does not exist")
)

// Merger runs the merge and compact stages against one repository.
type Merger struct {
	raw, merged string
	verify      bool
	repo        storage.Repository
	log         logrus.FieldLogger
}

// New returns a Merger for the tables named in st.
func New(st config.Storage, cfg config.Merge, repo storage.Repository, log logrus.FieldLogger) *Merger {
	return &Merger{
		raw:    st.RawTable,
		merged: st.MergedTable,
		verify: cfg.Verify,
		repo:   repo,
		log:    log,
	}
}

// Merge creates the merged table and fills it with SUM(count) per value.
func (m *Merger) Merge(ctx context.Context) (*metrics.Stats, error) {
	stats := metrics.NewStats(Stage)
	log := m.log.WithField("stage", Stage)

	if err := m.repo.CreateTable(ctx, storage.MergedTable(m.merged)); err != nil {
		return stats, fmt.Errorf("merge: create %s: %w", m.merged, err)
	}
	n, err := m.repo.MergeCounts(ctx, m.raw, m.merged)
	if err != nil {
		return stats, fmt.Errorf("merge: %w", err)
	}
	stats.Add(metrics.KindMerged, n)
	log.WithFields(logrus.Fields{"from": m.raw, "into": m.merged, "distinct": n}).Debug("counts merged")

	if !m.verify {
		return stats, nil
	}
	rawRows, merged, err := m.checkTotals(ctx)
	if err != nil {
		return stats, err
	}
	stats.Add(metrics.KindRows, rawRows)
	stats.Add(metrics.KindTotal, merged)
	return stats, nil
}

// checkTotals compares SUM(count) of both tables.
func (m *Merger) checkTotals(ctx context.Context) (rawRows, total int64, err error) {
	rawRows, rawSum, err := m.repo.Totals(ctx, m.raw)
	if err != nil {
		return 0, 0, fmt.Errorf("merge: %w", err)
	}
	_, mergedSum, err := m.repo.Totals(ctx, m.merged)
	if err != nil {
		return 0, 0, fmt.Errorf("merge: %w", err)
	}
	if rawSum != mergedSum {
		return 0, 0, fmt.Errorf("%w: %s=%d %s=%d", ErrConservation, m.raw, rawSum, m.merged, mergedSum)
	}
	return rawRows, mergedSum, nil
}

// Compact drops the raw table and reclaims space. It refuses to drop
// anything unless the merged table exists and, when the raw table is still
// there, both totals agree.
func (m *Merger) Compact(ctx context.Context) (*metrics.Stats, error) {
	stats := metrics.NewStats(CompactStage)
	log := m.log.WithField("stage", CompactStage)

	ok, err := m.repo.TableExists(ctx, m.merged)
	if err != nil {
		return stats, fmt.Errorf("compact: %w", err)
	}
	if !ok {
		return stats, fmt.Errorf("compact: %w: %s", ErrMergedMissing, m.merged)
	}

	ok, err = m.repo.TableExists(ctx, m.raw)
	if err != nil {
		return stats, fmt.Errorf("compact: %w", err)
	}
	if ok {
		if _, _, err := m.checkTotals(ctx); err != nil {
			return stats, fmt.Errorf("compact: refusing to drop %s: %w", m.raw, err)
		}
		if err := m.repo.DropTable(ctx, m.raw); err != nil {
			return stats, fmt.Errorf("compact: %w", err)
		}
		stats.Add(metrics.KindDeleted, 1)
	} else {
		log.WithField("table", m.raw).Info("raw table already dropped")
	}

	if err := m.repo.Compact(ctx, m.merged); err != nil {
		return stats, fmt.Errorf("compact: %w", err)
	}
	return stats, nil
}
