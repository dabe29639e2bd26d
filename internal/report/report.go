// Package report implements the last pipeline stage: frequency-ranked
// wordlists and a small statistics file built from the merged table.
package report

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"breachpw/internal/charset"
	"breachpw/internal/config"
	"breachpw/internal/datasource/file"
	"breachpw/internal/metrics"
)

// Stage is the stage name used in logs and metrics.
const Stage = "report"

// StatsFile is the name of the statistics file in the destination directory.
const StatsFile = "stats.txt"

// ErrDuplicateValue means the merged table yielded the same value twice.
var ErrDuplicateValue = errors.New("value listed twice")

// Store is the part of storage.Repository the reporter reads from.
type Store interface {
	Totals(ctx context.Context, table string) (rows, sum int64, err error)
	TopValues(ctx context.Context, table string, k int, fn func(value string, count int64) error) error
}

// Reporter runs the report stage.
type Reporter struct {
	cfg   config.Report
	table string
	repo  Store
	codec *charset.Codec
	log   logrus.FieldLogger
}

// New returns a Reporter reading the merged table named table.
func New(cfg config.Report, table string, repo Store, codec *charset.Codec, log logrus.FieldLogger) *Reporter {
	return &Reporter{
		cfg:   cfg,
		table: table,
		repo:  repo,
		codec: codec,
		log:   log.WithField("stage", Stage),
	}
}

// FileName returns the wordlist name for size k: top_1_mio.txt for whole
// millions, top_100_k.txt for whole thousands, top_<k>.txt otherwise.
func FileName(k int) string {
	switch {
	case k >= 1_000_000 && k%1_000_000 == 0:
		return "top_" + strconv.Itoa(k/1_000_000) + "_mio.txt"
	case k >= 1_000 && k%1_000 == 0:
		return "top_" + strconv.Itoa(k/1_000) + "_k.txt"
	default:
		return "top_" + strconv.Itoa(k) + ".txt"
	}
}

// sizes returns the positive sizes of ks, deduplicated and ascending.
func sizes(ks []int) []int {
	seen := make(map[int]struct{}, len(ks))
	out := make([]int, 0, len(ks))
	for _, k := range ks {
		if k <= 0 {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Run writes every wordlist and appends the totals to stats.txt. All lists
// are fed from a single ranked scan, so each smaller list is a prefix of the
// larger ones.
func (r *Reporter) Run(ctx context.Context) (*metrics.Stats, error) {
	stats := metrics.NewStats(Stage)

	if err := r.writeLists(ctx, stats); err != nil {
		return stats, err
	}

	rows, sum, err := r.repo.Totals(ctx, r.table)
	if err != nil {
		return stats, fmt.Errorf("report: %w", err)
	}
	stats.Add(metrics.KindDistinct, rows)
	stats.Add(metrics.KindTotal, sum)

	w, err := file.Append(filepath.Join(r.cfg.Destination, StatsFile), r.codec)
	if err != nil {
		return stats, fmt.Errorf("report: %w", err)
	}
	for _, line := range []string{
		"Amount of unique passwords:" + strconv.FormatInt(rows, 10),
		"Amount of passwords:" + strconv.FormatInt(sum, 10),
	} {
		if err := w.WriteLine(line); err != nil {
			_ = w.Close()
			return stats, fmt.Errorf("report: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return stats, fmt.Errorf("report: %w", err)
	}
	stats.Add(metrics.KindFiles, 1)
	return stats, nil
}

type list struct {
	k int
	w *file.Writer
}

func (r *Reporter) writeLists(ctx context.Context, stats *metrics.Stats) (err error) {
	ks := sizes(r.cfg.TopK)
	if len(ks) == 0 {
		return nil
	}

	lists := make([]list, 0, len(ks))
	defer func() {
		for _, l := range lists {
			if cerr := l.w.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("report: %w", cerr)
			}
		}
	}()
	for _, k := range ks {
		w, err := file.Append(filepath.Join(r.cfg.Destination, FileName(k)), r.codec)
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}
		lists = append(lists, list{k: k, w: w})
	}

	var seen map[xxh3.Uint128]struct{}
	if r.cfg.CheckUnique {
		seen = make(map[xxh3.Uint128]struct{})
	}

	var rank int
	err = r.repo.TopValues(ctx, r.table, ks[len(ks)-1], func(value string, _ int64) error {
		if seen != nil {
			h := xxh3.HashString128(value)
			if _, dup := seen[h]; dup {
				return fmt.Errorf("%w: %q at rank %d", ErrDuplicateValue, value, rank+1)
			}
			seen[h] = struct{}{}
		}
		// Every list longer than the current rank gets the value.
		for _, l := range lists {
			if rank >= l.k {
				continue
			}
			if err := l.w.WriteLine(value); err != nil {
				return err
			}
		}
		rank++
		return nil
	})
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	stats.Add(metrics.KindValues, int64(rank))
	stats.Add(metrics.KindFiles, int64(len(lists)))
	r.log.WithFields(logrus.Fields{"ranked": rank, "lists": len(lists)}).Debug("wordlists written")
	return nil
}
