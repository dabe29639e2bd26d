// Package dedup implements the second pipeline stage: per shard, it counts
// how often each distinct line occurs and writes "value<TAB>count" rows
// sorted by count descending.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"breachpw/internal/charset"
	"breachpw/internal/config"
	"breachpw/internal/datasource/file"
	"breachpw/internal/metrics"
	"breachpw/internal/parser/tsv"
)

// Stage is the stage name used in logs and metrics.
const Stage = "dedup"

// Deduplicator runs the dedup stage.
type Deduplicator struct {
	cfg   config.Stage
	codec *charset.Codec
	log   logrus.FieldLogger
}

// New returns a Deduplicator reading cfg.Source and writing cfg.Destination.
func New(cfg config.Stage, codec *charset.Codec, log logrus.FieldLogger) *Deduplicator {
	return &Deduplicator{cfg: cfg, codec: codec, log: log.WithField("stage", Stage)}
}

// Sorted orders counts by count descending, then value ascending (byte
// order), so output is identical across runs.
func Sorted(counts map[string]int64) []tsv.Count {
	out := make([]tsv.Count, 0, len(counts))
	for v, n := range counts {
		out = append(out, tsv.Count{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Run processes every shard under the source directory in order.
func (d *Deduplicator) Run(ctx context.Context) (*metrics.Stats, error) {
	stats := metrics.NewStats(Stage)

	shards, err := file.List(d.cfg.Source, func(path string, err error) {
		d.log.WithError(err).WithField("path", path).Warn("skipping unreadable entry")
	})
	if err != nil {
		return stats, err
	}

	rm := file.NewRemover(d.cfg.DeleteSource)
	for _, shard := range shards {
		if err := d.dedupFile(ctx, shard, stats); err != nil {
			return stats, err
		}
		stats.Add(metrics.KindFiles, 1)
		rm.Remove(file.Path(d.cfg.Source, shard))
	}

	stats.Add(metrics.KindDeleted, rm.Deleted())
	stats.Add(metrics.KindDeleteFailed, rm.Failed())
	if err := rm.Err(); err != nil {
		d.log.WithError(err).Warn("some sources could not be deleted")
	}
	return stats, nil
}

func (d *Deduplicator) dedupFile(ctx context.Context, shard string, stats *metrics.Stats) error {
	sh := file.Shard{Dir: d.cfg.Source, ID: shard}

	counts, lines, skipped, err := d.count(ctx, sh)
	if err != nil {
		return err
	}

	w, err := file.Create(sh.In(d.cfg.Destination).Path(), d.codec)
	if err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	for _, c := range Sorted(counts) {
		if err := w.WriteLine(tsv.Format(c)); err != nil {
			_ = w.Close()
			return fmt.Errorf("dedup: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("dedup: %w", err)
	}

	stats.Add(metrics.KindLines, lines)
	stats.Add(metrics.KindValues, int64(len(counts)))
	stats.Add(metrics.KindSkipped, skipped)
	d.log.WithFields(logrus.Fields{"shard": shard, "lines": lines, "distinct": len(counts)}).Debug("shard deduplicated")
	return nil
}

// count tallies the lines of one shard. Empty and undecodable lines are
// skipped.
func (d *Deduplicator) count(ctx context.Context, sh file.Shard) (map[string]int64, int64, int64, error) {
	rc, err := sh.Open(ctx)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("dedup: %w", err)
	}
	defer rc.Close()

	var (
		counts        = make(map[string]int64)
		lines, skipped int64
	)
	lr := file.NewLineReader(rc, d.codec)
	for {
		if err := ctx.Err(); err != nil {
			return nil, lines, skipped, err
		}
		line, err := lr.ReadLine()
		if err == io.EOF {
			return counts, lines, skipped, nil
		}
		lines++
		if err != nil {
			var le *file.LineError
			if errors.As(err, &le) {
				skipped++
				continue
			}
			return nil, lines, skipped, fmt.Errorf("dedup: read %s: %w", sh.Path(), err)
		}
		if line == "" {
			skipped++
			continue
		}
		counts[line]++
	}
}
