// Package load implements the third pipeline stage: it bulk-inserts the
// per-shard counts written by dedup into the raw table, one row per value
// per shard. Nothing is merged here.
package load

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"breachpw/internal/charset"
	"breachpw/internal/config"
	"breachpw/internal/datasource/file"
	"breachpw/internal/metrics"
	"breachpw/internal/parser/tsv"
	"breachpw/internal/storage"
)

// Stage is the stage name used in logs and metrics.
const Stage = "load"

// Loader runs the load stage against one repository.
type Loader struct {
	cfg   config.Stage
	table storage.Table
	rt    config.RuntimeConfig
	repo  storage.Repository
	codec *charset.Codec
	log   logrus.FieldLogger
}

// New returns a Loader filling the raw table named table.
func New(
	cfg config.Stage,
	table string,
	rt config.RuntimeConfig,
	repo storage.Repository,
	codec *charset.Codec,
	log logrus.FieldLogger,
) *Loader {
	return &Loader{
		cfg:   cfg,
		table: storage.RawTable(table),
		rt:    rt,
		repo:  repo,
		codec: codec,
		log:   log.WithField("stage", Stage),
	}
}

// Run creates the raw table and loads every shard in order. The table must
// not exist yet.
func (l *Loader) Run(ctx context.Context) (*metrics.Stats, error) {
	stats := metrics.NewStats(Stage)

	shards, err := file.List(l.cfg.Source, func(path string, err error) {
		l.log.WithError(err).WithField("path", path).Warn("skipping unreadable entry")
	})
	if err != nil {
		return stats, err
	}

	if err := l.repo.CreateTable(ctx, l.table); err != nil {
		return stats, fmt.Errorf("load: create %s: %w", l.table.Name, err)
	}

	rm := file.NewRemover(l.cfg.DeleteSource)
	for _, shard := range shards {
		if err := l.loadFile(ctx, shard, stats); err != nil {
			return stats, err
		}
		stats.Add(metrics.KindFiles, 1)
		// Every batch of the shard is committed at this point.
		rm.Remove(file.Path(l.cfg.Source, shard))
	}

	stats.Add(metrics.KindDeleted, rm.Deleted())
	stats.Add(metrics.KindDeleteFailed, rm.Failed())
	if err := rm.Err(); err != nil {
		l.log.WithError(err).Warn("some sources could not be deleted")
	}
	return stats, nil
}

// loadFile streams one shard through a bounded channel into batched
// inserts. The producer parses rows; the consumer owns the batching.
func (l *Loader) loadFile(ctx context.Context, shard string, stats *metrics.Stats) error {
	sh := file.Shard{Dir: l.cfg.Source, ID: shard}
	src := sh.Path()
	log := l.log.WithField("shard", shard)

	rc, err := sh.Open(ctx)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	defer rc.Close()

	g, gctx := errgroup.WithContext(ctx)
	rows := make(chan []any, l.rt.ChannelBuffer)

	g.Go(func() error {
		defer close(rows)
		emit := func(c tsv.Count) error {
			stats.Add(metrics.KindRows, 1)
			if !l.repo.Accepts(c.Value) {
				stats.Add(metrics.KindRejected, 1)
				log.WithField("count", c.Count).Debug("value not representable in store; row skipped")
				return nil
			}
			select {
			case rows <- []any{c.Value, c.Count}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		onError := func(line int, err error) {
			stats.Add(metrics.KindSkipped, 1)
			log.WithError(err).WithField("line", line).Debug("malformed row skipped")
		}
		if err := tsv.Stream(gctx, file.NewLineReader(rc, l.codec), emit, onError); err != nil {
			return fmt.Errorf("load: read %s: %w", src, err)
		}
		return nil
	})

	g.Go(func() error {
		copyFn := func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
			n, err := l.repo.CopyFrom(ctx, l.table.Name, columns, batch)
			if err == nil {
				stats.Add(metrics.KindBatches, 1)
			}
			return n, err
		}
		n, err := storage.LoadBatches(gctx, log, l.table.ColumnNames(), rows, l.rt.BatchSize, copyFn)
		stats.Add(metrics.KindInserted, n)
		if err != nil {
			return fmt.Errorf("load: insert into %s: %w", l.table.Name, err)
		}
		return nil
	})

	return g.Wait()
}
