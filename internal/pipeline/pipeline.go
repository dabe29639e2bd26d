// Package pipeline wires the stages together and runs them in their fixed
// order: extract, dedup, load, merge, compact, report.
//
// The file stages (extract, dedup) need no store. The store stages share one
// repository that is opened when the first of them starts and closed when
// the last one returns, whatever the outcome.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"breachpw/internal/charset"
	"breachpw/internal/config"
	"breachpw/internal/dedup"
	"breachpw/internal/extract"
	"breachpw/internal/load"
	"breachpw/internal/merge"
	"breachpw/internal/metrics"
	"breachpw/internal/report"
	"breachpw/internal/storage"
)

// Stages lists every stage name in execution order.
var Stages = []string{
	extract.Stage,
	dedup.Stage,
	load.Stage,
	merge.Stage,
	merge.CompactStage,
	report.Stage,
}

func needsStore(stage string) bool {
	switch stage {
	case load.Stage, merge.Stage, merge.CompactStage, report.Stage:
		return true
	}
	return false
}

// OpenFunc opens the store.
type OpenFunc func(ctx context.Context, cfg storage.Config) (storage.Repository, error)

// Runner executes stages of one Pipeline.
type Runner struct {
	p     config.Pipeline
	codec *charset.Codec
	log   logrus.FieldLogger
	open  OpenFunc
}

// New resolves the pipeline's charset and returns a Runner that opens the
// store through the storage factory.
func New(p config.Pipeline, log logrus.FieldLogger) (*Runner, error) {
	codec, err := charset.Lookup(p.Encoding)
	if err != nil {
		return nil, err
	}
	return &Runner{
		p:     p,
		codec: codec,
		log:   log.WithField("job", p.Job),
		open:  storage.New,
	}, nil
}

// WithOpener replaces how the store is opened.
func (r *Runner) WithOpener(open OpenFunc) *Runner {
	r.open = open
	return r
}

// RunAll executes every stage.
func (r *Runner) RunAll(ctx context.Context) error {
	return r.Run(ctx, Stages...)
}

// Run executes the named stages in pipeline order, whatever order they are
// given in. Unknown names fail before anything runs.
func (r *Runner) Run(ctx context.Context, names ...string) error {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if !slices.Contains(Stages, n) {
			return fmt.Errorf("pipeline: unknown stage %q", n)
		}
		want[n] = true
	}

	var fileStages, storeStages []string
	for _, s := range Stages {
		if !want[s] {
			continue
		}
		if needsStore(s) {
			storeStages = append(storeStages, s)
		} else {
			fileStages = append(fileStages, s)
		}
	}

	start := time.Now()
	for _, s := range fileStages {
		if err := r.runStage(ctx, s, r.fileStage(s)); err != nil {
			return err
		}
	}
	if len(storeStages) > 0 {
		err := r.withRepository(ctx, func(repo storage.Repository) error {
			for _, s := range storeStages {
				if err := r.runStage(ctx, s, r.storeStage(s, repo)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	r.log.WithFields(logrus.Fields{
		"stages":  len(fileStages) + len(storeStages),
		"elapsed": time.Since(start).Truncate(time.Millisecond),
	}).Info("pipeline finished")
	return nil
}

type stageFunc func(ctx context.Context) (*metrics.Stats, error)

func (r *Runner) fileStage(name string) stageFunc {
	switch name {
	case extract.Stage:
		return func(ctx context.Context) (*metrics.Stats, error) {
			e, err := extract.New(r.p.Extract, r.codec, r.log)
			if err != nil {
				return nil, err
			}
			return e.Run(ctx)
		}
	default:
		return dedup.New(r.p.Dedup, r.codec, r.log).Run
	}
}

func (r *Runner) storeStage(name string, repo storage.Repository) stageFunc {
	m := merge.New(r.p.Storage, r.p.Merge, repo, r.log)
	switch name {
	case load.Stage:
		return load.New(r.p.Load, r.p.Storage.RawTable, r.p.Runtime, repo, r.codec, r.log).Run
	case merge.Stage:
		return m.Merge
	case merge.CompactStage:
		return m.Compact
	default:
		return report.New(r.p.Report, r.p.Storage.MergedTable, repo, r.codec, r.log).Run
	}
}

// withRepository opens the store, hands it to fn and always closes it.
func (r *Runner) withRepository(ctx context.Context, fn func(storage.Repository) error) error {
	repo, err := r.open(ctx, storage.Config{Kind: r.p.Storage.Kind, DSN: r.p.Storage.DSN})
	if err != nil {
		return fmt.Errorf("pipeline: open %s store: %w", r.p.Storage.Kind, err)
	}
	defer repo.Close()
	return fn(repo)
}

// runStage times one stage, records its metrics and logs its summary.
func (r *Runner) runStage(ctx context.Context, name string, fn stageFunc) error {
	log := r.log.WithField("stage", name)
	log.Debug("stage started")

	start := time.Now()
	stats, err := fn(ctx)
	elapsed := time.Since(start)

	metrics.RecordStage(r.p.Job, name, err, elapsed)
	if stats != nil {
		stats.Publish(r.p.Job)
		if name == report.Stage && err == nil {
			metrics.RecordWordlist(r.p.Job, stats.Get(metrics.KindDistinct), stats.Get(metrics.KindTotal))
		}
		log = log.WithFields(stats.Fields())
	}
	log = log.WithField("elapsed", elapsed.Truncate(time.Millisecond))
	if err != nil {
		log.WithError(err).Error("stage failed")
		return err
	}
	log.Info("stage finished")
	return nil
}
