// Package extract implements the first pipeline stage: it turns raw breach
// dump lines of the form "<mail prefix>@<domain>:<password>" into one
// password per line.
//
// Every file under the source directory produces a file at the same relative
// path under the destination directory, even when nothing matched.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/sirupsen/logrus"

	"breachpw/internal/charset"
	"breachpw/internal/config"
	"breachpw/internal/datasource/file"
	"breachpw/internal/metrics"
)

// Stage is the stage name used in logs and metrics.
const Stage = "extract"

// Extractor runs the extract stage.
type Extractor struct {
	cfg   config.Extract
	re    *regexp.Regexp
	codec *charset.Codec
	log   logrus.FieldLogger
}

// New compiles cfg.Pattern (config.DefaultPattern when empty).
func New(cfg config.Extract, codec *charset.Codec, log logrus.FieldLogger) (*Extractor, error) {
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = config.DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("extract: compile pattern: %w", err)
	}
	return &Extractor{
		cfg:   cfg,
		re:    re,
		codec: codec,
		log:   log.WithField("stage", Stage),
	}, nil
}

// Split returns everything after the leftmost delimiter match. ok is false
// when the line has no delimiter.
func (e *Extractor) Split(line string) (password string, ok bool) {
	loc := e.re.FindStringIndex(line)
	if loc == nil {
		return "", false
	}
	return line[loc[1]:], true
}

// Run processes every shard under the source directory in order.
func (e *Extractor) Run(ctx context.Context) (*metrics.Stats, error) {
	stats := metrics.NewStats(Stage)

	shards, err := file.List(e.cfg.Source, func(path string, err error) {
		e.log.WithError(err).WithField("path", path).Warn("skipping unreadable entry")
	})
	if err != nil {
		return stats, err
	}

	rm := file.NewRemover(e.cfg.DeleteSource)
	for _, shard := range shards {
		if err := e.extractFile(ctx, shard, stats); err != nil {
			return stats, err
		}
		stats.Add(metrics.KindFiles, 1)
		rm.Remove(file.Path(e.cfg.Source, shard))
	}

	stats.Add(metrics.KindDeleted, rm.Deleted())
	stats.Add(metrics.KindDeleteFailed, rm.Failed())
	if err := rm.Err(); err != nil {
		e.log.WithError(err).Warn("some sources could not be deleted")
	}
	return stats, nil
}

func (e *Extractor) extractFile(ctx context.Context, shard string, stats *metrics.Stats) error {
	sh := file.Shard{Dir: e.cfg.Source, ID: shard}
	src := sh.Path()
	log := e.log.WithField("shard", shard)

	rc, err := sh.Open(ctx)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	defer rc.Close()

	w, err := file.Create(sh.In(e.cfg.Destination).Path(), e.codec)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	var lines, values, skipped, empty int64
	lr := file.NewLineReader(rc, e.codec).StripCR()
	for {
		if err := ctx.Err(); err != nil {
			_ = w.Close()
			return err
		}
		line, err := lr.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			var le *file.LineError
			if errors.As(err, &le) {
				lines++
				skipped++
				log.WithError(le).Debug("undecodable line")
				continue
			}
			_ = w.Close()
			return fmt.Errorf("extract: read %s: %w", src, err)
		}
		lines++

		pw, ok := e.Split(line)
		switch {
		case !ok:
			skipped++
			continue
		case pw == "":
			empty++
			continue
		}
		if err := w.WriteLine(pw); err != nil {
			_ = w.Close()
			return fmt.Errorf("extract: %w", err)
		}
		values++
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	stats.Add(metrics.KindLines, lines)
	stats.Add(metrics.KindValues, values)
	stats.Add(metrics.KindSkipped, skipped)
	stats.Add(metrics.KindEmpty, empty)
	log.WithFields(logrus.Fields{"lines": lines, "values": values, "skipped": skipped}).Debug("shard extracted")
	return nil
}
