package main

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"breachpw/internal/config"
	"breachpw/internal/metrics"
	"breachpw/internal/metrics/datadog"
	"breachpw/internal/metrics/prompush"
)

// newLogger builds the process logger. verbose forces debug level.
func newLogger(cfg config.Log, verbose bool, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level := logrus.InfoLevel
	if cfg.Level != "" {
		if l, err := logrus.ParseLevel(cfg.Level); err == nil {
			level = l
		} else {
			log.WithField("level", cfg.Level).Warn("unknown log level; using info")
		}
	}
	if verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)
	return log
}

// setupMetrics installs the configured backend and returns the function
// that flushes it at exit. Backend failures only disable metrics.
func setupMetrics(p config.Pipeline, log logrus.FieldLogger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch p.Metrics.Backend {
	case "", "none":
		log.Debug("metrics: disabled")
		return func() {}
	case "pushgateway":
		b, err = prompush.NewBackend(prompush.Config{
			URL:     p.Metrics.PushgatewayURL,
			Job:     p.Job,
			Storage: p.Storage.Kind,
		})
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:    p.Metrics.DatadogAddr,
			Job:     p.Job,
			Storage: p.Storage.Kind,
		})
	default:
		log.WithField("backend", p.Metrics.Backend).Warn("metrics: unknown backend; metrics disabled")
		return func() {}
	}
	if err != nil {
		log.WithError(err).Warn("metrics: backend init failed; metrics disabled")
		return func() {}
	}

	metrics.SetBackend(b)
	log.WithField("backend", p.Metrics.Backend).Info("metrics: enabled")
	return func() {
		if err := metrics.Flush(); err != nil {
			log.WithError(err).Warn("metrics: flush failed")
		}
	}
}
