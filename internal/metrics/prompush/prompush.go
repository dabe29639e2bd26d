// Package prompush pushes pipeline metrics to a Prometheus Pushgateway.
//
// A breachpw run is a short-lived batch job, so nothing is scraped: the
// collectors live in a private registry and Flush pushes them once at exit.
// The job and the storage backend form the grouping key, so neither is
// repeated as a metric label.
package prompush

import (
	"fmt"

	"breachpw/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// DefaultJob is used when Config.Job is empty.
const DefaultJob = "breachpw"

// Config configures the Pushgateway backend.
type Config struct {
	URL     string // e.g. http://pushgateway:9091
	Job     string
	Storage string // storage kind; added to the grouping key when set
}

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	cfg Config
	reg *prometheus.Registry

	stages   *prometheus.CounterVec // breachpw_stage_total{stage,status}
	duration *prometheus.SummaryVec // breachpw_stage_duration_seconds{stage,status}
	records  *prometheus.CounterVec // breachpw_records_total{stage,kind}
	batches  prometheus.Counter     // breachpw_batches_total
	wordlist *prometheus.GaugeVec   // breachpw_wordlist_passwords{kind}
}

// NewBackend registers the pipeline collectors in a fresh registry.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("prompush: pushgateway URL is required")
	}
	if cfg.Job == "" {
		cfg.Job = DefaultJob
	}

	b := &Backend{
		cfg: cfg,
		reg: prometheus.NewRegistry(),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StageTotal,
			Help: "Stage executions by stage and status.",
		}, []string{"stage", "status"}),
		duration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StageDurationSeconds,
			Help:       "Stage wall time in seconds by stage and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"stage", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Lines, values and rows handled per stage, by kind (lines, skipped, rejected, inserted, ...).",
		}, []string{"stage", "kind"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Bulk-insert batches committed to the raw table.",
		}),
		wordlist: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metrics.WordlistPasswords,
			Help: "Size of the last report: distinct passwords and total occurrences.",
		}, []string{"kind"}),
	}

	for _, c := range []struct {
		name string
		c    prometheus.Collector
	}{
		{metrics.StageTotal, b.stages},
		{metrics.StageDurationSeconds, b.duration},
		{metrics.RecordsTotal, b.records},
		{metrics.BatchesTotal, b.batches},
		{metrics.WordlistPasswords, b.wordlist},
	} {
		if err := b.reg.Register(c.c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", c.name, err)
		}
	}
	return b, nil
}

// IncCounter ignores metric names it does not know.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch {
	case name == metrics.StageTotal && b.stages != nil:
		b.stages.WithLabelValues(labels["stage"], labels["status"]).Add(delta)
	case name == metrics.RecordsTotal && b.records != nil:
		b.records.WithLabelValues(labels["stage"], labels["kind"]).Add(delta)
	case name == metrics.BatchesTotal && b.batches != nil:
		b.batches.Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StageDurationSeconds || b.duration == nil {
		return
	}
	b.duration.WithLabelValues(labels["stage"], labels["status"]).Observe(value)
}

func (b *Backend) SetGauge(name string, value float64, labels metrics.Labels) {
	if name != metrics.WordlistPasswords || b.wordlist == nil {
		return
	}
	b.wordlist.WithLabelValues(labels["kind"]).Set(value)
}

// pusher builds the push request for the configured grouping key.
func (b *Backend) pusher() *push.Pusher {
	p := push.New(b.cfg.URL, b.cfg.Job).Gatherer(b.reg)
	if b.cfg.Storage != "" {
		p = p.Grouping("storage", b.cfg.Storage)
	}
	return p
}

// Flush replaces the job's metric group on the Pushgateway.
func (b *Backend) Flush() error {
	if err := b.pusher().Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.cfg.URL, err)
	}
	return nil
}

var _ metrics.Backend = (*Backend)(nil)
