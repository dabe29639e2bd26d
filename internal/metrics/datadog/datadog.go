// Package datadog sends pipeline metrics to a DogStatsD agent.
//
// Metric names follow Datadog's dotted convention under a namespace:
// breachpw_records_total is sent as breachpw.records.total. The job is a
// global tag, so per-call "job" labels are not repeated.
package datadog

import (
	"fmt"
	"sort"
	"strings"

	"breachpw/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// DefaultNamespace prefixes every metric name when Config.Namespace is empty.
const DefaultNamespace = "breachpw."

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125" or "unix:///path/to/socket".
	Addr string

	Namespace string
	Job       string
	Storage   string
}

// Backend is a DogStatsD implementation of metrics.Backend.
type Backend struct {
	client statsd.ClientInterface
}

func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	opts := []statsd.Option{statsd.WithNamespace(ns)}
	if tags := globalTags(cfg); len(tags) > 0 {
		opts = append(opts, statsd.WithTags(tags))
	}

	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}
	return &Backend{client: c}, nil
}

// IncCounter sends a Count. Fractional deltas are truncated.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Count(metricName(name), int64(delta), tags(labels), 1)
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Histogram(metricName(name), value, tags(labels), 1)
}

func (b *Backend) SetGauge(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Gauge(metricName(name), value, tags(labels), 1)
}

// Flush closes the client, which sends anything still buffered. Call it
// once at exit.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func globalTags(cfg Config) []string {
	var out []string
	if cfg.Job != "" {
		out = append(out, "job:"+cfg.Job)
	}
	if cfg.Storage != "" {
		out = append(out, "storage:"+cfg.Storage)
	}
	return out
}

// metricName maps breachpw_stage_duration_seconds to stage.duration.seconds;
// the namespace supplies the prefix.
func metricName(name string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, "breachpw_"), "_", ".")
}

// tags converts labels into sorted "key:value" tags, minus the job.
func tags(lbls metrics.Labels) []string {
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		if k == "job" {
			continue
		}
		out = append(out, k+":"+v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

var _ metrics.Backend = (*Backend)(nil)
