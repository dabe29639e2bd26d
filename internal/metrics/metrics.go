// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the pipeline stages.
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - Concrete metric systems (Prometheus Pushgateway, Datadog) live in
//     subpackages so the stages never import them.
package metrics

import "time"

// Metric names shared by all backends.
const (
	StageTotal           = "breachpw_stage_total"
	StageDurationSeconds = "breachpw_stage_duration_seconds"
	RecordsTotal         = "breachpw_records_total"
	BatchesTotal         = "breachpw_batches_total"
	WordlistPasswords    = "breachpw_wordlist_passwords"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// SetGauge sets a point-in-time value.
	SetGauge(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) SetGauge(name string, value float64, labels Labels)         {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// NopBackend returns the default backend, which drops everything.
func NopBackend() Backend { return nopBackend{} }

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStage measures latency + success/failure of one pipeline stage.
func RecordStage(job, stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"stage":  stage,
		"status": status,
	}

	backend.IncCounter(StageTotal, 1, lbls)
	backend.ObserveHistogram(StageDurationSeconds, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given job, stage and
// kind. Kinds mirror the Stats keys, e.g. "lines", "skipped", "inserted".
func RecordRow(job, stage, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":   job,
		"stage": stage,
		"kind":  kind,
	})
}

// RecordBatches increments a batch-level counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}

// RecordWordlist publishes the size of the reported wordlist: distinct
// passwords and the total number of occurrences behind them.
func RecordWordlist(job string, distinct, total int64) {
	backend.SetGauge(WordlistPasswords, float64(distinct), Labels{"job": job, "kind": "distinct"})
	backend.SetGauge(WordlistPasswords, float64(total), Labels{"job": job, "kind": "total"})
}
