package metrics

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Stat kinds reported by the stages.
const (
	KindFiles        = "files"
	KindLines        = "lines"
	KindValues       = "values"
	KindSkipped      = "skipped"
	KindEmpty        = "empty"
	KindRows         = "rows"
	KindRejected     = "rejected"
	KindInserted     = "inserted"
	KindBatches      = "batches"
	KindMerged       = "merged"
	KindDistinct     = "distinct"
	KindTotal        = "total"
	KindDeleted      = "deleted"
	KindDeleteFailed = "delete_failed"
)

// Stats counts what one stage did. It is safe for concurrent use; kinds are
// reported in first-seen order.
type Stats struct {
	Stage string

	mu     sync.Mutex
	counts map[string]int64
	order  []string
}

// NewStats returns empty Stats for stage.
func NewStats(stage string) *Stats {
	return &Stats{Stage: stage, counts: make(map[string]int64)}
}

// Add adds n to kind. Zero deltas still register the kind so summaries list
// it.
func (s *Stats) Add(kind string, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counts[kind]; !ok {
		s.order = append(s.order, kind)
	}
	s.counts[kind] += n
}

// Get returns the current value of kind.
func (s *Stats) Get(kind string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[kind]
}

// Fields renders the counters for a structured log line.
func (s *Stats) Fields() logrus.Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := make(logrus.Fields, len(s.counts)+1)
	f["stage"] = s.Stage
	for k, v := range s.counts {
		f[k] = v
	}
	return f
}

// Publish forwards every counter to the metrics backend.
func (s *Stats) Publish(job string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.order {
		if k == KindBatches {
			RecordBatches(job, s.counts[k])
			continue
		}
		RecordRow(job, s.Stage, k, s.counts[k])
	}
}
