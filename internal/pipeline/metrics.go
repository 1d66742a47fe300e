package pipeline

import (
	"sync/atomic"
)

// Metrics holds per-pipeline counters. The process-wide Prometheus series
// live in the metrics package; these back Stats for the run summary.
type Metrics struct {
	Received  atomic.Uint64
	Parsed    atomic.Uint64
	Dropped   atomic.Uint64
	Written   atomic.Uint64
	Completed atomic.Uint64
	Abandoned atomic.Uint64
}

// Stats is a point-in-time copy of Metrics.
type Stats struct {
	Received  uint64 `json:"received" yaml:"received"`
	Parsed    uint64 `json:"parsed" yaml:"parsed"`
	Dropped   uint64 `json:"dropped" yaml:"dropped"`
	Written   uint64 `json:"written" yaml:"written"`
	Completed uint64 `json:"completed" yaml:"completed"`
	Abandoned uint64 `json:"abandoned" yaml:"abandoned"`
}

func (m *Metrics) snapshot() Stats {
	return Stats{
		Received:  m.Received.Load(),
		Parsed:    m.Parsed.Load(),
		Dropped:   m.Dropped.Load(),
		Written:   m.Written.Load(),
		Completed: m.Completed.Load(),
		Abandoned: m.Abandoned.Load(),
	}
}
