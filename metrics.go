package autobatch

import (
	"sync/atomic"
	"time"
)

// counters are the coordinator's internal monotonic counters.
type counters struct {
	items   atomic.Uint64
	batches atomic.Uint64
	dropped atomic.Uint64
	errors  atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of the coordinator's counters.
// Each counter is individually consistent and monotonic; a snapshot taken
// concurrently with a dispatch cycle may straddle that cycle's updates.
type MetricsSnapshot struct {
	// TotalItems is the number of submissions handed to the executor.
	TotalItems uint64
	// TotalBatches is the number of executor invocations.
	TotalBatches uint64
	// TotalDropped is the number of submissions rejected with ErrQueueFull.
	TotalDropped uint64
	// TotalErrors is the number of submissions that received an executor
	// error (batch size per failed batch).
	TotalErrors uint64
}

// AsMap returns the snapshot as a counter-name map.
func (s MetricsSnapshot) AsMap() map[string]uint64 {
	return map[string]uint64{
		"total_items":   s.TotalItems,
		"total_batches": s.TotalBatches,
		"total_dropped": s.TotalDropped,
		"total_errors":  s.TotalErrors,
	}
}

// Metrics returns a snapshot of the batcher's counters.
func (b *Batcher[T, R]) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalItems:   b.counters.items.Load(),
		TotalBatches: b.counters.batches.Load(),
		TotalDropped: b.counters.dropped.Load(),
		TotalErrors:  b.counters.errors.Load(),
	}
}

// Observer receives dispatch-level events from a Batcher. Implementations
// must be safe for concurrent use; BatchDispatched is called from the
// dispatcher goroutine, SubmissionDropped from submitter goroutines.
type Observer interface {
	// BatchDispatched reports one completed batch cycle. queueWait is the
	// time the batch's first submission spent waiting, duration the executor
	// call itself. err is nil on success.
	BatchDispatched(batcherID string, size int, queueWait, duration time.Duration, err error)

	// SubmissionDropped reports a submission rejected with ErrQueueFull.
	SubmissionDropped(batcherID string)
}
