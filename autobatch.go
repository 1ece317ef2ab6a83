// Package autobatch coalesces many single-item calls from concurrent callers
// into fewer list-based calls to an expensive executor, typically an LLM
// inference endpoint. Each caller submits one input and blocks until it
// receives exactly its own output; a shared coordinator groups pending inputs
// into batches bounded by a size cap and a latency cap.
package autobatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Executor is the user-supplied batch function: an ordered list of inputs in,
// an ordered list of outputs of the same length and index correspondence out.
// It runs on the dispatcher goroutine and is never called concurrently with
// itself for a given Batcher. Returning a list of a different length is
// reported to every caller in the batch as an ExecutorError wrapping
// ErrShapeMismatch.
type Executor[T, R any] func(ctx context.Context, inputs []T) ([]R, error)

// Batcher lifecycle states. Transitions are one-way.
const (
	stateActive int32 = iota
	stateClosing
	stateClosed
)

// Batcher is the batching coordinator. It owns the ingress queue, the single
// dispatcher goroutine, and the metrics counters. All state is per-instance;
// there is no process-wide registry.
type Batcher[T, R any] struct {
	cfg    Config
	id     string
	logger *slog.Logger

	queue    *ingress[T, R]
	counters counters
	state    atomic.Int32

	// mu/cond publish the dispatcher's progress to Flush waiters.
	mu       sync.Mutex
	cond     *sync.Cond
	inflight bool

	closeOnce      sync.Once
	dispatcherDone chan struct{}
}

// New creates a Batcher and starts its dispatcher. Zero fields of cfg take
// their documented defaults; invalid values are rejected.
func New[T, R any](cfg Config) (*Batcher[T, R], error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	b := &Batcher[T, R]{
		cfg:            cfg,
		id:             uuid.NewString(),
		logger:         logger,
		queue:          newIngress[T, R](cfg.QueueCapacity),
		dispatcherDone: make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)

	go b.dispatch()

	logger.Debug("batcher started",
		"batcher_id", b.id,
		"max_batch", cfg.MaxBatch,
		"max_wait", cfg.MaxWait,
		"backpressure", string(cfg.Backpressure),
		"queue_capacity", cfg.QueueCapacity,
	)
	return b, nil
}

// Submit enqueues one input and blocks until its result is ready. The
// executor travels with the submission; when several submissions share a
// batch, the batch's first executor is the one invoked.
//
// Submit fails with ErrQueueFull (drop backpressure), ErrShutdown (batcher
// closing or closed), an *ExecutorError, or ctx.Err() if the caller gives up
// first. A caller that abandons a pending submission via ctx does not disturb
// the batch; the discarded result is dropped.
func (b *Batcher[T, R]) Submit(ctx context.Context, input T, exec Executor[T, R]) (R, error) {
	var zero R
	if exec == nil {
		return zero, errors.New("autobatch: nil executor")
	}
	if b.state.Load() != stateActive {
		return zero, ErrShutdown
	}

	sub := submission[T, R]{
		input:      input,
		exec:       exec,
		slot:       newSlot[R](),
		enqueuedAt: time.Now(),
	}

	var err error
	if b.cfg.Backpressure == BackpressureDrop {
		err = b.queue.offerNonblocking(sub)
	} else {
		err = b.queue.offerBlocking(ctx, sub)
	}
	if err != nil {
		if errors.Is(err, ErrQueueFull) {
			b.counters.dropped.Add(1)
			if b.cfg.Observer != nil {
				b.cfg.Observer.SubmissionDropped(b.id)
			}
		}
		return zero, err
	}

	return sub.slot.wait(ctx)
}

// Flush blocks until an instant at which the ingress queue is empty and no
// batch is in flight. Submissions enqueued while Flush waits may remain
// pending after it returns; Flush promises only that such an instant was
// observed. Flush after Close returns immediately.
func (b *Batcher[T, R]) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.state.Load() == stateClosed {
			return
		}
		if b.queue.len() == 0 && !b.inflight {
			return
		}
		b.cond.Wait()
	}
}

// Close shuts the batcher down and waits for the dispatcher to exit. New
// submissions fail fast with ErrShutdown. Queued work is drained through the
// executor, or failed with ErrShutdown when AbortOnClose is set; either way
// no caller is left blocked. Close is idempotent and safe to call
// concurrently.
func (b *Batcher[T, R]) Close() {
	b.closeOnce.Do(func() {
		b.state.Store(stateClosing)
		b.queue.close()
		b.logger.Debug("batcher closing", "batcher_id", b.id, "queued", b.queue.len())
	})

	<-b.dispatcherDone

	// Submissions that won the enqueue race against close land here.
	for {
		sub, ok := b.queue.tryTake()
		if !ok {
			break
		}
		sub.slot.completeErr(ErrShutdown)
	}

	b.state.Store(stateClosed)
	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}

// ID returns the batcher's unique instance ID, as reported to the Observer
// and in log records.
func (b *Batcher[T, R]) ID() string {
	return b.id
}

// QueueLen reports how many submissions are waiting in the ingress queue.
func (b *Batcher[T, R]) QueueLen() int {
	return b.queue.len()
}
