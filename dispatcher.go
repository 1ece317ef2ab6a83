package autobatch

import (
	"context"
	"fmt"
	"time"
)

// dispatch is the batcher's single worker goroutine and the queue's exclusive
// consumer. Each iteration is one batch cycle: block for a first submission,
// coalesce up to MaxBatch/MaxWait, invoke the executor, fan the results out.
func (b *Batcher[T, R]) dispatch() {
	defer close(b.dispatcherDone)

	for {
		first, ok := b.queue.take()
		if !ok {
			b.logger.Debug("dispatcher exiting", "batcher_id", b.id)
			return
		}
		if b.queue.isClosing() && b.cfg.AbortOnClose {
			b.abortQueued(first)
			return
		}

		b.setInflight(true)
		start := time.Now()
		batch := make([]submission[T, R], 1, b.cfg.MaxBatch)
		batch[0] = first
		batch = b.coalesce(batch, start)
		b.runBatch(batch)
		b.finishCycle()
	}
}

// coalesce grows the batch until it is full or the latency budget since the
// first dequeue is spent. With no budget, or once the batcher is closing,
// only submissions already enqueued are drained.
func (b *Batcher[T, R]) coalesce(batch []submission[T, R], start time.Time) []submission[T, R] {
	if b.cfg.MaxBatch <= 1 {
		return batch
	}
	if b.cfg.MaxWait <= 0 || b.queue.isClosing() {
		return b.drainGreedy(batch)
	}

	timer := time.NewTimer(b.cfg.MaxWait - time.Since(start))
	defer timer.Stop()

	for len(batch) < b.cfg.MaxBatch {
		select {
		case sub := <-b.queue.ch:
			batch = append(batch, sub)
		case <-timer.C:
			return batch
		case <-b.queue.closing:
			return b.drainGreedy(batch)
		}
	}
	return batch
}

func (b *Batcher[T, R]) drainGreedy(batch []submission[T, R]) []submission[T, R] {
	for len(batch) < b.cfg.MaxBatch {
		sub, ok := b.queue.tryTake()
		if !ok {
			break
		}
		batch = append(batch, sub)
	}
	return batch
}

// runBatch invokes the executor and fans the ordered results (or the shared
// error) back to the batch's slots. The executor used is the one carried by
// the batch's first submission.
func (b *Batcher[T, R]) runBatch(batch []submission[T, R]) {
	inputs := make([]T, len(batch))
	for i, sub := range batch {
		inputs[i] = sub.input
	}

	start := time.Now()
	queueWait := start.Sub(batch[0].enqueuedAt)
	outputs, err := b.invoke(batch[0].exec, inputs)
	duration := time.Since(start)

	if err != nil {
		execErr := &ExecutorError{Err: err}
		for _, sub := range batch {
			sub.slot.completeErr(execErr)
		}
		b.counters.errors.Add(uint64(len(batch)))
		b.logger.Error("batch failed",
			"batcher_id", b.id,
			"batch_size", len(batch),
			"error", err,
		)
	} else {
		for i, sub := range batch {
			sub.slot.completeOK(outputs[i])
		}
		b.logger.Debug("batch dispatched",
			"batcher_id", b.id,
			"batch_size", len(batch),
			"queue_wait", queueWait,
			"duration", duration,
		)
	}

	b.counters.items.Add(uint64(len(batch)))
	b.counters.batches.Add(1)
	if b.cfg.Observer != nil {
		b.cfg.Observer.BatchDispatched(b.id, len(batch), queueWait, duration, err)
	}
}

// invoke calls the executor and enforces the list-in/list-out contract. A
// panicking executor is reported as an error rather than killing the
// dispatcher; a failed batch never poisons the coordinator.
func (b *Batcher[T, R]) invoke(exec Executor[T, R], inputs []T) (outputs []R, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputs, err = nil, fmt.Errorf("executor panic: %v", r)
		}
	}()
	outputs, err = exec(context.Background(), inputs)
	if err != nil {
		return nil, err
	}
	if len(outputs) != len(inputs) {
		return nil, fmt.Errorf("%w: %d outputs for %d inputs", ErrShapeMismatch, len(outputs), len(inputs))
	}
	return outputs, nil
}

// abortQueued fails the given submission and everything still queued with
// ErrShutdown. Used on close when AbortOnClose is set; the previous cycle's
// batch has already completed by the time this runs.
func (b *Batcher[T, R]) abortQueued(first submission[T, R]) {
	first.slot.completeErr(ErrShutdown)
	n := 1
	for {
		sub, ok := b.queue.tryTake()
		if !ok {
			break
		}
		sub.slot.completeErr(ErrShutdown)
		n++
	}
	b.logger.Debug("aborted queued submissions on close",
		"batcher_id", b.id,
		"count", n,
	)
}

func (b *Batcher[T, R]) setInflight(v bool) {
	b.mu.Lock()
	b.inflight = v
	b.mu.Unlock()
}

// finishCycle marks the dispatcher idle and wakes Flush waiters.
func (b *Batcher[T, R]) finishCycle() {
	b.mu.Lock()
	b.inflight = false
	b.mu.Unlock()
	b.cond.Broadcast()
}
