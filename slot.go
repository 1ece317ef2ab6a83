package autobatch

import (
	"context"
	"sync/atomic"
)

// outcome is the single value carried by a slot: a result or an error.
type outcome[R any] struct {
	value R
	err   error
}

// slot is a single-shot rendezvous between one submitter and the dispatcher.
// Exactly one completion wins; the submitter blocks in wait until it lands.
type slot[R any] struct {
	ch   chan outcome[R]
	done atomic.Bool
}

func newSlot[R any]() *slot[R] {
	// Buffered so a completion never blocks the dispatcher, even when the
	// submitter abandoned the slot after a context cancellation. The parked
	// outcome is collected together with the slot.
	return &slot[R]{ch: make(chan outcome[R], 1)}
}

func (s *slot[R]) completeOK(v R) {
	s.complete(outcome[R]{value: v})
}

func (s *slot[R]) completeErr(err error) {
	s.complete(outcome[R]{err: err})
}

// complete delivers at most one outcome. A second completion is dropped so
// the first result cannot be corrupted.
func (s *slot[R]) complete(o outcome[R]) {
	if !s.done.CompareAndSwap(false, true) {
		return
	}
	s.ch <- o
}

// wait blocks until the slot is completed or ctx is done. After a
// cancellation the slot is abandoned: its eventual completion is discarded.
func (s *slot[R]) wait(ctx context.Context) (R, error) {
	select {
	case o := <-s.ch:
		return o.value, o.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}
