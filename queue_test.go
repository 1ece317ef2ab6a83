package autobatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubmission(x int) submission[int, int] {
	return submission[int, int]{
		input:      x,
		exec:       identityExecutor,
		slot:       newSlot[int](),
		enqueuedAt: time.Now(),
	}
}

func TestIngress_FIFO(t *testing.T) {
	q := newIngress[int, int](8)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.offerNonblocking(newTestSubmission(i)))
	}
	assert.Equal(t, 5, q.len())

	for i := 0; i < 5; i++ {
		sub, ok := q.take()
		require.True(t, ok)
		assert.Equal(t, i, sub.input)
	}
	assert.Equal(t, 0, q.len())
}

func TestIngress_NonblockingRejectsWhenFull(t *testing.T) {
	q := newIngress[int, int](2)

	require.NoError(t, q.offerNonblocking(newTestSubmission(0)))
	require.NoError(t, q.offerNonblocking(newTestSubmission(1)))

	err := q.offerNonblocking(newTestSubmission(2))
	assert.ErrorIs(t, err, ErrQueueFull)

	// Space frees up after a take.
	_, ok := q.take()
	require.True(t, ok)
	assert.NoError(t, q.offerNonblocking(newTestSubmission(2)))
}

func TestIngress_BlockingWaitsForSpace(t *testing.T) {
	q := newIngress[int, int](1)
	require.NoError(t, q.offerBlocking(context.Background(), newTestSubmission(0)))

	accepted := make(chan error, 1)
	go func() {
		accepted <- q.offerBlocking(context.Background(), newTestSubmission(1))
	}()

	select {
	case <-accepted:
		t.Fatal("offer returned while the queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	_, ok := q.take()
	require.True(t, ok)

	select {
	case err := <-accepted:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked offer never completed")
	}
}

func TestIngress_BlockingHonorsContext(t *testing.T) {
	q := newIngress[int, int](1)
	require.NoError(t, q.offerBlocking(context.Background(), newTestSubmission(0)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := q.offerBlocking(ctx, newTestSubmission(1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIngress_CloseWakesBlockedOffers(t *testing.T) {
	q := newIngress[int, int](1)
	require.NoError(t, q.offerBlocking(context.Background(), newTestSubmission(0)))

	offered := make(chan error, 1)
	go func() {
		offered <- q.offerBlocking(context.Background(), newTestSubmission(1))
	}()
	time.Sleep(10 * time.Millisecond)

	q.close()

	select {
	case err := <-offered:
		assert.ErrorIs(t, err, ErrShutdown)
	case <-time.After(time.Second):
		t.Fatal("close did not wake the blocked offer")
	}
}

func TestIngress_OffersFailAfterClose(t *testing.T) {
	q := newIngress[int, int](4)
	q.close()

	assert.ErrorIs(t, q.offerNonblocking(newTestSubmission(0)), ErrShutdown)
	assert.ErrorIs(t, q.offerBlocking(context.Background(), newTestSubmission(1)), ErrShutdown)
}

func TestIngress_TakeDrainsQueuedWorkAfterClose(t *testing.T) {
	q := newIngress[int, int](4)
	require.NoError(t, q.offerNonblocking(newTestSubmission(0)))
	require.NoError(t, q.offerNonblocking(newTestSubmission(1)))

	q.close()
	assert.True(t, q.isClosing())

	sub, ok := q.take()
	require.True(t, ok)
	assert.Equal(t, 0, sub.input)

	sub, ok = q.take()
	require.True(t, ok)
	assert.Equal(t, 1, sub.input)

	_, ok = q.take()
	assert.False(t, ok)
}

func TestIngress_TryTake(t *testing.T) {
	q := newIngress[int, int](4)

	_, ok := q.tryTake()
	assert.False(t, ok)

	require.NoError(t, q.offerNonblocking(newTestSubmission(7)))
	sub, ok := q.tryTake()
	require.True(t, ok)
	assert.Equal(t, 7, sub.input)
}
