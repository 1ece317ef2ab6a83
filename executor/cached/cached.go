// Package cached wraps a batch executor with an LRU result cache. Repeated
// inputs are served from the cache and deduplicated within a batch, so the
// inner executor only ever sees distinct cache misses.
package cached

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	autobatch "github.com/fabriziopfannl/llm-autobatch"
)

// Executor memoizes the results of an inner batch executor.
// Thread-safe, uses hashicorp/golang-lru under the hood.
type Executor[K comparable, R any] struct {
	inner autobatch.Executor[K, R]
	cache *lru.Cache[K, R]

	// Metrics
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a caching wrapper around inner with at most maxSize entries.
func New[K comparable, R any](maxSize int, inner autobatch.Executor[K, R]) (*Executor[K, R], error) {
	if inner == nil {
		return nil, fmt.Errorf("cached: inner executor is required")
	}
	if maxSize <= 0 {
		maxSize = 10000
	}

	cache, err := lru.New[K, R](maxSize)
	if err != nil {
		return nil, fmt.Errorf("cached: failed to create cache: %w", err)
	}

	return &Executor[K, R]{
		inner: inner,
		cache: cache,
	}, nil
}

// Execute serves cached inputs from the LRU and forwards only the distinct
// misses to the inner executor, preserving the batch's order and shape.
func (e *Executor[K, R]) Execute(ctx context.Context, inputs []K) ([]R, error) {
	outputs := make([]R, len(inputs))
	cachedAt := make([]bool, len(inputs))

	var missInputs []K
	missIndex := make(map[K]int)
	for i, input := range inputs {
		if v, ok := e.cache.Get(input); ok {
			outputs[i] = v
			cachedAt[i] = true
			e.hits.Add(1)
			continue
		}
		e.misses.Add(1)
		if _, seen := missIndex[input]; !seen {
			missIndex[input] = len(missInputs)
			missInputs = append(missInputs, input)
		}
	}

	if len(missInputs) == 0 {
		return outputs, nil
	}

	missOutputs, err := e.inner(ctx, missInputs)
	if err != nil {
		return nil, err
	}
	if len(missOutputs) != len(missInputs) {
		return nil, fmt.Errorf("cached: inner executor returned %d outputs for %d inputs", len(missOutputs), len(missInputs))
	}

	for i, input := range missInputs {
		e.cache.Add(input, missOutputs[i])
	}
	for i, input := range inputs {
		if !cachedAt[i] {
			outputs[i] = missOutputs[missIndex[input]]
		}
	}
	return outputs, nil
}

// Stats returns the cumulative cache hit and miss counts.
func (e *Executor[K, R]) Stats() (hits, misses uint64) {
	return e.hits.Load(), e.misses.Load()
}

// Purge empties the cache.
func (e *Executor[K, R]) Purge() {
	e.cache.Purge()
}

// Executor adapts the wrapper to the batcher's executor signature.
func (e *Executor[K, R]) Executor() autobatch.Executor[K, R] {
	return e.Execute
}
