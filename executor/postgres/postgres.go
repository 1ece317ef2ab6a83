// Package postgres provides a batch executor that writes each submission as
// one statement of a pgx batch, turning many concurrent single-row writes
// into one database round trip.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	autobatch "github.com/fabriziopfannl/llm-autobatch"
)

// Inserter executes one parameterized statement per batch item via
// pgx.SendBatch and reports the per-item affected row counts.
type Inserter struct {
	pool *pgxpool.Pool
	sql  string
}

// New creates an Inserter around an existing pool. sql is the parameterized
// statement each item's arguments are bound to, e.g.
//
//	INSERT INTO completions (request_id, prompt, answer) VALUES ($1, $2, $3)
func New(pool *pgxpool.Pool, sql string) (*Inserter, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres: pool is required")
	}
	if sql == "" {
		return nil, fmt.Errorf("postgres: sql statement is required")
	}
	return &Inserter{pool: pool, sql: sql}, nil
}

// Execute queues one statement per row and sends them as a single pgx batch.
// The returned slice carries the affected row count per item, in order. Any
// statement failure fails the whole batch.
func (e *Inserter) Execute(ctx context.Context, rows [][]any) ([]int64, error) {
	if len(rows) == 0 {
		return []int64{}, nil
	}

	batch := &pgx.Batch{}
	for _, args := range rows {
		batch.Queue(e.sql, args...)
	}

	results := e.pool.SendBatch(ctx, batch)
	defer results.Close()

	affected := make([]int64, len(rows))
	for i := range rows {
		tag, err := results.Exec()
		if err != nil {
			return nil, fmt.Errorf("postgres: statement %d failed: %w", i, err)
		}
		affected[i] = tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("postgres: batch close failed: %w", err)
	}
	return affected, nil
}

// Executor adapts the inserter to the batcher's executor signature.
func (e *Inserter) Executor() autobatch.Executor[[]any, int64] {
	return e.Execute
}
