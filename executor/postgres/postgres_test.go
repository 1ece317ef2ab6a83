package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "INSERT INTO t (a) VALUES ($1)")
	assert.Error(t, err)

	_, err = New(&pgxpool.Pool{}, "")
	assert.Error(t, err)
}

func TestExecute_EmptyBatch(t *testing.T) {
	e, err := New(&pgxpool.Pool{}, "INSERT INTO t (a) VALUES ($1)")
	require.NoError(t, err)

	// An empty batch never touches the pool.
	affected, err := e.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, affected)
}
