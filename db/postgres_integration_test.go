package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/vostok-rest/backoffice/db/dbtest"
)

func setupTestDB(t *testing.T) *PostgresDB {
	t.Helper()
	ctx := context.Background()

	connStr, cleanup, err := dbtest.SetupPostgres(ctx)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	pg, err := NewPostgresDB(ctx, connStr, PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(pg.Close)

	require.NoError(t, InitSchema(ctx, pg))
	return pg
}

func TestMirrorDelete_SkipsOnEmptyKeepSet(t *testing.T) {
	pg := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, pg.RunInTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO active_stoplist (product_id, store_id) VALUES ('p1', 's1')`)
		require.NoError(t, err)

		result, err := MirrorDelete(ctx, tx, "active_stoplist", "product_id", "store_id", "s1", nil)
		require.NoError(t, err)
		require.True(t, result.SkippedSanityGate)
		return nil
	}))
}

func TestMirrorDelete_SkipsWhenMoreThanHalfWouldBeRemoved(t *testing.T) {
	pg := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, pg.RunInTx(ctx, func(tx pgx.Tx) error {
		for _, id := range []string{"p1", "p2", "p3"} {
			_, err := tx.Exec(ctx, `INSERT INTO active_stoplist (product_id, store_id) VALUES ($1, 's1')`, id)
			require.NoError(t, err)
		}

		result, err := MirrorDelete(ctx, tx, "active_stoplist", "product_id", "store_id", "s1", []string{"p1"})
		require.NoError(t, err)
		require.True(t, result.SkippedSanityGate)
		return nil
	}))
}

func TestMirrorDelete_RemovesRowsNotInKeepSet(t *testing.T) {
	pg := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, pg.RunInTx(ctx, func(tx pgx.Tx) error {
		for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
			_, err := tx.Exec(ctx, `INSERT INTO active_stoplist (product_id, store_id) VALUES ($1, 's1')`, id)
			require.NoError(t, err)
		}

		result, err := MirrorDelete(ctx, tx, "active_stoplist", "product_id", "store_id", "s1", []string{"p1", "p2", "p3"})
		require.NoError(t, err)
		require.False(t, result.SkippedSanityGate)
		require.Equal(t, 2, result.Deleted)
		return nil
	}))
}

func TestBatchUpsert_InsertsAllRows(t *testing.T) {
	pg := setupTestDB(t)
	ctx := context.Background()

	rows := []UpsertRow{
		{"p1", "s1", "10.0", "2026-01-01"},
		{"p2", "s1", "5.5", "2026-01-01"},
	}

	require.NoError(t, pg.RunInTx(ctx, func(tx pgx.Tx) error {
		stmt := `INSERT INTO stock_balances (product_id, store_id, quantity, as_of)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (product_id, store_id) DO UPDATE SET quantity = EXCLUDED.quantity, as_of = EXCLUDED.as_of`
		return BatchUpsert(ctx, tx, stmt, rows, 500)
	}))

	var count int
	require.NoError(t, pg.QueryRow(ctx, `SELECT COUNT(*) FROM stock_balances`).Scan(&count))
	require.Equal(t, 2, count)
}
