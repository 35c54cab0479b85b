package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vostok-rest/backoffice/db"
	"github.com/vostok-rest/backoffice/db/dbtest"
)

func setupTestDB(t *testing.T) *db.PostgresDB {
	t.Helper()
	ctx := context.Background()

	connStr, cleanup, err := dbtest.SetupPostgres(ctx)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	pg, err := db.NewPostgresDB(ctx, connStr, db.PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(pg.Close)

	require.NoError(t, db.InitSchema(ctx, pg))
	return pg
}

func TestReferenceRepository_UpsertAndList(t *testing.T) {
	pg := setupTestDB(t)
	repo := NewPostgresReferenceRepository(pg)
	ctx := context.Background()

	entities := []Entity{
		{ID: "s1", EntityType: "supplier", Name: "Acme Foods", Active: true},
		{ID: "s2", EntityType: "supplier", Name: "Baltic Produce", Active: true},
	}
	require.NoError(t, repo.UpsertEntities(ctx, "supplier", entities))

	got, err := repo.ListEntities(ctx, "supplier")
	require.NoError(t, err)
	require.Len(t, got, 2)

	deleted, skipped, err := repo.DeleteEntitiesNotIn(ctx, "supplier", []string{"s1"})
	require.NoError(t, err)
	require.False(t, skipped)
	require.Equal(t, 1, deleted)

	got, err = repo.ListEntities(ctx, "supplier")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "s1", got[0].ID)
}

func TestReferenceRepository_MinStockReport(t *testing.T) {
	pg := setupTestDB(t)
	repo := NewPostgresReferenceRepository(pg)
	ctx := context.Background()

	require.NoError(t, repo.UpsertStockBalances(ctx, "store-1", []StockBalance{
		{ProductID: "p1", StoreID: "store-1", Quantity: decimal.NewFromInt(2), AsOf: time.Now()},
	}))
	require.NoError(t, pg.Exec(ctx, `INSERT INTO min_stock_levels (product_id, store_id, minimum_quantity) VALUES ('p1', 'store-1', 5)`))

	low, err := repo.ListBelowMinStock(ctx, "store-1")
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.True(t, low[0].Quantity.Equal(decimal.NewFromInt(2)))
}

func TestWriteoffRepository_TryLockIsExclusive(t *testing.T) {
	pg := setupTestDB(t)
	repo := NewPostgresWriteoffRepository(pg)
	ctx := context.Background()

	wo := &PendingWriteoff{
		StoreID:     "store-1",
		AccountID:   "account-1",
		CreatedBy:   "operator-1",
		Reason:      "spoilage",
		Status:      "draft",
		TotalAmount: decimal.NewFromFloat(123.45),
		Items:       []byte(`[]`),
	}
	require.NoError(t, repo.Create(ctx, wo))

	ok, err := repo.TryLock(ctx, wo.ID, "replica-a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.TryLock(ctx, wo.ID, "replica-b")
	require.NoError(t, err)
	require.False(t, ok, "a second replica must not acquire a lock already held")

	require.NoError(t, repo.Unlock(ctx, wo.ID))

	ok, err = repo.TryLock(ctx, wo.ID, "replica-b")
	require.NoError(t, err)
	require.True(t, ok, "lock must be acquirable again once released")
}

func TestSyncLogRepository_RecordAndFetchLastRun(t *testing.T) {
	pg := setupTestDB(t)
	repo := NewPostgresSyncLogRepository(pg)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	finished := time.Now()
	runID, err := repo.StartRun(ctx, "supplier", started)
	require.NoError(t, err)
	require.NoError(t, repo.FinishRun(ctx, runID, finished, 10, 1, false, ""))

	run, err := repo.LastRun(ctx, "supplier")
	require.NoError(t, err)
	require.Equal(t, 10, run.Upserted)
	require.Equal(t, 1, run.Deleted)
}
