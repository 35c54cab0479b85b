package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/vostok-rest/backoffice/db"
)

// PostgresReferenceRepository implements ReferenceRepository against the
// entities/stock_balances/min_stock_levels mirror tables.
type PostgresReferenceRepository struct {
	pg *db.PostgresDB
}

func NewPostgresReferenceRepository(pg *db.PostgresDB) *PostgresReferenceRepository {
	return &PostgresReferenceRepository{pg: pg}
}

func (r *PostgresReferenceRepository) UpsertEntities(ctx context.Context, entityType string, entities []Entity) error {
	rows := make([]db.UpsertRow, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, db.UpsertRow{e.ID, entityType, e.Name, nullableString(e.ParentID), e.Active, e.Raw})
	}

	stmt := `INSERT INTO entities (id, entity_type, name, parent_id, active, raw, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			parent_id = EXCLUDED.parent_id,
			active = EXCLUDED.active,
			raw = EXCLUDED.raw,
			updated_at = now()`

	return r.pg.RunInTx(ctx, func(tx pgx.Tx) error {
		return db.BatchUpsert(ctx, tx, stmt, rows, db.DefaultBatchSize)
	})
}

func (r *PostgresReferenceRepository) DeleteEntitiesNotIn(ctx context.Context, entityType string, keepIDs []string) (int, bool, error) {
	var deleted int
	var skipped bool

	err := r.pg.RunInTx(ctx, func(tx pgx.Tx) error {
		result, err := db.MirrorDelete(ctx, tx, "entities", "id", "entity_type", entityType, keepIDs)
		if err != nil {
			return err
		}
		deleted = result.Deleted
		skipped = result.SkippedSanityGate
		return nil
	})
	return deleted, skipped, err
}

func (r *PostgresReferenceRepository) ListEntities(ctx context.Context, entityType string) ([]Entity, error) {
	rows, err := r.pg.Query(ctx, `SELECT id, entity_type, name, COALESCE(parent_id, ''), active, raw, updated_at
		FROM entities WHERE entity_type = $1`, entityType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.EntityType, &e.Name, &e.ParentID, &e.Active, &e.Raw, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresReferenceRepository) GetEntity(ctx context.Context, id string) (*Entity, error) {
	var e Entity
	err := r.pg.QueryRow(ctx, `SELECT id, entity_type, name, COALESCE(parent_id, ''), active, raw, updated_at
		FROM entities WHERE id = $1`, id).Scan(&e.ID, &e.EntityType, &e.Name, &e.ParentID, &e.Active, &e.Raw, &e.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s: %w", id, err)
	}
	return &e, nil
}

func (r *PostgresReferenceRepository) ChildrenOf(ctx context.Context, parentID string) ([]Entity, error) {
	rows, err := r.pg.Query(ctx, `SELECT id, entity_type, name, COALESCE(parent_id, ''), active, raw, updated_at
		FROM entities WHERE parent_id = $1`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.EntityType, &e.Name, &e.ParentID, &e.Active, &e.Raw, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresReferenceRepository) UpsertStockBalances(ctx context.Context, storeID string, balances []StockBalance) error {
	rows := make([]db.UpsertRow, 0, len(balances))
	for _, b := range balances {
		rows = append(rows, db.UpsertRow{b.ProductID, storeID, b.Quantity.String(), b.AsOf})
	}

	stmt := `INSERT INTO stock_balances (product_id, store_id, quantity, as_of)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, store_id) DO UPDATE SET quantity = EXCLUDED.quantity, as_of = EXCLUDED.as_of`

	return r.pg.RunInTx(ctx, func(tx pgx.Tx) error {
		return db.BatchUpsert(ctx, tx, stmt, rows, db.DefaultBatchSize)
	})
}

func (r *PostgresReferenceRepository) GetStockBalance(ctx context.Context, productID, storeID string) (*StockBalance, error) {
	var b StockBalance
	var qty string
	err := r.pg.QueryRow(ctx, `SELECT product_id, store_id, quantity, as_of FROM stock_balances
		WHERE product_id = $1 AND store_id = $2`, productID, storeID).Scan(&b.ProductID, &b.StoreID, &qty, &b.AsOf)
	if err != nil {
		return nil, err
	}
	b.Quantity, err = decimal.NewFromString(qty)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stock quantity: %w", err)
	}
	return &b, nil
}

func (r *PostgresReferenceRepository) ListBelowMinStock(ctx context.Context, storeID string) ([]StockBalance, error) {
	rows, err := r.pg.Query(ctx, `
		SELECT sb.product_id, sb.store_id, sb.quantity, sb.as_of
		FROM stock_balances sb
		JOIN min_stock_levels msl ON msl.product_id = sb.product_id AND msl.store_id = sb.store_id
		WHERE sb.store_id = $1 AND sb.quantity < msl.minimum_quantity`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockBalance
	for rows.Next() {
		var b StockBalance
		var qty string
		if err := rows.Scan(&b.ProductID, &b.StoreID, &qty, &b.AsOf); err != nil {
			return nil, err
		}
		if b.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// TxReferenceRepository implements the entity half of ReferenceRepository
// against a caller-supplied transaction instead of opening its own —
// the persistence side SyncAllEntity's 16 root_type reconcilers need so
// all of them commit (or roll back) together in the one shared tx
// sync.SyncAllEntity's EntityTxRunner opens, rather than each reconciler's
// Upsert/MirrorDelete call silently running in its own transaction as
// PostgresReferenceRepository's would.
type TxReferenceRepository struct {
	tx pgx.Tx
}

// NewTxReferenceRepository wraps tx. Only the entity upsert/mirror-delete
// methods SyncAllEntity's reconcilers call are implemented — the read
// methods and stock-balance methods are out of scope for that shared-tx
// pass and remain served by PostgresReferenceRepository elsewhere.
func NewTxReferenceRepository(tx pgx.Tx) *TxReferenceRepository {
	return &TxReferenceRepository{tx: tx}
}

func (r *TxReferenceRepository) UpsertEntities(ctx context.Context, entityType string, entities []Entity) error {
	rows := make([]db.UpsertRow, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, db.UpsertRow{e.ID, entityType, e.Name, nullableString(e.ParentID), e.Active, e.Raw})
	}

	stmt := `INSERT INTO entities (id, entity_type, name, parent_id, active, raw, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			parent_id = EXCLUDED.parent_id,
			active = EXCLUDED.active,
			raw = EXCLUDED.raw,
			updated_at = now()`

	return db.BatchUpsert(ctx, r.tx, stmt, rows, db.DefaultBatchSize)
}

func (r *TxReferenceRepository) DeleteEntitiesNotIn(ctx context.Context, entityType string, keepIDs []string) (int, bool, error) {
	result, err := db.MirrorDelete(ctx, r.tx, "entities", "id", "entity_type", entityType, keepIDs)
	if err != nil {
		return 0, false, err
	}
	return result.Deleted, result.SkippedSanityGate, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
