package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vostok-rest/backoffice/db"
)

// PostgresFinanceMirrorRepository implements FinanceMirrorRepository
// against finance_mirror, grounded directly on
// PostgresReferenceRepository's UpsertEntities/DeleteEntitiesNotIn shape —
// same batch-upsert-then-mirror-delete template, one table instead of
// many entity_type partitions of one table.
type PostgresFinanceMirrorRepository struct {
	pg *db.PostgresDB
}

func NewPostgresFinanceMirrorRepository(pg *db.PostgresDB) *PostgresFinanceMirrorRepository {
	return &PostgresFinanceMirrorRepository{pg: pg}
}

func (r *PostgresFinanceMirrorRepository) UpsertRecords(ctx context.Context, resource string, records []FinanceRecord) error {
	rows := make([]db.UpsertRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, db.UpsertRow{resource, rec.ID, rec.Raw})
	}

	stmt := `INSERT INTO finance_mirror (resource, id, raw, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (resource, id) DO UPDATE SET raw = EXCLUDED.raw, updated_at = now()`

	return r.pg.RunInTx(ctx, func(tx pgx.Tx) error {
		return db.BatchUpsert(ctx, tx, stmt, rows, db.DefaultBatchSize)
	})
}

func (r *PostgresFinanceMirrorRepository) DeleteRecordsNotIn(ctx context.Context, resource string, keepIDs []string) (int, bool, error) {
	var deleted int
	var skipped bool

	err := r.pg.RunInTx(ctx, func(tx pgx.Tx) error {
		result, err := db.MirrorDelete(ctx, tx, "finance_mirror", "id", "resource", resource, keepIDs)
		if err != nil {
			return err
		}
		deleted = result.Deleted
		skipped = result.SkippedSanityGate
		return nil
	})
	return deleted, skipped, err
}

func (r *PostgresFinanceMirrorRepository) ListRecords(ctx context.Context, resource string) ([]FinanceRecord, error) {
	rows, err := r.pg.Query(ctx, `SELECT resource, id, raw, updated_at FROM finance_mirror WHERE resource = $1`, resource)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FinanceRecord
	for rows.Next() {
		var rec FinanceRecord
		if err := rows.Scan(&rec.Resource, &rec.ID, &rec.Raw, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
