package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// RunInTx runs fn inside a single transaction and commits only if fn
// returns nil. The repositories use it to make each batch upsert or
// mirror-delete atomic on its own, and sync.SyncAllEntity uses it to put
// every root_type reconciler's writes in one shared transaction. A plain
// Reconciler.Run is not wrapped as a whole: its upsert and its
// mirror-delete commit separately.
func (db *PostgresDB) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
