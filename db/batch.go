package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DefaultBatchSize is the number of rows queued into a single pgx.Batch
// round-trip. 500 balances round-trip count against payload size for the
// entity/balance volumes this service reconciles nightly.
const DefaultBatchSize = 500

// UpsertRow is one row's worth of positional arguments for a batched
// upsert statement.
type UpsertRow []interface{}

// BatchUpsert executes an INSERT ... ON CONFLICT statement for rows in
// groups of batchSize (DefaultBatchSize if <= 0), inside an existing
// transaction. statement must contain a single VALUES ($1, $2, ...) tuple
// matching one UpsertRow's arity — BatchUpsert repeats it per row in the
// pgx.Batch rather than building one giant multi-VALUES statement, keeping
// each round-trip's payload bounded.
func BatchUpsert(ctx context.Context, tx pgx.Tx, statement string, rows []UpsertRow, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if len(rows) == 0 {
		return nil
	}

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		batch := &pgx.Batch{}
		for _, row := range chunk {
			batch.Queue(statement, row...)
		}

		br := tx.SendBatch(ctx, batch)
		for range chunk {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("batch upsert failed at offset %d: %w", start, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to close batch results: %w", err)
		}
	}

	return nil
}
