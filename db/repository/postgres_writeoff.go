package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/vostok-rest/backoffice/db"
)

// PostgresWriteoffRepository implements WriteoffRepository against
// pending_writeoffs/writeoff_history. TryLock is the only place in this
// package that performs a conditional UPDATE instead of a plain write —
// see the interface doc comment for why.
type PostgresWriteoffRepository struct {
	pg *db.PostgresDB
}

func NewPostgresWriteoffRepository(pg *db.PostgresDB) *PostgresWriteoffRepository {
	return &PostgresWriteoffRepository{pg: pg}
}

func (r *PostgresWriteoffRepository) Create(ctx context.Context, wo *PendingWriteoff) error {
	if wo.ID == "" {
		wo.ID = shortHexID()
	}
	if wo.DocumentUUID == "" {
		wo.DocumentUUID = uuid.NewString()
	}
	return r.pg.Exec(ctx, `
		INSERT INTO pending_writeoffs (id, document_uuid, store_id, account_id, created_by, reason, status, is_locked, locked_by, items, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		wo.ID, wo.DocumentUUID, wo.StoreID, wo.AccountID, wo.CreatedBy, wo.Reason, wo.Status, wo.IsLocked, nullIfEmpty(wo.LockedBy), wo.Items, wo.TotalAmount.String())
}

func (r *PostgresWriteoffRepository) Get(ctx context.Context, id string) (*PendingWriteoff, error) {
	var wo PendingWriteoff
	var lockedBy *string
	var total string
	var adminMsgs []byte
	err := r.pg.QueryRow(ctx, `
		SELECT id, document_uuid, store_id, account_id, created_by, reason, status, is_locked, locked_by, items, total_amount, admin_message_ids
		FROM pending_writeoffs WHERE id = $1`, id).
		Scan(&wo.ID, &wo.DocumentUUID, &wo.StoreID, &wo.AccountID, &wo.CreatedBy, &wo.Reason, &wo.Status, &wo.IsLocked, &lockedBy, &wo.Items, &total, &adminMsgs)
	if err != nil {
		return nil, fmt.Errorf("failed to get writeoff %s: %w", id, err)
	}
	if lockedBy != nil {
		wo.LockedBy = *lockedBy
	}
	wo.TotalAmount, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("failed to parse writeoff total: %w", err)
	}
	if len(adminMsgs) > 0 {
		if err := json.Unmarshal(adminMsgs, &wo.AdminMessageIDs); err != nil {
			return nil, fmt.Errorf("failed to decode admin message ids: %w", err)
		}
	}
	return &wo, nil
}

// TryLock is a conditional UPDATE ... WHERE is_locked = false, guarded by
// Postgres row-level locking semantics. It correctly serializes concurrent
// replicas of this service without any process-local mutex: whichever
// UPDATE commits first wins the row, every later one affects zero rows.
func (r *PostgresWriteoffRepository) TryLock(ctx context.Context, id, lockedBy string) (bool, error) {
	var acquired bool
	err := r.pg.QueryRow(ctx, `
		UPDATE pending_writeoffs SET is_locked = true, locked_by = $2, updated_at = now()
		WHERE id = $1 AND is_locked = false
		RETURNING true`, id, lockedBy).Scan(&acquired)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to try-lock writeoff %s: %w", id, err)
	}
	return acquired, nil
}

func (r *PostgresWriteoffRepository) Unlock(ctx context.Context, id string) error {
	return r.pg.Exec(ctx, `
		UPDATE pending_writeoffs SET is_locked = false, locked_by = NULL, updated_at = now()
		WHERE id = $1`, id)
}

func (r *PostgresWriteoffRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.pg.Exec(ctx, `UPDATE pending_writeoffs SET status = $2, updated_at = now() WHERE id = $1`, id, status)
}

func (r *PostgresWriteoffRepository) RecordAdminMessages(ctx context.Context, id string, messageIDs map[int64]int) error {
	raw, err := json.Marshal(messageIDs)
	if err != nil {
		return fmt.Errorf("failed to encode admin message ids: %w", err)
	}
	return r.pg.Exec(ctx, `UPDATE pending_writeoffs SET admin_message_ids = $2, updated_at = now() WHERE id = $1`, id, raw)
}

// Delete removes the row once approval or rejection is final — per
// spec.md §4.7.2, the document does not linger after resolution.
func (r *PostgresWriteoffRepository) Delete(ctx context.Context, id string) error {
	return r.pg.Exec(ctx, `DELETE FROM pending_writeoffs WHERE id = $1`, id)
}

func (r *PostgresWriteoffRepository) RecordHistory(ctx context.Context, writeoffID, actor, action string, detail []byte) error {
	return r.pg.Exec(ctx, `
		INSERT INTO writeoff_history (id, writeoff_id, actor, action, detail)
		VALUES ($1, $2, $3, $4, $5)`, uuid.NewString(), writeoffID, actor, action, detail)
}

// PruneHistory keeps only the most recent keep rows written by actor — the
// 200-row cap spec.md §4.7.2 requires per author. Filtered by actor, not
// writeoff_id: the pending_writeoffs row a history entry names is deleted
// once the write-off resolves, but the history itself is a standing audit
// log for the author that must survive it.
func (r *PostgresWriteoffRepository) PruneHistory(ctx context.Context, actor string, keep int) error {
	return r.pg.Exec(ctx, `
		DELETE FROM writeoff_history
		WHERE actor = $1 AND id NOT IN (
			SELECT id FROM writeoff_history WHERE actor = $1 ORDER BY created_at DESC LIMIT $2
		)`, actor, keep)
}

// shortHexID generates the short hex id used as a PendingWriteoff's
// primary key and admin-keyboard callback data — short enough to fit
// comfortably in a Telegram callback_data payload, unlike a full UUID.
func shortHexID() string {
	return uuid.NewString()[:8]
}
