package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vostok-rest/backoffice/db"
)

// PostgresStoplistRepository implements StoplistRepository against the
// active_stoplist/stoplist_history mirror tables.
type PostgresStoplistRepository struct {
	pg *db.PostgresDB
}

func NewPostgresStoplistRepository(pg *db.PostgresDB) *PostgresStoplistRepository {
	return &PostgresStoplistRepository{pg: pg}
}

func (r *PostgresStoplistRepository) Active(ctx context.Context) ([]StoplistPair, error) {
	rows, err := r.pg.Query(ctx, `SELECT product_id, store_id, COALESCE(reason, '') FROM active_stoplist`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoplistPair
	for rows.Next() {
		var p StoplistPair
		if err := rows.Scan(&p.ProductID, &p.StoreID, &p.Reason); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Enter records pair entering the stop-list: insert the active row and
// open a new history interval. Called once per (product, store) newly
// absent from the previous snapshot.
func (r *PostgresStoplistRepository) Enter(ctx context.Context, pair StoplistPair, at time.Time) error {
	if err := r.pg.Exec(ctx, `
		INSERT INTO active_stoplist (product_id, store_id, reason, since)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, store_id) DO UPDATE SET reason = EXCLUDED.reason`,
		pair.ProductID, pair.StoreID, nullableString(pair.Reason), at); err != nil {
		return fmt.Errorf("failed to insert active_stoplist row: %w", err)
	}
	return r.pg.Exec(ctx, `
		INSERT INTO stoplist_history (product_id, store_id, event, occurred_at)
		VALUES ($1, $2, 'entered', $3)`,
		pair.ProductID, pair.StoreID, at)
}

// Leave records pair leaving the stop-list: delete the active row and
// close out the open history interval with a "left" marker. Duration is
// derivable from the paired entered/left rows, not stored redundantly.
func (r *PostgresStoplistRepository) Leave(ctx context.Context, pair StoplistPair, at time.Time) error {
	if err := r.pg.Exec(ctx, `DELETE FROM active_stoplist WHERE product_id = $1 AND store_id = $2`,
		pair.ProductID, pair.StoreID); err != nil {
		return fmt.Errorf("failed to delete active_stoplist row: %w", err)
	}
	return r.pg.Exec(ctx, `
		INSERT INTO stoplist_history (product_id, store_id, event, occurred_at)
		VALUES ($1, $2, 'left', $3)`,
		pair.ProductID, pair.StoreID, at)
}

// PostgresPinnedMessageRepository implements PinnedMessageRepository
// against the stoplist_messages/stock_alert_messages tables — one row per
// (class, chat), keyed by "<chatID>" as the primary id.
type PostgresPinnedMessageRepository struct {
	pg *db.PostgresDB
}

func NewPostgresPinnedMessageRepository(pg *db.PostgresDB) *PostgresPinnedMessageRepository {
	return &PostgresPinnedMessageRepository{pg: pg}
}

func (r *PostgresPinnedMessageRepository) table(class string) (string, error) {
	switch class {
	case "stoplist":
		return "stoplist_messages", nil
	case "stock_alert":
		return "stock_alert_messages", nil
	default:
		return "", fmt.Errorf("unknown pinned message class %q", class)
	}
}

func (r *PostgresPinnedMessageRepository) Get(ctx context.Context, class string, chatID int64) (*PinnedMessage, error) {
	table, err := r.table(class)
	if err != nil {
		return nil, err
	}

	var m PinnedMessage
	err = r.pg.QueryRow(ctx, fmt.Sprintf(`SELECT chat_id, message_id FROM %s WHERE id = $1`, table),
		strconv.FormatInt(chatID, 10)).Scan(&m.ChatID, &m.MessageID)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresPinnedMessageRepository) Set(ctx context.Context, class string, chatID int64, messageID int64) error {
	table, err := r.table(class)
	if err != nil {
		return err
	}

	id := strconv.FormatInt(chatID, 10)
	return r.pg.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, store_id, chat_id, message_id)
		VALUES ($1, '', $2, $3)
		ON CONFLICT (id) DO UPDATE SET message_id = EXCLUDED.message_id`, table),
		id, chatID, messageID)
}
