package repository

import (
	"context"
	"fmt"

	"github.com/vostok-rest/backoffice/db"
)

// PostgresAdminDirectory implements permissions.LegacyRepository against
// bot_admins/request_receivers, the legacy path spec.md §9 leaves as an
// open alternative to the spreadsheet matrix. It also exposes the chat-id
// listings the admin/receiver fan-out notifiers need, which the
// Is-question-shaped LegacyRepository interface has no room for.
type PostgresAdminDirectory struct {
	pg *db.PostgresDB
}

func NewPostgresAdminDirectory(pg *db.PostgresDB) *PostgresAdminDirectory {
	return &PostgresAdminDirectory{pg: pg}
}

func (r *PostgresAdminDirectory) IsBotAdmin(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pg.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bot_admins WHERE chat_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check bot admin status: %w", err)
	}
	return exists, nil
}

func (r *PostgresAdminDirectory) IsRequestReceiver(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pg.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM request_receivers WHERE chat_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check request receiver status: %w", err)
	}
	return exists, nil
}

// BotAdminChatIDs lists every administrator's chat id, for fanning out an
// approval keyboard or a pinned-message update to all of them.
func (r *PostgresAdminDirectory) BotAdminChatIDs(ctx context.Context) ([]int64, error) {
	return r.chatIDs(ctx, "bot_admins")
}

// RequestReceiverChatIDs lists every product-request receiver's chat id.
func (r *PostgresAdminDirectory) RequestReceiverChatIDs(ctx context.Context) ([]int64, error) {
	return r.chatIDs(ctx, "request_receivers")
}

func (r *PostgresAdminDirectory) chatIDs(ctx context.Context, table string) ([]int64, error) {
	rows, err := r.pg.Query(ctx, fmt.Sprintf(`SELECT chat_id FROM %s`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
