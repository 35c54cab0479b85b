package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vostok-rest/backoffice/common"
)

// MirrorDeleteResult reports what a mirror-delete pass would or did do, so
// callers can log a skip decision instead of silently doing nothing.
type MirrorDeleteResult struct {
	CandidatesForDeletion int
	TotalInScope          int
	Deleted               int
	SkippedSanityGate     bool
}

// MirrorDelete removes rows present locally but absent from the latest
// upstream fetch, scoped by scopeColumn = scopeValue. Two safety checks
// guard against an upstream outage masquerading as "everything got
// deleted":
//
//   - if keepIDs is empty, the delete is skipped entirely (an empty
//     upstream fetch is far more likely a transient failure than a
//     legitimately empty entity set);
//   - if more than half of the rows currently in scope would be deleted,
//     the delete is skipped and flagged for operator attention.
func MirrorDelete(ctx context.Context, tx pgx.Tx, table, idColumn, scopeColumn string, scopeValue interface{}, keepIDs []string) (*MirrorDeleteResult, error) {
	result := &MirrorDeleteResult{}

	if len(keepIDs) == 0 {
		common.Logger.WithField("table", table).Warn("mirror-delete skipped: upstream fetch returned zero rows")
		result.SkippedSanityGate = true
		return result, nil
	}

	var totalInScope int
	countSQL := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, table, scopeColumn)
	if err := tx.QueryRow(ctx, countSQL, scopeValue).Scan(&totalInScope); err != nil {
		return nil, fmt.Errorf("failed to count rows in scope: %w", err)
	}
	result.TotalInScope = totalInScope

	var candidates int
	candidateSQL := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1 AND NOT (%s = ANY($2))`, table, scopeColumn, idColumn)
	if err := tx.QueryRow(ctx, candidateSQL, scopeValue, keepIDs).Scan(&candidates); err != nil {
		return nil, fmt.Errorf("failed to count deletion candidates: %w", err)
	}
	result.CandidatesForDeletion = candidates

	if totalInScope > 0 && candidates*2 > totalInScope {
		common.Logger.WithFields(map[string]interface{}{
			"table":          table,
			"scope":          scopeValue,
			"candidates":     candidates,
			"total_in_scope": totalInScope,
		}).Warn("mirror-delete skipped: sanity gate tripped, would remove more than half of scope")
		result.SkippedSanityGate = true
		return result, nil
	}

	execSQL := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND NOT (%s = ANY($2))`, table, scopeColumn, idColumn)
	cmdTag, err := tx.Exec(ctx, execSQL, scopeValue, keepIDs)
	if err != nil {
		return nil, fmt.Errorf("mirror-delete failed: %w", err)
	}
	result.Deleted = int(cmdTag.RowsAffected())

	return result, nil
}
