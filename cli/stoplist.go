package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/vostok-rest/backoffice/db"
	"github.com/vostok-rest/backoffice/db/repository"
	"github.com/vostok-rest/backoffice/upstream/cloud"
)

// stoplistFetcher builds the webhook.Debouncer's fetch closure: it binds
// the configured terminal group id and maps cloud.RawRecord rows, keyed
// by (product_id, terminal_group_id) per spec.md §4.2, onto
// repository.StoplistPair.
func stoplistFetcher(cloudClient *cloud.Client, terminalGroupID string) func(ctx context.Context) ([]repository.StoplistPair, error) {
	return func(ctx context.Context) ([]repository.StoplistPair, error) {
		raws, err := cloudClient.FetchStopList(ctx, terminalGroupID)
		if err != nil {
			return nil, err
		}

		pairs := make([]repository.StoplistPair, 0, len(raws))
		for _, raw := range raws {
			productID, _ := raw["productId"].(string)
			if productID == "" {
				continue
			}
			storeID, _ := raw["terminalGroupId"].(string)
			if storeID == "" {
				storeID = terminalGroupID
			}
			reason, _ := raw["reason"].(string)
			pairs = append(pairs, repository.StoplistPair{ProductID: productID, StoreID: storeID, Reason: reason})
		}
		return pairs, nil
	}
}

// productTimeInStop is one product's aggregate off-sale duration over the
// report window, for the 22:00 evening stop-list report.
type productTimeInStop struct {
	ProductID string
	StoreID   string
	Duration  time.Duration
}

// eveningStoplistReport aggregates stoplist_history into per-product
// time-in-stop over the last 24 hours and fans a formatted summary out to
// every administrator, per spec.md §4.5's 22:00 job. Queried directly
// against the pool rather than through StoplistRepository, since this
// aggregate is specific to the scheduled report and not part of the
// debounce-diff read path the interface otherwise serves.
func eveningStoplistReport(pg *db.PostgresDB, notifier interface {
	NotifyAdminsText(ctx context.Context, summary string) error
}) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		report, err := queryTimeInStop(ctx, pg)
		if err != nil {
			return fmt.Errorf("failed to aggregate stop-list history: %w", err)
		}

		summary := renderTimeInStopReport(report)
		return notifier.NotifyAdminsText(ctx, summary)
	}
}

func queryTimeInStop(ctx context.Context, pg *db.PostgresDB) ([]productTimeInStop, error) {
	rows, err := pg.Query(ctx, `
		WITH paired AS (
			SELECT
				product_id,
				store_id,
				event,
				occurred_at AS entered_at,
				LEAD(occurred_at) OVER (PARTITION BY product_id, store_id ORDER BY occurred_at) AS next_at,
				LEAD(event) OVER (PARTITION BY product_id, store_id ORDER BY occurred_at) AS next_event
			FROM stoplist_history
			WHERE occurred_at > now() - interval '24 hours'
		)
		SELECT product_id, store_id, SUM(EXTRACT(EPOCH FROM (COALESCE(next_at, now()) - entered_at)))
		FROM paired
		WHERE event = 'entered' AND (next_event IS NULL OR next_event = 'left')
		GROUP BY product_id, store_id
		ORDER BY SUM(EXTRACT(EPOCH FROM (COALESCE(next_at, now()) - entered_at))) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []productTimeInStop
	for rows.Next() {
		var r productTimeInStop
		var seconds float64
		if err := rows.Scan(&r.ProductID, &r.StoreID, &seconds); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(seconds) * time.Second
		out = append(out, r)
	}
	return out, rows.Err()
}

func renderTimeInStopReport(report []productTimeInStop) string {
	if len(report) == 0 {
		return "📊 Stop-list report: nothing was off-sale in the last 24 hours."
	}
	text := "📊 Stop-list report (last 24h):\n"
	for _, r := range report {
		text += fmt.Sprintf("• %s @ %s: %s\n", r.ProductID, r.StoreID, r.Duration.Round(time.Minute))
	}
	return text
}
