package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vostok-rest/backoffice/db/repository"
	"github.com/vostok-rest/backoffice/upstream/pos"
)

// syncStockBalances fetches and upserts stock_balances for every known
// store, one FetchStockBalances call per store id — there is no bulk
// endpoint, per spec.md §4.3. Runs as a plain step in the daily sync
// chain rather than through the Reconciler template, since its source of
// truth (the store list) lives in the same entities table it depends on
// having just synced, not in an independent upstream resource.
func syncStockBalances(ctx context.Context, posClient *pos.Client, refs repository.ReferenceRepository) error {
	stores, err := refs.ListEntities(ctx, "store")
	if err != nil {
		return fmt.Errorf("failed to list stores for stock balance sync: %w", err)
	}

	for _, store := range stores {
		raws, err := posClient.FetchStockBalances(ctx, store.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch stock balances for store %s: %w", store.ID, err)
		}

		balances := make([]repository.StockBalance, 0, len(raws))
		for _, raw := range raws {
			balance, ok := mapStockBalance(raw)
			if ok {
				balances = append(balances, balance)
			}
		}
		if err := refs.UpsertStockBalances(ctx, store.ID, balances); err != nil {
			return fmt.Errorf("failed to upsert stock balances for store %s: %w", store.ID, err)
		}
	}
	return nil
}

func mapStockBalance(raw pos.RawRecord) (repository.StockBalance, bool) {
	productID, _ := raw["productId"].(string)
	if productID == "" {
		return repository.StockBalance{}, false
	}
	amountStr, _ := raw["amount"].(string)
	qty, err := decimal.NewFromString(amountStr)
	if err != nil {
		return repository.StockBalance{}, false
	}
	return repository.StockBalance{ProductID: productID, Quantity: qty, AsOf: time.Now()}, true
}

// minStockAlerts checks every store's below-minimum products and notifies
// administrators in one summary. A failure listing any store's
// below-minimum products stops the pass and is returned to the caller; no
// summary is sent in that case.
func minStockAlerts(ctx context.Context, refs repository.ReferenceRepository, stores []repository.Entity, notifier interface {
	NotifyAdminsText(ctx context.Context, summary string) error
}) error {
	var lines []string
	for _, store := range stores {
		below, err := refs.ListBelowMinStock(ctx, store.ID)
		if err != nil {
			return fmt.Errorf("failed to list below-min-stock products for store %s: %w", store.ID, err)
		}
		for _, b := range below {
			lines = append(lines, fmt.Sprintf("• %s @ %s: %s", b.ProductID, b.StoreID, b.Quantity.String()))
		}
	}
	if len(lines) == 0 {
		return nil
	}

	text := "📉 Below minimum stock:\n"
	for _, line := range lines {
		text += line + "\n"
	}
	return notifier.NotifyAdminsText(ctx, text)
}
