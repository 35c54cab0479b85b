package workflows

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vostok-rest/backoffice/common"
	"github.com/vostok-rest/backoffice/db/repository"
	"github.com/vostok-rest/backoffice/upstream/pos"
)

// ParseStoreName splits a store/account name in the "TYPE (NAME)" pattern
// spec.md §4.7.4 derives restaurant groupings from, e.g.
// "Хоз. товары (Central)" → ("Хоз. товары", "Central").
func ParseStoreName(name string) (storeType, restaurant string, ok bool) {
	open := strings.IndexByte(name, '(')
	if open < 0 || !strings.HasSuffix(name, ")") {
		return "", "", false
	}
	storeType = strings.TrimSpace(name[:open])
	restaurant = strings.TrimSpace(name[open+1 : len(name)-1])
	if storeType == "" || restaurant == "" {
		return "", "", false
	}
	return storeType, restaurant, true
}

// TransferConfig parameterises the nightly negative-consumable job, since
// the topParent category name and store-type prefixes are operator data
// (spec.md §4.7.4 calls them "or configured"), not constants.
type TransferConfig struct {
	GroupBy        string
	TopParent      string   // e.g. "Расходные материалы"
	SourcePrefix   string   // e.g. "Хоз. товары"
	TargetPrefixes []string // e.g. ["Бар", "Кухня"]
	ProductID      string   // the consumable-category product id the generated transfer line balances against
}

// TransferNotifier delivers the nightly run's aggregate summary to admins.
type TransferNotifier interface {
	NotifyAdmins(ctx context.Context, summary string) error
}

// NegativeConsumableTransfer implements spec.md §4.7.4: one nightly OLAP
// fetch, grouped by account, emits an internal-transfer document to every
// target store of the same restaurant for each source store carrying a
// negative balance.
type NegativeConsumableTransfer struct {
	pos      *pos.Client
	syncLog  repository.SyncLogRepository
	notifier TransferNotifier
	cfg      TransferConfig
	clock    *common.Clock
}

func NewNegativeConsumableTransfer(posClient *pos.Client, syncLog repository.SyncLogRepository, notifier TransferNotifier, cfg TransferConfig, clock *common.Clock) *NegativeConsumableTransfer {
	return &NegativeConsumableTransfer{pos: posClient, syncLog: syncLog, notifier: notifier, cfg: cfg, clock: clock}
}

// Run executes one nightly pass: fetch, sum per-account balances, emit a
// transfer for every negative source-prefix account, log the run, and
// notify admins of the aggregate.
func (w *NegativeConsumableTransfer) Run(ctx context.Context) error {
	rows, err := w.pos.FetchOlapTransactions(ctx, w.cfg.GroupBy, w.cfg.TopParent)
	if err != nil {
		return fmt.Errorf("failed to fetch negative-consumable OLAP report: %w", err)
	}

	runID, err := w.syncLog.StartRun(ctx, "negative_consumable_transfer", w.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to start negative-consumable transfer run: %w", err)
	}

	balances := accountBalances(rows)

	var emitted int
	var failures []string
	for account, amount := range balances {
		if !amount.IsNegative() {
			continue
		}
		storeType, restaurant, ok := ParseStoreName(account)
		if !ok || storeType != w.cfg.SourcePrefix {
			continue
		}

		shortfall := amount.Abs()
		for _, targetPrefix := range w.cfg.TargetPrefixes {
			targetName := fmt.Sprintf("%s (%s)", targetPrefix, restaurant)
			err := w.pos.SendInternalTransfer(ctx, pos.TransferDocument{
				DocumentUUID: uuid.NewString(),
				FromStoreID:  account,
				ToStoreID:    targetName,
				Items:        []pos.DocumentItem{{ProductID: w.cfg.ProductID, Quantity: shortfall.String()}},
			})
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s -> %s: %v", account, targetName, err))
				continue
			}
			emitted++
		}
	}

	errMsg := strings.Join(failures, "; ")
	if err := w.syncLog.FinishRun(ctx, runID, w.clock.Now(), emitted, 0, false, errMsg); err != nil {
		common.Logger.WithFields(common.ErrorFields(err, "negative_consumable_transfer")).Error("failed to finish transfer run log")
	}

	summary := fmt.Sprintf("Negative-consumable transfer: %d document(s) emitted, %d failure(s).", emitted, len(failures))
	return w.notifier.NotifyAdmins(ctx, summary)
}

// accountBalances sums the OLAP report's per-account amount into one
// running total per account name. A row whose amount field is absent or
// null is skipped outright — spec.md §4.7.4 calls this out explicitly,
// since treating a missing amount as zero would wrongly read as "not
// negative" and suppress a transfer that should have fired.
func accountBalances(rows []pos.RawRecord) map[string]decimal.Decimal {
	balances := map[string]decimal.Decimal{}
	for _, row := range rows {
		name, ok := row["Account.Name"].(string)
		if !ok || name == "" {
			continue
		}
		raw, present := row["Amount"]
		if !present || raw == nil {
			continue
		}
		amountStr, ok := raw.(string)
		if !ok {
			continue
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			continue
		}
		balances[name] = balances[name].Add(amount)
	}
	return balances
}
