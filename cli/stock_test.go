package cli

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vostok-rest/backoffice/db/repository"
	"github.com/vostok-rest/backoffice/upstream/pos"
)

func TestMapStockBalance_RejectsMissingProductID(t *testing.T) {
	_, ok := mapStockBalance(pos.RawRecord{"amount": "5"})
	assert.False(t, ok)
}

func TestMapStockBalance_RejectsUnparsableAmount(t *testing.T) {
	_, ok := mapStockBalance(pos.RawRecord{"productId": "p1", "amount": "not-a-number"})
	assert.False(t, ok)
}

func TestMapStockBalance_ParsesValidRecord(t *testing.T) {
	balance, ok := mapStockBalance(pos.RawRecord{"productId": "p1", "amount": "3.5"})
	require.True(t, ok)
	assert.Equal(t, "p1", balance.ProductID)
	assert.True(t, balance.Quantity.Equal(decimal.NewFromFloat(3.5)))
}

type fakeReferenceRepo struct {
	repository.ReferenceRepository
	stores      []repository.Entity
	belowMin    map[string][]repository.StockBalance
	listErr     error
	belowMinErr error
}

func (f *fakeReferenceRepo) ListEntities(ctx context.Context, entityType string) ([]repository.Entity, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.stores, nil
}

func (f *fakeReferenceRepo) ListBelowMinStock(ctx context.Context, storeID string) ([]repository.StockBalance, error) {
	if f.belowMinErr != nil {
		return nil, f.belowMinErr
	}
	return f.belowMin[storeID], nil
}

type fakeAlertNotifier struct {
	summaries []string
}

func (f *fakeAlertNotifier) NotifyAdminsText(ctx context.Context, summary string) error {
	f.summaries = append(f.summaries, summary)
	return nil
}

func TestMinStockAlerts_NoAlertsSendsNothing(t *testing.T) {
	refs := &fakeReferenceRepo{stores: []repository.Entity{{ID: "store-1"}}}
	notifier := &fakeAlertNotifier{}

	require.NoError(t, minStockAlerts(context.Background(), refs, refs.stores, notifier))
	assert.Empty(t, notifier.summaries)
}

func TestMinStockAlerts_BelowMinimumNotifiesOnce(t *testing.T) {
	refs := &fakeReferenceRepo{
		stores: []repository.Entity{{ID: "store-1"}},
		belowMin: map[string][]repository.StockBalance{
			"store-1": {{ProductID: "p1", StoreID: "store-1", Quantity: decimal.NewFromInt(1), AsOf: time.Now()}},
		},
	}
	notifier := &fakeAlertNotifier{}

	require.NoError(t, minStockAlerts(context.Background(), refs, refs.stores, notifier))
	require.Len(t, notifier.summaries, 1)
	assert.Contains(t, notifier.summaries[0], "p1")
}
