package workflows

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vostok-rest/backoffice/db/repository"
)

func TestInvoiceDraft_Validate_RequiresStoreAndSupplier(t *testing.T) {
	draft := InvoiceDraft{Items: []InvoiceLine{{ProductID: "p1", Quantity: decimal.NewFromInt(1)}}}
	assert.Error(t, draft.Validate())
}

func TestInvoiceDraft_Validate_RejectsNonPositiveQuantity(t *testing.T) {
	draft := InvoiceDraft{
		StoreID: "store-1", SupplierID: "supplier-1",
		Items: []InvoiceLine{{ProductID: "p1", Quantity: decimal.Zero}},
	}
	assert.Error(t, draft.Validate())
}

type fakeInvoiceTemplateRepo struct {
	rows map[string]*repository.InvoiceTemplate
}

func newFakeInvoiceTemplateRepo() *fakeInvoiceTemplateRepo {
	return &fakeInvoiceTemplateRepo{rows: map[string]*repository.InvoiceTemplate{}}
}

func (f *fakeInvoiceTemplateRepo) Create(ctx context.Context, tpl *repository.InvoiceTemplate) error {
	if tpl.ID == "" {
		tpl.ID = "tpl-fake"
	}
	f.rows[tpl.ID] = tpl
	return nil
}

func (f *fakeInvoiceTemplateRepo) Get(ctx context.Context, id string) (*repository.InvoiceTemplate, error) {
	return f.rows[id], nil
}

func (f *fakeInvoiceTemplateRepo) ListByStore(ctx context.Context, storeID string) ([]repository.InvoiceTemplate, error) {
	var out []repository.InvoiceTemplate
	for _, tpl := range f.rows {
		if tpl.StoreID == storeID {
			out = append(out, *tpl)
		}
	}
	return out, nil
}

func TestInvoice_SaveAsTemplate_ThenDraftFromTemplate(t *testing.T) {
	templates := newFakeInvoiceTemplateRepo()
	wf := NewInvoice(templates, nil, nil)

	draft := InvoiceDraft{
		StoreID: "store-1", SupplierID: "supplier-1", CreatedBy: "operator-1",
		Items: []InvoiceLine{{ProductID: "p1", Quantity: decimal.NewFromInt(3)}},
	}
	tpl, err := wf.SaveAsTemplate(context.Background(), draft, "Weekly produce")
	require.NoError(t, err)
	require.NotEmpty(t, tpl.ID)

	rehydrated, err := wf.DraftFromTemplate(context.Background(), tpl.ID, "operator-2")
	require.NoError(t, err)
	assert.Equal(t, "store-1", rehydrated.StoreID)
	assert.Equal(t, "operator-2", rehydrated.CreatedBy)
	require.Len(t, rehydrated.Items, 1)
	assert.True(t, rehydrated.Items[0].Quantity.Equal(decimal.NewFromInt(3)))
}

type fakeProductRequestRepo struct {
	rows map[string]*repository.ProductRequest
}

func newFakeProductRequestRepo() *fakeProductRequestRepo {
	return &fakeProductRequestRepo{rows: map[string]*repository.ProductRequest{}}
}

func (f *fakeProductRequestRepo) Create(ctx context.Context, req *repository.ProductRequest) error {
	if req.ID == "" {
		req.ID = "req-fake"
	}
	f.rows[req.ID] = req
	return nil
}

func (f *fakeProductRequestRepo) Get(ctx context.Context, id string) (*repository.ProductRequest, error) {
	return f.rows[id], nil
}

func (f *fakeProductRequestRepo) UpdateStatus(ctx context.Context, id, status, resolvedBy string) error {
	f.rows[id].Status = status
	f.rows[id].ResolvedBy = resolvedBy
	return nil
}

type fakeProductRequestNotifier struct {
	receiversNotified int
	requesterText     string
}

func (f *fakeProductRequestNotifier) NotifyReceivers(ctx context.Context, req *repository.ProductRequest) error {
	f.receiversNotified++
	return nil
}

func (f *fakeProductRequestNotifier) NotifyRequester(ctx context.Context, requestedBy, text string) error {
	f.requesterText = text
	return nil
}

func TestProductRequests_Create_NotifiesReceivers(t *testing.T) {
	repo := newFakeProductRequestRepo()
	notifier := &fakeProductRequestNotifier{}
	wf := NewProductRequests(repo, nil, notifier)

	req, err := wf.Create(context.Background(), "floor-1", "store-1", "Tomatoes", decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.receiversNotified)
	assert.Equal(t, "pending", req.Status)
}

func TestProductRequests_Create_RejectsNonPositiveQuantity(t *testing.T) {
	wf := NewProductRequests(newFakeProductRequestRepo(), nil, &fakeProductRequestNotifier{})
	_, err := wf.Create(context.Background(), "floor-1", "store-1", "Tomatoes", decimal.Zero)
	assert.Error(t, err)
}

func TestProductRequests_Cancel_MarksCancelledAndNotifiesRequester(t *testing.T) {
	repo := newFakeProductRequestRepo()
	notifier := &fakeProductRequestNotifier{}
	wf := NewProductRequests(repo, nil, notifier)
	req := &repository.ProductRequest{ID: "req-1", RequestedBy: "floor-1", Status: "pending"}
	repo.rows["req-1"] = req

	require.NoError(t, wf.Cancel(context.Background(), req, "receiver-1"))
	assert.Equal(t, "cancelled", repo.rows["req-1"].Status)
	assert.Contains(t, notifier.requesterText, "cancelled")
}
