package workflows

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vostok-rest/backoffice/db/repository"
	"github.com/vostok-rest/backoffice/tree"
	"github.com/vostok-rest/backoffice/upstream/pos"
)

// InvoiceLine is one authored line item.
type InvoiceLine struct {
	ProductID string
	Quantity  decimal.Decimal
}

// InvoiceDraft is the authoring FSM's accumulated state: store → supplier
// → items (tree-scoped by export group) → either a template name or a
// live submission, per spec.md §4.7.3.
type InvoiceDraft struct {
	StoreID    string
	SupplierID string
	Items      []InvoiceLine
	CreatedBy  string
}

func (d InvoiceDraft) Validate() error {
	if d.StoreID == "" || d.SupplierID == "" {
		return fmt.Errorf("invoice draft requires a store and a supplier")
	}
	if len(d.Items) == 0 {
		return fmt.Errorf("invoice must have at least one item")
	}
	for _, item := range d.Items {
		if item.ProductID == "" {
			return fmt.Errorf("invoice item must name a product")
		}
		if !item.Quantity.IsPositive() {
			return fmt.Errorf("invoice item quantity for %s must be positive", item.ProductID)
		}
	}
	return nil
}

// Invoice implements the outgoing-invoice half of spec.md §4.7.3: item
// search scoped to a configured export group, saving/resubmitting
// templates, and live submission to the POS.
type Invoice struct {
	templates repository.InvoiceTemplateRepository
	items     *tree.Resolver
	pos       *pos.Client
}

func NewInvoice(templates repository.InvoiceTemplateRepository, items *tree.Resolver, posClient *pos.Client) *Invoice {
	return &Invoice{templates: templates, items: items, pos: posClient}
}

// SearchItems returns the items in exportGroupRootID's descendant closure
// whose name matches query, so the item picker only ever offers items in
// scope for that export group.
func (w *Invoice) SearchItems(ctx context.Context, exportGroupRootID, query string) ([]repository.Entity, error) {
	return w.items.Search(ctx, exportGroupRootID, query)
}

// SaveAsTemplate persists draft for later resubmission without
// re-entering items.
func (w *Invoice) SaveAsTemplate(ctx context.Context, draft InvoiceDraft, name string) (*repository.InvoiceTemplate, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	itemsJSON, err := json.Marshal(draft.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode invoice template items: %w", err)
	}

	tpl := &repository.InvoiceTemplate{
		Name:       name,
		SupplierID: draft.SupplierID,
		StoreID:    draft.StoreID,
		Items:      itemsJSON,
		CreatedBy:  draft.CreatedBy,
	}
	if err := w.templates.Create(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to save invoice template: %w", err)
	}
	return tpl, nil
}

// DraftFromTemplate rehydrates a saved template into a fresh draft
// awaiting quantity entry.
func (w *Invoice) DraftFromTemplate(ctx context.Context, templateID, createdBy string) (InvoiceDraft, error) {
	tpl, err := w.templates.Get(ctx, templateID)
	if err != nil {
		return InvoiceDraft{}, err
	}
	var items []InvoiceLine
	if err := json.Unmarshal(tpl.Items, &items); err != nil {
		return InvoiceDraft{}, fmt.Errorf("failed to decode invoice template items: %w", err)
	}
	return InvoiceDraft{StoreID: tpl.StoreID, SupplierID: tpl.SupplierID, Items: items, CreatedBy: createdBy}, nil
}

// Submit submits a live invoice document to the POS with status PROCESSED.
func (w *Invoice) Submit(ctx context.Context, draft InvoiceDraft) error {
	return w.submit(ctx, draft, "PROCESSED")
}

func (w *Invoice) submit(ctx context.Context, draft InvoiceDraft, status string) error {
	if err := draft.Validate(); err != nil {
		return err
	}

	docItems := make([]pos.DocumentItem, 0, len(draft.Items))
	for _, item := range draft.Items {
		docItems = append(docItems, pos.DocumentItem{ProductID: item.ProductID, Quantity: item.Quantity.String()})
	}

	err := w.pos.SendOutgoingInvoice(ctx, pos.InvoiceDocument{
		DocumentUUID: uuid.NewString(),
		StoreID:      draft.StoreID,
		SupplierID:   draft.SupplierID,
		Status:       status,
		Items:        docItems,
	})
	if err != nil {
		return fmt.Errorf("failed to submit invoice to POS: %w", err)
	}
	return nil
}

// ProductRequestNotifier fans a new/resolved product request out to the
// receivers configured for the requesting store.
type ProductRequestNotifier interface {
	NotifyReceivers(ctx context.Context, req *repository.ProductRequest) error
	NotifyRequester(ctx context.Context, requestedBy, text string) error
}

// ProductRequests implements the floor-staff request half of spec.md
// §4.7.3: created by floor staff, fanned out to receivers, who may
// approve (emitting a PROCESSED invoice), edit the quantity, or cancel.
type ProductRequests struct {
	repo     repository.ProductRequestRepository
	invoice  *Invoice
	notifier ProductRequestNotifier
}

func NewProductRequests(repo repository.ProductRequestRepository, invoice *Invoice, notifier ProductRequestNotifier) *ProductRequests {
	return &ProductRequests{repo: repo, invoice: invoice, notifier: notifier}
}

func (w *ProductRequests) Create(ctx context.Context, requestedBy, storeID, productName string, quantity decimal.Decimal) (*repository.ProductRequest, error) {
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("product request quantity must be positive")
	}
	req := &repository.ProductRequest{
		RequestedBy: requestedBy,
		StoreID:     storeID,
		ProductName: productName,
		Quantity:    quantity,
		Status:      "pending",
	}
	if err := w.repo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create product request: %w", err)
	}
	if err := w.notifier.NotifyReceivers(ctx, req); err != nil {
		return req, fmt.Errorf("failed to notify receivers of product request: %w", err)
	}
	return req, nil
}

// EditQuantity lets a receiver correct the requested quantity before
// approval.
func (w *ProductRequests) EditQuantity(ctx context.Context, req *repository.ProductRequest, quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("product request quantity must be positive")
	}
	req.Quantity = quantity
	return nil
}

// Approve emits an outgoing invoice with status PROCESSED for the
// request's product/quantity and marks the request resolved.
func (w *ProductRequests) Approve(ctx context.Context, req *repository.ProductRequest, supplierID, resolvedBy string) error {
	draft := InvoiceDraft{
		StoreID:    req.StoreID,
		SupplierID: supplierID,
		Items:      []InvoiceLine{{ProductID: req.ProductName, Quantity: req.Quantity}},
		CreatedBy:  resolvedBy,
	}
	if err := w.invoice.submit(ctx, draft, "PROCESSED"); err != nil {
		return err
	}
	if err := w.repo.UpdateStatus(ctx, req.ID, "approved", resolvedBy); err != nil {
		return fmt.Errorf("failed to mark product request %s approved: %w", req.ID, err)
	}
	return w.notifier.NotifyRequester(ctx, req.RequestedBy, "✅ Your product request was approved and submitted.")
}

// Cancel marks the request cancelled without POS submission.
func (w *ProductRequests) Cancel(ctx context.Context, req *repository.ProductRequest, resolvedBy string) error {
	if err := w.repo.UpdateStatus(ctx, req.ID, "cancelled", resolvedBy); err != nil {
		return fmt.Errorf("failed to mark product request %s cancelled: %w", req.ID, err)
	}
	return w.notifier.NotifyRequester(ctx, req.RequestedBy, "🚫 Your product request was cancelled.")
}
