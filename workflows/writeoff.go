package workflows

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vostok-rest/backoffice/common"
	"github.com/vostok-rest/backoffice/db/repository"
	"github.com/vostok-rest/backoffice/upstream/pos"
)

// MaxWriteoffItems bounds one write-off document's line items, per
// spec.md §4.7.2.
const MaxWriteoffItems = 50

// WriteoffHistoryCap is how many history rows are retained per author
// after a successful POS submission, per spec.md §4.7.2.
const WriteoffHistoryCap = 200

// StoreSelection is the outcome of the store-selection policy: either a
// single auto-picked store, or a signal that the caller must present a
// manual chooser.
type StoreSelection struct {
	AutoStoreID string
	Manual      bool
}

// RoleFamilies classifies role ids into the bar/kitchen families spec.md
// §4.7.2 names. Configured rather than hardcoded, since the concrete POS
// role id set is operator data, not a compile-time constant.
type RoleFamilies struct {
	Bar     map[string]bool // bartender family, cashier family, runner
	Kitchen map[string]bool // cook family, pastry family, dish-washer, etc.
}

// SelectStore implements the store-selection policy: administrators
// always choose manually; otherwise the author's role family picks the
// department's bar or kitchen store automatically, and an unrecognised
// role family falls back to manual selection too.
func SelectStore(isAdmin bool, roleID string, families RoleFamilies, barStoreID, kitchenStoreID string) StoreSelection {
	if isAdmin {
		return StoreSelection{Manual: true}
	}
	if families.Bar[roleID] {
		return StoreSelection{AutoStoreID: barStoreID}
	}
	if families.Kitchen[roleID] {
		return StoreSelection{AutoStoreID: kitchenStoreID}
	}
	return StoreSelection{Manual: true}
}

// FilterWriteoffAccounts narrows the full POS account list to the ones
// eligible for a write-off document: substring "списание" in the name,
// further narrowed to the given store segment. Per spec.md §4.7.2 this
// typically yields 3–5 of the ~142 total accounts.
func FilterWriteoffAccounts(accounts []repository.Entity, storeSegment string) []repository.Entity {
	var out []repository.Entity
	for _, a := range accounts {
		if !strings.Contains(a.Name, "списание") {
			continue
		}
		if storeSegment != "" && !strings.Contains(strings.ToLower(a.Name), strings.ToLower(storeSegment)) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// WriteoffItem is one authored line item before submission.
type WriteoffItem struct {
	ProductID string
	Quantity  decimal.Decimal
}

// WriteoffDraft is the authoring FSM's accumulated state at submission
// time.
type WriteoffDraft struct {
	StoreID   string
	AccountID string
	Reason    string
	Items     []WriteoffItem
	CreatedBy string
}

// Validate checks at most MaxWriteoffItems items, a non-empty reason, a
// product id on every item, and positive quantities. No upper bound on a
// quantity is checked.
func (d WriteoffDraft) Validate() error {
	if len(d.Items) == 0 {
		return fmt.Errorf("write-off must have at least one item")
	}
	if len(d.Items) > MaxWriteoffItems {
		return fmt.Errorf("write-off exceeds the %d item limit", MaxWriteoffItems)
	}
	if strings.TrimSpace(d.Reason) == "" {
		return fmt.Errorf("write-off reason must not be empty")
	}
	for _, item := range d.Items {
		if item.ProductID == "" {
			return fmt.Errorf("write-off item must name a product")
		}
		if !item.Quantity.IsPositive() {
			return fmt.Errorf("write-off item quantity for %s must be positive", item.ProductID)
		}
	}
	return nil
}

func (d WriteoffDraft) total() decimal.Decimal {
	sums := make([]decimal.Decimal, 0, len(d.Items))
	for _, item := range d.Items {
		sums = append(sums, item.Quantity)
	}
	return common.SumDecimals(sums)
}

// AdminNotifier fans out the approve/edit/reject keyboard to every admin
// and returns the per-admin message id so it can be recorded on the row.
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, wo *repository.PendingWriteoff) (messageIDs map[int64]int, err error)
	ClearAdminKeyboards(ctx context.Context, messageIDs map[int64]int) error
	NotifyAuthor(ctx context.Context, authorID, text string) error
}

// Writeoff implements authoring submission and admin-side approval for
// the write-off workflow, per spec.md §4.7.2.
type Writeoff struct {
	repo     repository.WriteoffRepository
	pos      *pos.Client
	notifier AdminNotifier
}

// NewWriteoff builds a Writeoff workflow.
func NewWriteoff(repo repository.WriteoffRepository, posClient *pos.Client, notifier AdminNotifier) *Writeoff {
	return &Writeoff{repo: repo, pos: posClient, notifier: notifier}
}

// Submit stages a validated draft as a PendingWriteoff and fans out the
// admin approval keyboard.
func (w *Writeoff) Submit(ctx context.Context, draft WriteoffDraft) (*repository.PendingWriteoff, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	itemsJSON, err := json.Marshal(draft.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode write-off items: %w", err)
	}

	wo := &repository.PendingWriteoff{
		StoreID:     draft.StoreID,
		AccountID:   draft.AccountID,
		CreatedBy:   draft.CreatedBy,
		Reason:      draft.Reason,
		Status:      "pending",
		TotalAmount: draft.total(),
		Items:       itemsJSON,
	}
	if err := w.repo.Create(ctx, wo); err != nil {
		return nil, fmt.Errorf("failed to create pending write-off: %w", err)
	}

	messageIDs, err := w.notifier.NotifyAdmins(ctx, wo)
	if err != nil {
		return wo, fmt.Errorf("failed to notify admins of new write-off: %w", err)
	}
	if err := w.repo.RecordAdminMessages(ctx, wo.ID, messageIDs); err != nil {
		return wo, fmt.Errorf("failed to record admin message ids: %w", err)
	}

	return wo, nil
}

// ErrAlreadyHandled is returned when an admin's press loses the
// conditional lock race to another admin.
var ErrAlreadyHandled = fmt.Errorf("another admin is already handling this write-off")

// TryClaim attempts the atomic lock an Approve/Edit/Reject press requires
// before acting, per spec.md §4.7.2's admin-concurrency rule.
func (w *Writeoff) TryClaim(ctx context.Context, id, adminID string) (*repository.PendingWriteoff, error) {
	acquired, err := w.repo.TryLock(ctx, id, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to try-lock write-off %s: %w", id, err)
	}
	if !acquired {
		return nil, ErrAlreadyHandled
	}
	return w.repo.Get(ctx, id)
}

// Release gives up a claimed write-off without resolving it (the "cancel"
// path out of Edit).
func (w *Writeoff) Release(ctx context.Context, id string) error {
	return w.repo.Unlock(ctx, id)
}

// Approve builds the POS document, submits it with the client's built-in
// idempotent retry, records history (pruned to WriteoffHistoryCap),
// notifies the author, clears every admin's keyboard, and deletes the row.
func (w *Writeoff) Approve(ctx context.Context, wo *repository.PendingWriteoff, authorFullName string) error {
	var items []WriteoffItem
	if err := json.Unmarshal(wo.Items, &items); err != nil {
		return fmt.Errorf("failed to decode write-off items: %w", err)
	}

	docItems := make([]pos.DocumentItem, 0, len(items))
	for _, item := range items {
		docItems = append(docItems, pos.DocumentItem{ProductID: item.ProductID, Quantity: item.Quantity.String()})
	}

	comment := fmt.Sprintf("%s (Author: %s)", wo.Reason, authorFullName)
	err := w.pos.SendWriteoff(ctx, pos.WriteoffDocument{
		DocumentUUID: wo.DocumentUUID,
		StoreID:      wo.StoreID,
		AccountID:    wo.AccountID,
		Comment:      comment,
		Items:        docItems,
	})
	if err != nil {
		return fmt.Errorf("failed to submit write-off to POS: %w", err)
	}

	detail, _ := json.Marshal(map[string]interface{}{"store_id": wo.StoreID, "total": wo.TotalAmount.String()})
	if err := w.repo.RecordHistory(ctx, wo.ID, wo.CreatedBy, "approved", detail); err != nil {
		common.Logger.WithFields(common.ErrorFields(err, wo.ID)).Error("failed to record write-off history")
	}
	if err := w.repo.PruneHistory(ctx, wo.CreatedBy, WriteoffHistoryCap); err != nil {
		common.Logger.WithFields(common.ErrorFields(err, wo.ID)).Error("failed to prune write-off history")
	}

	if err := w.notifier.NotifyAuthor(ctx, wo.CreatedBy, "✅ Your write-off was approved and submitted."); err != nil {
		common.Logger.WithFields(common.ErrorFields(err, wo.ID)).Error("failed to notify write-off author")
	}
	if err := w.notifier.ClearAdminKeyboards(ctx, wo.AdminMessageIDs); err != nil {
		common.Logger.WithFields(common.ErrorFields(err, wo.ID)).Error("failed to clear admin keyboards")
	}

	return w.repo.Delete(ctx, wo.ID)
}

// Reject deletes the row without submission, notifying the author and
// clearing every admin's keyboard.
func (w *Writeoff) Reject(ctx context.Context, wo *repository.PendingWriteoff) error {
	if err := w.notifier.NotifyAuthor(ctx, wo.CreatedBy, "🚫 Your write-off was rejected."); err != nil {
		common.Logger.WithFields(common.ErrorFields(err, wo.ID)).Error("failed to notify write-off author")
	}
	if err := w.notifier.ClearAdminKeyboards(ctx, wo.AdminMessageIDs); err != nil {
		common.Logger.WithFields(common.ErrorFields(err, wo.ID)).Error("failed to clear admin keyboards")
	}
	return w.repo.Delete(ctx, wo.ID)
}
