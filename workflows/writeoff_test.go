package workflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vostok-rest/backoffice/db/repository"
	"github.com/vostok-rest/backoffice/upstream/pos"
)

func TestSelectStore_AdminAlwaysManual(t *testing.T) {
	sel := SelectStore(true, "bartender", RoleFamilies{}, "bar-1", "kitchen-1")
	assert.True(t, sel.Manual)
}

func TestSelectStore_BarFamilyAutoPicks(t *testing.T) {
	families := RoleFamilies{Bar: map[string]bool{"bartender": true}}
	sel := SelectStore(false, "bartender", families, "bar-1", "kitchen-1")
	assert.Equal(t, "bar-1", sel.AutoStoreID)
	assert.False(t, sel.Manual)
}

func TestSelectStore_KitchenFamilyAutoPicks(t *testing.T) {
	families := RoleFamilies{Kitchen: map[string]bool{"cook": true}}
	sel := SelectStore(false, "cook", families, "bar-1", "kitchen-1")
	assert.Equal(t, "kitchen-1", sel.AutoStoreID)
}

func TestSelectStore_UnrecognisedRoleFallsBackToManual(t *testing.T) {
	sel := SelectStore(false, "accountant", RoleFamilies{}, "bar-1", "kitchen-1")
	assert.True(t, sel.Manual)
}

func TestFilterWriteoffAccounts_FiltersBySubstringAndSegment(t *testing.T) {
	accounts := []repository.Entity{
		{ID: "a1", Name: "Бар списание"},
		{ID: "a2", Name: "Кухня списание"},
		{ID: "a3", Name: "Бар продажи"},
	}
	filtered := FilterWriteoffAccounts(accounts, "Бар")
	require.Len(t, filtered, 1)
	assert.Equal(t, "a1", filtered[0].ID)
}

func TestWriteoffDraft_Validate_RejectsTooManyItems(t *testing.T) {
	items := make([]WriteoffItem, MaxWriteoffItems+1)
	for i := range items {
		items[i] = WriteoffItem{ProductID: "p", Quantity: decimal.NewFromInt(1)}
	}
	draft := WriteoffDraft{Reason: "spoilage", Items: items}
	assert.Error(t, draft.Validate())
}

func TestWriteoffDraft_Validate_RejectsNonPositiveQuantity(t *testing.T) {
	draft := WriteoffDraft{Reason: "spoilage", Items: []WriteoffItem{{ProductID: "p1", Quantity: decimal.Zero}}}
	assert.Error(t, draft.Validate())
}

func TestWriteoffDraft_Validate_RejectsEmptyReason(t *testing.T) {
	draft := WriteoffDraft{Items: []WriteoffItem{{ProductID: "p1", Quantity: decimal.NewFromInt(1)}}}
	assert.Error(t, draft.Validate())
}

type writeoffHistoryEntry struct {
	writeoffID string
	actor      string
}

type fakeWriteoffRepo struct {
	rows        map[string]*repository.PendingWriteoff
	everExisted map[string]bool
	history     []writeoffHistoryEntry
	pruned      []string
	nextID      int
	deleted     []string
}

func newFakeWriteoffRepo() *fakeWriteoffRepo {
	return &fakeWriteoffRepo{rows: map[string]*repository.PendingWriteoff{}, everExisted: map[string]bool{}}
}

func (f *fakeWriteoffRepo) Create(ctx context.Context, wo *repository.PendingWriteoff) error {
	f.nextID++
	if wo.ID == "" {
		wo.ID = "wo-fake"
	}
	if wo.DocumentUUID == "" {
		wo.DocumentUUID = "uuid-fake"
	}
	f.rows[wo.ID] = wo
	f.everExisted[wo.ID] = true
	return nil
}

func (f *fakeWriteoffRepo) Get(ctx context.Context, id string) (*repository.PendingWriteoff, error) {
	return f.rows[id], nil
}

func (f *fakeWriteoffRepo) TryLock(ctx context.Context, id, lockedBy string) (bool, error) {
	wo := f.rows[id]
	if wo.IsLocked {
		return false, nil
	}
	wo.IsLocked = true
	wo.LockedBy = lockedBy
	return true, nil
}

func (f *fakeWriteoffRepo) Unlock(ctx context.Context, id string) error {
	f.rows[id].IsLocked = false
	return nil
}

func (f *fakeWriteoffRepo) UpdateStatus(ctx context.Context, id, status string) error {
	f.rows[id].Status = status
	return nil
}

func (f *fakeWriteoffRepo) RecordAdminMessages(ctx context.Context, id string, messageIDs map[int64]int) error {
	f.rows[id].AdminMessageIDs = messageIDs
	return nil
}

func (f *fakeWriteoffRepo) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.rows, id)
	return nil
}

// RecordHistory mirrors writeoff_history.writeoff_id's real-schema
// constraint: a history row may only be filed against a write-off id that
// actually existed at some point in this fake, never a bare chat/author id.
func (f *fakeWriteoffRepo) RecordHistory(ctx context.Context, writeoffID, actor, action string, detail []byte) error {
	if !f.everExisted[writeoffID] {
		return fmt.Errorf("writeoff_history FK violation: no pending_writeoffs row %q", writeoffID)
	}
	f.history = append(f.history, writeoffHistoryEntry{writeoffID: writeoffID, actor: actor})
	return nil
}

func (f *fakeWriteoffRepo) PruneHistory(ctx context.Context, actor string, keep int) error {
	f.pruned = append(f.pruned, actor)
	return nil
}

type fakeAdminNotifier struct {
	notified int
	cleared  bool
	author   string
}

func (f *fakeAdminNotifier) NotifyAdmins(ctx context.Context, wo *repository.PendingWriteoff) (map[int64]int, error) {
	f.notified++
	return map[int64]int{1: 100, 2: 200}, nil
}

func (f *fakeAdminNotifier) ClearAdminKeyboards(ctx context.Context, messageIDs map[int64]int) error {
	f.cleared = true
	return nil
}

func (f *fakeAdminNotifier) NotifyAuthor(ctx context.Context, authorID, text string) error {
	f.author = text
	return nil
}

func TestWriteoff_Submit_CreatesRowAndNotifiesAdmins(t *testing.T) {
	repo := newFakeWriteoffRepo()
	notifier := &fakeAdminNotifier{}
	wf := NewWriteoff(repo, nil, notifier)

	draft := WriteoffDraft{
		StoreID:   "store-1",
		AccountID: "account-1",
		Reason:    "spoilage",
		CreatedBy: "operator-1",
		Items:     []WriteoffItem{{ProductID: "p1", Quantity: decimal.NewFromInt(2)}},
	}

	wo, err := wf.Submit(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.notified)
	assert.NotEmpty(t, wo.AdminMessageIDs)
}

func TestWriteoff_TryClaim_SecondAdminLosesTheRace(t *testing.T) {
	repo := newFakeWriteoffRepo()
	wf := NewWriteoff(repo, nil, &fakeAdminNotifier{})
	repo.rows["wo-1"] = &repository.PendingWriteoff{ID: "wo-1"}

	_, err := wf.TryClaim(context.Background(), "wo-1", "admin-a")
	require.NoError(t, err)

	_, err = wf.TryClaim(context.Background(), "wo-1", "admin-b")
	assert.ErrorIs(t, err, ErrAlreadyHandled)
}

func TestWriteoff_Reject_DeletesRowAndClearsKeyboards(t *testing.T) {
	repo := newFakeWriteoffRepo()
	notifier := &fakeAdminNotifier{}
	wf := NewWriteoff(repo, nil, notifier)
	wo := &repository.PendingWriteoff{ID: "wo-1", CreatedBy: "operator-1"}
	repo.rows["wo-1"] = wo

	require.NoError(t, wf.Reject(context.Background(), wo))
	assert.True(t, notifier.cleared)
	assert.Contains(t, repo.deleted, "wo-1")
}

func TestWriteoff_Approve_RecordsHistoryAgainstWriteoffIDNotAuthor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/resto/api/auth":
			w.Write([]byte(`"tok-1"`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	repo := newFakeWriteoffRepo()
	notifier := &fakeAdminNotifier{}
	posClient := pos.New(pos.Config{BaseURL: server.URL})
	wf := NewWriteoff(repo, posClient, notifier)

	itemsJSON, err := json.Marshal([]WriteoffItem{{ProductID: "p1", Quantity: decimal.NewFromInt(2)}})
	require.NoError(t, err)
	wo := &repository.PendingWriteoff{
		ID: "wo-1", CreatedBy: "operator-1", DocumentUUID: "uuid-1",
		StoreID: "store-1", AccountID: "account-1", Reason: "spoilage",
		TotalAmount: decimal.NewFromInt(2), Items: itemsJSON,
	}
	repo.rows["wo-1"] = wo
	repo.everExisted["wo-1"] = true

	// Guards against regressing a RecordHistory call keyed on the author's
	// chat id instead of wo.ID: the fake's FK-like check above would reject
	// that call, same as the real writeoff_history FK constraint would.
	require.NoError(t, wf.Approve(context.Background(), wo, "Ada Lovelace"))
	require.Len(t, repo.history, 1)
	assert.Equal(t, "wo-1", repo.history[0].writeoffID)
	assert.Equal(t, "operator-1", repo.history[0].actor)
	assert.Equal(t, []string{"operator-1"}, repo.pruned)
	assert.Contains(t, repo.deleted, "wo-1")
}

func TestWriteoffItem_JSONRoundtrip(t *testing.T) {
	items := []WriteoffItem{{ProductID: "p1", Quantity: decimal.NewFromFloat(1.5)}}
	raw, err := json.Marshal(items)
	require.NoError(t, err)

	var out []WriteoffItem
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, out[0].Quantity.Equal(decimal.NewFromFloat(1.5)))
}
