// Package repository abstracts storage behind domain interfaces so the
// sync engine, workflows, and caches don't depend on pgx or go-redis
// directly. Four interfaces, one per concern:
//
//   - ReferenceRepository: entity/balance mirror tables (Postgres)
//   - SyncLogRepository: sync-run bookkeeping (Postgres)
//   - WriteoffRepository: the single shared-document concurrency point
//     (Postgres, conditional UPDATE — never an in-process mutex)
//   - CacheRepository: distributed locks, TTL cache, pub/sub, counters
//     (Redis, with an in-process fallback elsewhere when unconfigured)
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Entity is a row from the entities mirror table (supplier, department,
// store, group, product group, product, employee, employee role — all
// share this shape, discriminated by EntityType).
type Entity struct {
	ID         string
	EntityType string
	Name       string
	ParentID   string
	Active     bool
	Raw        []byte
	UpdatedAt  time.Time
}

// Employee is one employee row, surfaced from the entities mirror table
// (entity_type="employee") with the platform-binding fields the
// authorisation workflow needs pulled out of Raw for convenience.
type Employee struct {
	ID             string
	LastName       string
	FirstName      string
	Active         bool
	RoleID         string
	DepartmentID   string
	PlatformUserID string
}

// EmployeeRepository resolves and binds the platform user id ↔ employee
// relationship the authorisation workflow (spec.md §4.7.1) manages. Backed
// by the entities mirror table, querying its `raw` JSONB column for the
// platform-binding fields no other mirrored entity kind needs.
type EmployeeRepository interface {
	FindByPlatformUserID(ctx context.Context, platformUserID string) (*Employee, error)
	FindByLastName(ctx context.Context, lastName string) ([]Employee, error)
	Bind(ctx context.Context, employeeID, platformUserID string) error
	SetDepartment(ctx context.Context, employeeID, departmentID string) error
}

// StockBalance is one product's on-hand quantity at one store.
type StockBalance struct {
	ProductID string
	StoreID   string
	Quantity  decimal.Decimal
	AsOf      time.Time
}

// ReferenceRepository manages the entity and balance mirror tables that
// the sync engine reconciles against upstream fetches.
type ReferenceRepository interface {
	UpsertEntities(ctx context.Context, entityType string, entities []Entity) error
	DeleteEntitiesNotIn(ctx context.Context, entityType string, keepIDs []string) (deleted int, skipped bool, err error)
	ListEntities(ctx context.Context, entityType string) ([]Entity, error)
	GetEntity(ctx context.Context, id string) (*Entity, error)
	ChildrenOf(ctx context.Context, parentID string) ([]Entity, error)

	UpsertStockBalances(ctx context.Context, storeID string, balances []StockBalance) error
	GetStockBalance(ctx context.Context, productID, storeID string) (*StockBalance, error)
	ListBelowMinStock(ctx context.Context, storeID string) ([]StockBalance, error)
}

// SyncRun records one mirror-sync reconcile pass.
type SyncRun struct {
	EntityType    string
	StartedAt     time.Time
	FinishedAt    *time.Time
	Upserted      int
	Deleted       int
	SanitySkipped bool
	Error         string
}

// SyncLogRepository records mirror-sync run history for operator visibility.
// Runs are written in two phases: StartRun inserts a visible running row
// before any upstream work happens, and FinishRun updates that same row
// once the reconcile ends. A process that crashes mid-run leaves the
// running row behind with no finished_at — acceptable, visible in audit.
type SyncLogRepository interface {
	StartRun(ctx context.Context, entityType string, startedAt time.Time) (runID int64, err error)
	FinishRun(ctx context.Context, runID int64, finishedAt time.Time, upserted, deleted int, sanitySkipped bool, errMsg string) error
	LastRun(ctx context.Context, entityType string) (*SyncRun, error)
}

// PendingWriteoff is a staged stock write-off awaiting POS submission. ID
// is the short hex id used for admin keyboard callback data;
// DocumentUUID is the idempotency key the eventual POS submission is
// keyed by.
type PendingWriteoff struct {
	ID              string
	DocumentUUID    string
	StoreID         string
	AccountID       string
	CreatedBy       string
	Reason          string
	Status          string
	IsLocked        bool
	LockedBy        string
	TotalAmount     decimal.Decimal
	Items           []byte
	AdminMessageIDs map[int64]int
}

// WriteoffRepository is the sole critical section for a shared
// PendingWriteoff document. TryLock is a conditional UPDATE ... WHERE
// is_locked = false, not a mutex — this must work correctly across
// multiple replicas of this service sharing one database.
type WriteoffRepository interface {
	Create(ctx context.Context, wo *PendingWriteoff) error
	Get(ctx context.Context, id string) (*PendingWriteoff, error)
	TryLock(ctx context.Context, id, lockedBy string) (bool, error)
	Unlock(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id, status string) error
	RecordAdminMessages(ctx context.Context, id string, messageIDs map[int64]int) error
	Delete(ctx context.Context, id string) error
	RecordHistory(ctx context.Context, writeoffID, actor, action string, detail []byte) error
	// PruneHistory keeps only the most recent keep rows written by actor —
	// spec.md §4.7.2's 200-row cap is per author, not per document, since
	// writeoff_history outlives the ephemeral pending_writeoffs row its
	// writeoff_id column names.
	PruneHistory(ctx context.Context, actor string, keep int) error
}

// StoplistPair is one (product, store) currently off sale in the cloud POS.
type StoplistPair struct {
	ProductID string
	StoreID   string
	Reason    string
}

// StoplistRepository backs the active_stoplist/stoplist_history mirror the
// webhook debouncer diffs every StopListUpdate flush against.
type StoplistRepository interface {
	Active(ctx context.Context) ([]StoplistPair, error)
	Enter(ctx context.Context, pair StoplistPair, at time.Time) error
	Leave(ctx context.Context, pair StoplistPair, at time.Time) error
}

// PinnedMessage is one user's tracked pinned message for a recurring
// content class (stop-list, stock alert), keyed by chat.
type PinnedMessage struct {
	ChatID    int64
	MessageID int64
}

// PinnedMessageRepository tracks one pinned message per chat per content
// class, so a debounced flush can find and edit the existing message
// instead of sending a new one each time.
type PinnedMessageRepository interface {
	Get(ctx context.Context, class string, chatID int64) (*PinnedMessage, error)
	Set(ctx context.Context, class string, chatID int64, messageID int64) error
}

// InvoiceTemplate is a saved invoice shape (store, supplier, line items)
// an author can resubmit without re-entering items each time.
type InvoiceTemplate struct {
	ID         string
	Name       string
	SupplierID string
	StoreID    string
	Items      []byte
	CreatedBy  string
}

// InvoiceTemplateRepository manages the saved-template shortcut path of
// the invoice FSM (spec.md §4.7.3).
type InvoiceTemplateRepository interface {
	Create(ctx context.Context, tpl *InvoiceTemplate) error
	Get(ctx context.Context, id string) (*InvoiceTemplate, error)
	ListByStore(ctx context.Context, storeID string) ([]InvoiceTemplate, error)
}

// ProductRequest is a floor-staff request for a product fan-out to
// receivers for approval/edit/cancel.
type ProductRequest struct {
	ID          string
	RequestedBy string
	StoreID     string
	ProductName string
	Quantity    decimal.Decimal
	Status      string
	ResolvedBy  string
}

// ProductRequestRepository backs the product-request half of spec.md
// §4.7.3.
type ProductRequestRepository interface {
	Create(ctx context.Context, req *ProductRequest) error
	Get(ctx context.Context, id string) (*ProductRequest, error)
	UpdateStatus(ctx context.Context, id, status, resolvedBy string) error
}

// FinanceRecord is one row of a finance reference resource (category,
// money-bag, partner, direction, good, deal, obligation, employee, ...),
// kept as opaque JSONB since this service never interprets finance rows
// itself — it only mirrors them for the reconciler's audit trail and for
// whatever future lookup needs them.
type FinanceRecord struct {
	Resource  string
	ID        string
	Raw       []byte
	UpdatedAt time.Time
}

// FinanceMirrorRepository manages the finance_mirror table the finance
// reconcilers (spec.md's SyncAllFinance) upsert/mirror-delete into, one
// resource name at a time.
type FinanceMirrorRepository interface {
	UpsertRecords(ctx context.Context, resource string, records []FinanceRecord) error
	DeleteRecordsNotIn(ctx context.Context, resource string, keepIDs []string) (deleted int, skipped bool, err error)
	ListRecords(ctx context.Context, resource string) ([]FinanceRecord, error)
}

// CacheRepository manages ephemeral data: distributed locks, cache
// entries, pub/sub, and counters.
type CacheRepository interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
	IsLocked(ctx context.Context, key string) (bool, error)

	SetCache(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetCache(ctx context.Context, key string, value interface{}) error
	DeleteCache(ctx context.Context, key string) error

	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan interface{}, error)

	Increment(ctx context.Context, key string) (int64, error)
	Decrement(ctx context.Context, key string) (int64, error)
}
