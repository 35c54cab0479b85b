package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vostok-rest/backoffice/common"
	"github.com/vostok-rest/backoffice/db/repository"
	"github.com/vostok-rest/backoffice/sync"
	"github.com/vostok-rest/backoffice/upstream/finance"
	"github.com/vostok-rest/backoffice/upstream/pos"
)

// posEntityKinds is the SyncAllPos batch: the 8 POS reference resources
// spec.md §4.3 names, fetched and mirrored concurrently. The resource
// name doubles as the upstream fetch path and the entities.entity_type
// value its rows are scoped under.
var posEntityKinds = []string{
	"department", "store", "group", "product_group",
	"product", "supplier", "employee", "employee_role",
}

// entityOnlyKinds are the additional root_types SyncAllEntity reconciles
// alongside posEntityKinds to make up its 16, sharing one transaction.
// These are smaller, rarely-changing reference lists (not worth their own
// concurrent slot in SyncAllPos) that still live in the same entities
// table, disjoint by entity_type.
var entityOnlyKinds = []string{
	"account", "category", "unit", "measure",
	"price_type", "tax_rate", "currency", "payment_type",
}

// financeResourceKinds is the SyncAllFinance batch: the 13 flat finance
// tables spec.md §3 names (eight by name, five more implied by "etc." —
// decided here rather than left unbound, see DESIGN.md).
var financeResourceKinds = []string{
	"categories", "money_bags", "partners", "directions", "goods",
	"deals", "obligations", "employees", "accounts", "departments",
	"projects", "counterparties", "tax_rates",
}

// newPosReconciler builds a Reconciler that mirrors one POS reference
// resource into the entities table under entityType, using
// pos.Client.FetchReference for the generic XML fetch and
// ReferenceRepository.UpsertEntities/DeleteEntitiesNotIn for persistence.
func newPosReconciler(entityType string, posClient *pos.Client, refs repository.ReferenceRepository, locker sync.Locker, logs repository.SyncLogRepository, clock *common.Clock) *sync.Reconciler {
	return &sync.Reconciler{
		Name:   entityType,
		Locker: locker,
		Logs:   logs,
		Clock:  clock,
		Fetch: func(ctx context.Context) ([]interface{}, error) {
			raws, err := posClient.FetchReference(ctx, entityType)
			if err != nil {
				return nil, err
			}
			out := make([]interface{}, len(raws))
			for i, raw := range raws {
				out[i] = raw
			}
			return out, nil
		},
		Map: func(raw interface{}) (interface{}, string, bool) {
			rec, ok := raw.(pos.RawRecord)
			if !ok {
				return nil, "", false
			}
			return mapEntityRecord(entityType, rec)
		},
		Upsert: func(ctx context.Context, rows []interface{}) error {
			entities := make([]repository.Entity, 0, len(rows))
			for _, row := range rows {
				entities = append(entities, row.(repository.Entity))
			}
			return refs.UpsertEntities(ctx, entityType, entities)
		},
		MirrorDelete: func(ctx context.Context, keepIDs []string) (int, bool, error) {
			return refs.DeleteEntitiesNotIn(ctx, entityType, keepIDs)
		},
	}
}

func mapEntityRecord(entityType string, rec pos.RawRecord) (interface{}, string, bool) {
	id, _ := rec["id"].(string)
	if id == "" {
		return nil, "", false
	}
	name, _ := rec["name"].(string)
	parentID, _ := rec["parentId"].(string)
	active := true
	if deleted, ok := rec["deleted"].(bool); ok {
		active = !deleted
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, "", false
	}
	return repository.Entity{
		ID:         id,
		EntityType: entityType,
		Name:       name,
		ParentID:   parentID,
		Active:     active,
		Raw:        raw,
	}, id, true
}

// newFinanceReconciler builds a Reconciler that mirrors one flat finance
// resource into finance_mirror under resource, using
// finance.Client.FetchResource for the generic JSON fetch and
// FinanceMirrorRepository for persistence.
func newFinanceReconciler(resource string, financeClient *finance.Client, mirror repository.FinanceMirrorRepository, locker sync.Locker, logs repository.SyncLogRepository, clock *common.Clock) *sync.Reconciler {
	return &sync.Reconciler{
		Name:   "finance_" + resource,
		Locker: locker,
		Logs:   logs,
		Clock:  clock,
		Fetch: func(ctx context.Context) ([]interface{}, error) {
			raws, err := financeClient.FetchResource(ctx, resource)
			if err != nil {
				return nil, err
			}
			out := make([]interface{}, len(raws))
			for i, raw := range raws {
				out[i] = raw
			}
			return out, nil
		},
		Map: func(raw interface{}) (interface{}, string, bool) {
			rec, ok := raw.(finance.RawRecord)
			if !ok {
				return nil, "", false
			}
			id := financeRecordID(rec)
			if id == "" {
				return nil, "", false
			}
			body, err := json.Marshal(rec)
			if err != nil {
				return nil, "", false
			}
			return repository.FinanceRecord{Resource: resource, ID: id, Raw: body}, id, true
		},
		Upsert: func(ctx context.Context, rows []interface{}) error {
			records := make([]repository.FinanceRecord, 0, len(rows))
			for _, row := range rows {
				records = append(records, row.(repository.FinanceRecord))
			}
			return mirror.UpsertRecords(ctx, resource, records)
		},
		MirrorDelete: func(ctx context.Context, keepIDs []string) (int, bool, error) {
			return mirror.DeleteRecordsNotIn(ctx, resource, keepIDs)
		},
	}
}

// financeRecordID extracts the upstream 64-bit integer id, which JSON
// decodes as a float64, as a string key for mirror-delete comparison.
func financeRecordID(rec finance.RawRecord) string {
	switch v := rec["id"].(type) {
	case float64:
		return fmt.Sprintf("%.0f", v)
	case string:
		return v
	default:
		return ""
	}
}

// buildPosReconcilers returns the 8 SyncAllPos reconcilers.
func buildPosReconcilers(posClient *pos.Client, refs repository.ReferenceRepository, locker sync.Locker, logs repository.SyncLogRepository, clock *common.Clock) []*sync.Reconciler {
	out := make([]*sync.Reconciler, 0, len(posEntityKinds))
	for _, kind := range posEntityKinds {
		out = append(out, newPosReconciler(kind, posClient, refs, locker, logs, clock))
	}
	return out
}

// buildFinanceReconcilers returns the 13 SyncAllFinance reconcilers.
func buildFinanceReconcilers(financeClient *finance.Client, mirror repository.FinanceMirrorRepository, locker sync.Locker, logs repository.SyncLogRepository, clock *common.Clock) []*sync.Reconciler {
	out := make([]*sync.Reconciler, 0, len(financeResourceKinds))
	for _, resource := range financeResourceKinds {
		out = append(out, newFinanceReconciler(resource, financeClient, mirror, locker, logs, clock))
	}
	return out
}

// entityReconcilerBuilder returns a build func for sync.SyncAllEntity: it
// closes over everything except the live tx, which SyncAllEntity supplies
// at run time so all 16 root_type reconcilers' Upsert/MirrorDelete write
// against the same transaction via repository.TxReferenceRepository.
func entityReconcilerBuilder(posClient *pos.Client, locker sync.Locker, logs repository.SyncLogRepository, clock *common.Clock) func(tx pgx.Tx) []*sync.Reconciler {
	kinds := make([]string, 0, len(posEntityKinds)+len(entityOnlyKinds))
	kinds = append(kinds, posEntityKinds...)
	kinds = append(kinds, entityOnlyKinds...)

	return func(tx pgx.Tx) []*sync.Reconciler {
		refs := repository.NewTxReferenceRepository(tx)
		out := make([]*sync.Reconciler, 0, len(kinds))
		for _, kind := range kinds {
			out = append(out, newPosReconciler(kind, posClient, refs, locker, logs, clock))
		}
		return out
	}
}
