package cli

import (
	"context"

	"github.com/vostok-rest/backoffice/db/repository"
)

// appState implements api.StateProvider: a snapshot of each mirror-sync
// kind's last run plus the current stop-list size, enough for an operator
// dashboard to see at a glance whether sync is current.
type appState struct {
	logs     repository.SyncLogRepository
	stoplist repository.StoplistRepository
}

func newAppState(logs repository.SyncLogRepository, stoplist repository.StoplistRepository) *appState {
	return &appState{logs: logs, stoplist: stoplist}
}

// State reports the last sync run for every POS/entity-only/finance kind
// this process reconciles, plus the current stop-list size. A kind that
// has never run is simply omitted rather than reported as an error.
func (s *appState) State(ctx context.Context) (map[string]interface{}, error) {
	runs := make(map[string]interface{})

	allKinds := make([]string, 0, len(posEntityKinds)+len(entityOnlyKinds)+len(financeResourceKinds))
	allKinds = append(allKinds, posEntityKinds...)
	allKinds = append(allKinds, entityOnlyKinds...)
	for _, resource := range financeResourceKinds {
		allKinds = append(allKinds, "finance_"+resource)
	}

	for _, kind := range allKinds {
		run, err := s.logs.LastRun(ctx, kind)
		if err != nil || run == nil {
			continue
		}
		runs[kind] = run
	}

	snapshot := map[string]interface{}{"sync_runs": runs}

	active, err := s.stoplist.Active(ctx)
	if err == nil {
		snapshot["active_stoplist_size"] = len(active)
	}

	return snapshot, nil
}
