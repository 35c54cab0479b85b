package sync

import (
	"context"
	"fmt"
	stdsync "sync"

	"github.com/jackc/pgx/v5"
)

// FanOut runs reconcilers with at most maxConcurrent running at once,
// collecting every error instead of aborting the batch on the first one —
// golang.org/x/sync/errgroup would cancel every sibling task as soon as one
// fails, which would hide a slow/failed entity's siblings' results. A plain
// WaitGroup and a mutex-guarded error slice give per-entity error isolation
// instead.
func FanOut(ctx context.Context, reconcilers []*Reconciler, maxConcurrent int) []error {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	var wg stdsync.WaitGroup
	var mu stdsync.Mutex
	var errs []error
	sem := make(chan struct{}, maxConcurrent)

	for _, r := range reconcilers {
		r := r
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if err := r.Run(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", r.Name, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return errs
}

// SyncAllPos runs the 8 POS reference/balance reconcilers concurrently.
func SyncAllPos(ctx context.Context, reconcilers []*Reconciler) []error {
	return FanOut(ctx, reconcilers, 8)
}

// SyncAllFinance runs the 13 finance reference reconcilers concurrently.
func SyncAllFinance(ctx context.Context, reconcilers []*Reconciler) []error {
	return FanOut(ctx, reconcilers, 13)
}

// EntityTxRunner runs fn inside a single database transaction shared by all
// 16 root_type reconcile slices, so SyncAllEntity commits (or rolls back)
// as one unit rather than leaving some root types updated and others not.
// Matches db.PostgresDB.RunInTx's signature directly; the reconcilers'
// Upsert/MirrorDelete closures must operate against that same tx rather
// than opening their own, which SyncAllEntity's build function (cli's
// entityReconcilerBuilder) arranges.
type EntityTxRunner interface {
	RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// SyncAllEntity runs the 16 root_type entity reconcilers sequentially
// inside one transaction (via txRunner), so a failure partway through rolls
// back every root_type's writes for this pass rather than leaving a mixed
// mirror state. Try-lock and SyncLog bookkeeping still happen per
// reconciler as usual; only the persistence side shares the one tx. build
// receives the live tx and must return reconcilers whose Upsert/
// MirrorDelete closures write against it directly (not open their own),
// which is why reconcilers are built here rather than passed in already
// constructed.
func SyncAllEntity(ctx context.Context, txRunner EntityTxRunner, build func(tx pgx.Tx) []*Reconciler) error {
	return txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		for _, r := range build(tx) {
			if err := r.Run(ctx); err != nil {
				return fmt.Errorf("%s: %w", r.Name, err)
			}
		}
		return nil
	})
}
