package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/vostok-rest/backoffice/common"
	"github.com/vostok-rest/backoffice/db/repository"
)

// StoplistWindow is the coalescing window spec.md §4.7.5 requires: a burst
// of StopListUpdate events within this window collapses to a single flush,
// and each new event within an already-pending window extends it.
const StoplistWindow = 60 * time.Second

// Subscriber receives a diffed flush result to act on (edit pinned
// messages, etc).
type Subscriber interface {
	OnStoplistFlush(ctx context.Context, entered, left []repository.StoplistPair) error
}

// Debouncer coalesces StopListUpdate webhook bursts into one flush per
// window, diffs the resulting snapshot against ActiveStoplist, and
// notifies a Subscriber only with what actually changed.
type Debouncer struct {
	mu      sync.Mutex
	timer   *time.Timer
	pending bool

	window     time.Duration
	stoplist   repository.StoplistRepository
	fetch      func(ctx context.Context) ([]repository.StoplistPair, error)
	subscriber Subscriber
	clock      func() time.Time
}

// NewDebouncer builds a Debouncer. fetch retrieves the authoritative
// current snapshot from the cloud POS at flush time — the webhook payload
// itself is treated only as a trigger, not the source of truth, since a
// burst of events may arrive out of order.
func NewDebouncer(stoplist repository.StoplistRepository, fetch func(ctx context.Context) ([]repository.StoplistPair, error), subscriber Subscriber) *Debouncer {
	return &Debouncer{
		window:     StoplistWindow,
		stoplist:   stoplist,
		fetch:      fetch,
		subscriber: subscriber,
		clock:      time.Now,
	}
}

// Trigger schedules a flush StoplistWindow from now. If a flush is already
// pending, its timer is stopped and restarted, so each event within the
// window extends it and a burst collapses into one flush after its last
// event (per spec.md's "subsequent events within the window extend it").
func (d *Debouncer) Trigger(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = true
	d.timer = time.AfterFunc(d.window, func() {
		d.flush(ctx)
	})
}

// isPending reports whether a flush is currently scheduled — test helper.
func (d *Debouncer) isPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Debouncer) flush(ctx context.Context) {
	d.mu.Lock()
	d.pending = false
	d.mu.Unlock()

	current, err := d.fetch(ctx)
	if err != nil {
		common.Logger.WithFields(common.ErrorFields(err, "stoplist-flush")).Error("failed to fetch stop-list snapshot")
		return
	}

	previous, err := d.stoplist.Active(ctx)
	if err != nil {
		common.Logger.WithFields(common.ErrorFields(err, "stoplist-flush")).Error("failed to load active stoplist")
		return
	}

	entered, left := diff(previous, current)
	now := d.clock()

	for _, pair := range entered {
		if err := d.stoplist.Enter(ctx, pair, now); err != nil {
			common.Logger.WithFields(common.ErrorFields(err, pair.ProductID)).Error("failed to record stoplist entry")
		}
	}
	for _, pair := range left {
		if err := d.stoplist.Leave(ctx, pair, now); err != nil {
			common.Logger.WithFields(common.ErrorFields(err, pair.ProductID)).Error("failed to record stoplist exit")
		}
	}

	if len(entered) == 0 && len(left) == 0 {
		return
	}

	if d.subscriber != nil {
		if err := d.subscriber.OnStoplistFlush(ctx, entered, left); err != nil {
			common.Logger.WithFields(common.ErrorFields(err, "stoplist-flush")).Error("subscriber failed to handle stoplist flush")
		}
	}
}

func diff(previous, current []repository.StoplistPair) (entered, left []repository.StoplistPair) {
	prevSet := make(map[string]bool, len(previous))
	for _, p := range previous {
		prevSet[pairKey(p)] = true
	}
	currSet := make(map[string]bool, len(current))
	for _, p := range current {
		currSet[pairKey(p)] = true
	}

	for _, p := range current {
		if !prevSet[pairKey(p)] {
			entered = append(entered, p)
		}
	}
	for _, p := range previous {
		if !currSet[pairKey(p)] {
			left = append(left, p)
		}
	}
	return entered, left
}

func pairKey(p repository.StoplistPair) string {
	return p.ProductID + "|" + p.StoreID
}

// ContentHash computes a stable hash over a set of stoplist pairs, used to
// gate pinned-message edits: the same snapshot must produce the same hash
// regardless of fetch ordering, so two consecutive identical snapshots
// cause zero chat edits after the first.
func ContentHash(pairs []repository.StoplistPair) string {
	sorted := make([]repository.StoplistPair, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StoreID != sorted[j].StoreID {
			return sorted[i].StoreID < sorted[j].StoreID
		}
		return sorted[i].ProductID < sorted[j].ProductID
	})

	b, _ := json.Marshal(sorted)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
