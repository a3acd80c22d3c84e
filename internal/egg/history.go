package egg

import (
	"context"
	"fmt"
	"time"

	"github.com/hatchline/eggwatch/internal/store"
)

// Event is one replayed item from the event source: the extracted text
// surface plus the metadata needed for filtering.
type Event struct {
	Text       string
	Timestamp  time.Time
	Automation bool
}

// EventSource supplies historical replay of events over [since, before). A
// zero before means "up to now". Replay order is the source's choice; totals
// are order-independent.
type EventSource interface {
	Replay(ctx context.Context, since, before time.Time, fn func(Event) error) error
}

// Window is a query time range. AllTime windows are answered from rollups;
// everything else is a full replay of the event source.
type Window struct {
	AllTime bool
	Since   time.Time
	Before  time.Time // zero = now
}

// Aggregator answers windowed totals. It owns the persisted rollup rows and
// replays the event source for finite windows; it never touches the live
// counter state.
type Aggregator struct {
	store      *store.Store
	source     EventSource
	classifier *Classifier
	registry   *Registry
}

func NewAggregator(st *store.Store, source EventSource, classifier *Classifier, registry *Registry) *Aggregator {
	return &Aggregator{store: st, source: source, classifier: classifier, registry: registry}
}

// TypeAll is the filter sentinel meaning "every registered type".
const TypeAll = "all"

// CountWindow totals matches for typeFilter (a registered name or TypeAll)
// over the window. The result always carries one entry per selected type,
// zero-filled for types with no matches.
func (a *Aggregator) CountWindow(ctx context.Context, typeFilter string, w Window) (map[string]int, error) {
	if typeFilter != TypeAll {
		if _, ok := a.registry.Get(typeFilter); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeFilter)
		}
	}

	if w.AllTime {
		return a.countAllTime(typeFilter)
	}
	return a.countReplay(ctx, typeFilter, w)
}

func (a *Aggregator) countAllTime(typeFilter string) (map[string]int, error) {
	sums, err := a.store.SumRollups()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	totals := a.zeroTotals(typeFilter)
	for name, sum := range sums {
		if _, selected := totals[name]; selected {
			totals[name] = sum
		}
	}
	return totals, nil
}

// countReplay is a linear rescan of every event in the window. Correct
// because matches are deterministic given the same event text, O(events in
// window). Read-only, so cancellation is always safe.
func (a *Aggregator) countReplay(ctx context.Context, typeFilter string, w Window) (map[string]int, error) {
	if a.source == nil {
		return nil, ErrChannelUnavailable
	}

	totals := a.zeroTotals(typeFilter)
	snapshot := a.registry.Snapshot()

	err := a.source.Replay(ctx, w.Since, w.Before, func(ev Event) error {
		for _, t := range snapshot {
			if _, selected := totals[t.Name]; !selected {
				continue
			}
			totals[t.Name] += t.Rule.CountMatches(ev.Text)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	return totals, nil
}

func (a *Aggregator) zeroTotals(typeFilter string) map[string]int {
	totals := make(map[string]int)
	if typeFilter == TypeAll {
		for _, name := range a.registry.Names() {
			totals[name] = 0
		}
	} else {
		totals[typeFilter] = 0
	}
	return totals
}

// SnapshotAndRoll writes one rollup row per (date, name) pair in counts,
// overwriting existing rows for the same key. Repeating a rollover for the
// same day is therefore idempotent.
func (a *Aggregator) SnapshotAndRoll(date string, counts map[string]int) error {
	for name, count := range counts {
		if err := a.store.UpsertRollup(date, name, count); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	return nil
}

// Prune deletes rollup rows older than today minus retentionDays in the
// given local zone, then compacts storage.
func (a *Aggregator) Prune(retentionDays int, loc *time.Location) (int64, error) {
	cutoff := time.Now().In(loc).AddDate(0, 0, -retentionDays).Format(DateLayout)
	return a.store.PruneRollups(cutoff)
}
