package egg

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hatchline/eggwatch/internal/bus"
	"github.com/hatchline/eggwatch/internal/config"
	"github.com/hatchline/eggwatch/internal/store"
)

// Tracker wires the registry, live counter, classifier, aggregator and
// rollover scheduler into the counting engine and exposes the operations the
// command surface invokes.
type Tracker struct {
	Registry   *Registry
	Counter    *Counter
	Classifier *Classifier
	Aggregator *Aggregator
	Scheduler  *Scheduler

	store          *store.Store
	loc            *time.Location
	automationOnly bool
	archive        bool
}

// Options configures a Tracker.
type Options struct {
	TZOffsetHours  float64
	RetentionDays  int
	AutomationOnly bool
	Source         EventSource // history replay source; nil disables replay queries
	Notifier       Notifier    // daily report sink; nil disables reports
	Archive        bool        // append counted events to the store's message archive
	Seed           []config.SeedType
}

// NewTracker loads persisted state and seeds any initial types that are not
// yet registered. The store must already be open; a load failure is fatal.
func NewTracker(st *store.Store, opts Options) (*Tracker, error) {
	loc := Zone(opts.TZOffsetHours)

	registry := NewRegistry(st)
	if err := registry.Load(); err != nil {
		return nil, err
	}

	counter := NewCounter(st)
	if err := counter.Load(); err != nil {
		counter.Close()
		return nil, err
	}

	for _, seed := range opts.Seed {
		if _, ok := registry.Get(seed.Name); ok {
			continue
		}
		if _, err := registry.Register(seed.Name, seed.Pattern, seed.Emoji); err != nil {
			counter.Close()
			return nil, fmt.Errorf("seed type %q: %w", seed.Name, err)
		}
	}
	for _, name := range registry.Names() {
		counter.Ensure(name)
	}

	classifier := NewClassifier(registry)
	aggregator := NewAggregator(st, opts.Source, classifier, registry)
	scheduler := NewScheduler(counter, aggregator, registry, opts.Notifier, loc, opts.RetentionDays)

	return &Tracker{
		Registry:       registry,
		Counter:        counter,
		Classifier:     classifier,
		Aggregator:     aggregator,
		Scheduler:      scheduler,
		store:          st,
		loc:            loc,
		automationOnly: opts.AutomationOnly,
		archive:        opts.Archive,
	}, nil
}

// Zone returns the fixed-offset location defining the tracker's local day.
func (t *Tracker) Zone() *time.Location {
	return t.loc
}

// Close flushes pending counter writes and stops the scheduler. The store is
// owned by the caller and closed separately.
func (t *Tracker) Close() {
	t.Scheduler.Stop()
	t.Counter.Close()
}

// Ingest runs the live counting path for one incoming event: discover new
// types first (so a message introducing an egg word is itself counted), then
// classify against the full registry and apply every nonzero count. Storage
// faults are logged, never surfaced to the event source.
func (t *Tracker) Ingest(msg *bus.InboundMessage) {
	// The deployment counts either only automation traffic (feed bots,
	// webhooks) or only human traffic, never both.
	if t.automationOnly != msg.Automation {
		return
	}

	text := ExtractText(msg)
	if text == "" {
		return
	}

	added := t.Registry.AutoDiscover(text)
	if len(added) > 0 {
		for _, name := range added {
			t.Counter.Ensure(name)
		}
		log.Printf("[tracker] auto-discovered egg types: %v", added)
	}

	counts := t.Classifier.ClassifyAll(text)
	for _, name := range added {
		counts[name] += DiscoveryMentions(text, name)
	}
	for name, count := range counts {
		if count > 0 {
			t.Counter.Increment(name, count)
		}
	}

	if t.archive {
		err := t.store.AppendMessage(store.ArchivedMessage{
			Channel:    msg.Channel,
			SenderID:   msg.SenderID,
			ChatID:     msg.ChatID,
			Timestamp:  msg.Timestamp,
			Text:       text,
			Automation: msg.Automation,
		})
		if err != nil {
			log.Printf("[tracker] archive message failed: %v", err)
		}
	}
}

// QueryResult is a windowed total broken down per type.
type QueryResult struct {
	PerType map[string]int
	Total   int
}

// QueryToday answers from the live counter without touching the event source.
func (t *Tracker) QueryToday(typeFilter string) (*QueryResult, error) {
	if typeFilter == TypeAll {
		return newQueryResult(t.Counter.GetAll()), nil
	}
	if _, ok := t.Registry.Get(typeFilter); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeFilter)
	}
	return newQueryResult(map[string]int{typeFilter: t.Counter.Get(typeFilter)}), nil
}

// QueryWindow answers an arbitrary window via the aggregator.
func (t *Tracker) QueryWindow(ctx context.Context, typeFilter string, w Window) (*QueryResult, error) {
	perType, err := t.Aggregator.CountWindow(ctx, typeFilter, w)
	if err != nil {
		return nil, err
	}
	return newQueryResult(perType), nil
}

// Trend compares today's live total against yesterday's replayed total.
func (t *Tracker) Trend(ctx context.Context, now time.Time) (today, yesterday int, err error) {
	todayStart := LocalMidnight(now, t.loc)
	yesterdayStart := todayStart.AddDate(0, 0, -1)

	res, err := t.QueryWindow(ctx, TypeAll, Window{Since: yesterdayStart, Before: todayStart})
	if err != nil {
		return 0, 0, err
	}
	return t.Counter.Total(), res.Total, nil
}

// RegisterType adds a type explicitly and starts its live count at zero.
func (t *Tracker) RegisterType(name, pattern, emoji string) (*EggType, error) {
	typ, err := t.Registry.Register(name, pattern, emoji)
	if err != nil {
		return nil, err
	}
	t.Counter.Ensure(name)
	t.Counter.Reset(name)
	return typ, nil
}

// DeregisterType removes a type and cascades to its live count and rollups.
func (t *Tracker) DeregisterType(name string) error {
	if err := t.Registry.Deregister(name); err != nil {
		return err
	}
	t.Counter.Remove(name)
	return nil
}

func (t *Tracker) SetEmoji(name, emoji string) error {
	return t.Registry.SetEmoji(name, emoji)
}

// ResetCounts zeroes one type, or every type when name is empty.
func (t *Tracker) ResetCounts(name string) error {
	if name == "" {
		t.Counter.Reset()
		return nil
	}
	if _, ok := t.Registry.Get(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	t.Counter.Reset(name)
	return nil
}

func newQueryResult(perType map[string]int) *QueryResult {
	total := 0
	for _, count := range perType {
		total += count
	}
	return &QueryResult{PerType: perType, Total: total}
}
