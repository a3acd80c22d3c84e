package egg

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSource struct {
	events []Event
	err    error
}

func (f *fakeSource) Replay(ctx context.Context, since, before time.Time, fn func(Event) error) error {
	if f.err != nil {
		return f.err
	}
	if before.IsZero() {
		before = time.Now()
	}
	for _, ev := range f.events {
		if ev.Timestamp.Before(since) || !ev.Timestamp.Before(before) {
			continue
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

func newTestAggregator(t *testing.T, source EventSource) (*Aggregator, *Registry) {
	t.Helper()
	st := newTestStore(t)
	r := NewRegistry(st)
	for _, seed := range []struct{ name, pattern string }{
		{"bee", `(?i)\bbee\b`},
		{"paradise", `(?i)\bparadise\b`},
		{"gem", `(?i)\bgem\b`},
	} {
		if _, err := r.Register(seed.name, seed.pattern, ""); err != nil {
			t.Fatalf("Register(%s) error: %v", seed.name, err)
		}
	}
	return NewAggregator(st, source, NewClassifier(r), r), r
}

func TestCountWindowAllTime(t *testing.T) {
	a, _ := newTestAggregator(t, nil)

	for _, row := range []struct {
		date  string
		name  string
		count int
	}{
		{"2026-08-28", "bee", 3},
		{"2026-08-29", "bee", 2},
		{"2026-08-29", "paradise", 1},
	} {
		if err := a.SnapshotAndRoll(row.date, map[string]int{row.name: row.count}); err != nil {
			t.Fatalf("SnapshotAndRoll error: %v", err)
		}
	}

	totals, err := a.CountWindow(context.Background(), TypeAll, Window{AllTime: true})
	if err != nil {
		t.Fatalf("CountWindow error: %v", err)
	}
	if totals["bee"] != 5 {
		t.Errorf("bee = %d, want 5", totals["bee"])
	}
	if totals["paradise"] != 1 {
		t.Errorf("paradise = %d, want 1", totals["paradise"])
	}
	if totals["gem"] != 0 {
		t.Errorf("gem = %d, want zero-filled 0", totals["gem"])
	}

	// Per-type sums must agree with the combined query.
	sum := 0
	for name := range totals {
		single, err := a.CountWindow(context.Background(), name, Window{AllTime: true})
		if err != nil {
			t.Fatalf("CountWindow(%s) error: %v", name, err)
		}
		sum += single[name]
	}
	combined := 0
	for _, v := range totals {
		combined += v
	}
	if sum != combined {
		t.Errorf("per-type sum %d != combined %d", sum, combined)
	}
}

func TestCountWindowReplay(t *testing.T) {
	now := time.Now()
	source := &fakeSource{events: []Event{
		{Text: "bee egg bee egg", Timestamp: now.Add(-2 * time.Hour)},
		{Text: "found a paradise egg!", Timestamp: now.Add(-1 * time.Hour)},
		{Text: "bee again", Timestamp: now.Add(-30 * time.Hour)}, // outside window
	}}
	a, _ := newTestAggregator(t, source)

	totals, err := a.CountWindow(context.Background(), TypeAll, Window{Since: now.Add(-24 * time.Hour)})
	if err != nil {
		t.Fatalf("CountWindow error: %v", err)
	}
	if totals["bee"] != 2 {
		t.Errorf("bee = %d, want 2", totals["bee"])
	}
	if totals["paradise"] != 1 {
		t.Errorf("paradise = %d, want 1", totals["paradise"])
	}
	if totals["gem"] != 0 {
		t.Errorf("gem = %d, want 0", totals["gem"])
	}
}

func TestCountWindowSingleType(t *testing.T) {
	now := time.Now()
	source := &fakeSource{events: []Event{
		{Text: "bee and paradise", Timestamp: now.Add(-time.Hour)},
	}}
	a, _ := newTestAggregator(t, source)

	totals, err := a.CountWindow(context.Background(), "bee", Window{Since: now.Add(-24 * time.Hour)})
	if err != nil {
		t.Fatalf("CountWindow error: %v", err)
	}
	if len(totals) != 1 || totals["bee"] != 1 {
		t.Errorf("totals = %v, want map[bee:1]", totals)
	}
}

func TestCountWindowUnknownType(t *testing.T) {
	a, _ := newTestAggregator(t, &fakeSource{})
	_, err := a.CountWindow(context.Background(), "nope", Window{AllTime: true})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("err = %v, want ErrUnknownType", err)
	}
}

func TestCountWindowNoSource(t *testing.T) {
	a, _ := newTestAggregator(t, nil)
	_, err := a.CountWindow(context.Background(), TypeAll, Window{Since: time.Now().Add(-time.Hour)})
	if !errors.Is(err, ErrChannelUnavailable) {
		t.Errorf("err = %v, want ErrChannelUnavailable", err)
	}
}

func TestCountWindowSourceError(t *testing.T) {
	a, _ := newTestAggregator(t, &fakeSource{err: errors.New("connection reset")})
	_, err := a.CountWindow(context.Background(), TypeAll, Window{Since: time.Now().Add(-time.Hour)})
	if !errors.Is(err, ErrChannelUnavailable) {
		t.Errorf("err = %v, want ErrChannelUnavailable", err)
	}
}

func TestSnapshotAndRollIdempotent(t *testing.T) {
	a, _ := newTestAggregator(t, nil)

	counts := map[string]int{"bee": 4, "paradise": 0}
	if err := a.SnapshotAndRoll("2026-08-31", counts); err != nil {
		t.Fatalf("SnapshotAndRoll error: %v", err)
	}
	if err := a.SnapshotAndRoll("2026-08-31", counts); err != nil {
		t.Fatalf("repeated SnapshotAndRoll error: %v", err)
	}

	totals, err := a.CountWindow(context.Background(), TypeAll, Window{AllTime: true})
	if err != nil {
		t.Fatalf("CountWindow error: %v", err)
	}
	if totals["bee"] != 4 {
		t.Errorf("bee = %d after double rollover, want 4", totals["bee"])
	}
}

func TestPruneRetention(t *testing.T) {
	a, _ := newTestAggregator(t, nil)
	loc := Zone(0)
	today := time.Now().In(loc)

	old := today.AddDate(0, 0, -15).Format(DateLayout)
	fresh := today.AddDate(0, 0, -13).Format(DateLayout)
	if err := a.SnapshotAndRoll(old, map[string]int{"bee": 1}); err != nil {
		t.Fatal(err)
	}
	if err := a.SnapshotAndRoll(fresh, map[string]int{"paradise": 2}); err != nil {
		t.Fatal(err)
	}

	deleted, err := a.Prune(14, loc)
	if err != nil {
		t.Fatalf("Prune error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	totals, err := a.CountWindow(context.Background(), TypeAll, Window{AllTime: true})
	if err != nil {
		t.Fatal(err)
	}
	if totals["bee"] != 0 {
		t.Error("15-day-old rollup must be pruned")
	}
	if totals["paradise"] != 2 {
		t.Error("13-day-old rollup must remain")
	}
}
