package egg

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/hatchline/eggwatch/internal/store"
)

func TestCounterIncrementAndGet(t *testing.T) {
	c := NewCounter(newTestStore(t))
	defer c.Close()

	c.Increment("bee", 2)
	c.Increment("bee", 1)
	if got := c.Get("bee"); got != 3 {
		t.Errorf("Get(bee) = %d, want 3", got)
	}
	if got := c.Get("unknown"); got != 0 {
		t.Errorf("Get(unknown) = %d, want 0", got)
	}
	if got := c.Total(); got != 3 {
		t.Errorf("Total = %d, want 3", got)
	}

	c.Increment("bee", 0) // delta < 1 is a no-op
	if got := c.Get("bee"); got != 3 {
		t.Errorf("Get(bee) = %d after zero delta, want 3", got)
	}
}

func TestCounterGetAllIsSnapshot(t *testing.T) {
	c := NewCounter(newTestStore(t))
	defer c.Close()

	c.Increment("bee", 1)
	snapshot := c.GetAll()
	c.Increment("bee", 5)

	if snapshot["bee"] != 1 {
		t.Errorf("snapshot mutated: bee = %d, want 1", snapshot["bee"])
	}
}

func TestCounterPersistAcrossRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "eggs.db")
	st, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	c := NewCounter(st)
	c.Increment("paradise", 4)
	c.Increment("bee", 2)
	c.Reset("bee")
	c.Close() // flushes pending writes
	if err := st.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	st2, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st2.Close()

	c2 := NewCounter(st2)
	defer c2.Close()
	if err := c2.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := c2.Get("paradise"); got != 4 {
		t.Errorf("paradise = %d after restart, want 4", got)
	}
	if got := c2.Get("bee"); got != 0 {
		t.Errorf("bee = %d after restart, want 0", got)
	}
}

func TestCounterResetAll(t *testing.T) {
	c := NewCounter(newTestStore(t))
	defer c.Close()

	c.Increment("bee", 2)
	c.Increment("gem", 5)
	c.Reset()

	for name, count := range c.GetAll() {
		if count != 0 {
			t.Errorf("%s = %d after reset, want 0", name, count)
		}
	}
}

func TestCounterSnapshotAndReset(t *testing.T) {
	c := NewCounter(newTestStore(t))
	defer c.Close()

	c.Increment("bee", 2)
	c.Increment("gem", 5)

	snapshot := c.SnapshotAndReset()
	if snapshot["bee"] != 2 || snapshot["gem"] != 5 {
		t.Errorf("snapshot = %v, want bee:2 gem:5", snapshot)
	}
	if got := c.Total(); got != 0 {
		t.Errorf("Total = %d after SnapshotAndReset, want 0", got)
	}

	// The snapshot is a copy, not a view of the zeroed map.
	c.Increment("bee", 1)
	if snapshot["bee"] != 2 {
		t.Errorf("snapshot mutated: bee = %d, want 2", snapshot["bee"])
	}
}

func TestCounterRemove(t *testing.T) {
	c := NewCounter(newTestStore(t))
	defer c.Close()

	c.Increment("gem", 3)
	c.Remove("gem")
	if got := c.Get("gem"); got != 0 {
		t.Errorf("Get after Remove = %d, want 0", got)
	}
	if _, ok := c.GetAll()["gem"]; ok {
		t.Error("entry survived Remove")
	}
}

func TestCounterConcurrentIncrements(t *testing.T) {
	c := NewCounter(newTestStore(t))
	defer c.Close()

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Increment("bee", 1)
		}()
	}
	wg.Wait()

	if got := c.Get("bee"); got != n {
		t.Errorf("bee = %d after %d concurrent increments, want %d", got, n, n)
	}
}
