package egg

import (
	"log"
	"sync"

	"github.com/hatchline/eggwatch/internal/store"
)

// Counter holds today's running count per type. Mutations are serialized
// through a single mutex; persistence runs on a dedicated flusher goroutine
// that always writes the latest in-memory total for a key, so per-key write
// order matches increment order and a failed write is simply superseded by
// the next flush. The in-memory value stays authoritative throughout; a crash
// loses only the increments still waiting on the next flush, which can be a
// whole coalesced burst if a write is slow.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int
	dirty  map[string]struct{}

	store *store.Store
	kick  chan struct{}
	done  chan struct{}
	idle  chan struct{}
}

func NewCounter(st *store.Store) *Counter {
	c := &Counter{
		counts: make(map[string]int),
		dirty:  make(map[string]struct{}),
		store:  st,
		kick:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		idle:   make(chan struct{}),
	}
	go c.flusher()
	return c
}

// Load replaces in-memory state with the persisted live counts. Called once
// at startup before ingestion begins.
func (c *Counter) Load() error {
	counts, err := c.store.LoadLiveCounts()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = counts
	return nil
}

// Ensure creates a zero entry for name if absent, without persisting.
func (c *Counter) Ensure(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.counts[name]; !ok {
		c.counts[name] = 0
	}
}

func (c *Counter) Get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

// GetAll returns a consistent point-in-time copy, never a live view.
func (c *Counter) GetAll() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make(map[string]int, len(c.counts))
	for name, count := range c.counts {
		snapshot[name] = count
	}
	return snapshot
}

func (c *Counter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, count := range c.counts {
		total += count
	}
	return total
}

// Increment adds delta (>= 1) to name and schedules persistence of the new
// total. Never blocks on storage.
func (c *Counter) Increment(name string, delta int) {
	if delta < 1 {
		return
	}
	c.mu.Lock()
	c.counts[name] += delta
	c.dirty[name] = struct{}{}
	c.mu.Unlock()
	c.wake()
}

// Reset zeroes the given types, or all types when none are given, and
// schedules persistence of each zeroed entry.
func (c *Counter) Reset(names ...string) {
	c.mu.Lock()
	if len(names) == 0 {
		for name := range c.counts {
			c.counts[name] = 0
			c.dirty[name] = struct{}{}
		}
	} else {
		for _, name := range names {
			if _, ok := c.counts[name]; ok {
				c.counts[name] = 0
				c.dirty[name] = struct{}{}
			}
		}
	}
	c.mu.Unlock()
	c.wake()
}

// SnapshotAndReset copies every count and zeroes it in a single lock
// acquisition, so no increment can slip between the copy and the reset. The
// rollover runs its remaining steps against the returned snapshot; an event
// ingested while those steps execute lands in the fresh counts.
func (c *Counter) SnapshotAndReset() map[string]int {
	c.mu.Lock()
	snapshot := make(map[string]int, len(c.counts))
	for name, count := range c.counts {
		snapshot[name] = count
		c.counts[name] = 0
		c.dirty[name] = struct{}{}
	}
	c.mu.Unlock()
	c.wake()
	return snapshot
}

// Remove drops a type's entry entirely (deregistration cascade). The store
// row is deleted by the registry cascade; dropping the in-memory entry here
// also stops any pending flush from resurrecting it.
func (c *Counter) Remove(name string) {
	c.mu.Lock()
	delete(c.counts, name)
	delete(c.dirty, name)
	c.mu.Unlock()
}

func (c *Counter) wake() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *Counter) flusher() {
	defer close(c.idle)
	for {
		select {
		case <-c.kick:
			c.flush()
		case <-c.done:
			c.flush()
			return
		}
	}
}

// flush writes the latest total for every dirty key. A failed write leaves
// the key dirty so the next mutation retries it; ingestion is never blocked
// and never sees a storage fault.
func (c *Counter) flush() {
	for {
		c.mu.Lock()
		if len(c.dirty) == 0 {
			c.mu.Unlock()
			return
		}
		batch := make(map[string]int, len(c.dirty))
		for name := range c.dirty {
			if count, ok := c.counts[name]; ok {
				batch[name] = count
			}
			delete(c.dirty, name)
		}
		c.mu.Unlock()

		for name, count := range batch {
			if err := c.store.SaveLiveCount(name, count); err != nil {
				log.Printf("[counter] persist %s=%d failed (will retry on next update): %v", name, count, err)
				c.mu.Lock()
				if _, ok := c.counts[name]; ok {
					c.dirty[name] = struct{}{}
				}
				c.mu.Unlock()
				return // back off until the next wake
			}
		}
	}
}

// Close flushes pending writes and stops the flusher.
func (c *Counter) Close() {
	close(c.done)
	<-c.idle
}
