package cache

import (
	"testing"
	"time"

	"github.com/libraz/mygramdb/internal/storage"
)

func TestQueryCacheInsertAndLookup(t *testing.T) {
	c, err := New(Config{Enabled: true, MaxMemoryBytes: 1 << 20, MinQueryCostMs: 0})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Stop()

	key := HashKey("SEARCH t tokyo")
	ids := []storage.DocId{1, 2, 3}

	if err := c.Insert(key, "t", ids, 5.0); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	res, miss, err := c.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if miss != MissNone {
		t.Fatalf("Lookup() miss = %v, want MissNone", miss)
	}
	if len(res.Ids) != len(ids) {
		t.Fatalf("Lookup() returned %d ids, want %d", len(res.Ids), len(ids))
	}
	for i, id := range res.Ids {
		if id != ids[i] {
			t.Errorf("Lookup().Ids[%d] = %v, want %v", i, id, ids[i])
		}
	}
}

func TestQueryCacheLookupMiss(t *testing.T) {
	c, err := New(Config{Enabled: true, MaxMemoryBytes: 1 << 20})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Stop()

	_, miss, err := c.Lookup(HashKey("SEARCH t nothing"))
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if miss != MissNotFound {
		t.Errorf("Lookup() miss = %v, want MissNotFound", miss)
	}
}

func TestQueryCacheMinQueryCostGate(t *testing.T) {
	c, err := New(Config{Enabled: true, MaxMemoryBytes: 1 << 20, MinQueryCostMs: 50})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Stop()

	key := HashKey("SEARCH t cheap")
	if err := c.Insert(key, "t", []storage.DocId{1}, 1.0); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if _, miss, _ := c.Lookup(key); miss != MissNotFound {
		t.Errorf("a below-threshold query was admitted into the cache")
	}
}

func TestQueryCacheInvalidateTable(t *testing.T) {
	c, err := New(Config{Enabled: true, MaxMemoryBytes: 1 << 20})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Stop()

	key := HashKey("SEARCH t tokyo")
	if err := c.Insert(key, "t", []storage.DocId{1}, 5.0); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	c.InvalidateTable("t")

	if _, miss, _ := c.Lookup(key); miss != MissInvalidated {
		t.Errorf("Lookup() miss after InvalidateTable = %v, want MissInvalidated", miss)
	}
}

func TestQueryCacheClearTable(t *testing.T) {
	c, err := New(Config{Enabled: true, MaxMemoryBytes: 1 << 20})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Stop()

	key := HashKey("SEARCH t tokyo")
	c.Insert(key, "t", []storage.DocId{1}, 5.0)
	c.ClearTable("t")

	stats := c.Stats()
	if stats.CurrentEntries != 0 {
		t.Errorf("Stats().CurrentEntries after ClearTable = %d, want 0", stats.CurrentEntries)
	}
}

func TestQueryCacheTTLExpiry(t *testing.T) {
	c, err := New(Config{Enabled: true, MaxMemoryBytes: 1 << 20, TTLSeconds: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Stop()

	// expired() compares against TTLSeconds converted to a time.Duration; an
	// already-elapsed entry is simulated by back-dating createdAt 2 seconds,
	// past the 1-second TTL, so this assertion doesn't depend on wall-clock
	// sleeps in CI.
	if !c.expired(&entry{createdAt: time.Now().Add(-2 * time.Second)}) {
		t.Errorf("expired() = false for an entry older than the TTL")
	}
	if c.expired(&entry{createdAt: time.Now()}) {
		t.Errorf("expired() = true for a freshly created entry")
	}
}

func TestQueryCacheEnableDisable(t *testing.T) {
	c, err := New(Config{Enabled: false, MaxMemoryBytes: 1 << 20})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Stop()

	if c.IsEnabled() {
		t.Fatalf("IsEnabled() = true for a cache constructed disabled")
	}
	if err := c.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if !c.IsEnabled() {
		t.Errorf("IsEnabled() = false after Enable()")
	}
	c.Disable()
	if c.IsEnabled() {
		t.Errorf("IsEnabled() = true after Disable()")
	}
}

func TestQueryCacheEnableRefusedAtZeroCapacity(t *testing.T) {
	c, err := New(Config{Enabled: false, MaxMemoryBytes: 0})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Stop()

	if err := c.Enable(); err == nil {
		t.Errorf("Enable() on a zero-capacity cache returned nil error")
	}
}

func TestQueryCacheEvictsUnderMemoryPressure(t *testing.T) {
	// Each entry is ~96 bytes overhead plus a handful of compressed bytes;
	// a small budget forces eviction well before many entries are inserted.
	c, err := New(Config{Enabled: true, MaxMemoryBytes: 300})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Stop()

	for i := 0; i < 10; i++ {
		key := HashKey(string(rune('a' + i)))
		c.Insert(key, "t", []storage.DocId{storage.DocId(i)}, 1.0)
	}

	stats := c.Stats()
	if stats.CurrentMemoryBytes > 300 {
		t.Errorf("Stats().CurrentMemoryBytes = %d, want <= 300", stats.CurrentMemoryBytes)
	}
	if stats.Evictions == 0 {
		t.Errorf("Stats().Evictions = 0, want at least one eviction under memory pressure")
	}
}
