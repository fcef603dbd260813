// Package simcache memoizes similarity computations.
//
// Candidate generation over a full vocabulary is O(n²·m) similarity calls;
// for vocabularies of hundreds of items that is tens of thousands of text
// comparisons per run, most of them repeats across runs. The cache stores
// each computed score keyed by the unordered text pair plus method, so a
// warm cache turns repeat lookups into O(1) map hits.
//
// The cache is a pure performance optimization: disabling it must not
// change any returned value, only latency. Entries never expire within a
// session; Clear drops everything at once.
//
// Key symmetry: the key is built from (min(a,b), max(a,b), method), so
// swapping the two texts hits the same entry.
//
// Concurrency: reads never block each other (RWMutex read path). A miss
// computes outside the lock and stores last-write-wins; similarity is pure
// and deterministic per key, so two writers racing on the same key waste a
// computation but cannot disagree on the value.
//
// Usage:
//
//	cache := simcache.New()
//	score := cache.GetOrCompute("a", "b", "jaccard", computeFn)
//	stats := cache.Stats()
//	fmt.Printf("hit rate: %.1f%%\n", stats.HitRate)
package simcache

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"sync/atomic"
)

// Cache is a thread-safe memo table for similarity scores.
type Cache struct {
	mu      sync.RWMutex
	entries map[uint64]float64

	hits   uint64
	misses uint64
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[uint64]float64)}
}

// Key hashes an unordered text pair plus method into a cache key.
//
// The pair is canonicalized by string order before hashing, making the key
// symmetric in its two texts. FNV-1a is fast and adequate for a memo table.
func Key(a, b, method string) uint64 {
	if b < a {
		a, b = b, a
	}
	h := fnv.New64a()
	h.Write([]byte(a))
	h.Write([]byte{0})
	h.Write([]byte(b))
	h.Write([]byte{0})
	h.Write([]byte(method))
	return h.Sum64()
}

// Get returns the cached score for a pair, if present.
func (c *Cache) Get(a, b, method string) (float64, bool) {
	key := Key(a, b, method)

	c.mu.RLock()
	score, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		atomic.AddUint64(&c.hits, 1)
	} else {
		atomic.AddUint64(&c.misses, 1)
	}
	return score, ok
}

// Put stores a score for a pair. Last write wins.
func (c *Cache) Put(a, b, method string, score float64) {
	key := Key(a, b, method)

	c.mu.Lock()
	c.entries[key] = score
	c.mu.Unlock()
}

// GetOrCompute returns the cached score for the pair, computing and
// storing it on a miss.
//
// compute runs outside any lock; concurrent misses on the same key may
// both compute, and the later store wins. That is wasted work, not a
// correctness bug (see package doc).
func (c *Cache) GetOrCompute(a, b, method string, compute func(a, b string) float64) float64 {
	key := Key(a, b, method)

	c.mu.RLock()
	score, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		atomic.AddUint64(&c.hits, 1)
		return score
	}
	atomic.AddUint64(&c.misses, 1)

	score = compute(a, b)

	c.mu.Lock()
	c.entries[key] = score
	c.mu.Unlock()

	return score
}

// Clear drops all entries. Hit/miss counters are preserved; they describe
// the session, not the current contents.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[uint64]float64)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats holds cache observability counters.
type Stats struct {
	Entries int     `json:"entries"`  // Current number of cached scores
	Hits    uint64  `json:"hits"`     // Lookups answered from cache
	Misses  uint64  `json:"misses"`   // Lookups that required computation
	HitRate float64 `json:"hit_rate"` // Hit percentage (0-100)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()

	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Entries: entries,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

// snapshotFile is the on-disk warm-start format.
type snapshotFile struct {
	Version int                `json:"version"`
	Entries map[uint64]float64 `json:"entries"`
}

const snapshotVersion = 1

// SaveSnapshot writes the cache contents to a file for warm starts.
//
// The format is an implementation detail; nothing outside this package
// depends on it beyond round-tripping through LoadSnapshot.
func (c *Cache) SaveSnapshot(path string) error {
	c.mu.RLock()
	snap := snapshotFile{
		Version: snapshotVersion,
		Entries: make(map[uint64]float64, len(c.entries)),
	}
	for k, v := range c.entries {
		snap.Entries[k] = v
	}
	c.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode cache snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write cache snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot merges a previously saved snapshot into the cache.
//
// A missing or corrupt snapshot is a recoverable cold-start condition: the
// caller logs the returned error and proceeds with an empty cache. The
// cache is never left partially loaded on error.
func (c *Cache) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read cache snapshot: %w", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode cache snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("cache snapshot version %d not supported", snap.Version)
	}

	c.mu.Lock()
	for k, v := range snap.Entries {
		c.entries[k] = v
	}
	c.mu.Unlock()
	return nil
}
