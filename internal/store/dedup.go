// Package store provides short-TTL deduplication storage for processed
// track IDs.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DedupCache records recently processed track IDs. Entries expire after a
// fixed TTL; lookups and inserts are a single atomic step so concurrent
// callers racing on one ID get exactly one "first seen". A Bloom filter
// fronts the map for cheap negative lookups, and an LRU bounds memory by
// evicting the oldest IDs past capacity.
//
// The cache is empty at process start; live playlist membership remains
// the authoritative duplicate guard.
type DedupCache struct {
	seen                   map[string]time.Time
	bloom                  *bloom.BloomFilter
	lru                    *lru.Cache[string, struct{}]
	mutex                  sync.Mutex
	ttl                    time.Duration
	maxTracks              int
	bloomFalsePositiveRate float64
	now                    func() time.Time
}

// NewDedupCache creates a cache with the given TTL, capacity and Bloom
// false positive rate.
func NewDedupCache(ttl time.Duration, maxTracks int, bloomFalsePositiveRate float64) *DedupCache {
	if maxTracks <= 0 {
		panic("maxTracks must be positive")
	}
	lruCache, _ := lru.New[string, struct{}](maxTracks)

	return &DedupCache{
		seen:                   make(map[string]time.Time),
		bloom:                  bloom.NewWithEstimates(uint(maxTracks), bloomFalsePositiveRate),
		lru:                    lruCache,
		ttl:                    ttl,
		maxTracks:              maxTracks,
		bloomFalsePositiveRate: bloomFalsePositiveRate,
		now:                    time.Now,
	}
}

// CheckAndMark reports whether trackID is being seen for the first time
// within the TTL window, marking it as seen either way. Expired entries
// count as absent and are refreshed.
func (dc *DedupCache) CheckAndMark(trackID string) bool {
	now := dc.now()

	dc.mutex.Lock()
	defer dc.mutex.Unlock()

	if dc.bloom.TestString(trackID) {
		if insertedAt, ok := dc.seen[trackID]; ok && now.Sub(insertedAt) < dc.ttl {
			return false
		}
	}

	dc.insert(trackID, now)
	return true
}

// Has reports whether trackID is present and unexpired, without marking.
func (dc *DedupCache) Has(trackID string) bool {
	now := dc.now()

	dc.mutex.Lock()
	defer dc.mutex.Unlock()

	if !dc.bloom.TestString(trackID) {
		return false
	}

	insertedAt, ok := dc.seen[trackID]
	return ok && now.Sub(insertedAt) < dc.ttl
}

// Size returns the number of entries currently stored, expired or not.
func (dc *DedupCache) Size() int {
	dc.mutex.Lock()
	defer dc.mutex.Unlock()
	return len(dc.seen)
}

// Sweep removes expired entries. The Bloom filter does not support
// removal; stale bits only cost a map lookup on the next check.
func (dc *DedupCache) Sweep() {
	now := dc.now()

	dc.mutex.Lock()
	defer dc.mutex.Unlock()

	for trackID, insertedAt := range dc.seen {
		if now.Sub(insertedAt) >= dc.ttl {
			delete(dc.seen, trackID)
			dc.lru.Remove(trackID)
		}
	}
}

// RunSweeper sweeps at the given interval until ctx is cancelled. Meant to
// run as a background task.
func (dc *DedupCache) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dc.Sweep()
		}
	}
}

func (dc *DedupCache) insert(trackID string, now time.Time) {
	// Evict before adding: once the LRU is full it drops its own oldest
	// key on Add, and the map would fall out of sync with it.
	if _, exists := dc.seen[trackID]; !exists {
		for len(dc.seen) >= dc.maxTracks {
			oldestKey, _, ok := dc.lru.GetOldest()
			if !ok {
				break
			}
			dc.lru.Remove(oldestKey)
			delete(dc.seen, oldestKey)
		}
	}

	dc.seen[trackID] = now
	dc.bloom.AddString(trackID)
	dc.lru.Add(trackID, struct{}{})
}
