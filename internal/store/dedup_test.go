package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCheckAndMarkFirstSighting(t *testing.T) {
	cache := NewDedupCache(time.Hour, 100, 0.001)

	if !cache.CheckAndMark("track-1") {
		t.Error("first sighting should return true")
	}
	if cache.CheckAndMark("track-1") {
		t.Error("second sighting within TTL should return false")
	}
	if !cache.CheckAndMark("track-2") {
		t.Error("different track should return true")
	}
}

func TestCheckAndMarkTTLExpiry(t *testing.T) {
	cache := NewDedupCache(time.Hour, 100, 0.001)

	current := time.Now()
	cache.now = func() time.Time { return current }

	if !cache.CheckAndMark("track-1") {
		t.Fatal("first sighting should return true")
	}

	current = current.Add(59 * time.Minute)
	if cache.CheckAndMark("track-1") {
		t.Error("sighting before expiry should return false")
	}

	current = current.Add(2 * time.Minute)
	if !cache.CheckAndMark("track-1") {
		t.Error("sighting after expiry should return true again")
	}

	// The expired entry was refreshed, so it dedupes again.
	if cache.CheckAndMark("track-1") {
		t.Error("refreshed entry should dedupe")
	}
}

func TestCheckAndMarkConcurrent(t *testing.T) {
	cache := NewDedupCache(time.Hour, 100, 0.001)

	const goroutines = 50
	var wg sync.WaitGroup
	var winners atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cache.CheckAndMark("contested-track") {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Errorf("expected exactly 1 first sighting, got %d", got)
	}
}

func TestHasDoesNotMark(t *testing.T) {
	cache := NewDedupCache(time.Hour, 100, 0.001)

	if cache.Has("track-1") {
		t.Error("Has on empty cache should be false")
	}
	if !cache.CheckAndMark("track-1") {
		t.Fatal("first sighting should return true")
	}
	if !cache.Has("track-1") {
		t.Error("Has should see the marked track")
	}
	if cache.Has("track-2") {
		t.Error("Has should not see an unmarked track")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	cache := NewDedupCache(time.Hour, 100, 0.001)

	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.CheckAndMark("old-track")
	current = current.Add(30 * time.Minute)
	cache.CheckAndMark("new-track")

	current = current.Add(45 * time.Minute)
	cache.Sweep()

	if got := cache.Size(); got != 1 {
		t.Errorf("expected 1 entry after sweep, got %d", got)
	}
	if cache.Has("old-track") {
		t.Error("expired track should be gone")
	}
	if !cache.Has("new-track") {
		t.Error("unexpired track should survive the sweep")
	}
}

func TestCapacityEviction(t *testing.T) {
	cache := NewDedupCache(time.Hour, 10, 0.001)

	for i := 0; i < 15; i++ {
		cache.CheckAndMark(fmt.Sprintf("track-%02d", i))
	}

	if got := cache.Size(); got != 10 {
		t.Errorf("expected size capped at 10, got %d", got)
	}
	if cache.Has("track-00") {
		t.Error("oldest track should have been evicted")
	}
	if !cache.Has("track-14") {
		t.Error("newest track should still be present")
	}
}

func TestSizeCountsEntries(t *testing.T) {
	cache := NewDedupCache(time.Hour, 100, 0.001)

	if got := cache.Size(); got != 0 {
		t.Errorf("expected empty cache, got %d", got)
	}

	cache.CheckAndMark("a")
	cache.CheckAndMark("b")
	cache.CheckAndMark("a")

	if got := cache.Size(); got != 2 {
		t.Errorf("expected 2 entries, got %d", got)
	}
}
