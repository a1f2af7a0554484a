// Package flood provides a per-sender sliding-window gate so one user
// pasting links in a loop cannot monopolize the pipeline or the playlist.
package flood

import (
	"context"
	"sync"
	"time"
)

const (
	// window is the fixed sliding window for the per-sender limit.
	window = time.Minute
	// cleanupInterval is how often idle senders are dropped.
	cleanupInterval = 10 * time.Minute
	// idleTimeout is how long a sender may be quiet before its entry is
	// removed.
	idleTimeout = 10 * time.Minute
)

// Gate rate-limits message processing per channel:user pair.
type Gate struct {
	limitPerMinute int

	mutex   sync.Mutex
	senders map[string]*senderEntry
}

type senderEntry struct {
	timestamps []time.Time
	lastSeen   time.Time
}

func NewGate(limitPerMinute int) *Gate {
	return &Gate{
		limitPerMinute: limitPerMinute,
		senders:        make(map[string]*senderEntry),
	}
}

// Allow reports whether a message from user in channel should be
// processed, recording it when allowed. A non-positive limit disables the
// gate.
func (g *Gate) Allow(channelID, userID string) bool {
	if g.limitPerMinute <= 0 {
		return true
	}

	key := channelID + ":" + userID
	now := time.Now()

	g.mutex.Lock()
	defer g.mutex.Unlock()

	entry, ok := g.senders[key]
	if !ok {
		entry = &senderEntry{timestamps: make([]time.Time, 0, g.limitPerMinute+1)}
		g.senders[key] = entry
	}
	entry.lastSeen = now

	windowStart := now.Add(-window)
	kept := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	entry.timestamps = kept

	if len(entry.timestamps) >= g.limitPerMinute {
		return false
	}

	entry.timestamps = append(entry.timestamps, now)
	return true
}

// RunCleaner drops idle sender entries until ctx is cancelled.
func (g *Gate) RunCleaner(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.dropIdle()
		}
	}
}

func (g *Gate) dropIdle() {
	cutoff := time.Now().Add(-idleTimeout)

	g.mutex.Lock()
	defer g.mutex.Unlock()

	for key, entry := range g.senders {
		if entry.lastSeen.Before(cutoff) {
			delete(g.senders, key)
		}
	}
}
