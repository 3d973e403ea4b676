package pricecache

import (
	"math"
	"sync"
	"time"
)

// Snapshot is the latest known top-of-book for a single token.
type Snapshot struct {
	BestBid   float64
	BestAsk   float64
	UpdatedMs int64
}

// Cache holds the most recent best bid/ask per token ID.
//
// Updates may carry only one side; the missing side is carried forward from
// the previous snapshot so a partial book delta never erases known state.
// It is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	prices  map[string]Snapshot
	staleMs int64
	nowMs   func() int64
}

// New returns a cache that treats entries older than staleMs as unavailable.
func New(staleMs int64) *Cache {
	if staleMs <= 0 {
		staleMs = 5000
	}
	return &Cache{
		prices:  make(map[string]Snapshot),
		staleMs: staleMs,
		nowMs:   func() int64 { return time.Now().UnixMilli() },
	}
}

// Update records new top-of-book values for tokenID. A zero bid or ask means
// "unchanged" and keeps the prior value for that side.
func (c *Cache) Update(tokenID string, bestBid, bestAsk float64) {
	if tokenID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.prices[tokenID]
	next := Snapshot{BestBid: bestBid, BestAsk: bestAsk, UpdatedMs: c.nowMs()}
	if next.BestBid <= 0 {
		next.BestBid = prev.BestBid
	}
	if next.BestAsk <= 0 {
		next.BestAsk = prev.BestAsk
	}
	c.prices[tokenID] = next
}

// Get returns the snapshot for tokenID. ok is false when the token is
// unknown or the entry is older than the staleness bound.
func (c *Cache) Get(tokenID string) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.prices[tokenID]
	if !ok {
		return Snapshot{}, false
	}
	if c.nowMs()-snap.UpdatedMs > c.staleMs {
		return Snapshot{}, false
	}
	return snap, true
}

// BestBid returns the fresh best bid for tokenID, or ok=false.
func (c *Cache) BestBid(tokenID string) (float64, bool) {
	snap, ok := c.Get(tokenID)
	if !ok || snap.BestBid <= 0 {
		return 0, false
	}
	return snap.BestBid, true
}

// BestAsk returns the fresh best ask for tokenID, or ok=false.
func (c *Cache) BestAsk(tokenID string) (float64, bool) {
	snap, ok := c.Get(tokenID)
	if !ok || snap.BestAsk <= 0 {
		return 0, false
	}
	return snap.BestAsk, true
}

// AgeMs returns milliseconds since the last update, or ok=false when the
// token has never been seen.
func (c *Cache) AgeMs(tokenID string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.prices[tokenID]
	if !ok {
		return 0, false
	}
	return c.nowMs() - snap.UpdatedMs, true
}

// SpreadCents returns the bid/ask spread in cents. ok is false when either
// side is missing or the entry is stale.
func (c *Cache) SpreadCents(tokenID string) (float64, bool) {
	snap, ok := c.Get(tokenID)
	if !ok || snap.BestBid <= 0 || snap.BestAsk <= 0 {
		return 0, false
	}
	// Round away float artifacts so a spread sitting exactly on a whole
	// cent compares cleanly against the configured bound.
	spread := (snap.BestAsk - snap.BestBid) * 100
	return math.Round(spread*1e6) / 1e6, true
}

// SpreadAcceptable reports whether both sides are fresh and the spread is at
// most maxCents.
func (c *Cache) SpreadAcceptable(tokenID string, maxCents float64) bool {
	spread, ok := c.SpreadCents(tokenID)
	if !ok {
		return false
	}
	return spread <= maxCents
}
