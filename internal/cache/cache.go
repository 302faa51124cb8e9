package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mcwatch/internal/market"
)

// TokenSnapshot is the latest resolved state of one token.
type TokenSnapshot struct {
	MarketCap *float64      `json:"market_cap"`
	URL       string        `json:"url"`
	UpdatedAt time.Time     `json:"updated_at"`
	Source    market.Source `json:"source"`
	Dex       string        `json:"dex"`
	Chain     string        `json:"chain"`
	Quote     string        `json:"quote"`
	Consensus float64       `json:"consensus"`
	Delta     *float64      `json:"delta"`
	ImageURL  string        `json:"image_url"`
	Name      string        `json:"name"`
	Symbol    string        `json:"symbol"`
}

// DeltaFor computes |value-consensus| when both are known and non-zero.
func DeltaFor(value *float64, consensus float64) *float64 {
	if value == nil || *value == 0 || consensus == 0 {
		return nil
	}
	d := *value - consensus
	if d < 0 {
		d = -d
	}
	return &d
}

// Mirror receives every snapshot written to the cache.
type Mirror interface {
	Mirror(ctx context.Context, tokenID string, snap TokenSnapshot) error
}

// PriceCache maps token identifiers to their latest snapshot under a single mutex.
type PriceCache struct {
	mu      sync.Mutex
	entries map[string]TokenSnapshot
	mirror  Mirror
	logger  zerolog.Logger
}

// New builds an empty cache. mirror may be nil.
func New(mirror Mirror, logger zerolog.Logger) *PriceCache {
	return &PriceCache{
		entries: make(map[string]TokenSnapshot),
		mirror:  mirror,
		logger:  logger.With().Str("component", "price_cache").Logger(),
	}
}

// Put replaces the snapshot for tokenID.
func (c *PriceCache) Put(ctx context.Context, tokenID string, snap TokenSnapshot) {
	c.PutAll(ctx, map[string]TokenSnapshot{tokenID: snap})
}

// PutAll replaces every given snapshot in one critical section.
func (c *PriceCache) PutAll(ctx context.Context, snaps map[string]TokenSnapshot) {
	if len(snaps) == 0 {
		return
	}
	c.mu.Lock()
	for id, snap := range snaps {
		c.entries[id] = snap
	}
	c.mu.Unlock()

	if c.mirror == nil {
		return
	}
	for id, snap := range snaps {
		if err := c.mirror.Mirror(ctx, id, snap); err != nil {
			c.logger.Warn().Err(err).Str("token", id).Msg("snapshot mirror failed")
		}
	}
}

// Get returns a copy of the snapshot for tokenID.
func (c *PriceCache) Get(tokenID string) (TokenSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.entries[tokenID]
	return snap, ok
}

// Snapshot copies the entries for ids under the lock. Unknown ids are omitted.
func (c *PriceCache) Snapshot(ids []string) map[string]TokenSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]TokenSnapshot, len(ids))
	for _, id := range ids {
		if snap, ok := c.entries[id]; ok {
			out[id] = snap
		}
	}
	return out
}

// Values copies the current market-cap values for ids under the lock.
// Unknown tokens and tokens without a value map to nil.
func (c *PriceCache) Values(ids []string) map[string]*float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*float64, len(ids))
	for _, id := range ids {
		snap, ok := c.entries[id]
		if !ok || snap.MarketCap == nil {
			out[id] = nil
			continue
		}
		v := *snap.MarketCap
		out[id] = &v
	}
	return out
}

// Len reports the number of cached tokens.
func (c *PriceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
