package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"mcwatch/internal/cache"
	"mcwatch/internal/consensus"
	"mcwatch/internal/fetcher"
	"mcwatch/internal/venue"
)

var (
	// ErrNoPairs means the provider returned nothing for the token.
	ErrNoPairs = errors.New("no pairs found")
	// ErrNoValidPair means no pair survived selection with a usable value.
	ErrNoValidPair = errors.New("no valid pairs on allowed venues")
	// ErrNoVenues means no pool sits on an allow-listed venue.
	ErrNoVenues = errors.New("no eligible pools on supported venues")
)

// Quoter answers on-demand token lookups outside the watch loop.
type Quoter struct {
	fetcher    fetcher.PairFetcher
	engine     *consensus.Engine
	aggregator *venue.Aggregator
	cache      *cache.PriceCache
	logger     zerolog.Logger
	now        func() time.Time
}

// NewQuoter constructs a Quoter. c may be nil when results should not be cached.
func NewQuoter(f fetcher.PairFetcher, engine *consensus.Engine, aggregator *venue.Aggregator, c *cache.PriceCache, logger zerolog.Logger) *Quoter {
	return &Quoter{
		fetcher:    f,
		engine:     engine,
		aggregator: aggregator,
		cache:      c,
		logger:     logger.With().Str("component", "quoter").Logger(),
		now:        time.Now,
	}
}

// Quote resolves the current snapshot for tokenID and writes it to the cache.
func (q *Quoter) Quote(ctx context.Context, tokenID string) (cache.TokenSnapshot, error) {
	pairs, ok := q.fetcher.Fetch(ctx, tokenID)
	if !ok || len(pairs) == 0 {
		return cache.TokenSnapshot{}, ErrNoPairs
	}
	if res := q.engine.Consensus(q.engine.SelectPairs(pairs, tokenID), tokenID); res.Best == nil {
		return cache.TokenSnapshot{}, ErrNoValidPair
	}

	snap := q.engine.Snapshot(tokenID, pairs, q.now().UTC())
	if q.cache != nil {
		q.cache.Put(ctx, tokenID, snap)
	}
	q.logger.Debug().Str("token", tokenID).Str("source", string(snap.Source)).Msg("quote resolved")
	return snap, nil
}

// Venues ranks the supported liquidity venues for tokenID.
func (q *Quoter) Venues(ctx context.Context, tokenID string) ([]venue.Ranked, error) {
	pairs, ok := q.fetcher.Fetch(ctx, tokenID)
	if !ok || len(pairs) == 0 {
		return nil, ErrNoPairs
	}
	agg := q.aggregator.Aggregate(q.engine.SelectPairs(pairs, tokenID), tokenID)
	if len(agg) == 0 {
		return nil, ErrNoVenues
	}
	return venue.Rank(agg), nil
}
