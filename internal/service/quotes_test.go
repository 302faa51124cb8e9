package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"mcwatch/internal/cache"
	"mcwatch/internal/consensus"
	"mcwatch/internal/market"
	"mcwatch/internal/venue"
)

func TestQuoterWritesCache(t *testing.T) {
	feed := newFeedFetcher()
	feed.script(mint, f(2_500_000))
	c := cache.New(nil, nopLogger())
	q := NewQuoter(feed, consensus.New(consensus.Options{PreferFDV: true}), venue.NewAggregator(nil, nil), c, nopLogger())

	snap, err := q.Quote(context.Background(), mint)
	require.NoError(t, err)
	require.NotNil(t, snap.MarketCap)
	require.InDelta(t, 2_500_000, *snap.MarketCap, 1e-6)

	cached, ok := c.Get(mint)
	require.True(t, ok)
	require.Equal(t, snap.URL, cached.URL)
}

type staticFetcher struct {
	pairs []market.Pair
}

func (s staticFetcher) Fetch(context.Context, string) ([]market.Pair, bool) {
	return s.pairs, len(s.pairs) > 0
}

func TestQuoterMisses(t *testing.T) {
	engine := consensus.New(consensus.Options{})
	agg := venue.NewAggregator(nil, nil)

	_, err := NewQuoter(staticFetcher{}, engine, agg, nil, nopLogger()).Quote(context.Background(), mint)
	require.True(t, errors.Is(err, ErrNoPairs))

	foreign := market.Pair{ChainID: "solana", DexID: "raydium", BaseToken: market.Token{Address: refKey}, MarketCap: market.NewNumber(10)}
	q := NewQuoter(staticFetcher{pairs: []market.Pair{foreign}}, engine, agg, nil, nopLogger())
	_, err = q.Quote(context.Background(), mint)
	require.True(t, errors.Is(err, ErrNoValidPair))

	_, err = q.Venues(context.Background(), mint)
	require.True(t, errors.Is(err, ErrNoVenues))
}

func TestQuoterVenues(t *testing.T) {
	feed := newFeedFetcher()
	feed.script(mint, f(10))
	q := NewQuoter(feed, consensus.New(consensus.Options{}), venue.NewAggregator(nil, nil), nil, nopLogger())

	ranked, err := q.Venues(context.Background(), mint)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	require.Equal(t, "raydium", ranked[0].Name)
	require.Equal(t, 1, ranked[0].Totals.Pools)
}
