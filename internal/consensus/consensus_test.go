package consensus

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mcwatch/internal/market"
)

const (
	mint    = "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr"
	evmAddr = "0x6982508145454Ce325dDbE47a25d4ec3d2311933"
)

func solPair(dex string, mc, liq, vol float64) market.Pair {
	p := market.Pair{
		ChainID:   "solana",
		DexID:     dex,
		URL:       "https://dexscreener.com/solana/" + dex,
		BaseToken: market.Token{Address: mint, Name: "Token", Symbol: "TKN"},
		QuoteToken: market.Token{
			Symbol: "sol",
		},
	}
	if mc > 0 {
		p.FDV = market.NewNumber(mc)
	}
	p.Liquidity.USD = market.NewNumber(liq)
	p.Volume.H24 = market.NewNumber(vol)
	return p
}

func TestConsensusRejectsOutlier(t *testing.T) {
	e := New(Options{PreferFDV: true})
	pairs := []market.Pair{
		solPair("raydium", 100, 1, 1),
		solPair("meteora", 105, 1, 1),
		solPair("orca", 110, 1, 1),
		solPair("pumpswap", 1_000_000, 1, 1),
	}

	res := e.Consensus(pairs, mint)
	require.InDelta(t, 105.0, res.Value, 1e-9)
	require.NotNil(t, res.Best)
	require.Equal(t, "meteora", res.Best.DexID)
	require.Len(t, res.Candidates, 4)
}

func TestConsensusSmallSampleUsesPlainMedian(t *testing.T) {
	e := New(Options{PreferFDV: true})
	res := e.Consensus([]market.Pair{solPair("a", 100, 1, 1), solPair("b", 105, 1, 1)}, mint)
	require.InDelta(t, 102.5, res.Value, 1e-9)
}

func TestConsensusIgnoresPairOrder(t *testing.T) {
	e := New(Options{PreferFDV: true})
	values := []float64{120, 95, 101, 99, 5_000, 0.3, 103, 100}
	pairs := make([]market.Pair, len(values))
	for i, v := range values {
		pairs[i] = solPair("dex", v, 1, 1)
	}
	want := e.Consensus(pairs, mint).Value

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 25; i++ {
		shuffled := append([]market.Pair(nil), pairs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		require.Equal(t, want, e.Consensus(shuffled, mint).Value)
	}
}

func TestConsensusNoValues(t *testing.T) {
	e := New(Options{})
	res := e.Consensus([]market.Pair{solPair("a", 0, 10, 10)}, mint)
	require.Nil(t, res.Best)
	require.Equal(t, 0.0, res.Value)
	require.Len(t, res.Candidates, 1)
	require.False(t, res.Candidates[0].HasValue())

	empty := e.Consensus(nil, mint)
	require.Nil(t, empty.Best)
	require.Empty(t, empty.Candidates)
}

func TestBestPairTieBreaks(t *testing.T) {
	e := New(Options{PreferFDV: true})

	// 90 and 110 sit equally far from the 100 median.
	byLiquidity := []market.Pair{
		solPair("low-liq", 90, 1_000, 50),
		solPair("high-liq", 110, 5_000, 10),
	}
	res := e.Consensus(byLiquidity, mint)
	require.InDelta(t, 100.0, res.Value, 1e-9)
	require.Equal(t, "high-liq", res.Best.DexID)

	byVolume := []market.Pair{
		solPair("low-vol", 90, 1_000, 10),
		solPair("high-vol", 110, 1_000, 20),
	}
	res = e.Consensus(byVolume, mint)
	require.Equal(t, "high-vol", res.Best.DexID)
}

func TestBestIgnoresValuelessCandidates(t *testing.T) {
	e := New(Options{PreferFDV: true})
	res := e.Consensus([]market.Pair{
		solPair("novalue", 0, 1e9, 1e9),
		solPair("valued", 50, 1, 1),
	}, mint)
	require.Equal(t, "valued", res.Best.DexID)
}

func TestSelectPairs(t *testing.T) {
	e := New(Options{Blacklist: []string{"Heaven"}})

	other := solPair("raydium", 1, 1, 1)
	other.BaseToken.Address = "So11111111111111111111111111111111111111112"
	wrongCase := solPair("raydium", 1, 1, 1)
	wrongCase.BaseToken.Address = "7gcihgdb8fe6knjn2mytkzzcrjqy3t9ghdc8uhymw2hr"
	otherChain := solPair("raydium", 1, 1, 1)
	otherChain.ChainID = "bsc"

	got := e.SelectPairs([]market.Pair{
		solPair("raydium", 1, 1, 1),
		solPair("heaven", 1, 1, 1),
		other, wrongCase, otherChain,
	}, mint)
	require.Len(t, got, 1)
	require.Equal(t, "raydium", got[0].DexID)

	evm := market.Pair{ChainID: "ethereum", DexID: "uniswap", BaseToken: market.Token{Address: "0x6982508145454ce325ddbe47a25d4ec3d2311933"}}
	require.Len(t, e.SelectPairs([]market.Pair{evm}, evmAddr), 1)
}

func TestSnapshotFromBestPair(t *testing.T) {
	e := New(Options{PreferFDV: true})
	now := time.Unix(1_700_000_000, 0)

	snap := e.Snapshot(mint, []market.Pair{
		solPair("raydium", 100, 10, 1),
		solPair("meteora", 104, 10, 1),
	}, now)

	require.NotNil(t, snap.MarketCap)
	require.Equal(t, market.SourceFDV, snap.Source)
	require.InDelta(t, 102.0, snap.Consensus, 1e-9)
	require.NotNil(t, snap.Delta)
	require.InDelta(t, 2.0, *snap.Delta, 1e-9)
	require.Equal(t, "SOL", snap.Quote)
	require.Equal(t, "solana", snap.Chain)
	require.Equal(t, "https://gmgn.ai/sol/token/"+mint, snap.URL)
	require.Equal(t, "TKN", snap.Symbol)
	require.Equal(t, now, snap.UpdatedAt)
}

func TestSnapshotWithoutPairs(t *testing.T) {
	e := New(Options{})
	snap := e.Snapshot(evmAddr, nil, time.Now())
	require.Nil(t, snap.MarketCap)
	require.Nil(t, snap.Delta)
	require.Equal(t, market.SourceNone, snap.Source)
	require.Equal(t, "https://dexscreener.com", snap.URL)
}
