package market

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	solMint = "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr"
	evmAddr = "0x6982508145454Ce325dDbE47a25d4ec3d2311933"
)

func TestResolveValueSolanaPrefersFDV(t *testing.T) {
	p := Pair{ChainID: "solana", MarketCap: NewNumber(100), FDV: NewNumber(200)}

	v, src, ok := ResolveValue(p, solMint, true)
	require.True(t, ok)
	require.Equal(t, 200.0, v)
	require.Equal(t, SourceFDV, src)

	v, src, ok = ResolveValue(p, solMint, false)
	require.True(t, ok)
	require.Equal(t, 100.0, v)
	require.Equal(t, SourceMarketCap, src)
}

func TestResolveValueOtherChainsPreferMarketCap(t *testing.T) {
	p := Pair{ChainID: "ethereum", MarketCap: NewNumber(100), FDV: NewNumber(200)}
	v, src, ok := ResolveValue(p, evmAddr, true)
	require.True(t, ok)
	require.Equal(t, 100.0, v)
	require.Equal(t, SourceMarketCap, src)
}

func TestResolveValueSkipsNonPositive(t *testing.T) {
	p := Pair{ChainID: "ethereum", MarketCap: NewNumber(0), FDV: NewNumber(-5)}
	p.PriceUSD = NewNumber(0.5)
	p.BaseToken.CirculatingSupply = NewNumber(1000)

	v, src, ok := ResolveValue(p, evmAddr, true)
	require.True(t, ok)
	require.Equal(t, 500.0, v)
	require.Equal(t, SourceComputed, src)
}

func TestResolveValueNothingComputable(t *testing.T) {
	v, src, ok := ResolveValue(Pair{ChainID: "solana"}, solMint, true)
	require.False(t, ok)
	require.Equal(t, 0.0, v)
	require.Equal(t, SourceNone, src)
}

func TestResolveValueRejectsOverflowingProduct(t *testing.T) {
	p := Pair{ChainID: "solana"}
	p.PriceUSD = NewNumber(1e300)
	p.BaseToken.CirculatingSupply = NewNumber(1e300)

	v, src, ok := ResolveValue(p, solMint, true)
	require.False(t, ok)
	require.Equal(t, 0.0, v)
	require.Equal(t, SourceNone, src)

	p.PriceUSD = NewNumber(1e-300)
	p.BaseToken.CirculatingSupply = NewNumber(1e-300)
	_, _, ok = ResolveValue(p, solMint, true)
	require.False(t, ok, "a product that underflows to zero is not a value")
}

func TestPairDecodingIsLenient(t *testing.T) {
	payload := `{
		"chainId": "solana",
		"dexId": "raydium",
		"priceUsd": "0.0012",
		"marketCap": "not-a-number",
		"fdv": 1200000,
		"liquidity": null,
		"volume": {"h24": "3400.5"},
		"txns": {"h24": {"buys": 10, "sells": 5}},
		"baseToken": {"address": "` + solMint + `", "symbol": "WIF"}
	}`

	var p Pair
	require.NoError(t, json.Unmarshal([]byte(payload), &p))
	require.False(t, p.MarketCap.Valid)
	require.True(t, p.FDV.Valid)
	require.InDelta(t, 0.0012, p.PriceUSD.Value, 1e-12)

	liq, vol, tx := Metrics(p)
	require.Equal(t, 0.0, liq)
	require.Equal(t, 3400.5, vol)
	require.Equal(t, int64(15), tx)

	v, src, ok := ResolveValue(p, solMint, true)
	require.True(t, ok)
	require.Equal(t, 1200000.0, v)
	require.Equal(t, SourceFDV, src)
}

func TestTokenURL(t *testing.T) {
	require.Equal(t, "https://gmgn.ai/sol/token/"+solMint, TokenURL(solMint, nil))
	require.Equal(t, "https://dexscreener.com/ethereum/x", TokenURL(evmAddr, &Pair{URL: "https://dexscreener.com/ethereum/x"}))
	require.Equal(t, "https://dexscreener.com", TokenURL(evmAddr, nil))
}

func TestImageURLFallback(t *testing.T) {
	require.Equal(t, "https://img/x.png", ImageURL(Pair{Info: &Info{ImageURL: "https://img/x.png"}}, solMint))
	require.Equal(t, "https://robohash.org/"+solMint+".png?size=200x200&set=set1", ImageURL(Pair{}, solMint))
}
