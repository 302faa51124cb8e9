package market

import (
	"math"
	"strings"

	"mcwatch/internal/chain"
)

// Source tags where a market-cap value came from.
type Source string

const (
	SourceFDV       Source = "fdv"
	SourceMarketCap Source = "marketCap"
	SourceComputed  Source = "computed"
	SourceNone      Source = "none"
)

const (
	fallbackTokenURL = "https://dexscreener.com"
	gmgnTokenURL     = "https://gmgn.ai/sol/token/"
	placeholderImage = "https://robohash.org/%s.png?size=200x200&set=set1"
)

// ResolveValue picks a market-cap estimate for one pair. Solana pairs prefer fully diluted
// value when preferFDV is set; other chains try market cap first. When neither field is
// positive the value is computed from price and circulating supply.
func ResolveValue(pair Pair, tokenID string, preferFDV bool) (float64, Source, bool) {
	solana := pair.ChainID == chain.Solana || chain.IsSolanaAddress(tokenID)

	order := []Source{SourceMarketCap, SourceFDV}
	if preferFDV && solana {
		order = []Source{SourceFDV, SourceMarketCap}
	}

	for _, src := range order {
		field := pair.MarketCap
		if src == SourceFDV {
			field = pair.FDV
		}
		if v, ok := field.Positive(); ok {
			return v, src, true
		}
	}

	price, okPrice := pair.PriceUSD.Positive()
	supply, okSupply := pair.BaseToken.CirculatingSupply.Positive()
	if okPrice && okSupply {
		if v := price * supply; v > 0 && !math.IsInf(v, 0) {
			return v, SourceComputed, true
		}
	}
	return 0, SourceNone, false
}

// Metrics returns pool liquidity (USD), 24h volume and 24h transaction count.
func Metrics(pair Pair) (liquidity, volume float64, txns int64) {
	liquidity = pair.Liquidity.USD.Or(0)
	volume = pair.Volume.H24.Or(0)
	txns = int64(pair.Txns.H24.Buys.Or(0)) + int64(pair.Txns.H24.Sells.Or(0))
	return liquidity, volume, txns
}

// TokenURL builds the canonical display link for a token.
func TokenURL(tokenID string, pair *Pair) string {
	if chain.IsSolanaAddress(tokenID) {
		return gmgnTokenURL + tokenID
	}
	if pair != nil && pair.URL != "" {
		return pair.URL
	}
	return fallbackTokenURL
}

// ImageURL returns the token artwork, falling back to a generated placeholder.
func ImageURL(pair Pair, tokenID string) string {
	img := ""
	if pair.Info != nil {
		img = pair.Info.ImageURL
	}
	if img == "" {
		img = pair.BaseToken.LogoURI
	}
	if strings.HasPrefix(img, "http") {
		return img
	}
	return strings.Replace(placeholderImage, "%s", tokenID, 1)
}

// QuoteSymbol returns the upper-cased quote asset symbol.
func QuoteSymbol(pair Pair) string {
	return strings.ToUpper(strings.TrimSpace(pair.QuoteToken.Symbol))
}
