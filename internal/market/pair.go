package market

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a lenient numeric field: the provider sends some values as JSON numbers and
// others as strings. Anything that does not parse to a finite float is left invalid.
type Number struct {
	Value float64
	Valid bool
}

// NewNumber returns a valid Number holding v.
func NewNumber(v float64) Number {
	return Number{Value: v, Valid: true}
}

// UnmarshalJSON never fails so a single odd field cannot reject a whole pair.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	text := strings.Trim(string(raw), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	n.Value = v
	n.Valid = true
	return nil
}

// MarshalJSON writes invalid numbers as null.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Positive returns the value when it is valid and strictly positive.
func (n Number) Positive() (float64, bool) {
	if n.Valid && n.Value > 0 {
		return n.Value, true
	}
	return 0, false
}

// Or returns the value, or def when invalid.
func (n Number) Or(def float64) float64 {
	if n.Valid {
		return n.Value
	}
	return def
}

// Token describes the base or quote side of a pair.
type Token struct {
	Address           string `json:"address"`
	Name              string `json:"name"`
	Symbol            string `json:"symbol"`
	CirculatingSupply Number `json:"circulatingSupply"`
	LogoURI           string `json:"logoURI"`
}

// Liquidity holds pool depth in USD.
type Liquidity struct {
	USD Number `json:"usd"`
}

// Volume holds traded volume windows.
type Volume struct {
	H24 Number `json:"h24"`
}

// TxnCount is a buys/sells tally for a window.
type TxnCount struct {
	Buys  Number `json:"buys"`
	Sells Number `json:"sells"`
}

// Txns holds transaction tallies per window.
type Txns struct {
	H24 TxnCount `json:"h24"`
}

// Info carries optional presentation metadata.
type Info struct {
	ImageURL string `json:"imageUrl"`
}

// Pair is one trading pair record reported by the market data provider.
type Pair struct {
	ChainID     string    `json:"chainId"`
	DexID       string    `json:"dexId"`
	URL         string    `json:"url"`
	PairAddress string    `json:"pairAddress"`
	BaseToken   Token     `json:"baseToken"`
	QuoteToken  Token     `json:"quoteToken"`
	PriceUSD    Number    `json:"priceUsd"`
	Liquidity   Liquidity `json:"liquidity"`
	Volume      Volume    `json:"volume"`
	Txns        Txns      `json:"txns"`
	MarketCap   Number    `json:"marketCap"`
	FDV         Number    `json:"fdv"`
	Info        *Info     `json:"info,omitempty"`
}

// TokensResponse is the provider payload for a token lookup.
type TokensResponse struct {
	SchemaVersion string `json:"schemaVersion"`
	Pairs         []Pair `json:"pairs"`
}
