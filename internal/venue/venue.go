package venue

import (
	"math"
	"sort"
	"strings"

	"mcwatch/internal/market"
)

// DefaultVenues is the allow-list used when none is configured.
var DefaultVenues = []string{"meteora", "raydium", "pumpswap"}

// DefaultAliases folds provider dex ids into canonical venue names.
var DefaultAliases = map[string]string{
	"meteoradlmm":  "meteora",
	"meteora-dlmm": "meteora",
	"meteoradbc":   "meteora",
	"meteora-damm": "meteora",
	"raydium-clmm": "raydium",
	"raydium-cpmm": "raydium",
	"launchlab":    "raydium",
	"pumpfun":      "pumpswap",
	"pump-swap":    "pumpswap",
	"pumpfunamm":   "pumpswap",
}

// Totals accumulates per-venue pool metrics.
type Totals struct {
	Pools     int
	Liquidity float64
	Volume    float64
	Txns      int64
	Quotes    map[string]int
	BestURL   string
	bestLiq   float64
}

// Score weighs liquidity, volume and activity on a log scale.
func Score(t Totals) float64 {
	return 0.5*math.Log10(1+t.Liquidity) +
		0.4*math.Log10(1+t.Volume) +
		0.2*math.Log10(1+float64(t.Txns))
}

// QuoteSymbols returns the quote symbols seen in the venue, sorted.
func (t Totals) QuoteSymbols() []string {
	out := make([]string, 0, len(t.Quotes))
	for q := range t.Quotes {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

// Ranked is one venue with its score.
type Ranked struct {
	Name   string
	Totals Totals
	Score  float64
}

// Aggregator buckets pairs by canonical venue.
type Aggregator struct {
	allowed map[string]struct{}
	order   []string
	aliases map[string]string
}

// NewAggregator builds an Aggregator; empty arguments fall back to the defaults.
func NewAggregator(venues []string, aliases map[string]string) *Aggregator {
	if len(venues) == 0 {
		venues = DefaultVenues
	}
	if len(aliases) == 0 {
		aliases = DefaultAliases
	}
	a := &Aggregator{
		allowed: make(map[string]struct{}, len(venues)),
		aliases: make(map[string]string, len(aliases)),
	}
	for _, v := range venues {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := a.allowed[v]; !dup {
			a.order = append(a.order, v)
		}
		a.allowed[v] = struct{}{}
	}
	for raw, canonical := range aliases {
		a.aliases[strings.ToLower(raw)] = strings.ToLower(canonical)
	}
	return a
}

// Venues returns the allow-list in configured order.
func (a *Aggregator) Venues() []string {
	return append([]string(nil), a.order...)
}

// Canonical maps a raw dex id through the alias table.
func (a *Aggregator) Canonical(dexID string) string {
	id := strings.ToLower(dexID)
	if alias, ok := a.aliases[id]; ok {
		return alias
	}
	return id
}

// Aggregate sums metrics for every allow-listed venue found in filtered.
func (a *Aggregator) Aggregate(filtered []market.Pair, tokenID string) map[string]*Totals {
	agg := make(map[string]*Totals)
	for _, p := range filtered {
		name := a.Canonical(p.DexID)
		if _, ok := a.allowed[name]; !ok {
			continue
		}
		liq, vol, tx := market.Metrics(p)
		url := p.URL
		if url == "" {
			url = market.TokenURL(tokenID, &p)
		}

		t, ok := agg[name]
		if !ok {
			t = &Totals{Quotes: make(map[string]int), BestURL: url}
			agg[name] = t
		}
		t.Pools++
		t.Liquidity += liq
		t.Volume += vol
		t.Txns += tx
		if q := market.QuoteSymbol(p); q != "" {
			t.Quotes[q]++
		}
		if liq > t.bestLiq {
			t.bestLiq = liq
			t.BestURL = url
		}
	}
	return agg
}

// Rank orders venues by score, then liquidity, then volume, all descending.
func Rank(agg map[string]*Totals) []Ranked {
	out := make([]Ranked, 0, len(agg))
	for name, t := range agg {
		out = append(out, Ranked{Name: name, Totals: *t, Score: Score(*t)})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Totals.Liquidity != b.Totals.Liquidity {
			return a.Totals.Liquidity > b.Totals.Liquidity
		}
		if a.Totals.Volume != b.Totals.Volume {
			return a.Totals.Volume > b.Totals.Volume
		}
		return a.Name < b.Name
	})
	return out
}

// Recommend returns the top-ranked venue, or false when agg is empty.
func Recommend(agg map[string]*Totals) (Ranked, bool) {
	ranked := Rank(agg)
	if len(ranked) == 0 {
		return Ranked{}, false
	}
	return ranked[0], true
}
